// Package render draws client state as terminal tables.
package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
)

const (
	summaryWidth = 60
	titleWidth   = 40
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// Relevance buckets a score for the visual affordance next to each bill.
func Relevance(score float64) string {
	switch {
	case score > 0.7:
		return text.FgGreen.Sprint(ingest.ScoreString(score))
	case score > 0.4:
		return text.FgYellow.Sprint(ingest.ScoreString(score))
	case score > 0:
		return ingest.ScoreString(score)
	default:
		return "-"
	}
}

// Bills prints the current results. isSaved marks bookmarked rows; it may be nil.
func Bills(w io.Writer, bills []models.Bill, isSaved func(string) bool) {
	if len(bills) == 0 {
		fmt.Fprintln(w, "Search for Bills: enter a topic to browse recent congressional legislation.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Bill", "Title", "Status", "Sponsor", "Date", "Relevance", ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: titleWidth},
		{Number: 5, WidthMax: 28},
	})
	for i, b := range bills {
		mark := ""
		if isSaved != nil && isSaved(b.Number) {
			mark = "★"
		}
		t.AppendRow(table.Row{i + 1, b.Number, b.Title, b.Status, b.Sponsor, b.Date, Relevance(b.RelevanceScore), mark})
	}
	t.Render()
}

// Summaries prints each bill's summary wrapped under its number.
func Summaries(w io.Writer, bills []models.Bill) {
	for i, b := range bills {
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, text.Bold.Sprint(b.Number), b.Title)
		fmt.Fprintln(w, indent(text.WrapSoft(b.Summary, summaryWidth), "   "))
		if b.URL != "" {
			fmt.Fprintf(w, "   %s\n", b.URL)
		}
	}
}

func Saved(w io.Writer, bills []models.SavedBill, ok bool) {
	if !ok {
		fmt.Fprintln(w, "No saved bills yet. Use `save <n>` on a search result.")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Bill", "Title", "Status", "Date", "Saved At"})
	for _, b := range bills {
		t.AppendRow(table.Row{b.Number, ingest.TruncateText(b.Title, titleWidth), b.Status, b.Date, b.SavedAt.Local().Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", "", "", "Total", len(bills)})
	t.Render()
}

func Detail(w io.Writer, d models.BillDetail) {
	t := newTable(w)
	t.SetTitle(d.Number)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, WidthMax: summaryWidth}})
	t.AppendRows([]table.Row{
		{"Title", d.Title},
		{"Sponsor", d.Sponsor},
		{"Cosponsors", d.CosponsorCount},
		{"Status", d.Status},
		{"Date", d.Date},
		{"Summary", d.Summary},
	})
	if d.URL != "" {
		t.AppendRow(table.Row{"Link", d.URL})
	}
	t.Render()
}

func Timeline(w io.Writer, number string, events []models.TimelineEvent) {
	if len(events) == 0 {
		fmt.Fprintf(w, "No recorded actions for %s.\n", number)
		return
	}
	t := newTable(w)
	t.SetTitle(number + " progression")
	t.AppendHeader(table.Row{"Date", "Chamber", "Action"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: summaryWidth}})
	for _, e := range events {
		t.AppendRow(table.Row{e.Date, e.Chamber, e.Action})
	}
	t.Render()
}

func Heatmap(w io.Writer, hm models.VoteHeatmap) {
	if len(hm.States) == 0 {
		fmt.Fprintf(w, "No recorded votes for %s.\n", hm.Number)
		return
	}
	states := make([]string, 0, len(hm.States))
	for s := range hm.States {
		states = append(states, s)
	}
	sort.Strings(states)

	t := newTable(w)
	t.SetTitle(hm.Number + " votes by state")
	t.AppendHeader(table.Row{"State", "Yea", "Nay", "Not Voting"})
	for _, s := range states {
		v := hm.States[s]
		t.AppendRow(table.Row{s, v.Yea, v.Nay, v.NotVoting})
	}
	t.AppendFooter(table.Row{"Total", hm.Totals.Yea, hm.Totals.Nay, hm.Totals.NotVoting})
	t.Render()
}

func Settings(w io.Writer, s models.UserSettings) {
	t := newTable(w)
	t.SetTitle("Settings")
	t.AppendRows([]table.Row{
		{"age", s.AgeGroup},
		{"autosave", s.AutoSave},
		{"detail", s.DetailLevel},
	})
	t.Render()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
