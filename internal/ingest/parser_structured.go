package ingest

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/david/bill-finder/internal/models"
)

// FlexString accepts either a JSON string or a JSON number.
// The search service sends bill numbers both ways.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// ServiceBill is one element of the search service's "bills" array.
type ServiceBill struct {
	Number            FlexString `json:"number"`
	Title             string     `json:"title"`
	Sponsor           string     `json:"sponsor"`
	Status            string     `json:"status"`
	Date              string     `json:"date"`
	Summary           string     `json:"summary"`
	RelevanceScore    float64    `json:"relevance_score"`
	URL               string     `json:"url"`
	PersonalizedScore *float64   `json:"personalized_score"`
}

// FromServiceBill maps a structured service record onto the canonical bill.
func FromServiceBill(raw ServiceBill) models.Bill {
	bill := models.Bill{
		Number:            FormatBillNumber(string(raw.Number)),
		Title:             raw.Title,
		Sponsor:           raw.Sponsor,
		Status:            raw.Status,
		Date:              raw.Date,
		Summary:           raw.Summary,
		RelevanceScore:    raw.RelevanceScore,
		URL:               raw.URL,
		PersonalizedScore: raw.PersonalizedScore,
	}
	NormalizeBill(&bill)
	return bill
}

// FromServiceBills maps a whole page, preserving order.
func FromServiceBills(raw []ServiceBill) []models.Bill {
	bills := make([]models.Bill, 0, len(raw))
	for _, r := range raw {
		bills = append(bills, FromServiceBill(r))
	}
	return bills
}

// ServiceSponsor is the congress.gov shaped sponsor entry.
type ServiceSponsor struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Party     string `json:"party"`
	State     string `json:"state"`
}

// ServiceDetail is the payload of the bill detail lookup. Summaries arrive as HTML.
type ServiceDetail struct {
	Number         FlexString       `json:"number"`
	Title          string           `json:"title"`
	Sponsor        string           `json:"sponsor"`
	Sponsors       []ServiceSponsor `json:"sponsors"`
	Status         string           `json:"status"`
	Date           string           `json:"date"`
	SummaryHTML    string           `json:"summary"`
	URL            string           `json:"url"`
	CosponsorCount int              `json:"cosponsors_count"`
}

// FromServiceDetail flattens a detail payload into display strings.
func FromServiceDetail(raw ServiceDetail) models.BillDetail {
	sponsor := raw.Sponsor
	if strings.TrimSpace(sponsor) == "" && len(raw.Sponsors) > 0 {
		s := raw.Sponsors[0]
		sponsor = FormatSponsor(s.FirstName, s.LastName, s.Party, s.State)
	}
	return models.BillDetail{
		Number:         orDefault(FormatBillNumber(string(raw.Number)), models.UnknownNumber),
		Title:          orDefault(raw.Title, models.UntitledBill),
		Sponsor:        orDefault(sponsor, models.NotAvailable),
		Status:         orDefault(raw.Status, models.NotAvailable),
		Date:           orDefault(raw.Date, models.NotAvailable),
		Summary:        CleanSummary(HTMLToText(raw.SummaryHTML)),
		URL:            strings.TrimSpace(raw.URL),
		CosponsorCount: raw.CosponsorCount,
	}
}

// ServiceAction is one progression step as sent by the service.
type ServiceAction struct {
	Date    string `json:"date"`
	Chamber string `json:"chamber"`
	Action  string `json:"action"`
}

// BuildTimeline normalizes progression steps and orders them oldest first.
func BuildTimeline(raw []ServiceAction) []models.TimelineEvent {
	events := make([]models.TimelineEvent, 0, len(raw))
	for _, a := range raw {
		action := cleanText(a.Action)
		if action == "" {
			continue
		}
		date := orDefault(a.Date, models.NotAvailable)
		events = append(events, models.TimelineEvent{
			Date:           date,
			Chamber:        orDefault(a.Chamber, models.NotAvailable),
			Action:         action,
			NormalizedDate: NormalizeDate(date),
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].NormalizedDate.Before(events[j].NormalizedDate)
	})
	return events
}

// ServiceVote is a single member's recorded position.
type ServiceVote struct {
	State    string `json:"state"`
	Position string `json:"position"`
}

// BuildHeatmap tallies member positions per state.
func BuildHeatmap(number string, votes []ServiceVote) models.VoteHeatmap {
	hm := models.VoteHeatmap{
		Number: FormatBillNumber(number),
		States: make(map[string]models.StateVotes),
	}
	for _, v := range votes {
		state := strings.ToUpper(strings.TrimSpace(v.State))
		if state == "" {
			continue
		}
		tally := hm.States[state]
		switch strings.ToLower(strings.TrimSpace(v.Position)) {
		case "yea", "yes", "aye":
			tally.Yea++
			hm.Totals.Yea++
		case "nay", "no":
			tally.Nay++
			hm.Totals.Nay++
		default:
			tally.NotVoting++
			hm.Totals.NotVoting++
		}
		hm.States[state] = tally
	}
	return hm
}

// ScoreString formats a [0,1] score as a percentage for display.
func ScoreString(v float64) string {
	return strconv.Itoa(int(v*100+0.5)) + "%"
}
