package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/render"
	"github.com/david/bill-finder/internal/search"
	"github.com/david/bill-finder/internal/session"
	"github.com/david/bill-finder/internal/workspace"
)

type repl struct {
	ws      *workspace.Workspace
	details workspace.Details
	topics  []config.Topic
	out     io.Writer

	sortMode ingest.SortMode
	// shown is the list the user last saw; `save <n>` indexes into it.
	shown []models.Bill
}

func (r *repl) run(ctx context.Context, in io.Reader) {
	fmt.Fprintln(r.out, "Congressional Bill Browser. Type `help` for commands.")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return
		}
		if !r.exec(ctx, scanner.Text()) {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// exec runs one command line and reports whether the loop should continue.
func (r *repl) exec(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "search", "s":
		r.search(ctx, arg)
	case "topic":
		r.topic(ctx, arg)
	case "more", "m":
		r.more(ctx)
	case "sort":
		r.sortMode = ingest.ParseSortMode(arg)
		r.showResults()
	case "save":
		r.save(ctx, arg)
	case "unsave":
		r.ws.Saved.Remove(ctx, arg)
		fmt.Fprintf(r.out, "Removed %s from saved bills.\n", arg)
	case "saved":
		bills, ok := r.ws.Saved.ListAll()
		render.Saved(r.out, bills, ok)
	case "settings":
		render.Settings(r.out, r.ws.Settings.Current())
	case "set":
		r.set(ctx, arg)
	case "detail", "timeline", "votes":
		r.lookup(ctx, strings.ToLower(cmd), arg)
	case "status":
		r.status(ctx)
	case "help", "?":
		r.help()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type `help`.\n", cmd)
	}
	return true
}

func (r *repl) search(ctx context.Context, query string) {
	fmt.Fprintln(r.out, "AI is searching for bills and generating summaries...")
	res, err := r.ws.Session.Search(ctx, query)
	if err != nil {
		r.fail("Search failed", err)
		r.shown = nil
		return
	}
	r.showResults()
	r.reportAutoSave(res)
}

func (r *repl) topic(ctx context.Context, name string) {
	t, ok := config.FindTopic(r.topics, name)
	if !ok {
		fmt.Fprintf(r.out, "Unknown topic %q. Type `help` for the list.\n", name)
		return
	}
	r.search(ctx, t.Query)
}

func (r *repl) more(ctx context.Context) {
	if !r.ws.Session.Snapshot().HasMore {
		fmt.Fprintln(r.out, "No more results.")
		return
	}
	res, err := r.ws.Session.LoadMore(ctx)
	if err != nil {
		r.fail("Could not load more", err)
		return
	}
	if len(res.Added) == 0 {
		fmt.Fprintln(r.out, "No new bills on the next page.")
	}
	r.showResults()
	r.reportAutoSave(res)
}

func (r *repl) showResults() {
	r.shown = r.ws.Session.Sorted(r.sortMode)
	render.Bills(r.out, r.shown, r.ws.Saved.IsSaved)
	snap := r.ws.Session.Snapshot()
	if snap.HasMore {
		fmt.Fprintln(r.out, "More results available: type `more`.")
	}
}

func (r *repl) reportAutoSave(res session.Result) {
	if res.AutoSaved > 0 {
		fmt.Fprintf(r.out, "Auto-saved %d highly relevant bill(s).\n", res.AutoSaved)
	}
}

func (r *repl) save(ctx context.Context, arg string) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(r.shown) {
		fmt.Fprintf(r.out, "Usage: save <n>, where n is a row number between 1 and %d.\n", len(r.shown))
		return
	}
	bill := r.shown[n-1]
	ok, err := r.ws.Saved.Save(ctx, bill)
	switch {
	case err != nil:
		r.fail("Save failed", err)
	case !ok:
		fmt.Fprintf(r.out, "%s is already saved.\n", bill.Number)
	default:
		fmt.Fprintf(r.out, "Saved %s.\n", bill.Number)
	}
}

func (r *repl) set(ctx context.Context, arg string) {
	key, value, _ := strings.Cut(arg, " ")
	value = strings.ToLower(strings.TrimSpace(value))

	next := r.ws.Settings.Current()
	switch strings.ToLower(key) {
	case "age":
		next.AgeGroup = models.AgeGroup(value)
	case "detail":
		next.DetailLevel = models.DetailLevel(value)
	case "autosave":
		switch value {
		case "on", "true", "yes":
			next.AutoSave = true
		case "off", "false", "no":
			next.AutoSave = false
		default:
			fmt.Fprintln(r.out, "Usage: set autosave on|off")
			return
		}
	default:
		fmt.Fprintln(r.out, "Usage: set age child|teen|adult, set autosave on|off, set detail brief|detailed")
		return
	}
	if err := r.ws.Settings.Save(ctx, next); err != nil {
		r.fail("Settings not saved", err)
		return
	}
	fmt.Fprintln(r.out, "Settings saved.")
}

func (r *repl) lookup(ctx context.Context, kind, number string) {
	if r.details == nil {
		fmt.Fprintln(r.out, "Bill lookups require the structured search service backend.")
		return
	}
	if number == "" {
		fmt.Fprintf(r.out, "Usage: %s <bill number>\n", kind)
		return
	}
	switch kind {
	case "detail":
		d, err := r.details.Detail(ctx, number)
		if err != nil {
			r.fail("Detail lookup failed", err)
			return
		}
		render.Detail(r.out, d)
	case "timeline":
		events, err := r.details.Progression(ctx, number)
		if err != nil {
			r.fail("Progression lookup failed", err)
			return
		}
		render.Timeline(r.out, ingest.FormatBillNumber(number), events)
	case "votes":
		hm, err := r.details.Heatmap(ctx, number)
		if err != nil {
			r.fail("Vote lookup failed", err)
			return
		}
		render.Heatmap(r.out, hm)
	}
}

func (r *repl) status(ctx context.Context) {
	snap := r.ws.Session.Snapshot()
	fmt.Fprintf(r.out, "Query: %q, page %d, %d bills, more: %t. Saved bills: %d.\n",
		snap.Query, snap.Page, len(snap.Bills), snap.HasMore, r.ws.Saved.Count())
	if r.details == nil {
		return
	}
	st, err := r.details.Status(ctx)
	if err != nil {
		r.fail("Service unreachable", err)
		return
	}
	fmt.Fprintf(r.out, "Service healthy: %t, models ready: %t %s\n", st.Healthy, st.ModelsReady, st.Message)
}

func (r *repl) help() {
	fmt.Fprintln(r.out, `Commands:
  search <topic>      find bills about a topic
  topic <name>        run a shortcut search
  more                load the next page of results
  sort date|relevance change result order
  save <n>            save result row n
  unsave <number>     remove a saved bill, e.g. unsave H.R. 1234
  saved               list saved bills
  settings            show settings
  set <key> <value>   age child|teen|adult, autosave on|off, detail brief|detailed
  detail <number>     full bill record
  timeline <number>   legislative progression
  votes <number>      votes by state
  status              session and service status
  quit`)
	if len(r.topics) > 0 {
		names := make([]string, 0, len(r.topics))
		for _, t := range r.topics {
			names = append(names, t.Name)
		}
		fmt.Fprintf(r.out, "Topics: %s\n", strings.Join(names, ", "))
	}
}

func (r *repl) fail(prefix string, err error) {
	var svcErr *search.ServiceError
	switch {
	case errors.Is(err, session.ErrEmptyQuery):
		fmt.Fprintln(r.out, "Please enter a search term.")
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(r.out, "A search is already running.")
	case errors.As(err, &svcErr):
		fmt.Fprintf(r.out, "%s: %s\n", prefix, svcErr.Message)
	default:
		fmt.Fprintf(r.out, "%s: %v\n", prefix, err)
	}
}
