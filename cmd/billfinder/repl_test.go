package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bill-finder/internal/config"
	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/search"
	"github.com/david/bill-finder/internal/storage"
	"github.com/david/bill-finder/internal/workspace"
)

type stubBackend struct {
	queries []string
}

func (s *stubBackend) Search(_ context.Context, req search.Request) (search.Page, error) {
	s.queries = append(s.queries, req.Query)
	if req.Page == 1 {
		return search.Page{Bills: ingest.FromServiceBills([]ingest.ServiceBill{
			{Number: "1234", Title: "Older", Summary: "s", Date: "01/05/2023", RelevanceScore: 0.9},
			{Number: "S. 567", Title: "Newer", Summary: "s", Date: "06/01/2024", RelevanceScore: 0.1},
		}), HasMore: true}, nil
	}
	return search.Page{Bills: ingest.FromServiceBills([]ingest.ServiceBill{
		{Number: "77", Title: "Page two", Summary: "s", Date: "2022"},
	})}, nil
}

func newTestREPL(t *testing.T) (*repl, *bytes.Buffer, *stubBackend) {
	t.Helper()
	text.DisableColors()
	backend := &stubBackend{}
	ws := workspace.Open(context.Background(), workspace.Deps{KV: storage.NewMemory(), Backend: backend}, uuid.Nil)
	topics, err := config.LoadTopics()
	require.NoError(t, err)
	var out bytes.Buffer
	return &repl{ws: ws, topics: topics, out: &out}, &out, backend
}

func TestREPL_SearchSaveAndMore(t *testing.T) {
	r, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.run(ctx, strings.NewReader("search climate\nsave 1\nsave 1\nmore\nsaved\nquit\n"))

	got := out.String()
	assert.Contains(t, got, "S. 567")
	assert.Contains(t, got, "Saved S. 567.")
	assert.Contains(t, got, "S. 567 is already saved.")
	assert.Contains(t, got, "H.R. 77")
	assert.True(t, r.ws.Saved.IsSaved("S. 567"))
	assert.Len(t, r.ws.Session.Snapshot().Bills, 3)
}

func TestREPL_SortByRelevanceChangesRowNumbers(t *testing.T) {
	r, _, _ := newTestREPL(t)
	ctx := context.Background()

	r.exec(ctx, "search x")
	require.Equal(t, "S. 567", r.shown[0].Number)

	r.exec(ctx, "sort relevance")
	assert.Equal(t, "H.R. 1234", r.shown[0].Number)

	r.exec(ctx, "save 1")
	assert.True(t, r.ws.Saved.IsSaved("H.R. 1234"))
}

func TestREPL_TopicShortcut(t *testing.T) {
	r, out, backend := newTestREPL(t)

	r.exec(context.Background(), "topic climate")
	assert.Equal(t, []string{"climate change"}, backend.queries)

	r.exec(context.Background(), "topic sports")
	assert.Contains(t, out.String(), `Unknown topic "sports"`)
}

func TestREPL_Settings(t *testing.T) {
	r, out, _ := newTestREPL(t)
	ctx := context.Background()

	r.exec(ctx, "set age teen")
	r.exec(ctx, "set autosave on")
	r.exec(ctx, "set detail brief")
	assert.Equal(t, models.UserSettings{AgeGroup: models.AgeTeen, AutoSave: true, DetailLevel: models.DetailBrief}, r.ws.Settings.Current())

	r.exec(ctx, "set age toddler")
	assert.Contains(t, out.String(), "Settings not saved")
	assert.Equal(t, models.AgeTeen, r.ws.Settings.Current().AgeGroup)
}

func TestREPL_Errors(t *testing.T) {
	r, out, _ := newTestREPL(t)
	ctx := context.Background()

	assert.True(t, r.exec(ctx, "search   "))
	assert.True(t, r.exec(ctx, "save 9"))
	assert.True(t, r.exec(ctx, "detail H.R. 1"))
	assert.True(t, r.exec(ctx, "frobnicate"))
	assert.False(t, r.exec(ctx, "quit"))

	got := out.String()
	assert.Contains(t, got, "Please enter a search term.")
	assert.Contains(t, got, "Usage: save <n>")
	assert.Contains(t, got, "require the structured search service")
	assert.Contains(t, got, `Unknown command "frobnicate"`)
}
