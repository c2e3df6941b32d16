package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/search"
)

// pagedBackend serves canned pages keyed by page number.
type pagedBackend struct {
	mu       sync.Mutex
	pages    map[int]search.Page
	errs     map[int]error
	requests []search.Request
}

func (b *pagedBackend) Search(_ context.Context, req search.Request) (search.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	if err := b.errs[req.Page]; err != nil {
		return search.Page{}, err
	}
	return b.pages[req.Page], nil
}

// gatedBackend blocks until release is closed.
type gatedBackend struct {
	started chan struct{}
	release chan struct{}
	page    search.Page
}

func newGatedBackend(page search.Page) *gatedBackend {
	return &gatedBackend{started: make(chan struct{}, 1), release: make(chan struct{}), page: page}
}

func (b *gatedBackend) Search(ctx context.Context, _ search.Request) (search.Page, error) {
	b.started <- struct{}{}
	select {
	case <-b.release:
		return b.page, nil
	case <-ctx.Done():
		return search.Page{}, ctx.Err()
	}
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []string
}

func (s *recordingSaver) Save(_ context.Context, b models.Bill) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.saved {
		if n == b.Number {
			return false, nil
		}
	}
	s.saved = append(s.saved, b.Number)
	return true, nil
}

type fixedSettings models.UserSettings

func (f fixedSettings) Current() models.UserSettings { return models.UserSettings(f) }

// makeBills builds n bills numbered from start with dates spread across 2023-2024.
func makeBills(start, n int, relevance float64) []models.Bill {
	bills := make([]models.Bill, 0, n)
	for i := 0; i < n; i++ {
		num := start + i
		bills = append(bills, ingest.FromServiceBill(ingest.ServiceBill{
			Number:         ingest.FlexString(fmt.Sprint(num)),
			Title:          fmt.Sprintf("Bill %d", num),
			Summary:        "summary",
			Date:           fmt.Sprintf("%d/%d/2023", 1+(num*5)%12, 1+num%28),
			RelevanceScore: relevance,
		}))
	}
	return bills
}

func assertDateDesc(t *testing.T, bills []models.Bill) {
	t.Helper()
	for i := 1; i < len(bills); i++ {
		if bills[i].NormalizedDate.After(bills[i-1].NormalizedDate) {
			t.Fatalf("bills not date-descending at %d: %s after %s", i, bills[i].Date, bills[i-1].Date)
		}
	}
}

func TestSearchThenLoadMore(t *testing.T) {
	backend := &pagedBackend{pages: map[int]search.Page{
		1: {Bills: makeBills(100, 5, 0.5), HasMore: true, TotalFound: 10},
		2: {Bills: makeBills(200, 5, 0.5), HasMore: false, TotalFound: 10},
	}}
	agg := New(backend, nil, nil)
	ctx := context.Background()

	res, err := agg.Search(ctx, "  climate ")
	require.NoError(t, err)
	assert.Len(t, res.Added, 5)
	assert.True(t, res.HasMore)

	snap := agg.Snapshot()
	assert.Equal(t, "climate", snap.Query)
	assert.Equal(t, 1, snap.Page)
	assert.False(t, snap.IsLoading)

	res, err = agg.LoadMore(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Added, 5)

	snap = agg.Snapshot()
	assert.Len(t, snap.Bills, 10)
	assert.Equal(t, 2, snap.Page)
	assert.False(t, snap.HasMore)
	assertDateDesc(t, snap.Bills)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, 2, backend.requests[1].Page)
	assert.Equal(t, "climate", backend.requests[1].Query)

	// no more pages: LoadMore is a no-op
	res, err = agg.LoadMore(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Added)
	assert.Len(t, backend.requests, 2)
}

func TestSearch_EmptyQueryRejectedLocally(t *testing.T) {
	backend := &pagedBackend{}
	agg := New(backend, nil, nil)

	_, err := agg.Search(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, backend.requests)
}

func TestSearch_FirstPageFailureClearsResults(t *testing.T) {
	boom := &search.ServiceError{StatusCode: 503, Message: "Unable to fetch bills"}
	backend := &pagedBackend{pages: map[int]search.Page{1: {Bills: makeBills(1, 3, 0)}}}
	agg := New(backend, nil, nil)
	ctx := context.Background()

	_, err := agg.Search(ctx, "tax")
	require.NoError(t, err)

	backend.errs = map[int]error{1: boom}
	_, err = agg.Search(ctx, "health")
	assert.ErrorIs(t, err, boom)

	snap := agg.Snapshot()
	assert.Empty(t, snap.Bills)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, "health", snap.Query)
}

func TestSearch_EmptyFirstPageIsNoResults(t *testing.T) {
	agg := New(&pagedBackend{pages: map[int]search.Page{1: {Message: "No relevant bills found for your query"}}}, nil, nil)

	_, err := agg.Search(context.Background(), "zzz")
	assert.ErrorIs(t, err, search.ErrNoResults)
	assert.Equal(t, "No relevant bills found for your query", agg.Snapshot().Message)
}

func TestLoadMore_FailureKeepsResults(t *testing.T) {
	backend := &pagedBackend{
		pages: map[int]search.Page{1: {Bills: makeBills(1, 5, 0), HasMore: true}},
		errs:  map[int]error{2: errors.New("connection reset")},
	}
	agg := New(backend, nil, nil)
	ctx := context.Background()

	_, err := agg.Search(ctx, "defense")
	require.NoError(t, err)

	res, err := agg.LoadMore(ctx)
	assert.ErrorIs(t, err, ErrLoadMoreFailed)
	assert.True(t, res.HasMore)

	snap := agg.Snapshot()
	assert.Len(t, snap.Bills, 5)
	assert.Equal(t, 1, snap.Page)
	assert.False(t, snap.IsLoading)
}

func TestLoadMore_EmptyContinuationIsSilent(t *testing.T) {
	backend := &pagedBackend{pages: map[int]search.Page{
		1: {Bills: makeBills(1, 2, 0), HasMore: true},
		2: {HasMore: false},
	}}
	agg := New(backend, nil, nil)
	ctx := context.Background()

	_, err := agg.Search(ctx, "economy")
	require.NoError(t, err)
	res, err := agg.LoadMore(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Added)

	snap := agg.Snapshot()
	assert.Len(t, snap.Bills, 2)
	assert.False(t, snap.HasMore)
}

func TestMerge_SkipsRepeatedNumbers(t *testing.T) {
	first := makeBills(1, 3, 0)
	backend := &pagedBackend{pages: map[int]search.Page{
		1: {Bills: first, HasMore: true},
		2: {Bills: append(makeBills(3, 1, 0), makeBills(4, 2, 0)...)},
	}}
	agg := New(backend, nil, nil)
	ctx := context.Background()

	_, err := agg.Search(ctx, "x")
	require.NoError(t, err)
	res, err := agg.LoadMore(ctx)
	require.NoError(t, err)

	assert.Len(t, res.Added, 2)
	assert.Len(t, agg.Snapshot().Bills, 5)
}

func TestSearch_BusyWhileLoading(t *testing.T) {
	backend := newGatedBackend(search.Page{Bills: makeBills(1, 1, 0)})
	agg := New(backend, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := agg.Search(ctx, "first")
		done <- err
	}()
	<-backend.started

	assert.True(t, agg.Snapshot().IsLoading)
	_, err := agg.Search(ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)

	res, err := agg.LoadMore(ctx)
	assert.NoError(t, err)
	assert.Empty(t, res.Added)

	close(backend.release)
	require.NoError(t, <-done)
	assert.Equal(t, "first", agg.Snapshot().Query)
}

func TestReset_DropsInFlightResponse(t *testing.T) {
	backend := newGatedBackend(search.Page{Bills: makeBills(1, 2, 0)})
	agg := New(backend, nil, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := agg.Search(ctx, "immigration")
		done <- err
	}()
	<-backend.started

	agg.Reset()
	close(backend.release)

	assert.ErrorIs(t, <-done, ErrStale)
	snap := agg.Snapshot()
	assert.Empty(t, snap.Bills)
	assert.Empty(t, snap.Query)
	assert.False(t, snap.IsLoading)
}

func TestSearch_TimeoutReturnsToIdle(t *testing.T) {
	backend := newGatedBackend(search.Page{})
	agg := New(backend, nil, nil, WithTimeout(20*time.Millisecond))

	_, err := agg.Search(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, agg.Snapshot().IsLoading)
}

func TestAutoSave_OnlyNewHighRelevanceBills(t *testing.T) {
	high := makeBills(1, 2, 0.9)
	low := makeBills(10, 2, 0.7)
	backend := &pagedBackend{pages: map[int]search.Page{
		1: {Bills: append(append([]models.Bill{}, high...), low...), HasMore: true},
		2: {Bills: append(makeBills(1, 1, 0.9), makeBills(20, 1, 0.95)...)},
	}}
	saver := &recordingSaver{}
	settings := fixedSettings{AgeGroup: models.AgeAdult, AutoSave: true, DetailLevel: models.DetailDetailed}
	agg := New(backend, saver, settings)
	ctx := context.Background()

	res, err := agg.Search(ctx, "healthcare")
	require.NoError(t, err)
	assert.Equal(t, 2, res.AutoSaved)

	res, err = agg.LoadMore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoSaved)

	assert.Equal(t, []string{"H.R. 1", "H.R. 2", "H.R. 20"}, saver.saved)
}

func TestAutoSave_Disabled(t *testing.T) {
	backend := &pagedBackend{pages: map[int]search.Page{1: {Bills: makeBills(1, 2, 0.99)}}}
	saver := &recordingSaver{}
	agg := New(backend, saver, fixedSettings(models.DefaultSettings()))

	_, err := agg.Search(context.Background(), "education")
	require.NoError(t, err)
	assert.Empty(t, saver.saved)
}

func TestSearch_ForwardsPersonalization(t *testing.T) {
	backend := &pagedBackend{pages: map[int]search.Page{1: {Bills: makeBills(1, 1, 0)}}}
	agg := New(backend, nil, fixedSettings{AgeGroup: models.AgeTeen, DetailLevel: models.DetailBrief}, WithPerPage(8))

	_, err := agg.Search(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, models.AgeTeen, backend.requests[0].AgeGroup)
	assert.Equal(t, models.DetailBrief, backend.requests[0].DetailLevel)
	assert.Equal(t, 8, backend.requests[0].PerPage)
}

func TestSorted(t *testing.T) {
	bills := []models.Bill{
		{Number: "A", Date: "01/01/2020", RelevanceScore: 0.9},
		{Number: "B", Date: "01/01/2024", RelevanceScore: 0.1},
	}
	for i := range bills {
		ingest.NormalizeBill(&bills[i])
	}
	agg := New(&pagedBackend{pages: map[int]search.Page{1: {Bills: bills}}}, nil, nil)
	_, err := agg.Search(context.Background(), "x")
	require.NoError(t, err)

	assert.Equal(t, "B", agg.Sorted(ingest.SortByDate)[0].Number)
	assert.Equal(t, "A", agg.Sorted(ingest.SortByRelevance)[0].Number)
	// sorting a copy leaves the accumulator in date order
	assert.Equal(t, "B", agg.Snapshot().Bills[0].Number)
}
