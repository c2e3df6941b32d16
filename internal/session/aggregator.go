// Package session owns the transient search session: it dispatches pages to a
// backend, merges them into one date-ordered accumulator, and guards against
// overlapping and stale requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/ingest"
	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/metrics"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/search"
)

const (
	DefaultTimeout = 30 * time.Second
	// AutoSaveThreshold is the relevance a bill must exceed to be auto-saved.
	AutoSaveThreshold = 0.7
)

var (
	ErrEmptyQuery     = errors.New("please enter a search term")
	ErrBusy           = errors.New("a search is already in progress")
	ErrStale          = errors.New("response arrived for a superseded search")
	ErrLoadMoreFailed = errors.New("failed to load more bills")
)

// Saver receives auto-saved bills.
type Saver interface {
	Save(ctx context.Context, bill models.Bill) (bool, error)
}

// SettingsSource supplies the current preferences at dispatch time.
type SettingsSource interface {
	Current() models.UserSettings
}

// Session is a point-in-time view of the search state.
type Session struct {
	Query      string        `json:"query"`
	Page       int           `json:"page"`
	Bills      []models.Bill `json:"bills"`
	HasMore    bool          `json:"hasMore"`
	IsLoading  bool          `json:"isLoading"`
	TotalFound int           `json:"totalFound"`
	Message    string        `json:"message,omitempty"`
}

// Result describes what one dispatch changed.
type Result struct {
	Added     []models.Bill
	AutoSaved int
	HasMore   bool
}

type Aggregator struct {
	mu    sync.Mutex
	state Session
	token uuid.UUID

	backend  search.Backend
	saver    Saver
	settings SettingsSource
	timeout  time.Duration
	perPage  int
	log      *zap.Logger
	metrics  metrics.Recorder
}

type Option func(*Aggregator)

func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithPerPage(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.perPage = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) { a.log = logger.OrNop(l) }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(a *Aggregator) {
		if m != nil {
			a.metrics = m
		}
	}
}

// New builds an idle aggregator. saver and settings may be nil, which disables auto-save.
func New(backend search.Backend, saver Saver, settings SettingsSource, opts ...Option) *Aggregator {
	a := &Aggregator{
		backend:  backend,
		saver:    saver,
		settings: settings,
		timeout:  DefaultTimeout,
		perPage:  search.DefaultPerPage,
		log:      zap.NewNop(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Search starts a new query, discarding the previous accumulator, and fetches page 1.
func (a *Aggregator) Search(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		a.metrics.RecordSearch("first", metrics.OutcomeRejected)
		return Result{}, ErrEmptyQuery
	}

	a.mu.Lock()
	if a.state.IsLoading {
		a.mu.Unlock()
		a.metrics.RecordSearch("first", metrics.OutcomeRejected)
		return Result{}, ErrBusy
	}
	a.state = Session{Query: query, IsLoading: true}
	a.token = uuid.New()
	token := a.token
	a.mu.Unlock()

	return a.dispatch(ctx, token, query, 1)
}

// LoadMore fetches the next page. It does nothing unless more pages exist and no request is in flight.
func (a *Aggregator) LoadMore(ctx context.Context) (Result, error) {
	a.mu.Lock()
	if !a.state.HasMore || a.state.IsLoading {
		a.mu.Unlock()
		return Result{}, nil
	}
	a.state.IsLoading = true
	token := a.token
	query := a.state.Query
	page := a.state.Page + 1
	a.mu.Unlock()

	return a.dispatch(ctx, token, query, page)
}

// Reset returns the session to idle. A response still in flight is dropped on arrival.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Session{}
	a.token = uuid.New()
}

// Snapshot returns a copy of the current session.
func (a *Aggregator) Snapshot() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	s.Bills = append([]models.Bill(nil), a.state.Bills...)
	return s
}

// Sorted returns the accumulated bills in the given presentation order.
func (a *Aggregator) Sorted(mode ingest.SortMode) []models.Bill {
	bills := a.Snapshot().Bills
	ingest.SortBills(bills, mode)
	return bills
}

func (a *Aggregator) dispatch(ctx context.Context, token uuid.UUID, query string, page int) (Result, error) {
	kind := "first"
	if page > 1 {
		kind = "more"
	}

	var prefs models.UserSettings
	if a.settings != nil {
		prefs = a.settings.Current()
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.backend.Search(callCtx, search.Request{
		Query:       query,
		Page:        page,
		PerPage:     a.perPage,
		AgeGroup:    prefs.AgeGroup,
		DetailLevel: prefs.DetailLevel,
	})
	a.metrics.RecordSearchLatency(time.Since(start))
	a.metrics.RecordDroppedSegments(resp.Dropped)
	if err == nil {
		a.metrics.RecordBillsParsed(len(resp.Bills))
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("search timed out after %s: %w", a.timeout, err)
	}

	a.mu.Lock()
	if token != a.token {
		a.mu.Unlock()
		a.metrics.RecordSearch(kind, metrics.OutcomeStale)
		a.log.Debug("dropping stale response", zap.String("query", query), zap.Int("page", page))
		return Result{}, ErrStale
	}
	a.state.IsLoading = false

	if err != nil {
		if page == 1 {
			a.state.Bills = nil
			a.state.HasMore = false
			a.state.TotalFound = 0
			a.mu.Unlock()
			outcome := metrics.OutcomeFailure
			if errors.Is(err, search.ErrNoResults) {
				outcome = metrics.OutcomeEmpty
			}
			a.metrics.RecordSearch(kind, outcome)
			a.log.Warn("search failed", zap.String("query", query), zap.Error(err))
			return Result{}, err
		}
		hasMore := a.state.HasMore
		a.mu.Unlock()
		a.metrics.RecordSearch(kind, metrics.OutcomeFailure)
		a.log.Warn("load more failed", zap.String("query", query), zap.Int("page", page), zap.Error(err))
		return Result{HasMore: hasMore}, fmt.Errorf("%w: %w", ErrLoadMoreFailed, err)
	}

	if page == 1 && len(resp.Bills) == 0 {
		a.state.HasMore = false
		a.state.Message = resp.Message
		a.mu.Unlock()
		a.metrics.RecordSearch(kind, metrics.OutcomeEmpty)
		return Result{}, search.ErrNoResults
	}

	added := a.mergeLocked(resp.Bills)
	a.state.HasMore = resp.HasMore
	a.state.Page = page
	if resp.TotalFound > 0 {
		a.state.TotalFound = resp.TotalFound
	}
	if resp.Message != "" {
		a.state.Message = resp.Message
	}
	ingest.SortByDateDesc(a.state.Bills)
	result := Result{Added: added, HasMore: a.state.HasMore}
	a.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	if len(added) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	a.metrics.RecordSearch(kind, outcome)
	a.log.Info("search page merged",
		zap.String("query", query),
		zap.Int("page", page),
		zap.Int("added", len(added)),
		zap.Bool("has_more", result.HasMore))

	if prefs.AutoSave {
		result.AutoSaved = a.autoSave(ctx, added)
	}
	return result, nil
}

// mergeLocked appends bills whose number is not yet accumulated and returns them.
func (a *Aggregator) mergeLocked(bills []models.Bill) []models.Bill {
	seen := make(map[string]struct{}, len(a.state.Bills)+len(bills))
	for _, b := range a.state.Bills {
		seen[b.Number] = struct{}{}
	}
	added := make([]models.Bill, 0, len(bills))
	for _, b := range bills {
		if _, dup := seen[b.Number]; dup {
			continue
		}
		seen[b.Number] = struct{}{}
		added = append(added, b)
	}
	a.state.Bills = append(a.state.Bills, added...)
	return added
}

func (a *Aggregator) autoSave(ctx context.Context, added []models.Bill) int {
	if a.saver == nil {
		return 0
	}
	saved := 0
	for _, b := range added {
		if b.RelevanceScore <= AutoSaveThreshold {
			continue
		}
		ok, err := a.saver.Save(ctx, b)
		if err != nil {
			a.log.Warn("auto-save failed", zap.String("number", b.Number), zap.Error(err))
			continue
		}
		if ok {
			saved++
		}
	}
	return saved
}
