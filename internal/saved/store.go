// Package saved keeps the user's bookmarked bills, mirrored to durable storage
// under a single key on every mutation.
package saved

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/metrics"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/storage"
)

// ErrMissingNumber rejects bills that have no identity.
var ErrMissingNumber = errors.New("bill has no number")

// Store is safe for concurrent use. The in-memory list is authoritative;
// storage write failures are logged and otherwise ignored.
type Store struct {
	mu    sync.RWMutex
	bills []models.SavedBill

	kv      storage.KV
	log     *zap.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = logger.OrNop(l) }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock overrides the SavedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open hydrates the store once from kv. Missing or unreadable data yields an empty store.
func Open(ctx context.Context, kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		log:     zap.NewNop(),
		metrics: metrics.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := kv.Get(ctx, storage.KeySavedBills)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.log.Warn("failed to read saved bills, starting empty", zap.Error(err))
	default:
		var bills []models.SavedBill
		if err := json.Unmarshal(raw, &bills); err != nil {
			s.log.Warn("saved bills are malformed, starting empty", zap.Error(err))
		} else {
			s.bills = bills
		}
	}
	return s
}

// Save bookmarks bill. It returns false when a bill with the same number is already saved.
func (s *Store) Save(ctx context.Context, bill models.Bill) (bool, error) {
	if strings.TrimSpace(bill.Number) == "" {
		return false, ErrMissingNumber
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(bill.Number) >= 0 {
		return false, nil
	}
	s.bills = append(s.bills, models.SavedBill{Bill: bill, SavedAt: s.now().UTC()})
	s.metrics.RecordSavedMutation("save")
	s.flushLocked(ctx)
	return true, nil
}

// Remove drops every entry with number. Removing an unknown number is a no-op.
func (s *Store) Remove(ctx context.Context, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]models.SavedBill, 0, len(s.bills))
	for _, b := range s.bills {
		if b.Number != number {
			kept = append(kept, b)
		}
	}
	s.bills = kept
	s.metrics.RecordSavedMutation("remove")
	s.flushLocked(ctx)
}

// ListAll returns the saved bills in insertion order. ok is false when nothing is saved.
func (s *Store) ListAll() (bills []models.SavedBill, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), len(s.bills) > 0
}

func (s *Store) IsSaved(number string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(number) >= 0
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bills)
}

func (s *Store) indexLocked(number string) int {
	for i, b := range s.bills {
		if b.Number == number {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() []models.SavedBill {
	out := make([]models.SavedBill, len(s.bills))
	copy(out, s.bills)
	return out
}

// flushLocked rewrites the whole list. Holding the lock keeps writes in mutation order.
func (s *Store) flushLocked(ctx context.Context) {
	bills := s.bills
	if bills == nil {
		bills = []models.SavedBill{}
	}
	raw, err := json.Marshal(bills)
	if err != nil {
		s.log.Error("failed to encode saved bills", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, storage.KeySavedBills, raw); err != nil {
		s.log.Warn("failed to persist saved bills", zap.Int("count", len(bills)), zap.Error(err))
	}
}
