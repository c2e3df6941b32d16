// Package workspace wires one user's search session, saved bills and settings
// over a shared storage backend.
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/metrics"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/saved"
	"github.com/david/bill-finder/internal/search"
	"github.com/david/bill-finder/internal/session"
	"github.com/david/bill-finder/internal/settings"
	"github.com/david/bill-finder/internal/storage"
)

// Details serves the auxiliary per-bill lookups. Only the structured service provides it.
type Details interface {
	Detail(ctx context.Context, number string) (models.BillDetail, error)
	Progression(ctx context.Context, number string) ([]models.TimelineEvent, error)
	Heatmap(ctx context.Context, number string) (models.VoteHeatmap, error)
	Status(ctx context.Context) (search.Status, error)
}

type Deps struct {
	KV      storage.KV
	Backend search.Backend
	Timeout time.Duration
	PerPage int
	Log     *zap.Logger
	Metrics metrics.Recorder
}

type Workspace struct {
	UserID   uuid.UUID
	Session  *session.Aggregator
	Saved    *saved.Store
	Settings *settings.Store
}

// Open hydrates the stores for userID. uuid.Nil maps to the un-namespaced local keys.
func Open(ctx context.Context, deps Deps, userID uuid.UUID) *Workspace {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("user_id", userID.String()))

	kv := deps.KV
	if userID != uuid.Nil {
		kv = storage.WithNamespace(kv, userID.String())
	}

	prefs := settings.New(kv, log)
	prefs.Load(ctx)

	bookmarks := saved.Open(ctx, kv, saved.WithLogger(log), saved.WithMetrics(deps.Metrics))

	agg := session.New(deps.Backend, bookmarks, prefs,
		session.WithTimeout(deps.Timeout),
		session.WithPerPage(deps.PerPage),
		session.WithLogger(log),
		session.WithMetrics(deps.Metrics),
	)

	return &Workspace{
		UserID:   userID,
		Session:  agg,
		Saved:    bookmarks,
		Settings: prefs,
	}
}

// Manager lazily opens one workspace per user and keeps it for the process lifetime.
type Manager struct {
	deps Deps

	mu         sync.Mutex
	workspaces map[uuid.UUID]*Workspace
}

func NewManager(deps Deps) *Manager {
	return &Manager{deps: deps, workspaces: make(map[uuid.UUID]*Workspace)}
}

func (m *Manager) Get(ctx context.Context, userID uuid.UUID) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[userID]; ok {
		return ws
	}
	ws := Open(ctx, m.deps, userID)
	m.workspaces[userID] = ws
	return ws
}

// Len reports how many workspaces are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}
