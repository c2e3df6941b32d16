// Package storage provides the durable key-value layer behind the saved-bills
// and settings stores. Values are opaque bytes (JSON in practice).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Well-known keys.
const (
	KeySavedBills   = "savedBills"
	KeyUserSettings = "userSettings"
)

// KV is a minimal durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Namespaced prefixes every key so several users can share one backend.
type Namespaced struct {
	kv     KV
	prefix string
}

// WithNamespace returns kv unchanged for an empty namespace.
func WithNamespace(kv KV, namespace string) KV {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return kv
	}
	return &Namespaced{kv: kv, prefix: namespace + ":"}
}

func (n *Namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.kv.Delete(ctx, n.prefix+key)
}

// Close is a no-op: the shared backend is owned by whoever created it.
func (n *Namespaced) Close() error { return nil }

// Options selects and configures a backend.
type Options struct {
	Driver        string // memory, sqlite, postgres, redis
	Path          string // sqlite file
	DatabaseURL   string // postgres
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Log           *zap.Logger
}

// Open builds the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "sqlite":
		return NewSQLite(ctx, opts.Path)
	case "memory":
		return NewMemory(), nil
	case "postgres":
		return NewPostgres(ctx, opts.DatabaseURL, opts.Log)
	case "redis":
		return NewRedis(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
