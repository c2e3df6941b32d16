// Package settings loads and saves the user's preferences.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/david/bill-finder/internal/logger"
	"github.com/david/bill-finder/internal/models"
	"github.com/david/bill-finder/internal/storage"
)

var ErrInvalidSettings = errors.New("invalid settings")

type Store struct {
	mu      sync.RWMutex
	current models.UserSettings
	kv      storage.KV
	log     *zap.Logger
}

func New(kv storage.KV, log *zap.Logger) *Store {
	return &Store{
		current: models.DefaultSettings(),
		kv:      kv,
		log:     logger.OrNop(log),
	}
}

// Load reads settings from storage. Missing or malformed records fall back to
// defaults. Absent or out-of-range fields take their default value individually.
func (s *Store) Load(ctx context.Context) models.UserSettings {
	loaded := models.DefaultSettings()

	raw, err := s.kv.Get(ctx, storage.KeyUserSettings)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.log.Warn("failed to read settings, using defaults", zap.Error(err))
	default:
		if err := json.Unmarshal(raw, &loaded); err != nil {
			s.log.Warn("settings are malformed, using defaults", zap.Error(err))
			loaded = models.DefaultSettings()
		} else if !loaded.Valid() {
			s.log.Warn("settings hold unknown values, resetting them to defaults",
				zap.String("age_group", string(loaded.AgeGroup)),
				zap.String("detail_level", string(loaded.DetailLevel)))
			def := models.DefaultSettings()
			if !loaded.AgeGroup.Valid() {
				loaded.AgeGroup = def.AgeGroup
			}
			if !loaded.DetailLevel.Valid() {
				loaded.DetailLevel = def.DetailLevel
			}
		}
	}

	s.mu.Lock()
	s.current = loaded
	s.mu.Unlock()
	return loaded
}

// Save validates and overwrites the stored record wholesale.
func (s *Store) Save(ctx context.Context, next models.UserSettings) error {
	if !next.Valid() {
		return fmt.Errorf("%w: age group %q, detail level %q", ErrInvalidSettings, next.AgeGroup, next.DetailLevel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next

	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.kv.Set(ctx, storage.KeyUserSettings, raw); err != nil {
		s.log.Warn("failed to persist settings", zap.Error(err))
	}
	return nil
}

// Current returns the last loaded or saved value.
func (s *Store) Current() models.UserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}
