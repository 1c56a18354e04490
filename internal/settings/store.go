// Package settings holds the current display settings, loaded from the
// backend and cached locally for offline starts.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"
	"example/merch-display/internal/repository"
)

// ErrNotRefreshed means the update was stored but the merged settings could
// not be read back
var ErrNotRefreshed = errors.New("settings saved but not refreshed")

// Backend is the remote source of truth; *backend.Client satisfies it
type Backend interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, partial json.RawMessage) error
}

// Store is the injected settings source shared by the display and the API
type Store struct {
	backend Backend
	db      *sql.DB

	mu        sync.RWMutex
	current   models.Settings
	loaded    bool
	observers []func(models.Settings)
}

// NewStore creates a store; db may be nil to disable the local cache
func NewStore(b Backend, db *sql.DB) *Store {
	return &Store{backend: b, db: db}
}

// OnChange registers fn to be called whenever the settings change
func (s *Store) OnChange(fn func(models.Settings)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Get returns the current settings; zero values resolve to defaults
func (s *Store) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loaded reports whether settings were loaded at least once
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Load fetches the settings from the backend. When the backend cannot be
// reached the cached snapshot is served instead.
func (s *Store) Load(ctx context.Context) (models.Settings, error) {
	remote, err := s.backend.GetSettings(ctx)
	if err == nil {
		s.set(remote)
		if s.db != nil {
			if cerr := repository.SaveSettings(s.db, remote); cerr != nil {
				logger.Log.Warnw("Failed to cache settings", "error", cerr)
			}
		}
		return remote, nil
	}

	logger.Log.Errorw("Failed to load settings", "error", err)
	if s.db == nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	cached, cerr := repository.LoadSettings(s.db)
	if cerr != nil {
		if !errors.Is(cerr, repository.ErrNoSnapshot) {
			logger.Log.Warnw("Failed to read cached settings", "error", cerr)
		}
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	logger.Log.Warnw("Serving cached settings", "organization_id", cached.OrganizationID)
	s.set(cached)
	return cached, nil
}

// Update writes the settings and refetches them, so readers see the
// backend's merged result. Concurrent writers: last write wins.
func (s *Store) Update(ctx context.Context, partial json.RawMessage) (models.Settings, error) {
	if err := s.backend.UpdateSettings(ctx, partial); err != nil {
		logger.Log.Errorw("Failed to update settings", "error", err)
		return models.Settings{}, fmt.Errorf("update settings: %w", err)
	}
	logger.Log.Infow("Settings updated")

	fresh, err := s.backend.GetSettings(ctx)
	if err != nil {
		logger.Log.Warnw("Settings saved but refetch failed", "error", err)
		return models.Settings{}, fmt.Errorf("%w: %w", ErrNotRefreshed, err)
	}
	s.set(fresh)
	if s.db != nil {
		if cerr := repository.SaveSettings(s.db, fresh); cerr != nil {
			logger.Log.Warnw("Failed to cache settings", "error", cerr)
		}
	}
	return fresh, nil
}

// Watch reloads the settings every interval until ctx is done
func (s *Store) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Load(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Warnw("Settings refresh failed", "error", err)
			}
		}
	}
}

func (s *Store) set(v models.Settings) {
	s.mu.Lock()
	changed := !s.loaded || !reflect.DeepEqual(s.current, v)
	s.current = v
	s.loaded = true
	obs := append([]func(models.Settings){}, s.observers...)
	s.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range obs {
		fn(v)
	}
}
