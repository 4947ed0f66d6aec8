// internal/config/store.go

package config

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"avoidance-core/internal/minio"
	"avoidance-core/internal/schema"
)

// Loader returns the behavior templates for a vehicle.
type Loader interface {
	Load(ctx context.Context, vehicle string) (*Templates, error)
}

// Store serves templates kept in an object store under
// templates/<vehicle>.yaml, with optional overrides/<vehicle>.yaml layered on
// top. Parsed documents are cached until the next refresh.
type Store struct {
	objects   minio.ObjectStore
	bucket    string
	validator *schema.Validator
	logger    *slog.Logger

	cache     map[string]*Templates
	cacheLock sync.RWMutex
}

// NewStore returns a store and starts clearing its cache every refresh until
// ctx is done. A non-positive refresh keeps the cache forever.
func NewStore(ctx context.Context, objects minio.ObjectStore, bucket string, v *schema.Validator, refresh time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		objects:   objects,
		bucket:    bucket,
		validator: v,
		logger:    logger,
		cache:     make(map[string]*Templates),
	}
	if refresh > 0 {
		go s.backgroundRefresh(ctx, refresh)
	}
	return s
}

// Load returns the merged templates for vehicle.
func (s *Store) Load(ctx context.Context, vehicle string) (*Templates, error) {
	s.cacheLock.RLock()
	if ts, ok := s.cache[vehicle]; ok {
		s.cacheLock.RUnlock()
		return ts, nil
	}
	s.cacheLock.RUnlock()

	key := path.Join("templates", vehicle+".yaml")
	data, err := s.objects.GetObject(ctx, s.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("load templates %s: %w", key, err)
	}
	ts, err := Parse(data, s.validator)
	if err != nil {
		return nil, err
	}
	if ts.Vehicle != vehicle {
		return nil, fmt.Errorf("templates %s are for vehicle %s", key, ts.Vehicle)
	}

	if override := s.loadOverride(ctx, vehicle); override != nil {
		ts = Merge(ts, override)
		if err := validate.Struct(ts); err != nil {
			return nil, fmt.Errorf("override for %s: %w", vehicle, err)
		}
	}

	s.cacheLock.Lock()
	s.cache[vehicle] = ts
	s.cacheLock.Unlock()
	return ts, nil
}

// loadOverride returns nil when there is no usable override.
func (s *Store) loadOverride(ctx context.Context, vehicle string) *Templates {
	key := path.Join("overrides", vehicle+".yaml")
	data, err := s.objects.GetObject(ctx, s.bucket, key)
	if err != nil {
		s.logger.Debug("no template override", "key", key, "error", err)
		return nil
	}
	o, err := parseOverride(data)
	if err != nil {
		s.logger.Warn("ignoring template override", "key", key, "error", err)
		return nil
	}
	return o
}

// Invalidate drops every cached document.
func (s *Store) Invalidate() {
	s.cacheLock.Lock()
	s.cache = make(map[string]*Templates)
	s.cacheLock.Unlock()
}

func (s *Store) backgroundRefresh(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Invalidate()
		}
	}
}
