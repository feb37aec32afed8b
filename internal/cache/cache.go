// Package cache provides a TTL-bounded LRU, a loader that coalesces concurrent
// misses and a janitor that expires entries in the background.
package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"haushaltsbuch/internal/log"
)

type Cleaner interface {
	CleanExpired() int
}

// Loader fronts a slow lookup with an LRU. Concurrent misses for the same key
// share one call to load.
type Loader[K comparable, V any] struct {
	lru   *LRU[K, V]
	group singleflight.Group
	load  func(ctx context.Context, key K) (V, error)
}

func NewLoader[K comparable, V any](lru *LRU[K, V], load func(ctx context.Context, key K) (V, error)) *Loader[K, V] {
	return &Loader[K, V]{lru: lru, load: load}
}

// Get returns the cached value or loads it. Errors are not cached.
func (l *Loader[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := l.lru.Get(key); ok {
		return v, nil
	}
	res, err, _ := l.group.Do(fmt.Sprint(key), func() (any, error) {
		v, err := l.load(ctx, key)
		if err != nil {
			return v, err
		}
		l.lru.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

// Invalidate forgets key so the next Get reloads it.
func (l *Loader[K, V]) Invalidate(key K) {
	l.lru.Delete(key)
}

// Janitor periodically expires entries of the registered caches.
type Janitor struct {
	caches []Cleaner
	logger *log.Logger
}

func NewJanitor(logger *log.Logger, caches ...Cleaner) *Janitor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Janitor{caches: caches, logger: logger.WithComponent(log.ComponentCache)}
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.DebugContext(ctx, "Expired cache entries removed", log.FieldCount, n)
			}
		}
	}
}

func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}
