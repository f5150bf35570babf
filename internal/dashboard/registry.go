package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultIdleTTL is how long an unused session controller is kept.
const DefaultIdleTTL = 30 * time.Minute

// Factory builds a fresh controller for a new session.
type Factory func() *Controller

// Registry keeps one controller per session and evicts idle ones.
type Registry struct {
	factory Factory
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	ctrl     *Controller
	lastSeen time.Time
}

// NewRegistry constructs a registry. A non-positive ttl falls back to DefaultIdleTTL.
func NewRegistry(factory Factory, ttl time.Duration, logger *slog.Logger) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory: factory,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*registryEntry),
	}
}

// Get returns the controller of sessionID, creating it when missing. created
// reports whether the caller should restore and initialize it.
func (r *Registry) Get(sessionID string) (ctrl *Controller, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if entry, ok := r.entries[sessionID]; ok {
		entry.lastSeen = now
		return entry.ctrl, false
	}
	ctrl = r.factory()
	r.entries[sessionID] = &registryEntry{ctrl: ctrl, lastSeen: now}
	return ctrl, true
}

// Drop forgets the controller of sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Sweep evicts controllers idle for longer than the ttl and returns how many.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.ttl)
	evicted := 0
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			evicted++
		}
	}
	return evicted
}

// Len reports the number of live controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run sweeps every half ttl until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("evicted idle dashboards", slog.Int("count", n), slog.Int("live", r.Len()))
			}
		}
	}
}
