package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"golang.org/x/sync/singleflight"
)

// Registry hands out one Store per cart session, opening it from persistence
// on first use. Idle stores are evicted by Sweep and reloaded on demand.
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*entry
	group       singleflight.Group
	persistence Persistence
	logg        *logger.Logger
	now         func() time.Time
}

type entry struct {
	store    *Store
	lastSeen time.Time
}

func NewRegistry(persistence Persistence, logg *logger.Logger) (*Registry, error) {
	if persistence == nil {
		return nil, errors.New("cart persistence is required")
	}
	return &Registry{
		entries:     map[string]*entry{},
		persistence: persistence,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// Get returns the store for sessionID, opening it once even under concurrent requests.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Store, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("cart session is required")
	}

	if s := r.lookup(sessionID); s != nil {
		return s, nil
	}

	v, err, _ := r.group.Do(sessionID, func() (any, error) {
		if s := r.lookup(sessionID); s != nil {
			return s, nil
		}
		s, err := Open(ctx, r.persistence, sessionID, r.logg)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.entries[sessionID] = &entry{store: s, lastSeen: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (r *Registry) lookup(sessionID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil
	}
	e.lastSeen = r.now()
	return e.store
}

// Sweep evicts stores untouched for longer than idle and returns how many were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			dropped++
		}
	}
	return dropped
}

// Len reports how many sessions are resident.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RunSweeper evicts idle stores every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 && r.logg != nil {
				r.logg.Debug(r.logg.WithField(ctx, "evicted", n), "cart registry sweep")
			}
		}
	}
}
