package checkout

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// GatewayFactory builds the gateway used for one cart session.
type GatewayFactory func(sessionID string) Gateway

// Sessions keeps one orchestrator per cart session.
type Sessions struct {
	mu         sync.Mutex
	entries    map[string]*session
	newGateway GatewayFactory
	opts       Options
	now        func() time.Time
}

type session struct {
	orch     *Orchestrator
	lastSeen time.Time
}

func NewSessions(factory GatewayFactory, opts Options) (*Sessions, error) {
	if factory == nil {
		return nil, errors.New("gateway factory is required")
	}
	return &Sessions{
		entries:    map[string]*session{},
		newGateway: factory,
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Get returns the orchestrator bound to sessionID and cart. A finished checkout
// is replaced once the shopper puts something in the cart again, and a cart
// that was reopened gets a fresh orchestrator.
func (s *Sessions) Get(sessionID string, cart CartSource) (*Orchestrator, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("cart session is required")
	}
	if cart == nil {
		return nil, errors.New("cart source is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sessionID]; ok && e.orch.cart == cart {
		if !(e.orch.State() == StateSucceeded && cart.Total().IsPositive()) {
			e.lastSeen = s.now()
			return e.orch, nil
		}
	}

	orch, err := New(cart, s.newGateway(sessionID), s.opts)
	if err != nil {
		return nil, err
	}
	s.entries[sessionID] = &session{orch: orch, lastSeen: s.now()}
	return orch, nil
}

// Peek returns the orchestrator for sessionID without creating one. An
// orchestrator bound to a different cart store, left behind when the cart
// registry evicted and reopened the session, is dropped unless it is
// mid-confirmation.
func (s *Sessions) Peek(sessionID string, cart CartSource) (*Orchestrator, bool) {
	sessionID = strings.TrimSpace(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		return nil, false
	}
	if e.orch.cart != cart {
		if e.orch.State() != StateConfirming {
			delete(s.entries, sessionID)
		}
		return nil, false
	}
	return e.orch, true
}

// Sweep drops idle orchestrators that are not mid-confirmation.
func (s *Sessions) Sweep(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) && e.orch.State() != StateConfirming {
			delete(s.entries, id)
			dropped++
		}
	}
	return dropped
}
