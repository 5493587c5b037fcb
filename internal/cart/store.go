package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Store owns one shopper's cart. Only its methods mutate the lines, and
// every mutation writes the full snapshot back through Persistence.
type Store struct {
	mu          sync.RWMutex
	lines       []Line
	version     uint64
	key         string
	persistence Persistence
	logg        *logger.Logger
}

// Open builds a Store and reloads it once from persistence. A missing record
// yields an empty cart; a corrupt one is discarded with a warning.
func Open(ctx context.Context, persistence Persistence, key string, logg *logger.Logger) (*Store, error) {
	if persistence == nil {
		return nil, errors.New("cart persistence is required")
	}
	if key == "" {
		return nil, errors.New("cart key is required")
	}

	lines, err := persistence.Load(ctx, key)
	switch {
	case errors.Is(err, ErrCorruptRecord):
		if logg != nil {
			logg.Warn(logg.WithCartSession(ctx, key), "discarding unreadable cart record")
		}
		lines = nil
	case err != nil:
		return nil, err
	}

	s := &Store{key: key, persistence: persistence, logg: logg}
	for _, l := range lines {
		s.merge(normalize(l))
	}
	return s, nil
}

// Key returns the persistence key the store writes to.
func (s *Store) Key() string {
	return s.key
}

// Add merges line into the cart. A line with the same (product, variant)
// accumulates quantity and takes the incoming name, price and thumbnail;
// otherwise the line is appended. Quantities below 1 count as 1 and
// every line saturates at MaxQuantity.
func (s *Store) Add(ctx context.Context, line Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.merge(normalize(line))
	return s.commit(ctx)
}

// Remove drops the line for (productID, variant); absent keys are a no-op.
func (s *Store) Remove(ctx context.Context, productID string, variant *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := normalize(Line{ProductID: productID, Variant: variant})
	idx := s.indexOf(target.Key())
	if idx < 0 {
		return nil
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	return s.commit(ctx)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	return s.commit(ctx)
}

// Total sums unit price times quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sum(s.lines)
}

// Lines returns a copy of the lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Line, len(s.lines))
	for i, l := range s.lines {
		out[i] = l.clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) merge(line Line) {
	if idx := s.indexOf(line.Key()); idx >= 0 {
		existing := s.lines[idx]
		// both sides are already clamped, so the sum cannot wrap
		line.Quantity = clampQuantity(line.Quantity + existing.Quantity)
		s.lines[idx] = line
		return
	}
	s.lines = append(s.lines, line)
}

func (s *Store) indexOf(k Key) int {
	for i, l := range s.lines {
		if l.Key() == k {
			return i
		}
	}
	return -1
}

// commit bumps the version and persists the snapshot. The in-memory change
// stands even when the write fails.
func (s *Store) commit(ctx context.Context) error {
	s.version++
	snapshot := make([]Line, len(s.lines))
	copy(snapshot, s.lines)
	if err := s.persistence.Save(ctx, s.key, snapshot); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithCartSession(ctx, s.key), "cart save failed", err)
		}
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

func sum(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
