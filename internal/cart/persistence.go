package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// ErrCorruptRecord is returned by Load when a stored cart cannot be decoded.
var ErrCorruptRecord = errors.New("cart record is corrupt")

// Persistence loads and saves whole cart snapshots under a key.
// Load returns an empty slice and no error when nothing is stored.
type Persistence interface {
	Load(ctx context.Context, key string) ([]Line, error)
	Save(ctx context.Context, key string, lines []Line) error
}

type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// RedisPersistence stores each cart as a JSON array under sf:cart:<session>.
type RedisPersistence struct {
	store kv
	ttl   time.Duration
}

func NewRedisPersistence(client *redis.Client, ttl time.Duration) (*RedisPersistence, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisPersistence{store: client, ttl: ttl}, nil
}

func (p *RedisPersistence) Load(ctx context.Context, key string) ([]Line, error) {
	raw, err := p.store.Get(ctx, p.store.CartKey(key))
	if redis.IsNil(err) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return decodeLines([]byte(raw))
}

// Save rewrites the full snapshot and refreshes the TTL; an empty cart deletes the key.
func (p *RedisPersistence) Save(ctx context.Context, key string, lines []Line) error {
	if len(lines) == 0 {
		if err := p.store.Del(ctx, p.store.CartKey(key)); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	}
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := p.store.Set(ctx, p.store.CartKey(key), payload, p.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// MemoryPersistence keeps encoded snapshots in process memory.
type MemoryPersistence struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{records: map[string][]byte{}}
}

func (p *MemoryPersistence) Load(_ context.Context, key string) ([]Line, error) {
	p.mu.Lock()
	raw, ok := p.records[key]
	p.mu.Unlock()
	if !ok {
		return []Line{}, nil
	}
	return decodeLines(raw)
}

func (p *MemoryPersistence) Save(_ context.Context, key string, lines []Line) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	p.mu.Lock()
	p.records[key] = payload
	p.mu.Unlock()
	return nil
}

// Raw returns the stored bytes for key, for tests and debugging.
func (p *MemoryPersistence) Raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, ok := p.records[key]
	return raw, ok
}

func decodeLines(raw []byte) ([]Line, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []Line{}, nil
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return lines, nil
}
