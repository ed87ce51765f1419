package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"hirepal/internal/domain"
)

const defaultCleanupInterval = 10 * time.Minute

type memorySession struct {
	mu    sync.Mutex
	turns []domain.Turn
}

// MemoryRegistry keeps sessions in process memory. Sessions idle for longer
// than the TTL are evicted; a zero TTL keeps them for the process lifetime.
type MemoryRegistry struct {
	store *cache.Cache
}

// NewMemoryRegistry creates an in-memory registry with a sliding TTL.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	exp := ttl
	cleanup := defaultCleanupInterval
	if ttl <= 0 {
		exp = cache.NoExpiration
		cleanup = 0
	}
	return &MemoryRegistry{store: cache.New(exp, cleanup)}
}

func (r *MemoryRegistry) Create(_ context.Context) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		id := NewID()
		if err := r.store.Add(id, &memorySession{}, cache.DefaultExpiration); err == nil {
			return id, nil
		}
	}
	return "", errors.New("session: could not allocate a unique id")
}

func (r *MemoryRegistry) Append(_ context.Context, sessionID string, turns ...domain.Turn) error {
	sessionID = strings.TrimSpace(sessionID)
	s, err := r.get(sessionID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.turns = append(s.turns, turns...)
	s.mu.Unlock()

	// Refresh the sliding expiry; Replace fails if the entry was evicted meanwhile.
	if err := r.store.Replace(sessionID, s, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	return nil
}

func (r *MemoryRegistry) History(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s, err := r.get(sessionID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out, nil
}

func (r *MemoryRegistry) Expire(_ context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if _, err := r.get(sessionID); err != nil {
		return err
	}
	r.store.Delete(sessionID)
	return nil
}

// Len reports the number of live sessions.
func (r *MemoryRegistry) Len() int {
	return r.store.ItemCount()
}

func (r *MemoryRegistry) get(sessionID string) (*memorySession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrNotFound
	}
	v, ok := r.store.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	s, ok := v.(*memorySession)
	if !ok {
		return nil, fmt.Errorf("session: unexpected entry type %T", v)
	}
	return s, nil
}
