package repository

import (
	"context"
	"sync"
	"time"

	"github.com/meeyouu/skiniveAPI/internal/imageprocessor"
	"github.com/meeyouu/skiniveAPI/internal/relay"
)

// SessionState is what the dashboard remembers for one browser session:
// the sidebar configuration and the last uploaded image.
type SessionState struct {
	Config relay.Config          `json:"config"`
	Image  *imageprocessor.Image `json:"image,omitempty"`
}

// HasImage reports whether an image has been uploaded.
func (s *SessionState) HasImage() bool {
	return s != nil && s.Image != nil && len(s.Image.Data) > 0
}

// SessionRepository stores session state.
type SessionRepository interface {
	// Load returns the stored state, or defaults when the session is unknown.
	Load(ctx context.Context, sessionID string) (*SessionState, error)
	Save(ctx context.Context, sessionID string, state *SessionState) error
}

// DefaultMaxSessions bounds the sessions held by MemorySessionRepository.
const DefaultMaxSessions = 1000

type memoryEntry struct {
	state     SessionState
	expiresAt time.Time
}

// MemorySessionRepository keeps sessions in process memory.
type MemorySessionRepository struct {
	defaults    relay.Config
	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemorySessionRepository creates a store whose entries expire ttl after
// their last save. New sessions start from defaults. Once maxSessions are
// held, saving a new session evicts the one closest to expiry; a
// non-positive maxSessions means DefaultMaxSessions.
func NewMemorySessionRepository(defaults relay.Config, ttl time.Duration, maxSessions int) *MemorySessionRepository {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemorySessionRepository{
		defaults:    defaults,
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
		entries:     make(map[string]*memoryEntry),
	}
}

// Load returns a copy of the stored state.
func (r *MemorySessionRepository) Load(ctx context.Context, sessionID string) (*SessionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[sessionID]
	if !ok {
		return &SessionState{Config: r.defaults}, nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.entries, sessionID)
		return &SessionState{Config: r.defaults}, nil
	}
	state := entry.state
	return &state, nil
}

// Save replaces the stored state and refreshes its expiry. Expired entries
// of other sessions are dropped on the way.
func (r *MemorySessionRepository) Save(ctx context.Context, sessionID string, state *SessionState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, entry := range r.entries {
		if r.ttl > 0 && now.After(entry.expiresAt) {
			delete(r.entries, id)
		}
	}
	if _, ok := r.entries[sessionID]; !ok && len(r.entries) >= r.maxSessions {
		r.evictOldest()
	}
	r.entries[sessionID] = &memoryEntry{state: *state, expiresAt: now.Add(r.ttl)}
	return nil
}

func (r *MemorySessionRepository) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, entry := range r.entries {
		if oldestID == "" || entry.expiresAt.Before(oldest) {
			oldestID, oldest = id, entry.expiresAt
		}
	}
	delete(r.entries, oldestID)
}
