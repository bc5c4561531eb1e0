package lfg

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActivitySpec describes an activity to seed a new session with.
type ActivitySpec struct {
	Name       string
	MinPlayers Bound
	MaxPlayers Bound
}

// Registry maps chat contexts to their live session. At most one session
// exists per context. Thread-safe via sync.RWMutex.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limits   Limits
	now      func() time.Time
}

// NewRegistry creates an empty registry whose sessions enforce limits.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		limits:   limits,
		now:      time.Now,
	}
}

// StartSession creates the session for contextID. A supplied initial
// activity is validated first; if it is invalid nothing is created.
func (r *Registry) StartSession(contextID, creatorID string, initial *ActivitySpec) (*Session, error) {
	s := newSession(uuid.NewString(), contextID, creatorID, r.limits, r.now())
	if initial != nil {
		if _, err := s.AddActivity(initial.Name, initial.MinPlayers, initial.MaxPlayers); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[contextID]; ok {
		return nil, fmt.Errorf("session in %s (started by %s): %w", contextID, existing.creatorID, ErrAlreadyExists)
	}
	r.sessions[contextID] = s
	return s, nil
}

// GetSession returns the live session for contextID.
func (r *Registry) GetSession(contextID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[contextID]
	if !ok {
		return nil, fmt.Errorf("session in %s: %w", contextID, ErrNotFound)
	}
	return s, nil
}

// EndSession removes the session for contextID if requesterID created it or
// privileged is set. The removed session is returned so the caller can tear
// down whatever it rendered for it.
func (r *Registry) EndSession(contextID, requesterID string, privileged bool) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[contextID]
	if !ok {
		return nil, fmt.Errorf("session in %s: %w", contextID, ErrNotFound)
	}
	if requesterID != s.creatorID && !privileged {
		return nil, fmt.Errorf("ending session in %s: %w", contextID, ErrForbidden)
	}
	delete(r.sessions, contextID)
	s.markEnded()
	return s, nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions returns all live sessions, oldest first.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].contextID < out[j].contextID
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}
