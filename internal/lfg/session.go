package lfg

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

// Outcome is the non-error result of a membership operation.
type Outcome int

const (
	Joined Outcome = iota + 1
	AlreadyMember
	Left
	NotMember
)

func (o Outcome) String() string {
	switch o {
	case Joined:
		return "joined"
	case AlreadyMember:
		return "already_member"
	case Left:
		return "left"
	case NotMember:
		return "not_member"
	default:
		return "unknown"
	}
}

// Result is returned by membership operations. Ready is non-nil only for the
// single join that first brings an activity up to its minimum.
type Result struct {
	Outcome Outcome
	Ready   *ReadyEvent
}

// Limits caps what a session may hold. Zero means no limit.
type Limits struct {
	MaxActivities int
	MaxNameLength int
}

// Session is one looking-for-group session bound to a chat context.
// Every mutation runs under the session mutex, so a capacity check and the
// membership change it guards are atomic, and so is the ready latch.
type Session struct {
	id        string
	contextID string
	creatorID string
	createdAt time.Time
	limits    Limits

	mu         sync.Mutex
	activities map[string]*activity
	order      []string
	messageRef string
	ended      bool
}

func newSession(id, contextID, creatorID string, limits Limits, createdAt time.Time) *Session {
	return &Session{
		id:         id,
		contextID:  contextID,
		creatorID:  creatorID,
		createdAt:  createdAt,
		limits:     limits,
		activities: make(map[string]*activity),
	}
}

// ID returns the session's unique id, distinct per start even when the same
// context is reused.
func (s *Session) ID() string { return s.id }

func (s *Session) ContextID() string { return s.contextID }

func (s *Session) CreatorID() string { return s.creatorID }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// MessageRef returns the handle of the rendered session message, if any.
func (s *Session) MessageRef() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageRef
}

// SetMessageRef records the rendered message handle. Only the first
// non-empty ref sticks; later calls return false.
func (s *Session) SetMessageRef(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messageRef != "" || ref == "" {
		return false
	}
	s.messageRef = ref
	return true
}

// AddActivity adds a named activity. It returns false, without touching the
// existing activity, when the name is already present.
func (s *Session) AddActivity(name string, min, max Bound) (bool, error) {
	if err := s.validateName(name); err != nil {
		return false, err
	}
	if err := ValidateBounds(min, max); err != nil {
		return false, fmt.Errorf("activity %q (min %s, max %s): %w", name, min, max, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLive(); err != nil {
		return false, err
	}
	if _, ok := s.activities[name]; ok {
		return false, nil
	}
	if s.limits.MaxActivities > 0 && len(s.order) >= s.limits.MaxActivities {
		return false, fmt.Errorf("adding %q: %w (%d)", name, ErrActivityLimit, s.limits.MaxActivities)
	}
	s.activities[name] = newActivity(name, min, max)
	s.order = append(s.order, name)
	return true, nil
}

func (s *Session) validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if s.limits.MaxNameLength > 0 && utf8.RuneCountInString(name) > s.limits.MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, s.limits.MaxNameLength)
	}
	return nil
}

// JoinActivity adds userID to the named activity.
func (s *Session) JoinActivity(name, userID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookupLive(name)
	if err != nil {
		return Result{}, err
	}
	return s.join(a, userID)
}

// LeaveActivity removes userID from the named activity. Leaving never clears
// the ready latch.
func (s *Session) LeaveActivity(name, userID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookupLive(name)
	if err != nil {
		return Result{}, err
	}
	return s.leave(a, userID), nil
}

// ToggleMembership leaves the activity if userID is a member and joins it
// otherwise, as one atomic step.
func (s *Session) ToggleMembership(name, userID string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookupLive(name)
	if err != nil {
		return Result{}, err
	}
	if a.has(userID) {
		return s.leave(a, userID), nil
	}
	return s.join(a, userID)
}

// ReadyActivities lists activities at or above their minimum that have not
// been announced yet, in insertion order. Join announces readiness on its
// own; this is for diagnostics and recovery.
func (s *Session) ReadyActivities() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, name := range s.order {
		a := s.activities[name]
		if a.ready() && !a.notified {
			names = append(names, name)
		}
	}
	return names
}

// ListActivities returns snapshots of all activities in insertion order.
func (s *Session) ListActivities() []ActivityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ActivityRecord, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.activities[name].record())
	}
	return out
}

// GetActivity returns a snapshot of the named activity.
func (s *Session) GetActivity(name string) (ActivityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.lookup(name)
	if err != nil {
		return ActivityRecord{}, err
	}
	return a.record(), nil
}

// ActivityAt returns the name of the activity at index i in insertion order.
func (s *Session) ActivityAt(i int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.order) {
		return "", false
	}
	return s.order[i], true
}

// Ended reports whether the session has been removed from its registry.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// markEnded latches the session closed; membership changes fail afterwards.
func (s *Session) markEnded() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

// checkLive must be called with s.mu held.
func (s *Session) checkLive() error {
	if s.ended {
		return fmt.Errorf("session in %s has ended: %w", s.contextID, ErrNotFound)
	}
	return nil
}

// lookupLive must be called with s.mu held.
func (s *Session) lookupLive(name string) (*activity, error) {
	if err := s.checkLive(); err != nil {
		return nil, err
	}
	return s.lookup(name)
}

func (s *Session) lookup(name string) (*activity, error) {
	a, ok := s.activities[name]
	if !ok {
		return nil, fmt.Errorf("activity %q: %w", name, ErrNotFound)
	}
	return a, nil
}

// join must be called with s.mu held.
func (s *Session) join(a *activity, userID string) (Result, error) {
	if a.has(userID) {
		return Result{Outcome: AlreadyMember}, nil
	}
	if a.full() {
		max, _ := a.max.Value()
		return Result{}, fmt.Errorf("activity %q (%d/%d): %w", a.name, len(a.order), max, ErrFull)
	}
	a.add(userID)

	res := Result{Outcome: Joined}
	if a.ready() && !a.notified {
		a.notified = true
		min, _ := a.min.Value()
		res.Ready = &ReadyEvent{
			SessionID:    s.id,
			ContextID:    s.contextID,
			Activity:     a.name,
			Participants: a.participants(),
			MinPlayers:   min,
		}
	}
	return res, nil
}

// leave must be called with s.mu held.
func (s *Session) leave(a *activity, userID string) Result {
	if !a.has(userID) {
		return Result{Outcome: NotMember}
	}
	a.remove(userID)
	return Result{Outcome: Left}
}
