package lfg

import (
	"context"
	"errors"
	"time"
)

// ReadyEvent is produced once per activity, by the join that first brings it
// up to its minimum player count.
type ReadyEvent struct {
	SessionID    string
	ContextID    string
	Activity     string
	Participants []string
	MinPlayers   int
}

// Notifier announces ready activities. It is called after the join has been
// committed and all session locks are released; an error is logged and never
// undoes the join.
type Notifier interface {
	OnActivityReady(ctx context.Context, ev ReadyEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev ReadyEvent) error

func (f NotifierFunc) OnActivityReady(ctx context.Context, ev ReadyEvent) error {
	return f(ctx, ev)
}

// EventKind names what happened in an Event.
type EventKind string

const (
	EventSessionStarted EventKind = "session_started"
	EventSessionEnded   EventKind = "session_ended"
	EventActivityAdded  EventKind = "activity_added"
	EventMemberJoined   EventKind = "member_joined"
	EventMemberLeft     EventKind = "member_left"
	EventActivityReady  EventKind = "activity_ready"
	EventActionRejected EventKind = "action_rejected"
)

// Event is the committed-state record fanned out to observers after every
// dispatched command.
type Event struct {
	ID           string    `json:"id"`
	Kind         EventKind `json:"kind"`
	Action       string    `json:"action"`
	Outcome      string    `json:"outcome"`
	ContextID    string    `json:"context_id"`
	SessionID    string    `json:"session_id,omitempty"`
	Activity     string    `json:"activity,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	MessageRef   string    `json:"message_ref,omitempty"`
	Participants []string  `json:"participants,omitempty"`
	Time         time.Time `json:"time"`
}

// Observer receives events after state has been committed. Implementations
// must not call back into the Dispatcher synchronously.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

func (f ObserverFunc) Observe(ev Event) { f(ev) }

// ErrorKind maps a core error to a short stable label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidBounds):
		return "invalid_bounds"
	case errors.Is(err, ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, ErrActivityLimit):
		return "activity_limit"
	case errors.Is(err, ErrFull):
		return "full"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
