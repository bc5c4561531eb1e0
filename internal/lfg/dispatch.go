package lfg

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Command action labels, as they appear in Event.Action.
const (
	ActionStart  = "start"
	ActionEnd    = "end"
	ActionAdd    = "add"
	ActionJoin   = "join"
	ActionLeave  = "leave"
	ActionToggle = "toggle"
)

// StartCommand opens a session in a context, optionally seeded.
type StartCommand struct {
	ContextID string
	UserID    string
	Initial   *ActivitySpec
}

// EndCommand closes the session in a context.
type EndCommand struct {
	ContextID  string
	UserID     string
	Privileged bool
}

// AddCommand adds an activity to the session in a context.
type AddCommand struct {
	ContextID  string
	UserID     string
	Name       string
	MinPlayers Bound
	MaxPlayers Bound
}

// MemberCommand is a join, leave or toggle on one activity.
type MemberCommand struct {
	ContextID string
	Activity  string
	UserID    string
}

// Dispatcher is the single entry point adapters use to act on sessions. Each
// method commits its mutation through the Registry/Session, then, with no
// locks held, delivers ready notifications and fans events out to observers.
type Dispatcher struct {
	registry *Registry

	mu        sync.RWMutex
	notifier  Notifier
	observers []Observer

	now func() time.Time
}

// NewDispatcher creates a dispatcher over reg. Notifier and observers are
// attached afterwards because adapters usually need the dispatcher first.
func NewDispatcher(reg *Registry) *Dispatcher {
	return &Dispatcher{registry: reg, now: time.Now}
}

// Registry returns the registry for read-only queries.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// SetNotifier replaces the ready notifier. nil disables notifications.
func (d *Dispatcher) SetNotifier(n Notifier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notifier = n
}

// Subscribe adds an observer.
func (d *Dispatcher) Subscribe(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// Start handles StartCommand.
func (d *Dispatcher) Start(ctx context.Context, cmd StartCommand) (*Session, error) {
	s, err := d.registry.StartSession(cmd.ContextID, cmd.UserID, cmd.Initial)
	if err != nil {
		d.reject(ActionStart, cmd.ContextID, "", cmd.UserID, err)
		return nil, err
	}
	slog.Info("lfg session started", "context_id", cmd.ContextID, "session_id", s.ID(), "user_id", cmd.UserID)
	d.emit(Event{
		Kind:      EventSessionStarted,
		Action:    ActionStart,
		Outcome:   "started",
		ContextID: cmd.ContextID,
		SessionID: s.ID(),
		UserID:    cmd.UserID,
	})
	if cmd.Initial != nil {
		d.emit(Event{
			Kind:      EventActivityAdded,
			Action:    ActionStart,
			Outcome:   "added",
			ContextID: cmd.ContextID,
			SessionID: s.ID(),
			Activity:  cmd.Initial.Name,
			UserID:    cmd.UserID,
		})
	}
	return s, nil
}

// End handles EndCommand and returns the removed session.
func (d *Dispatcher) End(ctx context.Context, cmd EndCommand) (*Session, error) {
	s, err := d.registry.EndSession(cmd.ContextID, cmd.UserID, cmd.Privileged)
	if err != nil {
		d.reject(ActionEnd, cmd.ContextID, "", cmd.UserID, err)
		return nil, err
	}
	slog.Info("lfg session ended", "context_id", cmd.ContextID, "session_id", s.ID(), "user_id", cmd.UserID, "privileged", cmd.Privileged)
	d.emit(Event{
		Kind:       EventSessionEnded,
		Action:     ActionEnd,
		Outcome:    "ended",
		ContextID:  cmd.ContextID,
		SessionID:  s.ID(),
		UserID:     cmd.UserID,
		MessageRef: s.MessageRef(),
	})
	return s, nil
}

// AddActivity handles AddCommand. It returns false when the name was already
// present.
func (d *Dispatcher) AddActivity(ctx context.Context, cmd AddCommand) (bool, error) {
	s, err := d.registry.GetSession(cmd.ContextID)
	if err != nil {
		d.reject(ActionAdd, cmd.ContextID, cmd.Name, cmd.UserID, err)
		return false, err
	}
	added, err := s.AddActivity(cmd.Name, cmd.MinPlayers, cmd.MaxPlayers)
	if err != nil {
		d.reject(ActionAdd, cmd.ContextID, cmd.Name, cmd.UserID, err)
		return false, err
	}
	outcome := "added"
	if !added {
		outcome = "exists"
	}
	d.emit(Event{
		Kind:      EventActivityAdded,
		Action:    ActionAdd,
		Outcome:   outcome,
		ContextID: cmd.ContextID,
		SessionID: s.ID(),
		Activity:  cmd.Name,
		UserID:    cmd.UserID,
	})
	return added, nil
}

// Join handles a join MemberCommand.
func (d *Dispatcher) Join(ctx context.Context, cmd MemberCommand) (Result, error) {
	return d.member(ctx, ActionJoin, cmd, (*Session).JoinActivity)
}

// Leave handles a leave MemberCommand.
func (d *Dispatcher) Leave(ctx context.Context, cmd MemberCommand) (Result, error) {
	return d.member(ctx, ActionLeave, cmd, (*Session).LeaveActivity)
}

// Toggle handles a toggle MemberCommand, the operation behind the
// interactive join/leave control.
func (d *Dispatcher) Toggle(ctx context.Context, cmd MemberCommand) (Result, error) {
	return d.member(ctx, ActionToggle, cmd, (*Session).ToggleMembership)
}

func (d *Dispatcher) member(ctx context.Context, action string, cmd MemberCommand, op func(*Session, string, string) (Result, error)) (Result, error) {
	s, err := d.registry.GetSession(cmd.ContextID)
	if err != nil {
		d.reject(action, cmd.ContextID, cmd.Activity, cmd.UserID, err)
		return Result{}, err
	}
	res, err := op(s, cmd.Activity, cmd.UserID)
	if err != nil {
		d.reject(action, cmd.ContextID, cmd.Activity, cmd.UserID, err)
		return Result{}, err
	}

	kind := EventMemberJoined
	if res.Outcome == Left || res.Outcome == NotMember {
		kind = EventMemberLeft
	}
	d.emit(Event{
		Kind:      kind,
		Action:    action,
		Outcome:   res.Outcome.String(),
		ContextID: cmd.ContextID,
		SessionID: s.ID(),
		Activity:  cmd.Activity,
		UserID:    cmd.UserID,
	})

	if res.Ready != nil {
		d.deliverReady(ctx, action, cmd.UserID, *res.Ready)
	}
	return res, nil
}

func (d *Dispatcher) deliverReady(ctx context.Context, action, userID string, ev ReadyEvent) {
	d.mu.RLock()
	n := d.notifier
	d.mu.RUnlock()

	outcome := "skipped"
	if n != nil {
		if err := n.OnActivityReady(ctx, ev); err != nil {
			outcome = "notify_failed"
			slog.Warn("ready notification failed",
				"context_id", ev.ContextID,
				"activity", ev.Activity,
				"error", err,
			)
		} else {
			outcome = "notified"
		}
	}
	slog.Info("lfg activity ready",
		"context_id", ev.ContextID,
		"activity", ev.Activity,
		"participants", len(ev.Participants),
		"min_players", ev.MinPlayers,
		"outcome", outcome,
	)
	d.emit(Event{
		Kind:         EventActivityReady,
		Action:       action,
		Outcome:      outcome,
		ContextID:    ev.ContextID,
		SessionID:    ev.SessionID,
		Activity:     ev.Activity,
		UserID:       userID,
		Participants: ev.Participants,
	})
}

func (d *Dispatcher) reject(action, contextID, activity, userID string, err error) {
	kind := ErrorKind(err)
	slog.Debug("lfg action rejected",
		"action", action,
		"context_id", contextID,
		"activity", activity,
		"user_id", userID,
		"outcome", kind,
		"error", err,
	)
	d.emit(Event{
		Kind:      EventActionRejected,
		Action:    action,
		Outcome:   kind,
		ContextID: contextID,
		Activity:  activity,
		UserID:    userID,
	})
}

func (d *Dispatcher) emit(ev Event) {
	ev.ID = uuid.NewString()
	ev.Time = d.now()

	d.mu.RLock()
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	for _, o := range observers {
		o.Observe(ev)
	}
}
