package lfg

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingObserver) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recordingObserver) count(kind EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestDispatcher() (*Dispatcher, *recordingObserver) {
	d := NewDispatcher(NewRegistry(Limits{MaxActivities: 24, MaxNameLength: 100}))
	obs := &recordingObserver{}
	d.Subscribe(obs)
	return d, obs
}

func TestDispatcherReadyNotification(t *testing.T) {
	d, obs := newTestDispatcher()
	ctx := context.Background()

	var got []ReadyEvent
	d.SetNotifier(NotifierFunc(func(ctx context.Context, ev ReadyEvent) error {
		got = append(got, ev)
		return nil
	}))

	if _, err := d.Start(ctx, StartCommand{
		ContextID: "C1",
		UserID:    "A",
		Initial:   &ActivitySpec{Name: "Chess", MinPlayers: Limit(2), MaxPlayers: Limit(2)},
	}); err != nil {
		t.Fatal(err)
	}

	d.Join(ctx, MemberCommand{ContextID: "C1", Activity: "Chess", UserID: "A"})
	d.Join(ctx, MemberCommand{ContextID: "C1", Activity: "Chess", UserID: "B"})
	if _, err := d.Join(ctx, MemberCommand{ContextID: "C1", Activity: "Chess", UserID: "C"}); !errors.Is(err, ErrFull) {
		t.Errorf("C join = %v, want ErrFull", err)
	}
	d.Leave(ctx, MemberCommand{ContextID: "C1", Activity: "Chess", UserID: "A"})
	d.Join(ctx, MemberCommand{ContextID: "C1", Activity: "Chess", UserID: "A"})

	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].Activity != "Chess" || got[0].ContextID != "C1" || len(got[0].Participants) != 2 {
		t.Errorf("notification = %+v", got[0])
	}
	if n := obs.count(EventActivityReady); n != 1 {
		t.Errorf("activity_ready events = %d, want 1", n)
	}
	if n := obs.count(EventActionRejected); n != 1 {
		t.Errorf("action_rejected events = %d, want 1", n)
	}
}

func TestDispatcherNotifierFailureKeepsState(t *testing.T) {
	d, obs := newTestDispatcher()
	ctx := context.Background()
	d.SetNotifier(NotifierFunc(func(ctx context.Context, ev ReadyEvent) error {
		return errors.New("discord unavailable")
	}))

	d.Start(ctx, StartCommand{ContextID: "C", UserID: "u", Initial: &ActivitySpec{Name: "Go", MinPlayers: Limit(1)}})
	res, err := d.Join(ctx, MemberCommand{ContextID: "C", Activity: "Go", UserID: "u"})
	if err != nil {
		t.Fatalf("join should succeed despite notifier failure: %v", err)
	}
	if res.Outcome != Joined || res.Ready == nil {
		t.Errorf("result = %+v", res)
	}

	s, _ := d.Registry().GetSession("C")
	rec, _ := s.GetActivity("Go")
	if !rec.Notified || !rec.HasParticipant("u") {
		t.Errorf("state rolled back: %+v", rec)
	}

	var readyOutcome string
	for _, ev := range obs.events {
		if ev.Kind == EventActivityReady {
			readyOutcome = ev.Outcome
		}
	}
	if readyOutcome != "notify_failed" {
		t.Errorf("ready outcome = %q, want notify_failed", readyOutcome)
	}
}

func TestDispatcherNotifierRunsWithoutSessionLock(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	// The notifier reads the session; it would deadlock if called under the lock.
	d.SetNotifier(NotifierFunc(func(ctx context.Context, ev ReadyEvent) error {
		s, err := d.Registry().GetSession(ev.ContextID)
		if err != nil {
			return err
		}
		_ = Render(s)
		return nil
	}))

	d.Start(ctx, StartCommand{ContextID: "C", UserID: "u", Initial: &ActivitySpec{Name: "Go", MinPlayers: Limit(1)}})
	if _, err := d.Toggle(ctx, MemberCommand{ContextID: "C", Activity: "Go", UserID: "u"}); err != nil {
		t.Fatal(err)
	}
}

func TestDispatcherLifecycleEvents(t *testing.T) {
	d, obs := newTestDispatcher()
	ctx := context.Background()

	s, err := d.Start(ctx, StartCommand{ContextID: "C", UserID: "owner"})
	if err != nil {
		t.Fatal(err)
	}
	s.SetMessageRef("msg-9")

	added, err := d.AddActivity(ctx, AddCommand{ContextID: "C", UserID: "owner", Name: "Go", MinPlayers: Limit(2)})
	if err != nil || !added {
		t.Fatalf("add = %v, %v", added, err)
	}
	added, err = d.AddActivity(ctx, AddCommand{ContextID: "C", UserID: "owner", Name: "Go"})
	if err != nil || added {
		t.Fatalf("duplicate add = %v, %v", added, err)
	}
	if _, err := d.AddActivity(ctx, AddCommand{ContextID: "C", Name: "Bad", MinPlayers: Limit(5), MaxPlayers: Limit(3)}); !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("invalid add = %v, want ErrInvalidBounds", err)
	}
	if _, err := d.End(ctx, EndCommand{ContextID: "C", UserID: "stranger"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger end = %v, want ErrForbidden", err)
	}
	if _, err := d.End(ctx, EndCommand{ContextID: "C", UserID: "owner"}); err != nil {
		t.Fatal(err)
	}

	want := []EventKind{
		EventSessionStarted,
		EventActivityAdded,
		EventActivityAdded,
		EventActionRejected,
		EventActionRejected,
		EventSessionEnded,
	}
	got := obs.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	last := obs.events[len(obs.events)-1]
	if last.MessageRef != "msg-9" {
		t.Errorf("session_ended message_ref = %q, want msg-9", last.MessageRef)
	}
	if obs.events[2].Outcome != "exists" {
		t.Errorf("duplicate add outcome = %q, want exists", obs.events[2].Outcome)
	}
	if obs.events[4].Outcome != "forbidden" {
		t.Errorf("rejected end outcome = %q, want forbidden", obs.events[4].Outcome)
	}
	for _, ev := range obs.events {
		if ev.ID == "" || ev.Time.IsZero() {
			t.Errorf("event %s missing id or time", ev.Kind)
		}
	}
}

func TestDispatcherUnknownSession(t *testing.T) {
	d, obs := newTestDispatcher()
	ctx := context.Background()

	if _, err := d.Toggle(ctx, MemberCommand{ContextID: "nope", Activity: "Go", UserID: "u"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("toggle = %v, want ErrNotFound", err)
	}
	if _, err := d.AddActivity(ctx, AddCommand{ContextID: "nope", Name: "Go"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("add = %v, want ErrNotFound", err)
	}
	if n := obs.count(EventActionRejected); n != 2 {
		t.Errorf("rejections = %d, want 2", n)
	}
}

func TestDispatcherConcurrentJoinsNotifyOnce(t *testing.T) {
	d, _ := newTestDispatcher()
	ctx := context.Background()

	var mu sync.Mutex
	notified := 0
	d.SetNotifier(NotifierFunc(func(ctx context.Context, ev ReadyEvent) error {
		mu.Lock()
		notified++
		mu.Unlock()
		return nil
	}))
	d.Start(ctx, StartCommand{ContextID: "C", UserID: "u", Initial: &ActivitySpec{Name: "Raid", MinPlayers: Limit(4)}})

	var wg sync.WaitGroup
	for _, u := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			d.Join(ctx, MemberCommand{ContextID: "C", Activity: "Raid", UserID: u})
		}(u)
	}
	wg.Wait()

	if notified != 1 {
		t.Errorf("notifications = %d, want 1", notified)
	}
}
