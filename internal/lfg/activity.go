package lfg

import "fmt"

// ActivityRecord is a point-in-time copy of one activity in a session.
// Participants are listed in join order.
type ActivityRecord struct {
	Name         string
	MinPlayers   Bound
	MaxPlayers   Bound
	Participants []string
	Notified     bool
}

// Count returns the number of participants.
func (a ActivityRecord) Count() int {
	return len(a.Participants)
}

// IsFull reports whether the activity has reached its maximum.
func (a ActivityRecord) IsFull() bool {
	max, ok := a.MaxPlayers.Value()
	return ok && len(a.Participants) >= max
}

// HasParticipant reports whether userID is in the activity.
func (a ActivityRecord) HasParticipant(userID string) bool {
	for _, p := range a.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// activity is the live, mutable record owned by a Session. All access goes
// through the owning session's mutex.
type activity struct {
	name     string
	min      Bound
	max      Bound
	members  map[string]struct{}
	order    []string
	notified bool
}

func newActivity(name string, min, max Bound) *activity {
	return &activity{
		name:    name,
		min:     min,
		max:     max,
		members: make(map[string]struct{}),
	}
}

func (a *activity) has(userID string) bool {
	_, ok := a.members[userID]
	return ok
}

func (a *activity) add(userID string) {
	a.members[userID] = struct{}{}
	a.order = append(a.order, userID)
	a.mustBeConsistent()
}

func (a *activity) remove(userID string) {
	delete(a.members, userID)
	for i, id := range a.order {
		if id == userID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.mustBeConsistent()
}

func (a *activity) full() bool {
	max, ok := a.max.Value()
	return ok && len(a.order) >= max
}

// ready reports whether the participant count meets the minimum.
func (a *activity) ready() bool {
	min, ok := a.min.Value()
	return ok && len(a.order) >= min
}

func (a *activity) participants() []string {
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

func (a *activity) record() ActivityRecord {
	return ActivityRecord{
		Name:         a.name,
		MinPlayers:   a.min,
		MaxPlayers:   a.max,
		Participants: a.participants(),
		Notified:     a.notified,
	}
}

// mustBeConsistent panics if the membership bookkeeping is broken. Reaching
// this is a bug in this package, never a caller error.
func (a *activity) mustBeConsistent() {
	if len(a.order) != len(a.members) {
		panic(fmt.Sprintf("lfg: activity %q membership out of sync: %d ordered, %d members", a.name, len(a.order), len(a.members)))
	}
	if max, ok := a.max.Value(); ok && len(a.order) > max {
		panic(fmt.Sprintf("lfg: activity %q over capacity: %d > %d", a.name, len(a.order), max))
	}
}
