package lfg

import "fmt"

// Status is the readiness shown next to an activity with a minimum.
type Status string

const (
	StatusNone    Status = ""
	StatusWaiting Status = "waiting"
	StatusReady   Status = "ready"
)

// ActivityView is the display projection of one activity.
type ActivityView struct {
	Name         string   `json:"name"`
	Label        string   `json:"label"`
	Status       Status   `json:"status,omitempty"`
	Participants []string `json:"participants"`
	Full         bool     `json:"full"`
	Notified     bool     `json:"notified"`
}

// View is the display projection of a session.
type View struct {
	SessionID  string         `json:"session_id"`
	ContextID  string         `json:"context_id"`
	CreatorID  string         `json:"creator_id"`
	MessageRef string         `json:"message_ref,omitempty"`
	Activities []ActivityView `json:"activities"`
}

// CountLabel renders the participant count against the bounds:
//
//	no bounds  (N players)
//	max only   (N/max)
//	min only   (N/min+)     plus Ready/Waiting
//	both       (N/min-max)  plus Ready/Waiting
func CountLabel(n int, min, max Bound) (string, Status) {
	lo, hasMin := min.Value()
	hi, hasMax := max.Value()

	switch {
	case !hasMin && !hasMax:
		return fmt.Sprintf("(%d players)", n), StatusNone
	case !hasMin:
		return fmt.Sprintf("(%d/%d)", n, hi), StatusNone
	case !hasMax:
		return fmt.Sprintf("(%d/%d+)", n, lo), readiness(n, lo)
	default:
		return fmt.Sprintf("(%d/%d-%d)", n, lo, hi), readiness(n, lo)
	}
}

func readiness(n, min int) Status {
	if n >= min {
		return StatusReady
	}
	return StatusWaiting
}

// Render projects the current state of s. It has no side effects; adapters
// call it after every mutation to refresh what they display.
func Render(s *Session) View {
	records := s.ListActivities()
	v := View{
		SessionID:  s.ID(),
		ContextID:  s.ContextID(),
		CreatorID:  s.CreatorID(),
		MessageRef: s.MessageRef(),
		Activities: make([]ActivityView, 0, len(records)),
	}
	for _, r := range records {
		label, status := CountLabel(r.Count(), r.MinPlayers, r.MaxPlayers)
		v.Activities = append(v.Activities, ActivityView{
			Name:         r.Name,
			Label:        label,
			Status:       status,
			Participants: r.Participants,
			Full:         r.IsFull(),
			Notified:     r.Notified,
		})
	}
	return v
}
