package discord

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/lfg"
)

const (
	customIDPrefix = "lfg"
	kindToggle     = "toggle"
	kindAdd        = "add"

	inputName = "name"
	inputMin  = "min_players"
	inputMax  = "max_players"
)

var errNotNumber = errors.New("player count is not a number")

// toggleID is the custom id of the join/leave button for activity index i.
func toggleID(sessionID string, i int) string {
	return customIDPrefix + ":" + kindToggle + ":" + sessionID + ":" + strconv.Itoa(i)
}

// addID is the custom id of the "Add Game" button and its modal.
func addID(sessionID string) string {
	return customIDPrefix + ":" + kindAdd + ":" + sessionID
}

// customID is a parsed component or modal custom id.
type customID struct {
	kind      string
	sessionID string
	index     int
}

func parseCustomID(s string) (customID, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || parts[0] != customIDPrefix {
		return customID{}, false
	}
	id := customID{kind: parts[1], sessionID: parts[2]}
	switch {
	case id.kind == kindAdd && len(parts) == 3:
		return id, true
	case id.kind == kindToggle && len(parts) == 4:
		n, err := strconv.Atoi(parts[3])
		if err != nil || n < 0 {
			return customID{}, false
		}
		id.index = n
		return id, true
	}
	return customID{}, false
}

// parseCount reads an optional player count typed into the modal.
func parseCount(s string) (lfg.Bound, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return lfg.Unbounded(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return lfg.Bound{}, errNotNumber
	}
	return lfg.Limit(n), nil
}

// boundsProblem returns the user-facing message for invalid bounds, or "".
func boundsProblem(min, max lfg.Bound) string {
	lo, hasMin := min.Value()
	hi, hasMax := max.Value()
	switch {
	case hasMin && lo < 1:
		return msgInvalidMin
	case hasMax && hi < 1:
		return msgInvalidMax
	case hasMin && hasMax && hi < lo:
		return msgInvalidRange
	}
	return ""
}

// modalValues collects text input values by custom id.
func modalValues(components []discordgo.MessageComponent) map[string]string {
	values := make(map[string]string)
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok {
				values[in.CustomID] = in.Value
			}
		}
	}
	return values
}

// commandOptions indexes slash command options by name.
func commandOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func optionBound(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) lfg.Bound {
	if o, ok := opts[name]; ok {
		return lfg.Limit(int(o.IntValue()))
	}
	return lfg.Unbounded()
}
