package discord

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/lfg"
)

func TestParseCustomID(t *testing.T) {
	tests := []struct {
		in     string
		want   customID
		wantOK bool
	}{
		{toggleID("s1", 3), customID{kind: kindToggle, sessionID: "s1", index: 3}, true},
		{addID("s1"), customID{kind: kindAdd, sessionID: "s1"}, true},
		{"lfg:toggle:s1", customID{}, false},
		{"lfg:toggle:s1:-1", customID{}, false},
		{"lfg:toggle:s1:x", customID{}, false},
		{"lfg:add:s1:2", customID{}, false},
		{"other:add:s1", customID{}, false},
		{"join_Chess", customID{}, false},
	}

	for _, tt := range tests {
		got, ok := parseCustomID(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("parseCustomID(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseCount(t *testing.T) {
	if b, err := parseCount("  "); err != nil || b.IsSet() {
		t.Errorf("blank = %v, %v; want unbounded", b, err)
	}
	if b, err := parseCount("4"); err != nil || b != lfg.Limit(4) {
		t.Errorf("4 = %v, %v", b, err)
	}
	if _, err := parseCount("4.5"); err != errNotNumber {
		t.Errorf("4.5 error = %v, want errNotNumber", err)
	}
}

func TestBoundsProblem(t *testing.T) {
	tests := []struct {
		min, max lfg.Bound
		want     string
	}{
		{lfg.Unbounded(), lfg.Unbounded(), ""},
		{lfg.Limit(2), lfg.Limit(2), ""},
		{lfg.Limit(0), lfg.Unbounded(), msgInvalidMin},
		{lfg.Limit(-3), lfg.Limit(0), msgInvalidMin},
		{lfg.Unbounded(), lfg.Limit(0), msgInvalidMax},
		{lfg.Limit(3), lfg.Limit(2), msgInvalidRange},
	}
	for _, tt := range tests {
		if got := boundsProblem(tt.min, tt.max); got != tt.want {
			t.Errorf("boundsProblem(%v, %v) = %q, want %q", tt.min, tt.max, got, tt.want)
		}
	}
}

func renderSession(t *testing.T, games int) lfg.View {
	t.Helper()
	r := lfg.NewRegistry(lfg.Limits{MaxActivities: 24, MaxNameLength: 100})
	s, err := r.StartSession("C", "owner", nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < games; i++ {
		if _, err := s.AddActivity(fmt.Sprintf("Game %d", i), lfg.Unbounded(), lfg.Unbounded()); err != nil {
			t.Fatal(err)
		}
	}
	return lfg.Render(s)
}

func TestSessionComponentsRows(t *testing.T) {
	tests := []struct {
		games    int
		wantRows int
	}{
		{0, 1},
		{4, 1},
		{5, 2},
		{24, 5},
	}
	for _, tt := range tests {
		v := renderSession(t, tt.games)
		rows := sessionComponents(v)
		if len(rows) != tt.wantRows {
			t.Errorf("%d games: rows = %d, want %d", tt.games, len(rows), tt.wantRows)
			continue
		}
		last := rows[len(rows)-1].(discordgo.ActionsRow)
		add := last.Components[len(last.Components)-1].(discordgo.Button)
		if add.CustomID != addID(v.SessionID) || add.Style != discordgo.SuccessButton {
			t.Errorf("%d games: last button = %+v", tt.games, add)
		}
	}
}

func TestSessionEmbedEmpty(t *testing.T) {
	embed := sessionEmbed(renderSession(t, 0))
	if len(embed.Fields) != 1 || embed.Fields[0].Name != "No games yet" {
		t.Errorf("fields = %+v", embed.Fields)
	}
	if embed.Title != sessionTitle || embed.Color != embedColor {
		t.Errorf("embed = %+v", embed)
	}
}

func TestSessionEmbedFields(t *testing.T) {
	r := lfg.NewRegistry(lfg.Limits{MaxActivities: 24, MaxNameLength: 100})
	s, _ := r.StartSession("C", "owner", &lfg.ActivitySpec{Name: "Hangout"})
	s.AddActivity("Raid", lfg.Limit(3), lfg.Unbounded())
	s.AddActivity("Duel", lfg.Unbounded(), lfg.Limit(2))
	s.JoinActivity("Hangout", "a")
	s.JoinActivity("Duel", "a")
	s.JoinActivity("Duel", "b")

	v := lfg.Render(s)
	embed := sessionEmbed(v)
	want := []struct{ name, value string }{
		{"Hangout (1 players)", "<@a>"},
		{"Raid (0/3+) ⏳ Waiting", noPlayersYet},
		{"Duel (2/2)", "<@a>, <@b>"},
	}
	for i, w := range want {
		f := embed.Fields[i]
		if f.Name != w.name || f.Value != w.value {
			t.Errorf("field %d = %q / %q, want %q / %q", i, f.Name, f.Value, w.name, w.value)
		}
	}

	rows := sessionComponents(v)
	duel := rows[0].(discordgo.ActionsRow).Components[2].(discordgo.Button)
	if duel.Style != discordgo.SecondaryButton || duel.Label != "Join Duel" {
		t.Errorf("full button = %+v", duel)
	}
}

func TestReadyMessage(t *testing.T) {
	got := readyMessage(lfg.ReadyEvent{
		ContextID:    "C",
		Activity:     "Chess",
		MinPlayers:   2,
		Participants: []string{"a", "b"},
	})
	want := "🎮 **Chess** has reached the minimum number of players! (2/2)\nPlayers: <@a> <@b>"
	if got != want {
		t.Errorf("readyMessage = %q, want %q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	got := truncate(strings.Repeat("é", 20), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncate = %q", got)
	}
}

func TestOnActivityReadyWrapsError(t *testing.T) {
	a, mock := newTestAdapter(t)
	mock.sendErr = fmt.Errorf("rate limited")
	err := a.OnActivityReady(context.Background(), lfg.ReadyEvent{ContextID: "C", Activity: "Go"})
	if err == nil || !strings.Contains(err.Error(), `"Go"`) {
		t.Errorf("error = %v", err)
	}
}

func TestObserveIgnoresOtherEvents(t *testing.T) {
	a, mock := newTestAdapter(t)
	a.Observe(lfg.Event{Kind: lfg.EventMemberJoined, ContextID: "C", MessageRef: "m"})
	a.Observe(lfg.Event{Kind: lfg.EventSessionEnded, ContextID: "C"})
	if len(mock.deleted) != 0 {
		t.Errorf("deleted = %v", mock.deleted)
	}
	a.Observe(lfg.Event{Kind: lfg.EventSessionEnded, ContextID: "C", MessageRef: "m"})
	if len(mock.deleted) != 1 || mock.deleted[0] != "C/m" {
		t.Errorf("deleted = %v", mock.deleted)
	}
}
