package journal

import (
	"sync"
	"testing"
	"time"

	"github.com/cortexuvula/lfgbot/internal/lfg"
)

func ev(kind lfg.EventKind, contextID, activity string) lfg.Event {
	return lfg.Event{Kind: kind, ContextID: contextID, Activity: activity, Time: time.Now()}
}

func TestJournalBasic(t *testing.T) {
	j := New(5)

	if j.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", j.Len())
	}
	if j.Cap() != 5 {
		t.Fatalf("Cap() = %d, want 5", j.Cap())
	}

	j.Observe(ev(lfg.EventMemberJoined, "C", "a"))
	j.Observe(ev(lfg.EventMemberJoined, "C", "b"))

	entries := j.Entries(0, Filter{})
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d, want 2", len(entries))
	}
	// Newest first
	if entries[0].Activity != "b" || entries[1].Activity != "a" {
		t.Errorf("order = %q, %q; want b, a", entries[0].Activity, entries[1].Activity)
	}
}

func TestJournalWrap(t *testing.T) {
	j := New(3)

	for i := 0; i < 5; i++ {
		j.Observe(ev(lfg.EventMemberJoined, "C", string(rune('a'+i))))
	}

	if j.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 (should cap at capacity)", j.Len())
	}

	entries := j.Entries(0, Filter{})
	want := []string{"e", "d", "c"}
	for i, w := range want {
		if entries[i].Activity != w {
			t.Errorf("entries[%d].Activity = %q, want %q", i, entries[i].Activity, w)
		}
	}
}

func TestJournalFilter(t *testing.T) {
	j := New(10)
	old := lfg.Event{Kind: lfg.EventSessionStarted, ContextID: "C1", Time: time.Now().Add(-time.Hour)}
	j.Observe(old)
	j.Observe(ev(lfg.EventMemberJoined, "C1", "Go"))
	j.Observe(ev(lfg.EventMemberJoined, "C2", "Go"))
	j.Observe(ev(lfg.EventActivityReady, "C1", "Go"))

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"context", Filter{ContextID: "C1"}, 3},
		{"kind", Filter{Kind: lfg.EventMemberJoined}, 2},
		{"since", Filter{Since: time.Now().Add(-time.Minute)}, 3},
		{"combined", Filter{ContextID: "C1", Kind: lfg.EventActivityReady}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(j.Entries(0, tt.filter)); got != tt.want {
				t.Errorf("Entries() returned %d, want %d", got, tt.want)
			}
		})
	}
}

func TestJournalLimit(t *testing.T) {
	j := New(10)
	for i := 0; i < 10; i++ {
		j.Observe(ev(lfg.EventMemberJoined, "C", "x"))
	}

	if got := len(j.Entries(3, Filter{})); got != 3 {
		t.Fatalf("Entries(limit=3) returned %d, want 3", got)
	}
}

func TestJournalObservesDispatcher(t *testing.T) {
	d := lfg.NewDispatcher(lfg.NewRegistry(lfg.Limits{}))
	j := New(10)
	d.Subscribe(j)

	d.Start(t.Context(), lfg.StartCommand{ContextID: "C", UserID: "u"})
	d.End(t.Context(), lfg.EndCommand{ContextID: "C", UserID: "u"})

	entries := j.Entries(0, Filter{})
	if len(entries) != 2 {
		t.Fatalf("journal has %d events, want 2", len(entries))
	}
	if entries[0].Kind != lfg.EventSessionEnded {
		t.Errorf("newest = %s, want session_ended", entries[0].Kind)
	}
}

func TestJournalConcurrent(t *testing.T) {
	j := New(100)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				j.Observe(ev(lfg.EventMemberJoined, "C", "x"))
			}
		}()
	}

	// Concurrent reads
	for g := 0; g < 5; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				j.Entries(10, Filter{})
			}
		}()
	}

	wg.Wait()

	if j.Len() != j.Cap() {
		t.Errorf("Len() = %d, want %d", j.Len(), j.Cap())
	}
}
