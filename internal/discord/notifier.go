package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/lfg"
)

// announceTimeout bounds a ready announcement posted after the interaction
// has been answered.
const announceTimeout = 10 * time.Second

type pendingKey struct{}

// pendingAnnouncements holds ready events raised while an interaction is in
// flight. Only the interaction's own goroutine touches it.
type pendingAnnouncements struct {
	events []lfg.ReadyEvent
}

// withPendingAnnouncements returns a context under which OnActivityReady
// queues announcements instead of posting them.
func withPendingAnnouncements(ctx context.Context) (context.Context, *pendingAnnouncements) {
	p := &pendingAnnouncements{}
	return context.WithValue(ctx, pendingKey{}, p), p
}

// OnActivityReady posts the ready announcement in the session's channel.
// During an interaction the post waits until the acting user has had their
// reply. It satisfies lfg.Notifier.
func (a *Adapter) OnActivityReady(ctx context.Context, ev lfg.ReadyEvent) error {
	if p, ok := ctx.Value(pendingKey{}).(*pendingAnnouncements); ok {
		p.events = append(p.events, ev)
		return nil
	}
	return a.announce(ctx, ev)
}

func (a *Adapter) announce(ctx context.Context, ev lfg.ReadyEvent) error {
	if _, err := a.session.ChannelMessageSend(ev.ContextID, readyMessage(ev), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("announcing %q in %s: %w", ev.Activity, ev.ContextID, err)
	}
	return nil
}

// flushAnnouncements posts queued announcements, each under its own
// deadline. Failures are logged and counted; the join already stands.
func (a *Adapter) flushAnnouncements(p *pendingAnnouncements) {
	events := p.events
	p.events = nil
	for _, ev := range events {
		ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		err := a.announce(ctx, ev)
		cancel()
		if err == nil {
			continue
		}
		if a.metrics != nil {
			a.metrics.NotifyFailed()
		}
		slog.Warn("failed to announce ready activity",
			"context_id", ev.ContextID,
			"activity", ev.Activity,
			"error", err,
		)
	}
}

// Observe removes the session message once a session has ended. It
// satisfies lfg.Observer.
func (a *Adapter) Observe(ev lfg.Event) {
	if ev.Kind != lfg.EventSessionEnded || ev.MessageRef == "" {
		return
	}
	err := a.session.ChannelMessageDelete(ev.ContextID, ev.MessageRef)
	switch {
	case err == nil:
	case isRESTStatus(err, http.StatusNotFound), isRESTStatus(err, http.StatusForbidden):
		slog.Debug("session message not deleted", "context_id", ev.ContextID, "message_id", ev.MessageRef, "error", err)
	default:
		slog.Warn("failed to delete session message", "context_id", ev.ContextID, "message_id", ev.MessageRef, "error", err)
	}
}

func isRESTStatus(err error, code int) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == code
}
