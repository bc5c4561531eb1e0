package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/lfg"
)

// handlerTimeout bounds the work done for one interaction; Discord expects
// the initial response within three seconds.
const handlerTimeout = 10 * time.Second

// User-facing replies. All of them are ephemeral.
const (
	msgSessionExists  = "There's already an active LFG session in this channel!"
	msgNoSession      = "There's no active LFG session in this channel!"
	msgNoSessionAdd   = "No active session in this channel! Use /lfg to start one."
	msgEndForbidden   = "Only the session creator or users with 'Manage Messages' permission can end the session!"
	msgSessionEnded   = "LFG session ended!"
	msgGameGone       = "This game no longer exists!"
	msgSessionStale   = "This LFG session is no longer active!"
	msgInvalidMin     = "Invalid minimum player count! Must be at least 1."
	msgInvalidMax     = "Invalid maximum player count! Must be at least 1."
	msgInvalidRange   = "Invalid player counts! Maximum must be >= minimum."
	msgNotNumber      = "Player counts must be valid numbers!"
	msgInvalidName    = "Game names must be between 1 and 100 characters!"
	msgActivityLimit  = "This session already has the maximum number of games!"
	msgRateLimited    = "You're doing that too fast! Try again in a moment."
	msgInternalError  = "Something went wrong, please try again."
	msgJoinedFormat   = "You joined %s!"
	msgLeftFormat     = "You left %s!"
	msgFullFormat     = "Cannot join %s - game is full!"
	msgAddedFormat    = "Added **%s** to the session!"
	msgDuplicateAdded = "**%s** is already in the session!"
)

func (a *Adapter) handleInteraction(ic *discordgo.InteractionCreate) {
	i := ic.Interaction
	userID := interactionUser(i)

	if a.limiter != nil && !a.limiter.Allow(userID) {
		if a.metrics != nil {
			a.metrics.RateLimited()
		}
		slog.Debug("interaction rate limited", "user_id", userID, "context_id", i.ChannelID)
		a.reply(i, msgRateLimited)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch data := i.ApplicationCommandData(); data.Name {
		case commandLFG:
			a.handleLFG(ctx, i, data)
		case commandEndLFG:
			a.handleEndLFG(ctx, i)
		default:
			slog.Debug("unknown command", "name", data.Name)
		}
	case discordgo.InteractionMessageComponent:
		a.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		a.handleModal(ctx, i)
	}
}

func (a *Adapter) handleLFG(ctx context.Context, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) {
	opts := commandOptions(data.Options)
	cmd := lfg.StartCommand{ContextID: i.ChannelID, UserID: interactionUser(i)}

	minP := optionBound(opts, optionMinPlayers)
	maxP := optionBound(opts, optionMaxPlayers)
	if msg := boundsProblem(minP, maxP); msg != "" {
		a.reply(i, msg)
		return
	}
	if o, ok := opts[optionGame]; ok && o.StringValue() != "" {
		cmd.Initial = &lfg.ActivitySpec{Name: o.StringValue(), MinPlayers: minP, MaxPlayers: maxP}
	}

	s, err := a.dispatcher.Start(ctx, cmd)
	if err != nil {
		a.reply(i, errorReply(err, ""))
		return
	}

	v := lfg.Render(s)
	err = a.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{sessionEmbed(v)},
			Components: sessionComponents(v),
		},
	})
	if err != nil {
		slog.Error("failed to post session message", "context_id", i.ChannelID, "error", err)
		// Nobody can see or reach the session without its message.
		if _, endErr := a.dispatcher.End(ctx, lfg.EndCommand{
			ContextID:  i.ChannelID,
			UserID:     cmd.UserID,
			Privileged: true,
		}); endErr != nil {
			slog.Warn("failed to end unposted session", "context_id", i.ChannelID, "error", endErr)
		}
		return
	}

	msg, err := a.session.InteractionResponse(i)
	if err != nil {
		slog.Warn("failed to fetch session message", "context_id", i.ChannelID, "error", err)
		return
	}
	s.SetMessageRef(msg.ID)
	// Anything that changed while the message was being posted.
	a.refresh(s)
}

func (a *Adapter) handleEndLFG(ctx context.Context, i *discordgo.Interaction) {
	privileged := i.Member != nil && i.Member.Permissions&discordgo.PermissionManageMessages != 0
	_, err := a.dispatcher.End(ctx, lfg.EndCommand{
		ContextID:  i.ChannelID,
		UserID:     interactionUser(i),
		Privileged: privileged,
	})
	switch {
	case errors.Is(err, lfg.ErrNotFound):
		a.reply(i, msgNoSession)
	case errors.Is(err, lfg.ErrForbidden):
		a.reply(i, msgEndForbidden)
	case err != nil:
		a.reply(i, errorReply(err, ""))
	default:
		a.reply(i, msgSessionEnded)
	}
}

func (a *Adapter) handleComponent(ctx context.Context, i *discordgo.Interaction) {
	id, ok := parseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		slog.Debug("unknown component", "custom_id", i.MessageComponentData().CustomID)
		return
	}

	s, err := a.dispatcher.Registry().GetSession(i.ChannelID)
	if err != nil || s.ID() != id.sessionID {
		a.reply(i, msgSessionStale)
		return
	}

	switch id.kind {
	case kindAdd:
		err := a.session.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: addGameModal(s.ID()),
		})
		if err != nil {
			slog.Warn("failed to open add game modal", "context_id", i.ChannelID, "error", err)
		}
	case kindToggle:
		name, ok := s.ActivityAt(id.index)
		if !ok {
			a.reply(i, msgGameGone)
			return
		}
		ctx, pending := withPendingAnnouncements(ctx)
		defer a.flushAnnouncements(pending)
		res, err := a.dispatcher.Toggle(ctx, lfg.MemberCommand{
			ContextID: i.ChannelID,
			Activity:  name,
			UserID:    interactionUser(i),
		})
		if errors.Is(err, lfg.ErrNotFound) && s.Ended() {
			a.reply(i, msgSessionStale)
			return
		}
		if err != nil {
			a.reply(i, errorReply(err, name))
			return
		}
		if res.Outcome == lfg.Left || res.Outcome == lfg.NotMember {
			a.reply(i, fmt.Sprintf(msgLeftFormat, name))
		} else {
			a.reply(i, fmt.Sprintf(msgJoinedFormat, name))
		}
		a.refresh(s)
	}
}

func (a *Adapter) handleModal(ctx context.Context, i *discordgo.Interaction) {
	data := i.ModalSubmitData()
	id, ok := parseCustomID(data.CustomID)
	if !ok || id.kind != kindAdd {
		slog.Debug("unknown modal", "custom_id", data.CustomID)
		return
	}

	s, err := a.dispatcher.Registry().GetSession(i.ChannelID)
	if err != nil {
		a.reply(i, msgNoSessionAdd)
		return
	}
	if s.ID() != id.sessionID {
		a.reply(i, msgSessionStale)
		return
	}

	values := modalValues(data.Components)
	minP, err := parseCount(values[inputMin])
	if err != nil {
		a.reply(i, msgNotNumber)
		return
	}
	maxP, err := parseCount(values[inputMax])
	if err != nil {
		a.reply(i, msgNotNumber)
		return
	}
	if msg := boundsProblem(minP, maxP); msg != "" {
		a.reply(i, msg)
		return
	}

	name := values[inputName]
	added, err := a.dispatcher.AddActivity(ctx, lfg.AddCommand{
		ContextID:  i.ChannelID,
		UserID:     interactionUser(i),
		Name:       name,
		MinPlayers: minP,
		MaxPlayers: maxP,
	})
	switch {
	case errors.Is(err, lfg.ErrNotFound):
		a.reply(i, msgNoSessionAdd)
		return
	case err != nil:
		a.reply(i, errorReply(err, name))
		return
	case !added:
		a.reply(i, fmt.Sprintf(msgDuplicateAdded, name))
		return
	}
	a.reply(i, fmt.Sprintf(msgAddedFormat, name))
	a.refresh(s)
}

// refresh re-renders the session message in place.
func (a *Adapter) refresh(s *lfg.Session) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	ref := s.MessageRef()
	if ref == "" {
		return
	}
	v := lfg.Render(s)
	embeds := []*discordgo.MessageEmbed{sessionEmbed(v)}
	components := sessionComponents(v)
	_, err := a.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         ref,
		Channel:    s.ContextID(),
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		slog.Warn("failed to update session message",
			"context_id", s.ContextID(),
			"message_id", ref,
			"error", err,
		)
	}
}

// reply sends an ephemeral response to the acting user.
func (a *Adapter) reply(i *discordgo.Interaction, content string) {
	err := a.session.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Warn("failed to respond to interaction",
			"interaction_id", i.ID,
			"context_id", i.ChannelID,
			"error", err,
		)
	}
}

// errorReply maps a dispatcher error to a user-facing message.
func errorReply(err error, activity string) string {
	switch {
	case errors.Is(err, lfg.ErrAlreadyExists):
		return msgSessionExists
	case errors.Is(err, lfg.ErrNotFound):
		if activity != "" {
			return msgGameGone
		}
		return msgNoSession
	case errors.Is(err, lfg.ErrFull):
		return fmt.Sprintf(msgFullFormat, activity)
	case errors.Is(err, lfg.ErrInvalidBounds):
		return msgInvalidRange
	case errors.Is(err, lfg.ErrInvalidName):
		return msgInvalidName
	case errors.Is(err, lfg.ErrActivityLimit):
		return msgActivityLimit
	case errors.Is(err, lfg.ErrForbidden):
		return msgEndForbidden
	default:
		slog.Error("interaction failed", "error", err)
		return msgInternalError
	}
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
