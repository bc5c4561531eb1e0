package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/config"
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/cortexuvula/lfgbot/internal/metrics"
	"github.com/cortexuvula/lfgbot/internal/security"
)

// discordSession interface allows for mocking the Discord session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponse(interaction *discordgo.Interaction, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Adapter connects the LFG dispatcher to Discord: slash commands and
// buttons come in as interactions, session messages and ready
// announcements go out.
type Adapter struct {
	cfg        config.DiscordConfig
	dispatcher *lfg.Dispatcher
	session    discordSession
	limiter    *security.RateLimiter // optional
	metrics    *metrics.Metrics      // optional

	mu        sync.RWMutex
	connected bool
	appID     string

	// refreshMu orders message edits so a stale render never lands last.
	refreshMu sync.Mutex
}

// NewAdapter creates an adapter that drives d. The Discord session is
// created on Start.
func NewAdapter(cfg config.DiscordConfig, d *lfg.Dispatcher) *Adapter {
	return &Adapter{
		cfg:        cfg,
		dispatcher: d,
		appID:      cfg.ApplicationID,
	}
}

// SetRateLimiter enables per-user interaction rate limiting.
func (a *Adapter) SetRateLimiter(rl *security.RateLimiter) {
	a.limiter = rl
}

// SetMetrics sets the optional Prometheus metrics.
func (a *Adapter) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// Start opens the gateway connection and registers event handlers.
func (a *Adapter) Start(ctx context.Context) error {
	if a.session == nil {
		dg, err := discordgo.New("Bot " + a.cfg.Token)
		if err != nil {
			return fmt.Errorf("creating discord session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds
		a.session = dg
	}

	a.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { a.handleReady(r) })
	a.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { a.setConnected(true) })
	a.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) { a.handleDisconnect() })
	a.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { a.handleInteraction(i) })

	if err := a.connectWithRetry(ctx); err != nil {
		return fmt.Errorf("connecting to discord: %w", err)
	}
	slog.Info("discord adapter started")
	return nil
}

// Stop closes the gateway connection.
func (a *Adapter) Stop() error {
	if a.session == nil {
		return nil
	}
	a.setConnected(false)
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}
	slog.Info("discord adapter stopped")
	return nil
}

// Connected reports whether the gateway connection is up.
func (a *Adapter) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.connected
}

// RegisterCommands overwrites the bot's slash commands, in one guild when
// guild_id is set and globally otherwise.
func (a *Adapter) RegisterCommands() error {
	a.mu.RLock()
	appID := a.appID
	a.mu.RUnlock()
	if appID == "" {
		return fmt.Errorf("application id unknown: set discord.application_id")
	}
	if a.session == nil {
		dg, err := discordgo.New("Bot " + a.cfg.Token)
		if err != nil {
			return fmt.Errorf("creating discord session: %w", err)
		}
		a.session = dg
	}

	cmds, err := a.session.ApplicationCommandBulkOverwrite(appID, a.cfg.GuildID, Commands())
	if err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	slog.Info("slash commands registered", "count", len(cmds), "guild_id", a.cfg.GuildID)
	return nil
}

func (a *Adapter) handleReady(r *discordgo.Ready) {
	a.mu.Lock()
	if a.appID == "" && r.Application != nil {
		a.appID = r.Application.ID
	}
	a.mu.Unlock()
	a.setConnected(true)

	user := ""
	if r.User != nil {
		user = r.User.Username
	}
	slog.Info("discord connection ready", "user", user, "guilds", len(r.Guilds))

	if a.cfg.RegisterCommands {
		if err := a.RegisterCommands(); err != nil {
			slog.Error("slash command registration failed", "error", err)
		}
	}
}

// handleDisconnect only records state: discordgo reconnects on its own and
// fires Resumed or Ready when it succeeds.
func (a *Adapter) handleDisconnect() {
	a.setConnected(false)
	slog.Warn("disconnected from discord")
}

func (a *Adapter) setConnected(up bool) {
	a.mu.Lock()
	a.connected = up
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.SetDiscordConnected(up)
	}
}

func (a *Adapter) connectWithRetry(ctx context.Context) error {
	var err error
	maxAttempts := max(a.cfg.MaxReconnectAttempts, 1)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		slog.Info("connecting to discord", "attempt", attempt+1, "max_attempts", maxAttempts)

		err = a.session.Open()
		if err == nil {
			return nil
		}

		backoff := calculateBackoff(attempt, a.cfg.ReconnectBackoff)
		slog.Warn("connection failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"backoff_ms", backoff.Milliseconds())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
}

func calculateBackoff(attempt int, maxWait time.Duration) time.Duration {
	// Exponential backoff: 1s, 2s, 4s, 8s, 16s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > maxWait {
		backoff = maxWait
	}
	return backoff
}
