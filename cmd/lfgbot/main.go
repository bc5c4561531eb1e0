package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/cortexuvula/lfgbot/internal/admin"
	"github.com/cortexuvula/lfgbot/internal/config"
	"github.com/cortexuvula/lfgbot/internal/discord"
	"github.com/cortexuvula/lfgbot/internal/feed"
	"github.com/cortexuvula/lfgbot/internal/health"
	"github.com/cortexuvula/lfgbot/internal/journal"
	"github.com/cortexuvula/lfgbot/internal/lfg"
	"github.com/cortexuvula/lfgbot/internal/logging"
	"github.com/cortexuvula/lfgbot/internal/metrics"
	"github.com/cortexuvula/lfgbot/internal/security"
	"github.com/cortexuvula/lfgbot/internal/setup"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "lfgbot",
		Short: "Discord looking-for-group bot",
	}

	var configPath string
	var envFile string
	var verbose bool

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Connect to Discord and serve LFG sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(configPath, envFile, verbose)
		},
	}
	startCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	startCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to .env file")
	startCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lfgbot %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config without starting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}
			fmt.Printf("Configuration is valid.\n")
			fmt.Printf("  Application: %s\n", valueOr(cfg.Discord.ApplicationID, "(learned on connect)"))
			fmt.Printf("  Commands: %s\n", commandScope(cfg.Discord.GuildID))
			fmt.Printf("  Max games per session: %d\n", cfg.Sessions.MaxActivities)
			fmt.Printf("  Health: %s\n", cfg.Health.ListenAddress)
			fmt.Printf("  Admin API: %v\n", cfg.Admin.Enabled)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	validateCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to .env file")

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Overwrite the bot's slash commands and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, envFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := discord.NewAdapter(cfg.Discord, nil).RegisterCommands(); err != nil {
				return err
			}
			fmt.Printf("Slash commands registered (%s).\n", commandScope(cfg.Discord.GuildID))
			return nil
		},
	}
	registerCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	registerCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to .env file")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check health (exit 0 if healthy, 1 if not)",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			return checkHealth(url)
		},
	}
	healthCmd.Flags().String("url", "http://127.0.0.1:8081/health", "Health endpoint URL")

	var setupConfigPath string
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setup.RunWizard(os.Stdin, os.Stdout, setup.WizardOptions{
				ConfigPath: setupConfigPath,
			})
		},
	}
	setupCmd.Flags().StringVar(&setupConfigPath, "config-path", "", "Override config file path (default: /etc/lfgbot/config.yaml)")

	systemdCmd := &cobra.Command{
		Use:   "systemd",
		Short: "Generate systemd service file",
		RunE: func(cmd *cobra.Command, args []string) error {
			printFlag, _ := cmd.Flags().GetBool("print")
			if printFlag {
				printSystemdUnit()
			}
			return nil
		},
	}
	systemdCmd.Flags().Bool("print", false, "Print systemd unit to stdout")

	rootCmd.AddCommand(startCmd, versionCmd, validateCmd, registerCmd, healthCmd, setupCmd, systemdCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(configPath, envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

// reloader owns the live config. SIGHUP and the admin API both reload
// through it.
type reloader struct {
	mu      sync.Mutex
	path    string
	envFile string
	cfg     *config.Config
	limiter *security.RateLimiter // nil when rate limiting is off at startup
}

func (r *reloader) current() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

func (r *reloader) reload() error {
	newCfg, err := loadConfig(r.path, r.envFile)
	if err != nil {
		return fmt.Errorf("reloading config: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range config.IsReloadSafe(r.cfg, newCfg) {
		slog.Warn("config reload warning", "warning", w)
	}
	r.cfg = r.cfg.ApplyReloadableFields(newCfg)

	logging.SetLevel(r.cfg.Logging.Level)

	if r.limiter != nil {
		rl := r.cfg.Security.RateLimit
		if rl.Enabled {
			r.limiter.UpdateRate(security.PerMinute(rl.InteractionsPerMinute), rl.Burst)
		} else {
			r.limiter.UpdateRate(security.PerMinute(0), rl.Burst)
		}
	}

	slog.Info("config reloaded successfully", "log_level", logging.Level())
	return nil
}

func runBot(configPath, envFile string, verbose bool) error {
	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	// Set up logging
	lj := logging.Setup(cfg.Logging)
	if lj != nil {
		defer lj.Close()
	}

	slog.Info("starting lfgbot",
		"version", Version,
		"guild_id", cfg.Discord.GuildID,
		"health", cfg.Health.ListenAddress,
	)

	// Core
	registry := lfg.NewRegistry(lfg.Limits{
		MaxActivities: cfg.Sessions.MaxActivities,
		MaxNameLength: cfg.Sessions.MaxNameLength,
	})
	dispatcher := lfg.NewDispatcher(registry)

	// Optional Prometheus metrics
	var m *metrics.Metrics
	if cfg.Monitoring.MetricsEnabled {
		m = metrics.New()
		dispatcher.Subscribe(m)
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Monitoring.MetricsEndpoint)
	}

	// Discord adapter: notifier for ready events, observer for session cleanup
	bot := discord.NewAdapter(cfg.Discord, dispatcher)
	dispatcher.SetNotifier(bot)
	dispatcher.Subscribe(bot)
	if m != nil {
		bot.SetMetrics(m)
	}

	rel := &reloader{path: configPath, envFile: envFile, cfg: cfg}
	if cfg.Security.RateLimit.Enabled {
		rl := security.NewRateLimiter(
			security.PerMinute(cfg.Security.RateLimit.InteractionsPerMinute),
			cfg.Security.RateLimit.Burst,
		)
		defer rl.Stop()
		bot.SetRateLimiter(rl)
		rel.limiter = rl
		slog.Info("rate limiting enabled",
			"interactions_per_minute", cfg.Security.RateLimit.InteractionsPerMinute,
			"burst", cfg.Security.RateLimit.Burst,
		)
	}

	// Health server (listens on 127.0.0.1:8081) with metrics and admin API
	var healthServer *http.Server
	if cfg.Health.Enabled {
		healthHandler := health.NewHandler(bot, registry, Version, cfg.Health.Detailed)
		if m != nil {
			healthHandler.SetMetrics(m)
		}
		healthMux := http.NewServeMux()
		healthMux.Handle(cfg.Health.Endpoint, healthHandler)

		if cfg.Monitoring.MetricsEnabled {
			healthMux.Handle(cfg.Monitoring.MetricsEndpoint, promhttp.Handler())
		}

		if cfg.Admin.Enabled {
			j := journal.New(cfg.Admin.JournalSize)
			dispatcher.Subscribe(j)
			hub := feed.NewHub()
			dispatcher.Subscribe(hub)

			api := admin.New(admin.Dependencies{
				Dispatcher: dispatcher,
				Journal:    j,
				Feed:       hub,
				Gateway:    bot,
				Version:    Version,
				BuildTime:  BuildTime,
				GitCommit:  GitCommit,
				StartTime:  time.Now(),
				ReloadFunc: rel.reload,
				GetConfig:  rel.current,
			})
			healthMux.Handle("/api/", api.Handler())
			if cfg.Security.AdminToken == "" {
				slog.Warn("admin API enabled without admin_token; any local process can end sessions")
			}
		}

		healthServer = &http.Server{
			Addr:              cfg.Health.ListenAddress,
			Handler:           healthMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("health endpoint listening", "address", cfg.Health.ListenAddress)
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("health server error", "error", err)
			}
		}()
	}

	// Connect to Discord; a shutdown signal aborts the retry loop
	connectCtx, stopConnect := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err = bot.Start(connectCtx)
	stopConnect()
	if err != nil {
		if healthServer != nil {
			healthServer.Close()
		}
		return err
	}

	// Notify systemd that we're ready
	daemon.SdNotify(false, daemon.SdNotifyReady)

	// Start watchdog heartbeat (send every 15s for 30s WatchdogSec)
	watchdogCtx, watchdogCancel := context.WithCancel(context.Background())
	defer watchdogCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sent, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				if err != nil {
					slog.Warn("failed to notify watchdog", "error", err)
				} else if sent {
					slog.Debug("watchdog keepalive sent")
				}
			case <-watchdogCtx.Done():
				return
			}
		}
	}()

	// Signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for sig := range sigChan {
		switch sig {
		case syscall.SIGHUP:
			slog.Info("received SIGHUP, reloading config")
			if err := rel.reload(); err != nil {
				slog.Error("config reload failed", "error", err)
			}

		case syscall.SIGTERM, syscall.SIGINT:
			slog.Info("received shutdown signal",
				"signal", sig.String(),
				"active_sessions", registry.Len(),
			)

			watchdogCancel()
			daemon.SdNotify(false, daemon.SdNotifyStopping)

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			var wg sync.WaitGroup
			if healthServer != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					healthServer.Shutdown(ctx)
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := bot.Stop(); err != nil {
					slog.Warn("discord shutdown error", "error", err)
				}
			}()
			wg.Wait()

			slog.Info("shutdown complete")
			return nil
		}
	}

	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func commandScope(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild " + guildID
}

func checkHealth(url string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		fmt.Println("healthy")
		return nil
	}
	fmt.Fprintf(os.Stderr, "unhealthy (status: %d)\n", resp.StatusCode)
	os.Exit(1)
	return nil
}

func printSystemdUnit() {
	fmt.Print(`[Unit]
Description=lfgbot - Discord looking-for-group bot
After=network-online.target
Wants=network-online.target

[Service]
Type=notify
User=lfgbot
Group=lfgbot
ExecStartPre=/usr/local/bin/lfgbot validate --config /etc/lfgbot/config.yaml --env-file /etc/lfgbot/lfgbot.env
ExecStart=/usr/local/bin/lfgbot start --config /etc/lfgbot/config.yaml --env-file /etc/lfgbot/lfgbot.env
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5s
WatchdogSec=30s

# Security hardening
ProtectSystem=strict
ProtectHome=true
NoNewPrivileges=true
PrivateTmp=true
ReadOnlyPaths=/etc/lfgbot
LogsDirectory=lfgbot
StateDirectory=lfgbot

# Sessions live in memory only; a restart clears them
MemoryMax=128M

# Logging
StandardOutput=journal
StandardError=journal
SyslogIdentifier=lfgbot

[Install]
WantedBy=multi-user.target
`)
}
