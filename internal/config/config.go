package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for lfgbot.
type Config struct {
	Discord    DiscordConfig    `yaml:"discord"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Security   SecurityConfig   `yaml:"security"`
	Logging    LoggingConfig    `yaml:"logging"`
	Health     HealthConfig     `yaml:"health"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Admin      AdminConfig      `yaml:"admin"`
}

// DiscordConfig contains the bot connection settings.
type DiscordConfig struct {
	Token                string        `yaml:"token"`
	ApplicationID        string        `yaml:"application_id"`
	GuildID              string        `yaml:"guild_id"` // empty registers global commands
	RegisterCommands     bool          `yaml:"register_commands"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBackoff     time.Duration `yaml:"reconnect_backoff"`
}

// SessionsConfig limits what a single LFG session may hold.
type SessionsConfig struct {
	MaxActivities int `yaml:"max_activities"`
	MaxNameLength int `yaml:"max_name_length"`
}

// SecurityConfig contains abuse-control and admin access settings.
type SecurityConfig struct {
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	AdminToken string          `yaml:"admin_token"`
}

// RateLimitConfig contains per-user interaction rate limiting settings.
type RateLimitConfig struct {
	Enabled               bool `yaml:"enabled"`
	InteractionsPerMinute int  `yaml:"interactions_per_minute"`
	Burst                 int  `yaml:"burst"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// HealthConfig contains health check endpoint settings.
type HealthConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Endpoint      string `yaml:"endpoint"`
	ListenAddress string `yaml:"listen_address"`
	Detailed      bool   `yaml:"detailed"`
}

// MonitoringConfig contains metrics settings.
type MonitoringConfig struct {
	MetricsEnabled  bool   `yaml:"metrics_enabled"`
	MetricsEndpoint string `yaml:"metrics_endpoint"`
}

// AdminConfig controls the admin API served on the health listener.
type AdminConfig struct {
	Enabled     bool `yaml:"enabled"`
	JournalSize int  `yaml:"journal_size"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			RegisterCommands:     true,
			MaxReconnectAttempts: 5,
			ReconnectBackoff:     60 * time.Second,
		},
		Sessions: SessionsConfig{
			MaxActivities: 24, // 24 join buttons + "Add Game" fill Discord's 25-component cap
			MaxNameLength: 100,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:               true,
				InteractionsPerMinute: 30,
				Burst:                 5,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Health: HealthConfig{
			Enabled:       true,
			Endpoint:      "/health",
			ListenAddress: "127.0.0.1:8081",
			Detailed:      true,
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled:  false,
			MetricsEndpoint: "/metrics",
		},
		Admin: AdminConfig{
			Enabled:     true,
			JournalSize: 500,
		},
	}
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads a config file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("config file not found at %s (run 'lfgbot setup' to create one)", path)
			}
			if os.IsPermission(err) {
				return nil, fmt.Errorf("permission denied reading %s (try running with sudo)", path)
			}
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w (check YAML indentation)", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Discord validation
	if c.Discord.Token == "" {
		return fmt.Errorf("discord.token is required (or set DISCORD_TOKEN)")
	}
	if strings.HasPrefix(c.Discord.Token, "Bot ") {
		return fmt.Errorf("discord.token must be the raw token without the \"Bot \" prefix")
	}
	if c.Discord.MaxReconnectAttempts < 0 {
		return fmt.Errorf("discord.max_reconnect_attempts must not be negative")
	}
	if c.Discord.ReconnectBackoff <= 0 {
		return fmt.Errorf("discord.reconnect_backoff must be positive")
	}
	if c.Discord.ReconnectBackoff > 10*time.Minute {
		return fmt.Errorf("discord.reconnect_backoff must not exceed 10m")
	}

	// Session limits
	if c.Sessions.MaxActivities <= 0 {
		return fmt.Errorf("sessions.max_activities must be positive")
	}
	if c.Sessions.MaxActivities > 24 {
		return fmt.Errorf("sessions.max_activities must not exceed 24 (Discord allows 25 buttons per message, one is \"Add Game\")")
	}
	if c.Sessions.MaxNameLength <= 0 || c.Sessions.MaxNameLength > 100 {
		return fmt.Errorf("sessions.max_name_length must be between 1 and 100")
	}

	// Security validation
	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.InteractionsPerMinute <= 0 {
			return fmt.Errorf("security.rate_limit.interactions_per_minute must be positive")
		}
		if c.Security.RateLimit.Burst <= 0 {
			return fmt.Errorf("security.rate_limit.burst must be positive")
		}
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "json", "text":
		// valid
	default:
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	// Health validation
	if c.Health.Enabled {
		if c.Health.ListenAddress == "" {
			return fmt.Errorf("health.listen_address is required when health is enabled")
		}
		host, _, err := net.SplitHostPort(c.Health.ListenAddress)
		if err != nil {
			return fmt.Errorf("health.listen_address is invalid: %w", err)
		}
		ip := net.ParseIP(host)
		if ip != nil && !ip.IsLoopback() {
			return fmt.Errorf("health.listen_address should bind to a loopback address (e.g. 127.0.0.1) to avoid exposing metrics and the admin API")
		}
	}

	// Admin validation
	if c.Admin.Enabled {
		if !c.Health.Enabled {
			return fmt.Errorf("admin.enabled requires health.enabled (the admin API shares the health listener)")
		}
		if c.Admin.JournalSize <= 0 {
			return fmt.Errorf("admin.journal_size must be positive")
		}
	}

	return nil
}

// applyEnvOverrides applies LFGBOT_ prefixed environment variables.
// Convention: LFGBOT_ + uppercase + underscores for nesting. DISCORD_TOKEN
// is honoured as well, as the usual .env key for bot tokens.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		cfg.Discord.Token = v
	}

	envMap := map[string]func(string){
		"LFGBOT_DISCORD_TOKEN":                  func(v string) { cfg.Discord.Token = v },
		"LFGBOT_DISCORD_APPLICATION_ID":         func(v string) { cfg.Discord.ApplicationID = v },
		"LFGBOT_DISCORD_GUILD_ID":               func(v string) { cfg.Discord.GuildID = v },
		"LFGBOT_DISCORD_REGISTER_COMMANDS":      func(v string) { cfg.Discord.RegisterCommands = parseBool(v, cfg.Discord.RegisterCommands) },
		"LFGBOT_DISCORD_MAX_RECONNECT_ATTEMPTS": func(v string) { cfg.Discord.MaxReconnectAttempts = parseInt(v, cfg.Discord.MaxReconnectAttempts) },
		"LFGBOT_DISCORD_RECONNECT_BACKOFF":      func(v string) { cfg.Discord.ReconnectBackoff = parseDuration(v, cfg.Discord.ReconnectBackoff) },
		"LFGBOT_SESSIONS_MAX_ACTIVITIES":        func(v string) { cfg.Sessions.MaxActivities = parseInt(v, cfg.Sessions.MaxActivities) },
		"LFGBOT_SESSIONS_MAX_NAME_LENGTH":       func(v string) { cfg.Sessions.MaxNameLength = parseInt(v, cfg.Sessions.MaxNameLength) },
		"LFGBOT_SECURITY_RATE_LIMIT_ENABLED":    func(v string) { cfg.Security.RateLimit.Enabled = parseBool(v, cfg.Security.RateLimit.Enabled) },
		"LFGBOT_SECURITY_RATE_LIMIT_INTERACTIONS_PER_MINUTE": func(v string) {
			cfg.Security.RateLimit.InteractionsPerMinute = parseInt(v, cfg.Security.RateLimit.InteractionsPerMinute)
		},
		"LFGBOT_SECURITY_RATE_LIMIT_BURST": func(v string) { cfg.Security.RateLimit.Burst = parseInt(v, cfg.Security.RateLimit.Burst) },
		"LFGBOT_SECURITY_ADMIN_TOKEN":      func(v string) { cfg.Security.AdminToken = v },
		"LFGBOT_LOGGING_LEVEL":             func(v string) { cfg.Logging.Level = v },
		"LFGBOT_LOGGING_FORMAT":            func(v string) { cfg.Logging.Format = v },
		"LFGBOT_LOGGING_FILE":              func(v string) { cfg.Logging.File = v },
		"LFGBOT_HEALTH_ENABLED":            func(v string) { cfg.Health.Enabled = parseBool(v, cfg.Health.Enabled) },
		"LFGBOT_HEALTH_LISTEN_ADDRESS":     func(v string) { cfg.Health.ListenAddress = v },
		"LFGBOT_MONITORING_METRICS_ENABLED": func(v string) {
			cfg.Monitoring.MetricsEnabled = parseBool(v, cfg.Monitoring.MetricsEnabled)
		},
		"LFGBOT_ADMIN_ENABLED": func(v string) { cfg.Admin.Enabled = parseBool(v, cfg.Admin.Enabled) },
	}

	for env, setter := range envMap {
		if v := os.Getenv(env); v != "" {
			setter(v)
		}
	}
}

// ApplyReloadableFields returns a copy of c with reloadable fields from newCfg.
// Non-reloadable: discord connection settings, session limits,
// health.listen_address.
func (c *Config) ApplyReloadableFields(newCfg *Config) *Config {
	updated := *c
	updated.Security.RateLimit = newCfg.Security.RateLimit
	updated.Security.AdminToken = newCfg.Security.AdminToken
	updated.Logging.Level = newCfg.Logging.Level
	return &updated
}

// IsReloadSafe checks if only reloadable fields changed between configs.
func IsReloadSafe(old, new *Config) []string {
	var warnings []string
	if old.Discord.Token != new.Discord.Token {
		warnings = append(warnings, "discord.token requires restart")
	}
	if old.Discord.ApplicationID != new.Discord.ApplicationID || old.Discord.GuildID != new.Discord.GuildID {
		warnings = append(warnings, "discord.application_id and discord.guild_id require restart")
	}
	if old.Sessions != new.Sessions {
		warnings = append(warnings, "sessions limits require restart")
	}
	if old.Health.ListenAddress != new.Health.ListenAddress {
		warnings = append(warnings, "health.listen_address requires restart")
	}
	return warnings
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return fallback
	}
	return v
}

func parseBool(s string, fallback bool) bool {
	s = strings.ToLower(s)
	switch s {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return fallback
	}
}
