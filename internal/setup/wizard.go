package setup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cortexuvula/lfgbot/internal/config"
)

const (
	defaultConfigPath = "/etc/lfgbot/config.yaml"
	defaultHealthPort = "8081"
	serviceName       = "lfgbot"
)

// WizardOptions configures the setup wizard.
type WizardOptions struct {
	ConfigPath string                       // Override default config path
	CheckToken func(io.Writer, string) bool // Override the Discord token check (for testing)
}

// RunWizard runs the interactive setup wizard.
// It takes io.Reader/io.Writer for testability.
func RunWizard(in io.Reader, out io.Writer, opts WizardOptions) error {
	scanner := bufio.NewScanner(in)
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	// Check if running as root; fall back to local config if not
	isRoot := os.Geteuid() == 0
	if !isRoot && configPath == defaultConfigPath {
		configPath = "./config.yaml"
		fmt.Fprintf(out, "NOTE: Not running as root. Config will be written to %s\n", configPath)
		fmt.Fprintf(out, "      Run with sudo for system-wide install: sudo lfgbot setup\n\n")
	}

	fmt.Fprintln(out, "LFG Bot Setup")
	fmt.Fprintln(out, "=============")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Create an application and bot at https://discord.com/developers/applications")
	fmt.Fprintln(out, "and invite it with the bot and applications.commands scopes.")
	fmt.Fprintln(out)

	// Step 1: Bot token
	token := strings.TrimPrefix(prompt(scanner, out, "Bot token: ", ""), "Bot ")
	if token == "" {
		return fmt.Errorf("bot token is required")
	}
	check := checkToken
	if opts.CheckToken != nil {
		check = opts.CheckToken
	}
	check(out, token)

	// Step 2: Application and guild ids
	appID := promptSnowflake(scanner, out,
		"Application ID (leave empty to learn it on connect): ")
	guildID := promptSnowflake(scanner, out,
		"Guild ID for command registration (leave empty for global commands): ")
	if guildID == "" {
		fmt.Fprintln(out, "  NOTE: Global commands can take up to an hour to appear in Discord.")
		fmt.Fprintln(out)
	}

	// Step 3: Health port
	healthPort := promptPort(scanner, out,
		fmt.Sprintf("Health check port [%s]: ", defaultHealthPort),
		defaultHealthPort)
	healthAddress := net.JoinHostPort("127.0.0.1", healthPort)

	if reason := checkPortAvailable("127.0.0.1", healthPort); reason != "" {
		fmt.Fprintf(out, "  WARNING: Port %s on 127.0.0.1 %s\n\n", healthPort, reason)
	}

	// Step 4: Admin token (optional)
	adminToken := prompt(scanner, out,
		"Admin API token (leave empty for none): ", "")

	// Step 5: Check for existing config
	if _, err := os.Stat(configPath); err == nil {
		overwrite := prompt(scanner, out,
			fmt.Sprintf("Config already exists at %s. Overwrite? [y/N]: ", configPath), "n")
		if !strings.HasPrefix(strings.ToLower(overwrite), "y") {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	// Step 6: Write config
	fmt.Fprintf(out, "\nWriting config to %s...\n", configPath)
	configContent := generateConfig(token, appID, guildID, healthAddress, adminToken)

	if err := writeConfig(configPath, configContent, isRoot, out); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintln(out, "  Config written successfully.")

	// Step 7: Validate the written config
	fmt.Fprintln(out, "  Validating config...")
	if _, err := config.Load(configPath); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	fmt.Fprintln(out, "  Config is valid.")

	// Step 8: Offer to start systemd service (Linux + root only)
	if isRoot && isSystemdAvailable() {
		fmt.Fprintln(out)
		startService := prompt(scanner, out,
			"Start lfgbot service now? [Y/n]: ", "y")
		if strings.HasPrefix(strings.ToLower(startService), "y") {
			if err := startSystemdService(out); err != nil {
				fmt.Fprintf(out, "  WARNING: Failed to start service: %v\n", err)
				fmt.Fprintln(out, "  You can start it manually: sudo systemctl start lfgbot")
			}
		}
	}

	// Step 9: Print summary
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Setup complete!")
	fmt.Fprintln(out, "===============")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Config:       %s\n", configPath)
	fmt.Fprintf(out, "  Health:       http://%s/health\n", healthAddress)
	if adminToken != "" {
		fmt.Fprintf(out, "  Admin API:    http://%s/api/v1/status\n", healthAddress)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Useful commands:")
	fmt.Fprintf(out, "  Check health:   curl http://%s/health\n", healthAddress)
	fmt.Fprintln(out, "  View logs:      sudo journalctl -u lfgbot -f")
	fmt.Fprintln(out, "  Validate:       lfgbot validate --config "+configPath)

	return nil
}

// prompt displays a message and reads a line from the scanner.
// Returns defaultVal if input is empty or EOF.
func prompt(scanner *bufio.Scanner, out io.Writer, message, defaultVal string) string {
	fmt.Fprint(out, message)
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

// validatePort checks that a port string is a valid TCP port (1-65535).
func validatePort(port string) bool {
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// promptPort prompts for a port, re-prompting on invalid input.
// Returns defaultVal on empty/EOF input.
func promptPort(scanner *bufio.Scanner, out io.Writer, message, defaultVal string) string {
	val := prompt(scanner, out, message, defaultVal)
	for !validatePort(val) {
		fmt.Fprintf(out, "  Invalid port %q: must be a number between 1 and 65535\n", val)
		val = prompt(scanner, out, message, defaultVal)
		// If we got the default back (EOF/empty), and default is valid, accept it
		if val == defaultVal {
			return defaultVal
		}
	}
	return val
}

// validSnowflake reports whether s looks like a Discord id.
func validSnowflake(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

// promptSnowflake prompts for an optional Discord id, re-prompting until the
// input is empty or numeric.
func promptSnowflake(scanner *bufio.Scanner, out io.Writer, message string) string {
	val := prompt(scanner, out, message, "")
	for val != "" && !validSnowflake(val) {
		fmt.Fprintf(out, "  Invalid id %q: Discord ids are numeric\n", val)
		val = prompt(scanner, out, message, "")
	}
	return val
}

// checkToken asks Discord who the token belongs to. Failure is a warning only.
func checkToken(out io.Writer, token string) bool {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		fmt.Fprintf(out, "  WARNING: Could not create Discord client: %v\n\n", err)
		return false
	}
	dg.Client.Timeout = 5 * time.Second

	u, err := dg.User("@me")
	if err != nil {
		fmt.Fprintf(out, "  WARNING: Discord rejected the token or is unreachable: %v\n", err)
		fmt.Fprintln(out, "  (The config will still be written; fix the token before starting.)")
		fmt.Fprintln(out)
		return false
	}
	fmt.Fprintf(out, "  Token belongs to bot %s (%s).\n\n", u.Username, u.ID)
	return true
}

// checkPortAvailable checks if a TCP port is free on the given host.
// Returns empty string if available, or a reason string if not.
func checkPortAvailable(host, port string) string {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, port))
	if err != nil {
		if errors.Is(err, syscall.EACCES) {
			return "permission denied (try sudo or a port >= 1024)"
		}
		return "appears to be in use"
	}
	ln.Close()
	return ""
}

// isSystemdAvailable checks if systemctl is available.
func isSystemdAvailable() bool {
	_, err := exec.LookPath("systemctl")
	return err == nil
}

// startSystemdService starts (or restarts) the lfgbot service.
func startSystemdService(out io.Writer) error {
	if err := exec.Command("systemctl", "daemon-reload").Run(); err != nil {
		return fmt.Errorf("daemon-reload: %w", err)
	}

	// Try restart first (handles already-running case), fall back to start
	if err := exec.Command("systemctl", "restart", serviceName).Run(); err != nil {
		if err := exec.Command("systemctl", "start", serviceName).Run(); err != nil {
			return err
		}
	}

	time.Sleep(2 * time.Second)
	output, err := exec.Command("systemctl", "is-active", serviceName).Output()
	if err != nil {
		return fmt.Errorf("service did not start (status: %s)", strings.TrimSpace(string(output)))
	}
	status := strings.TrimSpace(string(output))
	if status == "active" {
		fmt.Fprintln(out, "  Service started successfully.")
	} else {
		fmt.Fprintf(out, "  Service status: %s\n", status)
	}
	return nil
}

// yamlEscapeString escapes a string for use inside YAML double quotes.
func yamlEscapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// generateConfig creates a commented YAML config string.
func generateConfig(token, appID, guildID, healthAddress, adminToken string) string {
	return fmt.Sprintf(`# LFG Bot Configuration
# Generated by: lfgbot setup

discord:
  # REQUIRED: Bot token, without the "Bot " prefix.
  # DISCORD_TOKEN or LFGBOT_DISCORD_TOKEN override this value.
  token: "%s"

  # Learned from the gateway on connect when empty
  application_id: "%s"

  # Register commands in one guild (instant) instead of globally
  guild_id: "%s"
  register_commands: true

  max_reconnect_attempts: 5
  reconnect_backoff: "60s"

sessions:
  # 24 join buttons plus "Add Game" fill a message's 25 components
  max_activities: 24
  max_name_length: 100

security:
  # Bearer token for /api/v1 (optional)
  admin_token: "%s"

  # Per-user interaction rate limiting
  rate_limit:
    enabled: true
    interactions_per_minute: 30
    burst: 5

logging:
  level: "info"
  format: "json"
  file: ""  # Empty = stdout (journald captures this)

health:
  enabled: true
  endpoint: "/health"
  listen_address: "%s"
  detailed: true

monitoring:
  metrics_enabled: false
  metrics_endpoint: "/metrics"

admin:
  enabled: true
  journal_size: 500
`, yamlEscapeString(token), yamlEscapeString(appID), yamlEscapeString(guildID), yamlEscapeString(adminToken), yamlEscapeString(healthAddress))
}

// writeConfig writes the config file, creating parent directories as needed.
// The file holds the bot token, so it is never world-readable.
func writeConfig(path, content string, setOwnership bool, out io.Writer) error {
	path = filepath.Clean(path)

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	// Set ownership to lfgbot:lfgbot if running as root
	if setOwnership {
		u, err := user.Lookup(serviceName)
		if err != nil {
			fmt.Fprintf(out, "  WARNING: Could not look up user %s: %v\n", serviceName, err)
			return nil
		}
		g, err := user.LookupGroup(serviceName)
		if err != nil {
			fmt.Fprintf(out, "  WARNING: Could not look up group %s: %v\n", serviceName, err)
			return nil
		}
		uid, err := strconv.Atoi(u.Uid)
		if err != nil {
			fmt.Fprintf(out, "  WARNING: Could not parse UID %q for user %s: %v\n", u.Uid, serviceName, err)
			return nil
		}
		gid, err := strconv.Atoi(g.Gid)
		if err != nil {
			fmt.Fprintf(out, "  WARNING: Could not parse GID %q for group %s: %v\n", g.Gid, serviceName, err)
			return nil
		}
		if err := os.Chown(path, uid, gid); err != nil {
			fmt.Fprintf(out, "  WARNING: Could not set ownership to %s:%s: %v\n", serviceName, serviceName, err)
		}
	}

	return nil
}
