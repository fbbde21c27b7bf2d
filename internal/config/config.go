// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Supported storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Store    StoreConfig
	Notifier NotifierConfig
	Mail     MailConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port               string        // Server port (default: 8080)
	ReadTimeout        time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout       time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout        time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins        []string      // Allowed origins (default: *)
	RateLimitPerMinute int           // Requests per client IP per minute, 0 disables (default: 300)
	RateLimitBurst     int           // Burst above the steady rate (default: 50)
}

// StoreConfig selects and locates the storage backend.
type StoreConfig struct {
	// Driver is one of sqlite, badger or postgres (default: sqlite)
	Driver string
	// DataPath is the directory holding sqlite/badger files (default: ~/LibraryAPI/data)
	DataPath string
	// PostgresDSN is required when Driver is postgres.
	PostgresDSN string
}

// NotifierConfig holds overdue reminder configuration.
type NotifierConfig struct {
	Enabled     bool   // Run on a schedule (default: true)
	Schedule    string // Cron expression (default: daily at midnight)
	OverdueDays int    // Days after which a loan is late (default: 4)
	Subject     string
	Message     string
}

// MailConfig holds outbound SMTP configuration.
// With an empty SMTPHost reminders are logged instead of sent.
type MailConfig struct {
	SMTPHost       string
	SMTPPort       int
	Username       string
	Password       string
	From           string
	SendsPerMinute int // Outbound throttle (default: 30)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")

	// Server flags
	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := flag.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	rateLimit := flag.String("rate-limit", "", "Requests per client per minute, 0 disables (default: 300)")

	// Store flags
	storeDriver := flag.String("store", "", "Storage driver: sqlite, badger or postgres (default: sqlite)")
	dataPath := flag.String("data-path", "", "Directory for sqlite/badger data")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")

	// Notifier flags
	notifierEnabled := flag.String("notifier-enabled", "", "Send overdue reminders on a schedule (default: true)")
	notifierSchedule := flag.String("notifier-schedule", "", "Cron schedule for reminders (default: 0 0 * * *)")
	overdueDays := flag.String("overdue-days", "", "Days after which a loan is overdue (default: 4)")

	// Mail flags
	smtpHost := flag.String("smtp-host", "", "SMTP host; reminders are only logged when empty")
	smtpPort := flag.String("smtp-port", "", "SMTP port (default: 587)")
	mailFrom := flag.String("mail-from", "", "Sender address for reminders")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},

		Server: ServerConfig{
			Port:               getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:        splitList(getConfigValue(*corsOrigins, "CORS_ALLOWED_ORIGINS", "*")),
			RateLimitPerMinute: getIntConfigValue(*rateLimit, "RATE_LIMIT_PER_MINUTE", 300),
			RateLimitBurst:     getIntConfigValue("", "RATE_LIMIT_BURST", 50),
		},

		Store: StoreConfig{
			Driver:      strings.ToLower(getConfigValue(*storeDriver, "STORE_DRIVER", DriverSQLite)),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			PostgresDSN: getConfigValue(*postgresDSN, "POSTGRES_DSN", ""),
		},

		Notifier: NotifierConfig{
			Enabled:     getBoolConfigValue(*notifierEnabled, "NOTIFIER_ENABLED", true),
			Schedule:    getConfigValue(*notifierSchedule, "NOTIFIER_SCHEDULE", "0 0 * * *"),
			OverdueDays: getIntConfigValue(*overdueDays, "NOTIFIER_OVERDUE_DAYS", 4),
			Subject:     getConfigValue("", "NOTIFIER_SUBJECT", "Overdue book"),
			Message: getConfigValue("", "NOTIFIER_MESSAGE",
				"You have a book that is past its return date. Please return it as soon as possible."),
		},

		Mail: MailConfig{
			SMTPHost:       getConfigValue(*smtpHost, "SMTP_HOST", ""),
			SMTPPort:       getIntConfigValue(*smtpPort, "SMTP_PORT", 587),
			Username:       getConfigValue("", "SMTP_USERNAME", ""),
			Password:       getConfigValue("", "SMTP_PASSWORD", ""),
			From:           getConfigValue(*mailFrom, "MAIL_FROM", ""),
			SendsPerMinute: getIntConfigValue("", "MAIL_SENDS_PER_MINUTE", 30),
		},
	}

	// Parse server timeouts.
	var err error
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"); err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	// Expand and validate data path.
	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverBadger:
		if c.Store.DataPath == "" {
			return errors.New("data path cannot be empty after expansion")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store driver: %s (must be sqlite, badger, or postgres)", c.Store.Driver)
	}

	if c.Notifier.OverdueDays < 1 {
		return fmt.Errorf("invalid overdue days: %d (must be at least 1)", c.Notifier.OverdueDays)
	}
	if c.Notifier.Enabled && c.Notifier.Schedule == "" {
		return errors.New("notifier schedule is required when the notifier is enabled")
	}

	if c.Mail.SMTPHost != "" && c.Mail.From == "" {
		return errors.New("MAIL_FROM is required when SMTP_HOST is set")
	}

	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("invalid rate limit: %d", c.Server.RateLimitPerMinute)
	}

	return nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath expands ~ and makes the path absolute.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "LibraryAPI", "data")

	expanded, err := expandPath(c.Store.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Store.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", envKey, s, err)
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
