// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Data      DataConfig
	Server    ServerConfig
	Store     StoreConfig
	Anthropic AnthropicConfig
	Brand     BrandConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	// File enables a rotating JSON log file when non-empty.
	File      string
	MaxSizeMB int
}

// DataConfig holds the on-disk location for records, keys and the search index.
type DataConfig struct {
	BasePath string
	// BackupDir defaults to <BasePath>/backups.
	BackupDir string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port                  string        // Server port (default: 8080)
	ReadTimeout           time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout          time.Duration // HTTP write timeout (default: 90s, generation is slow)
	IdleTimeout           time.Duration // HTTP idle timeout (default: 60s)
	CORSOrigins           []string
	GenerateRatePerMinute int
}

// StoreConfig selects the blob store backend.
type StoreConfig struct {
	Backend  string
	RedisURL string
}

// AnthropicConfig configures the text generation capability.
type AnthropicConfig struct {
	// APIKey is the fallback credential when none has been saved through the API.
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	PostMaxTokens  int
	ImageMaxTokens int
}

// BrandConfig points at an optional YAML brand profile.
type BrandConfig struct {
	ProfilePath string
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("postsmith", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFile := fs.String("log-file", "", "Rotating log file path (default: console only)")
	dataPath := fs.String("data-path", "", "Base path for records, keys and search index")
	backupDir := fs.String("backup-dir", "", "Directory for backup archives (default: <data-path>/backups)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 90s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated list of allowed origins")
	generateRate := fs.String("generate-rate", "", "Generation requests per minute per client (default: 10)")

	backend := fs.String("store", "", "Record store backend: badger, sqlite, redis, memory (default: badger)")
	redisURL := fs.String("redis-url", "", "Redis URL when --store=redis")

	apiURL := fs.String("anthropic-url", "", "Anthropic API base URL")
	model := fs.String("model", "", "Model used for generation")
	genTimeout := fs.String("generation-timeout", "", "Timeout for a single generation call (default: 60s)")

	brandProfile := fs.String("brand-profile", "", "Path to a YAML brand profile")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine. Existing env vars win over the file.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:     getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			File:      getConfigValue(*logFile, "LOG_FILE", ""),
			MaxSizeMB: getIntConfigValue("", "LOG_MAX_SIZE_MB", 50),
		},
		Data: DataConfig{
			BasePath:  getConfigValue(*dataPath, "DATA_PATH", ""),
			BackupDir: getConfigValue(*backupDir, "BACKUP_DIR", ""),
		},
		Server: ServerConfig{
			Port:                  getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins:           splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "")),
			GenerateRatePerMinute: getIntConfigValue(*generateRate, "GENERATE_RATE_PER_MINUTE", 10),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(getConfigValue(*backend, "STORE_BACKEND", BackendBadger)),
			RedisURL: getConfigValue(*redisURL, "REDIS_URL", ""),
		},
		Anthropic: AnthropicConfig{
			APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
			BaseURL:        getConfigValue(*apiURL, "ANTHROPIC_API_URL", "https://api.anthropic.com"),
			Model:          getConfigValue(*model, "ANTHROPIC_MODEL", "claude-sonnet-4-5"),
			PostMaxTokens:  getIntConfigValue("", "POST_MAX_TOKENS", 2000),
			ImageMaxTokens: getIntConfigValue("", "IMAGE_MAX_TOKENS", 500),
		},
		Brand: BrandConfig{
			ProfilePath: getConfigValue(*brandProfile, "BRAND_PROFILE_PATH", ""),
		},
	}

	var err error
	if cfg.Server.ReadTimeout, err = parseDuration(*readTimeout, "SERVER_READ_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Server.WriteTimeout, err = parseDuration(*writeTimeout, "SERVER_WRITE_TIMEOUT", "90s"); err != nil {
		return nil, err
	}
	if cfg.Server.IdleTimeout, err = parseDuration(*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"); err != nil {
		return nil, err
	}
	if cfg.Anthropic.Timeout, err = parseDuration(*genTimeout, "GENERATION_TIMEOUT", "60s"); err != nil {
		return nil, err
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Data.BackupDir, err = expandPath(cfg.Data.BackupDir, filepath.Join(cfg.Data.BasePath, "backups")); err != nil {
		return nil, fmt.Errorf("invalid backup dir: %w", err)
	}

	if cfg.Logger.File != "" {
		if cfg.Logger.File, err = expandPath(cfg.Logger.File, ""); err != nil {
			return nil, fmt.Errorf("invalid log file: %w", err)
		}
	}

	if cfg.Brand.ProfilePath != "" {
		if cfg.Brand.ProfilePath, err = expandPath(cfg.Brand.ProfilePath, ""); err != nil {
			return nil, fmt.Errorf("invalid brand profile path: %w", err)
		}
	}

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

	if c.Data.BasePath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Store.Backend {
	case BackendBadger, BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be badger, sqlite, redis, or memory)", c.Store.Backend)
	}

	if c.Server.GenerateRatePerMinute <= 0 {
		return fmt.Errorf("invalid generate rate: %d (must be positive)", c.Server.GenerateRatePerMinute)
	}

	if c.Anthropic.Timeout <= 0 {
		return errors.New("generation timeout must be positive")
	}
	// A zero write timeout means no deadline.
	if wt := c.Server.WriteTimeout; wt > 0 && c.Anthropic.Timeout >= wt {
		return fmt.Errorf("generation timeout %s must be shorter than server write timeout %s", c.Anthropic.Timeout, wt)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults to ~/WorksS/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "WorksS", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

func parseDuration(flagValue, envKey, defaultValue string) (time.Duration, error) {
	s := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToLower(envKey), s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
