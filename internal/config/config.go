package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the RingDesk server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir       string
	HTTPPort      int
	PublicBaseURL string // externally reachable base URL for webhook callbacks
	DefaultTenant string // tenant absorbing unresolvable calls
	LogLevel      string
	LogFormat     string // log output format: "text" or "json"

	// SMS provider.
	SMSAPIURL     string
	SMSAPIKey     string
	SMSFrom       string  // fallback sender number for tenants without one
	SMSRatePerSec float64 // outbound send rate cap, 0 disables limiting

	// Push notifications.
	FCMCredentialsFile string

	// AI reply generation.
	AIGatewayURL string
	AIAPIKey     string

	// Claim ledger store. Default is the embedded sqlite database;
	// a Postgres DSN or Redis address switches the ledger to a shared store
	// for multi-instance deployments.
	ClaimStoreDSN string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Webhook and link security.
	WebhookSecret string
	LinkSecret    string // HMAC secret for signed recording playback links

	// Provider credentials for downloading recording media.
	RecordingAuthUser string
	RecordingAuthPass string
}

// defaults
const (
	defaultDataDir       = "./data"
	defaultHTTPPort      = 8080
	defaultDefaultTenant = "root"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
)

// envPrefix is the prefix for all RingDesk environment variables.
const envPrefix = "RINGDESK_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults. A .env file in the working
// directory is loaded first so local development does not need exports.
func Load() (*Config, error) {
	// Missing .env is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{}

	fs := flag.NewFlagSet("ringdesk", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for database and recording storage")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.PublicBaseURL, "public-base-url", "", "externally reachable base URL for webhook callbacks (e.g., https://calls.example.com)")
	fs.StringVar(&cfg.DefaultTenant, "default-tenant", defaultDefaultTenant, "tenant id that absorbs calls to unresolvable numbers")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.StringVar(&cfg.SMSAPIURL, "sms-api-url", "", "SMS provider API base URL")
	fs.StringVar(&cfg.SMSAPIKey, "sms-api-key", "", "SMS provider API key")
	fs.StringVar(&cfg.SMSFrom, "sms-from", "", "fallback SMS sender number for tenants without one")
	fs.Float64Var(&cfg.SMSRatePerSec, "sms-rate-per-sec", 5, "outbound SMS rate cap per second (0 disables limiting)")
	fs.StringVar(&cfg.FCMCredentialsFile, "fcm-credentials-file", "", "path to Firebase service-account JSON for push notifications")
	fs.StringVar(&cfg.AIGatewayURL, "ai-gateway-url", "", "base URL of the reply-generation gateway")
	fs.StringVar(&cfg.AIAPIKey, "ai-api-key", "", "API key for the reply-generation gateway")
	fs.StringVar(&cfg.ClaimStoreDSN, "claim-store-dsn", "", "Postgres DSN for a shared claim ledger (default: embedded sqlite)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "Redis address for a shared claim ledger (e.g., localhost:6379)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	fs.StringVar(&cfg.WebhookSecret, "webhook-secret", "", "HMAC secret for webhook signature verification (log-only)")
	fs.StringVar(&cfg.LinkSecret, "link-secret", "", "HMAC secret for signed recording playback links")
	fs.StringVar(&cfg.RecordingAuthUser, "recording-auth-user", "", "username for downloading recording media from the provider")
	fs.StringVar(&cfg.RecordingAuthPass, "recording-auth-pass", "", "password for downloading recording media from the provider")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs, cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. This preserves the precedence:
// CLI flags > env vars > defaults.
func applyEnvOverrides(fs *flag.FlagSet, cfg *Config) {
	// Track which flags were explicitly set via CLI.
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	// Map of flag name to env var name.
	envMap := map[string]string{
		"data-dir":             envPrefix + "DATA_DIR",
		"http-port":            envPrefix + "HTTP_PORT",
		"public-base-url":      envPrefix + "PUBLIC_BASE_URL",
		"default-tenant":       envPrefix + "DEFAULT_TENANT",
		"log-level":            envPrefix + "LOG_LEVEL",
		"log-format":           envPrefix + "LOG_FORMAT",
		"sms-api-url":          envPrefix + "SMS_API_URL",
		"sms-api-key":          envPrefix + "SMS_API_KEY",
		"sms-from":             envPrefix + "SMS_FROM",
		"sms-rate-per-sec":     envPrefix + "SMS_RATE_PER_SEC",
		"fcm-credentials-file": envPrefix + "FCM_CREDENTIALS_FILE",
		"ai-gateway-url":       envPrefix + "AI_GATEWAY_URL",
		"ai-api-key":           envPrefix + "AI_API_KEY",
		"claim-store-dsn":      envPrefix + "CLAIM_STORE_DSN",
		"redis-addr":           envPrefix + "REDIS_ADDR",
		"redis-password":       envPrefix + "REDIS_PASSWORD",
		"redis-db":             envPrefix + "REDIS_DB",
		"webhook-secret":       envPrefix + "WEBHOOK_SECRET",
		"link-secret":          envPrefix + "LINK_SECRET",
		"recording-auth-user":  envPrefix + "RECORDING_AUTH_USER",
		"recording-auth-pass":  envPrefix + "RECORDING_AUTH_PASS",
	}

	for flagName, envVar := range envMap {
		if set[flagName] {
			continue
		}
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			continue
		}
		switch flagName {
		case "data-dir":
			cfg.DataDir = val
		case "http-port":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.HTTPPort = v
			}
		case "public-base-url":
			cfg.PublicBaseURL = val
		case "default-tenant":
			cfg.DefaultTenant = val
		case "log-level":
			cfg.LogLevel = val
		case "log-format":
			cfg.LogFormat = val
		case "sms-api-url":
			cfg.SMSAPIURL = val
		case "sms-api-key":
			cfg.SMSAPIKey = val
		case "sms-from":
			cfg.SMSFrom = val
		case "sms-rate-per-sec":
			if v, err := strconv.ParseFloat(val, 64); err == nil {
				cfg.SMSRatePerSec = v
			}
		case "fcm-credentials-file":
			cfg.FCMCredentialsFile = val
		case "ai-gateway-url":
			cfg.AIGatewayURL = val
		case "ai-api-key":
			cfg.AIAPIKey = val
		case "claim-store-dsn":
			cfg.ClaimStoreDSN = val
		case "redis-addr":
			cfg.RedisAddr = val
		case "redis-password":
			cfg.RedisPassword = val
		case "redis-db":
			if v, err := strconv.Atoi(val); err == nil {
				cfg.RedisDB = v
			}
		case "webhook-secret":
			cfg.WebhookSecret = val
		case "link-secret":
			cfg.LinkSecret = val
		case "recording-auth-user":
			cfg.RecordingAuthUser = val
		case "recording-auth-pass":
			cfg.RecordingAuthPass = val
		}
	}
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.DefaultTenant == "" {
		return fmt.Errorf("default-tenant must not be empty")
	}
	if c.SMSRatePerSec < 0 {
		return fmt.Errorf("sms-rate-per-sec must not be negative, got %v", c.SMSRatePerSec)
	}
	if c.ClaimStoreDSN != "" && c.RedisAddr != "" {
		return fmt.Errorf("claim-store-dsn and redis-addr are mutually exclusive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	return nil
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
