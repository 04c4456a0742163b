package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Price sources understood by the feed.
const (
	PriceSourceBinance = "binance"
	PriceSourceAlpaca  = "alpaca"
)

// SELL settlement modes understood by the ledger.
const (
	SellSettlementCredit = "credit"
	SellSettlementNone   = "none"
)

// secretVars are masked when the .env file is printed.
var secretVars = map[string]bool{
	"GEMINI_API_KEY":      true,
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
	"TELEGRAM_BOT_TOKEN":  true,
}

// Config holds the engine configuration.
type Config struct {
	Version string

	// Logging
	LogLevel      string
	LogPretty     bool
	LogFile       string
	MaxLogSizeMB  int64
	MaxLogBackups int

	// Advisory service
	GeminiAPIKey    string
	GeminiModel     string
	GeminiChatModel string
	GeminiBaseURL   string
	AdvisoryTimeout time.Duration
	StageInterval   time.Duration

	// Price feed
	PriceSource       string
	PriceSymbols      []string // First symbol is the primary one
	PricePollInterval time.Duration
	FeedStaleAfter    time.Duration
	FeedMaxRetries    int

	// Display loops
	JitterInterval time.Duration
	NewsInterval   time.Duration

	// Ledger
	SellSettlement string

	// Outer surfaces
	HTTPPort          int
	TelegramToken     string
	TelegramChatID    string
	SessionExportFile string
}

// Load reads a .env file if present and builds the configuration from the
// environment. It returns an error when a value is present but unusable.
func Load() (*Config, error) {
	// A missing .env is fine; system environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:     getEnvAsBool("LOG_PRETTY", false),
		LogFile:       getEnv("LOG_FILE", "nexus.log"),
		MaxLogSizeMB:  int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-3-pro-preview"),
		GeminiChatModel: getEnv("GEMINI_CHAT_MODEL", "gemini-3-flash-preview"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		AdvisoryTimeout: getEnvAsDuration("ADVISORY_TIMEOUT", 12*time.Second),
		StageInterval:   getEnvAsDuration("STAGE_INTERVAL", 500*time.Millisecond),

		PriceSource:       strings.ToLower(getEnv("PRICE_SOURCE", PriceSourceBinance)),
		PriceSymbols:      getEnvAsList("PRICE_SYMBOLS", []string{"BTCUSDT", "ETHUSDT"}),
		PricePollInterval: getEnvAsDuration("PRICE_POLL_INTERVAL", 5*time.Second),
		FeedStaleAfter:    getEnvAsDuration("FEED_STALE_AFTER", 15*time.Second),
		FeedMaxRetries:    getEnvAsInt("FEED_MAX_RETRIES", 2),

		JitterInterval: getEnvAsDuration("JITTER_INTERVAL", 150*time.Millisecond),
		NewsInterval:   getEnvAsDuration("NEWS_INTERVAL", 8*time.Second),

		SellSettlement: strings.ToLower(getEnv("SELL_SETTLEMENT", SellSettlementCredit)),

		HTTPPort:          getEnvAsInt("HTTP_PORT", 8090),
		TelegramToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:    os.Getenv("TELEGRAM_CHAT_ID"),
		SessionExportFile: os.Getenv("SESSION_EXPORT_FILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	intervals := map[string]time.Duration{
		"ADVISORY_TIMEOUT":    c.AdvisoryTimeout,
		"STAGE_INTERVAL":      c.StageInterval,
		"PRICE_POLL_INTERVAL": c.PricePollInterval,
		"FEED_STALE_AFTER":    c.FeedStaleAfter,
		"JITTER_INTERVAL":     c.JitterInterval,
		"NEWS_INTERVAL":       c.NewsInterval,
	}
	for key, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}

	// cron schedules run at one-second resolution
	if c.PricePollInterval < time.Second || c.NewsInterval < time.Second {
		return fmt.Errorf("PRICE_POLL_INTERVAL and NEWS_INTERVAL must be at least 1s")
	}

	switch c.PriceSource {
	case PriceSourceBinance, PriceSourceAlpaca:
	default:
		return fmt.Errorf("PRICE_SOURCE must be %q or %q, got %q", PriceSourceBinance, PriceSourceAlpaca, c.PriceSource)
	}

	switch c.SellSettlement {
	case SellSettlementCredit, SellSettlementNone:
	default:
		return fmt.Errorf("SELL_SETTLEMENT must be %q or %q, got %q", SellSettlementCredit, SellSettlementNone, c.SellSettlement)
	}

	if len(c.PriceSymbols) == 0 {
		return fmt.Errorf("PRICE_SYMBOLS must name at least one symbol")
	}
	if c.FeedMaxRetries < 0 {
		return fmt.Errorf("FEED_MAX_RETRIES must not be negative")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	return nil
}

// TelegramEnabled reports whether trade notifications can be sent.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// PrintEnvFile logs the variables defined in the .env file, masking secrets.
func PrintEnvFile(log zerolog.Logger) {
	envMap, err := godotenv.Read()
	if err != nil {
		log.Debug().Msg("No .env file found, using system environment variables")
		return
	}
	for key, val := range envMap {
		if secretVars[key] {
			val = mask(val)
		}
		log.Info().Str("key", key).Str("value", val).Msg(".env")
	}
}

// mask shows only the last 4 characters of a secret.
func mask(val string) string {
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}
