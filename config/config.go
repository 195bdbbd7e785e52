package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var global *Config

// Config holds process-level settings loaded from the environment.
// Per-symbol trading parameters live in the strategy file, see Load.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string
	WSURL     string

	TelegramToken  string
	TelegramChatID int64

	APIServerPort int
	LogLevel      string

	CheckInterval  time.Duration
	ResyncInterval time.Duration

	// ShutdownMode is "flatten" (close positions and cancel orders on exit)
	// or "pause" (leave resting orders in place).
	ShutdownMode string
}

// Init loads .env if present and populates the global config from the
// environment. Exchange credentials are mandatory.
func Init() error {
	godotenv.Load()

	cfg := &Config{
		BaseURL:        "https://api.backpack.exchange",
		WSURL:          "wss://ws.backpack.exchange",
		APIServerPort:  8080,
		LogLevel:       "info",
		CheckInterval:  10 * time.Second,
		ResyncInterval: 30 * time.Second,
		ShutdownMode:   "flatten",
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("BACKPACK_API_KEY"))
	cfg.APISecret = strings.TrimSpace(os.Getenv("BACKPACK_API_SECRET"))
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("BACKPACK_API_KEY and BACKPACK_API_SECRET are required")
	}

	if v := os.Getenv("BACKPACK_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("BACKPACK_WS_URL"); v != "" {
		cfg.WSURL = strings.TrimRight(v, "/")
	}

	cfg.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	if v := os.Getenv("API_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.APIServerPort = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v := os.Getenv("CHECK_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CheckInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("RESYNC_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResyncInterval = time.Duration(n) * time.Second
		}
	}

	if v := strings.ToLower(os.Getenv("SHUTDOWN_MODE")); v == "flatten" || v == "pause" {
		cfg.ShutdownMode = v
	}

	global = cfg
	return nil
}

// Get returns the global config. Init must have succeeded first.
func Get() *Config {
	return global
}
