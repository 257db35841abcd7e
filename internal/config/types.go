package config

import (
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	API      APIConfig      `json:"api"`
	Commands CommandsConfig `json:"commands"`
	Monitor  MonitorConfig  `json:"monitor"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  *StorageConfig `json:"storage,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`
}

type TelegramConfig struct {
	// Token may be left empty in the file and supplied via BOT_TOKEN.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`

	// OpsChat receives WARN+ log lines when logging.telegram.enabled is set.
	OpsChat string `json:"ops_chat,omitempty"`
}

// APIConfig points at the stock-alert backend.
//
// All timeouts are Go duration strings. Defaults match the backend's expected
// latencies: 15s for data calls, 10s for the summary ping, 30s for the price
// refresh action (it fans out to upstream quote providers).
type APIConfig struct {
	BaseURL        string `json:"base_url,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`
	SummaryTimeout string `json:"summary_timeout,omitempty"`
	RefreshTimeout string `json:"refresh_timeout,omitempty"`
}

type CommandsConfig struct {
	// Prefix is the command sigil, default "!". "/" is always accepted too so
	// Telegram's native command UI keeps working.
	Prefix string `json:"prefix,omitempty"`
}

type MonitorConfig struct {
	Enabled *bool `json:"enabled,omitempty"` // nil means enabled

	// Interval between monitoring passes (default "2m").
	Interval string `json:"interval,omitempty"`

	// Cooldown is the minimum gap between notifications per user (default "5m").
	Cooldown string `json:"cooldown,omitempty"`

	// RefreshSpec optionally schedules a backend price refresh (cron or
	// interval spec, e.g. "*/30 * * * *" or "30m"). Empty disables it.
	// It runs with the first active session's credentials.
	RefreshSpec string `json:"refresh_spec,omitempty"`
}

type NotifierConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"` // default 3
}

type LoggingConfig struct {
	Level    string            `json:"level,omitempty"`
	Console  bool              `json:"console"`
	File     LogFileConfig     `json:"file"`
	Telegram LogTelegramConfig `json:"telegram"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type LogTelegramConfig struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// StorageConfig enables the optional audit trail. Driver "file" appends JSONL;
// "sqlite" needs the sqlite build tag. Empty/none disables storage.
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	Workers        int    `json:"workers,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

// Default returns the built-in config used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
	}
}

// ApplyEnv overlays environment variables onto cfg. Env always wins over the
// file so deployments can keep secrets out of it.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("STOCK_API_URL")); v != "" {
		c.API.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("BOT_PREFIX")); v != "" {
		c.Commands.Prefix = v
	}
}

// Validate checks the startup-fatal invariants.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram token missing: set BOT_TOKEN or telegram.token")
	}
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("backend base URL missing: set STOCK_API_URL or api.base_url")
	}
	return nil
}

// Prefix returns the effective command prefix.
func (c *Config) Prefix() string {
	p := strings.TrimSpace(c.Commands.Prefix)
	if p == "" {
		return "!"
	}
	return p
}

func (c *MonitorConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
