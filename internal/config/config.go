package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "WEENOTIFY_"

	DefaultFileName       = ".weenotify.yml"
	DefaultNoticeDuration = 5000
)

type Config struct {
	Connection ConnectionConfig `koanf:"connection"`
	Behavior   BehaviorConfig   `koanf:"behavior"`
	Notifier   NotifierConfig   `koanf:"notifier"`
	Log        LogConfig        `koanf:"log"`
}

type ConnectionConfig struct {
	Host            string        `koanf:"host"`
	User            string        `koanf:"user"`
	Pass            string        `koanf:"pass"`
	Vhost           string        `koanf:"vhost"`
	Exchange        string        `koanf:"exchange"`
	ExchangeDurable bool          `koanf:"exchange_durable"`
	Timeout         time.Duration `koanf:"timeout"`
}

type BehaviorConfig struct {
	// NoticeDuration is in milliseconds.
	NoticeDuration  int      `koanf:"notice_duration"`
	IgnoredChannels []string `koanf:"ignored_channels"`
	IgnoredSenders  []string `koanf:"ignored_senders"`
	IgnoredTags     []string `koanf:"ignored_tags"`
	SkipMalformed   bool     `koanf:"skip_malformed"`
}

func (b BehaviorConfig) NoticeTimeout() time.Duration {
	return time.Duration(b.NoticeDuration) * time.Millisecond
}

type NotifierConfig struct {
	Desktop  DesktopConfig  `koanf:"desktop"`
	Telegram TelegramConfig `koanf:"telegram"`
}

type DesktopConfig struct {
	Enabled bool   `koanf:"enabled"`
	AppName string `koanf:"app_name"`
	Icon    string `koanf:"icon"`
}

type TelegramConfig struct {
	Token   string   `koanf:"token"`
	ChatIDs []string `koanf:"chat_ids"`
}

func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && len(t.ChatIDs) > 0
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Error reports a missing or invalid configuration key.
type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

func defaults() map[string]any {
	return map[string]any{
		"connection.exchange_durable": false,
		"connection.timeout":          "30s",
		"behavior.notice_duration":    DefaultNoticeDuration,
		"behavior.skip_malformed":     false,
		"notifier.desktop.enabled":    true,
		"notifier.desktop.app_name":   "weenotify",
		"log.level":                   "info",
		"log.format":                  "console",
	}
}

// DefaultPath returns ~/.weenotify.yml.
func DefaultPath(home string) string {
	return filepath.Join(home, DefaultFileName)
}

// Load reads path (YAML, or JSON for a .json extension), applies
// WEENOTIFY_* environment overrides and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, err
	}

	if err := k.Load(file.Provider(path), parserFor(path)); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required keys in a fixed order and returns the first problem.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"connection.host", c.Connection.Host},
		{"connection.user", c.Connection.User},
		{"connection.pass", c.Connection.Pass},
		{"connection.vhost", c.Connection.Vhost},
		{"connection.exchange", c.Connection.Exchange},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &Error{Key: r.key, Reason: "required key is missing"}
		}
	}

	if c.Behavior.NoticeDuration < 0 {
		return &Error{Key: "behavior.notice_duration", Reason: "must not be negative"}
	}
	if c.Behavior.NoticeDuration == 0 {
		c.Behavior.NoticeDuration = DefaultNoticeDuration
	}
	if c.Connection.Timeout <= 0 {
		return &Error{Key: "connection.timeout", Reason: "must be positive"}
	}

	return nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

// envKey maps WEENOTIFY_CONNECTION__PASS to connection.pass.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
