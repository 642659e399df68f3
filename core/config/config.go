// Package config holds the settings shared by every bot built on the core and
// the YAML-then-environment loader used for them.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	RunModeWebhook  = "webhook"
	RunModeLongpoll = "longpoll"
)

// Update kinds accepted by rate_limit.exclude_updates.
const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

var updateKinds = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

// Screen identifier stores.
const (
	IDsStoreFile = "file"
	IDsStoreDB   = "db"
)

const (
	defaultIDsPath      = "files/screen_ids.json"
	defaultRootScreen   = "MainMenu"
	defaultMaxRedirects = 8
	defaultLocale       = "en"
)

type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// RunMode is webhook or longpoll ("polling" is accepted too).
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// 0 keeps the poller default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig is read by logger.InitLogger.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample" envconfig:"LOG_DEBUG_SAMPLE"`
	Stacks      string `yaml:"stacks" envconfig:"LOG_STACKS"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file"`
	ErrorsFile  string `yaml:"errors_file"`
	// Profile is "debug" or "prod"; debug lowers the default level.
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig throttles each user to one update per interval, except for
// the update kinds listed in ExcludeUpdates.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// ScreensConfig controls the menu engine.
type ScreensConfig struct {
	IDsStore string `yaml:"ids_store" envconfig:"SCREENS_IDS_STORE"`
	// IDsPath is the JSON or YAML table used by the file store.
	IDsPath string `yaml:"ids_path" envconfig:"SCREENS_IDS_PATH"`
	// Root names the screen behind the persistent menu button.
	Root         string `yaml:"root" envconfig:"SCREENS_ROOT"`
	SupportURL   string `yaml:"support_url" envconfig:"SCREENS_SUPPORT_URL"`
	MaxRedirects int    `yaml:"max_redirects" envconfig:"SCREENS_MAX_REDIRECTS"`
}

type LocaleConfig struct {
	Default string `yaml:"default" envconfig:"LOCALE_DEFAULT"`
}

// MaintenanceConfig limits the bot to Whitelist while Enabled.
type MaintenanceConfig struct {
	Enabled   bool    `yaml:"enabled" envconfig:"MAINTENANCE_ENABLED"`
	Whitelist []int64 `yaml:"whitelist" envconfig:"MAINTENANCE_WHITELIST"`
}

// Config aggregates the configuration that belongs to the reusable core.
type Config struct {
	Telegram    TelegramConfig    `yaml:"telegram"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Logging     LoggingConfig     `yaml:"logging"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Screens     ScreensConfig     `yaml:"screens"`
	Locale      LocaleConfig      `yaml:"locale"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// Decode fills dst from the YAML file at path, then lets the environment
// override it. dst is any struct using yaml and envconfig tags.
func Decode(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", dst); err != nil {
		return fmt.Errorf("failed to process env: %w", err)
	}
	return nil
}

// Load reads and normalizes the core configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills in defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	for _, step := range []func() error{
		cfg.normalizeTelegram,
		cfg.normalizeRateLimit,
		cfg.normalizeScreens,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (cfg *Config) normalizeTelegram() error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling":
		mode = RunModeLongpoll
	}

	switch mode {
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	case RunModeWebhook:
		wh := cfg.Webhook
		switch {
		case strings.TrimSpace(wh.URL) == "":
			return webhookMissing("webhook.url")
		case strings.TrimSpace(wh.Listen) == "":
			return webhookMissing("webhook.listen")
		case wh.Port <= 0:
			return fmt.Errorf("webhook.port must be > 0 in webhook mode")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = mode
	return nil
}

func webhookMissing(field string) error {
	return fmt.Errorf("%s is required in webhook mode", field)
}

func (cfg *Config) normalizeRateLimit() error {
	kinds := cfg.RateLimit.ExcludeUpdates[:0]
	for _, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind == "" {
			continue
		}
		if !slices.Contains(updateKinds, kind) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s", v, strings.Join(updateKinds, ", "))
		}
		kinds = append(kinds, kind)
	}
	cfg.RateLimit.ExcludeUpdates = kinds
	return nil
}

func (cfg *Config) normalizeScreens() error {
	s := &cfg.Screens
	switch store := strings.ToLower(strings.TrimSpace(s.IDsStore)); store {
	case "":
		s.IDsStore = IDsStoreFile
	case IDsStoreFile, IDsStoreDB:
		s.IDsStore = store
	default:
		return fmt.Errorf("invalid screens.ids_store %q; allowed: file, db", s.IDsStore)
	}
	if s.MaxRedirects < 0 {
		return fmt.Errorf("screens.max_redirects must be >= 0")
	}
	s.MaxRedirects = orDefault(s.MaxRedirects, defaultMaxRedirects)
	s.IDsPath = orDefault(strings.TrimSpace(s.IDsPath), defaultIDsPath)
	s.Root = orDefault(strings.TrimSpace(s.Root), defaultRootScreen)
	cfg.Locale.Default = orDefault(strings.ToLower(strings.TrimSpace(cfg.Locale.Default)), defaultLocale)
	return nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
