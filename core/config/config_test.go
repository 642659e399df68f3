package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesScreenDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: abc\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Screens.IDsStore != IDsStoreFile || cfg.Screens.IDsPath != defaultIDsPath {
		t.Fatalf("unexpected ids settings %+v", cfg.Screens)
	}
	if cfg.Screens.Root != "MainMenu" || cfg.Screens.MaxRedirects != 8 {
		t.Fatalf("unexpected screen defaults %+v", cfg.Screens)
	}
	if cfg.Locale.Default != "en" {
		t.Fatalf("locale default = %q", cfg.Locale.Default)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"telegram:",
		"  token: from-file",
		"screens:",
		"  ids_store: file",
		"maintenance:",
		"  enabled: false",
	}, "\n"))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("SCREENS_IDS_STORE", "DB")
	t.Setenv("MAINTENANCE_ENABLED", "true")
	t.Setenv("MAINTENANCE_WHITELIST", "10,20")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Screens.IDsStore != IDsStoreDB {
		t.Fatalf("ids store = %q", cfg.Screens.IDsStore)
	}
	if !cfg.Maintenance.Enabled || len(cfg.Maintenance.Whitelist) != 2 || cfg.Maintenance.Whitelist[1] != 20 {
		t.Fatalf("maintenance = %+v", cfg.Maintenance)
	}
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	cases := map[string]Config{
		"missing token": {},
		"bad run mode":  {Telegram: TelegramConfig{Token: "x", RunMode: "carrier-pigeon"}},
		"webhook without url": {
			Telegram: TelegramConfig{Token: "x", RunMode: RunModeWebhook},
		},
		"bad ids store": {
			Telegram: TelegramConfig{Token: "x"},
			Screens:  ScreensConfig{IDsStore: "redis"},
		},
		"negative redirects": {
			Telegram: TelegramConfig{Token: "x"},
			Screens:  ScreensConfig{MaxRedirects: -1},
		},
		"bad exclude": {
			Telegram:  TelegramConfig{Token: "x"},
			RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}},
		},
	}
	for name, cfg := range cases {
		cfg := cfg
		if err := Normalize(&cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNormalizeKeepsExplicitScreenSettings(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("positive max_redirects and a root name survive normalization", prop.ForAll(
		func(max int, root string) bool {
			cfg := Config{
				Telegram: TelegramConfig{Token: "x"},
				Screens:  ScreensConfig{MaxRedirects: max, Root: root},
			}
			if err := Normalize(&cfg); err != nil {
				return false
			}
			return cfg.Screens.MaxRedirects == max && cfg.Screens.Root == root
		},
		gen.IntRange(1, 64),
		gen.RegexMatch("[A-Z][A-Za-z]{1,12}"),
	))

	properties.TestingRun(t)
}

func TestNormalizeCleansExcludeUpdates(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{Token: "x", RunMode: "Polling"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback", "", "INLINE_QUERY"}},
	}
	if err := Normalize(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if got := strings.Join(cfg.RateLimit.ExcludeUpdates, ","); got != "callback,inline_query" {
		t.Fatalf("exclude = %s", got)
	}
}

func TestDecodeReadsLoggingEnv(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: x\nlogging:\n  level: info\n")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	var cfg Config
	if err := Decode(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if err := Decode(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Fatal("missing file accepted")
	}
}
