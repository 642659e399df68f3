package logger

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	coreconfig "github.com/m3rciful/menubot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

// options is the logging section of the config after defaults.
type options struct {
	format     logFormat
	level      slog.Level
	keyOrder   []string
	sampleNum  int
	sampleDen  int
	source     bool
	sourceFrom slog.Level
	dir        string
	botFile    string
	errorsFile string
	profile    string
	trace      bool
}

func optionsFrom(cfg *coreconfig.Config) (options, error) {
	o := options{
		format:    formatJSON,
		level:     slog.LevelInfo,
		keyOrder:  slices.Clone(defaultKeyOrder),
		sampleNum: defaultSampleNum,
		sampleDen: defaultSampleDen,
		trace:     isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE")),
	}
	if cfg == nil {
		return o, nil
	}
	lc := cfg.Logging

	o.profile = strings.ToLower(strings.TrimSpace(lc.Profile))
	if o.profile == "" {
		o.profile = "prod"
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	case "":
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	default:
		return o, fmt.Errorf("logger: unknown logging.format %q; allowed: kv, json", lc.Format)
	}
	o.level = parseLevel(lc.Level)
	if order := splitList(lc.KeysOrder); len(order) > 0 && !(len(order) == 1 && order[0] == "default") {
		o.keyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		o.sampleNum, o.sampleDen = parseRatioSpec(spec)
	}
	var ok bool
	if o.source, o.sourceFrom, ok = parseStacks(lc.Stacks); !ok {
		return o, fmt.Errorf("logger: unknown logging.stacks %q; allowed: off, error, warn, all", lc.Stacks)
	}
	o.dir = strings.TrimSpace(lc.Dir)
	o.botFile = strings.TrimSpace(lc.BotFile)
	o.errorsFile = strings.TrimSpace(lc.ErrorsFile)
	return o, nil
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseStacks reads logging.stacks: off, error, warn or all.
func parseStacks(raw string) (on bool, from slog.Level, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "off", "false":
		return false, 0, true
	case "all", "debug":
		return true, slog.LevelDebug, true
	case "warn":
		return true, slog.LevelWarn, true
	case "error", "on", "true":
		return true, slog.LevelError, true
	}
	return false, 0, false
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
