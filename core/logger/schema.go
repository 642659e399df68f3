package logger

import (
	"log/slog"
	"slices"
	"strings"
)

// Canonical level names.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return LevelInfo
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error", "fatal":
		return LevelError
	}
	return strings.ToUpper(level)
}

// enum is a field with a closed vocabulary. Off-vocabulary values are kept
// lowercased when lenient and dropped otherwise.
type enum struct {
	key     string
	values  []string
	lenient bool
}

var enums = []enum{
	{key: "status", lenient: true, values: []string{"ok", "fail", "degraded", "skip", "retry", "rate_limited", "cancelled"}},
	{key: "outcome", values: []string{"ok", "fail", "cancelled", "rate_limited", "render", "redirect", "stop", "denied"}},
	{key: "delivery", values: []string{"send", "edit"}},
	{key: "cache", values: []string{"hit", "miss", "refresh"}},
}

func (e entry) normalizeEnums() {
	if lvl, ok := e["level"].(string); ok {
		e["level"] = normalizeLevel(lvl)
	}
	for _, en := range enums {
		raw, ok := e[en.key].(string)
		if !ok || raw == "" {
			continue
		}
		v := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case slices.Contains(en.values, v), en.lenient:
			e[en.key] = v
		default:
			delete(e, en.key)
		}
	}
}

// defaultKeyOrder puts the fields read most often first; keys not listed
// follow in lexical order.
var defaultKeyOrder = slices.Concat(
	[]string{"ts", "level", "component", "event", "status"},
	// correlation
	[]string{"rid", "rid_full", "ts_unix_nano", "update_id", "user_id", "chat_id", "chat_type", "handler"},
	// navigation
	[]string{"screen", "screen_id", "target", "depth", "kind", "operation", "op", "outcome", "delivery", "message_id"},
	// update details
	[]string{"duration_ms", "messages", "kb", "count", "high", "props", "props_truncated", "payload", "lang", "username"},
	// transport and storage
	[]string{"mode", "listen", "public_url", "http_code", "method", "attempt", "delay_ms", "driver", "db", "host", "port"},
	// failures
	[]string{"err", "err_code", "cause", "src", "retryable", "attempts", "backoff_ms", "rate_limited", "collapsed", "repeats", "pending_count", "blocked_writes"},
)
