package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	// errors, when set, also receives every WARN and ERROR line.
	errors   *asyncWriter
	format   logFormat
	keyOrder []string
	// source adds src=dir/file.go:line to records at or above sourceFrom.
	source     bool
	sourceFrom slog.Level
}

// field is an attribute already flattened and normalized by WithAttrs.
type field struct {
	key string
	val any
}

// structuredHandler renders records as single kv or JSON lines with a stable
// key order and the update meta found in the context.
type structuredHandler struct {
	cfg    handlerConfig
	fields []field
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	e := make(entry, 16)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	e["level"] = levelName(r.Level)
	if isJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}
	for _, f := range h.fields {
		e[f.key] = f.val
	}
	r.Attrs(func(a slog.Attr) bool {
		e.add(h.prefix, a)
		return true
	})
	e.addMeta(metaOf(ctx))

	if rid, _ := e["rid"].(string); rid != "" {
		if compact := CompactRID(rid); compact != "" && compact != rid {
			if isJSON {
				e.setDefault("rid_full", rid)
			}
			e["rid"] = compact
		}
	}
	if ev, _ := e["event"].(string); ev == "" {
		e["event"] = r.Message
		if r.Message == "" {
			e["event"] = "unknown"
		}
	}
	if c, _ := e["component"].(string); c == "" {
		e["component"] = "app"
	}
	if h.cfg.source && r.Level >= h.cfg.sourceFrom && r.PC != 0 {
		e.setDefault("src", source(r.PC))
	}

	e.normalizeEnums()
	e.prune()

	keys := orderedKeys(e, h.cfg.keyOrder)
	var line []byte
	if isJSON {
		var err error
		if line, err = encodeJSON(e, keys); err != nil {
			return err
		}
	} else {
		line = encodeKV(e, keys)
	}

	if err := h.cfg.writer.Write(line); err != nil {
		return err
	}
	if h.cfg.errors != nil && r.Level >= slog.LevelWarn {
		return h.cfg.errors.Write(line)
	}
	return nil
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	e := make(entry, len(attrs))
	for _, a := range attrs {
		e.add(h.prefix, a)
	}
	clone := *h
	clone.fields = slices.Clip(h.fields)
	for _, k := range orderedKeys(e, nil) {
		clone.fields = append(clone.fields, field{key: k, val: e[k]})
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

// entry holds the fields of one record before encoding.
type entry map[string]any

func (e entry) setDefault(key string, val any) {
	if _, ok := e[key]; !ok {
		e[key] = val
	}
}

// add flattens groups into dotted keys.
func (e entry) add(prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			e.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := attrValue(key, v); ok {
		e[k] = val
	}
}

func (e entry) addMeta(m updateMeta) {
	if m.rid != "" {
		e.setDefault("rid", m.rid)
	}
	if m.screen != "" {
		e.setDefault("screen", m.screen)
	}
	if m.userID != 0 {
		e.setDefault("user_id", m.userID)
	}
	if m.updateID != 0 {
		e.setDefault("update_id", m.updateID)
	}
	if m.chatID != 0 {
		e.setDefault("chat_id", m.chatID)
	}
	if m.handler != "" {
		e.setDefault("handler", m.handler)
	}
}

func (e entry) prune() {
	for k, v := range e {
		if v == nil || v == "" {
			delete(e, k)
		}
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// attrValue maps a slog value to what the encoders write. Durations become
// whole milliseconds under a key ending in _ms.
func attrValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return key, nil, false
		case error:
			return key, x.Error(), true
		case string:
			return key, strings.TrimSpace(x), true
		case time.Duration:
			return durationKey(key), RoundMS(x).Milliseconds(), true
		case fmt.Stringer:
			return key, x.String(), true
		default:
			return key, fmt.Sprint(x), true
		}
	}
	return key, v.Any(), true
}

// durationKey renames duration attributes so the unit is part of the key.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

func source(pc uintptr) string {
	f, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if f.File == "" {
		return ""
	}
	return filepath.Base(filepath.Dir(f.File)) + "/" + filepath.Base(f.File) + ":" + strconv.Itoa(f.Line)
}

// orderedKeys lists the keys named in order first, then the rest sorted.
func orderedKeys(e entry, order []string) []string {
	keys := make([]string, 0, len(e))
	seen := make(map[string]bool, len(e))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	head := len(keys)
	for k := range e {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[head:])
	return keys
}

func encodeJSON(e entry, keys []string) ([]byte, error) {
	buf := make([]byte, 0, 256)
	buf = append(buf, '{')
	for i, k := range keys {
		data, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, data...)
	}
	return append(buf, '}', '\n'), nil
}

func encodeKV(e entry, keys []string) []byte {
	buf := make([]byte, 0, 256)
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		buf = appendKV(buf, e[k])
	}
	return append(buf, '\n')
}

func appendKV(buf []byte, v any) []byte {
	var s string
	switch x := v.(type) {
	case bool:
		return strconv.AppendBool(buf, x)
	case int:
		return strconv.AppendInt(buf, int64(x), 10)
	case int64:
		return strconv.AppendInt(buf, x, 10)
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
