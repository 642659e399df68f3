// Package logger is the structured slog setup shared by every component:
// ordered kv or JSON lines, per-update correlation taken from the context and
// an asynchronous fan-out to stdout and optional files.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/menubot/core/buildinfo"
	coreconfig "github.com/m3rciful/menubot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	writers []*asyncWriter
	closers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newKeyedSampler(defaultSampleNum, defaultSampleDen)
	traceOverride bool

	// L is the base logger. Until InitLogger runs it wraps slog.Default().
	L *slog.Logger

	// DB logs database connectivity.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs schema migrations.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// IDS logs screen identifier allocation.
	IDS *slog.Logger
	// NAV logs screen dispatch and rendering.
	NAV *slog.Logger
	// SESS logs session persistence.
	SESS *slog.Logger
)

func init() {
	L = slog.Default()
	wireComponents()
}

// InitLogger configures the global structured logger. Only the first call
// has any effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		o, err := optionsFrom(cfg)
		if err != nil {
			initErr = err
			return
		}
		levelVar.Set(o.level)
		debugSampler.Set(o.sampleNum, o.sampleDen)
		traceOverride = o.trace

		out, errs := openOutputs(o)
		hc := handlerConfig{
			level:      &levelVar,
			writer:     out,
			errors:     errs,
			format:     o.format,
			keyOrder:   o.keyOrder,
			source:     o.source,
			sourceFrom: o.sourceFrom,
		}
		L = slog.New(newStructuredHandler(hc))
		slog.SetDefault(L)

		wireComponents()
		logStartup(cfg, o)
	})
	return initErr
}

func wireComponents() {
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	MIG = L.With("component", "db.migrate")
	TWire = L.With("component", "tg.wire")
	IDS = L.With("component", "screen.ids")
	NAV = L.With("component", "screen.nav")
	SESS = L.With("component", "session")
}

// openOutputs starts the stdout writer, teeing to dir/bot_file when both are
// set, plus a WARN+ writer for dir/errors_file. An unusable file is reported
// and skipped.
func openOutputs(o options) (*asyncWriter, *asyncWriter) {
	sinks := []io.Writer{os.Stdout}
	var errSink io.Writer
	if o.dir != "" && (o.botFile != "" || o.errorsFile != "") {
		if err := os.MkdirAll(o.dir, 0o755); err != nil {
			log.Printf("logger: failed to create log dir %s: %v", o.dir, err)
		} else {
			if f := openLogFile(o.dir, o.botFile); f != nil {
				sinks = append(sinks, f)
			}
			if f := openLogFile(o.dir, o.errorsFile); f != nil {
				errSink = f
			}
		}
	}
	out := newAsyncWriter(sinks, defaultSinkBuffer)
	writers = append(writers, out)
	var errs *asyncWriter
	if errSink != nil {
		errs = newAsyncWriter([]io.Writer{errSink}, defaultSinkBuffer)
		writers = append(writers, errs)
	}
	return out, errs
}

func openLogFile(dir, name string) *os.File {
	if name == "" {
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return nil
	}
	closers = append(closers, f)
	return f
}

func logStartup(cfg *coreconfig.Config, o options) {
	build := buildinfo.Read()
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", build.Version),
		slog.String("build_commit", build.Commit),
		slog.String("build_time", build.Date),
		slog.String("format", string(o.format)),
	}
	if build.Modified {
		attrs = append(attrs, slog.Bool("build_dirty", true))
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("cfg_profile", o.profile),
			slog.String("ids_store", cfg.Screens.IDsStore),
			slog.String("lang", cfg.Locale.Default),
		)
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown reports queue saturation, then drains and closes every sink.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var blocked int64
	for _, w := range writers {
		blocked += w.Blocked()
	}
	if blocked > 0 {
		L.LogAttrs(context.Background(), slog.LevelWarn, "log queue saturated",
			slog.String("event", "logger.blocked"),
			slog.Int64("blocked_writes", blocked),
		)
	}

	var errs []error
	for _, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent logs with the event attribute set first. A nil logg falls back
// to the one stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	emit(ctx, logg, level, event, attrs)
}

// Component returns L scoped to the named component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, Component(component), slog.LevelDebug, event, attrs)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, Component(component), slog.LevelInfo, event, attrs)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, Component(component), slog.LevelError, event, attrs)
}

// emit records the caller of its exported wrapper as the source.
func emit(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs []slog.Attr) {
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !logg.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, "", pcs[0])
	if event != "" {
		r.AddAttrs(slog.String("event", event))
	}
	r.AddAttrs(attrs...)
	_ = logg.Handler().Handle(ctx, r)
}

// ShouldSampleDebug reports whether debug details should be logged for the
// next high-volume event of the given kind.
func ShouldSampleDebug(kind string) bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow(kind)
}
