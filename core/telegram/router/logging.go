package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	tg "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"
	"github.com/m3rciful/menubot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary is the handler.handled line written once per routed update.
// Empty status and outcome are derived from the handler error.
type summary struct {
	handler string
	start   time.Time
	status  string
	outcome string
	attrs   []slog.Attr
}

func summarize(handler string, attrs ...slog.Attr) *summary {
	return &summary{handler: handler, start: time.Now(), attrs: attrs}
}

// run tags the update with the handler name, calls fn and logs the result.
func (s *summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn()
	s.log(c, err)
	return err
}

func (s *summary) log(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	result := "ok"
	if err != nil {
		result = "fail"
	}
	attrs := []slog.Attr{
		slog.String("status", cmpOr(s.status, result)),
		slog.String("handler", s.handler),
		slog.String("outcome", cmpOr(s.outcome, result)),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(s.start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
			slog.String("cause", s.handler),
		)
	}
	attrs = append(attrs, s.attrs...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func cmpOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// guarded wraps h with the per-route panic recovery and update logging.
func guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// normalizeHandlerName turns "/Start Menu" into "start_menu".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

var errorCodes = []struct {
	err  error
	code string
}{
	{tg.ErrRedirectLoop, "REDIRECT_LOOP"},
	{tg.ErrPanic, "PANIC"},
	{tg.ErrNotRegistered, "NOT_REGISTERED"},
}

func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return upperSnake(code)
		}
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return upperSnake(t.Name())
}

func upperSnake(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}

// screenName resolves the screen a callback payload points at.
func screenName(reg *tg.Registry, c tele.Context) string {
	p := callbacks.PayloadOf(c)
	if p.Empty() || reg == nil {
		return ""
	}
	if s, ok := reg.Lookup(p.Target); ok {
		return s.Name()
	}
	return ""
}
