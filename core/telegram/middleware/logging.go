package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers update ids for ttl so an update routed through
// several wrapped handlers is logged once.
type seenUpdates struct {
	mu  sync.Mutex
	ttl time.Duration
	at  map[int]time.Time
}

var received = &seenUpdates{ttl: 10 * time.Second, at: make(map[int]time.Time)}

// first reports whether id was not seen within ttl, and records it.
func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, ts := range s.at {
		if now.Sub(ts) > s.ttl {
			delete(s.at, k)
		}
	}
	if _, ok := s.at[id]; ok {
		return false
	}
	s.at[id] = now
	return true
}

// LoggerMiddleware builds the request context (rid, update meta, counters)
// and writes one sampled update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		var userID, chatID int64
		if u := c.Sender(); u != nil {
			userID = u.ID
		}
		if ch := c.Chat(); ch != nil {
			chatID = ch.ID
		}
		now := time.Now()
		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", now)

		ctx := logger.WithUpdateMeta(logger.WithRID(logger.Background(), rid), upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		if counters := countersOf(c); counters != nil {
			ctx = WithCounters(ctx, counters)
		}
		tghelpers.StoreContext(c, ctx)

		kind := tghelpers.UpdateKind(upd)
		if logger.ShouldSampleDebug(kind) && received.first(upd.ID, now) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
				slog.String("kind", kind),
			}
			attrs = append(attrs, senderAttrs(c)...)
			attrs = append(attrs, payloadAttrs(c)...)
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}

func senderAttrs(c tele.Context) []slog.Attr {
	var attrs []slog.Attr
	if ch := c.Chat(); ch != nil && ch.ID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", ch.ID), slog.String("chat_type", string(ch.Type)))
	}
	u := c.Sender()
	if u == nil || u.ID == 0 {
		return attrs
	}
	attrs = append(attrs, slog.Int64("user_id", u.ID))
	if u.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
	}
	if u.LanguageCode != "" {
		attrs = append(attrs, slog.String("lang", u.LanguageCode))
	}
	return attrs
}

// payloadAttrs describes what the user sent: the decoded callback target and
// props, or a clipped copy of the text or inline query.
func payloadAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		p := callbacks.PayloadOf(c)
		if p.Empty() {
			if raw := callbacks.Data(c); raw != "" {
				return []slog.Attr{slog.String("payload", logger.SanitizeLimit(raw, 64))}
			}
			return nil
		}
		attrs := []slog.Attr{slog.Int("target", p.Target)}
		if len(p.Props) == 0 {
			return attrs
		}
		props, truncated := logger.SummarizeParams(p.Props, 4)
		attrs = append(attrs, slog.String("props", logger.SanitizeLimit(props, 128)))
		if truncated {
			attrs = append(attrs, slog.Bool("props_truncated", true))
		}
		return attrs
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			return []slog.Attr{slog.String("payload", logger.SanitizeLimit(t, 256))}
		}
	case upd.Query != nil:
		return []slog.Attr{slog.String("payload", logger.SanitizeLimit(upd.Query.Text, 256))}
	}
	return nil
}
