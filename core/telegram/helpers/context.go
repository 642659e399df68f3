// Package helpers carries per-update logging context through telebot handlers.
package helpers

import (
	"context"

	"github.com/m3rciful/menubot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	ctxKey = "menubot.ctx"
	ridKey = "rid"
)

// Update kinds, spelled the way rate limit exclusions name them.
const (
	KindCallback = "callback"
	KindMessage  = "message"
	KindInline   = "inline_query"
	KindOther    = "other"
)

// UpdateKind names the update type.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInline
	default:
		return KindOther
	}
}

// StoreContext attaches ctx to c for later handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(ctxKey, ctx)
}

// ContextFrom returns the context stored on c, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(ctxKey).(context.Context)
	return ctx, ok && ctx != nil
}

// RID returns the request id set by the logging middleware, building one when
// the update skipped it.
func RID(c tele.Context) string {
	if rid, ok := c.Get(ridKey).(string); ok && rid != "" {
		return rid
	}
	updateID, userID, chatID := ids(c)
	return logger.BuildRID(updateID, chatID, userID)
}

// BuildContext returns the stored context, or builds one carrying the request
// id, the update meta and a tg logger tagged with the update kind.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	updateID, userID, chatID := ids(c)
	ctx := logger.WithRID(context.Background(), RID(c))
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg").With("kind", UpdateKind(c.Update())))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

func ids(c tele.Context) (updateID int, userID, chatID int64) {
	updateID = c.Update().ID
	if u := c.Sender(); u != nil {
		userID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		chatID = ch.ID
	}
	return updateID, userID, chatID
}
