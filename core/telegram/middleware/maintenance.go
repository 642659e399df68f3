package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/menubot/core/logger"
	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MaintenanceOptions configures the maintenance gate.
type MaintenanceOptions struct {
	Enabled   bool
	Whitelist []int64
	// Notice returns the text shown to users outside the whitelist.
	Notice func(lang string) string
}

// MaintenanceMiddleware drops updates from users outside the whitelist while
// maintenance is enabled, telling them the bot is being updated.
func MaintenanceMiddleware(opts MaintenanceOptions) tele.MiddlewareFunc {
	allowed := make(map[int64]struct{}, len(opts.Whitelist))
	for _, id := range opts.Whitelist {
		allowed[id] = struct{}{}
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if !opts.Enabled {
			return next
		}
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			if _, ok := allowed[user.ID]; ok {
				return next(c)
			}
			logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "tg.maintenance",
				slog.String("status", "skip"),
				slog.String("kind", tghelpers.UpdateKind(c.Update())),
				slog.Int64("user_id", user.ID),
			)

			text := ""
			if opts.Notice != nil {
				text = opts.Notice(user.LanguageCode)
			}
			if text == "" {
				return nil
			}
			switch {
			case c.Callback() != nil:
				return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
			case c.Message() != nil:
				return c.Send(text)
			}
			return nil
		}
	}
}
