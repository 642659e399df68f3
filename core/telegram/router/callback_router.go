package router

import (
	"log/slog"

	tg "github.com/m3rciful/menubot/core/telegram"
	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns a handler that feeds every button press into the engine.
func CallbackRoute(engine *tg.Engine) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		target := screenName(engine.Registry(), c)
		extras := []slog.Attr{slog.String("screen", target)}
		if target == "" {
			extras = []slog.Attr{slog.String("reason", "not_found")}
		}
		return handleEvent(engine, c, "callback."+normalizeHandlerName(target), extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  guarded(handler),
	}
}

// handleEvent converts the update and runs it through the engine with a summary line.
func handleEvent(engine *tg.Engine, c tele.Context, name string, extras ...slog.Attr) error {
	ev := tg.EventFromContext(c)
	sum := summarize(name, append(extras, slog.String("kind", ev.Kind.String()))...)
	return sum.run(c, func() error {
		return engine.Handle(tghelpers.WithHandler(c, name), ev)
	})
}
