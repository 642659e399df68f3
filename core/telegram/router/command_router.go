package router

import (
	"log/slog"

	"github.com/m3rciful/menubot/core/logger"
	tg "github.com/m3rciful/menubot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every command declared by a registered screen to the engine.
// Operator-only screens are gated by the engine itself.
func CommandRoutes(engine *tg.Engine) []tg.Route {
	if engine == nil {
		return nil
	}
	reg := engine.Registry()
	endpoints := reg.CommandEndpoints()

	routes := make([]tg.Route, 0, len(endpoints))
	for _, cmd := range endpoints {
		name := normalizeHandlerName(cmd)
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler: guarded(func(c tele.Context) error {
				return handleEvent(engine, c, name)
			}),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands"),
		slog.Int("commands", len(endpoints)),
		slog.Int("screens", reg.Len()),
	)

	return routes
}
