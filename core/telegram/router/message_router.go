package router

import (
	tg "github.com/m3rciful/menubot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for document updates.
type TextOptions struct {
	UnknownDocument tele.HandlerFunc
}

// TextRoutes feeds free text (and unregistered commands) into the engine.
// Documents are not part of the menu and go to UnknownDocument.
func TextRoutes(engine *tg.Engine, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		return handleEvent(engine, c, "text")
	}

	docHandler := func(c tele.Context) error {
		sum := summarize("unexpected_document")
		if opts.UnknownDocument == nil {
			sum.status, sum.outcome = "skip", "ok"
			sum.log(c, nil)
			return nil
		}
		return sum.run(c, func() error { return opts.UnknownDocument(c) })
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guarded(handler)},
		{Endpoint: tele.OnDocument, Handler: guarded(docHandler)},
	}
}
