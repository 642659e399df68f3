package router

import (
	"context"
	"log/slog"

	tg "github.com/m3rciful/menubot/core/telegram"
	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// InlineProvider answers inline queries.
type InlineProvider interface {
	Articles(ctx context.Context, ev *screen.Event) ([]ui.Article, error)
}

// InlineProviderFunc adapts a function to InlineProvider.
type InlineProviderFunc func(ctx context.Context, ev *screen.Event) ([]ui.Article, error)

func (f InlineProviderFunc) Articles(ctx context.Context, ev *screen.Event) ([]ui.Article, error) {
	return f(ctx, ev)
}

// InlineOptions tunes inline answers.
type InlineOptions struct {
	CacheTime int
}

// InlineRoute answers inline queries with the provider's articles.
func InlineRoute(provider InlineProvider, opts InlineOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Query() == nil || provider == nil {
			return nil
		}
		ev := tg.EventFromContext(c)
		sum := summarize("inline", slog.String("kind", ev.Kind.String()))
		return sum.run(c, func() error {
			articles, err := provider.Articles(tghelpers.WithHandler(c, "inline"), ev)
			if err != nil {
				return err
			}
			return c.Answer(&tele.QueryResponse{
				Results:    ui.Results(articles),
				CacheTime:  opts.CacheTime,
				IsPersonal: true,
			})
		})
	}
	return tg.Route{
		Endpoint: tele.OnQuery,
		Handler:  guarded(handler),
	}
}
