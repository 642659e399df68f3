package menu

import (
	"context"
	"strings"

	tg "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/router"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/ui"
)

// CommandArticles answers inline queries with the visible commands whose name
// starts with the query. Choosing an article posts the command.
func CommandArticles(reg *tg.Registry) router.InlineProvider {
	return router.InlineProviderFunc(func(_ context.Context, ev *screen.Event) ([]ui.Article, error) {
		if reg == nil {
			return nil, nil
		}
		q := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ev.Query), "/"))
		var out []ui.Article
		for _, c := range reg.ListCommands(true) {
			if !strings.HasPrefix(c.Text, q) {
				continue
			}
			out = append(out, ui.Article{
				ID:          c.Text,
				Title:       "/" + c.Text,
				Description: c.Description,
				Text:        "/" + c.Text,
			})
		}
		return out, nil
	})
}
