// Package menu is the bundled demo tree: a main menu with settings, a small
// amount entry flow and an operator statistics screen.
package menu

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/menubot/core/telegram/format"
	"github.com/m3rciful/menubot/core/telegram/screen"
)

// Screen names.
const (
	MainMenuName = "MainMenu"
	HelpName     = "Help"
	SettingsName = "Settings"
	AmountName   = "Amount"
	ConfirmName  = "Confirm"
	StatsName    = "Stats"
)

// Message ids used by the tree.
const (
	msgMainMenu       = "main_menu"
	msgMainMenuBody   = "main_menu_body"
	msgHelp           = "help"
	msgHelpBody       = "help_body"
	msgSettings       = "settings"
	msgSettingsBody   = "settings_body"
	msgSwitchLanguage = "switch_language"
	msgAmount         = "amount"
	msgAmountBody     = "amount_body"
	msgAmountInvalid  = "amount_invalid"
	msgConfirm        = "confirm"
	msgConfirmBody    = "confirm_body"
	msgConfirmed      = "confirmed"
	msgLastAmount     = "last_amount"
	msgYes            = "yes"
	msgNo             = "no"
	msgStats          = "stats"
	msgStatsBody      = "stats_body"
)

// Session keys owned by the tree.
const (
	// KeyLastAmount holds the last confirmed amount.
	KeyLastAmount = "menu.last_amount"
)

// MaxAmount keeps the confirm button payload within callback data limits.
const MaxAmount = 999_999_999

// Options configure the tree.
type Options struct {
	// Languages the settings screen cycles through. Defaults to en, ru.
	Languages []string
	// ScreenCount feeds the statistics screen.
	ScreenCount func() int
}

// Tree holds the screens of the demo menu.
type Tree struct {
	Root     *MainMenu
	Help     *screen.Base
	Settings *Settings
	Amount   *Amount
	Confirm  *Confirm
	Stats    *Stats
}

// New builds the tree. Every screen is reachable from Root except Confirm,
// which is only entered by redirect; register All.
func New(opts Options) *Tree {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"en", "ru"}
	}

	t := &Tree{}
	t.Help = &screen.Base{
		TypeName:  HelpName,
		TitleText: msgHelp,
		BodyText:  msgHelpBody,
		Opts: screen.Options{
			Emoji:       "❓",
			Commands:    []string{"help"},
			Description: "How to use the bot",
			BackTo:      MainMenuName,
			HideFooter:  true,
		},
	}
	t.Settings = &Settings{
		Base: screen.Base{
			TypeName:  SettingsName,
			TitleText: msgSettings,
			Opts: screen.Options{
				Emoji:       "⚙️",
				Commands:    []string{"settings"},
				Description: "Change the language",
				BackTo:      MainMenuName,
			},
		},
		Languages: langs,
	}
	t.Confirm = &Confirm{Base: screen.Base{
		TypeName:  ConfirmName,
		TitleText: msgConfirm,
		Opts:      screen.Options{Emoji: "✅", BackTo: AmountName},
	}}
	t.Amount = &Amount{
		Base: screen.Base{
			TypeName:  AmountName,
			TitleText: msgAmount,
			Opts:      screen.Options{Emoji: "💰", OnText: true, BackTo: MainMenuName, HideFooter: true},
		},
		confirm: t.Confirm,
	}
	t.Stats = &Stats{
		Base: screen.Base{
			TypeName:  StatsName,
			TitleText: msgStats,
			Opts: screen.Options{
				Emoji:         "📊",
				Commands:      []string{"stats"},
				HiddenCommand: true,
				AdminOnly:     true,
				BackTo:        MainMenuName,
				HideFooter:    true,
			},
		},
		Count: opts.ScreenCount,
	}
	t.Root = &MainMenu{Base: screen.Base{
		TypeName:  MainMenuName,
		TitleText: msgMainMenu,
		Opts: screen.Options{
			Emoji:       "🏠",
			Commands:    []string{"start", "menu"},
			Description: "Open the main menu",
		},
		Rows: [][]screen.Button{
			{screen.To(t.Amount)},
			{screen.To(t.Settings), screen.To(t.Help)},
			{screen.To(t.Stats)},
		},
	}}
	return t
}

// All lists every screen of the tree, root first.
func (t *Tree) All() []screen.Screen {
	return []screen.Screen{t.Root, t.Help, t.Settings, t.Amount, t.Confirm, t.Stats}
}

// MainMenu greets the user. Right after a confirmation it announces the saved
// amount; later visits show the amount stored in the session.
type MainMenu struct {
	screen.Base
}

func (m *MainMenu) Body(_ context.Context, r *screen.Request) (string, error) {
	name := ""
	if r.Session != nil {
		name = r.Session.FirstName
	}
	if name == "" && r.Event != nil {
		name = r.Event.FirstName
	}
	body := tf(r, msgMainMenuBody, map[string]any{"Name": format.Escape(name, m.Options().ParseMode)})
	if saved := r.Props.String("saved", ""); saved != "" {
		return tf(r, msgConfirmed, map[string]any{"Amount": saved}) + "\n\n" + body, nil
	}
	if r.Session != nil {
		if last, ok := r.Session.Get(KeyLastAmount); ok && last != "" {
			body += "\n\n" + tf(r, msgLastAmount, map[string]any{"Amount": last})
		}
	}
	return body, nil
}

// Settings shows the session language and switches to the next one on toggle.
type Settings struct {
	screen.Base
	Languages []string
}

func (s *Settings) Body(_ context.Context, r *screen.Request) (string, error) {
	return tf(r, msgSettingsBody, map[string]any{"Lang": r.Lang()}), nil
}

func (s *Settings) Buttons(r *screen.Request) [][]screen.Button {
	return [][]screen.Button{{screen.Ref(SettingsName, "🌐 "+r.T(msgSwitchLanguage), screen.P("toggle", "1"))}}
}

func (s *Settings) Process(_ context.Context, r *screen.Request) (screen.Outcome, error) {
	if r.Props.Bool("toggle", false) && r.Session != nil {
		r.Session.LanguageCode = nextLanguage(s.Languages, r.Lang())
		r.Log().Info("settings.language", slog.String("lang", r.Session.LanguageCode))
	}
	return screen.Render(), nil
}

func nextLanguage(langs []string, current string) string {
	if len(langs) == 0 {
		return current
	}
	current = strings.ToLower(current)
	for i, l := range langs {
		if l == current {
			return langs[(i+1)%len(langs)]
		}
	}
	return langs[0]
}

// Amount asks for a positive whole number typed as free text.
type Amount struct {
	screen.Base
	confirm *Confirm
}

func (a *Amount) Body(_ context.Context, r *screen.Request) (string, error) {
	body := r.T(msgAmountBody)
	if r.Props.Bool("invalid", false) {
		body = r.T(msgAmountInvalid) + "\n\n" + body
	}
	return body, nil
}

func (a *Amount) Process(_ context.Context, r *screen.Request) (screen.Outcome, error) {
	if r.Event == nil || r.Event.Kind != screen.KindText {
		return screen.Render(), nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(r.Event.Text), 10, 64)
	if err != nil || n <= 0 || n > MaxAmount {
		r.Props = r.Props.With("invalid", "1")
		return screen.Render(), nil
	}
	return screen.Redirect(a.confirm, screen.P("amount", strconv.FormatInt(n, 10))), nil
}

// Confirm asks to confirm the amount carried in its props. Yes stores it in the
// session and returns to the main menu.
type Confirm struct {
	screen.Base
}

func (c *Confirm) Body(_ context.Context, r *screen.Request) (string, error) {
	return tf(r, msgConfirmBody, map[string]any{"Amount": r.Props.String("amount", "0")}), nil
}

func (c *Confirm) Buttons(r *screen.Request) [][]screen.Button {
	amount := r.Props.String("amount", "")
	return [][]screen.Button{{
		screen.Ref(ConfirmName, "✅ "+r.T(msgYes), screen.P("amount", amount, "ok", "1")),
		screen.Ref(AmountName, "✖️ "+r.T(msgNo)),
	}}
}

func (c *Confirm) Process(_ context.Context, r *screen.Request) (screen.Outcome, error) {
	amount := r.Props.String("amount", "")
	if !r.Props.Bool("ok", false) || amount == "" {
		return screen.Render(), nil
	}
	if r.Session != nil {
		r.Session.Set(KeyLastAmount, amount)
	}
	return screen.RedirectTo(MainMenuName, screen.P("saved", amount)), nil
}

// Stats is visible to the operator only.
type Stats struct {
	screen.Base
	Count func() int
}

func (s *Stats) Body(_ context.Context, r *screen.Request) (string, error) {
	n := 0
	if s.Count != nil {
		n = s.Count()
	}
	return tf(r, msgStatsBody, map[string]any{"Screens": n}), nil
}

type formatter interface {
	Format(lang, id string, data map[string]any) string
}

// tf translates id with template data when the translator supports it.
func tf(r *screen.Request, id string, data map[string]any) string {
	if r != nil {
		if f, ok := r.Translator.(formatter); ok {
			if s := f.Format(r.Lang(), id, data); s != id {
				return s
			}
		}
	}
	return r.T(id)
}
