package screen

import (
	"context"

	"github.com/m3rciful/menubot/core/telegram/format"
)

// ErrorScreenName is the type name of the built-in fallback screen.
const ErrorScreenName = "ErrorScreen"

// ErrorScreen is rendered when routing fails or a screen returns an error.
// An optional "msg" prop is shown above the generic text.
type ErrorScreen struct {
	Base
	SupportURL string
}

// NewErrorScreen returns the fallback screen. supportURL may be empty.
func NewErrorScreen(supportURL string) *ErrorScreen {
	return &ErrorScreen{
		Base: Base{
			TypeName:  ErrorScreenName,
			TitleText: MsgErrorTitle,
			Opts: Options{
				Emoji:      "🚫",
				HideFooter: true,
				MenuButton: true,
			},
		},
		SupportURL: supportURL,
	}
}

func (s *ErrorScreen) Body(_ context.Context, r *Request) (string, error) {
	body := r.T(MsgErrorBody)
	if msg := r.Props.String("msg", ""); msg != "" {
		return format.Escape(msg, s.Options().ParseMode) + "\n\n" + body, nil
	}
	return body, nil
}

func (s *ErrorScreen) Buttons(r *Request) [][]Button {
	if s.SupportURL == "" {
		return nil
	}
	return [][]Button{{Link("🆘 "+r.T(MsgSupport), s.SupportURL)}}
}

func (s *ErrorScreen) Layout() [][]Button { return nil }
