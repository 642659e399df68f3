// Package screen defines the unit of the menu tree: a screen with a title,
// a body, a keyboard and a hook that decides what happens after an event.
//
// Screen values are built once at startup and shared by every user. Anything
// specific to one user lives in the session or in the per-dispatch Request.
package screen

import (
	"context"

	"github.com/m3rciful/menubot/core/telegram/format"
)

// Options describe how a screen is wired and presented.
type Options struct {
	Emoji      string
	HideHeader bool
	HideFooter bool

	// Commands bind the screen to slash commands (without the slash).
	Commands    []string
	Description string
	// HiddenCommand keeps the commands out of the bot's command menu.
	HiddenCommand bool

	// OnText makes the screen receive free text while it is the user's state.
	OnText bool

	// BackTo names the screen of the back row. Empty hides the row.
	BackTo     string
	MenuButton bool

	AdminOnly bool
	// ParseMode is Markdown unless set.
	ParseMode string
}

// Screen is implemented by every node of the menu tree.
type Screen interface {
	// Name is the unique type name the identifier is allocated for.
	Name() string
	Options() Options
	Title(r *Request) string
	// Body may do I/O and may be called more than once per dispatch.
	Body(ctx context.Context, r *Request) (string, error)
	Footer(r *Request) string
	// Buttons must depend on r.Props only.
	Buttons(r *Request) [][]Button
	// Process runs the screen logic. It is skipped for non-operators on
	// admin-only screens.
	Process(ctx context.Context, r *Request) (Outcome, error)
}

// Layouter exposes the static children walked at registration.
type Layouter interface {
	Layout() [][]Button
}

// Defaulter provides the props a dispatch starts from.
type Defaulter interface {
	Defaults() Params
}

// Base implements Screen with static content. Embed it and override what differs.
type Base struct {
	TypeName  string
	Opts      Options
	TitleText string
	BodyText  string
	Rows      [][]Button
	Props     Params
}

func (b *Base) Name() string { return b.TypeName }

func (b *Base) Options() Options {
	o := b.Opts
	if o.ParseMode == "" {
		o.ParseMode = format.ModeMarkdown
	}
	return o
}

func (b *Base) Title(r *Request) string { return r.T(b.TitleText) }

func (b *Base) Body(_ context.Context, r *Request) (string, error) {
	return r.T(b.BodyText), nil
}

func (b *Base) Footer(r *Request) string {
	if b.Opts.HideFooter {
		return ""
	}
	return r.T(MsgChooseOption)
}

func (b *Base) Buttons(*Request) [][]Button { return b.Rows }

func (b *Base) Layout() [][]Button { return b.Rows }

func (b *Base) Defaults() Params { return b.Props }

func (b *Base) Process(context.Context, *Request) (Outcome, error) {
	return Render(), nil
}

// Header is emoji and title joined by a space.
func Header(s Screen, r *Request) string {
	emoji := s.Options().Emoji
	title := s.Title(r)
	switch {
	case emoji == "":
		return title
	case title == "":
		return emoji
	default:
		return emoji + " " + title
	}
}

// DefaultsOf returns the default props of s, if it declares any.
func DefaultsOf(s Screen) Params {
	if d, ok := s.(Defaulter); ok {
		return d.Defaults()
	}
	return Params{}
}

// LayoutOf returns the static rows of s, if it declares any.
func LayoutOf(s Screen) [][]Button {
	if l, ok := s.(Layouter); ok {
		return l.Layout()
	}
	return nil
}
