package screen

import "strings"

const noLabel = "--"

// Button is one keyboard entry. A transition button names its target screen
// (by instance or by registered name); a link or web-app button carries a URL
// and never comes back to the bot.
type Button struct {
	Text   string
	Target string
	Screen Screen
	Props  Params

	URL    string
	WebApp string
}

// To builds a transition button to s. The label defaults to the target's
// emoji and title.
func To(s Screen, props ...Params) Button {
	b := Button{Screen: s}
	if s != nil {
		b.Target = s.Name()
	}
	for _, p := range props {
		b.Props = b.Props.Merge(p)
	}
	return b
}

// Ref builds a transition button by screen name.
func Ref(name, text string, props ...Params) Button {
	b := Button{Target: name, Text: text}
	for _, p := range props {
		b.Props = b.Props.Merge(p)
	}
	return b
}

// Link builds a URL button.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}

// WebApp builds a button opening a Telegram web app.
func WebApp(text, url string) Button {
	return Button{Text: text, WebApp: url}
}

// WithText returns a copy with an explicit label.
func (b Button) WithText(text string) Button {
	b.Text = text
	return b
}

// IsTransition reports whether pressing the button dispatches a screen.
func (b Button) IsTransition() bool {
	return b.URL == "" && b.WebApp == ""
}

// TargetName is the name of the screen the button leads to.
func (b Button) TargetName() string {
	if b.Screen != nil {
		return b.Screen.Name()
	}
	return b.Target
}

// Label resolves the visible text.
func (b Button) Label(r *Request) string {
	if b.Text != "" {
		return b.Text
	}
	if b.Screen != nil {
		if label := strings.TrimSpace(b.Screen.Options().Emoji + " " + b.Screen.Title(r)); label != "" {
			return label
		}
	}
	return noLabel
}
