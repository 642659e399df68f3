package screen

import (
	"log/slog"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/session"
)

// Translator resolves message ids for a language.
type Translator interface {
	Translate(lang, id string) string
}

// Message ids of the strings the engine renders itself.
const (
	MsgChooseOption      = "choose_option"
	MsgBack              = "back"
	MsgMenu              = "menu"
	MsgErrorTitle        = "error_title"
	MsgErrorBody         = "error_body"
	MsgSupport           = "support"
	MsgMaintenance       = "maintenance"
	MsgUnsupportedAction = "unsupported_action"
)

var builtinText = map[string]string{
	MsgChooseOption:      "Choose an option",
	MsgBack:              "Back",
	MsgMenu:              "Menu",
	MsgErrorTitle:        "Something went wrong",
	MsgErrorBody:         "Please contact our support for details or try again.",
	MsgSupport:           "Support",
	MsgMaintenance:       "We are updating the bot. Please come back in a few minutes.",
	MsgUnsupportedAction: "This action is not supported.",
}

// Request carries everything one dispatch of one screen may look at.
// A fresh Request is built for every dispatch; nothing in it outlives the event.
type Request struct {
	Event   *Event
	Session *session.Session
	Props   Params
	// ID is the identifier of the screen being dispatched.
	ID         int
	Logger     *slog.Logger
	Translator Translator
	// Operator is set when the sender matches the configured operator.
	Operator bool
}

// Lang is the session language, falling back to the event's.
func (r *Request) Lang() string {
	if r == nil {
		return ""
	}
	if r.Session != nil && r.Session.LanguageCode != "" {
		return r.Session.LanguageCode
	}
	if r.Event != nil {
		return r.Event.LanguageCode
	}
	return ""
}

// T translates id. Without a translation the built-in English text is used,
// and unknown ids are returned as is.
func (r *Request) T(id string) string {
	if id == "" {
		return ""
	}
	if r != nil && r.Translator != nil {
		if s := r.Translator.Translate(r.Lang(), id); s != "" && s != id {
			return s
		}
	}
	if s, ok := builtinText[id]; ok {
		return s
	}
	return id
}

// Log returns the request logger, never nil.
func (r *Request) Log() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return logger.NAV
}
