package screen

// Kind classifies inbound events.
type Kind int

const (
	KindUnknown Kind = iota
	KindCommand
	KindText
	KindCallback
	KindInlineQuery
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindCallback:
		return "callback"
	case KindInlineQuery:
		return "inline_query"
	default:
		return "unknown"
	}
}

// Event is one inbound update reduced to what screens and the router need.
type Event struct {
	Kind     Kind
	UpdateID int

	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string

	// Text is the message text for text and command events.
	Text string
	// Command is the command name without the slash or bot mention.
	Command string
	Args    string

	// Data is the raw callback payload.
	Data string
	// MessageID is the message a button belongs to.
	MessageID  int
	CallbackID string

	Query string

	// Raw is the transport's own update object, if any.
	Raw any
}

// IsCallback reports whether the event is a button press.
func (e *Event) IsCallback() bool { return e != nil && e.Kind == KindCallback }

// IsCommand reports whether the event is a slash command.
func (e *Event) IsCommand() bool { return e != nil && e.Kind == KindCommand }
