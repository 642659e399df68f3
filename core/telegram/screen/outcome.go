package screen

// Action is what the pipeline does once a screen has processed an event.
type Action int

const (
	// ActionRender compiles the screen and sends or edits the standing message.
	ActionRender Action = iota
	// ActionRedirect dispatches another screen with the same event.
	ActionRedirect
	// ActionStop renders nothing. The event is still acknowledged.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Outcome is returned by Screen.Process.
type Outcome struct {
	Action Action
	// Target names the redirect screen when Screen is nil.
	Target string
	Screen Screen
	// Props are handed to the redirect target when HasProps is set.
	Props    Params
	HasProps bool
}

// Render keeps the current screen and renders it.
func Render() Outcome { return Outcome{Action: ActionRender} }

// Stop suppresses rendering.
func Stop() Outcome { return Outcome{Action: ActionStop} }

// Redirect hands the event to s. Optional props replace the payload rule for s.
func Redirect(s Screen, props ...Params) Outcome {
	o := Outcome{Action: ActionRedirect, Screen: s}
	if s != nil {
		o.Target = s.Name()
	}
	return o.withProps(props)
}

// RedirectTo is Redirect by registered screen name.
func RedirectTo(name string, props ...Params) Outcome {
	return Outcome{Action: ActionRedirect, Target: name}.withProps(props)
}

func (o Outcome) withProps(props []Params) Outcome {
	if len(props) == 0 {
		return o
	}
	merged := Params{}
	for _, p := range props {
		merged = merged.Merge(p)
	}
	o.Props = merged
	o.HasProps = true
	return o
}
