package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/middleware"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/session"
)

// DefaultMaxRedirects bounds redirect chains when EngineOptions leaves it unset.
const DefaultMaxRedirects = 8

// EngineOptions wires an Engine.
type EngineOptions struct {
	Registry  *Registry
	Sessions  session.Store
	Transport Transport
	// OperatorID is the only user admin-only screens process events for.
	OperatorID   int64
	Translator   screen.Translator
	MaxRedirects int
	// SupportURL is linked from the default fallback screen.
	SupportURL string
}

// Engine runs inbound events through the screen pipeline.
type Engine struct {
	reg          *Registry
	sessions     session.Store
	transport    Transport
	operatorID   int64
	tr           screen.Translator
	maxRedirects int
}

// NewEngine validates opts. When the registry has no fallback screen yet,
// the built-in error screen is registered as one.
func NewEngine(opts EngineOptions) (*Engine, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("telegram: engine needs a registry")
	case opts.Sessions == nil:
		return nil, errors.New("telegram: engine needs a session store")
	case opts.Transport == nil:
		return nil, errors.New("telegram: engine needs a transport")
	}
	if opts.Registry.Fallback() == nil {
		if err := opts.Registry.SetFallback(context.Background(), screen.NewErrorScreen(opts.SupportURL)); err != nil {
			return nil, err
		}
	}
	if err := opts.Registry.Validate(context.Background()); err != nil {
		return nil, err
	}
	limit := opts.MaxRedirects
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}
	return &Engine{
		reg:          opts.Registry,
		sessions:     opts.Sessions,
		transport:    opts.Transport,
		operatorID:   opts.OperatorID,
		tr:           opts.Translator,
		maxRedirects: limit,
	}, nil
}

// Registry returns the registry the engine routes with.
func (e *Engine) Registry() *Registry { return e.reg }

// Handle routes ev to its screen and runs the pipeline. A failing screen
// is replaced by the fallback screen; Handle only returns errors the
// fallback could not absorb.
func (e *Engine) Handle(ctx context.Context, ev *screen.Event) error {
	if ev == nil || ev.UserID == 0 {
		return session.ErrInvalidUser
	}
	start := time.Now()

	sess, err := e.sessions.Load(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("telegram: load session: %w", err)
	}
	sess.Refresh(session.Profile{
		ChatID:       ev.ChatID,
		Username:     ev.Username,
		FirstName:    ev.FirstName,
		LanguageCode: ev.LanguageCode,
	})

	target, matched := e.reg.Route(ev, sess)
	if target == nil {
		return fmt.Errorf("%w: no fallback screen", ErrNotRegistered)
	}
	if !matched {
		logger.NAV.LogAttrs(ctx, slog.LevelDebug, "nav.route",
			slog.String("status", "skip"),
			slog.String("kind", ev.Kind.String()),
			slog.String("screen", target.Name()),
		)
	}

	err = e.safeDispatch(ctx, target, ev, sess)
	if err == nil {
		return nil
	}

	logger.LogEvent(ctx, logger.NAV, slog.LevelError, "nav.dispatch",
		slog.String("status", "fail"),
		slog.String("kind", ev.Kind.String()),
		slog.String("screen", target.Name()),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	fb := e.reg.Fallback()
	if fb == nil || fb == target {
		return err
	}
	if ferr := e.safeDispatch(ctx, fb, ev, sess); ferr != nil {
		return errors.Join(err, ferr)
	}
	return nil
}

func (e *Engine) safeDispatch(ctx context.Context, s screen.Screen, ev *screen.Event, sess *session.Session) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogEvent(ctx, logger.NAV, slog.LevelError, "nav.panic",
				slog.String("status", "fail"),
				slog.String("screen", s.Name()),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, s.Name(), r)
		}
	}()
	return e.dispatch(ctx, s, ev, sess, screen.Params{}, false, 0)
}

func (e *Engine) dispatch(ctx context.Context, s screen.Screen, ev *screen.Event, sess *session.Session, props screen.Params, explicit bool, depth int) error {
	if depth > e.maxRedirects {
		return fmt.Errorf("%w: %d hops, stopped at %s", ErrRedirectLoop, depth, s.Name())
	}
	name := s.Name()
	id, ok := e.reg.ID(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	ctx = logger.WithScreen(ctx, name)

	merged := screen.DefaultsOf(s)
	switch {
	case explicit:
		merged = merged.Merge(props)
	case ev.IsCallback():
		if p := callbacks.Decode(ev.Data); p.Target == id && len(p.Props) > 0 {
			merged = merged.Merge(screen.ParamsOf(p.Props))
		}
	}

	sess.State = id
	if ev.IsCallback() && ev.MessageID != 0 {
		sess.StandingMessageID = ev.MessageID
	}

	req := &screen.Request{
		Event:      ev,
		Session:    sess,
		Props:      merged,
		ID:         id,
		Logger:     logger.NAV.With(slog.String("screen", name)),
		Translator: e.tr,
		Operator:   middleware.IsOperator(e.operatorID, ev.UserID),
	}

	var out screen.Outcome
	if s.Options().AdminOnly && !req.Operator {
		logger.NAV.LogAttrs(ctx, slog.LevelInfo, "nav.authorize",
			slog.String("status", "skip"),
			slog.String("outcome", "denied"),
			slog.String("screen", name),
		)
		out = screen.Stop()
	} else {
		var err error
		out, err = s.Process(ctx, req)
		if err != nil {
			return fmt.Errorf("telegram: process %s: %w", name, err)
		}
	}

	if err := e.sessions.Commit(ctx, sess); err != nil {
		return fmt.Errorf("telegram: commit session: %w", err)
	}

	switch out.Action {
	case screen.ActionStop:
		logger.NAV.LogAttrs(ctx, slog.LevelDebug, "nav.outcome",
			slog.String("outcome", "stop"),
			slog.String("screen", name),
		)
		e.ack(ctx, ev)
		return nil
	case screen.ActionRedirect:
		next, err := e.redirectTarget(out)
		if err != nil {
			return err
		}
		logger.NAV.LogAttrs(ctx, slog.LevelDebug, "nav.outcome",
			slog.String("outcome", "redirect"),
			slog.String("screen", name),
			slog.String("target", next.Name()),
			slog.Int("depth", depth+1),
		)
		return e.dispatch(ctx, next, ev, sess, out.Props, out.HasProps, depth+1)
	default:
		return e.render(ctx, s, req)
	}
}

func (e *Engine) redirectTarget(out screen.Outcome) (screen.Screen, error) {
	if out.Screen != nil {
		if _, ok := e.reg.ID(out.Screen.Name()); ok {
			return out.Screen, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, out.Screen.Name())
	}
	s, ok := e.reg.ByName(out.Target)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, out.Target)
	}
	return s, nil
}

func (e *Engine) render(ctx context.Context, s screen.Screen, req *screen.Request) error {
	start := time.Now()
	ev, sess := req.Event, req.Session

	out, err := e.compile(ctx, s, req)
	if err != nil {
		return err
	}

	chatID := ev.ChatID
	if chatID == 0 {
		chatID = sess.ChatID
	}
	if chatID == 0 {
		chatID = ev.UserID
	}

	delivery := "edit"
	if ev.IsCommand() || sess.StandingMessageID == 0 {
		delivery = "send"
	}
	if delivery == "edit" {
		if err := e.transport.Edit(ctx, chatID, sess.StandingMessageID, out); err != nil {
			logger.NAV.LogAttrs(ctx, slog.LevelDebug, "nav.edit",
				slog.String("status", "fail"),
				slog.String("screen", s.Name()),
				slog.Int("message_id", sess.StandingMessageID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			delivery = "send"
		}
	}
	if delivery == "send" {
		msgID, err := e.transport.Send(ctx, chatID, out)
		if err != nil {
			return fmt.Errorf("telegram: send %s: %w", s.Name(), err)
		}
		if msgID != 0 && msgID != sess.StandingMessageID {
			sess.StandingMessageID = msgID
			if err := e.sessions.Commit(ctx, sess); err != nil {
				return fmt.Errorf("telegram: commit session: %w", err)
			}
		}
	}
	e.ack(ctx, ev)

	logger.NAV.LogAttrs(ctx, slog.LevelInfo, "nav.render",
		slog.String("status", "ok"),
		slog.String("outcome", "render"),
		slog.String("screen", s.Name()),
		slog.Int("screen_id", req.ID),
		slog.String("delivery", delivery),
		slog.Int("message_id", sess.StandingMessageID),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func (e *Engine) ack(ctx context.Context, ev *screen.Event) {
	if !ev.IsCallback() {
		return
	}
	if err := e.transport.Ack(ctx, ev); err != nil {
		logger.NAV.LogAttrs(ctx, slog.LevelWarn, "nav.ack",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
