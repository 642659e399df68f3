package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/callbacks"
	"github.com/m3rciful/menubot/core/telegram/ids"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/session"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrNotRegistered reports a screen name or id the registry does not know.
	ErrNotRegistered = errors.New("telegram: screen not registered")
	// ErrRedirectLoop reports a redirect chain longer than the configured limit.
	ErrRedirectLoop = errors.New("telegram: redirect limit exceeded")
	// ErrPanic wraps a panic recovered while dispatching a screen.
	ErrPanic = errors.New("telegram: screen panicked")
)

// Command binds a slash command to a screen.
type Command struct {
	Screen      string
	Description string
	AdminOnly   bool
	Hidden      bool
}

// Registry maps screen identifiers to the shared screen instances and
// indexes the commands and free-text listeners they declare.
type Registry struct {
	alloc *ids.Allocator

	mu        sync.RWMutex
	byID      map[int]screen.Screen
	byName    map[string]screen.Screen
	idOf      map[string]int
	order     []string
	commands  map[string]Command
	listeners map[int]struct{}
	fallback  screen.Screen
	root      string
}

// NewRegistry creates an empty Registry. A nil allocator keeps identifiers in memory.
func NewRegistry(alloc *ids.Allocator) *Registry {
	if alloc == nil {
		alloc = ids.NewAllocator(nil)
	}
	return &Registry{
		alloc:     alloc,
		byID:      make(map[int]screen.Screen),
		byName:    make(map[string]screen.Screen),
		idOf:      make(map[string]int),
		commands:  make(map[string]Command),
		listeners: make(map[int]struct{}),
	}
}

// Register wires s and every screen reachable through its static rows.
// Registering a name twice is a no-op for that screen, its subtree is still walked.
func (r *Registry) Register(ctx context.Context, s screen.Screen) error {
	return r.register(ctx, s, make(map[string]struct{}))
}

func (r *Registry) register(ctx context.Context, s screen.Screen, visited map[string]struct{}) error {
	if s == nil {
		return errors.New("telegram: nil screen")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return fmt.Errorf("telegram: screen %T has no name", s)
	}
	if _, seen := visited[name]; seen {
		return nil
	}
	visited[name] = struct{}{}

	if err := r.connect(ctx, name, s); err != nil {
		return err
	}

	for _, row := range screen.LayoutOf(s) {
		for _, b := range row {
			if !b.IsTransition() {
				continue
			}
			if b.Screen != nil {
				if err := r.register(ctx, b.Screen, visited); err != nil {
					return err
				}
			} else if _, ok := r.ID(b.Target); !ok {
				// Named targets may be registered later; Validate checks them.
				continue
			}
			if _, err := r.EncodeButton(ctx, b); err != nil {
				return fmt.Errorf("telegram: screen %s: button to %s: %w", name, b.TargetName(), err)
			}
		}
	}
	return nil
}

func (r *Registry) connect(ctx context.Context, name string, s screen.Screen) error {
	r.mu.RLock()
	existing, known := r.byName[name]
	r.mu.RUnlock()
	if known {
		if existing != s {
			logger.TWire.LogAttrs(ctx, slog.LevelDebug, "register.screen.duplicate",
				slog.String("screen", name),
			)
		}
		return nil
	}

	id := r.alloc.IDFor(ctx, name)
	if id <= 0 {
		return fmt.Errorf("telegram: no identifier for screen %s", name)
	}
	opts := s.Options()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, raced := r.byName[name]; raced {
		return nil
	}
	r.byID[id] = s
	r.byName[name] = s
	r.idOf[name] = id
	r.order = append(r.order, name)
	if opts.OnText {
		r.listeners[id] = struct{}{}
	}

	bound := 0
	for _, raw := range opts.Commands {
		key := commandKey(raw)
		if key == "" {
			continue
		}
		if prev, exists := r.commands[key]; exists {
			logger.TWire.LogAttrs(ctx, slog.LevelWarn, "register.command.duplicate",
				slog.String("name", key),
				slog.String("screen", name),
				slog.String("owner", prev.Screen),
			)
			continue
		}
		desc := strings.TrimSpace(opts.Description)
		if desc == "" {
			desc = screen.Header(s, nil)
		}
		r.commands[key] = Command{
			Screen:      name,
			Description: desc,
			AdminOnly:   opts.AdminOnly,
			Hidden:      opts.HiddenCommand,
		}
		bound++
	}

	logger.TWire.LogAttrs(ctx, slog.LevelDebug, "register.screen",
		slog.String("screen", name),
		slog.Int("screen_id", id),
		slog.Int("commands", bound),
		slog.Bool("on_text", opts.OnText),
	)
	return nil
}

func commandKey(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}
	return "/" + strings.ToLower(name)
}

// SetFallback registers s and routes every unmatched event to it.
func (r *Registry) SetFallback(ctx context.Context, s screen.Screen) error {
	if err := r.Register(ctx, s); err != nil {
		return err
	}
	r.mu.Lock()
	r.fallback = s
	r.mu.Unlock()
	return nil
}

// Fallback returns the screen unmatched events go to.
func (r *Registry) Fallback() screen.Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// SetRoot names the screen behind the menu row.
func (r *Registry) SetRoot(name string) {
	r.mu.Lock()
	r.root = strings.TrimSpace(name)
	r.mu.Unlock()
}

// Root returns the name of the menu screen.
func (r *Registry) Root() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.root
}

// Lookup returns the screen registered under id.
func (r *Registry) Lookup(id int) (screen.Screen, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// ByName returns the screen registered under name.
func (r *Registry) ByName(name string) (screen.Screen, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	return s, ok
}

// ID returns the identifier of a registered screen.
func (r *Registry) ID(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idOf[name]
	return id, ok
}

// Len is the number of registered screens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Names lists registered screens in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Route picks the screen that owns ev. The boolean is false when nothing
// matched and the fallback was returned.
func (r *Registry) Route(ev *screen.Event, sess *session.Session) (screen.Screen, bool) {
	if ev != nil {
		switch ev.Kind {
		case screen.KindCallback:
			if p := callbacks.Decode(ev.Data); !p.Empty() {
				if s, ok := r.Lookup(p.Target); ok {
					return s, true
				}
			}
		case screen.KindCommand:
			if cmd, ok := r.LookupCommand(ev.Command); ok {
				if s, ok := r.ByName(cmd.Screen); ok {
					return s, true
				}
			}
		case screen.KindText:
			if sess != nil && sess.State != 0 {
				r.mu.RLock()
				_, listening := r.listeners[sess.State]
				s := r.byID[sess.State]
				r.mu.RUnlock()
				if listening && s != nil {
					return s, true
				}
			}
		}
	}
	return r.Fallback(), false
}

// EncodeButton produces the callback data of a transition button. The target
// must already be registered; unknown names never reach the allocator.
func (r *Registry) EncodeButton(_ context.Context, b screen.Button) (string, error) {
	name := b.TargetName()
	if name == "" {
		return "", fmt.Errorf("%w: button without target", ErrNotRegistered)
	}
	id, ok := r.ID(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return callbacks.Encode(callbacks.Payload{Target: id, Props: b.Props.Map()})
}

// Validate checks that every static button, back row and the root name
// point at registered screens, and that static buttons fit the payload limit.
func (r *Registry) Validate(ctx context.Context) error {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	root := r.root
	r.mu.RUnlock()

	var errs []error
	if root != "" {
		if _, ok := r.ID(root); !ok {
			errs = append(errs, fmt.Errorf("root: %w: %s", ErrNotRegistered, root))
		}
	}
	for _, name := range names {
		s, _ := r.ByName(name)
		if back := s.Options().BackTo; back != "" {
			if _, ok := r.ID(back); !ok {
				errs = append(errs, fmt.Errorf("screen %s: back to: %w: %s", name, ErrNotRegistered, back))
			}
		}
		for _, row := range screen.LayoutOf(s) {
			for _, b := range row {
				if !b.IsTransition() {
					continue
				}
				if _, err := r.EncodeButton(ctx, b); err != nil {
					errs = append(errs, fmt.Errorf("screen %s: button to %s: %w", name, b.TargetName(), err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// ListCommands returns a slice of tele.Command, optionally filtering out hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand finds the command by name, with or without the slash.
func (r *Registry) LookupCommand(name string) (Command, bool) {
	key := commandKey(name)
	if key == "" {
		return Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[key]
	return cmd, ok
}

// CommandEndpoints returns every registered command with its slash, sorted.
func (r *Registry) CommandEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for k := range r.commands {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	commands := reg.ListCommands(true)
	if len(commands) == 0 {
		return
	}
	if err := bot.SetCommands(commands); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands",
		slog.String("status", "ok"),
		slog.Int("commands", len(commands)),
	)
}
