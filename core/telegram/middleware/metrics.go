package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/menubot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "metrics"

// Counters tracks what one update sent back to the user.
type Counters struct {
	messages atomic.Int64
	edits    atomic.Int64
	kb       atomic.Bool
}

// Messages is the number of sent messages.
func (c *Counters) Messages() int { return int(c.messages.Load()) }

// Edits is the number of edited messages.
func (c *Counters) Edits() int { return int(c.edits.Load()) }

// Keyboard reports whether any response carried a keyboard.
func (c *Counters) Keyboard() bool { return c.kb.Load() }

func (c *Counters) add(edit, hasKB bool) {
	if c == nil {
		return
	}
	if edit {
		c.edits.Add(1)
	} else {
		c.messages.Add(1)
	}
	if hasKB {
		c.kb.Store(true)
	}
}

type countersCtxKey struct{}

// WithCounters attaches counters to ctx so code without a tele.Context can report into them.
func WithCounters(ctx context.Context, c *Counters) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, countersCtxKey{}, c)
}

// CountersFrom returns the counters attached to ctx, or nil.
func CountersFrom(ctx context.Context) *Counters {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(countersCtxKey{}).(*Counters)
	return c
}

// Track records one outbound message or edit for the update behind ctx.
func Track(ctx context.Context, edit, hasKB bool) {
	CountersFrom(ctx).add(edit, hasKB)
}

func countersOf(c tele.Context) *Counters {
	if c == nil {
		return nil
	}
	v, _ := c.Get(countersKey).(*Counters)
	return v
}

// metricsContext wraps tele.Context to count messages sent directly by handlers.
type metricsContext struct {
	tele.Context
	counters *Counters
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// Send proxies tele.Context.Send while updating message counters.
func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.counters.add(false, hasKeyboard(opts))
	}
	return err
}

// Reply proxies tele.Context.Reply while updating message counters.
func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.counters.add(false, hasKeyboard(opts))
	}
	return err
}

// Edit proxies tele.Context.Edit while updating edit counters.
func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	err := m.Context.Edit(what, opts...)
	if err == nil {
		m.counters.add(true, hasKeyboard(opts))
	}
	return err
}

// MessageMetricsMiddleware attaches fresh counters to every update.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &Counters{}
		c.Set(countersKey, counters)
		if ctx, ok := tghelpers.ContextFrom(c); ok {
			tghelpers.StoreContext(c, WithCounters(ctx, counters))
		}
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters reads sent message count and keyboard presence for the update.
// Edits count as messages here, matching what the user sees change.
func GetCounters(c tele.Context) (int, bool) {
	counters := countersOf(c)
	if counters == nil {
		return 0, false
	}
	return counters.Messages() + counters.Edits(), counters.Keyboard()
}
