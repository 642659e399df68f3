// Package sender runs outbound Bot API calls with bounded retries. Do serves
// calls whose result the caller needs; Enqueue serves fire-and-forget calls
// such as callback answers.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned once Close has been called.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means Enqueue found no room and dropped the call.
	ErrQueueFull = errors.New("telegram sender: queue full")
	// ErrNotModified wraps edits Telegram rejected because the message
	// already shows the same text and keyboard.
	ErrNotModified = errors.New("telegram sender: message is not modified")

	errNilCall = errors.New("telegram sender: nil call")
	tokenRe    = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// call is one outbound request; screen names the menu screen it delivers.
type call struct {
	ctx    context.Context
	action string
	screen string
	fn     func() error
}

// Dispatcher executes outbound Telegram calls with retries.
type Dispatcher struct {
	opts  Options
	queue chan call
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failed  atomic.Uint64
	retried atomic.Uint64
}

// NewDispatcher starts the worker pool. Zero options take defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		queue: make(chan call, opts.QueueSize),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for c := range d.queue {
				_ = d.run(c)
			}
		}()
	}
	return d
}

// Enqueue schedules fn on the worker pool. fn must be safe to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action, screen string, fn func() error) error {
	if fn == nil {
		return errNilCall
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- call{ctx: ctx, action: action, screen: screen, fn: fn}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs fn on the caller's goroutine through the same retry loop.
func (d *Dispatcher) Do(ctx context.Context, action, screen string, fn func() error) error {
	if fn == nil {
		return errNilCall
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}
	return d.run(call{ctx: ctx, action: action, screen: screen, fn: fn})
}

// Failed counts calls that gave up with an error.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Retried counts retry attempts across all calls.
func (d *Dispatcher) Retried() uint64 { return d.retried.Load() }

// Close rejects new calls and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(c call) error {
	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	attrs := []slog.Attr{slog.String("op", c.action)}
	if c.screen != "" {
		attrs = append(attrs, slog.String("screen", c.screen))
	}

	var err error
	attempt := 1
	for ; ; attempt++ {
		if err = deadline.Err(); err != nil {
			break
		}
		if err = c.fn(); err == nil {
			logger.Debug(ctx, component, "send.ok", append(attrs,
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
		if NotModified(err) {
			logger.Debug(ctx, component, "send.unchanged", attrs...)
			return fmt.Errorf("%w: %w", ErrNotModified, err)
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok && wait > delay {
			delay = wait
		}
		d.retried.Add(1)
		logger.Debug(ctx, component, "send.retry", append(attrs,
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("err_code", classifyError(err)),
		)...)
		if !sleep(deadline, delay) {
			err = deadline.Err()
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, component, "send.fail", append(attrs,
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(redact(err), 256)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NotModified reports whether err is Telegram refusing an edit that would
// not change the message.
func NotModified(err error) bool {
	return err != nil && (errors.Is(err, ErrNotModified) || strings.Contains(err.Error(), "message is not modified"))
}

// redact hides bot tokens that net/http errors carry in request URLs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

// classifyError buckets err for the err_code log field.
func classifyError(err error) string {
	var (
		dnsErr *net.DNSError
		netErr net.Error
		opErr  *net.OpError
		tlsErr tls.AlertError
		flood  tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case NotModified(err):
		return "not_modified"
	case errors.As(err, &flood):
		return "flood"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}
	switch status := statusOf(err); {
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusOf extracts the Bot API status code, falling back to a trailing
// "(NNN)" in the message.
func statusOf(err error) int {
	var (
		apiErr   *tele.Error
		groupErr tele.GroupError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	msg := err.Error()
	open, end := strings.LastIndexByte(msg, '('), strings.LastIndexByte(msg, ')')
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}
