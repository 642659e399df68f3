package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

const (
	defaultSinkBuffer = 64 * 1024
	queueDepth        = 256
)

var errWriterClosed = errors.New("logger: writer closed")

// op is a queued line, or a flush request when ack is set.
type op struct {
	line []byte
	ack  chan error
}

// asyncWriter fans lines out to its sinks from a single goroutine. Sinks are
// flushed whenever the queue runs dry, so a burst costs one flush.
type asyncWriter struct {
	ops   chan op
	done  chan struct{}
	sinks []*bufio.Writer

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error

	// blocked counts writes that found the queue full and waited.
	blocked atomic.Int64
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = defaultSinkBuffer
	}
	w := &asyncWriter{
		ops:  make(chan op, queueDepth),
		done: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for o := range w.ops {
		if o.ack != nil {
			o.ack <- w.flush()
			continue
		}
		for _, s := range w.sinks {
			if _, err := s.Write(o.line); err != nil {
				w.fail(err)
			}
		}
		if len(w.ops) == 0 {
			w.fail(w.flush())
		}
	}
	w.fail(w.flush())
}

// Write queues a copy of p. When the queue is full it waits rather than drop
// the line.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	o := op{line: append([]byte(nil), p...)}
	select {
	case w.ops <- o:
	default:
		w.blocked.Add(1)
		w.ops <- o
	}
	return nil
}

// Blocked reports how many writes had to wait for queue space.
func (w *asyncWriter) Blocked() int64 {
	return w.blocked.Load()
}

// Flush returns once every line queued before it has reached the sinks.
func (w *asyncWriter) Flush() error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return w.firstErr()
	}
	ack := make(chan error, 1)
	w.ops <- op{ack: ack}
	w.mu.RUnlock()
	if err := <-ack; err != nil {
		return err
	}
	return w.firstErr()
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.ops)
	}
	w.mu.Unlock()
	<-w.done
	return w.firstErr()
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
