package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const lineQueue = 512

// asyncWriter fans log lines out to its sinks from a single goroutine.
// Lines are batched: sinks are flushed once the queue runs dry, not per line.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	stopped chan struct{}
	closing sync.Once

	mu    sync.Mutex
	sinks []*bufio.Writer
	err   error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		lines:   make(chan []byte, lineQueue),
		flushes: make(chan chan error),
		stopped: make(chan struct{}),
	}
	for _, out := range writers {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.stopped)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.flushSinks())
				return
			}
			w.fail(w.writeLine(line))
			if len(w.lines) == 0 {
				w.fail(w.flushSinks())
			}
		case ack := <-w.flushes:
			w.drain()
			ack <- w.flushSinks()
		}
	}
}

// Write queues a copy of p. A full queue blocks the caller rather than
// dropping the line.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.lastErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush blocks until everything queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.lastErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.stopped:
		return w.lastErr()
	}
}

// Close drains pending lines and returns the first sink error seen.
func (w *asyncWriter) Close() error {
	w.closing.Do(func() { close(w.lines) })
	<-w.stopped
	return w.lastErr()
}

// drain writes lines that were queued before a flush request was picked up.
func (w *asyncWriter) drain() {
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				return
			}
			w.fail(w.writeLine(line))
		default:
			return
		}
	}
}

func (w *asyncWriter) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if _, err := s.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) lastErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
}
