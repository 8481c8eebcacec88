// Package livelog provides the asynchronous progress stream printed while a
// processing run is underway. Producers enqueue timestamped lines without
// blocking; a single background goroutine drains and prints them on a fixed
// interval until the sink is stopped.
package livelog

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultInterval is how often the background loop drains the queue.
const DefaultInterval = 100 * time.Millisecond

// Sink is a concurrency-safe message queue with one background consumer.
// Enqueueing never blocks; Stop flushes anything still queued before
// returning, so no message enqueued before Stop is lost.
type Sink struct {
	mu       sync.Mutex
	queue    []string
	out      io.Writer
	interval time.Duration
	quit     chan struct{}
	done     chan struct{}
	stopped  bool
}

// NewSink returns a Sink printing to out and starts its background drain
// loop. The caller owns the sink and must call Stop when the run ends.
func NewSink(out io.Writer) *Sink {
	return NewSinkWithInterval(out, DefaultInterval)
}

func NewSinkWithInterval(out io.Writer, interval time.Duration) *Sink {

	s := &Sink{
		out:      out,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.drainLoop()

	return s
}

// Log enqueues a timestamped message.
func (s *Sink) Log(format string, args ...interface{}) {
	s.enqueue(fmt.Sprintf(format, args...))
}

// Warn enqueues a timestamped message tagged WARN.
func (s *Sink) Warn(format string, args ...interface{}) {
	s.enqueue("[WARN] " + fmt.Sprintf(format, args...))
}

// Error enqueues a timestamped message tagged ERROR.
func (s *Sink) Error(format string, args ...interface{}) {
	s.enqueue("[ERROR] " + fmt.Sprintf(format, args...))
}

func (s *Sink) enqueue(msg string) {

	entry := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		// Late messages still print, just synchronously.
		fmt.Fprintf(s.out, "  %s\n", entry)
		return
	}

	s.queue = append(s.queue, entry)
}

// Stop halts the background loop and flushes anything enqueued since the
// last drain. Safe to call more than once.
func (s *Sink) Stop() {

	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()
		return
	}

	s.stopped = true
	s.mu.Unlock()

	close(s.quit)
	<-s.done

	s.drain()
}

func (s *Sink) drainLoop() {

	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.drain()
		}
	}
}

func (s *Sink) drain() {

	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, entry := range pending {
		fmt.Fprintf(s.out, "  %s\n", entry)
	}
}
