package run

import (
	"context"
	"log"
)

// Loop drains a Queue whenever work shows up.  For hosts that don't
// have an event loop of their own.
type Loop struct {
	// Verbose turns on logging.
	Verbose bool

	// Queue is the Queue this Loop drains.
	Queue *Queue

	wake chan struct{}
}

// NewLoop wires a Loop to the given Queue.  Schedule calls on the
// Queue will wake the Loop.
func NewLoop(q *Queue) *Loop {
	l := &Loop{
		Queue: q,
		wake:  make(chan struct{}, 1),
	}
	q.mu.Lock()
	q.wake = l.wake
	q.mu.Unlock()
	return l
}

// Run drains until ctx is done.  An initial drain picks up anything
// scheduled before Run started.
func (l *Loop) Run(ctx context.Context) error {
	l.Logf("Loop.Run starting")
	l.Queue.Drain()
LOOP:
	for {
		select {
		case <-ctx.Done():
			l.Logf("Loop.Run stopping")
			break LOOP
		case <-l.wake:
			l.Queue.Drain()
		}
	}
	return nil
}

// Logf logs if l.Verbose.
func (l *Loop) Logf(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	log.Printf(format, args...)
}
