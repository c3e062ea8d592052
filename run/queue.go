// Package run provides the host side of the deferred-value machine:
// the Queue that Futures schedule their reactions through, and the
// Loop that drains it.
//
// The split matters.  Package core decides what runs; this package
// decides when.  A host with its own event loop can call Drain
// itself and skip Loop entirely, which is also how the tests here
// work.
package run

import (
	"fmt"
	"log"
	"sync"

	"github.com/Comcast/laters/core"
)

// UnhandledFunc hears about failures that nothing else will: a Future
// that rejected with no rejection handler attached through the end of
// a drain pass, or a Job that panicked.  For a panicking Job, f is
// nil.
type UnhandledFunc func(f *core.Future, err error)

// Queue is the standard Scheduler: a FIFO of Jobs drained by the
// host.
//
// Schedule is safe to call from any goroutine.  Drain is meant to be
// called from exactly one: the host's loop (see Loop).
type Queue struct {
	// Verbose turns on logging.
	Verbose bool

	// Unhandled, when non-nil, is invoked synchronously from
	// Drain.  Register it once, at startup.  When nil, reports go
	// to the standard logger.
	Unhandled UnhandledFunc

	mu   sync.Mutex
	jobs []core.Job
	wake chan struct{}

	// candidates holds Futures that rejected without a rejection
	// handler, in rejection order.  member is the subset that
	// hasn't been retracted by a late handler.
	candidates []*core.Future
	member     map[*core.Future]bool
}

// NewQueue makes an empty Queue.
func NewQueue() *Queue {
	return &Queue{
		jobs:   make([]core.Job, 0, 128),
		member: make(map[*core.Future]bool, 32),
	}
}

// Schedule appends a Job to the queue and nudges the Loop (if any)
// awake.
func (q *Queue) Schedule(j core.Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	wake := q.wake
	q.mu.Unlock()

	if wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Pending reports how many Jobs are waiting.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drain runs Jobs in FIFO order until the queue is empty as observed
// at each removal, then reports unhandled rejections.  Returns the
// number of Jobs run.
//
// Jobs scheduled while draining run in the same pass: an emitted
// continuation shouldn't have to wait for the host to come around
// again.  A Job that panics is reported via Unhandled, and the drain
// carries on with the next Job.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			report := q.take()
			q.mu.Unlock()
			q.Logf("Queue.Drain ran %d jobs", n)
			q.report(report)
			return n
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:] // ToDo: Consider leak.
		q.mu.Unlock()

		q.run(j)
		n++
	}
}

// RejectedWithoutHandler records an unhandled-rejection candidate.
// Called by Futures, not by you.
func (q *Queue) RejectedWithoutHandler(f *core.Future) {
	q.mu.Lock()
	if q.member == nil {
		q.member = make(map[*core.Future]bool, 32)
	}
	if !q.member[f] {
		q.member[f] = true
		q.candidates = append(q.candidates, f)
	}
	q.mu.Unlock()
}

// RejectionHandled retracts a candidacy recorded by
// RejectedWithoutHandler.  Also called by Futures.
func (q *Queue) RejectionHandled(f *core.Future) {
	q.mu.Lock()
	delete(q.member, f)
	q.mu.Unlock()
}

// take collects the candidates still standing.  Caller holds q.mu.
func (q *Queue) take() []*core.Future {
	if len(q.candidates) == 0 {
		return nil
	}
	report := make([]*core.Future, 0, len(q.candidates))
	for _, f := range q.candidates {
		if q.member[f] {
			report = append(report, f)
			delete(q.member, f)
		}
	}
	q.candidates = q.candidates[:0]
	return report
}

func (q *Queue) report(fs []*core.Future) {
	for _, f := range fs {
		if q.Unhandled != nil {
			q.Unhandled(f, f.Err())
			continue
		}
		log.Printf("unhandled rejection: %v", f.Err())
	}
}

func (q *Queue) run(j core.Job) {
	defer func() {
		if x := recover(); x != nil {
			err := fmt.Errorf("job panic: %v", x)
			if q.Unhandled != nil {
				q.Unhandled(nil, err)
				return
			}
			log.Printf("%v", err)
		}
	}()
	j()
}

// Logf logs if q.Verbose.
func (q *Queue) Logf(format string, args ...interface{}) {
	if !q.Verbose {
		return
	}
	log.Printf(format, args...)
}
