/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
)

// Status represents the settlement state of a Future.
type Status int

const (
	Pending   Status = iota // No outcome yet.
	Fulfilled               // Terminal: has a value.
	Rejected                // Terminal: has an error.
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// MarshalJSON renders a Status as its name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a Status from its name.
func (s *Status) UnmarshalJSON(bs []byte) error {
	var name string
	if err := json.Unmarshal(bs, &name); err != nil {
		return err
	}
	switch name {
	case "pending":
		*s = Pending
	case "fulfilled":
		*s = Fulfilled
	case "rejected":
		*s = Rejected
	default:
		return fmt.Errorf(`unknown status "%s"`, name)
	}
	return nil
}

// Future represents an eventual outcome: a value or an error that
// isn't known yet but will be determined at most once.
//
// The zero value isn't useful.  Use New, Resolve, or Reject, which
// bind the Future to the Scheduler that will run its reactions.
//
// State transitions are monotonic: Pending to Fulfilled or Pending to
// Rejected, and that's it.  Once terminal, the value or error never
// changes, and every reaction attached afterwards is scheduled
// immediately (but still never run inline).
type Future struct {
	sched Scheduler

	mu      sync.Mutex
	status  Status
	value   interface{}
	err     error
	waiting []*continuation

	// handled records that a rejection handler was attached at
	// some point, which disqualifies this Future from
	// unhandled-rejection reporting.
	handled bool
}

// New creates a Pending Future and the Resolver that settles it.
//
// The Scheduler runs every reaction this Future (and its derived
// Futures) will ever schedule.  Futures that interact should share
// one.
func New(s Scheduler) (*Future, *Resolver) {
	f := &Future{sched: s}
	return f, &Resolver{f: f}
}

// Resolve returns a Future fulfilled with the given value -- or, if
// the value is a Settleable, a Future adopting that Settleable's
// outcome.
func Resolve(s Scheduler, v interface{}) *Future {
	f, r := New(s)
	r.Fulfill(v)
	return f
}

// Reject returns a Future rejected with the given error.
func Reject(s Scheduler, err error) *Future {
	f, r := New(s)
	r.Reject(err)
	return f
}

// Status reports the Future's current settlement state.
func (f *Future) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Value returns the fulfillment value, which means nothing unless
// Status() is Fulfilled.
func (f *Future) Value() interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

// Err returns the rejection error, or nil if this Future hasn't
// rejected.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Future) String() string {
	f.mu.Lock()
	status, v, err := f.status, f.value, f.err
	f.mu.Unlock()

	switch status {
	case Fulfilled:
		js, e := json.Marshal(&v)
		if e != nil {
			return "fulfilled/{*}"
		}
		return "fulfilled/" + string(js)
	case Rejected:
		return "rejected/" + err.Error()
	}
	return "pending"
}

// MarshalJSON renders the Future's current state.  Continuations and
// the Scheduler are not represented, so this is a snapshot, not a
// serialization.
func (f *Future) MarshalJSON() ([]byte, error) {
	f.mu.Lock()
	m := map[string]interface{}{
		"status": f.status,
	}
	switch f.status {
	case Fulfilled:
		m["value"] = f.value
	case Rejected:
		m["error"] = f.err.Error()
	}
	f.mu.Unlock()

	return json.Marshal(&m)
}

// resolve runs the resolution algorithm: a plain value settles the
// Future as Fulfilled, a Settleable is adopted, and the Future itself
// is a cycle.
func (f *Future) resolve(v interface{}) {
	if other, is := v.(*Future); is && other == f {
		f.settleRejected(&CyclicAdoption{Future: f})
		return
	}
	if s, is := v.(Settleable); is {
		f.adopt(s)
		return
	}
	f.settleFulfilled(v)
}

// adopt defers this Future's outcome to a Settleable's.
//
// The subscription happens in a scheduled Job so that the
// Settleable's callbacks never run on the resolving caller's stack.
func (f *Future) adopt(s Settleable) {
	f.sched.Schedule(func() {
		s.OnSettled(f.resolve, f.settleRejected)
	})
}

// settleFulfilled makes the Pending-to-Fulfilled transition and
// schedules the waiting continuations in attachment order.  No-op on
// a terminal Future.
func (f *Future) settleFulfilled(v interface{}) {
	f.mu.Lock()
	if f.status != Pending {
		f.mu.Unlock()
		return
	}
	f.status = Fulfilled
	f.value = v
	waiting := f.waiting
	f.waiting = nil
	f.mu.Unlock()

	for _, c := range waiting {
		f.scheduleFulfilled(c, v)
	}
}

// settleRejected makes the Pending-to-Rejected transition, schedules
// the waiting continuations in attachment order, and registers the
// Future as an unhandled-rejection candidate if no rejection handler
// was ever attached.  No-op on a terminal Future.
func (f *Future) settleRejected(err error) {
	f.mu.Lock()
	if f.status != Pending {
		f.mu.Unlock()
		return
	}
	f.status = Rejected
	f.err = err
	waiting := f.waiting
	f.waiting = nil
	handled := f.handled
	f.mu.Unlock()

	if !handled {
		if t, is := f.sched.(RejectionTracker); is {
			t.RejectedWithoutHandler(f)
		}
	}

	for _, c := range waiting {
		f.scheduleRejected(c, err)
	}
}

func (f *Future) scheduleFulfilled(c *continuation, v interface{}) {
	f.sched.Schedule(func() {
		c.onFulfilled(v)
	})
}

func (f *Future) scheduleRejected(c *continuation, err error) {
	f.sched.Schedule(func() {
		c.onRejected(err)
	})
}

// Resolver is the exclusive capability to settle one Future.
//
// Only the first Fulfill or Reject call has any effect; the rest are
// silently ignored.  A first Fulfill that begins an adoption also
// spends the Resolver, even though the Future settles later or never.
type Resolver struct {
	f    *Future
	used uint32
}

// Fulfill settles the Future with a value.
//
// A Settleable value is adopted instead: the Future's outcome becomes
// the Settleable's eventual outcome.  Fulfilling a Future with itself
// rejects it with a CyclicAdoption error.
func (r *Resolver) Fulfill(v interface{}) {
	if !atomic.CompareAndSwapUint32(&r.used, 0, 1) {
		return
	}
	r.f.resolve(v)
}

// Reject settles the Future with an error.
func (r *Resolver) Reject(err error) {
	if !atomic.CompareAndSwapUint32(&r.used, 0, 1) {
		return
	}
	r.f.settleRejected(err)
}

// Future returns the Future this Resolver settles.
func (r *Resolver) Future() *Future {
	return r.f
}
