// Package gather composes many Futures into one.
//
// Each combinator attaches one reaction pair to each input, in input
// order, and settles its result through an ordinary Resolver.
// Nothing here touches core internals.  These are the same moves any
// consumer of package core could make, which is the point.
package gather

import (
	"sync"

	"github.com/Comcast/laters/core"
)

// All returns a Future that fulfills with every input's value, in
// input order, once every input has fulfilled.  The first input to
// reject rejects the result with that error, and later settlements
// are ignored.
//
// With no inputs, the result is fulfilled (with an empty slice)
// before All returns.
func All(s core.Scheduler, fs []*core.Future) *core.Future {
	f, r := core.New(s)
	n := len(fs)
	if n == 0 {
		r.Fulfill([]interface{}{})
		return f
	}

	var (
		mu     sync.Mutex
		values = make([]interface{}, n)
		left   = n
	)

	for i, in := range fs {
		i := i
		in.OnSettled(func(v interface{}) {
			mu.Lock()
			values[i] = v
			left--
			done := left == 0
			mu.Unlock()
			if done {
				r.Fulfill(values)
			}
		}, func(err error) {
			r.Reject(err)
		})
	}

	return f
}

// Race returns a Future that settles the way the first input to
// settle does.  When several inputs are already terminal, the one at
// the lowest index wins, since its reaction is scheduled first.
//
// With no inputs, the result stays Pending forever.
func Race(s core.Scheduler, fs []*core.Future) *core.Future {
	f, r := core.New(s)

	for _, in := range fs {
		in.OnSettled(func(v interface{}) {
			r.Fulfill(v)
		}, func(err error) {
			r.Reject(err)
		})
	}

	return f
}

// Any returns a Future that fulfills with the first input to
// fulfill.  If every input rejects, the result rejects with an
// AllRejected wrapping the reasons in input order.
//
// With no inputs, the result is rejected (with an AllRejected
// wrapping nothing) before Any returns.
func Any(s core.Scheduler, fs []*core.Future) *core.Future {
	f, r := core.New(s)
	n := len(fs)
	if n == 0 {
		r.Reject(&AllRejected{})
		return f
	}

	var (
		mu      sync.Mutex
		reasons = make([]error, n)
		left    = n
	)

	for i, in := range fs {
		i := i
		in.OnSettled(func(v interface{}) {
			r.Fulfill(v)
		}, func(err error) {
			mu.Lock()
			reasons[i] = err
			left--
			done := left == 0
			mu.Unlock()
			if done {
				r.Reject(&AllRejected{Reasons: reasons})
			}
		})
	}

	return f
}

// AllSettled returns a Future that fulfills with one Outcome per
// input, in input order, once every input has settled.  It never
// rejects.
//
// With no inputs, the result is fulfilled (with an empty slice)
// before AllSettled returns.
func AllSettled(s core.Scheduler, fs []*core.Future) *core.Future {
	f, r := core.New(s)
	n := len(fs)
	if n == 0 {
		r.Fulfill([]Outcome{})
		return f
	}

	var (
		mu       sync.Mutex
		outcomes = make([]Outcome, n)
		left     = n
	)

	settle := func(i int, o Outcome) {
		mu.Lock()
		outcomes[i] = o
		left--
		done := left == 0
		mu.Unlock()
		if done {
			r.Fulfill(outcomes)
		}
	}

	for i, in := range fs {
		i := i
		in.OnSettled(func(v interface{}) {
			settle(i, Outcome{Status: core.Fulfilled, Value: v})
		}, func(err error) {
			settle(i, Outcome{Status: core.Rejected, Reason: err})
		})
	}

	return f
}
