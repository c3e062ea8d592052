package core

import (
	"fmt"
)

// FulfilledFunc reacts to a fulfillment value.  The return settles
// the derived Future: a plain value fulfills it, a Settleable is
// adopted, and a non-nil error rejects it, superseding the value.
type FulfilledFunc func(v interface{}) (interface{}, error)

// RejectedFunc reacts to a rejection error, with the same
// derived-Future contract as FulfilledFunc.  Returning a nil error
// recovers: the derived Future fulfills with the returned value.
type RejectedFunc func(err error) (interface{}, error)

// SettledFunc reacts to settlement on either path.  It sees neither
// the value nor the error and can't change the outcome -- unless it
// returns a non-nil error, which supersedes.
type SettledFunc func() error

// continuation is one reaction registered on a Future.  Both
// callbacks are non-nil; they close over any user handlers and the
// derived Future.
type continuation struct {
	onFulfilled func(interface{})
	onRejected  func(error)
}

// subscribe registers callbacks for this Future's settlement.
//
// While Pending, the continuation is appended; on a terminal Future
// the relevant callback is scheduled immediately, never run inline.
// handles reports whether this subscription includes a real rejection
// handler, for unhandled-rejection tracking.
func (f *Future) subscribe(onFulfilled func(interface{}), onRejected func(error), handles bool) {
	c := &continuation{
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
	}

	f.mu.Lock()
	notify := false
	if handles && !f.handled {
		f.handled = true
		notify = f.status == Rejected
	}
	status, v, err := f.status, f.value, f.err
	if status == Pending {
		f.waiting = append(f.waiting, c)
	}
	f.mu.Unlock()

	if notify {
		if t, is := f.sched.(RejectionTracker); is {
			t.RejectionHandled(f)
		}
	}

	switch status {
	case Fulfilled:
		f.scheduleFulfilled(c, v)
	case Rejected:
		f.scheduleRejected(c, err)
	}
}

// Then attaches reactions to this Future and returns the derived
// Future that those reactions settle.
//
// A nil handler passes the corresponding outcome through unchanged:
// Then(nil, onRejected) forwards a fulfillment value verbatim to the
// derived Future, and Then(onFulfilled, nil) forwards a rejection
// verbatim.  A handler that panics rejects the derived Future with
// the panic.
func (f *Future) Then(onFulfilled FulfilledFunc, onRejected RejectedFunc) *Future {
	d := &Future{sched: f.sched}

	cf := func(v interface{}) {
		if onFulfilled == nil {
			d.resolve(v)
			return
		}
		result, err := runFulfilled(onFulfilled, v)
		if err != nil {
			d.settleRejected(err)
			return
		}
		d.resolve(result)
	}

	cr := func(err error) {
		if onRejected == nil {
			d.settleRejected(err)
			return
		}
		result, herr := runRejected(onRejected, err)
		if herr != nil {
			d.settleRejected(herr)
			return
		}
		d.resolve(result)
	}

	f.subscribe(cf, cr, onRejected != nil)
	return d
}

// Catch is Then with only a rejection handler.
func (f *Future) Catch(onRejected RejectedFunc) *Future {
	return f.Then(nil, onRejected)
}

// Finally attaches a reaction that runs on either outcome and passes
// the original outcome through unchanged.  If the reaction itself
// fails, that error supersedes the outcome.
//
// Finally doesn't count as handling a rejection: it can't recover,
// so a rejection that reaches only Finally reactions still reports
// as unhandled.
func (f *Future) Finally(onSettled SettledFunc) *Future {
	d := &Future{sched: f.sched}

	cf := func(v interface{}) {
		if err := runSettled(onSettled); err != nil {
			d.settleRejected(err)
			return
		}
		d.resolve(v)
	}

	cr := func(err error) {
		if herr := runSettled(onSettled); herr != nil {
			d.settleRejected(herr)
			return
		}
		d.settleRejected(err)
	}

	f.subscribe(cf, cr, false)
	return d
}

// OnSettled reports this Future's outcome to the given callbacks,
// which makes *Future its own Settleable.  Either callback can be
// nil.  At most one of the callbacks will run, at most once, as a
// scheduled Job.
func (f *Future) OnSettled(onFulfilled func(interface{}), onRejected func(error)) {
	handles := onRejected != nil
	if onFulfilled == nil {
		onFulfilled = func(interface{}) {}
	}
	if onRejected == nil {
		onRejected = func(error) {}
	}
	f.subscribe(onFulfilled, onRejected, handles)
}

func runFulfilled(h FulfilledFunc, v interface{}) (result interface{}, err error) {
	defer func() {
		if x := recover(); x != nil {
			result, err = nil, panicked(x)
		}
	}()
	return h(v)
}

func runRejected(h RejectedFunc, cause error) (result interface{}, err error) {
	defer func() {
		if x := recover(); x != nil {
			result, err = nil, panicked(x)
		}
	}()
	return h(cause)
}

func runSettled(h SettledFunc) (err error) {
	defer func() {
		if x := recover(); x != nil {
			err = panicked(x)
		}
	}()
	return h()
}

// panicked converts a recovered panic to an error.
func panicked(x interface{}) error {
	if err, is := x.(error); is {
		return err
	}
	return fmt.Errorf("handler panic: %v", x)
}
