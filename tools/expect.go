// Package tools has a scenario harness for the futures machinery,
// along with some renderers for scenario files and their runs.
//
// A Session is a sequence of Steps.  Each Step performs some Ops
// (make a Future, settle it, chain reactions, gather, set timers),
// drains the queue, and then checks Expectations against the events
// the step produced.  Sessions usually arrive as YAML; see
// ReadSession.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/gather"
	"github.com/Comcast/laters/journal"
	"github.com/Comcast/laters/run"
	"github.com/Comcast/laters/timers"
	. "github.com/Comcast/laters/util/testutil"

	"github.com/jsccast/yaml"
)

// Op is one scenario operation.  Exactly one operative field should
// be set.
type Op struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Make creates a Future and its Resolver, both registered
	// under this id.
	Make string `json:"make,omitempty" yaml:"make,omitempty"`

	// Fulfill spends a Resolver on a value (or on another
	// Future).
	Fulfill *FulfillOp `json:"fulfill,omitempty" yaml:"fulfill,omitempty"`

	// Reject spends a Resolver on an error.
	Reject *RejectOp `json:"reject,omitempty" yaml:"reject,omitempty"`

	// Then, Catch, and Finally attach reactions, registering the
	// derived Future under the ChainOp's As.
	Then    *ChainOp `json:"then,omitempty" yaml:"then,omitempty"`
	Catch   *ChainOp `json:"catch,omitempty" yaml:"catch,omitempty"`
	Finally *ChainOp `json:"finally,omitempty" yaml:"finally,omitempty"`

	// The combinators.
	All        *GatherOp `json:"all,omitempty" yaml:"all,omitempty"`
	Race       *GatherOp `json:"race,omitempty" yaml:"race,omitempty"`
	Any        *GatherOp `json:"any,omitempty" yaml:"any,omitempty"`
	AllSettled *GatherOp `json:"allSettled,omitempty" yaml:"allSettled,omitempty"`

	// Timer asks the in-process Timers to settle a new Future
	// later.
	Timer *TimerOp `json:"timer,omitempty" yaml:"timer,omitempty"`

	// Cancel removes a pending timer by id.  The timer's Future
	// stays Pending forever.
	Cancel string `json:"cancel,omitempty" yaml:"cancel,omitempty"`

	// Drain drains the queue in the middle of a step.  Every step
	// drains once more after its last Op.
	Drain bool `json:"drain,omitempty" yaml:"drain,omitempty"`
}

// FulfillOp fulfills the Future registered under Id.
type FulfillOp struct {
	Id string `json:"id" yaml:"id"`

	// Value is the fulfillment value (when Adopt is empty).
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	// Adopt, when set, fulfills with the Future registered under
	// that id, so the target adopts that Future's outcome.
	Adopt string `json:"adopt,omitempty" yaml:"adopt,omitempty"`
}

// RejectOp rejects the Future registered under Id.
type RejectOp struct {
	Id     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
}

// ChainOp attaches a reaction to the Future registered under On,
// registering the derived Future under As.
type ChainOp struct {
	On string `json:"on" yaml:"on"`
	As string `json:"as" yaml:"as"`

	// GuardSource is optional ECMAScript compiled via
	// CompileGuard.  For a then, the fulfillment value is at
	// _.value; for a catch, the rejection message is at _.reason.
	// The guard's return becomes the derived Future's value, and
	// a throw rejects it.
	//
	// Without a guard, a then passes the outcome through
	// unchanged, a catch recovers with null, and a finally just
	// observes.
	GuardSource string `json:"guard,omitempty" yaml:"guard,omitempty"`

	guard *Guard
}

// GatherOp runs a combinator over the Futures registered under Of,
// registering the result under As.
type GatherOp struct {
	Of []string `json:"of" yaml:"of"`
	As string   `json:"as" yaml:"as"`
}

// TimerOp creates a timer whose firing settles a new Future
// registered under Id (which is also the timer's id, for Cancel).
type TimerOp struct {
	Id string `json:"id" yaml:"id"`

	// Value is the eventual fulfillment value.
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`

	// Reason, when non-empty, makes a timer that rejects instead.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// In says when, as a time.Duration string like "20ms".
	In string `json:"in,omitempty" yaml:"in,omitempty"`

	// Cron says when with a cron expression (when In is empty).
	Cron string `json:"cron,omitempty" yaml:"cron,omitempty"`
}

// Expectation is a specification for an event that should (or
// shouldn't) have happened during a Step.
//
// Events are maps.  A settlement looks like
//
//   {"event":"settled","id":"f0","status":"fulfilled","value":42}
//   {"event":"settled","id":"f1","status":"rejected","reason":"queso spill"}
//
// an unhandled rejection report looks like
//
//   {"event":"unhandled","id":"f1","reason":"queso spill"}
//
// and a panicked job looks like
//
//   {"event":"panic","reason":"job panic: no"}
type Expectation struct {
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Pattern should match some event from this step.
	Pattern interface{} `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// GuardSource is optional ECMAScript that checks a match's
	// bindings, which are at _.bindings.  A throw or a falsy
	// return means the event doesn't actually satisfy this
	// Expectation.
	GuardSource string `json:"guard,omitempty" yaml:"guard,omitempty"`

	// Absent negates: the pattern should match no event at all.
	Absent bool `json:"absent,omitempty" yaml:"absent,omitempty"`

	// Bindingss accumulates the bindings of satisfying matches.
	// Just for diagnostics.
	Bindingss []Bindings `json:"-" yaml:"-"`

	guard *Guard
}

// Step is a batch of Ops followed by Expectations about what those
// Ops caused.
type Step struct {
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// WaitBefore is time to sleep before the Ops run, usually to
	// let a timer fire.  In YAML, a duration is nanoseconds (so
	// 50000000 is 50ms).
	WaitBefore time.Duration `json:"waitBefore,omitempty" yaml:"waitBefore,omitempty"`

	Ops []Op `json:"ops,omitempty" yaml:"ops,omitempty"`

	// WaitAfter is time to sleep after the Ops, before the
	// step's final drain.
	WaitAfter time.Duration `json:"waitAfter,omitempty" yaml:"waitAfter,omitempty"`

	// Expect is a set, not a sequence: each Expectation is
	// checked against all of the step's events.
	Expect []Expectation `json:"expect,omitempty" yaml:"expect,omitempty"`
}

// Session is mostly a sequence of Steps, which share one Queue, one
// Timers, and one namespace of Future ids.
type Session struct {
	// Name is what renderers call this Session.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	Steps []Step `json:"steps" yaml:"steps"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Journal, when non-nil, also gets a record of every
	// settlement and unhandled rejection.  The caller opens and
	// closes it.
	Journal *journal.Journal `json:"-" yaml:"-"`

	// History holds each completed step's events, in order.
	History [][]interface{} `json:"-" yaml:"-"`

	queue     *run.Queue
	timers    *timers.Timers
	futures   map[string]*core.Future
	resolvers map[string]*core.Resolver
	names     map[*core.Future]string
	events    []interface{}
}

// BrokenExpectation reports the first Expectation a Step failed.
type BrokenExpectation struct {
	Step    int         `json:"step"`
	Doc     string      `json:"doc,omitempty"`
	Pattern interface{} `json:"pattern"`
	Err     error       `json:"-"`
}

func (e *BrokenExpectation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d expectation %s: %v", e.Step, JS(e.Pattern), e.Err)
	}
	return fmt.Sprintf("step %d expectation %s unsatisfied", e.Step, JS(e.Pattern))
}

// Run executes the Steps in order, stopping at the first trouble.
func (s *Session) Run(ctx context.Context) error {
	s.queue = run.NewQueue()
	s.queue.Unhandled = s.unhandled
	s.timers = timers.NewTimers()
	defer s.timers.Shutdown()
	s.futures = make(map[string]*core.Future, 32)
	s.resolvers = make(map[string]*core.Resolver, 32)
	s.names = make(map[*core.Future]string, 32)
	s.History = make([][]interface{}, 0, len(s.Steps))

	for i := range s.Steps {
		s.Logf("step %d %s", i, s.Steps[i].Doc)
		s.events = nil
		err := s.step(ctx, i, &s.Steps[i])
		s.History = append(s.History, s.events)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) step(ctx context.Context, n int, step *Step) error {
	s.pause("waitBefore", step.WaitBefore)

	for i := range step.Ops {
		if err := s.op(ctx, &step.Ops[i]); err != nil {
			return fmt.Errorf("step %d op %d: %v", n, i, err)
		}
	}

	s.pause("waitAfter", step.WaitAfter)
	s.queue.Drain()

	return s.verify(ctx, n, step)
}

func (s *Session) op(ctx context.Context, op *Op) error {
	switch {
	case op.Make != "":
		f, r := core.New(s.queue)
		return s.register(op.Make, f, r)
	case op.Fulfill != nil:
		r, err := s.resolver(op.Fulfill.Id)
		if err != nil {
			return err
		}
		if op.Fulfill.Adopt != "" {
			g, err := s.future(op.Fulfill.Adopt)
			if err != nil {
				return err
			}
			r.Fulfill(g)
			return nil
		}
		r.Fulfill(op.Fulfill.Value)
		return nil
	case op.Reject != nil:
		r, err := s.resolver(op.Reject.Id)
		if err != nil {
			return err
		}
		r.Reject(errors.New(op.Reject.Reason))
		return nil
	case op.Then != nil:
		return s.chain(ctx, op.Then, "then")
	case op.Catch != nil:
		return s.chain(ctx, op.Catch, "catch")
	case op.Finally != nil:
		return s.chain(ctx, op.Finally, "finally")
	case op.All != nil:
		return s.gather(op.All, gather.All)
	case op.Race != nil:
		return s.gather(op.Race, gather.Race)
	case op.Any != nil:
		return s.gather(op.Any, gather.Any)
	case op.AllSettled != nil:
		return s.gather(op.AllSettled, gather.AllSettled)
	case op.Timer != nil:
		return s.timer(ctx, op.Timer)
	case op.Cancel != "":
		return s.timers.Rem(ctx, op.Cancel)
	case op.Drain:
		s.queue.Drain()
		return nil
	}
	return fmt.Errorf("op %s does nothing", JS(op))
}

func (s *Session) future(id string) (*core.Future, error) {
	f, have := s.futures[id]
	if !have {
		return nil, fmt.Errorf("unknown future '%s'", id)
	}
	return f, nil
}

func (s *Session) resolver(id string) (*core.Resolver, error) {
	r, have := s.resolvers[id]
	if !have {
		if _, also := s.futures[id]; also {
			return nil, fmt.Errorf("future '%s' has no resolver", id)
		}
		return nil, fmt.Errorf("unknown future '%s'", id)
	}
	return r, nil
}

func (s *Session) register(id string, f *core.Future, r *core.Resolver) error {
	if id == "" {
		return errors.New("no id")
	}
	if _, have := s.futures[id]; have {
		return fmt.Errorf("id '%s' exists", id)
	}
	s.futures[id] = f
	s.names[f] = id
	if r != nil {
		s.resolvers[id] = r
	}
	s.observe(id, f)
	return nil
}

// observe arranges to record f's settlement without counting as
// handling f's rejection (if any).
func (s *Session) observe(id string, f *core.Future) {
	f.Finally(func() error {
		event := map[string]interface{}{
			"event":  "settled",
			"id":     id,
			"status": f.Status().String(),
		}
		e := &journal.Entry{
			Id:     id,
			Status: f.Status(),
		}
		switch f.Status() {
		case core.Fulfilled:
			event["value"] = f.Value()
			e.Value = f.Value()
		case core.Rejected:
			event["reason"] = f.Err().Error()
			e.Reason = f.Err().Error()
		}
		s.record(event)
		if err := s.Journal.Record(context.Background(), e); err != nil {
			log.Printf("journal error %v for '%s'", err, id)
		}
		return nil
	}).Catch(func(error) (interface{}, error) {
		// Swallow the derivative so that observing a rejection
		// doesn't manufacture a second unhandled report.
		return nil, nil
	})
}

// unhandled is this Session's run.UnhandledFunc.
func (s *Session) unhandled(f *core.Future, err error) {
	event := map[string]interface{}{
		"reason": err.Error(),
	}
	if f == nil {
		event["event"] = "panic"
	} else {
		event["event"] = "unhandled"
		if id, have := s.names[f]; have {
			event["id"] = id
		}
	}
	s.record(event)
	s.Journal.LogUnhandled(f, err)
}

func (s *Session) record(event map[string]interface{}) {
	x, err := core.Canonicalize(event)
	if err != nil {
		x = map[string]interface{}{
			"event": "error",
			"error": err.Error(),
		}
	}
	s.Logf("event %s", JS(x))
	s.events = append(s.events, x)
}

func (s *Session) chain(ctx context.Context, op *ChainOp, kind string) error {
	f, err := s.future(op.On)
	if err != nil {
		return err
	}

	if op.GuardSource != "" && op.guard == nil {
		if op.guard, err = CompileGuard(op.GuardSource); err != nil {
			return err
		}
	}
	guard := op.guard

	var d *core.Future
	switch kind {
	case "then":
		var h core.FulfilledFunc
		if guard != nil {
			h = func(v interface{}) (interface{}, error) {
				return guard.Exec(ctx, map[string]interface{}{
					"value": v,
				})
			}
		}
		d = f.Then(h, nil)
	case "catch":
		h := func(err error) (interface{}, error) {
			return nil, nil
		}
		if guard != nil {
			h = func(err error) (interface{}, error) {
				return guard.Exec(ctx, map[string]interface{}{
					"reason": err.Error(),
				})
			}
		}
		d = f.Catch(h)
	case "finally":
		h := func() error { return nil }
		if guard != nil {
			h = func() error {
				_, err := guard.Exec(ctx, nil)
				return err
			}
		}
		d = f.Finally(h)
	}

	return s.register(op.As, d, nil)
}

func (s *Session) gather(op *GatherOp, combine func(core.Scheduler, []*core.Future) *core.Future) error {
	fs := make([]*core.Future, 0, len(op.Of))
	for _, id := range op.Of {
		f, err := s.future(id)
		if err != nil {
			return err
		}
		fs = append(fs, f)
	}
	return s.register(op.As, combine(s.queue, fs), nil)
}

func (s *Session) timer(ctx context.Context, op *TimerOp) error {
	if _, have := s.futures[op.Id]; have {
		return fmt.Errorf("id '%s' exists", op.Id)
	}

	var (
		f   *core.Future
		err error
	)
	switch {
	case op.Cron != "":
		f, err = s.timers.AfterCron(ctx, s.queue, op.Id, op.Value, op.Cron)
	case op.Reason != "":
		var in time.Duration
		if in, err = time.ParseDuration(op.In); err != nil {
			return err
		}
		f, err = s.timers.Fail(ctx, s.queue, op.Id, errors.New(op.Reason), in)
	default:
		var in time.Duration
		if in, err = time.ParseDuration(op.In); err != nil {
			return err
		}
		f, err = s.timers.After(ctx, s.queue, op.Id, op.Value, in)
	}
	if err != nil {
		return err
	}

	return s.register(op.Id, f, nil)
}

func (s *Session) verify(ctx context.Context, n int, step *Step) error {
	for i := range step.Expect {
		e := &step.Expect[i]

		if e.GuardSource != "" && e.guard == nil {
			var err error
			if e.guard, err = CompileGuard(e.GuardSource); err != nil {
				return err
			}
		}

		found := false
		for _, event := range s.events {
			bs, err := Match(e.Pattern, event, nil)
			if err != nil {
				return err
			}
			if bs == nil {
				continue
			}
			if e.guard != nil {
				x, err := e.guard.Exec(ctx, map[string]interface{}{
					"bindings": map[string]interface{}(bs),
				})
				if err != nil || x == nil || x == false {
					continue
				}
			}
			e.Bindingss = append(e.Bindingss, bs)
			found = true
			break
		}

		if e.Absent {
			if found {
				return &BrokenExpectation{
					Step:    n,
					Doc:     e.Doc,
					Pattern: e.Pattern,
					Err:     errors.New("matched an event that shouldn't exist"),
				}
			}
			continue
		}
		if !found {
			return &BrokenExpectation{
				Step:    n,
				Doc:     e.Doc,
				Pattern: e.Pattern,
			}
		}
	}

	return nil
}

func (s *Session) pause(why string, d time.Duration) {
	if 0 < d {
		s.Logf("pause %s %s", why, d)
		time.Sleep(d)
	}
}

// Logf logs if s.Verbose.
func (s *Session) Logf(format string, args ...interface{}) {
	if !s.Verbose {
		return
	}
	log.Printf(format, args...)
}

// Compile compiles every guard in the Session, so that bad code
// surfaces before any Step runs.  Run doesn't require this call.
func (s *Session) Compile() error {
	compile := func(src string, guard **Guard) error {
		if src == "" || *guard != nil {
			return nil
		}
		g, err := CompileGuard(src)
		if err != nil {
			return err
		}
		*guard = g
		return nil
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		for j := range step.Ops {
			op := &step.Ops[j]
			for _, c := range []*ChainOp{op.Then, op.Catch, op.Finally} {
				if c == nil {
					continue
				}
				if err := compile(c.GuardSource, &c.guard); err != nil {
					return fmt.Errorf("step %d op %d: %v", i, j, err)
				}
			}
		}
		for j := range step.Expect {
			e := &step.Expect[j]
			if err := compile(e.GuardSource, &e.guard); err != nil {
				return fmt.Errorf("step %d expectation %d: %v", i, j, err)
			}
		}
	}

	return nil
}

// ReadSession reads a YAML Session from the named file, with support
// for '%inline("FILENAME")'.
func ReadSession(filename string) (*Session, error) {
	bs, err := ReadFileWithInlines(filename)
	if err != nil {
		return nil, err
	}
	var s Session
	if err = yaml.Unmarshal(bs, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
