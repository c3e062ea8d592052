package run

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Comcast/laters/core"
)

func TestDrainFIFO(t *testing.T) {
	q := NewQueue()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		q.Schedule(func() {
			got = append(got, i)
		})
	}
	if n := q.Pending(); n != 3 {
		t.Fatal(n)
	}
	if n := q.Drain(); n != 3 {
		t.Fatal(n)
	}
	if fmt.Sprintf("%v", got) != "[0 1 2]" {
		t.Fatal(got)
	}
	if n := q.Pending(); n != 0 {
		t.Fatal(n)
	}
}

func TestDrainRunsMidPassJobs(t *testing.T) {
	q := NewQueue()
	var got []string
	q.Schedule(func() {
		got = append(got, "outer")
		q.Schedule(func() {
			got = append(got, "inner")
		})
	})
	if n := q.Drain(); n != 2 {
		t.Fatal(n)
	}
	if fmt.Sprintf("%v", got) != "[outer inner]" {
		t.Fatal(got)
	}
}

func TestDrainPanic(t *testing.T) {
	q := NewQueue()
	var reported []error
	q.Unhandled = func(f *core.Future, err error) {
		if f != nil {
			t.Fatal(f)
		}
		reported = append(reported, err)
	}
	ran := false
	q.Schedule(func() {
		panic("tacos")
	})
	q.Schedule(func() {
		ran = true
	})
	if n := q.Drain(); n != 2 {
		t.Fatal(n)
	}
	if !ran {
		t.Fatal("second job didn't run")
	}
	if len(reported) != 1 {
		t.Fatal(reported)
	}
	if reported[0].Error() != "job panic: tacos" {
		t.Fatal(reported[0])
	}
}

func TestUnhandledReporting(t *testing.T) {
	q := NewQueue()
	var reported []*core.Future
	q.Unhandled = func(f *core.Future, err error) {
		reported = append(reported, f)
	}

	boom := errors.New("boom")

	t.Run("reported", func(t *testing.T) {
		reported = nil
		f, r := core.New(q)
		r.Reject(boom)
		q.Drain()
		if len(reported) != 1 || reported[0] != f {
			t.Fatal(reported)
		}
		if reported[0].Err() != boom {
			t.Fatal(reported[0].Err())
		}
	})

	t.Run("late handler retracts", func(t *testing.T) {
		reported = nil
		_, r := core.New(q)
		f := r.Future()
		r.Reject(boom)
		f.Catch(func(err error) (interface{}, error) {
			return nil, nil
		})
		q.Drain()
		if len(reported) != 0 {
			t.Fatal(reported)
		}
	})

	t.Run("handler before rejection", func(t *testing.T) {
		reported = nil
		f, r := core.New(q)
		f.Catch(func(err error) (interface{}, error) {
			return nil, nil
		})
		r.Reject(boom)
		q.Drain()
		if len(reported) != 0 {
			t.Fatal(reported)
		}
	})

	t.Run("finally doesn't retract", func(t *testing.T) {
		reported = nil
		f, r := core.New(q)
		f.Finally(func() error {
			return nil
		})
		r.Reject(boom)
		q.Drain()
		// The Finally derivative inherits the rejection, so we
		// hear about it twice: the original and the
		// derivative.
		if len(reported) != 2 || reported[0] != f {
			t.Fatal(reported)
		}
	})
}

func TestUnhandledReportedOnce(t *testing.T) {
	q := NewQueue()
	count := 0
	q.Unhandled = func(f *core.Future, err error) {
		count++
	}
	_, r := core.New(q)
	r.Reject(errors.New("boom"))
	q.Drain()
	q.Drain()
	if count != 1 {
		t.Fatal(count)
	}
}

func TestDerivedUnhandled(t *testing.T) {
	q := NewQueue()
	var reported []*core.Future
	q.Unhandled = func(f *core.Future, err error) {
		reported = append(reported, f)
	}
	f, r := core.New(q)
	d := f.Then(func(v interface{}) (interface{}, error) {
		return v, nil
	}, nil)
	r.Reject(errors.New("boom"))
	q.Drain()
	// The rejection passed through f's fulfillment-only handler to
	// d, and nobody caught it there either.
	if len(reported) != 2 {
		t.Fatal(reported)
	}
	if reported[0] != f || reported[1] != d {
		t.Fatal(reported)
	}
}

func TestLoop(t *testing.T) {
	q := NewQueue()
	l := NewLoop(q)
	l.Verbose = testing.Verbose()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		errs <- l.Run(ctx)
	}()

	ran := make(chan struct{})
	q.Schedule(func() {
		close(ran)
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("loop didn't run the job")
	}

	cancel()
	select {
	case err := <-errs:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop didn't stop")
	}
}

func TestZeroValueQueue(t *testing.T) {
	var q Queue
	ran := false
	q.Schedule(func() {
		ran = true
	})
	if n := q.Drain(); n != 1 {
		t.Fatal(n)
	}
	if !ran {
		t.Fatal("job didn't run")
	}
}
