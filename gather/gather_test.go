package gather

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
)

func TestAll(t *testing.T) {
	t.Run("fulfilled", func(t *testing.T) {
		q := run.NewQueue()
		fs := []*core.Future{
			core.Resolve(q, 1),
			core.Resolve(q, 2),
			core.Resolve(q, 3),
		}
		f := All(q, fs)
		q.Drain()
		if f.Status() != core.Fulfilled {
			t.Fatal(f)
		}
		if got := fmt.Sprintf("%v", f.Value()); got != "[1 2 3]" {
			t.Fatal(got)
		}
	})

	t.Run("first rejection wins", func(t *testing.T) {
		q := run.NewQueue()
		q.Unhandled = func(*core.Future, error) {}
		f1, r1 := core.New(q)
		f2, r2 := core.New(q)
		f3, r3 := core.New(q)
		f := All(q, []*core.Future{f1, f2, f3})
		r1.Fulfill(1)
		r2.Reject(errors.New("E"))
		q.Drain()
		if f.Status() != core.Rejected || f.Err().Error() != "E" {
			t.Fatal(f)
		}
		r3.Fulfill(3)
		q.Drain()
		if f.Status() != core.Rejected || f.Err().Error() != "E" {
			t.Fatal(f)
		}
	})

	t.Run("empty", func(t *testing.T) {
		q := run.NewQueue()
		f := All(q, nil)
		if f.Status() != core.Fulfilled {
			t.Fatal(f)
		}
		vs, is := f.Value().([]interface{})
		if !is || len(vs) != 0 {
			t.Fatal(f.Value())
		}
	})
}

func TestRace(t *testing.T) {
	t.Run("first settlement wins", func(t *testing.T) {
		q := run.NewQueue()
		slow, rslow := core.New(q)
		fast, rfast := core.New(q)
		f := Race(q, []*core.Future{slow, fast})
		rfast.Fulfill("fast")
		q.Drain()
		if f.Status() != core.Fulfilled || f.Value() != "fast" {
			t.Fatal(f)
		}
		rslow.Fulfill("slow")
		q.Drain()
		if f.Value() != "fast" {
			t.Fatal(f)
		}
	})

	t.Run("rejection can win", func(t *testing.T) {
		q := run.NewQueue()
		q.Unhandled = func(*core.Future, error) {}
		a, ra := core.New(q)
		b, rb := core.New(q)
		f := Race(q, []*core.Future{a, b})
		ra.Reject(errors.New("boom"))
		rb.Fulfill("late")
		q.Drain()
		if f.Status() != core.Rejected || f.Err().Error() != "boom" {
			t.Fatal(f)
		}
	})

	t.Run("tie goes to the lowest index", func(t *testing.T) {
		q := run.NewQueue()
		fs := []*core.Future{
			core.Resolve(q, "first"),
			core.Resolve(q, "second"),
		}
		f := Race(q, fs)
		q.Drain()
		if f.Value() != "first" {
			t.Fatal(f.Value())
		}
	})

	t.Run("empty never settles", func(t *testing.T) {
		q := run.NewQueue()
		f := Race(q, nil)
		q.Drain()
		q.Drain()
		if f.Status() != core.Pending {
			t.Fatal(f)
		}
	})
}

func TestAny(t *testing.T) {
	t.Run("all rejected", func(t *testing.T) {
		q := run.NewQueue()
		q.Unhandled = func(*core.Future, error) {}
		x := errors.New("x")
		y := errors.New("y")
		fs := []*core.Future{
			core.Reject(q, x),
			core.Reject(q, y),
		}
		f := Any(q, fs)
		q.Drain()
		if f.Status() != core.Rejected {
			t.Fatal(f)
		}
		var agg *AllRejected
		if !errors.As(f.Err(), &agg) {
			t.Fatal(f.Err())
		}
		if len(agg.Reasons) != 2 || agg.Reasons[0] != x || agg.Reasons[1] != y {
			t.Fatal(agg.Reasons)
		}
		if !errors.Is(f.Err(), y) {
			t.Fatal(f.Err())
		}
	})

	t.Run("one fulfills", func(t *testing.T) {
		q := run.NewQueue()
		fs := []*core.Future{
			core.Reject(q, errors.New("x")),
			core.Resolve(q, 5),
		}
		f := Any(q, fs)
		q.Drain()
		if f.Status() != core.Fulfilled || f.Value() != 5 {
			t.Fatal(f)
		}
	})

	t.Run("empty", func(t *testing.T) {
		q := run.NewQueue()
		q.Unhandled = func(*core.Future, error) {}
		f := Any(q, nil)
		if f.Status() != core.Rejected {
			t.Fatal(f)
		}
		var agg *AllRejected
		if !errors.As(f.Err(), &agg) {
			t.Fatal(f.Err())
		}
		if len(agg.Reasons) != 0 {
			t.Fatal(agg.Reasons)
		}
		if agg.Error() != "no futures fulfilled" {
			t.Fatal(agg.Error())
		}
	})
}

func TestAllSettled(t *testing.T) {
	t.Run("mixed", func(t *testing.T) {
		q := run.NewQueue()
		fs := []*core.Future{
			core.Resolve(q, 1),
			core.Reject(q, errors.New("e")),
		}
		f := AllSettled(q, fs)
		q.Drain()
		if f.Status() != core.Fulfilled {
			t.Fatal(f)
		}
		os, is := f.Value().([]Outcome)
		if !is || len(os) != 2 {
			t.Fatal(f.Value())
		}
		if os[0].Status != core.Fulfilled || os[0].Value != 1 {
			t.Fatal(os[0])
		}
		if os[1].Status != core.Rejected || os[1].Reason.Error() != "e" {
			t.Fatal(os[1])
		}

		js, err := json.Marshal(os)
		if err != nil {
			t.Fatal(err)
		}
		want := `[{"status":"fulfilled","value":1},{"reason":"e","status":"rejected"}]`
		if string(js) != want {
			t.Fatal(string(js))
		}
	})

	t.Run("settles late", func(t *testing.T) {
		q := run.NewQueue()
		a, ra := core.New(q)
		b, rb := core.New(q)
		f := AllSettled(q, []*core.Future{a, b})
		ra.Fulfill("done")
		q.Drain()
		if f.Status() != core.Pending {
			t.Fatal(f)
		}
		rb.Reject(errors.New("slow failure"))
		q.Drain()
		if f.Status() != core.Fulfilled {
			t.Fatal(f)
		}
	})

	t.Run("empty", func(t *testing.T) {
		q := run.NewQueue()
		f := AllSettled(q, nil)
		if f.Status() != core.Fulfilled {
			t.Fatal(f)
		}
		os, is := f.Value().([]Outcome)
		if !is || len(os) != 0 {
			t.Fatal(f.Value())
		}
	})
}
