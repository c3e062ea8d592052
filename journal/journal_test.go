package journal

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
)

func TestBasics(t *testing.T) {
	filename := "journal.db"

	j, err := NewJournal(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return
		}
		if err := os.Remove(filename); err != nil {
			t.Fatal(err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := j.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := j.Close(ctx); err != nil {
			t.Fatal(err)
		}
	}()

	q := run.NewQueue()
	q.Unhandled = j.LogUnhandled

	f, rf := core.New(q)
	j.Watch("f0", f)
	rf.Fulfill("tacos")

	g, rg := core.New(q)
	j.Watch("f1", g)
	rg.Reject(errors.New("queso spill"))

	q.Schedule(func() {
		panic("no")
	})

	q.Drain()

	es, err := j.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(es) != 4 {
		t.Fatal(len(es))
	}

	if es[0].Id != "f0" || es[0].Status != core.Fulfilled || es[0].Value != "tacos" {
		t.Fatalf("%#v", es[0])
	}
	if es[1].Id != "f1" || es[1].Status != core.Rejected || es[1].Reason != "queso spill" || es[1].Unhandled {
		t.Fatalf("%#v", es[1])
	}
	if !es[2].Unhandled || es[2].Reason != "job panic: no" {
		t.Fatalf("%#v", es[2])
	}
	if !es[3].Unhandled || es[3].Reason != "queso spill" {
		t.Fatalf("%#v", es[3])
	}
	for _, e := range es {
		if e.At == "" {
			t.Fatalf("%#v", e)
		}
	}
}

func TestNilJournal(t *testing.T) {
	var j *Journal

	ctx := context.Background()

	if err := j.Record(ctx, &Entry{Id: "ignored"}); err != nil {
		t.Fatal(err)
	}
	es, err := j.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if es != nil {
		t.Fatal(es)
	}
	if err := j.Close(ctx); err != nil {
		t.Fatal(err)
	}

	q := run.NewQueue()
	f, r := core.New(q)
	j.Watch("f0", f)
	j.LogUnhandled(f, errors.New("ignored"))
	r.Fulfill(1)
	q.Drain()
}

// BenchmarkJournal is just for fun.  Bolt is slow.
func BenchmarkJournal(b *testing.B) {
	filename := "journal.db"

	j, err := NewJournal(filename)
	if err != nil {
		b.Fatal(err)
	}
	defer func() {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			return
		}
		if err := os.Remove(filename); err != nil {
			b.Fatal(err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := j.Open(ctx); err != nil {
		b.Fatal(err)
	}
	defer func() {
		if err := j.Close(ctx); err != nil {
			b.Fatal(err)
		}
	}()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		e := &Entry{
			Id:     "bench",
			Status: core.Fulfilled,
			Value:  "tacos",
		}
		if err := j.Record(ctx, e); err != nil {
			b.Fatal(err)
		}
	}
}
