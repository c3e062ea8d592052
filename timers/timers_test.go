package timers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/laters/core"
	"github.com/Comcast/laters/run"
	. "github.com/Comcast/laters/util/testutil"
)

func startLoop(ctx context.Context) *run.Queue {
	q := run.NewQueue()
	l := run.NewLoop(q)
	go l.Run(ctx)
	return q
}

func TestAfter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := startLoop(ctx)

	ts := NewTimers()
	f, err := ts.After(ctx, q, "t0", "ding", 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan interface{}, 1)
	f.Then(func(v interface{}) (interface{}, error) {
		got <- v
		return nil, nil
	}, nil)

	select {
	case v := <-got:
		if v != "ding" {
			t.Fatal(v)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestFail(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := startLoop(ctx)

	ts := NewTimers()
	boom := errors.New("boom")
	f, err := ts.Fail(ctx, q, "t0", boom, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan error, 1)
	f.Catch(func(err error) (interface{}, error) {
		got <- err
		return nil, nil
	})

	select {
	case err := <-got:
		if err != boom {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestAfterCron(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := startLoop(ctx)

	ts := NewTimers()

	if _, err := ts.AfterCron(ctx, q, "bad", nil, "not a cron"); err == nil {
		t.Fatal("expected a parse error")
	}

	// Seven fields: fires every second.
	f, err := ts.AfterCron(ctx, q, "tick", "tock", "* * * * * * *")
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan interface{}, 1)
	f.Then(func(v interface{}) (interface{}, error) {
		got <- v
		return nil, nil
	}, nil)

	select {
	case v := <-got:
		if v != "tock" {
			t.Fatal(v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cron timer never fired")
	}
}

func TestRem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := run.NewQueue()

	ts := NewTimers()
	f, err := ts.After(ctx, q, "t0", "never", 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "t0"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "t0"); err != NotFound {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)
	q.Drain()
	if f.Status() != core.Pending {
		t.Fatal(f)
	}
}

func TestExists(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := run.NewQueue()

	ts := NewTimers()
	if _, err := ts.After(ctx, q, "dup", 1, time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := ts.After(ctx, q, "dup", 2, time.Minute); err != Exists {
		t.Fatal(err)
	}

	js := JS(ts)
	if !strings.Contains(js, `"id":"dup"`) {
		t.Fatal(js)
	}
}

func TestShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := run.NewQueue()

	ts := NewTimers()
	f, err := ts.After(ctx, q, "t0", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.Shutdown(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		ts.Lock()
		n := len(ts.timers)
		ts.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal(n)
		}
		time.Sleep(10 * time.Millisecond)
	}

	q.Drain()
	if f.Status() != core.Pending {
		t.Fatal(f)
	}
}
