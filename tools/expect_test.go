package tools

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"
)

func TestDemoSession(t *testing.T) {
	s, err := DemoSession()
	if err != nil {
		t.Fatal(err)
	}
	s.Verbose = testing.Verbose()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if len(s.History) != len(s.Steps) {
		t.Fatalf("history has %d steps", len(s.History))
	}
}

func TestSessionFile(t *testing.T) {
	s, err := ReadSession("../sessions/demo.test.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Compile(); err != nil {
		t.Fatal(err)
	}
	s.Verbose = testing.Verbose()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestSessionBroken(t *testing.T) {
	ctx := context.Background()

	t.Run("unsatisfied", func(t *testing.T) {
		s := &Session{
			Steps: []Step{
				{
					Ops: []Op{
						{Make: "f0"},
						{Fulfill: &FulfillOp{Id: "f0", Value: "tacos"}},
					},
					Expect: []Expectation{
						{
							Pattern: map[string]interface{}{
								"event": "settled",
								"id":    "f0",
								"value": "queso",
							},
						},
					},
				},
			},
		}

		err := s.Run(ctx)
		if err == nil {
			t.Fatal("expected a broken expectation")
		}
		broke, is := err.(*BrokenExpectation)
		if !is {
			t.Fatalf("got %T: %v", err, err)
		}
		if broke.Step != 0 {
			t.Fatalf("wrong step: %d", broke.Step)
		}
	})

	t.Run("absent violated", func(t *testing.T) {
		s := &Session{
			Steps: []Step{
				{
					Ops: []Op{
						{Make: "f0"},
						{Reject: &RejectOp{Id: "f0", Reason: "boom"}},
					},
					Expect: []Expectation{
						{
							Pattern: map[string]interface{}{"event": "unhandled"},
							Absent:  true,
						},
					},
				},
			},
		}

		if err := s.Run(ctx); err == nil {
			t.Fatal("expected a broken expectation")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		s := &Session{
			Steps: []Step{
				{
					Ops: []Op{
						{Fulfill: &FulfillOp{Id: "nope", Value: 1}},
					},
				},
			},
		}

		if err := s.Run(ctx); err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestSessionUnhandled(t *testing.T) {
	s := &Session{
		Steps: []Step{
			{
				Doc: "An unobserved rejection gets reported.",
				Ops: []Op{
					{Make: "f0"},
					{Reject: &RejectOp{Id: "f0", Reason: "queso spill"}},
				},
				Expect: []Expectation{
					{
						Pattern: map[string]interface{}{
							"event":  "unhandled",
							"id":     "f0",
							"reason": "queso spill",
						},
					},
				},
			},
			{
				Doc: "A late catch retracts the report.",
				Ops: []Op{
					{Make: "f1"},
					{Reject: &RejectOp{Id: "f1", Reason: "boom"}},
					{Catch: &ChainOp{On: "f1", As: "f2"}},
				},
				Expect: []Expectation{
					{
						Pattern: map[string]interface{}{
							"event": "unhandled",
							"id":    "f1",
						},
						Absent: true,
					},
					{
						Doc: "A guardless catch recovers with null.",
						Pattern: map[string]interface{}{
							"event":  "settled",
							"id":     "f2",
							"status": "fulfilled",
						},
					},
				},
			},
		},
	}
	s.Verbose = testing.Verbose()

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSessionAdopt(t *testing.T) {
	s := &Session{
		Steps: []Step{
			{
				Ops: []Op{
					{Make: "inner"},
					{Make: "outer"},
					{Fulfill: &FulfillOp{Id: "outer", Adopt: "inner"}},
					{Fulfill: &FulfillOp{Id: "inner", Value: "tacos"}},
				},
				Expect: []Expectation{
					{
						Pattern: map[string]interface{}{
							"event": "settled",
							"id":    "outer",
							"value": "tacos",
						},
					},
				},
			},
		},
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSessionTimers(t *testing.T) {
	s := &Session{
		Steps: []Step{
			{
				Ops: []Op{
					{Timer: &TimerOp{Id: "soon", Value: "ding", In: "20ms"}},
					{Timer: &TimerOp{Id: "never", Value: "dong", In: "10s"}},
					{Cancel: "never"},
				},
			},
			{
				WaitBefore: 200 * time.Millisecond,
				Expect: []Expectation{
					{
						Pattern: map[string]interface{}{
							"event": "settled",
							"id":    "soon",
							"value": "ding",
						},
					},
					{
						Pattern: map[string]interface{}{"id": "never"},
						Absent:  true,
					},
				},
			},
		},
	}
	s.Verbose = testing.Verbose()

	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestReadSession(t *testing.T) {
	var (
		guardname = "double.js"
		filename  = "smoke.test.yaml"

		guard = `return _.value * 2;`

		session = `
name: smoke
doc: |
  A tiny scenario, mostly to exercise the YAML reader.
steps:
- ops:
  - make: f0
  - then:
      on: f0
      as: f1
      guard: ` + "%" + `inline("double.js")
  - fulfill:
      id: f0
      value: 21
  expect:
  - pattern:
      event: settled
      id: f1
      status: fulfilled
      value: 42
`
	)

	if err := ioutil.WriteFile(guardname, []byte(guard), 0644); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(guardname)

	if err := ioutil.WriteFile(filename, []byte(session), 0644); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(filename)

	s, err := ReadSession(filename)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "smoke" {
		t.Fatalf("read %#v", s.Name)
	}

	if err = s.Compile(); err != nil {
		t.Fatal(err)
	}

	if err = s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}
