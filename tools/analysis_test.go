package tools

import (
	"strings"
	"testing"
)

func TestAnalysis(t *testing.T) {
	s, err := DemoSession()
	if err != nil {
		t.Fatal(err)
	}

	a, err := AnalyzeSession(s)
	if err != nil {
		t.Fatal(err)
	}

	if 0 < len(a.Errors) {
		t.Fatalf("unexpected errors: %v", a.Errors)
	}
	if a.FutureCount != 10 {
		t.Fatalf("counted %d futures", a.FutureCount)
	}
	if len(a.Timers) != 1 || a.Timers[0] != "bell" {
		t.Fatalf("timers: %v", a.Timers)
	}
	if len(a.Unsettled) != 1 || a.Unsettled[0] != "queso" {
		t.Fatalf("unsettled: %v", a.Unsettled)
	}
}

func TestAnalysisTrouble(t *testing.T) {
	s := &Session{
		Steps: []Step{
			{
				Ops: []Op{
					{Make: "f0"},
					{Make: "f0"},
					{Then: &ChainOp{On: "ghost", As: "d", GuardSource: `return (`}},
				},
			},
		},
	}

	a, err := AnalyzeSession(s)
	if err != nil {
		t.Fatal(err)
	}

	if len(a.DuplicateIds) != 1 || a.DuplicateIds[0] != "f0" {
		t.Fatalf("duplicates: %v", a.DuplicateIds)
	}
	if len(a.UnknownIds) != 1 || a.UnknownIds[0] != "ghost" {
		t.Fatalf("unknowns: %v", a.UnknownIds)
	}

	var sawGuard bool
	for _, e := range a.Errors {
		if strings.Contains(e, "step 0 op 2") {
			sawGuard = true
		}
	}
	if !sawGuard {
		t.Fatalf("no guard complaint in %v", a.Errors)
	}
}
