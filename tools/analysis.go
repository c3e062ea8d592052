/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package tools

import (
	"fmt"
	"sort"
)

// SessionAnalysis reports structural observations about a Session:
// ids that are used but never introduced, Futures that can never
// settle, guards that don't compile, and the like.
//
// An analysis is static.  Nothing here runs the Session.
type SessionAnalysis struct {
	session *Session

	// Errors are problems that would (probably) break a Run.
	Errors []string

	StepCount    int
	OpCount      int
	FutureCount  int
	GuardCount   int
	Expectations int

	// Timers lists the ids introduced by timer ops.
	Timers []string

	// Unsettled lists ids introduced by make ops that no op ever
	// fulfills or rejects.  Those Futures stay Pending forever,
	// along with everything derived from them.
	Unsettled []string

	// Leaves lists ids that no chain, combinator, or adoption
	// consumes.
	Leaves []string

	// UnknownIds lists ids that are referenced but never
	// introduced.
	UnknownIds []string

	// DuplicateIds lists ids that are introduced more than once.
	DuplicateIds []string
}

// AnalyzeSession studies the Session's Steps.
func AnalyzeSession(s *Session) (*SessionAnalysis, error) {

	a := SessionAnalysis{
		session:   s,
		StepCount: len(s.Steps),
		Errors:    make([]string, 0, 8),
	}

	introduced := make(map[string]bool)
	duplicate := make(map[string]bool)
	consumed := make(map[string]bool)
	settled := make(map[string]bool)
	unknown := make(map[string]bool)
	timerIds := make(map[string]bool)

	introduce := func(id string) {
		if id == "" {
			return
		}
		if introduced[id] {
			duplicate[id] = true
			return
		}
		introduced[id] = true
		// A derived or timer Future settles on its own.
		settled[id] = true
	}

	refer := func(id string) {
		if id == "" {
			return
		}
		if !introduced[id] {
			unknown[id] = true
		}
	}

	guard := func(where, src string) {
		if src == "" {
			return
		}
		a.GuardCount++
		if _, err := CompileGuard(src); err != nil {
			a.Errors = append(a.Errors, fmt.Sprintf("%s: %v", where, err))
		}
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		for j := range step.Ops {
			op := &step.Ops[j]
			a.OpCount++
			where := fmt.Sprintf("step %d op %d", i, j)
			switch {
			case op.Make != "":
				introduce(op.Make)
				// Only a fulfill or reject op can settle
				// this one.
				settled[op.Make] = false
			case op.Fulfill != nil:
				refer(op.Fulfill.Id)
				settled[op.Fulfill.Id] = true
				if op.Fulfill.Adopt != "" {
					refer(op.Fulfill.Adopt)
					consumed[op.Fulfill.Adopt] = true
				}
			case op.Reject != nil:
				refer(op.Reject.Id)
				settled[op.Reject.Id] = true
			case op.Then != nil:
				refer(op.Then.On)
				consumed[op.Then.On] = true
				introduce(op.Then.As)
				guard(where, op.Then.GuardSource)
			case op.Catch != nil:
				refer(op.Catch.On)
				consumed[op.Catch.On] = true
				introduce(op.Catch.As)
				guard(where, op.Catch.GuardSource)
			case op.Finally != nil:
				refer(op.Finally.On)
				consumed[op.Finally.On] = true
				introduce(op.Finally.As)
				guard(where, op.Finally.GuardSource)
			case op.All != nil, op.Race != nil, op.Any != nil, op.AllSettled != nil:
				g := op.All
				for _, alt := range []*GatherOp{op.Race, op.Any, op.AllSettled} {
					if alt != nil {
						g = alt
					}
				}
				for _, of := range g.Of {
					refer(of)
					consumed[of] = true
				}
				introduce(g.As)
			case op.Timer != nil:
				introduce(op.Timer.Id)
				timerIds[op.Timer.Id] = true
			case op.Cancel != "":
				refer(op.Cancel)
				if introduced[op.Cancel] && !timerIds[op.Cancel] {
					a.Errors = append(a.Errors, where+": cancel of a non-timer id '"+op.Cancel+"'")
				}
			case op.Drain:
			default:
				a.Errors = append(a.Errors, where+": op does nothing")
			}
		}
		for j := range step.Expect {
			e := &step.Expect[j]
			a.Expectations++
			guard(fmt.Sprintf("step %d expectation %d", i, j), e.GuardSource)
		}
	}

	a.FutureCount = len(introduced)

	unsettled := make(map[string]bool)
	leaves := make(map[string]bool)
	for id := range introduced {
		if !settled[id] {
			unsettled[id] = true
		}
		if !consumed[id] {
			leaves[id] = true
		}
	}

	a.Timers = keysToStringSlice(timerIds)
	a.Unsettled = keysToStringSlice(unsettled)
	a.Leaves = keysToStringSlice(leaves)
	a.UnknownIds = keysToStringSlice(unknown)
	a.DuplicateIds = keysToStringSlice(duplicate)

	for _, id := range a.UnknownIds {
		a.Errors = append(a.Errors, "unknown id '"+id+"'")
	}
	for _, id := range a.DuplicateIds {
		a.Errors = append(a.Errors, "duplicate id '"+id+"'")
	}

	return &a, nil
}

// keysToStringSlice converts the keys of the map into a sorted slice,
// optionally substituting a default when the map is empty.
func keysToStringSlice(m map[string]bool, defaultValue ...string) []string {
	var list []string
	for key := range m {
		list = append(list, key)
	}
	sort.Strings(list)

	if len(list) == 0 && 0 < len(defaultValue) {
		return []string{defaultValue[0]}
	}

	return list
}
