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
	"io"
	"log"
	"strings"
)

type MermaidOpts struct {
	// ShowGuards will result in an edge label that's the guard
	// source (if any).
	ShowGuards bool `json:"showGuards"`

	// TimerFill is the fill color for timer nodes.  Does not
	// apply if TimerClass is set.
	TimerFill string `json:"timerFill,omitempty"`

	// TimerClass will be the CSS class for timer nodes.  Not yet
	// implemented.
	TimerClass string `json:"timerClass,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the Session's derivation graph.
func Mermaid(s *Session, w io.WriteCloser, opts *MermaidOpts) error {

	if opts == nil {
		opts = &MermaidOpts{
			ShowGuards: true,
			TimerFill:  "#bcf2db",
		}
	}

	log.Printf("processing %d steps", len(s.Steps))

	fmt.Fprintf(w, "graph TB\n")

	nids := make(map[string]string)
	num := 0

	node := func(name string, timer bool) string {
		if nid, already := nids[name]; already {
			return nid
		}
		num++
		nid := fmt.Sprintf("n%d", num)
		nids[name] = nid

		if timer {
			fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, name)
			if opts.TimerClass == "" && opts.TimerFill != "" {
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.TimerFill)
			}
		} else {
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, name)
		}

		return nid
	}

	edge := func(from, to, kind, guard string) {
		label := fmt.Sprintf(`-- "%s"`, kind)
		if opts.ShowGuards && guard != "" {
			src := strings.Replace(guard, `"`, `'`, -1)
			label = fmt.Sprintf(`-- "<pre>%s</pre>"`, src)
		}
		fmt.Fprintf(w, "  %s %s --> %s\n", from, label, to)
	}

	chain := func(op *ChainOp, kind string) {
		from := node(op.On, false)
		to := node(op.As, false)
		edge(from, to, kind, op.GuardSource)
	}

	combine := func(op *GatherOp, kind string) {
		to := node(op.As, false)
		for i, of := range op.Of {
			from := node(of, false)
			edge(from, to, fmt.Sprintf("%d/%d %s", i+1, len(op.Of), kind), "")
		}
	}

	for _, step := range s.Steps {
		for i := range step.Ops {
			op := &step.Ops[i]
			switch {
			case op.Make != "":
				node(op.Make, false)
			case op.Fulfill != nil:
				to := node(op.Fulfill.Id, false)
				if op.Fulfill.Adopt != "" {
					from := node(op.Fulfill.Adopt, false)
					edge(from, to, "adopt", "")
				}
			case op.Reject != nil:
				node(op.Reject.Id, false)
			case op.Then != nil:
				chain(op.Then, "then")
			case op.Catch != nil:
				chain(op.Catch, "catch")
			case op.Finally != nil:
				chain(op.Finally, "finally")
			case op.All != nil:
				combine(op.All, "all")
			case op.Race != nil:
				combine(op.Race, "race")
			case op.Any != nil:
				combine(op.Any, "any")
			case op.AllSettled != nil:
				combine(op.AllSettled, "allSettled")
			case op.Timer != nil:
				node(op.Timer.Id, true)
			}
		}
	}

	fmt.Fprintf(w, "\n")
	log.Printf("mermaid gen done")

	return w.Close()
}
