package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"gopkg.in/yaml.v2"
)

type dotNode struct {
	shape  string
	fill   string
	style  string
	detail string
}

type dotEdge struct {
	from  string
	to    string
	label string
}

// Dot makes a Graphviz dot file showing how the Session's Futures
// derive from each other.  A really ugly dot file.
//
// The graph is static: it comes from the Ops, not from a Run.  The
// optional highlight names a Future to color red.  Maybe.
func Dot(s *Session, w io.WriteCloser, highlight string) error {

	nodes := make(map[string]*dotNode, 32)
	order := make([]string, 0, 32)
	edges := make([]dotEdge, 0, 32)

	ensure := func(name string) *dotNode {
		n, have := nodes[name]
		if !have {
			n = &dotNode{
				shape: "record",
				fill:  "#99ddc8",
				style: "rounded,filled",
			}
			nodes[name] = n
			order = append(order, name)
		}
		return n
	}

	srcLabel := func(src string) string {
		src = strings.Replace(src, "<", `&lt;`, -1)
		src = strings.Replace(src, ">", `&gt;`, -1)
		return `<FONT POINT-SIZE="6">` +
			`<BR/>` + strings.Replace(src+"\n", "\n", `<BR ALIGN="LEFT"/>`, -1) + `<BR/>` +
			`</FONT>`
	}

	chain := func(op *ChainOp, kind string) {
		ensure(op.On)
		d := ensure(op.As)
		d.fill = "#52aa5e"
		label := kind
		if op.GuardSource != "" {
			label += srcLabel(op.GuardSource)
		}
		edges = append(edges, dotEdge{op.On, op.As, label})
	}

	combine := func(op *GatherOp, kind string) {
		d := ensure(op.As)
		d.fill = "#2d93ad"
		for i, of := range op.Of {
			ensure(of)
			label := fmt.Sprintf("%d/%d %s", i+1, len(op.Of), kind)
			edges = append(edges, dotEdge{of, op.As, label})
		}
	}

	for _, step := range s.Steps {
		for i := range step.Ops {
			op := &step.Ops[i]
			switch {
			case op.Make != "":
				ensure(op.Make)
			case op.Fulfill != nil:
				n := ensure(op.Fulfill.Id)
				n.style = "rounded,filled,bold"
				if op.Fulfill.Adopt != "" {
					ensure(op.Fulfill.Adopt)
					edges = append(edges, dotEdge{op.Fulfill.Adopt, op.Fulfill.Id, "adopt"})
				}
			case op.Reject != nil:
				n := ensure(op.Reject.Id)
				n.style = "rounded,filled,bold"
				n.detail = srcLabel("rejects: " + op.Reject.Reason)
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
				n := ensure(op.Timer.Id)
				n.shape = "note"
				n.style = "filled"
				if bs, err := yaml.Marshal(op.Timer); err == nil {
					n.detail = srcLabel(string(bs))
				}
			case op.Cancel != "":
				n := ensure(op.Cancel)
				n.style += ",dashed"
			}
		}
	}

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	for _, name := range order {
		n := nodes[name]
		label := name + n.detail
		color := "black"
		fill := n.fill
		if highlight == name {
			color = "red"
			fill = "#f98b8b"
		}
		fmt.Fprintf(w, "  \"%s\" [shape=\"%s\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			escape(name), n.shape, n.style, color, fill, label)
	}

	for _, e := range edges {
		color := "black"
		if highlight == e.to {
			color = "red"
		}
		label := strings.Replace(e.label, "\n", "", -1)
		fmt.Fprintf(w, "  \"%s\" -> \"%s\" [ color=\"%s\" label = <%s> ]\n",
			escape(e.from), escape(e.to), color, label)
	}

	fmt.Fprintf(w, "}\n")
	return w.Close()
}

// PNG generates a PNG image based on output from Dot.
//
// This function will write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(s *Session, basename string, highlight string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	// ToDo: Use mktemp
	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(s, dotfile, highlight); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}

func escape(s string) string {
	return strings.Replace(s, `"`, `\"`, -1)
}
