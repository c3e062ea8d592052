package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Comcast/laters/tools"
	. "github.com/Comcast/laters/util/testutil"

	"github.com/jsccast/yaml"
)

var Mods = map[string]Mod{
	"addAbsent": &AddAbsentMod{},
	"addChain":  &AddChainMod{},
	"analyze":   &Analyzer{},
	"graph":     &Grapher{},
	"mermaid":   &Mermaider{},
	"page":      &Pager{},
}

var NoValues = errors.New("need at least one value (-m)")

type Mod interface {
	F(*tools.Session) error
	Doc() string
	Flags() *flag.FlagSet
}

// AddAbsent appends an Absent Expectation with the given pattern to
// every Step.  The usual pattern forbids unhandled rejections
// anywhere in the session.
//
// The Session's Doc is updated to note that this processing has
// occurred.
func AddAbsent(s *tools.Session, pattern interface{}, doc string) error {
	for i := range s.Steps {
		s.Steps[i].Expect = append(s.Steps[i].Expect, tools.Expectation{
			Doc:     doc,
			Pattern: pattern,
			Absent:  true,
		})
	}

	s.Doc = s.Doc + fmt.Sprintf(`

This session was processed by addAbsent with pattern %s.
`, JS(pattern))

	return nil
}

type AddAbsentMod struct {
	PatternJS    string
	ParsePattern bool
	DocString    string
}

func (c *AddAbsentMod) Doc() string {
	return `
Appends an absent expectation with the specified pattern to every step.
`
}

func (c *AddAbsentMod) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("addAbsent", flag.PanicOnError)

	flags.StringVar(&c.PatternJS, "p", `{"event":"unhandled"}`, "pattern")
	flags.BoolVar(&c.ParsePattern, "P", true, "parse the pattern as JSON")
	flags.StringVar(&c.DocString, "d", "Nothing goes unhandled.", "doc for the expectation")

	return flags
}

func (c *AddAbsentMod) F(s *tools.Session) error {
	var pattern interface{}

	if c.ParsePattern {
		if err := json.Unmarshal([]byte(c.PatternJS), &pattern); err != nil {
			return err
		}
	} else {
		pattern = c.PatternJS
	}

	return AddAbsent(s, pattern, c.DocString)
}

// introduced collects the Future ids that the Session's Ops register.
func introduced(s *tools.Session) map[string]bool {
	ids := make(map[string]bool, 32)
	for _, step := range s.Steps {
		for _, op := range step.Ops {
			if op.Make != "" {
				ids[op.Make] = true
			}
			for _, ch := range []*tools.ChainOp{op.Then, op.Catch, op.Finally} {
				if ch != nil && ch.As != "" {
					ids[ch.As] = true
				}
			}
			for _, g := range []*tools.GatherOp{op.All, op.Race, op.Any, op.AllSettled} {
				if g != nil && g.As != "" {
					ids[g.As] = true
				}
			}
			if op.Timer != nil {
				ids[op.Timer.Id] = true
			}
		}
	}
	return ids
}

type AddChainMod struct {
	Prefix string

	ParseJSON bool

	Values []interface{}

	ValuesJS string
}

// sessiontool addChain -p taco_ -m '["shell","meat","salsa","queso"]'

func (m *AddChainMod) F(s *tools.Session) error {

	if m.ParseJSON {
		if err := json.Unmarshal([]byte(m.ValuesJS), &m.Values); err != nil {
			return err
		}
	}

	if len(m.Values) == 0 {
		return NoValues
	}

	ids := introduced(s)
	name := func(i int) string {
		return fmt.Sprintf("%s%02d", m.Prefix, i)
	}
	for i := range m.Values {
		if ids[name(i)] {
			return fmt.Errorf(`id "%s" exists`, name(i))
		}
	}

	last := len(m.Values) - 1

	ops := []tools.Op{
		{
			Make: name(0),
		},
	}

	for i := 1; i < len(m.Values); i++ {
		ops = append(ops, tools.Op{
			Then: &tools.ChainOp{
				On:          name(i - 1),
				As:          name(i),
				GuardSource: fmt.Sprintf("return %s;", JS(m.Values[i])),
			},
		})
	}

	ops = append(ops, tools.Op{
		Fulfill: &tools.FulfillOp{
			Id:    name(0),
			Value: m.Values[0],
		},
	})

	s.Steps = append(s.Steps, tools.Step{
		Doc: fmt.Sprintf("A chain of %d thens.", last),
		Ops: ops,
		Expect: []tools.Expectation{
			{
				Pattern: map[string]interface{}{
					"event":  "settled",
					"id":     name(last),
					"status": "fulfilled",
					"value":  m.Values[last],
				},
			},
		},
	})

	return nil
}

func (m *AddChainMod) Doc() string {
	return `
Appends a step that fulfills a Future through a chain of thens, with an
expectation that the last link fulfills with the last value.
`
}

func (m *AddChainMod) Flags() *flag.FlagSet {
	flags := flag.NewFlagSet("addChain", flag.PanicOnError)

	flags.StringVar(&m.Prefix, "p", "c", "prefix for Future ids")
	flags.BoolVar(&m.ParseJSON, "P", true, "parse the values as JSON")
	flags.StringVar(&m.ValuesJS, "m", "[]", "values (a JSON array) for the links")

	return flags
}

type Analyzer struct {
}

func (m *Analyzer) F(s *tools.Session) error {
	a, err := tools.AnalyzeSession(s)
	if err != nil {
		return err
	}
	bs, err := yaml.Marshal(&a)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s\n", bs)

	return nil
}

func (m *Analyzer) Doc() string {
	return "ToDo"
}

func (m *Analyzer) Flags() *flag.FlagSet {
	return flag.NewFlagSet("analyze", flag.PanicOnError)
}

type Grapher struct {
	OutputFilename string
	Highlight      string
}

func (m *Grapher) F(s *tools.Session) error {
	f, err := os.Create(m.OutputFilename)
	if err != nil {
		return err
	}

	return tools.Dot(s, f, m.Highlight) // Will Close f.
}

func (m *Grapher) Doc() string {
	return `
Writes a Graphviz rendering of the session's derivation graph to the -o
file.
`
}

func (m *Grapher) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("graph", flag.PanicOnError)
	fs.StringVar(&m.OutputFilename, "o", "session.dot", "output filename")
	fs.StringVar(&m.Highlight, "highlight", "", "name of a Future to highlight")
	return fs
}

type Mermaider struct {
	OutputFilename string
	HideGuards     bool
	TimerFill      string
}

func (m *Mermaider) F(s *tools.Session) error {
	f, err := os.Create(m.OutputFilename)
	if err != nil {
		return err
	}

	opts := &tools.MermaidOpts{
		ShowGuards: !m.HideGuards,
		TimerFill:  m.TimerFill,
	}

	return tools.Mermaid(s, f, opts) // Will Close f.
}

func (m *Mermaider) Doc() string {
	return `
Writes a Mermaid rendering of the session's derivation graph to the -o
file.
`
}

func (m *Mermaider) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("mermaid", flag.PanicOnError)
	fs.StringVar(&m.OutputFilename, "o", "session.mermaid", "output filename")
	fs.BoolVar(&m.HideGuards, "noguards", false, "do not label edges with guard source")
	fs.StringVar(&m.TimerFill, "fill", "#bcf2db", "fill color for timer nodes")
	return fs
}

type Pager struct {
	OutputFilename string
	CSSFiles       string
	IncludeGraph   bool
}

func (m *Pager) F(s *tools.Session) error {
	f, err := os.Create(m.OutputFilename)
	if err != nil {
		return err
	}
	defer f.Close()

	var css []string
	if m.CSSFiles != "" {
		css = strings.Split(m.CSSFiles, ",")
	}

	return tools.RenderSessionPage(s, f, css, m.IncludeGraph)
}

func (m *Pager) Doc() string {
	return `
Writes a standalone HTML page for the session to the -o file.
`
}

func (m *Pager) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("page", flag.PanicOnError)
	fs.StringVar(&m.OutputFilename, "o", "session.html", "output filename")
	fs.StringVar(&m.CSSFiles, "css", "", "comma-separated CSS hrefs for the page")
	fs.BoolVar(&m.IncludeGraph, "graph", true, "include the session JSON for graph rendering")
	return fs
}
