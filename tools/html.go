package tools

import (
	"encoding/json"
	"fmt"
	"io"

	. "github.com/Comcast/laters/util/testutil"

	md "github.com/russross/blackfriday/v2"
)

// RenderSessionHTML writes an HTML rendering of the Session's Steps.
//
// If the Session has been Run, each Step's events are rendered, too.
func RenderSessionHTML(s *Session, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if s.Doc != "" {
		f(`<div class="sessionDoc doc">%s</div>`, md.Run([]byte(s.Doc)))
	}

	f(`<div class="steps"><table>`)
	for i := range s.Steps {
		step := &s.Steps[i]
		f(`<tr class="step"><td><span id="step%d" class="stepNum">%d</span></td><td>`, i, i)

		if step.Doc != "" {
			f(`<div class="stepDoc doc">%s</div>`, md.Run([]byte(step.Doc)))
		}

		if 0 < len(step.Ops) {
			f(`<div class="ops"><table>`)
			for j := range step.Ops {
				op := &step.Ops[j]
				f(`<tr><td><div class="opNum">%d</div></td><td><span class="opKind">%s</span></td><td><code>%s</code></td></tr>`,
					j, opKind(op), JS(op))
			}
			f(`</table></div>`)
		}

		if 0 < len(step.Expect) {
			f(`<div class="expectations"><table>`)
			for j := range step.Expect {
				e := &step.Expect[j]
				f(`<tr><td>`)
				if e.Absent {
					f(`<span class="absent">absent</span>`)
				}
				f(`</td><td><code>%s</code></td><td>`, JS(e.Pattern))
				if e.GuardSource != "" {
					f(`<div class="code"><pre>%s</pre></div>`, e.GuardSource)
				}
				f(`</td></tr>`)
			}
			f(`</table></div>`)
		}

		if i < len(s.History) {
			f(`<div class="events"><ul>`)
			for _, event := range s.History[i] {
				f(`<li><code>%s</code></li>`, JS(event))
			}
			f(`</ul></div>`)
		}

		f(`</td></tr>`)
	}
	f(`</table></div>`)

	return nil
}

// opKind names an Op's operative field.
func opKind(op *Op) string {
	switch {
	case op.Make != "":
		return "make"
	case op.Fulfill != nil:
		return "fulfill"
	case op.Reject != nil:
		return "reject"
	case op.Then != nil:
		return "then"
	case op.Catch != nil:
		return "catch"
	case op.Finally != nil:
		return "finally"
	case op.All != nil:
		return "all"
	case op.Race != nil:
		return "race"
	case op.Any != nil:
		return "any"
	case op.AllSettled != nil:
		return "allSettled"
	case op.Timer != nil:
		return "timer"
	case op.Cancel != "":
		return "cancel"
	case op.Drain:
		return "drain"
	}
	return "nothing"
}

// RenderSessionPage writes a complete HTML page for the Session.
func RenderSessionPage(s *Session, out io.Writer, cssFiles []string, includeGraph bool) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/session-html.css"}
	}

	js, err := json.Marshal(s)
	if err != nil {
		return err
	}

	title := s.Name
	if title == "" {
		title = "session"
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, title)

	if includeGraph {
		fmt.Fprintf(out, `
  <script src="https://cdnjs.cloudflare.com/ajax/libs/d3/4.12.2/d3.min.js"></script>
  <script src="https://cdnjs.cloudflare.com/ajax/libs/cytoscape/3.2.8/cytoscape.min.js"></script>
  <script src="/static/session-html.js"></script>
  <script>
  var thisSession = %s;
  </script>
`, js)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, title)

	if includeGraph {
		fmt.Fprintf(out, `<div id="graph"></div>`)
	}

	if err = RenderSessionHTML(s, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderSessionPage reads a YAML Session and writes a complete
// HTML page for it.  The guards are compiled first so that a typo
// doesn't end up framed on a wall somewhere.
func ReadAndRenderSessionPage(filename string, cssFiles []string, out io.Writer, includeGraph bool) error {
	s, err := ReadSession(filename)
	if err != nil {
		return err
	}

	if err = s.Compile(); err != nil {
		return err
	}

	return RenderSessionPage(s, out, cssFiles, includeGraph)
}
