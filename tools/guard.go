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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/Comcast/laters/core"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Guard.Exec when the context is
	// done before the code is.
	Interrupted = errors.New(InterruptedMessage)
)

// Guard is a little bit of ECMAScript that scenario steps use to
// compute derived values and to check bindings.
//
// The source is wrapped in an anonymous function, so 'return' works
// as you'd hope.  The environment is available at '_':
//
//   _.value     the fulfillment value (then guards)
//   _.reason    the rejection message (catch guards)
//   _.bindings  the bindings under consideration (expectation guards)
//
// The environment also includes some utilities:
//
//   log(X)             Log X as JSON (and return it).
//   match(P, F, BS)    Invoke the pattern matcher.
//   randstr()          Generate a random string.
type Guard struct {
	// Source is the original, unwrapped code.
	Source string `json:"source" yaml:"source"`

	program *goja.Program
}

// CompileGuard wraps the source in an anonymous function and compiles
// it.
func CompileGuard(src string) (*Guard, error) {
	code := fmt.Sprintf("(function() {\n%s\n}());\n", src)
	program, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return &Guard{
		Source:  src,
		program: program,
	}, nil
}

// protest generates a Goja panic with the given value.
func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// Exec runs the guard with the given environment bound to '_'.
//
// The result is the canonicalized value of the guard's last
// expression (or 'return').  A thrown exception comes back as an
// error, and a context cancelation gets you Interrupted.
func (g *Guard) Exec(ctx context.Context, env map[string]interface{}) (interface{}, error) {
	if g.program == nil {
		compiled, err := CompileGuard(g.Source)
		if err != nil {
			return nil, err
		}
		g.program = compiled.program
	}

	if env == nil {
		env = make(map[string]interface{}, 4)
	}

	o := goja.New()
	o.Set("_", env)

	env["log"] = func(x interface{}) interface{} {
		if v, is := x.(goja.Value); is {
			x = v.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			log.Printf("guard log error: %v", err)
		} else {
			log.Println(string(js))
		}
		return x
	}

	env["randstr"] = func() interface{} {
		return core.Gensym(32)
	}

	env["match"] = func(pat, fact, bs goja.Value) interface{} {
		bindings := NewBindings()
		if bs != nil && !goja.IsUndefined(bs) && !goja.IsNull(bs) {
			x, err := core.Canonicalize(bs.Export())
			if err != nil {
				protest(o, err.Error())
			}
			m, is := x.(map[string]interface{})
			if !is {
				protest(o, fmt.Sprintf("bad bindings (%T)", x))
			}
			bindings = Bindings(m)
		}
		got, err := Match(pat.Export(), fact.Export(), bindings)
		if err != nil {
			protest(o, err.Error())
		}
		if got == nil {
			return nil
		}
		x, err := core.Canonicalize(got)
		if err != nil {
			protest(o, err.Error())
		}
		return x
	}

	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If Exec calls cancel() after the program has
		// returned, nobody is left to notice this interrupt.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := runProgram(o, g.program)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	return core.Canonicalize(v.Export())
}

// runProgram recovers from any panic, which it converts to an error.
func runProgram(o *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s", r)
		}
	}()
	return o.RunProgram(p)
}
