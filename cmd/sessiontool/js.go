/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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


package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"strings"

	"github.com/Comcast/laters/core"

	"github.com/dop251/goja"
)

// Expander is a little ECMAScript environment for macro-expanding
// session YAML.  The driver ("driver.js") should define a function
// expand(), which receives the parsed YAML and returns the
// expansion.  Files in "macros/" load after the driver, so that's
// where the macros themselves usually live.
//
// The environment at _ has the same log and randstr utilities that
// guards get.
type Expander struct {
	o *goja.Runtime
}

func NewExpander() *Expander {
	o := goja.New()

	env := map[string]interface{}{
		"log": func(x interface{}) interface{} {
			switch vv := x.(type) {
			case goja.Value:
				x = vv.Export()
			}
			js, err := json.Marshal(&x)
			if err != nil {
				return err
			}
			log.Printf("%s", js)
			return x
		},
		"randstr": func() interface{} {
			return core.Gensym(32)
		},
	}
	o.Set("_", env)

	return &Expander{
		o: o,
	}
}

func (m *Expander) load(filename string) error {
	log.Printf("loading %s", filename)

	src, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}

	v, err := m.o.RunScript(filename, string(src))
	if err != nil {
		return err
	}

	if x := v.Export(); x != nil {
		js, err := json.Marshal(&x)
		if err != nil {
			return err
		}
		log.Printf("%s gave %s", filename, js)
	}

	return nil
}

func (m *Expander) loadMacros(dir string) error {
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		filename := file.Name()
		if !strings.HasSuffix(filename, ".js") {
			continue
		}
		if err = m.load(dir + "/" + filename); err != nil {
			return err
		}
	}

	return nil
}

// MacroExpand loads driver.js and macros/*.js and then calls the
// driver's expand() on x.
func MacroExpand(x interface{}) (interface{}, error) {

	js, err := json.Marshal(&x)
	if err != nil {
		return nil, err
	}

	m := NewExpander()

	if err := m.load("driver.js"); err != nil {
		return nil, err
	}

	if err := m.loadMacros("macros"); err != nil {
		return nil, err
	}

	v, err := m.o.RunString(fmt.Sprintf("expand(%s)", js))
	if err != nil {
		return nil, err
	}

	return core.Canonicalize(v.Export())
}
