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
	"reflect"
	"strings"

	"github.com/Comcast/laters/core"
)

// Bindings maps pattern variables to their values.
//
// All pattern variables start with a '?'.
type Bindings map[string]interface{}

// NewBindings does what you'd think.
func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Extend adds the given binding.  Modifies and returns the Bindings.
func (bs Bindings) Extend(p string, v interface{}) Bindings {
	bs[p] = v
	return bs
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for p, v := range bs {
		acc[p] = v
	}
	return acc
}

// IsVariable reports whether the string represents a pattern
// variable.
func IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

// IsAnonymousVariable detects a variable of the form "?", which
// matches anything and binds nothing.
func IsAnonymousVariable(s string) bool {
	return s == "?"
}

// Match matches the pattern against the fact, returning the given
// bindings extended by whatever the pattern's variables caught.  A
// nil Bindings result (with a nil error) means no match.
//
// This matcher is deliberately small.  A map pattern's keys must all
// appear in the fact, which may have more; an array pattern matches
// element by element, in order, with no length slack; a variable
// matches anything (consistently with its previous binding, if any).
// Both arguments are canonicalized first, so all numbers compare as
// float64s.
//
// The given Bindings are never modified.
func Match(pattern, fact interface{}, bs Bindings) (Bindings, error) {
	p, err := core.Canonicalize(pattern)
	if err != nil {
		return nil, err
	}
	f, err := core.Canonicalize(fact)
	if err != nil {
		return nil, err
	}
	if bs == nil {
		bs = NewBindings()
	}
	return match(p, f, bs.Copy())
}

// Matches calls Match with empty Bindings.
func Matches(pattern, fact interface{}) (Bindings, error) {
	return Match(pattern, fact, nil)
}

func match(p, f interface{}, bs Bindings) (Bindings, error) {
	switch pat := p.(type) {
	case string:
		if IsAnonymousVariable(pat) {
			return bs, nil
		}
		if IsVariable(pat) {
			if bound, have := bs[pat]; have {
				if reflect.DeepEqual(bound, f) {
					return bs, nil
				}
				return nil, nil
			}
			return bs.Extend(pat, f), nil
		}
		if s, is := f.(string); is && s == pat {
			return bs, nil
		}
		return nil, nil
	case map[string]interface{}:
		m, is := f.(map[string]interface{})
		if !is {
			return nil, nil
		}
		for k, v := range pat {
			fv, have := m[k]
			if !have {
				return nil, nil
			}
			var err error
			if bs, err = match(v, fv, bs); bs == nil || err != nil {
				return nil, err
			}
		}
		return bs, nil
	case []interface{}:
		a, is := f.([]interface{})
		if !is || len(a) != len(pat) {
			return nil, nil
		}
		for i, v := range pat {
			var err error
			if bs, err = match(v, a[i], bs); bs == nil || err != nil {
				return nil, err
			}
		}
		return bs, nil
	default:
		if reflect.DeepEqual(p, f) {
			return bs, nil
		}
		return nil, nil
	}
}
