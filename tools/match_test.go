package tools

import (
	"testing"
)

func TestMatch(t *testing.T) {
	check := func(pattern, fact interface{}, want bool) Bindings {
		t.Helper()
		bs, err := Matches(pattern, fact)
		if err != nil {
			t.Fatal(err)
		}
		if want && bs == nil {
			t.Fatalf("wanted a match of %#v against %#v", pattern, fact)
		}
		if !want && bs != nil {
			t.Fatalf("wanted no match of %#v against %#v", pattern, fact)
		}
		return bs
	}

	t.Run("constants", func(t *testing.T) {
		check(map[string]interface{}{"likes": "tacos"},
			map[string]interface{}{"likes": "tacos", "when": "always"},
			true)
		check(map[string]interface{}{"likes": "tacos"},
			map[string]interface{}{"likes": "queso"},
			false)
		check(map[string]interface{}{"likes": "tacos"},
			"tacos",
			false)
	})

	t.Run("variables", func(t *testing.T) {
		bs := check(map[string]interface{}{"likes": "?x"},
			map[string]interface{}{"likes": "queso"},
			true)
		if bs["?x"] != "queso" {
			t.Fatalf("?x was %#v", bs["?x"])
		}

		check(map[string]interface{}{"a": "?x", "b": "?x"},
			map[string]interface{}{"a": 1, "b": 1},
			true)
		check(map[string]interface{}{"a": "?x", "b": "?x"},
			map[string]interface{}{"a": 1, "b": 2},
			false)
	})

	t.Run("anonymous", func(t *testing.T) {
		bs := check(map[string]interface{}{"a": "?"},
			map[string]interface{}{"a": []interface{}{1, 2, 3}},
			true)
		if len(bs) != 0 {
			t.Fatalf("an anonymous variable bound something: %#v", bs)
		}
	})

	t.Run("arrays", func(t *testing.T) {
		bs := check([]interface{}{"?x", 2},
			[]interface{}{1, 2},
			true)
		if bs["?x"] != float64(1) {
			t.Fatalf("?x was %#v", bs["?x"])
		}
		check([]interface{}{"?x"},
			[]interface{}{1, 2},
			false)
	})

	t.Run("numbers", func(t *testing.T) {
		// Canonicalization should make all of these float64s.
		check(1, float64(1), true)
		check(map[string]interface{}{"n": 42},
			map[string]interface{}{"n": 42.0},
			true)
	})

	t.Run("given bindings", func(t *testing.T) {
		bs0 := NewBindings().Extend("?x", "tacos")
		bs, err := Match(map[string]interface{}{"want": "?x"},
			map[string]interface{}{"want": "queso"},
			bs0)
		if err != nil {
			t.Fatal(err)
		}
		if bs != nil {
			t.Fatal("?x shouldn't rebind")
		}

		bs, err = Match(map[string]interface{}{"want": "?x"},
			map[string]interface{}{"want": "tacos"},
			bs0)
		if err != nil {
			t.Fatal(err)
		}
		if bs == nil {
			t.Fatal("?x should have agreed")
		}
		bs.Extend("?y", "salsa")
		if _, polluted := bs0["?y"]; polluted {
			t.Fatal("the given bindings were modified")
		}
	})
}

func TestVariables(t *testing.T) {
	if !IsVariable("?x") || IsVariable("x") {
		t.Fatal("IsVariable is confused")
	}
	if !IsAnonymousVariable("?") || IsAnonymousVariable("?x") {
		t.Fatal("IsAnonymousVariable is confused")
	}
}
