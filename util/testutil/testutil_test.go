package testutil

import (
	"reflect"
	"testing"
)

func TestJS(t *testing.T) {
	if got := JS(map[string]interface{}{"likes": "tacos"}); got != `{"likes":"tacos"}` {
		t.Fatal(got)
	}
}

func TestDwimjs(t *testing.T) {
	want := map[string]interface{}{"wants": float64(3)}

	if got := Dwimjs(`{"wants":3}`); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	if got := Dwimjs([]byte(`{"wants":3}`)); !reflect.DeepEqual(got, want) {
		t.Fatal(got)
	}
	if got := Dwimjs(42); got != 42 {
		t.Fatal(got)
	}
}

func TestCopy(t *testing.T) {
	x := map[string]interface{}{"n": 1}
	y, is := Copy(x).(map[string]interface{})
	if !is {
		t.Fatal(y)
	}
	y["n"] = 2
	if x["n"] != 1 {
		t.Fatal(x)
	}
	// The copy is also canonical.
	if _, is := y["n"].(float64); !is {
		t.Fatalf("%#v", y["n"])
	}
}
