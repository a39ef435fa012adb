package omap

import (
	"encoding/json"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSetGetDeleteKeepOrder(t *testing.T) {
	m := New()
	m.Set("zulu", 1)
	m.Set("alpha", 2)
	m.Set("mike", 3)
	m.Set("zulu", 10) // update keeps position

	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zulu", "alpha", "mike"}) {
		t.Errorf("keys = %v", got)
	}
	if v, ok := m.Get("zulu"); !ok || v != 10 {
		t.Errorf("zulu = %v, %v", v, ok)
	}

	m.Delete("alpha")
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zulu", "mike"}) {
		t.Errorf("keys after delete = %v", got)
	}
}

func TestDecodeNodePreservesDocumentOrder(t *testing.T) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte("tabWidth: 2\nsemi: false\nplugins:\n  - a\n  - b\n"), &doc); err != nil {
		t.Fatal(err)
	}

	v, err := DecodeNode(&doc)
	if err != nil {
		t.Fatalf("DecodeNode: %v", err)
	}
	m, ok := v.(*Map)
	if !ok {
		t.Fatalf("value = %T, want *Map", v)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"tabWidth", "semi", "plugins"}) {
		t.Errorf("keys = %v", got)
	}
	plugins, _ := m.Get("plugins")
	if !reflect.DeepEqual(plugins, []any{"a", "b"}) {
		t.Errorf("plugins = %v", plugins)
	}
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	src := `{"zulu":1,"alpha":{"inner2":true,"inner1":"<tag>"},"mike":[1,2]}`

	var m Map
	if err := json.Unmarshal([]byte(src), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"zulu", "alpha", "mike"}) {
		t.Errorf("keys = %v", got)
	}

	out, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != src {
		t.Errorf("round trip = %s, want %s", out, src)
	}
}

func TestMarshalYAMLKeepsOrder(t *testing.T) {
	m := New()
	m.Set("second", 2)
	m.Set("first", 1)

	out, err := yaml.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := "second: 2\nfirst: 1\n"
	if string(out) != want {
		t.Errorf("yaml = %q, want %q", out, want)
	}
}

func TestFromUnorderedSortsForDeterminism(t *testing.T) {
	v := FromUnordered(map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 3}})
	m := v.(*Map)
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("keys = %v", got)
	}
	inner, _ := m.Get("a")
	if got := inner.(*Map).Keys(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("inner keys = %v", got)
	}
}
