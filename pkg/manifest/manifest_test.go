package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadMissingFile(t *testing.T) {
	m, err := Read(t.TempDir(), "config")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !m.Empty() {
		t.Errorf("missing manifest should be empty")
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := &Manifest{Version: Version, Configs: map[string]json.RawMessage{}}
	if err := m.SetTracked("config", []string{"b.json", "a.json", "a.json"}); err != nil {
		t.Fatalf("SetTracked: %v", err)
	}
	if err := m.Write(dir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(dir, "config")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"a.json", "b.json"}
	if !reflect.DeepEqual(got.Tracked("config"), want) {
		t.Errorf("tracked = %v, want %v", got.Tracked("config"), want)
	}
}

func TestForeignNamespacePreservedVerbatim(t *testing.T) {
	dir := t.TempDir()
	foreign := `["z.json","a.json","z.json"]`
	seed := `{
  "version": 2,
  "configs": {
    "other": ` + foreign + `
  }
}
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Read(dir, "config")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := m.SetTracked("config", []string{"mine.json"}); err != nil {
		t.Fatalf("SetTracked: %v", err)
	}
	if err := m.Write(dir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), foreign) {
		t.Errorf("foreign namespace was reformatted:\n%s", data)
	}
}

func TestOrphans(t *testing.T) {
	m := &Manifest{Version: Version, Configs: map[string]json.RawMessage{}}
	if err := m.SetTracked("config", []string{"a.json", "b.json", "c.json"}); err != nil {
		t.Fatal(err)
	}

	got := m.Orphans("config", []string{"b.json"})
	want := []string{"a.json", "c.json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("orphans = %v, want %v", got, want)
	}

	if orphans := m.Orphans("unknown", []string{"b.json"}); orphans != nil {
		t.Errorf("unknown config orphans = %v, want none", orphans)
	}
}

func TestEmptyEntryRemovesConfigAndFile(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{Version: Version, Configs: map[string]json.RawMessage{}}
	if err := m.SetTracked("config", []string{"a.json"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(dir); err != nil {
		t.Fatal(err)
	}

	if err := m.SetTracked("config", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Write(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, FileName)); !os.IsNotExist(err) {
		t.Errorf("empty manifest file should be removed")
	}
}

func TestVersionOneUpgrade(t *testing.T) {
	dir := t.TempDir()
	seed := `{"version": 1, "files": ["legacy.json", "old.yaml"]}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Read(dir, "config")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []string{"legacy.json", "old.yaml"}
	if !reflect.DeepEqual(m.Tracked("config"), want) {
		t.Errorf("upgraded tracked = %v, want %v", m.Tracked("config"), want)
	}
}
