package sha1map

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty map, got %d entries", m.Len())
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	m, _ := Load("")
	if _, ok := m.Get("k1"); ok {
		t.Fatalf("expected miss before Put")
	}
	m.Put("k1", "oid1")
	v, ok := m.Get("k1")
	if !ok || v != "oid1" {
		t.Fatalf("expected k1=oid1, got %q %v", v, ok)
	}
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sha1.map")
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	m.Put("abc", "def")
	m.Put("ghi", "jkl")
	if err := m.Persist(); err != nil {
		t.Fatal(err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", reloaded.Len())
	}
	v, ok := reloaded.Get("abc")
	if !ok || v != "def" {
		t.Fatalf("expected abc=def after reload, got %q %v", v, ok)
	}
}

func TestPutDuplicateDoesNotQueueTwice(t *testing.T) {
	m, _ := Load("")
	m.Put("k", "v")
	m.Put("k", "v")
	if len(m.dirty) != 1 {
		t.Fatalf("expected one dirty entry, got %d", len(m.dirty))
	}
}
