package authorsmap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveFallsBackToLocalhost(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	id := m.Resolve("jdoe")
	if id.Email != "jdoe@localhost" {
		t.Fatalf("expected fallback email, got %q", id.Email)
	}
}

func TestLoadResolvesMappedIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authors.json")
	doc := map[string]Identity{"jdoe": {Name: "Jane Doe", Email: "jane@example.com"}}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	id := m.Resolve("jdoe")
	if id.Name != "Jane Doe" || id.Email != "jane@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	other := m.Resolve("unknown")
	if other.Email != "unknown@localhost" {
		t.Fatalf("expected fallback for unmapped name, got %+v", other)
	}
}

func TestCollectorWriteSkeleton(t *testing.T) {
	c := NewCollector()
	c.Observe("bob")
	c.Observe("alice")
	c.Observe("bob")
	path := filepath.Join(t.TempDir(), "skeleton.json")
	if err := c.WriteSkeleton(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]Identity
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if _, ok := got["alice"]; !ok {
		t.Fatalf("expected alice in skeleton")
	}
}
