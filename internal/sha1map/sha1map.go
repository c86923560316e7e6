// Package sha1map persists the BlobKey to git-blob-id dedup cache across
// runs (spec.md section 6, "sha1-map"): an append-only text file of
// "blobkey-hex<TAB>git-blob-hex" lines, written atomically at end of run
// (write to temp, rename into place) so a crash never corrupts the file
// a prior run left behind.
package sha1map

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Map is the in-memory, concurrency-safe view of a persisted sha1-map.
type Map struct {
	mu      sync.RWMutex
	entries map[string]string // blobkey-hex -> git-blob-hex
	dirty   []string          // lines appended since Load, in append order
	path    string
}

// Load reads an existing sha1-map from path, or returns an empty Map if
// the file does not exist yet (spec.md section 7: "Rereadable across
// runs").
func Load(path string) (*Map, error) {
	m := &Map{entries: map[string]string{}, path: path}
	if path == "" {
		return m, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sha1map: open %s: %w", path, err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("sha1map: malformed line %q in %s", line, path)
		}
		m.entries[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("sha1map: read %s: %w", path, err)
	}
	return m, nil
}

// Get returns the cached git blob id for blobKeyHex, if present.
func (m *Map) Get(blobKeyHex string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[blobKeyHex]
	return v, ok
}

// Put records blobKeyHex -> gitBlobHex, queuing it for persistence. A
// second Put of the same key with the same id does not queue a duplicate
// line; a different id replaces the entry and is queued again (spec.md
// section 5: "append-only during the run").
func (m *Map) Put(blobKeyHex, gitBlobHex string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[blobKeyHex]; ok && existing == gitBlobHex {
		return
	}
	m.entries[blobKeyHex] = gitBlobHex
	m.dirty = append(m.dirty, blobKeyHex)
}

// Len reports the number of cached entries.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Persist writes the complete map to a temp file beside the target path
// and renames it into place (spec.md section 5's crash-safety
// requirement). A no-op if the Map was Loaded from an empty path.
func (m *Map) Persist() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.path == "" {
		return nil
	}
	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, ".sha1map-*")
	if err != nil {
		return fmt.Errorf("sha1map: create temp in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	w := bufio.NewWriter(tmp)
	for key, oid := range m.entries {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", key, oid); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("sha1map: write temp: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sha1map: flush temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sha1map: close temp: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sha1map: rename into place: %w", err)
	}
	return nil
}
