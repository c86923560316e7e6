// Package vssfeed names the interface contract for the external VSS
// database parser (spec.md section 6): a lazy, finite, ordered sequence of
// revisions with stable content-ids, plus a fetch(content-id) -> bytes
// call. The parser itself is out of scope (spec.md section 1); this
// package only pins down the boundary and provides a Memory feed used by
// tests and by the --extract-file diagnostic path.
package vssfeed

import (
	"fmt"

	"github.com/alegrigoriev/vss2git/internal/model"
)

// Feed is the contract the revision stream consumer (internal/engine)
// reads from. Next returns (rev, true, nil) for each revision in strictly
// ascending Number order, (zero, false, nil) at end of stream, and a
// non-nil error for a malformed upstream stream (spec.md section 7,
// ParserError).
type Feed interface {
	Next() (model.Revision, bool, error)
	Fetch(contentID string) ([]byte, error)
}

// Memory is an in-process Feed backed by a fixed revision slice and a
// content-id -> bytes map, used by unit tests and by tools that already
// have a decoded revision stream in memory (e.g. a previous dry run).
type Memory struct {
	revisions []model.Revision
	pos       int
	blobs     map[string][]byte
}

// NewMemory builds a Memory feed. revisions must already be in ascending
// Number order; NewMemory does not sort them.
func NewMemory(revisions []model.Revision, blobs map[string][]byte) *Memory {
	return &Memory{revisions: revisions, blobs: blobs}
}

func (m *Memory) Next() (model.Revision, bool, error) {
	if m.pos >= len(m.revisions) {
		return model.Revision{}, false, nil
	}
	rev := m.revisions[m.pos]
	if m.pos > 0 && rev.Number <= m.revisions[m.pos-1].Number {
		return model.Revision{}, false, fmt.Errorf("vssfeed: revision %d out of order after %d", rev.Number, m.revisions[m.pos-1].Number)
	}
	m.pos++
	return rev, true, nil
}

func (m *Memory) Fetch(contentID string) ([]byte, error) {
	b, ok := m.blobs[contentID]
	if !ok {
		return nil, fmt.Errorf("vssfeed: no content registered for id %q", contentID)
	}
	return b, nil
}
