package gitexport

import (
	"testing"

	"github.com/alegrigoriev/vss2git/internal/model"
)

type fakeBackend struct {
	refs    map[string]string // refname -> commit id
	deleted []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{refs: map[string]string{}}
}

func (f *fakeBackend) UpdateRef(ref, commitID string) error {
	f.refs[ref] = commitID
	return nil
}

func (f *fakeBackend) DeleteRef(ref string) error {
	delete(f.refs, ref)
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeBackend) ForEachRef(prefix string) ([]string, error) {
	if v, ok := f.refs[prefix]; ok {
		return []string{v}, nil
	}
	var out []string
	for ref := range f.refs {
		if len(ref) >= len(prefix) && ref[:len(prefix)] == prefix {
			out = append(out, ref)
		}
	}
	return out, nil
}

func TestWriteAndPrune(t *testing.T) {
	backend := newFakeBackend()
	backend.refs["refs/heads/stale"] = "deadbeef"
	w := NewRefWriter(backend, "", []string{"refs/heads/"})

	emitted := []Emitted{{RefName: "refs/heads/main", CommitID: "c1"}}
	if err := w.Write(emitted); err != nil {
		t.Fatal(err)
	}
	if err := w.Prune(emitted); err != nil {
		t.Fatal(err)
	}
	if _, ok := backend.refs["refs/heads/stale"]; ok {
		t.Fatalf("expected stale ref pruned")
	}
	if backend.refs["refs/heads/main"] != "c1" {
		t.Fatalf("expected main ref written")
	}
}

func TestReparentLooksUpAppendNamespace(t *testing.T) {
	backend := newFakeBackend()
	backend.refs["refs/staging/heads/feat"] = "oldhead"
	w := NewRefWriter(backend, "staging", nil)

	head, should := w.Reparent(Emitted{RefName: "refs/heads/feat", Rootless: true})
	if !should || head != "oldhead" {
		t.Fatalf("expected reparent onto oldhead, got %q %v", head, should)
	}

	_, should = w.Reparent(Emitted{RefName: "refs/heads/feat", Rootless: false})
	if should {
		t.Fatalf("expected no reparent for non-rootless commit")
	}
}

func TestCollectPruneNamespacesDeduplicates(t *testing.T) {
	got := CollectPruneNamespaces("refs/heads/", []string{"refs/heads/", "refs/tags/", ""})
	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated namespaces, got %v", got)
	}
}

func TestBranchesToEmittedSkipsHeadless(t *testing.T) {
	branches := []*model.Branch{
		{RefName: "refs/heads/a", HeadCommitID: "c1", ForkPointID: ""},
		{RefName: "refs/heads/b", HeadCommitID: ""},
	}
	emitted := BranchesToEmitted(branches)
	if len(emitted) != 1 || emitted[0].RefName != "refs/heads/a" || !emitted[0].Rootless {
		t.Fatalf("unexpected emitted: %+v", emitted)
	}
}
