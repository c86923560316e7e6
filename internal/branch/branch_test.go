package branch

import (
	"testing"

	"github.com/alegrigoriev/vss2git/internal/model"
)

func TestDeleteThenRecreateIsDistinctRecord(t *testing.T) {
	r := NewRegistry()
	first := r.Create("refs/heads/exp", "branches/exp", 10)
	r.Delete("refs/heads/exp", 20)
	if r.Current("refs/heads/exp") != nil {
		t.Fatalf("expected no current record after delete")
	}
	second := r.Create("refs/heads/exp", "branches/exp", 30)
	if first == second {
		t.Fatalf("expected a distinct Branch record after revival")
	}
	if len(r.byRef["refs/heads/exp"]) != 2 {
		t.Fatalf("expected two historical records, got %d", len(r.byRef["refs/heads/exp"]))
	}
}

func TestFindForkPointPicksHighestOverlap(t *testing.T) {
	r := NewRegistry()
	main := r.Create("refs/heads/main", "trunk", 1)
	main.HeadCommitID = "c1"
	RecordHeadContents(main, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1})

	other := r.Create("refs/heads/other", "other", 2)
	other.HeadCommitID = "c2"
	RecordHeadContents(other, map[string]int{"a": 1})

	got := r.FindForkPoint(map[string]int{"a": 1, "b": 1}, "refs/heads/feat")
	if got == nil || got.RefName != "refs/heads/main" {
		t.Fatalf("expected main to win on overlap, got %v", got)
	}
}

func TestFindForkPointBelowThresholdIsRootless(t *testing.T) {
	r := NewRegistry()
	main := r.Create("refs/heads/main", "trunk", 1)
	main.HeadCommitID = "c1"
	RecordHeadContents(main, map[string]int{"a": 1, "b": 1, "c": 1, "d": 1})

	got := r.FindForkPoint(map[string]int{"a": 1, "x": 1, "y": 1, "z": 1}, "refs/heads/feat")
	if got != nil {
		t.Fatalf("expected no fork point below threshold, got %v", got)
	}
}

func TestFastForwardCandidate(t *testing.T) {
	b := &model.Branch{RefName: "refs/heads/main", HeadCommitID: "c1"}
	if !FastForwardCandidate("treeA", b, "treeA") {
		t.Fatalf("expected fast-forward when trees match")
	}
	if FastForwardCandidate("treeA", b, "treeB") {
		t.Fatalf("expected no fast-forward when trees differ")
	}
}
