package model

import "testing"

func assertIntEqual(t *testing.T, a, b int) {
	t.Helper()
	if a != b {
		t.Errorf("assertIntEqual: expected %d == %d", a, b)
	}
}

func assertEqual(t *testing.T, a, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("assertEqual: expected %q == %q", a, b)
	}
}

func TestApplyAddThenDeleteThenReadd(t *testing.T) {
	tree := NewProjectTree()
	tree.Apply(1, []ChangeOp{{Kind: OpAddDir, Path: "trunk"}})
	tree.Apply(2, []ChangeOp{{Kind: OpDeleteDir, Path: "trunk"}})
	deleted := tree.lookup("trunk")
	if deleted != nil {
		t.Fatalf("expected trunk to be invisible after deletion")
	}
	tree.Apply(3, []ChangeOp{{Kind: OpAddDir, Path: "trunk"}})
	revived := tree.lookup("trunk")
	if revived == nil {
		t.Fatalf("expected trunk to exist again after re-add")
	}
	assertIntEqual(t, revived.CreatedAtRev, 3)
}

func TestApplyAddFileAndModify(t *testing.T) {
	tree := NewProjectTree()
	tree.Apply(1, []ChangeOp{
		{Kind: OpAddDir, Path: "trunk"},
		{Kind: OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
	})
	node := tree.lookup("trunk/a.txt")
	assertEqual(t, node.ContentID, "c1")
	tree.Apply(2, []ChangeOp{{Kind: OpModifyFile, Path: "trunk/a.txt", ContentID: "c2"}})
	assertEqual(t, tree.lookup("trunk/a.txt").ContentID, "c2")
}

func TestApplyRename(t *testing.T) {
	tree := NewProjectTree()
	tree.Apply(1, []ChangeOp{
		{Kind: OpAddDir, Path: "trunk"},
		{Kind: OpAddFile, Path: "trunk/old.txt", ContentID: "c1"},
	})
	tree.Apply(2, []ChangeOp{{Kind: OpRenameFile, OldPath: "trunk/old.txt", Path: "trunk/new.txt"}})
	if tree.lookup("trunk/old.txt") != nil {
		t.Fatalf("old path should no longer resolve")
	}
	assertEqual(t, tree.lookup("trunk/new.txt").ContentID, "c1")
}

func TestContentIDMultiset(t *testing.T) {
	tree := NewProjectTree()
	tree.Apply(1, []ChangeOp{
		{Kind: OpAddDir, Path: "trunk"},
		{Kind: OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
		{Kind: OpAddFile, Path: "trunk/b.txt", ContentID: "c2"},
	})
	set := tree.ContentIDMultiset("trunk")
	assertIntEqual(t, set["c1"], 1)
	assertIntEqual(t, set["c2"], 1)
}
