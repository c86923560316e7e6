package model

import (
	"strings"
)

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// lookup walks to the node at path, returning nil if any component is
// missing or the node has been deleted.
func (t *ProjectTree) lookup(path string) *TreeNode {
	node := t.Root
	for _, comp := range splitPath(path) {
		if node.Children == nil {
			return nil
		}
		child, ok := node.Children[comp]
		if !ok || child.IsDeleted() {
			return nil
		}
		node = child
	}
	return node
}

// Lookup is the exported form of lookup, for callers outside this package
// (the engine's commit building and DeletePath handling, --extract-file).
func (t *ProjectTree) Lookup(path string) *TreeNode {
	return t.lookup(path)
}

func (t *ProjectTree) mkdirParents(path string, rev int) *TreeNode {
	node := t.Root
	comps := splitPath(path)
	cur := ""
	for _, comp := range comps {
		if cur == "" {
			cur = comp
		} else {
			cur = cur + "/" + comp
		}
		child, ok := node.Children[comp]
		if !ok || child.IsDeleted() {
			child = &TreeNode{
				Path:         cur,
				Name:         comp,
				Parent:       node,
				Children:     map[string]*TreeNode{},
				CreatedAtRev: rev,
			}
			node.Children[comp] = child
		}
		node = child
	}
	return node
}

// Apply applies one revision's change operations in order, per spec.md
// section 4.4 step 1. A node deleted then re-added becomes a new node with
// the same path but a new creation revision, per the section 3 invariant.
func (t *ProjectTree) Apply(rev int, ops []ChangeOp) {
	for _, op := range ops {
		switch op.Kind {
		case OpAddDir:
			t.mkdirParents(op.Path, rev)
		case OpDeleteDir:
			if n := t.lookup(op.Path); n != nil {
				n.DeletedAtRev = rev
			}
		case OpAddFile, OpShareFile:
			parent, name := splitParent(op.Path)
			dir := t.mkdirParents(parent, rev)
			contentID := op.ContentID
			if op.Kind == OpShareFile {
				if src := t.lookup(op.OldPath); src != nil {
					contentID = src.ContentID
				}
			}
			dir.Children[name] = &TreeNode{
				Path:         op.Path,
				Name:         name,
				Parent:       dir,
				ContentID:    contentID,
				CreatedAtRev: rev,
			}
		case OpModifyFile:
			if n := t.lookup(op.Path); n != nil {
				n.ContentID = op.ContentID
			}
		case OpDeleteFile:
			if n := t.lookup(op.Path); n != nil {
				n.DeletedAtRev = rev
			}
		case OpRenameFile:
			if n := t.lookup(op.OldPath); n != nil {
				n.DeletedAtRev = rev
				parent, name := splitParent(op.Path)
				dir := t.mkdirParents(parent, rev)
				dir.Children[name] = &TreeNode{
					Path:         op.Path,
					Name:         name,
					Parent:       dir,
					ContentID:    n.ContentID,
					CreatedAtRev: rev,
				}
			}
		case OpLabelPath:
			// Labels do not change tree shape; the engine reads op.Label
			// directly off the original Revision.Ops to attach tags.
		}
	}
}

func splitParent(path string) (dir, name string) {
	path = strings.Trim(path, "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// Walk calls fn for every live (non-deleted) file under root's subtree,
// including root itself if it is a file.
func (t *ProjectTree) Walk(root string, fn func(path string, node *TreeNode)) {
	n := t.lookup(root)
	if n == nil {
		return
	}
	walkNode(n, fn)
}

func walkNode(n *TreeNode, fn func(path string, node *TreeNode)) {
	if !n.IsDir() {
		fn(n.Path, n)
		return
	}
	for _, child := range n.Children {
		if child.IsDeleted() {
			continue
		}
		walkNode(child, fn)
	}
}

// ContentIDMultiset returns a count of content-ids found under root's
// subtree, used by the merge/branch detector's overlap computation
// (spec.md section 4.5).
func (t *ProjectTree) ContentIDMultiset(root string) map[string]int {
	out := map[string]int{}
	t.Walk(root, func(_ string, node *TreeNode) {
		if node.ContentID != "" {
			out[node.ContentID]++
		}
	})
	return out
}
