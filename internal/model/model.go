// Package model holds the domain types shared across the conversion
// pipeline: the revision stream vocabulary, the virtual ProjectTree, and
// the Branch/commit descriptors that the engine builds from it. These are
// the tagged-variant and identifier-list representations spec.md section 9
// calls for, deliberately avoiding class hierarchies and direct object
// ownership links between commit records.
package model

import "time"

// OpKind tags a ChangeOp's variant, per spec.md section 3.
type OpKind int

const (
	OpAddFile OpKind = iota
	OpModifyFile
	OpDeleteFile
	OpRenameFile
	OpAddDir
	OpDeleteDir
	OpShareFile
	OpLabelPath
)

// ChangeOp is one operation inside a Revision. Only the fields relevant to
// Kind are populated; this mirrors inner.go's FileOp tagged-union rather
// than a type hierarchy.
type ChangeOp struct {
	Kind      OpKind
	Path      string // AddFile/ModifyFile/DeleteFile/AddDir/DeleteDir/LabelPath/ShareFile(dest)
	OldPath   string // RenameFile(old)/ShareFile(source)
	ContentID string // AddFile/ModifyFile stable content identifier
	Label     string // LabelPath
}

// Revision is one record delivered by the external VSS parser (spec.md
// section 3). Revisions arrive in strictly ascending Number order.
type Revision struct {
	Number    int
	SymbolID  string
	Author    string
	Timestamp time.Time
	Message   string
	Ops       []ChangeOp
}

// TreeNode is a node in the virtual ProjectTree: either a directory (with
// Children) or a file (with ContentID set and Children nil).
type TreeNode struct {
	Path           string
	Name           string
	Parent         *TreeNode
	Children       map[string]*TreeNode // nil for files
	ContentID      string               // files only
	CreatedAtRev   int
	DeletedAtRev   int // 0 means not deleted
}

// IsDir reports whether the node is a directory.
func (n *TreeNode) IsDir() bool { return n.Children != nil }

// IsDeleted reports whether the node has been deleted as of the revision
// currently being applied.
func (n *TreeNode) IsDeleted() bool { return n.DeletedAtRev != 0 }

// ProjectTree is the virtual directory tree as of the last applied
// revision (spec.md section 3). The invariant it maintains: the tree
// reachable from Root exactly reproduces the union of surviving additions
// minus deletions up to the current revision.
type ProjectTree struct {
	Root *TreeNode
}

// NewProjectTree creates an empty tree with just the root directory.
func NewProjectTree() *ProjectTree {
	return &ProjectTree{
		Root: &TreeNode{Path: "", Name: "", Children: map[string]*TreeNode{}},
	}
}

// BlobKey is the content-hashing dedup key from spec.md section 3: it is
// sufficient to determine git blob identity because reformatting is path-
// and attribute-sensitive.
type BlobKey struct {
	ContentID        string
	FormatSpecHash   string
	TargetPath       string
	GitAttributesHash string
}

// BranchState is the lifecycle state of a Branch (spec.md section 4.5).
type BranchState int

const (
	StateNonexistent BranchState = iota
	StateActive
	StateDeleted
)

// Branch is identified by its final git refname (spec.md section 3).
type Branch struct {
	RefName        string
	VSSDirectory   string
	State          BranchState
	CreatedAtRev   int
	DeletedAtRev   int
	ParentBranch   *Branch
	ForkPointID    string // commit id, empty if rootless
	HeadCommitID   string
	HeadTreeID     string // tree id of HeadCommitID, for fast-forward detection
	DeleteIfMerged bool
	Commits        []*CommitDescriptor

	// contentIDSetHint caches the content-id multiset of this branch's
	// worktree as of its current head, so the merge/branch detector can
	// compute overlap without replaying the ProjectTree (spec.md section
	// 4.5). It is engine-maintained bookkeeping, not part of the
	// persisted commit record.
	contentIDSetHint map[string]int
}

// SetContentIDHint records the content-id multiset of this branch's
// current worktree.
func (b *Branch) SetContentIDHint(contents map[string]int) {
	b.contentIDSetHint = contents
}

// ContentIDHint returns the last recorded content-id multiset, or nil.
func (b *Branch) ContentIDHint() map[string]int {
	return b.contentIDSetHint
}

// CommitDescriptor is the commit spec.md section 3 describes: produced
// from one revision, carrying the resolved tree hash, parents, identity,
// message, and the labels/revision-refs it must also emit.
type CommitDescriptor struct {
	Revision      int
	Branch        string // refname
	TreeID        string
	ParentIDs     []string
	AuthorName    string
	AuthorEmail   string
	CommitterName string
	CommitterEmail string
	When          time.Time
	Message       string
	Labels        []string
	RevisionRefs  []string
	CommitID      string // filled in once written
}
