package engine

import (
	"fmt"

	"github.com/alegrigoriev/vss2git/internal/authorsmap"
	"github.com/alegrigoriev/vss2git/internal/branch"
	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/model"
)

// commitBranch builds and writes one commit for ref from the current
// ProjectTree state (spec.md section 4.4 step 6, section 4.6, section
// 4.5's message assembly).
func (e *Engine) commitBranch(ref string, rev model.Revision, ops []model.ChangeOp) error {
	b := e.Branches.Current(ref)
	if b == nil {
		return nil
	}
	proj := e.branchProject[ref]
	if proj == nil {
		proj = &config.Project{}
	}
	dirNode := e.Tree.Lookup(b.VSSDirectory)
	if dirNode == nil {
		return nil // branch directory itself was deleted this revision
	}

	jobs := e.collectFileJobs(dirNode, proj, rev.Number)
	blobs, err := e.hashBlobs(jobs)
	if err != nil {
		return err
	}
	treeID, err := e.buildTree(dirNode, proj, blobs)
	if err != nil {
		return err
	}

	if ff := e.fastForwardTarget(ref, treeID); ff != nil {
		b.HeadCommitID = ff.HeadCommitID
		b.HeadTreeID = ff.HeadTreeID
		return nil
	}

	var parents []string
	switch {
	case b.HeadCommitID != "":
		parents = []string{b.HeadCommitID}
	case b.ForkPointID != "":
		parents = []string{b.ForkPointID}
	}

	identity := e.resolveAuthor(rev.Author)
	summary := summarizeBranchOps(ops, b.VSSDirectory)
	var mapPathEditMsg []config.EditMsgRule
	if mp := e.branchMapPath[ref]; mp != nil {
		mapPathEditMsg = mp.EditMsg
	}
	message, err := assembleMessage(rev.Message, mapPathEditMsg, proj.EditMsg, summary, e.carryOver[ref])
	if err != nil {
		return err
	}
	delete(e.carryOver, ref)
	message = appendTaglines(message, rev.Number, parents, identity.Email, rev.Timestamp, e.Options.Taglines)

	desc := &model.CommitDescriptor{
		Revision:       rev.Number,
		Branch:         ref,
		TreeID:         treeID,
		ParentIDs:      parents,
		AuthorName:     identity.Name,
		AuthorEmail:    identity.Email,
		CommitterName:  identity.Name,
		CommitterEmail: identity.Email,
		When:           rev.Timestamp,
		Message:        message,
	}
	commitID, err := e.Git.CommitTree(desc)
	if err != nil {
		return fmt.Errorf("engine: commit-tree for %s at r%d: %w", ref, rev.Number, err)
	}
	desc.CommitID = commitID
	b.HeadCommitID = commitID
	b.HeadTreeID = treeID
	b.Commits = append(b.Commits, desc)

	contents := e.Tree.ContentIDMultiset(b.VSSDirectory)
	e.recordBranchContents(b, contents)
	return nil
}

// fastForwardTarget implements spec.md section 4.5's fast-forward rule:
// if this branch's next tree already matches another active branch's
// current head tree, no new commit is written; the branch simply adopts
// that head.
func (e *Engine) fastForwardTarget(selfRef, treeID string) *model.Branch {
	for _, other := range e.Branches.ActiveHeads() {
		if other.RefName == selfRef {
			continue
		}
		if branch.FastForwardCandidate(treeID, other, other.HeadTreeID) {
			return other
		}
	}
	return nil
}

func (e *Engine) resolveAuthor(username string) authorsmap.Identity {
	if e.Authors == nil {
		return authorsmap.Identity{Name: username, Email: username + "@localhost"}
	}
	return e.Authors.Resolve(username)
}

// summarizeBranchOps tallies the ops under dir into a changeSummary for
// the synthesized-message fallback (spec.md section 4.5).
func summarizeBranchOps(ops []model.ChangeOp, dir string) changeSummary {
	var s changeSummary
	for _, op := range ops {
		under := isUnderOrEqual(dir, op.Path) || (op.OldPath != "" && isUnderOrEqual(dir, op.OldPath))
		if !under {
			continue
		}
		switch op.Kind {
		case model.OpAddFile, model.OpAddDir, model.OpShareFile:
			s.added = append(s.added, op.Path)
		case model.OpModifyFile:
			s.changed = append(s.changed, op.Path)
		case model.OpDeleteFile, model.OpDeleteDir:
			s.deleted = append(s.deleted, op.Path)
		case model.OpRenameFile:
			s.renamed = append(s.renamed, op.OldPath+" -> "+op.Path)
		}
	}
	return s
}

// recordBranchContents refreshes the branch's content-id hint used by the
// merge/branch detector for subsequently-created sibling branches
// (spec.md section 4.5).
func (e *Engine) recordBranchContents(b *model.Branch, contents map[string]int) {
	branch.RecordHeadContents(b, contents)
}

// applyLabel resolves a VSS label into a tag ref pointing at the owning
// branch's current head commit (spec.md section 4.3's LabelRef, section
// 4.4 step 5). A label on a path with no owning branch, or on a branch
// that has not yet produced a commit, is recorded as a warning and
// otherwise ignored.
func (e *Engine) applyLabel(op model.ChangeOp, rev model.Revision) error {
	ref := e.owningBranch(op.Path)
	if ref == "" {
		e.warnings = append(e.warnings, fmt.Sprintf("r%d: label %q on unmapped path %s", rev.Number, op.Label, op.Path))
		return nil
	}
	b := e.Branches.Current(ref)
	if b == nil || b.HeadCommitID == "" {
		e.warnings = append(e.warnings, fmt.Sprintf("r%d: label %q on branch %s with no commits yet", rev.Number, op.Label, ref))
		return nil
	}
	proj := e.branchProject[ref]
	tagRef, err := e.Mapper.LabelRef(proj, op.Label)
	if err != nil {
		return fmt.Errorf("engine: label ref for %q: %w", op.Label, err)
	}
	e.tagRefs[tagRef] = b.HeadCommitID
	return nil
}
