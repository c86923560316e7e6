package engine

import (
	"fmt"

	"github.com/alegrigoriev/vss2git/internal/mapper"
	"github.com/alegrigoriev/vss2git/internal/model"
)

// applyProjectDirectives implements spec.md section 4.4 step 4: configured
// <IgnoreFiles>/<DeletePath>/<AddFile>/<CopyPath>/<MergePath> rules whose
// Rev/RevId match this revision. IgnoreFiles itself is consulted later, at
// commit-build time, since it is a per-file filter over the tree rather
// than a tree mutation.
func (e *Engine) applyProjectDirectives(rev model.Revision) {
	for _, p := range e.Config.Projects {
		for _, rule := range p.DeletePath {
			if matchesRev(rev.Number, rev.SymbolID, rule.Rev, "") {
				if n := e.Tree.Lookup(rule.Path); n != nil {
					n.DeletedAtRev = rev.Number
				}
			}
		}
		for _, rule := range p.AddFile {
			if matchesRev(rev.Number, rev.SymbolID, rule.Rev, "") {
				e.injectLiteralFile(rule.Path, rule.Content, rev.Number)
			}
		}
		for _, rule := range p.CopyPath {
			if matchesRev(rev.Number, rev.SymbolID, rule.Rev, "") {
				e.linkParent(rule.Source, rule.Dest, false)
			}
		}
		for _, rule := range p.MergePath {
			if matchesRev(rev.Number, rev.SymbolID, rule.Rev, "") {
				e.linkParent(rule.Source, rule.Dest, rule.DeleteIfMerged)
			}
		}
	}
}

// injectLiteralFile implements <AddFile>: inline content has no VSS
// content-id, so a synthetic one derived from the bytes is minted and
// registered with the engine's literal-content side table, which Fetch
// consults before the feed (spec.md section 6).
func (e *Engine) injectLiteralFile(path, content string, rev int) {
	data := []byte(content)
	contentID := "literal:" + contentHash(data)
	if e.literalContent == nil {
		e.literalContent = map[string][]byte{}
	}
	e.literalContent[contentID] = data
	e.Tree.Apply(rev, []model.ChangeOp{{Kind: model.OpAddFile, Path: path, ContentID: contentID}})
}

// linkParent implements <CopyPath>/<MergePath>: the branch owning dest
// gets its parent forced to the branch owning source (spec.md section
// 4.5), overriding whatever the merge/branch detector would have picked.
func (e *Engine) linkParent(source, dest string, deleteIfMerged bool) {
	destRef := e.owningBranch(dest)
	srcRef := e.owningBranch(source)
	if destRef == "" || srcRef == "" || destRef == srcRef {
		return
	}
	destBranch := e.Branches.Current(destRef)
	srcBranch := e.Branches.Current(srcRef)
	if destBranch == nil || srcBranch == nil {
		return
	}
	destBranch.ParentBranch = srcBranch
	destBranch.ForkPointID = srcBranch.HeadCommitID
	destBranch.DeleteIfMerged = deleteIfMerged
}

// skipCommit implements spec.md section 4.4 step 5's gating: a revision
// that matches a <SkipCommit> rule produces no commit of its own unless
// it carries a label (handled separately, still emitted) or introduces a
// new branch (a merge/branch event, which must commit to exist at all).
func (e *Engine) skipCommit(rev model.Revision) bool {
	hasLabel := false
	createsBranch := false
	for _, op := range rev.Ops {
		if op.Kind == model.OpLabelPath {
			hasLabel = true
		}
		if op.Kind == model.OpAddDir {
			if d, err := e.Mapper.Resolve(op.Path); err == nil && d.Outcome == mapper.Mapped {
				createsBranch = true
			}
		}
	}
	if hasLabel || createsBranch {
		return false
	}
	for _, p := range e.Config.Projects {
		for _, rule := range p.SkipCommit {
			if matchesRev(rev.Number, rev.SymbolID, rule.Revs, rule.RevID) {
				return true
			}
		}
	}
	return false
}

// carryForward prepends a skipped revision's message to the next retained
// commit on each touched branch (spec.md section 4.4 step 5).
func (e *Engine) carryForward(rev model.Revision, touched map[string]bool) {
	if rev.Message == "" {
		return
	}
	if len(touched) == 0 {
		return
	}
	for ref := range touched {
		if e.carryOver[ref] == "" {
			e.carryOver[ref] = rev.Message
		} else {
			e.carryOver[ref] = e.carryOver[ref] + "\n" + rev.Message
		}
	}
}

// contentHash is a small local identity computation for literal content:
// a 64-bit FNV hash, distinct from content.ContentIDOf's SHA-1.
func contentHash(data []byte) string {
	return fmt.Sprintf("%x", fnv64(data))
}

func fnv64(data []byte) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range data {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}
