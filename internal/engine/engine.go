package engine

import (
	"fmt"

	"github.com/alegrigoriev/vss2git/internal/authorsmap"
	"github.com/alegrigoriev/vss2git/internal/branch"
	"github.com/alegrigoriev/vss2git/internal/cliutil"
	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/content"
	"github.com/alegrigoriev/vss2git/internal/gitexport"
	"github.com/alegrigoriev/vss2git/internal/mapper"
	"github.com/alegrigoriev/vss2git/internal/model"
	"github.com/alegrigoriev/vss2git/internal/patterns"
	"github.com/alegrigoriev/vss2git/internal/sha1map"
	"github.com/alegrigoriev/vss2git/internal/vssfeed"
)

// Options carries every CLI-derived setting the engine needs, held as an
// immutable value per the RunContext principle (spec.md section 9):
// nothing here is read from a package-level global.
type Options struct {
	RetabOnly        bool
	NoIndentReformat bool
	Taglines         Taglines
	CreateRevisionRefs bool
	PathFilter       *cliutil.Matcher
	HashWorkers      int
}

// Hasher is the subset of gitexport.Plumbing the engine needs to write
// blob objects; an interface so tests can substitute a fake.
type Hasher interface {
	HashObject(data []byte) (string, error)
}

// GitBackend is the subset of gitexport.Plumbing the engine needs to
// compose trees and commits.
type GitBackend interface {
	Hasher
	MakeTree(entries []gitexport.TreeEntry) (string, error)
	CommitTree(c *model.CommitDescriptor) (string, error)
}

// Engine ties the mapper, config model, branch registry and content
// pipeline together over one vssfeed.Feed (spec.md section 4.4), the way
// svnread.go's streaming parser drives Repository construction from a
// decoded SVN dumpfile.
type Engine struct {
	Config    *config.ConfigModel
	Mapper    *mapper.Mapper
	Filter    *config.ProjectFilter
	Tree      *model.ProjectTree
	Branches  *branch.Registry
	Blobs     *content.BlobCache
	Pool      *content.WorkerPool
	Git       GitBackend
	Hasher    Hasher
	Sha1Map   *sha1map.Map
	Authors   *authorsmap.Map
	Reindenter content.Reindenter
	Options   Options

	feed vssfeed.Feed

	branchProject map[string]*config.Project
	branchMapPath map[string]*config.MapPathRule
	carryOver     map[string]string // branch ref -> pending skip-commit message prefix
	tagRefs       map[string]string // tag ref -> commit id
	revisionRefs  map[string]string // revision ref -> commit id
	warnings      []string
	patternCache  map[string]*patterns.Combined
	literalContent map[string][]byte // synthetic content-id -> bytes, for <AddFile>
}

// fetchContent resolves contentID, consulting literal (<AddFile>-injected)
// content before falling through to the VSS feed.
func (e *Engine) fetchContent(contentID string) ([]byte, error) {
	if b, ok := e.literalContent[contentID]; ok {
		return b, nil
	}
	return e.feed.Fetch(contentID)
}

// New builds an Engine from its already-loaded collaborators.
func New(cfg *config.ConfigModel, filter *config.ProjectFilter, git GitBackend, sha1Map *sha1map.Map, authors *authorsmap.Map, reindenter content.Reindenter, opts Options) *Engine {
	if reindenter == nil {
		reindenter = content.NoopReindenter{}
	}
	cache := content.NewBlobCache()
	return &Engine{
		Config:        cfg,
		Mapper:        mapper.New(cfg, filter),
		Filter:        filter,
		Tree:          model.NewProjectTree(),
		Branches:      branch.NewRegistry(),
		Blobs:         cache,
		Pool:          content.NewWorkerPool(git, cache, opts.HashWorkers),
		Git:           git,
		Hasher:        git,
		Sha1Map:       sha1Map,
		Authors:       authors,
		Reindenter:    reindenter,
		Options:       opts,
		branchProject: map[string]*config.Project{},
		branchMapPath: map[string]*config.MapPathRule{},
		carryOver:     map[string]string{},
		tagRefs:       map[string]string{},
		revisionRefs:  map[string]string{},
		patternCache:  map[string]*patterns.Combined{},
	}
}

// Result is everything Convert produced, ready for gitexport.RefWriter.
type Result struct {
	Branches     []*model.Branch
	TagRefs      map[string]string
	RevisionRefs map[string]string
	Warnings     []string
}

// Convert drives feed to completion, applying every revision to the
// ProjectTree and building commits per spec.md section 4.4.
func (e *Engine) Convert(feed vssfeed.Feed) (*Result, error) {
	e.feed = feed
	for {
		rev, ok, err := feed.Next()
		if err != nil {
			return nil, fmt.Errorf("engine: parser error: %w", err)
		}
		if !ok {
			break
		}
		if err := e.applyRevision(rev); err != nil {
			return nil, err
		}
	}
	return &Result{
		Branches:     e.Branches.All(),
		TagRefs:      e.tagRefs,
		RevisionRefs: e.revisionRefs,
		Warnings:     e.warnings,
	}, nil
}

// applyRevision implements spec.md section 4.4 steps 1-6 for one revision.
func (e *Engine) applyRevision(rev model.Revision) error {
	filtered := e.filterOps(rev.Ops)
	e.Tree.Apply(rev.Number, filtered)

	touched := map[string]bool{}
	var labels []model.ChangeOp
	for _, op := range filtered {
		switch op.Kind {
		case model.OpAddDir:
			e.maybeCreateBranch(op.Path, rev.Number)
		case model.OpLabelPath:
			labels = append(labels, op)
		}
		if ref := e.owningBranch(op.Path); ref != "" {
			touched[ref] = true
		}
		if op.Kind == model.OpRenameFile || op.Kind == model.OpDeleteFile {
			if ref := e.owningBranch(op.OldPath); ref != "" {
				touched[ref] = true
			}
		}
	}

	e.applyProjectDirectives(rev)

	if e.skipCommit(rev) {
		e.carryForward(rev, touched)
		return nil
	}

	var refs []string
	for ref := range touched {
		refs = append(refs, ref)
	}
	sortStrings(refs)
	for _, ref := range refs {
		if err := e.commitBranch(ref, rev, filtered); err != nil {
			return err
		}
	}
	for _, op := range labels {
		if err := e.applyLabel(op, rev); err != nil {
			return err
		}
	}
	if e.Options.CreateRevisionRefs {
		for _, ref := range refs {
			b := e.Branches.Current(ref)
			if b != nil && b.HeadCommitID != "" {
				e.revisionRefs[fmt.Sprintf("refs/revisions/%s/r%d", shortRef(ref), rev.Number)] = b.HeadCommitID
			}
		}
	}
	return nil
}

// filterOps drops operations on paths excluded by --path-filter (spec.md
// section 4.4: "Filtered-out paths are as if absent from the revision").
func (e *Engine) filterOps(ops []model.ChangeOp) []model.ChangeOp {
	if e.Options.PathFilter == nil {
		return ops
	}
	var out []model.ChangeOp
	for _, op := range ops {
		if e.Options.PathFilter.Allows(op.Path, e.globEq) {
			out = append(out, op)
		}
	}
	return out
}

// globEq compiles (and caches) a --path-filter glob on first use; path
// filters reuse the same glob syntax as the rest of the config model.
func (e *Engine) globEq(pattern, name string) bool {
	c, ok := e.patternCache[pattern]
	if !ok {
		compiled, err := patterns.CompileCombined(pattern)
		if err != nil {
			e.patternCache[pattern] = nil
			return false
		}
		c = compiled
		e.patternCache[pattern] = c
	}
	if c == nil {
		return false
	}
	matched, _ := c.Match(name)
	return matched
}

// maybeCreateBranch resolves a newly observed directory through the
// mapper; if it maps to a fresh ref, allocates a Branch and runs the
// merge/branch detector (spec.md section 4.4 step 2, section 4.5).
func (e *Engine) maybeCreateBranch(path string, rev int) {
	decision, err := e.Mapper.Resolve(path)
	if err != nil {
		e.warnings = append(e.warnings, err.Error())
		return
	}
	if decision.Outcome != mapper.Mapped {
		return
	}
	if e.Branches.Current(decision.RefName) != nil {
		return
	}
	b := e.Branches.Create(decision.RefName, path, rev)
	e.branchProject[decision.RefName] = decision.Project
	e.branchMapPath[decision.RefName] = decision.MapPathRule

	contents := e.Tree.ContentIDMultiset(path)
	if parent := e.Branches.FindForkPoint(contents, decision.RefName); parent != nil {
		b.ParentBranch = parent
		b.ForkPointID = parent.HeadCommitID
	}
	branch.RecordHeadContents(b, contents)
}

// owningBranch returns the refname of the active branch whose
// VSSDirectory is the longest prefix of path, or "" if none.
func (e *Engine) owningBranch(path string) string {
	var best *model.Branch
	for _, b := range e.Branches.ActiveHeads() {
		if isUnderOrEqual(b.VSSDirectory, path) {
			if best == nil || len(b.VSSDirectory) > len(best.VSSDirectory) {
				best = b
			}
		}
	}
	if best == nil {
		return ""
	}
	return best.RefName
}

func isUnderOrEqual(dir, path string) bool {
	if dir == path {
		return true
	}
	return len(path) > len(dir) && path[:len(dir)] == dir && path[len(dir)] == '/'
}

func shortRef(ref string) string {
	const prefix = "refs/heads/"
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
