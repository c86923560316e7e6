package engine

import (
	"fmt"
	"sort"

	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/content"
	"github.com/alegrigoriev/vss2git/internal/gitexport"
	"github.com/alegrigoriev/vss2git/internal/model"
)

// fileJob pairs a content.Job with the worktree path it will end up at in
// the tree, so results can be reassembled after the worker pool runs.
type fileJob struct {
	job  content.Job
	mode string
}

// collectFileJobs walks dirNode recursively, building one content.Job per
// live file (spec.md section 4.6 steps 1-3). GitAttributesHash is left
// empty: no `.gitattributes`-aware subsystem is named anywhere in
// spec.md, so BlobKey's attributes component is constant for this
// implementation (recorded in DESIGN.md).
func (e *Engine) collectFileJobs(node *model.TreeNode, proj *config.Project, rev int) map[string]fileJob {
	out := map[string]fileJob{}
	var walk func(n *model.TreeNode)
	walk = func(n *model.TreeNode) {
		if n.IsDir() {
			for _, child := range n.Children {
				if child.IsDeleted() {
					continue
				}
				walk(child)
			}
			return
		}
		if e.isIgnored(proj, n.Path, rev) {
			return
		}
		mode := content.ResolveMode(proj.Chmod, n.Path)
		spec := content.ResolveFormat(proj.Formatting, n.Path, e.Options.RetabOnly, e.Options.NoIndentReformat)
		out[n.Path] = fileJob{
			job: content.Job{
				Key: model.BlobKey{
					ContentID:     n.ContentID,
					FormatSpecHash: spec.Hash(),
					TargetPath:    n.Path,
				},
				Path:     n.Path,
				Reindent: e.Reindenter,
				Spec:     spec,
			},
			mode: mode,
		}
	}
	walk(node)
	return out
}

// hashBlobs resolves oid/mode per worktree path: a persisted sha1-map hit
// (spec.md section 4.6 step 3) short-circuits the fetch+hash entirely;
// everything else is fetched from the feed and run through the worker
// pool (section 5's bounded-parallelism hasher pool).
func (e *Engine) hashBlobs(jobs map[string]fileJob) (map[string]gitexport.TreeEntry, error) {
	paths := make([]string, 0, len(jobs))
	for p := range jobs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make(map[string]gitexport.TreeEntry, len(paths))
	var pending []string
	var batch []content.Job
	for _, p := range paths {
		fj := jobs[p]
		if oid, ok := e.sha1FromKey(fj.job.Key); ok {
			out[p] = gitexport.TreeEntry{Mode: fj.mode, Type: "blob", OID: oid, Name: lastComponent(p)}
			continue
		}
		data, err := e.fetchContent(fj.job.Key.ContentID)
		if err != nil {
			return nil, fmt.Errorf("engine: fetch content for %s: %w", p, err)
		}
		job := fj.job
		job.Data = data
		pending = append(pending, p)
		batch = append(batch, job)
	}

	results := e.Pool.Run(batch)
	for i, p := range pending {
		r := results[i]
		if r.Err != nil {
			return nil, fmt.Errorf("engine: hash %s: %w", p, r.Err)
		}
		e.recordSha1(jobs[p].job.Key, r.OID)
		out[p] = gitexport.TreeEntry{Mode: jobs[p].mode, Type: "blob", OID: r.OID, Name: lastComponent(p)}
	}
	return out, nil
}

// sha1FromKey consults the persisted sha1-map for a prior result, per
// spec.md section 4.6 step 3.
func (e *Engine) sha1FromKey(k model.BlobKey) (string, bool) {
	if e.Sha1Map == nil {
		return "", false
	}
	return e.Sha1Map.Get(blobKeyHex(k))
}

func (e *Engine) recordSha1(k model.BlobKey, oid string) {
	if e.Sha1Map != nil {
		e.Sha1Map.Put(blobKeyHex(k), oid)
	}
}

func blobKeyHex(k model.BlobKey) string {
	return k.ContentID + ":" + k.FormatSpecHash + ":" + k.TargetPath + ":" + k.GitAttributesHash
}

func lastComponent(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// buildTree composes a git tree object for dirNode, recursing into
// subdirectories bottom-up and inserting an EmptyDirPlaceholder file
// (spec.md section 4.6) into any directory that would otherwise be empty.
func (e *Engine) buildTree(dirNode *model.TreeNode, proj *config.Project, blobs map[string]gitexport.TreeEntry) (string, error) {
	var entries []gitexport.TreeEntry
	names := make([]string, 0, len(dirNode.Children))
	for name, child := range dirNode.Children {
		if child.IsDeleted() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		child := dirNode.Children[name]
		if child.IsDir() {
			oid, err := e.buildTree(child, proj, blobs)
			if err != nil {
				return "", err
			}
			entries = append(entries, gitexport.TreeEntry{Mode: "040000", Type: "tree", OID: oid, Name: name})
		} else {
			entry, ok := blobs[child.Path]
			if !ok {
				continue // filtered by <IgnoreFiles>
			}
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 && proj.EmptyDirPlaceholder != "" {
		oid, err := e.Hasher.HashObject(nil)
		if err != nil {
			return "", err
		}
		entries = append(entries, gitexport.TreeEntry{Mode: "100644", Type: "blob", OID: oid, Name: proj.EmptyDirPlaceholder})
	}
	return e.Git.MakeTree(entries)
}

// isIgnored reports whether path is excluded from this revision's commit
// by a matching <IgnoreFiles> rule (spec.md section 4.4 step 4).
func (e *Engine) isIgnored(proj *config.Project, path string, rev int) bool {
	for _, rule := range proj.IgnoreFiles {
		if !matchesRev(rev, "", rule.Rev, rule.RevID) {
			continue
		}
		if ok, _ := rule.Pattern.Match(path); ok {
			return true
		}
	}
	return false
}
