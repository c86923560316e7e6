package gitexport

import (
	"strings"

	"github.com/alegrigoriev/vss2git/internal/model"
)

// RefWriter emits branch/tag/revision refs and prunes stale ones at end
// of run (spec.md section 4.7).
type RefWriter struct {
	plumbing   refBackend
	AppendNS   string // --append-to-refs namespace, empty disables
	PruneNS    []string
}

// refBackend is the subset of *Plumbing the ref writer needs; an
// interface so tests can substitute a fake without invoking git.
type refBackend interface {
	UpdateRef(ref, commitID string) error
	DeleteRef(ref string) error
	ForEachRef(prefix string) ([]string, error)
}

// NewRefWriter builds a RefWriter over backend, an --append-to-refs
// namespace (empty disables step 1/4), and the prune namespaces collected
// from --prune-refs and per-project Refs attributes.
func NewRefWriter(backend refBackend, appendNS string, pruneNS []string) *RefWriter {
	return &RefWriter{plumbing: backend, AppendNS: appendNS, PruneNS: pruneNS}
}

// Emitted is one ref this run wants to exist, pointing at commitID. Rootless
// reports whether its first commit on this branch had no parent (a
// candidate for reparenting under --append-to-refs).
type Emitted struct {
	RefName  string
	CommitID string
	Rootless bool
}

// Reparent looks up ref under refs/<AppendNS>/<ref-without-refs-prefix>; if
// present and e.Rootless, it returns that existing head with
// shouldReparent true (spec.md section 4.7 step 1). Reparent only resolves
// the head; it does not rewrite the new branch's root commit, and no other
// stage of this pipeline rewrites that commit's parent list either.
func (w *RefWriter) Reparent(e Emitted) (existingHead string, shouldReparent bool) {
	if w.AppendNS == "" || !e.Rootless {
		return "", false
	}
	ns := appendNamespace(w.AppendNS, e.RefName)
	refs, err := w.plumbing.ForEachRef(ns)
	if err != nil || len(refs) == 0 {
		return "", false
	}
	return refs[0], true
}

// Write updates every emitted ref to its final commit id (spec.md section
// 4.7 step 2).
func (w *RefWriter) Write(emitted []Emitted) error {
	for _, e := range emitted {
		if err := w.plumbing.UpdateRef(e.RefName, e.CommitID); err != nil {
			return err
		}
	}
	return nil
}

// Prune deletes refs under the configured prune namespaces that exist in
// the target repository but were not produced by this run (spec.md
// section 4.7 step 3).
func (w *RefWriter) Prune(produced []Emitted) error {
	want := map[string]bool{}
	for _, e := range produced {
		want[e.RefName] = true
	}
	for _, ns := range w.PruneNS {
		existing, err := w.plumbing.ForEachRef(ns)
		if err != nil {
			return err
		}
		for _, ref := range existing {
			if !want[ref] {
				if err := w.plumbing.DeleteRef(ref); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// TransferAppendLeftovers moves refs still sitting under refs/<AppendNS>/
// into their canonical namespace (spec.md section 4.7 step 4), skipping
// any whose canonical name is in claimed (the refs this run emitted): the
// append namespace is a staging area a prior run may have left refs in,
// and refs/<AppendNS>/heads/<x> or refs/<AppendNS>/tags/<x> goes back to
// refs/heads/<x> or refs/tags/<x> (a tail without either marker goes under
// refs/heads) rather than lingering.
func (w *RefWriter) TransferAppendLeftovers(claimed map[string]bool) error {
	if w.AppendNS == "" {
		return nil
	}
	prefix := "refs/" + w.AppendNS + "/"
	leftover, err := w.plumbing.ForEachRef(prefix)
	if err != nil {
		return err
	}
	for _, ref := range leftover {
		canonical := canonicalFromAppend(ref, prefix)
		if claimed[canonical] {
			continue
		}
		head, err := headCommit(w.plumbing, ref)
		if err != nil {
			continue
		}
		if err := w.plumbing.UpdateRef(canonical, head); err != nil {
			return err
		}
		_ = w.plumbing.DeleteRef(ref)
	}
	return nil
}

func headCommit(backend refBackend, ref string) (string, error) {
	refs, err := backend.ForEachRef(ref)
	if err != nil || len(refs) == 0 {
		return "", err
	}
	return refs[0], nil
}

func appendNamespace(ns, refName string) string {
	tail := strings.TrimPrefix(refName, "refs/")
	return "refs/" + ns + "/" + tail
}

func canonicalFromAppend(ref, prefix string) string {
	tail := strings.TrimPrefix(ref, prefix)
	if strings.HasPrefix(tail, "tags/") || strings.HasPrefix(tail, "heads/") {
		return "refs/" + tail
	}
	return "refs/heads/" + tail
}

// CollectPruneNamespaces merges the global --prune-refs value with every
// project's Refs attribute (spec.md section 4.7 step 3), deduplicated.
func CollectPruneNamespaces(global string, projectRefs []string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(ns string) {
		ns = strings.TrimSpace(ns)
		if ns == "" || seen[ns] {
			return
		}
		seen[ns] = true
		out = append(out, ns)
	}
	add(global)
	for _, r := range projectRefs {
		add(r)
	}
	return out
}

// BranchesToEmitted converts settled branch records into Emitted refs
// ready for Write/Prune, skipping branches with no commits.
func BranchesToEmitted(branches []*model.Branch) []Emitted {
	var out []Emitted
	for _, b := range branches {
		if b.HeadCommitID == "" {
			continue
		}
		out = append(out, Emitted{
			RefName:  b.RefName,
			CommitID: b.HeadCommitID,
			Rootless: b.ForkPointID == "",
		})
	}
	return out
}
