// Package gitexport wraps git's plumbing commands as external
// collaborators (spec.md section 6): hash-object, mktree, commit-tree,
// update-ref and for-each-ref are invoked as subprocesses rather than
// reimplemented, the same way vcs.go treats version-control tools as
// named external commands rather than linked-in logic.
package gitexport

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/alegrigoriev/vss2git/internal/model"
)

// Plumbing is a command-template bundle naming the git subprocess
// invocations the content and ref-writer stages depend on, generalizing
// vcs.go's VCS struct (command-string fields, not linked-in git logic)
// from "one VCS per name" to "one target repository per run".
type Plumbing struct {
	GitDir string // passed as --git-dir to every invocation
	GitBin string // defaults to "git"
}

// New returns a Plumbing bound to gitDir. gitBin defaults to "git" when
// empty.
func New(gitDir, gitBin string) *Plumbing {
	if gitBin == "" {
		gitBin = "git"
	}
	return &Plumbing{GitDir: gitDir, GitBin: gitBin}
}

func (p *Plumbing) command(args ...string) *exec.Cmd {
	full := append([]string{"--git-dir", p.GitDir}, args...)
	return exec.Command(p.GitBin, full...)
}

// HashObject writes data as a git blob and returns its object id
// (spec.md section 6's hasher collaborator contract: bytes on stdin,
// object id on stdout). Satisfies content.Hasher.
func (p *Plumbing) HashObject(data []byte) (string, error) {
	cmd := p.command("hash-object", "-w", "--stdin")
	cmd.Stdin = bytes.NewReader(data)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("gitexport: hash-object: %w: %s", err, errBuf.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// TreeEntry is one line fed to "git mktree".
type TreeEntry struct {
	Mode string
	Type string // "blob" or "tree"
	OID  string
	Name string
}

// MakeTree writes a tree object from entries and returns its object id.
func (p *Plumbing) MakeTree(entries []TreeEntry) (string, error) {
	var in bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&in, "%s %s %s\t%s\n", e.Mode, e.Type, e.OID, e.Name)
	}
	cmd := p.command("mktree")
	cmd.Stdin = &in
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("gitexport: mktree: %w: %s", err, errBuf.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// CommitTree creates a commit object from a CommitDescriptor (already
// resolved by the engine: tree id, parents, identity, message) and
// returns its object id.
func (p *Plumbing) CommitTree(c *model.CommitDescriptor) (string, error) {
	args := []string{"commit-tree", c.TreeID}
	for _, parent := range c.ParentIDs {
		args = append(args, "-p", parent)
	}
	cmd := p.command(args...)
	cmd.Stdin = strings.NewReader(c.Message)
	cmd.Env = append(cmd.Env,
		"GIT_AUTHOR_NAME="+c.AuthorName,
		"GIT_AUTHOR_EMAIL="+c.AuthorEmail,
		"GIT_AUTHOR_DATE="+c.When.Format("2006-01-02T15:04:05-0700"),
		"GIT_COMMITTER_NAME="+c.CommitterName,
		"GIT_COMMITTER_EMAIL="+c.CommitterEmail,
		"GIT_COMMITTER_DATE="+c.When.Format("2006-01-02T15:04:05-0700"),
	)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("gitexport: commit-tree: %w: %s", err, errBuf.String())
	}
	return strings.TrimSpace(out.String()), nil
}

// UpdateRef sets ref to point at commitID (spec.md section 4.7).
func (p *Plumbing) UpdateRef(ref, commitID string) error {
	cmd := p.command("update-ref", ref, commitID)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gitexport: update-ref %s: %w: %s", ref, err, errBuf.String())
	}
	return nil
}

// DeleteRef removes ref entirely (used when pruning stale refs, spec.md
// section 4.7).
func (p *Plumbing) DeleteRef(ref string) error {
	cmd := p.command("update-ref", "-d", ref)
	var errBuf bytes.Buffer
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gitexport: update-ref -d %s: %w: %s", ref, err, errBuf.String())
	}
	return nil
}

// ForEachRef lists refs under prefix, for prune/append-namespace
// bookkeeping (spec.md section 4.7).
func (p *Plumbing) ForEachRef(prefix string) ([]string, error) {
	cmd := p.command("for-each-ref", "--format=%(refname)", prefix)
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("gitexport: for-each-ref %s: %w: %s", prefix, err, errBuf.String())
	}
	var refs []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}
