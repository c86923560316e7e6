package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alegrigoriev/vss2git/internal/authorsmap"
	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/content"
	"github.com/alegrigoriev/vss2git/internal/gitexport"
	"github.com/alegrigoriev/vss2git/internal/model"
	"github.com/alegrigoriev/vss2git/internal/vssfeed"
)

// fakeGit is a deterministic, in-memory stand-in for gitexport.Plumbing:
// blob/tree/commit ids are content-addressed hashes of their inputs, so
// assertions can compare ids without invoking a real git subprocess.
type fakeGit struct {
	blobs   map[string][]byte
	trees   map[string][]gitexport.TreeEntry
	commits map[string]*model.CommitDescriptor
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		blobs:   map[string][]byte{},
		trees:   map[string][]gitexport.TreeEntry{},
		commits: map[string]*model.CommitDescriptor{},
	}
}

func fakeHash(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (g *fakeGit) HashObject(data []byte) (string, error) {
	id := fakeHash("blob", string(data))
	g.blobs[id] = data
	return id, nil
}

func (g *fakeGit) MakeTree(entries []gitexport.TreeEntry) (string, error) {
	parts := []string{"tree"}
	for _, e := range entries {
		parts = append(parts, e.Mode, e.Type, e.OID, e.Name)
	}
	id := fakeHash(parts...)
	g.trees[id] = entries
	return id, nil
}

func (g *fakeGit) CommitTree(c *model.CommitDescriptor) (string, error) {
	id := fakeHash(append([]string{"commit", c.TreeID}, c.ParentIDs...)...)
	g.commits[id] = c
	return id, nil
}

func newTestConfig(t *testing.T) *config.ConfigModel {
	t.Helper()
	cfg, warnings, err := config.Load(config.LoadOptions{})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("config.Load warnings: %v", warnings)
	}
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.ConfigModel, git *fakeGit) *Engine {
	t.Helper()
	return New(cfg, config.NewProjectFilter(nil), git, nil, nil, content.NoopReindenter{}, Options{
		HashWorkers: 2,
	})
}

// TestSimpleTrunkCommit covers spec.md's acceptance scenario 1: a single
// file added under trunk produces one commit on refs/heads/main with a
// 644 blob and an author falling back to "<user>@localhost".
func TestSimpleTrunkCommit(t *testing.T) {
	cfg := newTestConfig(t)
	git := newFakeGit()
	eng := newTestEngine(t, cfg, git)

	feed := vssfeed.NewMemory([]model.Revision{
		{
			Number:    1,
			Author:    "alice",
			Timestamp: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
			Message:   "add a.txt",
			Ops: []model.ChangeOp{
				{Kind: model.OpAddDir, Path: "trunk"},
				{Kind: model.OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
			},
		},
	}, map[string][]byte{
		"c1": []byte("hi\n"),
	})

	result, err := eng.Convert(feed)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(result.Branches) != 1 {
		t.Fatalf("expected 1 branch, got %d", len(result.Branches))
	}
	b := result.Branches[0]
	if b.RefName != "refs/heads/main" {
		t.Fatalf("expected refs/heads/main, got %s", b.RefName)
	}
	if b.HeadCommitID == "" {
		t.Fatalf("expected a commit to be written")
	}
	commit := git.commits[b.HeadCommitID]
	if commit == nil {
		t.Fatalf("no commit recorded for %s", b.HeadCommitID)
	}
	if commit.AuthorEmail != "alice@localhost" {
		t.Errorf("expected alice@localhost, got %s", commit.AuthorEmail)
	}
	if len(commit.ParentIDs) != 0 {
		t.Errorf("expected a rootless commit, got parents %v", commit.ParentIDs)
	}

	entries := git.trees[commit.TreeID]
	if len(entries) != 1 || entries[0].Name != "a.txt" {
		t.Fatalf("expected a single a.txt tree entry, got %+v", entries)
	}
	if entries[0].Mode != "100644" {
		t.Errorf("expected mode 100644, got %s", entries[0].Mode)
	}
	if string(git.blobs[entries[0].OID]) != "hi\n" {
		t.Errorf("expected blob content %q, got %q", "hi\n", git.blobs[entries[0].OID])
	}
}

// TestAuthorsMapResolvesIdentity exercises --authors-map resolution
// (spec.md section 6) instead of the <username>@localhost fallback.
func TestAuthorsMapResolvesIdentity(t *testing.T) {
	cfg := newTestConfig(t)
	git := newFakeGit()
	eng := newTestEngine(t, cfg, git)

	path := filepath.Join(t.TempDir(), "authors.json")
	if err := os.WriteFile(path, []byte(`{"alice":{"Name":"Alice A","Email":"alice@example.com"}}`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	authors, err := authorsmap.Load(path)
	if err != nil {
		t.Fatalf("authorsmap.Load: %v", err)
	}
	eng.Authors = authors

	feed := vssfeed.NewMemory([]model.Revision{
		{
			Number:  1,
			Author:  "alice",
			Message: "add",
			Ops: []model.ChangeOp{
				{Kind: model.OpAddDir, Path: "trunk"},
				{Kind: model.OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
			},
		},
	}, map[string][]byte{"c1": []byte("x")})

	result, err := eng.Convert(feed)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	b := result.Branches[0]
	commit := git.commits[b.HeadCommitID]
	if commit.AuthorEmail != "alice@example.com" {
		t.Errorf("expected mapped identity alice@example.com, got %s", commit.AuthorEmail)
	}
	if commit.AuthorName != "Alice A" {
		t.Errorf("expected mapped name Alice A, got %s", commit.AuthorName)
	}
}

// TestIgnoreFilesExcludesMatchingPath covers spec.md section 4.4 step 4:
// a file matching <IgnoreFiles> never reaches the tree. The owning
// project must carry both the MapPath rule that creates the branch and
// the IgnoreFiles rule, since a branch's effective rules come from
// whichever project's MapPath actually mapped it (spec.md section 4.3).
func TestIgnoreFilesExcludesMatchingPath(t *testing.T) {
	xmlDoc := `<Projects>
		<Project Name="p" Path="**">
			<MapPath Path="trunk" Refname="refs/heads/main"/>
			<IgnoreFiles>trunk/*.tmp</IgnoreFiles>
		</Project>
	</Projects>`
	cfg, warnings, err := config.Load(config.LoadOptions{XML: []byte(xmlDoc), SuppressDefaults: true})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("config.Load warnings: %v", warnings)
	}

	git := newFakeGit()
	eng := newTestEngine(t, cfg, git)

	feed := vssfeed.NewMemory([]model.Revision{
		{
			Number:  1,
			Author:  "bob",
			Message: "add files",
			Ops: []model.ChangeOp{
				{Kind: model.OpAddDir, Path: "trunk"},
				{Kind: model.OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
				{Kind: model.OpAddFile, Path: "trunk/scratch.tmp", ContentID: "c2"},
			},
		},
	}, map[string][]byte{"c1": []byte("keep"), "c2": []byte("drop")})

	result, err := eng.Convert(feed)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	b := result.Branches[0]
	commit := git.commits[b.HeadCommitID]
	entries := git.trees[commit.TreeID]
	if len(entries) != 1 || entries[0].Name != "a.txt" {
		t.Fatalf("expected only a.txt to survive IgnoreFiles, got %+v", entries)
	}
}

// TestSkipCommitCarriesMessageForward covers spec.md section 4.4 step 5:
// a revision matched by <SkipCommit> contributes its message to the next
// retained commit instead of producing its own.
func TestSkipCommitCarriesMessageForward(t *testing.T) {
	xmlDoc := `<Projects>
		<Project Name="p" Path="**">
			<MapPath Path="trunk" Refname="refs/heads/main"/>
			<SkipCommit Revs="2"/>
		</Project>
	</Projects>`
	cfg, warnings, err := config.Load(config.LoadOptions{XML: []byte(xmlDoc), SuppressDefaults: true})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("config.Load warnings: %v", warnings)
	}

	git := newFakeGit()
	eng := newTestEngine(t, cfg, git)

	feed := vssfeed.NewMemory([]model.Revision{
		{
			Number:  1,
			Author:  "bob",
			Message: "first",
			Ops: []model.ChangeOp{
				{Kind: model.OpAddDir, Path: "trunk"},
				{Kind: model.OpAddFile, Path: "trunk/a.txt", ContentID: "c1"},
			},
		},
		{
			Number:  2,
			Author:  "bob",
			Message: "intermediate tweak",
			Ops: []model.ChangeOp{
				{Kind: model.OpModifyFile, Path: "trunk/a.txt", ContentID: "c2"},
			},
		},
		{
			Number:  3,
			Author:  "bob",
			Message: "final",
			Ops: []model.ChangeOp{
				{Kind: model.OpModifyFile, Path: "trunk/a.txt", ContentID: "c3"},
			},
		},
	}, map[string][]byte{
		"c1": []byte("v1"),
		"c2": []byte("v2"),
		"c3": []byte("v3"),
	})

	result, err := eng.Convert(feed)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	b := result.Branches[0]
	if len(b.Commits) != 2 {
		t.Fatalf("expected 2 commits (r2 folded into r3), got %d", len(b.Commits))
	}
	last := b.Commits[len(b.Commits)-1]
	if last.Revision != 3 {
		t.Fatalf("expected last recorded commit at r3, got r%d", last.Revision)
	}
	const want = "intermediate tweak\nfinal"
	if last.Message != want {
		t.Errorf("expected carried-over r2 message joined with a single newline, got %q, want %q", last.Message, want)
	}
}
