package content

import (
	"errors"
	"testing"

	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/model"
	"github.com/alegrigoriev/vss2git/internal/patterns"
)

func mustCombined(t *testing.T, spec string) *patterns.Combined {
	t.Helper()
	c, err := patterns.CompileCombined(spec)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestReformatFixEOLAndTrim(t *testing.T) {
	spec := FormatSpec{FixEOL: true, TrimWhitespace: true}
	out, warnings, err := Reformat("a.txt", []byte("line1  \r\nline2\t\r\n"), spec, NoopReindenter{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "line1\nline2\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for clean CRLF, got %v", warnings)
	}
}

func TestReformatLoneCRWarns(t *testing.T) {
	spec := FormatSpec{FixEOL: true}
	_, warnings, err := Reformat("a.txt", []byte("a\rb\rc"), spec, NoopReindenter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected one lone-CR warning, got %v", warnings)
	}
}

func TestReformatMissingFinalEOL(t *testing.T) {
	spec := FormatSpec{FixLastEOL: true}
	out, warnings, err := Reformat("a.txt", []byte("no newline"), spec, NoopReindenter{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "no newline\n" {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected missing-final-EOL warning, got %v", warnings)
	}
}

func TestRetabOnlyNarrowsPipeline(t *testing.T) {
	rules := []config.FormattingRule{
		{Path: mustCombined(t, "**"), FixEOL: true, Retab: true},
	}
	spec := ResolveFormat(rules, "x.go", true, false)
	if spec.FixEOL || !spec.Retab || !spec.RetabOnly {
		t.Fatalf("expected retab-only spec, got %+v", spec)
	}
}

func TestResolveFormatSkipsNoReindentMatch(t *testing.T) {
	rules := []config.FormattingRule{
		{Path: mustCombined(t, "**"), NoReindent: mustCombined(t, "*.bin"), Retab: true},
		{Path: mustCombined(t, "**")},
	}
	spec := ResolveFormat(rules, "x.bin", false, false)
	if spec.Retab {
		t.Fatalf("expected first rule to be skipped due to NoReindent match")
	}
}

func TestResolveMode(t *testing.T) {
	rules := []config.ChmodRule{
		{Path: mustCombined(t, "*.sh"), Mode: "100755"},
	}
	if got := ResolveMode(rules, "run.sh"); got != "100755" {
		t.Fatalf("expected 100755, got %s", got)
	}
	if got := ResolveMode(rules, "main.go"); got != "100644" {
		t.Fatalf("expected default 100644, got %s", got)
	}
}

type fakeHasher struct {
	calls int
}

func (f *fakeHasher) HashObject(data []byte) (string, error) {
	f.calls++
	return ContentIDOf(data), nil
}

func TestBlobCacheDeduplicates(t *testing.T) {
	cache := NewBlobCache()
	hasher := &fakeHasher{}
	k := model.BlobKey{ContentID: "c1", FormatSpecHash: "f1", TargetPath: "a.txt"}
	compute := func() (string, error) { return hasher.HashObject([]byte("data")) }

	oid1, err := cache.GetOrCompute(k, compute)
	if err != nil {
		t.Fatal(err)
	}
	oid2, err := cache.GetOrCompute(k, compute)
	if err != nil {
		t.Fatal(err)
	}
	if oid1 != oid2 {
		t.Fatalf("expected identical oid from cache, got %s vs %s", oid1, oid2)
	}
	if hasher.calls != 1 {
		t.Fatalf("expected hasher invoked once, got %d", hasher.calls)
	}
}

func TestWorkerPoolRunDeduplicatesAcrossJobs(t *testing.T) {
	cache := NewBlobCache()
	hasher := &fakeHasher{}
	pool := NewWorkerPool(hasher, cache, 4)
	k := model.BlobKey{ContentID: "same", FormatSpecHash: "f", TargetPath: "p"}
	jobs := []Job{
		{Key: k, Path: "p", Data: []byte("hello"), Reindent: NoopReindenter{}},
		{Key: k, Path: "p", Data: []byte("hello"), Reindent: NoopReindenter{}},
	}
	results := pool.Run(jobs)
	if results[0].OID != results[1].OID {
		t.Fatalf("expected identical oids for identical keys")
	}
	if hasher.calls != 1 {
		t.Fatalf("expected one hash call across both jobs, got %d", hasher.calls)
	}
}

type erroringHasher struct{}

func (erroringHasher) HashObject(data []byte) (string, error) {
	return "", errors.New("boom")
}

func TestWorkerPoolPropagatesHashError(t *testing.T) {
	pool := NewWorkerPool(erroringHasher{}, NewBlobCache(), 2)
	jobs := []Job{{Key: model.BlobKey{ContentID: "x"}, Path: "p", Data: []byte("d"), Reindent: NoopReindenter{}}}
	results := pool.Run(jobs)
	if results[0].Err == nil {
		t.Fatalf("expected error from hasher to propagate")
	}
}

func TestSchedulerTopologicalOrder(t *testing.T) {
	s := NewScheduler()
	must := func(n *DAGNode) {
		if err := s.Add(n); err != nil {
			t.Fatal(err)
		}
	}
	must(&DAGNode{ID: "blob:a", Kind: NodeBlob})
	must(&DAGNode{ID: "blob:b", Kind: NodeBlob})
	must(&DAGNode{ID: "tree:root", Kind: NodeTree, DependsOn: []string{"blob:a", "blob:b"}})
	must(&DAGNode{ID: "commit:1", Kind: NodeCommit, DependsOn: []string{"tree:root"}})
	must(&DAGNode{ID: "commit:2", Kind: NodeCommit, DependsOn: []string{"commit:1"}})

	order, err := s.Sort()
	if err != nil {
		t.Fatal(err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if pos["blob:a"] >= pos["tree:root"] || pos["blob:b"] >= pos["tree:root"] {
		t.Fatalf("blobs must precede their tree: %v", order)
	}
	if pos["tree:root"] >= pos["commit:1"] {
		t.Fatalf("tree must precede its commit: %v", order)
	}
	if pos["commit:1"] >= pos["commit:2"] {
		t.Fatalf("parent commit must precede child commit: %v", order)
	}
}

func TestSchedulerDetectsCycle(t *testing.T) {
	s := NewScheduler()
	s.Add(&DAGNode{ID: "a", DependsOn: []string{"b"}})
	s.Add(&DAGNode{ID: "b", DependsOn: []string{"a"}})
	if _, err := s.Sort(); err == nil {
		t.Fatalf("expected cycle error")
	}
}

func TestSchedulerRejectsDuplicateID(t *testing.T) {
	s := NewScheduler()
	if err := s.Add(&DAGNode{ID: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(&DAGNode{ID: "a"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
