package cliutil

import "testing"

func exact(pattern, name string) bool { return pattern == name }

func TestParseListSplitsCommasAndSemicolons(t *testing.T) {
	entries, err := ParseList([]string{"a,b;c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d (%+v)", len(entries), entries)
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Value != want || entries[i].Negate {
			t.Fatalf("entry %d: expected %q, got %+v", i, want, entries[i])
		}
	}
}

func TestParseListNegation(t *testing.T) {
	entries, err := ParseList([]string{"foo,!bar"})
	if err != nil {
		t.Fatal(err)
	}
	if entries[0].Negate || entries[0].Value != "foo" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if !entries[1].Negate || entries[1].Value != "bar" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestParseListPreservesQuotedCommas(t *testing.T) {
	entries, err := ParseList([]string{`"a,b",c`})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d (%+v)", len(entries), entries)
	}
	if entries[0].Value != "a,b" {
		t.Fatalf("expected quoted comma preserved, got %q", entries[0].Value)
	}
}

func TestParseListMultipleOccurrences(t *testing.T) {
	entries, err := ParseList([]string{"a", "b,c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries across occurrences, got %d", len(entries))
	}
}

func TestMatcherAllowsEverythingWithNoEntries(t *testing.T) {
	m := NewMatcher(nil)
	if !m.Allows("anything", exact) {
		t.Fatalf("expected empty matcher to allow everything")
	}
}

func TestMatcherDenyWinsOverAllow(t *testing.T) {
	entries, _ := ParseList([]string{"p1,!p2"})
	m := NewMatcher(entries)
	if !m.Allows("p1", exact) {
		t.Fatalf("expected p1 allowed")
	}
	if m.Allows("p2", exact) {
		t.Fatalf("expected p2 denied")
	}
	if m.Allows("p3", exact) {
		t.Fatalf("expected p3 denied: allow-list present and p3 not in it")
	}
}

func TestMatcherOnlyNegativeEntriesAllowsEverythingElse(t *testing.T) {
	entries, _ := ParseList([]string{"!p2"})
	m := NewMatcher(entries)
	if m.Allows("p2", exact) {
		t.Fatalf("expected p2 denied")
	}
	if !m.Allows("p3", exact) {
		t.Fatalf("expected p3 allowed when only negative entries given")
	}
}
