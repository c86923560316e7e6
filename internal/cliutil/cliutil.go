// Package cliutil tokenizes the repeatable, comma-separated, quote-aware,
// "!"-negatable list flags spec.md section 6 names (`--path-filter`,
// `--project`), generalizing the teacher's shlex-based LineParse command
// tokenizing (reposurgeon.go) from "one shell-like command line" to
// "N repeated flag occurrences, each itself a comma/semicolon list".
package cliutil

import (
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

// Entry is one parsed list element: Negate is true when the element was
// prefixed with "!".
type Entry struct {
	Value  string
	Negate bool
}

// ParseList splits every raw flag occurrence on commas and semicolons,
// honoring shell-style quoting so a quoted value may itself contain a
// comma (spec.md section 6: "--path-filter <glob> (repeatable,
// comma-separated, !-negation supported)"). Flag occurrences are
// concatenated in the order given.
func ParseList(occurrences []string) ([]Entry, error) {
	var out []Entry
	for _, raw := range occurrences {
		fields, err := shlex.Split(normalizeSeparators(raw), true)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			entry := Entry{Value: f}
			if strings.HasPrefix(f, "!") {
				entry.Negate = true
				entry.Value = f[1:]
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// normalizeSeparators rewrites unquoted commas/semicolons to spaces so
// shlex.Split's whitespace tokenizer can be reused for comma-separated
// input, while leaving characters inside quotes untouched.
func normalizeSeparators(s string) string {
	var b strings.Builder
	inSingle, inDouble := false, false
	for _, r := range s {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune(r)
		case r == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteRune(r)
		case (r == ',' || r == ';') && !inSingle && !inDouble:
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Matcher answers whether a value is allowed under a set of Entries:
// matched by any negative entry is denied; otherwise matched by any
// positive entry is allowed; with no positive entries at all, anything
// not denied is allowed (spec.md section 4.1's Combined pattern semantics,
// reused here at the CLI list level).
type Matcher struct {
	entries  []Entry
	hasAllow bool
}

// NewMatcher builds a Matcher from parsed Entries.
func NewMatcher(entries []Entry) *Matcher {
	m := &Matcher{entries: entries}
	for _, e := range entries {
		if !e.Negate {
			m.hasAllow = true
		}
	}
	return m
}

// Allows reports whether name passes the filter, given an equality test
// function supplied by the caller (exact string match for --project,
// glob match for --path-filter).
func (m *Matcher) Allows(name string, eq func(pattern, name string) bool) bool {
	for _, e := range m.entries {
		if e.Negate && eq(e.Value, name) {
			return false
		}
	}
	if !m.hasAllow {
		return true
	}
	for _, e := range m.entries {
		if !e.Negate && eq(e.Value, name) {
			return true
		}
	}
	return false
}
