// Package engine implements the revision stream consumer (spec.md
// section 4.4): it drives the ProjectTree, mapper, branch registry and
// content pipeline from an external vssfeed.Feed, the way svnread.go
// drives reposurgeon's Repository from a decoded SVN dumpfile.
package engine

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alegrigoriev/vss2git/internal/config"
)

// changeSummary tallies the operations a revision applied to one branch's
// subtree, for the synthesized summary line (spec.md section 4.5).
type changeSummary struct {
	added, changed, deleted, renamed []string
}

func (s changeSummary) empty() bool {
	return len(s.added) == 0 && len(s.changed) == 0 && len(s.deleted) == 0 && len(s.renamed) == 0
}

// synthesize renders a one-paragraph summary of a changeSummary, used
// both as a full message and as a subject line (spec.md section 4.5).
func (s changeSummary) synthesize() string {
	var parts []string
	addPart := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		sort.Strings(items)
		parts = append(parts, fmt.Sprintf("%s: %s", label, strings.Join(items, ", ")))
	}
	addPart("added", s.added)
	addPart("changed", s.changed)
	addPart("deleted", s.deleted)
	addPart("renamed", s.renamed)
	if len(parts) == 0 {
		return "(no changes)"
	}
	return strings.Join(parts, "; ")
}

// editMsgChain runs an ordered sequence of EditMsgRule substitutions over
// a message, stopping after the first successful Final="Yes" rule
// (spec.md section 4.5).
func editMsgChain(message string, rules []config.EditMsgRule) (string, error) {
	for _, rule := range rules {
		re, err := regexp.Compile("(?m)" + rule.Pattern)
		if err != nil {
			return "", fmt.Errorf("engine: EditMsg pattern %q: %w", rule.Pattern, err)
		}
		max := rule.Max
		if max <= 0 {
			max = -1 // regexp.ReplaceAll semantics: replace every match
		}
		before := message
		message = replaceN(re, message, rule.Replace, max)
		if rule.Final && message != before {
			break
		}
	}
	return message, nil
}

// replaceN replaces at most n matches of re in s with repl (regexp-style
// $1 backreferences), or all matches when n < 0.
func replaceN(re *regexp.Regexp, s, repl string, n int) string {
	if n < 0 {
		return re.ReplaceAllString(s, repl)
	}
	count := 0
	return re.ReplaceAllStringFunc(s, func(match string) string {
		if count >= n {
			return match
		}
		count++
		sub := re.ReplaceAllString(match, repl)
		return sub
	})
}

// assembleMessage implements spec.md section 4.5's full pipeline: raw VSS
// message -> MapPath-scope EditMsg -> Project-scope -> Default-scope
// (already folded into p.EditMsg in that order by the config loader,
// MapPath's own rules passed separately since they are specific to the
// directory, not the whole project) -> synthesized-summary insertion ->
// carry-over prepend. Taglines are added afterwards by appendTaglines.
func assembleMessage(raw string, mapPathEditMsg, projectEditMsg []config.EditMsgRule, summary changeSummary, carryOver string) (string, error) {
	message := raw
	var err error
	message, err = editMsgChain(message, mapPathEditMsg)
	if err != nil {
		return "", err
	}
	message, err = editMsgChain(message, projectEditMsg)
	if err != nil {
		return "", err
	}

	if strings.HasPrefix(message, "\n\n") {
		lines := strings.SplitN(message, "\n", 3)
		rest := ""
		if len(lines) == 3 {
			rest = lines[2]
		}
		message = summary.synthesize() + "\n" + rest
	}
	if strings.TrimSpace(message) == "" {
		message = summary.synthesize()
	}
	if carryOver != "" {
		message = carryOver + "\n" + message
	}
	return message, nil
}

// Taglines controls which taglines appendTaglines appends (spec.md section
// 4.5/6: --decorate-commit-message {revision-id|change-id}, either or
// both may be requested).
type Taglines struct {
	RevisionID bool
	ChangeID   bool
}

// appendTaglines appends "VSS-revision: <n>" and/or a computed
// "Change-Id:" line: a SHA-1 over the comma-joined parent ids, the author
// email, the UTC commit time and the message. The author's display name is
// not part of the hash.
func appendTaglines(message string, rev int, parents []string, authorEmail string, when time.Time, tl Taglines) string {
	if !tl.RevisionID && !tl.ChangeID {
		return message
	}
	var lines []string
	if tl.RevisionID {
		lines = append(lines, fmt.Sprintf("VSS-revision: %d", rev))
	}
	if tl.ChangeID {
		lines = append(lines, "Change-Id: "+changeID(parents, authorEmail, when, message))
	}
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}
	return message + "\n" + strings.Join(lines, "\n") + "\n"
}

func changeID(parents []string, authorEmail string, when time.Time, message string) string {
	h := sha1.New()
	h.Write([]byte(strings.Join(parents, ",")))
	h.Write([]byte(authorEmail))
	h.Write([]byte(when.UTC().Format(time.RFC3339)))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
