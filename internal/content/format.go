// Package content implements the content pipeline (spec.md section 4.6):
// mode/formatting-spec resolution, blob deduplication, parallel hashing,
// and tree/commit composition subject to the dependency DAG of spec.md
// section 5.
package content

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/alegrigoriev/vss2git/internal/config"
)

// FormatSpec is the resolved, path-specific transform pipeline for one
// file (spec.md section 4.6 step 2). Reindent, the embedded indent
// reformatter, is an external collaborator (spec.md section 1); everything
// else here is implemented directly.
type FormatSpec struct {
	FixEOL         bool
	FixLastEOL     bool
	TrimWhitespace bool
	TrimBackslash  bool
	Retab          bool
	Reindent       bool
	RetabOnly      bool // --retab-only: narrows the pipeline to Retab alone
}

// Hash returns an opaque digest of the spec, used as part of BlobKey
// (spec.md section 3) so that two files with identical bytes but
// different formatting behavior never collide.
func (f FormatSpec) Hash() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "eol=%v lastEOL=%v trim=%v backslash=%v retab=%v reindent=%v retabonly=%v",
		f.FixEOL, f.FixLastEOL, f.TrimWhitespace, f.TrimBackslash, f.Retab, f.Reindent, f.RetabOnly)
	sum := sha1.Sum(b.Bytes())
	return hex.EncodeToString(sum[:])
}

// Reindenter is the external indent-reformatter collaborator (spec.md
// section 1): a pure byte-in/byte-out transform whose internal behavior
// is not specified here.
type Reindenter interface {
	Reindent(path string, data []byte) ([]byte, error)
}

// NoopReindenter performs no reformatting; used when --no-indent-reformat
// is set or no Reindenter was configured.
type NoopReindenter struct{}

func (NoopReindenter) Reindent(_ string, data []byte) ([]byte, error) { return data, nil }

// Warning is a non-fatal ContentWarning (spec.md section 7), emitted only
// when the file is subject to formatting.
type Warning struct {
	Path    string
	Message string
}

// ResolveFormat intersects path against the ordered Formatting rules
// (Project, then Default — already folded into p.Formatting by the config
// loader; MapPath rules carry no Formatting of their own). The first rule
// whose Path matches and whose NoReindent does not
// also match wins (spec.md section 4.6 step 2).
func ResolveFormat(rules []config.FormattingRule, path string, retabOnly, noIndentReformat bool) FormatSpec {
	for _, rule := range rules {
		ok, _ := rule.Path.Match(path)
		if !ok {
			continue
		}
		if rule.NoReindent != nil {
			if blocked, _ := rule.NoReindent.Match(path); blocked {
				continue
			}
		}
		spec := FormatSpec{
			FixEOL:         rule.FixEOL,
			FixLastEOL:     rule.FixLastEOL,
			TrimWhitespace: rule.TrimWhitespace,
			TrimBackslash:  rule.TrimBackslash,
			Retab:          rule.Retab,
			Reindent:       !noIndentReformat,
		}
		if retabOnly {
			spec = FormatSpec{Retab: rule.Retab, RetabOnly: true}
		}
		return spec
	}
	return FormatSpec{}
}

// ResolveMode walks ordered Chmod rules (project first, then Default) and
// returns the first match, defaulting to 100644 (spec.md section 4.6 step
// 1).
func ResolveMode(rules []config.ChmodRule, path string) string {
	for _, rule := range rules {
		if ok, _ := rule.Path.Match(path); ok {
			return rule.Mode
		}
	}
	return "100644"
}

// Reformat applies the FixEOL/FixLastEOL/TrimWhitespace/TrimBackslash/
// Retab/Reindent pipeline in that order, collecting ContentWarnings for
// lone CR and missing final EOL (emitted only because the file is subject
// to formatting at all, per spec.md section 4.6 step 4).
func Reformat(path string, data []byte, spec FormatSpec, reindenter Reindenter) ([]byte, []Warning, error) {
	var warnings []Warning
	out := data

	missingFinalEOL := len(out) > 0 && out[len(out)-1] != '\n'

	if spec.FixEOL {
		out = bytes.ReplaceAll(out, []byte("\r\n"), []byte("\n"))
		if bytes.IndexByte(out, '\r') >= 0 {
			out = bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
			warnings = append(warnings, Warning{Path: path, Message: "lone CR converted to LF"})
		}
	}
	if spec.FixLastEOL && len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
		if missingFinalEOL {
			warnings = append(warnings, Warning{Path: path, Message: "missing final EOL added"})
		}
	}
	if spec.TrimWhitespace {
		out = trimTrailingWhitespacePerLine(out)
	}
	if spec.TrimBackslash {
		out = trimTrailingBackslashPerLine(out)
	}
	if spec.Retab {
		out = retabLines(out)
	}
	if !spec.RetabOnly && spec.Reindent && reindenter != nil {
		reindented, err := reindenter.Reindent(path, out)
		if err != nil {
			return nil, warnings, err
		}
		out = reindented
	}
	return out, warnings, nil
}

func trimTrailingWhitespacePerLine(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t\r")
	}
	return bytes.Join(lines, []byte("\n"))
}

func trimTrailingBackslashPerLine(data []byte) []byte {
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		for bytes.HasSuffix(line, []byte("\\")) {
			line = line[:len(line)-1]
		}
		lines[i] = line
	}
	return bytes.Join(lines, []byte("\n"))
}

// retabLines is a conservative leading-whitespace retab: runs of 8 leading
// spaces become a tab. This is deliberately narrow (spec.md scopes full
// reindentation to the external Reindenter); --retab-only engages just
// this pass.
func retabLines(data []byte) []byte {
	const tabWidth = 8
	lines := bytes.Split(data, []byte("\n"))
	for i, line := range lines {
		j := 0
		for j < len(line) && line[j] == ' ' {
			j++
		}
		if j < tabWidth {
			continue
		}
		tabs := j / tabWidth
		rest := j % tabWidth
		var rebuilt bytes.Buffer
		rebuilt.Write(bytes.Repeat([]byte("\t"), tabs))
		rebuilt.Write(bytes.Repeat([]byte(" "), rest))
		rebuilt.Write(line[j:])
		lines[i] = rebuilt.Bytes()
	}
	return bytes.Join(lines, []byte("\n"))
}
