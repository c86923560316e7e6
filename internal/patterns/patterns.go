// Package patterns implements the wildcard glob matcher used throughout
// the config model (spec.md section 4.1): MapPath/UnmapPath/Chmod/
// Formatting/IgnoreFiles path matching, with positional captures usable in
// substitution templates.
//
// Supported syntax: '?' (one char, not '/'), '*' (a run of chars, not '/',
// possibly empty), '**' (any chars including '/', possibly empty), '**/'
// (zero or more whole directory components), '{a,b,c}' alternation
// (recursive), and literal characters. Unix '[...]' ranges are not
// supported, matching the spec.
package patterns

import (
	"regexp"
	"strings"
)

// Pattern is a compiled glob with capture group bookkeeping.
type Pattern struct {
	source      string
	re          *regexp.Regexp
	dirOnly     bool // pattern had a trailing '/'; Match does not consult it, so matches are not limited to directories
	anyDepth    bool // single-component pattern, matches at any depth (gitignore semantics)
	numCaptures int
}

// Compile compiles a single glob pattern (no ';' combination, no '!').
func Compile(pattern string) (*Pattern, error) {
	p := &Pattern{source: pattern}
	src := pattern
	if strings.HasSuffix(src, "/") {
		p.dirOnly = true
		src = strings.TrimSuffix(src, "/")
	}
	if !strings.Contains(src, "/") {
		p.anyDepth = true
	}
	reSrc, n, err := translate(src)
	if err != nil {
		return nil, err
	}
	p.numCaptures = n
	anchored := "^" + reSrc + "$"
	if p.anyDepth {
		// Per git gitignore semantics: a pattern with no internal '/'
		// matches the basename at any depth.
		anchored = "^(?:.*/)?" + reSrc + "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

// translate turns glob syntax into a regexp fragment, returning the number
// of explicit wildcards (each becomes a capture group in source order).
func translate(src string) (string, int, error) {
	var out strings.Builder
	captures := 0
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch c {
		case '*':
			if i+1 < len(runes) && runes[i+1] == '*' {
				if i+2 < len(runes) && runes[i+2] == '/' {
					out.WriteString(`(?:(.*)/)?`)
					captures++
					i += 3
					continue
				}
				out.WriteString(`(.*)`)
				captures++
				i += 2
				continue
			}
			out.WriteString(`([^/]*)`)
			captures++
			i++
		case '?':
			out.WriteString(`([^/])`)
			captures++
			i++
		case '{':
			end := matchingBrace(runes, i)
			if end < 0 {
				out.WriteString(regexp.QuoteMeta(string(c)))
				i++
				continue
			}
			alts := splitTopLevel(string(runes[i+1 : end]))
			out.WriteString("(?:")
			for idx, alt := range alts {
				if idx > 0 {
					out.WriteString("|")
				}
				sub, n, err := translate(alt)
				if err != nil {
					return "", 0, err
				}
				out.WriteString(sub)
				captures += n
			}
			out.WriteString(")")
			i = end + 1
		default:
			out.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	return out.String(), captures, nil
}

func matchingBrace(runes []rune, open int) int {
	depth := 0
	for i := open; i < len(runes); i++ {
		switch runes[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitTopLevel(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// Match reports whether path matches, and if so the ordered list of
// captured substrings (one per wildcard, in source order).
func (p *Pattern) Match(path string) (bool, []string) {
	m := p.re.FindStringSubmatch(path)
	if m == nil {
		return false, nil
	}
	caps := make([]string, 0, len(m)-1)
	for _, g := range m[1:] {
		caps = append(caps, g)
	}
	return true, caps
}

// Combined is a semicolon-separated list of subpatterns, each optionally
// negated with a leading '!'. Tested in order: any matching negative
// subpattern forces no-match; otherwise the first matching positive
// subpattern wins. If every subpattern is negative and none matched, the
// combined pattern matches (implicit trailing "**").
type Combined struct {
	parts []combinedPart
}

type combinedPart struct {
	negate  bool
	pattern *Pattern
}

// CompileCombined compiles a ';'-separated combined pattern.
func CompileCombined(spec string) (*Combined, error) {
	c := &Combined{}
	for _, raw := range strings.Split(spec, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		negate := false
		if strings.HasPrefix(raw, "!") {
			negate = true
			raw = raw[1:]
		}
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		c.parts = append(c.parts, combinedPart{negate: negate, pattern: p})
	}
	return c, nil
}

// Match reports whether path matches the combined pattern, and the
// captures of whichever subpattern decided the match (nil for the
// implicit-trailing-** case).
func (c *Combined) Match(path string) (bool, []string) {
	allNegative := true
	for _, part := range c.parts {
		if !part.negate {
			allNegative = false
			continue
		}
		if ok, _ := part.pattern.Match(path); ok {
			return false, nil
		}
	}
	for _, part := range c.parts {
		if part.negate {
			continue
		}
		if ok, caps := part.pattern.Match(path); ok {
			return true, caps
		}
	}
	return allNegative && len(c.parts) > 0, nil
}
