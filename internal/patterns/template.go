package patterns

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// varRefRE matches $Name, ${Name}, $(Name) and the numbered equivalents
// $N, ${N}, $(N).
var varRefRE = regexp.MustCompile(`\$(\d+)|\$\{(\w+)\}|\$\((\w+)\)|\$(\w+)`)

// ExpandVars resolves $Name/${Name}/$(Name) references against vars,
// detecting circular references via a depth-limited, visited-set walk.
// Circular references are a fatal ConfigError per spec.md section 4.1.
func ExpandVars(text string, vars map[string]string) (string, error) {
	return expandVarsVisiting(text, vars, map[string]bool{})
}

func expandVarsVisiting(text string, vars map[string]string, visiting map[string]bool) (string, error) {
	var outErr error
	result := varRefRE.ReplaceAllStringFunc(text, func(match string) string {
		if outErr != nil {
			return match
		}
		sub := varRefRE.FindStringSubmatch(match)
		// sub[1] is a bare numeric positional ref, not a variable; leave
		// it for SubstituteTemplate to handle.
		if sub[1] != "" {
			return match
		}
		name := firstNonEmpty(sub[2], sub[3], sub[4])
		if visiting[name] {
			outErr = fmt.Errorf("circular variable reference on %q", name)
			return match
		}
		val, ok := vars[name]
		if !ok {
			return match
		}
		visiting[name] = true
		expanded, err := expandVarsVisiting(val, vars, visiting)
		delete(visiting, name)
		if err != nil {
			outErr = err
			return match
		}
		return expanded
	})
	if outErr != nil {
		return "", outErr
	}
	return result, nil
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

// SubstituteTemplate replaces $N/${N}/$(N) positional references in
// template with the N-th capture (1-based, in source order) and resolves
// any remaining $Name/${Name}/$(Name) variable references against vars.
func SubstituteTemplate(template string, captures []string, vars map[string]string) (string, error) {
	var outErr error
	withPositional := varRefRE.ReplaceAllStringFunc(template, func(match string) string {
		sub := varRefRE.FindStringSubmatch(match)
		num := sub[1]
		if num == "" {
			// ${N} and $(N) land in the braced groups; treat them as
			// positional when the name is all digits.
			if d := firstNonEmpty(sub[2], sub[3]); d != "" {
				if _, err := strconv.Atoi(d); err == nil {
					num = d
				}
			}
		}
		if num == "" {
			return match // variable reference, handled below
		}
		n, err := strconv.Atoi(num)
		if err != nil || n < 1 || n > len(captures) {
			outErr = fmt.Errorf("template %q references capture $%d, only %d available", template, n, len(captures))
			return match
		}
		return captures[n-1]
	})
	if outErr != nil {
		return "", outErr
	}
	return ExpandVars(withPositional, vars)
}

// SplitRefName ensures a produced ref name carries the "refs/" prefix
// required by spec.md section 4.3.
func SplitRefName(name string) string {
	if strings.HasPrefix(name, "refs/") {
		return name
	}
	return "refs/" + name
}
