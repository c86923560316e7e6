package engine

import (
	"strconv"
	"strings"
)

// matchesRev reports whether revNumber/symbolID satisfies a rule's
// Rev/RevID attributes (spec.md section 6: <IgnoreFiles>/<DeletePath>/
// <AddFile>/<CopyPath>/<SkipCommit> "their Rev/RevId matches"). Rev is
// empty, a single revision number, or an inclusive "N-M" range; RevID
// matches the VSS symbolic id exactly. Both empty means the rule applies
// to every revision; otherwise the rule matches when RevID matches or rev
// falls within a non-empty Rev.
func matchesRev(rev int, symbolID, revSpec, revIDSpec string) bool {
	if revSpec == "" && revIDSpec == "" {
		return true
	}
	if revIDSpec != "" && revIDSpec == symbolID {
		return true
	}
	if revSpec == "" {
		return false
	}
	if lo, hi, ok := parseRevRange(revSpec); ok {
		return rev >= lo && rev <= hi
	}
	return false
}

func parseRevRange(spec string) (lo, hi int, ok bool) {
	spec = strings.TrimSpace(spec)
	if idx := strings.IndexByte(spec, '-'); idx > 0 {
		a, err1 := strconv.Atoi(strings.TrimSpace(spec[:idx]))
		b, err2 := strconv.Atoi(strings.TrimSpace(spec[idx+1:]))
		if err1 == nil && err2 == nil {
			return a, b, true
		}
		return 0, 0, false
	}
	n, err := strconv.Atoi(spec)
	if err != nil {
		return 0, 0, false
	}
	return n, n, true
}
