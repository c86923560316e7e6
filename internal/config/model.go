package config

import "github.com/alegrigoriev/vss2git/internal/patterns"

// ReplaceRule is a <Replace From="" To=""/> character substitution,
// applied to ref names only (spec.md section 4.3), never to worktree
// paths.
type ReplaceRule struct {
	From, To string
}

// MapPathRule is a <MapPath> rule. A rule without Refname is an explicit
// unmap (spec.md section 4.3).
type MapPathRule struct {
	Path        *patterns.Combined
	RawPath     string
	Refname     string // template; empty means "explicitly unmapped"
	BlockParent bool
	Rev         string
	RevID       string
	EditMsg     []EditMsgRule // runs before Project- then Default-scope EditMsg
}

// UnmapPathRule is an <UnmapPath> rule: this directory and its descendants
// are blocked from ever becoming a branch of their own.
type UnmapPathRule struct {
	Path        *patterns.Combined
	RawPath     string
	BlockParent bool
}

// MapRefRule rewrites a ref name after MapPath resolution. A rule without
// NewRef deletes (suppresses emission of) the ref.
type MapRefRule struct {
	OldRef *patterns.Combined
	NewRef string // template; empty means "suppress"
}

// EditMsgRule performs one regex substitution pass over a commit message,
// spec.md section 4.5. Max caps the number of substitutions; Final stops
// further edits after the first successful one.
type EditMsgRule struct {
	Pattern string
	Replace string
	Max     int
	Final   bool
}

// SkipCommitRule matches a revision whose message is carried over into the
// next retained commit on the same branch instead of producing its own
// commit (spec.md section 4.4 step 5), unless the revision is labeled or
// would be a merge.
type SkipCommitRule struct {
	Revs  string
	RevID string
}

// InjectFileRule copies an external file into the worktree at a given
// revision (spec.md section 6).
type InjectFileRule struct {
	Source, Dest, Rev string
}

// AddFileRule injects literal inline content at a given revision.
type AddFileRule struct {
	Path, Content, Rev string
}

// DeletePathRule force-deletes a path at a given revision regardless of
// what the VSS stream says.
type DeletePathRule struct {
	Path, Rev string
}

// CopyPathRule overrides branch-parent detection with an explicit link
// (spec.md section 4.5). Default-scope CopyPath rules are ignored per
// spec.md section 4.2.
type CopyPathRule struct {
	Source, Dest, Rev string
}

// MergePathRule is like CopyPathRule but also marks the merged branch as a
// fast-forward/merge candidate for DeleteIfMerged handling.
type MergePathRule struct {
	Source, Dest, Rev string
	DeleteIfMerged    bool
}

// ChmodRule sets the effective git file mode for matching paths (spec.md
// section 4.6 step 1); default is 100644 when nothing matches.
type ChmodRule struct {
	Path *patterns.Combined
	Mode string
}

// IgnoreFilesRule excludes matching paths from a revision's commit
// (spec.md section 4.4 step 4).
type IgnoreFilesRule struct {
	Pattern      *patterns.Combined
	Rev, RevID   string
}

// FormattingRule is intersected against a path to decide whether the
// indent reformatter and related transforms run (spec.md section 4.6 step
// 2). NoReindent, if it also matches, cancels this rule.
type FormattingRule struct {
	Path         *patterns.Combined
	NoReindent   *patterns.Combined
	FixEOL         bool
	FixLastEOL     bool
	TrimWhitespace bool
	TrimBackslash  bool
	Retab          bool
}

// Project is one <Project> (or <Default>, or the hardcoded hidden
// project) scope, fully resolved: inheritance has already been folded in
// at load time so that MapPath/MapRef/Chmod/IgnoreFiles are in final
// "project rules, then Default rules" order (spec.md section 4.2/4.3).
type Project struct {
	Name                   string
	PathPattern            *patterns.Combined
	ExplicitOnly           bool
	NeedsProjects          []string
	Refs                   string
	LabelRefRoot           string
	EmptyDirPlaceholder    string
	Vars                   map[string]string

	Replace     []ReplaceRule
	MapPath     []MapPathRule
	UnmapPath   []UnmapPathRule
	MapRef      []MapRefRule
	EditMsg     []EditMsgRule
	SkipCommit  []SkipCommitRule
	InjectFile  []InjectFileRule
	AddFile     []AddFileRule
	DeletePath  []DeletePathRule
	CopyPath    []CopyPathRule
	MergePath   []MergePathRule
	Chmod       []ChmodRule
	IgnoreFiles []IgnoreFilesRule
	Formatting  []FormattingRule
}

// ConfigModel is the fully loaded, inheritance-resolved configuration
// (spec.md section 3): an ordered list of Project scopes.
type ConfigModel struct {
	Projects         []*Project
	DefaultLabelRoot string // CLI --label-ref-root fallback
}

// ActiveProjects returns, in order, the projects that are active for path:
// their Path glob matches, they aren't ExplicitOnly unless named by
// filter, and every project in NeedsProjects is itself enabled; a
// dependency's own Path glob need not match path (spec.md section 4.2).
func (c *ConfigModel) ActiveProjects(path string, filter *ProjectFilter) []*Project {
	active := map[string]bool{}
	var order []*Project
	// enabled reports whether a project is gated "on" independent of the
	// current path: it is named by --project if ExplicitOnly, and every
	// project it NeedsProjects is itself enabled. NeedsProjects is a
	// cross-project feature-gate, not a requirement that both projects'
	// Path globs match the same VSS path (spec.md section 4.2 leaves this
	// ambiguous; see DESIGN.md for the resolution).
	var enabled func(p *Project) bool
	visiting := map[string]bool{}
	enabled = func(p *Project) bool {
		if v, ok := active[p.Name]; ok {
			return v
		}
		if visiting[p.Name] {
			return false // cyclic NeedsProjects treated as unsatisfiable
		}
		visiting[p.Name] = true
		defer delete(visiting, p.Name)
		ok := !p.ExplicitOnly || filter.Allows(p.Name)
		if ok {
			for _, need := range p.NeedsProjects {
				dep := c.byName(need)
				if dep == nil || !enabled(dep) {
					ok = false
					break
				}
			}
		}
		active[p.Name] = ok
		return ok
	}
	consider := func(p *Project) bool {
		if !enabled(p) {
			return false
		}
		ok, _ := p.PathPattern.Match(path)
		return ok
	}
	for _, p := range c.Projects {
		if consider(p) {
			order = append(order, p)
		}
	}
	return order
}

func (c *ConfigModel) byName(name string) *Project {
	for _, p := range c.Projects {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// ProjectFilter implements --project name filtering with "!"-prefixed
// negation (spec.md section 4.2/6).
type ProjectFilter struct {
	allow map[string]bool
	deny  map[string]bool
	any   bool // true if no --project flags were given at all
}

// NewProjectFilter builds a filter from repeated --project values.
func NewProjectFilter(values []string) *ProjectFilter {
	f := &ProjectFilter{allow: map[string]bool{}, deny: map[string]bool{}}
	if len(values) == 0 {
		f.any = true
		return f
	}
	for _, v := range values {
		if len(v) > 0 && v[0] == '!' {
			f.deny[v[1:]] = true
		} else {
			f.allow[v] = true
		}
	}
	return f
}

// Allows reports whether name was explicitly requested by --project and
// not negated.
func (f *ProjectFilter) Allows(name string) bool {
	if f.deny[name] {
		return false
	}
	if f.any {
		return false // ExplicitOnly requires an explicit name even with no filter
	}
	return f.allow[name]
}
