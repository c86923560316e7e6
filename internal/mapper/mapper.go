// Package mapper implements the Path->Ref mapper (spec.md section 4.3):
// given a VSS directory path and the active, ordered rule list, it decides
// the branch ref name, or that the directory is blocked/unmapped.
package mapper

import (
	"fmt"
	"strings"

	"github.com/alegrigoriev/vss2git/internal/config"
	"github.com/alegrigoriev/vss2git/internal/patterns"
)

// Outcome is the decision the mapper reaches for one VSS directory.
type Outcome int

const (
	Blocked Outcome = iota
	Unmapped
	Mapped
)

// Decision is the mapper's result for one VSS directory path.
type Decision struct {
	Outcome     Outcome
	RefName     string // set only when Outcome == Mapped
	Project     *config.Project
	MapPathRule *config.MapPathRule // the rule that produced RefName, for MapPath-scope EditMsg
}

// Mapper resolves VSS directories to git refs using a ConfigModel and
// keeps the claimed-ref registry needed for collision disambiguation
// (spec.md section 4.3: "__<N>" suffixing).
type Mapper struct {
	model      *config.ConfigModel
	filter     *config.ProjectFilter
	claimed    map[string]string // refname -> VSS directory that claimed it
}

// New builds a Mapper over an already-loaded ConfigModel.
func New(model *config.ConfigModel, filter *config.ProjectFilter) *Mapper {
	return &Mapper{model: model, filter: filter, claimed: map[string]string{}}
}

// Resolve decides the outcome for one VSS directory path, per the ordered
// walk of spec.md section 4.3: project MapPath/UnmapPath first, then
// Default MapPath (folded into each project's rule lists by the config
// loader), then the hardcoded defaults, which the loader places as the
// last project. The first matching rule in that order wins.
func (m *Mapper) Resolve(vssPath string) (Decision, error) {
	projects := m.model.ActiveProjects(vssPath, m.filter)

	for _, p := range projects {
		if blocked, ok := matchUnmap(p.UnmapPath, vssPath); ok && blocked {
			return Decision{Outcome: Blocked, Project: p}, nil
		}
	}

	for _, p := range projects {
		for _, rule := range p.MapPath {
			ok, caps := rule.Path.Match(vssPath)
			if !ok {
				continue
			}
			if rule.Refname == "" {
				return Decision{Outcome: Unmapped, Project: p}, nil
			}
			ref, err := patterns.SubstituteTemplate(rule.Refname, caps, p.Vars)
			if err != nil {
				return Decision{}, fmt.Errorf("mapper: %s: %w", vssPath, err)
			}
			ref = patterns.SplitRefName(ref)
			ref = m.applyMapRef(p, ref)
			if ref == "" {
				return Decision{Outcome: Unmapped, Project: p}, nil
			}
			ref = applyReplace(p, ref)
			ref = m.disambiguate(ref, vssPath)
			return Decision{Outcome: Mapped, RefName: ref, Project: p, MapPathRule: &rule}, nil
		}
	}
	return Decision{Outcome: Unmapped}, nil
}

func matchUnmap(rules []config.UnmapPathRule, vssPath string) (blocked bool, matched bool) {
	for _, rule := range rules {
		if ok, _ := rule.Path.Match(vssPath); ok {
			return true, true
		}
	}
	return false, false
}

// applyMapRef runs <MapRef> rules (project first, then Default — already
// folded into p.MapRef in that order by the loader). A rule without
// NewRef deletes the ref.
func (m *Mapper) applyMapRef(p *config.Project, ref string) string {
	for _, rule := range p.MapRef {
		ok, caps := rule.OldRef.Match(ref)
		if !ok {
			continue
		}
		if rule.NewRef == "" {
			return ""
		}
		newRef, err := patterns.SubstituteTemplate(rule.NewRef, caps, p.Vars)
		if err != nil {
			return ref
		}
		return patterns.SplitRefName(newRef)
	}
	return ref
}

// applyReplace performs character substitution on the ref name only,
// after MapRef (spec.md section 4.3).
func applyReplace(p *config.Project, ref string) string {
	for _, r := range p.Replace {
		ref = strings.ReplaceAll(ref, r.From, r.To)
	}
	return ref
}

// disambiguate appends "__<N>" with the smallest N that resolves a ref
// collision between distinct VSS directories (spec.md section 4.3).
func (m *Mapper) disambiguate(ref, vssPath string) string {
	if owner, ok := m.claimed[ref]; !ok || owner == vssPath {
		m.claimed[ref] = vssPath
		return ref
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s__%d", ref, n)
		if owner, ok := m.claimed[candidate]; !ok || owner == vssPath {
			m.claimed[candidate] = vssPath
			return candidate
		}
	}
}

// LabelRefRoot resolves the tag-ref namespace for a label on a mapped
// directory (spec.md section 4.3): the project's LabelRefRoot, when set,
// overrides the CLI default. MapPath rules carry no LabelRefRoot of their
// own, so a root is never chosen per MapPath. Replace is applied to
// the label component only, not to the root, per the resolution recorded
// in DESIGN.md for the spec's open question on this point.
func (m *Mapper) LabelRefRoot(p *config.Project) string {
	if p != nil && p.LabelRefRoot != "" {
		return p.LabelRefRoot
	}
	return m.model.DefaultLabelRoot
}

// LabelRef builds the full tag ref name for a label applied to a branch
// mapped by project p.
func (m *Mapper) LabelRef(p *config.Project, label string) (string, error) {
	expanded, err := patterns.ExpandVars(label, varsOf(p))
	if err != nil {
		return "", err
	}
	if p != nil {
		expanded = applyReplace(p, expanded)
	}
	root := m.LabelRefRoot(p)
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + expanded, nil
}

func varsOf(p *config.Project) map[string]string {
	if p == nil {
		return nil
	}
	return p.Vars
}
