package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alegrigoriev/vss2git/internal/patterns"
)

// LoadOptions carries everything the loader needs beyond the XML bytes
// itself: command-line-derived variable bindings and flags (spec.md
// section 6), kept in an immutable value per the RunContext guidance of
// spec.md section 9 rather than read from ambient globals.
type LoadOptions struct {
	XML              []byte
	CLIVars          map[string]string // $Trunk, $Branches, $UserBranches, $MapTrunkTo, etc.
	SuppressDefaults bool              // --no-default-config
	LabelRefRootCLI  string            // --label-ref-root
}

// Load parses the XML configuration and produces a fully inheritance-
// resolved ConfigModel, per spec.md section 4.2:
//
//   parse XML -> apply <Default> -> apply each <Project> -> append the
//   hardcoded defaults as the last project (unless suppressed)
func Load(opts LoadOptions) (*ConfigModel, []error, error) {
	var warnings []error
	xmlBytes := opts.XML
	if len(xmlBytes) == 0 {
		// No --config file: run on the hardcoded trunk/branches defaults
		// alone, same as an empty <Projects/> document.
		xmlBytes = []byte("<Projects></Projects>")
	}
	root, err := decode(xmlBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("config: malformed XML: %w", err)
	}

	baseVars := map[string]string{}
	for k, v := range opts.CLIVars {
		baseVars[k] = v
	}

	model := &ConfigModel{DefaultLabelRoot: firstNonEmpty(opts.LabelRefRootCLI, "refs/tags/")}

	var defaultProject *Project
	var hardcoded *Project
	if !opts.SuppressDefaults {
		hardcoded, err = buildHardcodedDefaults(baseVars)
		if err != nil {
			return nil, warnings, err
		}
	}

	if root.Default != nil {
		defaultProject, err = buildScope("", &xmlProject{xmlScope: *root.Default}, baseVars, nil)
		if err != nil {
			return nil, warnings, err
		}
	}

	for i := range root.Project {
		xp := root.Project[i]
		inheritDefault := !isNo(xp.InheritDefault)
		inheritMappings := !isNo(xp.InheritDefaultMappings)

		vars := map[string]string{}
		for k, v := range baseVars {
			vars[k] = v
		}
		proj, err := buildScope(xp.Name, &xp, vars, nil)
		if err != nil {
			return nil, warnings, fmt.Errorf("config: project %q: %w", xp.Name, err)
		}
		proj.PathPattern, err = patterns.CompileCombined(xp.Path)
		if err != nil {
			return nil, warnings, fmt.Errorf("config: project %q: bad Path glob: %w", xp.Name, err)
		}
		proj.ExplicitOnly = isYes(xp.ExplicitOnly)
		proj.Refs = xp.Refs
		if xp.NeedsProjects != "" {
			for _, n := range strings.Split(xp.NeedsProjects, ",") {
				n = strings.TrimSpace(n)
				if n != "" {
					proj.NeedsProjects = append(proj.NeedsProjects, n)
				}
			}
		}

		if defaultProject != nil && inheritDefault {
			// Vars/Replace from <Default> are always inherited unless the
			// project opted out via InheritDefault="No".
			for k, v := range defaultProject.Vars {
				if _, already := proj.Vars[k]; !already {
					proj.Vars[k] = v
				}
			}
			proj.Replace = append(proj.Replace, defaultProject.Replace...)
		}
		if defaultProject != nil && inheritMappings {
			// MapPath/MapRef/Chmod/IgnoreFiles from <Default> are applied
			// AFTER the project's own rules (spec.md section 4.2).
			proj.MapPath = append(proj.MapPath, defaultProject.MapPath...)
			proj.MapRef = append(proj.MapRef, defaultProject.MapRef...)
			proj.Chmod = append(proj.Chmod, defaultProject.Chmod...)
			proj.IgnoreFiles = append(proj.IgnoreFiles, defaultProject.IgnoreFiles...)
			proj.Formatting = append(proj.Formatting, defaultProject.Formatting...)
			// EditMsg: MapPath-scope already precedes; then Project-scope
			// (already first in proj.EditMsg); then Default-scope.
			proj.EditMsg = append(proj.EditMsg, defaultProject.EditMsg...)
			if proj.LabelRefRoot == "" {
				proj.LabelRefRoot = defaultProject.LabelRefRoot
			}
			// CopyPath/MergePath in <Default> are ignored (spec.md
			// section 4.2); proj.CopyPath/MergePath already hold only the
			// project's own rules.
		}
		model.Projects = append(model.Projects, proj)
	}
	if hardcoded != nil {
		model.Projects = append(model.Projects, hardcoded)
	}

	return model, warnings, nil
}

func isYes(s string) bool { return strings.EqualFold(s, "Yes") }
func isNo(s string) bool  { return strings.EqualFold(s, "No") }

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}

// buildScope turns one <Project> or <Default> element's children into a
// Project value, applying this scope's own <Vars> in document order (each
// redefinition affects only subsequent siblings, spec.md section 4.2) and
// expanding this scope's own texts against the variable map visible at
// the point each was parsed.
func buildScope(name string, xp *xmlProject, vars map[string]string, _ []string) (*Project, error) {
	p := &Project{Name: name, Vars: map[string]string{}}
	for k, v := range vars {
		p.Vars[k] = v
	}

	for _, v := range xp.Vars {
		expanded, err := patterns.ExpandVars(v.Value, p.Vars)
		if err != nil {
			return nil, fmt.Errorf("Vars %q: %w", v.Name, err)
		}
		p.Vars[v.Name] = expanded
	}
	for _, r := range xp.Replace {
		p.Replace = append(p.Replace, ReplaceRule{From: r.From, To: r.To})
	}

	for _, mp := range xp.MapPath {
		rule, extraUnmap, err := buildMapPath(mp, p.Vars)
		if err != nil {
			return nil, err
		}
		p.MapPath = append(p.MapPath, rule)
		if extraUnmap != nil {
			p.UnmapPath = append(p.UnmapPath, *extraUnmap)
		}
	}
	for _, up := range xp.UnmapPath {
		rule, extraParent, err := buildUnmapPath(up)
		if err != nil {
			return nil, err
		}
		p.UnmapPath = append(p.UnmapPath, rule)
		if extraParent != nil {
			p.UnmapPath = append(p.UnmapPath, *extraParent)
		}
	}
	for _, mr := range xp.MapRef {
		cp, err := patterns.CompileCombined(mr.OldRef)
		if err != nil {
			return nil, fmt.Errorf("MapRef OldRef %q: %w", mr.OldRef, err)
		}
		p.MapRef = append(p.MapRef, MapRefRule{OldRef: cp, NewRef: mr.NewRef})
	}
	if xp.LabelRefRoot != "" {
		expanded, err := patterns.ExpandVars(strings.TrimSpace(xp.LabelRefRoot), p.Vars)
		if err != nil {
			return nil, err
		}
		p.LabelRefRoot = expanded
	}
	for _, em := range xp.EditMsg {
		rule, err := buildEditMsg(em)
		if err != nil {
			return nil, err
		}
		p.EditMsg = append(p.EditMsg, rule)
	}
	for _, sc := range xp.SkipCommit {
		p.SkipCommit = append(p.SkipCommit, SkipCommitRule{Revs: sc.Revs, RevID: sc.RevId})
	}
	for _, inj := range xp.InjectFile {
		p.InjectFile = append(p.InjectFile, InjectFileRule{Source: inj.Source, Dest: inj.Dest, Rev: inj.Rev})
	}
	for _, af := range xp.AddFile {
		p.AddFile = append(p.AddFile, AddFileRule{Path: af.Path, Content: af.Content, Rev: af.Rev})
	}
	for _, dp := range xp.DeletePath {
		p.DeletePath = append(p.DeletePath, DeletePathRule{Path: dp.Path, Rev: dp.Rev})
	}
	for _, cp := range xp.CopyPath {
		p.CopyPath = append(p.CopyPath, CopyPathRule{Source: cp.Source, Dest: cp.Dest, Rev: cp.Rev})
	}
	for _, mp := range xp.MergePath {
		p.MergePath = append(p.MergePath, MergePathRule{
			Source: mp.Source, Dest: mp.Dest, Rev: mp.Rev, DeleteIfMerged: isYes(mp.DeleteIfMerged),
		})
	}
	for _, cm := range xp.Chmod {
		cp, err := patterns.CompileCombined(cm.Path)
		if err != nil {
			return nil, fmt.Errorf("Chmod Path %q: %w", cm.Path, err)
		}
		p.Chmod = append(p.Chmod, ChmodRule{Path: cp, Mode: cm.Mode})
	}
	for _, ig := range xp.IgnoreFiles {
		cp, err := patterns.CompileCombined(strings.TrimSpace(ig.Pattern))
		if err != nil {
			return nil, fmt.Errorf("IgnoreFiles %q: %w", ig.Pattern, err)
		}
		p.IgnoreFiles = append(p.IgnoreFiles, IgnoreFilesRule{Pattern: cp, Rev: ig.Rev, RevID: ig.RevId})
	}
	for _, fm := range xp.Formatting {
		rule, err := buildFormatting(fm)
		if err != nil {
			return nil, err
		}
		p.Formatting = append(p.Formatting, rule)
	}
	if xp.EmptyDirPlaceholder != "" {
		p.EmptyDirPlaceholder = strings.TrimSpace(xp.EmptyDirPlaceholder)
	}
	return p, nil
}

// buildMapPath compiles one <MapPath> rule. A Path ending in "/*"
// additionally installs an implicit UnmapPath for the parent directory
// unless BlockParent="No" (spec.md section 4.3).
func buildMapPath(mp xmlMapPath, vars map[string]string) (MapPathRule, *UnmapPathRule, error) {
	cp, err := patterns.CompileCombined(mp.Path)
	if err != nil {
		return MapPathRule{}, nil, fmt.Errorf("MapPath Path %q: %w", mp.Path, err)
	}
	rule := MapPathRule{
		Path:        cp,
		RawPath:     mp.Path,
		Refname:     mp.Refname,
		BlockParent: !isNo(mp.BlockParent),
		Rev:         mp.Rev,
		RevID:       mp.RevId,
	}
	for _, em := range mp.EditMsg {
		r, err := buildEditMsg(em)
		if err != nil {
			return MapPathRule{}, nil, err
		}
		rule.EditMsg = append(rule.EditMsg, r)
	}
	var extra *UnmapPathRule
	if strings.HasSuffix(mp.Path, "/*") && rule.BlockParent {
		parent := strings.TrimSuffix(mp.Path, "/*")
		pcp, err := patterns.CompileCombined(parent)
		if err != nil {
			return MapPathRule{}, nil, err
		}
		extra = &UnmapPathRule{Path: pcp, RawPath: parent}
	}
	return rule, extra, nil
}

func buildUnmapPath(up xmlUnmapPath) (UnmapPathRule, *UnmapPathRule, error) {
	cp, err := patterns.CompileCombined(up.Path)
	if err != nil {
		return UnmapPathRule{}, nil, fmt.Errorf("UnmapPath Path %q: %w", up.Path, err)
	}
	rule := UnmapPathRule{Path: cp, RawPath: up.Path, BlockParent: !isNo(up.BlockParent)}
	var extra *UnmapPathRule
	if strings.HasSuffix(up.Path, "/*") && rule.BlockParent {
		parent := strings.TrimSuffix(up.Path, "/*")
		pcp, err := patterns.CompileCombined(parent)
		if err != nil {
			return UnmapPathRule{}, nil, err
		}
		extra = &UnmapPathRule{Path: pcp, RawPath: parent}
	}
	return rule, extra, nil
}

func buildEditMsg(em xmlEditMsg) (EditMsgRule, error) {
	max := 0
	if em.Max != "" {
		n, err := strconv.Atoi(em.Max)
		if err != nil {
			return EditMsgRule{}, fmt.Errorf("EditMsg Max %q: %w", em.Max, err)
		}
		max = n
	}
	return EditMsgRule{Pattern: em.Pattern, Replace: em.Replace, Max: max, Final: isYes(em.Final)}, nil
}

func buildFormatting(fm xmlFormatting) (FormattingRule, error) {
	cp, err := patterns.CompileCombined(fm.Path)
	if err != nil {
		return FormattingRule{}, fmt.Errorf("Formatting Path %q: %w", fm.Path, err)
	}
	rule := FormattingRule{
		Path:           cp,
		FixEOL:         fm.FixEOL == "" || isYes(fm.FixEOL),
		FixLastEOL:     fm.FixLastEOL == "" || isYes(fm.FixLastEOL),
		TrimWhitespace: isYes(fm.TrimWhitespace),
		TrimBackslash:  isYes(fm.TrimBackslash),
		Retab:          isYes(fm.Retab),
	}
	if fm.NoReindent != "" {
		ncp, err := patterns.CompileCombined(fm.NoReindent)
		if err != nil {
			return FormattingRule{}, fmt.Errorf("Formatting NoReindent %q: %w", fm.NoReindent, err)
		}
		rule.NoReindent = ncp
	}
	return rule, nil
}

// buildHardcodedDefaults constructs the built-in, unnamed project applied
// before <Default>: the conventional VSS trunk/branches/user-branches
// layout bound to $Trunk/$Branches/$UserBranches/$MapTrunkTo (spec.md
// section 6).
func buildHardcodedDefaults(vars map[string]string) (*Project, error) {
	trunk := firstNonEmpty(vars["Trunk"], "trunk")
	branches := firstNonEmpty(vars["Branches"], "branches")
	userBranches := firstNonEmpty(vars["UserBranches"], "")
	mapTrunkTo := firstNonEmpty(vars["MapTrunkTo"], "main")

	p := &Project{Name: "", Vars: map[string]string{}}
	for k, v := range vars {
		p.Vars[k] = v
	}
	all, err := patterns.CompileCombined("**")
	if err != nil {
		return nil, err
	}
	p.PathPattern = all

	addRule := func(rawPath, refname string) error {
		rule, extra, err := buildMapPath(xmlMapPath{Path: rawPath, Refname: refname}, p.Vars)
		if err != nil {
			return err
		}
		p.MapPath = append(p.MapPath, rule)
		if extra != nil {
			p.UnmapPath = append(p.UnmapPath, *extra)
		}
		return nil
	}
	if err := addRule(trunk, "refs/heads/"+mapTrunkTo); err != nil {
		return nil, err
	}
	if err := addRule(branches+"/*", "refs/heads/$1"); err != nil {
		return nil, err
	}
	if userBranches != "" {
		if err := addRule(userBranches+"/*/*", "refs/heads/$1/$2"); err != nil {
			return nil, err
		}
	}
	return p, nil
}
