// Package config loads the XML configuration (spec.md section 6) into the
// in-memory ConfigModel (spec.md section 3), applying inheritance,
// variable expansion, and per-project ordered rule lists (spec.md section
// 4.2). encoding/xml is used for decoding: no library in the retrieved
// corpus offers a more idiomatic decoder for this format, and none of the
// example repositories parse XML at all, so this is a deliberate
// standard-library choice (see DESIGN.md).
package config

import "encoding/xml"

// xmlProjects is the root <Projects> element, decoded verbatim before
// being turned into a ConfigModel.
type xmlProjects struct {
	XMLName xml.Name     `xml:"Projects"`
	Default *xmlScope    `xml:"Default"`
	Project []xmlProject `xml:"Project"`
}

type xmlProject struct {
	xmlScope
	Name                    string `xml:"Name,attr"`
	Path                    string `xml:"Path,attr"`
	InheritDefault          string `xml:"InheritDefault,attr"`
	InheritDefaultMappings  string `xml:"InheritDefaultMappings,attr"`
	ExplicitOnly            string `xml:"ExplicitOnly,attr"`
	NeedsProjects           string `xml:"NeedsProjects,attr"`
	Refs                    string `xml:"Refs,attr"`
}

// xmlScope is the set of elements legal inside both <Default> and
// <Project> (spec.md section 6).
type xmlScope struct {
	Vars               []xmlVars        `xml:"Vars"`
	Replace            []xmlReplace     `xml:"Replace"`
	MapPath            []xmlMapPath     `xml:"MapPath"`
	UnmapPath          []xmlUnmapPath   `xml:"UnmapPath"`
	MapRef             []xmlMapRef      `xml:"MapRef"`
	LabelRefRoot       string           `xml:"LabelRefRoot"`
	EditMsg            []xmlEditMsg     `xml:"EditMsg"`
	SkipCommit         []xmlSkipCommit  `xml:"SkipCommit"`
	InjectFile         []xmlInjectFile  `xml:"InjectFile"`
	AddFile            []xmlAddFile     `xml:"AddFile"`
	DeletePath         []xmlDeletePath  `xml:"DeletePath"`
	CopyPath           []xmlCopyPath    `xml:"CopyPath"`
	MergePath          []xmlMergePath   `xml:"MergePath"`
	Chmod              []xmlChmod       `xml:"Chmod"`
	IgnoreFiles        []xmlIgnoreFiles `xml:"IgnoreFiles"`
	Formatting         []xmlFormatting  `xml:"Formatting"`
	EmptyDirPlaceholder string          `xml:"EmptyDirPlaceholder"`
}

type xmlVars struct {
	Name  string `xml:"Name,attr"`
	Value string `xml:",chardata"`
}

type xmlReplace struct {
	From string `xml:"From,attr"`
	To   string `xml:"To,attr"`
}

type xmlMapPath struct {
	Path        string `xml:"Path,attr"`
	Refname     string `xml:"Refname,attr"`
	BlockParent string `xml:"BlockParent,attr"`
	Rev         string `xml:"Rev,attr"`
	RevId       string `xml:"RevId,attr"`
	EditMsg     []xmlEditMsg `xml:"EditMsg"`
}

type xmlUnmapPath struct {
	Path        string `xml:"Path,attr"`
	BlockParent string `xml:"BlockParent,attr"`
}

type xmlMapRef struct {
	OldRef string `xml:"OldRef,attr"`
	NewRef string `xml:"NewRef,attr"`
}

type xmlEditMsg struct {
	Pattern string `xml:"Pattern,attr"`
	Replace string `xml:"Replace,attr"`
	Max     string `xml:"Max,attr"`
	Final   string `xml:"Final,attr"`
}

type xmlSkipCommit struct {
	Revs  string `xml:"Revs,attr"`
	RevId string `xml:"RevId,attr"`
}

type xmlInjectFile struct {
	Source string `xml:"Source,attr"`
	Dest   string `xml:"Dest,attr"`
	Rev    string `xml:"Rev,attr"`
}

type xmlAddFile struct {
	Path    string `xml:"Path,attr"`
	Content string `xml:"Content,attr"`
	Rev     string `xml:"Rev,attr"`
}

type xmlDeletePath struct {
	Path string `xml:"Path,attr"`
	Rev  string `xml:"Rev,attr"`
}

type xmlCopyPath struct {
	Source string `xml:"Source,attr"`
	Dest   string `xml:"Dest,attr"`
	Rev    string `xml:"Rev,attr"`
}

type xmlMergePath struct {
	Source         string `xml:"Source,attr"`
	Dest           string `xml:"Dest,attr"`
	Rev            string `xml:"Rev,attr"`
	DeleteIfMerged string `xml:"DeleteIfMerged,attr"`
}

type xmlChmod struct {
	Path string `xml:"Path,attr"`
	Mode string `xml:"Mode,attr"`
}

type xmlIgnoreFiles struct {
	Pattern string `xml:",chardata"`
	Rev     string `xml:"Rev,attr"`
	RevId   string `xml:"RevId,attr"`
}

type xmlFormatting struct {
	Path         string `xml:"Path,attr"`
	NoReindent   string `xml:"NoReindent,attr"`
	FixEOL       string `xml:"FixEOL,attr"`
	FixLastEOL   string `xml:"FixLastEOL,attr"`
	TrimWhitespace string `xml:"TrimWhitespace,attr"`
	TrimBackslash  string `xml:"TrimBackslash,attr"`
	Retab          string `xml:"Retab,attr"`
}

func decode(data []byte) (*xmlProjects, error) {
	var root xmlProjects
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}
