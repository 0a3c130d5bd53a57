package score

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/diedeno/mscz-concatenator/core/xml"
)

// Element names of the score schema.
const (
	RootElement        = "museScore"
	ScoreElement       = "Score"
	PartElement        = "Part"
	StaffElement       = "Staff"
	MeasureElement     = "Measure"
	EIDElement         = "eid"
	SystemLocksElement = "SystemLocks"
	SystemLockElement  = "systemLock"
)

var (
	eidExpr       = xpath.MustCompile("//eid")
	soundFontExpr = xpath.MustCompile(".//Synthesizer/Fluid/val")
)

// Score is the typed root of a parsed score tree.
type Score struct {
	doc   *xml.Document
	root  *xmlquery.Node
	score *xmlquery.Node
}

// Parse parses score XML.
func Parse(data []byte) (*Score, error) {
	doc, err := xml.Parse(data)
	if err != nil {
		return nil, err
	}
	return New(doc)
}

// New wraps a parsed document. The root must be museScore and hold a Score
// element.
func New(doc *xml.Document) (*Score, error) {
	root := doc.Root()
	if root == nil || root.Data != RootElement {
		return nil, fmt.Errorf("root element is not %s", RootElement)
	}
	s := xml.Child(root, ScoreElement)
	if s == nil {
		return nil, fmt.Errorf("missing %s element", ScoreElement)
	}
	return &Score{doc: doc, root: root, score: s}, nil
}

// Document returns the underlying XML document.
func (s *Score) Document() *xml.Document { return s.doc }

// Root returns the museScore element.
func (s *Score) Root() *xmlquery.Node { return s.root }

// Element returns the Score element.
func (s *Score) Element() *xmlquery.Node { return s.score }

// Serialize renders the tree.
func (s *Score) Serialize() []byte { return s.doc.Serialize() }

// Version returns the museScore version attribute, e.g. "4.20".
func (s *Score) Version() string { return xml.Attr(s.root, "version") }

// ProgramVersion returns the version of the program that wrote the file.
func (s *Score) ProgramVersion() string {
	v, _ := xml.ChildText(s.root, "programVersion")
	return v
}

// Parts returns the parts in document order.
func (s *Score) Parts() []*Part {
	nodes := xml.ChildrenNamed(s.score, PartElement)
	parts := make([]*Part, 0, len(nodes))
	for i, n := range nodes {
		parts = append(parts, &Part{node: n, score: s, index: i})
	}
	return parts
}

// Part returns the first part whose display name is name.
func (s *Score) Part(name string) (*Part, bool) {
	for _, p := range s.Parts() {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// PartNames returns the non-empty part display names in document order.
// Duplicates are kept.
func (s *Score) PartNames() []string {
	var names []string
	for _, p := range s.Parts() {
		if name := p.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// DuplicatePartNames returns every part name used more than once, sorted.
func (s *Score) DuplicatePartNames() []string {
	return duplicates(s.PartNames())
}

// InstrumentNames returns the instrument name of every part.
func (s *Score) InstrumentNames() []string {
	var names []string
	for _, p := range s.Parts() {
		if inst := p.Instrument(); inst != nil {
			names = append(names, inst.Name())
		}
	}
	return names
}

// Staves returns the content staves in document order.
func (s *Score) Staves() []*Staff {
	nodes := xml.ChildrenNamed(s.score, StaffElement)
	staves := make([]*Staff, 0, len(nodes))
	for _, n := range nodes {
		staves = append(staves, &Staff{node: n})
	}
	return staves
}

// Staff returns the content staff with the given id.
func (s *Score) Staff(id int) (*Staff, bool) {
	for _, st := range s.Staves() {
		if sid, ok := st.ID(); ok && sid == id {
			return st, true
		}
	}
	return nil, false
}

// FirstStaff returns the first content staff, or nil.
func (s *Score) FirstStaff() *Staff {
	if n := xml.Child(s.score, StaffElement); n != nil {
		return &Staff{node: n}
	}
	return nil
}

// Length returns the measure count of the first content staff.
func (s *Score) Length() int {
	if st := s.FirstStaff(); st != nil {
		return st.Length()
	}
	return 0
}

// SystemLocks returns the lock region, or nil when the score has none.
func (s *Score) SystemLocks() *SystemLocks {
	if n := xml.Child(s.score, SystemLocksElement); n != nil {
		return &SystemLocks{node: n}
	}
	return nil
}

// AttachSystemLocks appends a lock region element to the Score element.
func (s *Score) AttachSystemLocks(n *xmlquery.Node) *SystemLocks {
	xml.Append(s.score, n)
	return &SystemLocks{node: n}
}

// EIDNodes returns every eid element anywhere in the tree.
func (s *Score) EIDNodes() []*xmlquery.Node {
	return xml.Select(s.root, eidExpr)
}

// EIDs returns the set of non-empty eid values in the tree.
func (s *Score) EIDs() map[string]struct{} {
	set := make(map[string]struct{})
	for _, n := range s.EIDNodes() {
		if v := strings.TrimSpace(n.InnerText()); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

// MetaTags returns the metaTag values keyed by name.
func (s *Score) MetaTags() map[string]string {
	tags := make(map[string]string)
	for _, n := range xml.ChildrenNamed(s.score, "metaTag") {
		tags[xml.Attr(n, "name")] = xml.Text(n)
	}
	return tags
}

// MetaTag returns a single metaTag value.
func (s *Score) MetaTag(name string) (string, bool) {
	for _, n := range xml.ChildrenNamed(s.score, "metaTag") {
		if xml.Attr(n, "name") == name {
			return xml.Text(n), true
		}
	}
	return "", false
}

// SoundFonts returns the distinct sound fonts named by the synthesizer state.
func (s *Score) SoundFonts() []string {
	seen := make(map[string]struct{})
	var fonts []string
	for _, n := range xml.Select(s.score, soundFontExpr) {
		v := strings.TrimSpace(n.InnerText())
		if _, dup := seen[v]; v == "" || dup {
			continue
		}
		seen[v] = struct{}{}
		fonts = append(fonts, v)
	}
	sort.Strings(fonts)
	return fonts
}

func duplicates(values []string) []string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	var dups []string
	for v, n := range counts {
		if n > 1 {
			dups = append(dups, v)
		}
	}
	sort.Strings(dups)
	return dups
}

func childInt(n *xmlquery.Node, name string) (int, bool) {
	text, ok := xml.ChildText(n, name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return v, true
}
