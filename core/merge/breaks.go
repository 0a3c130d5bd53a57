package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/diedeno/mscz-concatenator/core/score"
	"github.com/diedeno/mscz-concatenator/core/xml"
)

// LayoutBreakElement is the measure child marking a layout break.
const LayoutBreakElement = "LayoutBreak"

// Breaks is a set of layout break kinds.
type Breaks uint8

const (
	Line Breaks = 1 << iota
	Page
	Section

	NoBreaks Breaks = 0
)

var breakOrder = []struct {
	kind    Breaks
	subtype string
}{
	{Line, "line"},
	{Page, "page"},
	{Section, "section"},
}

// Has reports whether b includes k.
func (b Breaks) Has(k Breaks) bool { return b&k != 0 }

func (b Breaks) String() string {
	var names []string
	for _, o := range breakOrder {
		if b.Has(o.kind) {
			names = append(names, o.subtype)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseBreaks parses a comma separated list of "line", "page" and
// "section". "none" and the empty string select no breaks.
func ParseBreaks(s string) (Breaks, error) {
	var b Breaks
	for _, f := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "", "none":
		case "line":
			b |= Line
		case "page":
			b |= Page
		case "section":
			b |= Section
		default:
			return NoBreaks, fmt.Errorf("unknown break type %q", f)
		}
	}
	return b, nil
}

// SectionBreak holds the options written with a section break.
type SectionBreak struct {
	Pause                  float64 // seconds
	StartWithLongNames     bool
	StartWithMeasureOne    bool
	FirstSystemIndentation bool
	ShowCourtesySignature  bool
	// AutoDetectRepeats writes a zero pause when the break lands on a
	// measure ending a repeat.
	AutoDetectRepeats bool
}

// DefaultSectionBreak matches a new section break in MuseScore.
func DefaultSectionBreak() SectionBreak {
	return SectionBreak{
		Pause:                  3,
		StartWithLongNames:     true,
		StartWithMeasureOne:    true,
		FirstSystemIndentation: true,
		ShowCourtesySignature:  true,
	}
}

// withPause returns a copy of s with the given pause.
func (s SectionBreak) withPause(p float64) SectionBreak {
	s.Pause = p
	return s
}

// BreakTarget returns the measure that receives breaks: the last measure
// of the first content staff.
func BreakTarget(target *score.Score) *score.Measure {
	st := target.FirstStaff()
	if st == nil {
		return nil
	}
	return st.LastMeasure()
}

// InsertBreaks adds the selected layout breaks to the last measure of the
// target's first content staff and returns the number added. A break whose
// subtype is already present on that measure is not added again.
func InsertBreaks(target *score.Score, breaks Breaks, section SectionBreak) int {
	if breaks == NoBreaks {
		return 0
	}
	m := BreakTarget(target)
	if m == nil {
		return 0
	}

	existing := make(map[string]bool)
	for _, n := range xml.ChildrenNamed(m.Node(), LayoutBreakElement) {
		if sub, ok := xml.ChildText(n, "subtype"); ok {
			existing[sub] = true
		}
	}

	opts := section
	if section.AutoDetectRepeats && m.HasRepeat() {
		opts = section.withPause(0)
	}

	added := 0
	for _, o := range breakOrder {
		if !breaks.Has(o.kind) || existing[o.subtype] {
			continue
		}
		n := xml.NewElement(LayoutBreakElement)
		xml.Append(n, xml.NewTextElement("subtype", o.subtype))
		if o.kind == Section {
			writeSectionOptions(n, opts)
		}
		attachBreak(m, n)
		added++
	}
	return added
}

func writeSectionOptions(n *xmlquery.Node, s SectionBreak) {
	xml.Append(n, xml.NewTextElement("pause", strconv.FormatFloat(s.Pause, 'f', -1, 64)))
	xml.Append(n, xml.NewTextElement("startWithLongNames", flag(s.StartWithLongNames)))
	xml.Append(n, xml.NewTextElement("startWithMeasureOne", flag(s.StartWithMeasureOne)))
	xml.Append(n, xml.NewTextElement("firstSystemIndentation", flag(s.FirstSystemIndentation)))
	xml.Append(n, xml.NewTextElement("showCourtesySignature", flag(s.ShowCourtesySignature)))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// attachBreak places n ahead of the measure's voices, where MuseScore
// writes measure-level elements.
func attachBreak(m *score.Measure, n *xmlquery.Node) {
	if v := xml.Child(m.Node(), "voice"); v != nil {
		xml.InsertBefore(v, n)
		return
	}
	xml.Append(m.Node(), n)
}
