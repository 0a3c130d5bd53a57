package score

import (
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/diedeno/mscz-concatenator/core/xml"
)

var (
	noteExpr          = xpath.MustCompile(".//Note")
	textExpr          = xpath.MustCompile(".//Text")
	jumpExpr          = xpath.MustCompile(".//Jump")
	channelSwitchExpr = xpath.MustCompile("./voice/StaffText/channelSwitch")
)

// ChildKind classifies the children of a content staff.
type ChildKind int

const (
	// KindOther is any child that is neither a measure nor a frame.
	KindOther ChildKind = iota
	KindMeasure
	KindFrame
)

// FrameKind is the element name of a frame.
type FrameKind string

const (
	VBox FrameKind = "VBox"
	HBox FrameKind = "HBox"
	TBox FrameKind = "TBox"
	FBox FrameKind = "FBox"
)

// IsFrame reports whether an element name is a frame.
func IsFrame(name string) bool {
	switch FrameKind(name) {
	case VBox, HBox, TBox, FBox:
		return true
	}
	return false
}

// Staff is a content staff holding measures and frames.
type Staff struct {
	node *xmlquery.Node
}

// Node returns the Score/Staff element.
func (s *Staff) Node() *xmlquery.Node { return s.node }

// ID returns the staff id.
func (s *Staff) ID() (int, bool) {
	return parseID(xml.Attr(s.node, "id"))
}

// Child is one classified child of a content staff.
type Child struct {
	Kind ChildKind
	Node *xmlquery.Node
}

// Measure returns the child as a Measure, or nil.
func (c Child) Measure() *Measure {
	if c.Kind != KindMeasure {
		return nil
	}
	return &Measure{node: c.Node}
}

// Frame returns the child as a Frame, or nil.
func (c Child) Frame() *Frame {
	if c.Kind != KindFrame {
		return nil
	}
	return &Frame{node: c.Node}
}

// Children returns the element children in order, classified.
func (s *Staff) Children() []Child {
	var children []Child
	for _, n := range xml.Children(s.node) {
		kind := KindOther
		switch {
		case n.Data == MeasureElement:
			kind = KindMeasure
		case IsFrame(n.Data):
			kind = KindFrame
		}
		children = append(children, Child{Kind: kind, Node: n})
	}
	return children
}

// Measures returns the measures in order.
func (s *Staff) Measures() []*Measure {
	nodes := xml.ChildrenNamed(s.node, MeasureElement)
	measures := make([]*Measure, 0, len(nodes))
	for _, n := range nodes {
		measures = append(measures, &Measure{node: n})
	}
	return measures
}

// Frames returns the frames in order.
func (s *Staff) Frames() []*Frame {
	var frames []*Frame
	for _, c := range s.Children() {
		if f := c.Frame(); f != nil {
			frames = append(frames, f)
		}
	}
	return frames
}

// LastMeasure returns the last measure, or nil.
func (s *Staff) LastMeasure() *Measure {
	for n := s.node.LastChild; n != nil; n = n.PrevSibling {
		if n.Type == xmlquery.ElementNode && n.Data == MeasureElement {
			return &Measure{node: n}
		}
	}
	return nil
}

// Length returns the number of measures.
func (s *Staff) Length() int {
	return len(xml.ChildrenNamed(s.node, MeasureElement))
}

// IsEmpty reports whether no measure holds a note.
func (s *Staff) IsEmpty() bool {
	for _, m := range s.Measures() {
		if !m.IsEmpty() {
			return false
		}
	}
	return true
}

// Append attaches a detached node as the last child.
func (s *Staff) Append(n *xmlquery.Node) {
	xml.Append(s.node, n)
}

// ChannelSwitchesUsed returns the channel switch names used in the staff.
func (s *Staff) ChannelSwitchesUsed() map[string]struct{} {
	used := make(map[string]struct{})
	for _, m := range s.Measures() {
		for name := range m.ChannelSwitches() {
			used[name] = struct{}{}
		}
	}
	return used
}

// Clear removes every measure but the first and leaves a single measure
// rest in it.
func (s *Staff) Clear() {
	measures := s.Measures()
	if len(measures) == 0 {
		return
	}
	for _, m := range measures[1:] {
		xml.Remove(m.node)
	}
	first := measures[0].node
	first.FirstChild, first.LastChild = nil, nil
	rest := xml.NewElement("Rest")
	xml.Append(rest, xml.NewTextElement("durationType", "measure"))
	xml.Append(rest, xml.NewTextElement("duration", "4/4"))
	voice := xml.NewElement("voice")
	xml.Append(voice, rest)
	xml.Append(first, voice)
}

// Measure is a time span of musical content.
type Measure struct {
	node *xmlquery.Node
}

// NewMeasure wraps a Measure element.
func NewMeasure(n *xmlquery.Node) *Measure {
	return &Measure{node: n}
}

// Node returns the Measure element.
func (m *Measure) Node() *xmlquery.Node { return m.node }

// EID returns the measure's own eid.
func (m *Measure) EID() (string, bool) {
	return xml.ChildText(m.node, EIDElement)
}

// IsEmpty reports whether the measure holds no note.
func (m *Measure) IsEmpty() bool {
	return xml.SelectOne(m.node, noteExpr) == nil
}

// HasRepeat reports whether the measure ends a repeat or carries a jump.
func (m *Measure) HasRepeat() bool {
	if xml.Child(m.node, "endRepeat") != nil || xml.HasAttr(m.node, "endRepeat") {
		return true
	}
	return xml.SelectOne(m.node, jumpExpr) != nil
}

// ChannelSwitches returns the channel switch names used in the measure.
func (m *Measure) ChannelSwitches() map[string]struct{} {
	used := make(map[string]struct{})
	for _, n := range xml.Select(m.node, channelSwitchExpr) {
		used[xml.Attr(n, "name")] = struct{}{}
	}
	return used
}

// Frame is a decorative block between measures.
type Frame struct {
	node *xmlquery.Node
}

// Node returns the frame element.
func (f *Frame) Node() *xmlquery.Node { return f.node }

// Kind returns the frame element name.
func (f *Frame) Kind() FrameKind { return FrameKind(f.node.Data) }

// IsTitle reports whether the frame is a vertical or text frame holding a
// Text styled "title".
func (f *Frame) IsTitle() bool {
	if k := f.Kind(); k != VBox && k != TBox {
		return false
	}
	for _, t := range xml.Select(f.node, textExpr) {
		style, ok := xml.ChildText(t, "style")
		if !ok {
			style = xml.Attr(t, "style")
		}
		if strings.ToLower(strings.TrimSpace(style)) == "title" {
			return true
		}
	}
	return false
}

// SystemLocks is the document-level list of lock ranges.
type SystemLocks struct {
	node *xmlquery.Node
}

// Node returns the SystemLocks element.
func (l *SystemLocks) Node() *xmlquery.Node { return l.node }

// Lock is one range of measures locked onto a system.
type Lock struct {
	node *xmlquery.Node
}

// Node returns the systemLock element.
func (l Lock) Node() *xmlquery.Node { return l.node }

// Start returns the eid of the first locked measure.
func (l Lock) Start() string {
	v, _ := xml.ChildText(l.node, "startMeasure")
	return v
}

// End returns the eid of the last locked measure.
func (l Lock) End() string {
	v, _ := xml.ChildText(l.node, "endMeasure")
	return v
}

// Locks returns the lock entries in order.
func (l *SystemLocks) Locks() []Lock {
	var locks []Lock
	for _, n := range xml.ChildrenNamed(l.node, SystemLockElement) {
		locks = append(locks, Lock{node: n})
	}
	return locks
}

// Append attaches a detached systemLock element.
func (l *SystemLocks) Append(n *xmlquery.Node) {
	xml.Append(l.node, n)
}

// References returns every startMeasure and endMeasure element.
func (l *SystemLocks) References() []*xmlquery.Node {
	var refs []*xmlquery.Node
	for _, lock := range l.Locks() {
		for _, name := range []string{"startMeasure", "endMeasure"} {
			if n := xml.Child(lock.node, name); n != nil {
				refs = append(refs, n)
			}
		}
	}
	return refs
}

// Unresolved returns lock references naming no eid in eids.
func (l *SystemLocks) Unresolved(eids map[string]struct{}) []string {
	var missing []string
	for _, ref := range l.References() {
		v := strings.TrimSpace(ref.InnerText())
		if _, ok := eids[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
