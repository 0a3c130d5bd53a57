package score

import (
	"fmt"
	"strconv"

	"github.com/antchfx/xmlquery"

	"github.com/diedeno/mscz-concatenator/core/xml"
)

// MIDI controller numbers stored on channels.
const (
	CCBankMSB = 0
	CCVolume  = 7
	CCBalance = 8
	CCPan     = 10
	CCBankLSB = 32
)

// DefaultChannel is the name of a channel without a name attribute.
const DefaultChannel = "normal"

// Part is a named track.
type Part struct {
	node  *xmlquery.Node
	score *Score
	index int
}

// Node returns the Part element.
func (p *Part) Node() *xmlquery.Node { return p.node }

// Index returns the position of the part in the score.
func (p *Part) Index() int { return p.index }

// TrackName returns the raw trackName, possibly empty.
func (p *Part) TrackName() string {
	v, _ := xml.ChildText(p.node, "trackName")
	return v
}

// Name returns the display name: trackName, else the instrument name.
func (p *Part) Name() string {
	if name := p.TrackName(); name != "" {
		return name
	}
	if inst := p.Instrument(); inst != nil {
		return inst.Name()
	}
	return ""
}

// Instrument returns the part's instrument, or nil.
func (p *Part) Instrument() *Instrument {
	if n := xml.Child(p.node, "Instrument"); n != nil {
		return &Instrument{node: n}
	}
	return nil
}

// ReplaceInstrument swaps the instrument for a deep copy of inst.
func (p *Part) ReplaceInstrument(inst *Instrument) {
	xml.Remove(xml.Child(p.node, "Instrument"))
	xml.Append(p.node, xml.Clone(inst.node))
}

// StaffDefs returns the staff definitions owned by the part.
func (p *Part) StaffDefs() []*StaffDef {
	nodes := xml.ChildrenNamed(p.node, StaffElement)
	defs := make([]*StaffDef, 0, len(nodes))
	for _, n := range nodes {
		defs = append(defs, &StaffDef{node: n})
	}
	return defs
}

// Staves returns the content staves matching the part's staff definitions.
func (p *Part) Staves() []*Staff {
	var staves []*Staff
	for _, def := range p.StaffDefs() {
		id, ok := def.ID()
		if !ok {
			continue
		}
		if st, ok := p.score.Staff(id); ok {
			staves = append(staves, st)
		}
	}
	return staves
}

// ChannelSwitchesUsed returns the channel switch names used on the part's
// staves.
func (p *Part) ChannelSwitchesUsed() map[string]struct{} {
	used := make(map[string]struct{})
	for _, st := range p.Staves() {
		for name := range st.ChannelSwitchesUsed() {
			used[name] = struct{}{}
		}
	}
	return used
}

// CopyClefs copies default clefs from the staff definitions of src,
// position by position.
func (p *Part) CopyClefs(src *Part) {
	dst := p.StaffDefs()
	for i, def := range src.StaffDefs() {
		if i >= len(dst) {
			return
		}
		for _, name := range []string{"defaultClef", "defaultConcertClef", "defaultTransposingClef"} {
			if text, ok := xml.ChildText(def.node, name); ok {
				xml.SetText(xml.EnsureChild(dst[i].node, name), text)
			}
		}
	}
}

// StaffDef is a staff definition inside a Part.
type StaffDef struct {
	node *xmlquery.Node
}

// Node returns the Part/Staff element.
func (d *StaffDef) Node() *xmlquery.Node { return d.node }

// ID returns the staff id.
func (d *StaffDef) ID() (int, bool) {
	return parseID(xml.Attr(d.node, "id"))
}

// Clef returns the default clef, falling back to the concert clef and G.
func (d *StaffDef) Clef() string {
	if v, ok := xml.ChildText(d.node, "defaultClef"); ok {
		return v
	}
	if v, ok := xml.ChildText(d.node, "defaultConcertClef"); ok {
		return v
	}
	return "G"
}

// Type returns "<group> <name>" of the staff type, or "".
func (d *StaffDef) Type() string {
	st := xml.Child(d.node, "StaffType")
	if st == nil || !xml.HasAttr(st, "group") {
		return ""
	}
	name, _ := xml.ChildText(st, "name")
	return xml.Attr(st, "group") + " " + name
}

// Color is an RGBA staff color.
type Color struct {
	R, G, B, A uint8
}

// Color returns the staff color, if set.
func (d *StaffDef) Color() (Color, bool) {
	n := xml.Child(d.node, "color")
	if n == nil {
		return Color{}, false
	}
	var c Color
	for _, ch := range []struct {
		attr string
		dst  *uint8
	}{{"r", &c.R}, {"g", &c.G}, {"b", &c.B}, {"a", &c.A}} {
		v, err := strconv.ParseUint(xml.Attr(n, ch.attr), 10, 8)
		if err != nil {
			return Color{}, false
		}
		*ch.dst = uint8(v)
	}
	return c, true
}

// SetColor sets the staff color.
func (d *StaffDef) SetColor(c Color) {
	n := xml.EnsureChild(d.node, "color")
	xml.SetAttr(n, "r", strconv.Itoa(int(c.R)))
	xml.SetAttr(n, "g", strconv.Itoa(int(c.G)))
	xml.SetAttr(n, "b", strconv.Itoa(int(c.B)))
	xml.SetAttr(n, "a", strconv.Itoa(int(c.A)))
}

// Instrument describes the sound and names of a part.
type Instrument struct {
	node *xmlquery.Node
}

// Node returns the Instrument element.
func (i *Instrument) Node() *xmlquery.Node { return i.node }

// Name returns the long name, falling back to the track name.
func (i *Instrument) Name() string {
	if v := i.LongName(); v != "" {
		return v
	}
	return i.TrackName()
}

func (i *Instrument) LongName() string  { return i.text("longName") }
func (i *Instrument) ShortName() string { return i.text("shortName") }
func (i *Instrument) TrackName() string { return i.text("trackName") }

// MusicXMLID returns the instrumentId, e.g. "strings.violin".
func (i *Instrument) MusicXMLID() string { return i.text("instrumentId") }

func (i *Instrument) text(name string) string {
	v, _ := xml.ChildText(i.node, name)
	return v
}

// Channels returns the channels in document order, duplicates included.
func (i *Instrument) Channels() []*Channel {
	nodes := xml.ChildrenNamed(i.node, "Channel")
	channels := make([]*Channel, 0, len(nodes))
	for _, n := range nodes {
		channels = append(channels, &Channel{node: n, instrument: i})
	}
	return channels
}

// Channel returns the first channel called name.
func (i *Instrument) Channel(name string) (*Channel, bool) {
	for _, c := range i.Channels() {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

// ChannelNames returns every channel name, duplicates included.
func (i *Instrument) ChannelNames() []string {
	var names []string
	for _, c := range i.Channels() {
		names = append(names, c.Name())
	}
	return names
}

// DuplicateChannelNames returns every channel name used more than once.
func (i *Instrument) DuplicateChannelNames() []string {
	return duplicates(i.ChannelNames())
}

// DedupeChannels removes every channel whose name was already seen and
// returns how many were removed.
func (i *Instrument) DedupeChannels() int {
	seen := make(map[string]struct{})
	removed := 0
	for _, c := range i.Channels() {
		if _, dup := seen[c.Name()]; dup {
			xml.Remove(c.node)
			removed++
			continue
		}
		seen[c.Name()] = struct{}{}
	}
	return removed
}

// AddChannel appends an empty channel called name.
func (i *Instrument) AddChannel(name string) (*Channel, error) {
	if _, exists := i.Channel(name); exists {
		return nil, fmt.Errorf("channel %q already exists", name)
	}
	n := xml.NewElement("Channel")
	xml.SetAttr(n, "name", name)
	xml.Append(i.node, n)
	return &Channel{node: n, instrument: i}, nil
}

// RemoveChannel removes the first channel called name.
func (i *Instrument) RemoveChannel(name string) bool {
	c, ok := i.Channel(name)
	if !ok {
		return false
	}
	xml.Remove(c.node)
	return true
}

// ClearSynth drops controller, program and synthesizer settings from every
// channel.
func (i *Instrument) ClearSynth() {
	for _, c := range i.Channels() {
		for _, name := range []string{"controller", "program", "synti"} {
			for _, n := range xml.ChildrenNamed(c.node, name) {
				xml.Remove(n)
			}
		}
	}
}

// Channel is the sound configuration of one instrument voice. MIDI port and
// channel are stored zero-based and exposed one-based.
type Channel struct {
	node       *xmlquery.Node
	instrument *Instrument
}

// Node returns the Channel element.
func (c *Channel) Node() *xmlquery.Node { return c.node }

// Name returns the channel name, DefaultChannel when unset.
func (c *Channel) Name() string {
	if xml.HasAttr(c.node, "name") {
		return xml.Attr(c.node, "name")
	}
	return DefaultChannel
}

// VoiceName returns "<instrument>/<channel>".
func (c *Channel) VoiceName() string {
	return c.instrument.Name() + "/" + c.Name()
}

// Program returns the program number.
func (c *Channel) Program() (int, bool) {
	n := xml.Child(c.node, "program")
	if n == nil {
		return 0, false
	}
	v, err := strconv.Atoi(xml.Attr(n, "value"))
	return v, err == nil
}

// Controller returns a controller value.
func (c *Channel) Controller(cc int) (int, bool) {
	n := c.controller(cc)
	if n == nil {
		return 0, false
	}
	v, err := strconv.Atoi(xml.Attr(n, "value"))
	return v, err == nil
}

// SetController sets a controller value in 0..127.
func (c *Channel) SetController(cc, value int) error {
	if value < 0 || value > 127 {
		return fmt.Errorf("controller %d value %d out of range 0..127", cc, value)
	}
	n := c.controller(cc)
	if n == nil {
		n = xml.NewElement("controller")
		xml.SetAttr(n, "ctrl", strconv.Itoa(cc))
		xml.Append(c.node, n)
	}
	xml.SetAttr(n, "value", strconv.Itoa(value))
	return nil
}

func (c *Channel) controller(cc int) *xmlquery.Node {
	want := strconv.Itoa(cc)
	for _, n := range xml.ChildrenNamed(c.node, "controller") {
		if xml.Attr(n, "ctrl") == want {
			return n
		}
	}
	return nil
}

func (c *Channel) BankMSB() (int, bool) { return c.Controller(CCBankMSB) }
func (c *Channel) BankLSB() (int, bool) { return c.Controller(CCBankLSB) }
func (c *Channel) Volume() (int, bool)  { return c.Controller(CCVolume) }
func (c *Channel) Balance() (int, bool) { return c.Controller(CCBalance) }
func (c *Channel) Pan() (int, bool)     { return c.Controller(CCPan) }

func (c *Channel) SetVolume(v int) error  { return c.SetController(CCVolume, v) }
func (c *Channel) SetBalance(v int) error { return c.SetController(CCBalance, v) }
func (c *Channel) SetPan(v int) error     { return c.SetController(CCPan, v) }

// IDString renders bank MSB, bank LSB and program as "MM:LL:PP", using -1
// for missing values.
func (c *Channel) IDString() string {
	get := func(v int, ok bool) int {
		if !ok {
			return -1
		}
		return v
	}
	msb := get(c.BankMSB())
	lsb := get(c.BankLSB())
	prog := get(c.Program())
	return fmt.Sprintf("%02d:%02d:%02d", msb, lsb, prog)
}

// MIDIPort returns the one-based MIDI port.
func (c *Channel) MIDIPort() (int, bool) {
	v, ok := childInt(c.node, "midiPort")
	if !ok {
		return 0, false
	}
	return v + 1, true
}

// SetMIDIPort stores a one-based MIDI port.
func (c *Channel) SetMIDIPort(port int) error {
	if port < 1 {
		return fmt.Errorf("midi port must be greater than 0, got %d", port)
	}
	xml.SetText(xml.EnsureChild(c.node, "midiPort"), strconv.Itoa(port-1))
	return nil
}

// MIDIChannel returns the one-based MIDI channel.
func (c *Channel) MIDIChannel() (int, bool) {
	v, ok := childInt(c.node, "midiChannel")
	if !ok {
		return 0, false
	}
	return v + 1, true
}

// SetMIDIChannel stores a one-based MIDI channel in 1..16.
func (c *Channel) SetMIDIChannel(ch int) error {
	if ch < 1 || ch > 16 {
		return fmt.Errorf("midi channel must be between 1 and 16, got %d", ch)
	}
	xml.SetText(xml.EnsureChild(c.node, "midiChannel"), strconv.Itoa(ch-1))
	return nil
}

func parseID(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}
