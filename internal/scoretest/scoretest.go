// Package scoretest builds score trees and containers for tests.
package scoretest

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/diedeno/mscz-concatenator/core/encoding"
	"github.com/diedeno/mscz-concatenator/core/score"
)

// Builder assembles MuseScore XML.
type Builder struct {
	version    string
	parts      []partSpec
	staffOrder []int
	content    map[int][]string
	locks      [][2]string
	extra      []string
}

type partSpec struct {
	name   string
	staves []int
}

// New returns a builder for a 4.x score.
func New() *Builder {
	return &Builder{version: "4.20", content: make(map[int][]string)}
}

// Version sets the museScore version attribute.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Part adds a part named name owning the given staff ids. With no ids the
// part gets the next free id.
func (b *Builder) Part(name string, staffIDs ...int) *Builder {
	if len(staffIDs) == 0 {
		staffIDs = []int{b.nextID()}
	}
	b.parts = append(b.parts, partSpec{name: name, staves: staffIDs})
	for _, id := range staffIDs {
		b.staff(id)
	}
	return b
}

// Parts adds one single-staff part per name.
func (b *Builder) Parts(names ...string) *Builder {
	for _, name := range names {
		b.Part(name)
	}
	return b
}

func (b *Builder) nextID() int {
	max := 0
	for _, id := range b.staffOrder {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (b *Builder) staff(id int) {
	if _, ok := b.content[id]; !ok {
		b.staffOrder = append(b.staffOrder, id)
		b.content[id] = nil
	}
}

// Measures appends one measure per eid to staff id. An empty eid writes a
// measure without eid.
func (b *Builder) Measures(id int, eids ...string) *Builder {
	b.staff(id)
	for _, eid := range eids {
		b.content[id] = append(b.content[id], Measure(eid, ""))
	}
	return b
}

// EmptyMeasures appends n measures without eid to staff id.
func (b *Builder) EmptyMeasures(id, n int) *Builder {
	for i := 0; i < n; i++ {
		b.Measures(id, "")
	}
	return b
}

// Raw appends a raw child element to staff id.
func (b *Builder) Raw(id int, child string) *Builder {
	b.staff(id)
	b.content[id] = append(b.content[id], child)
	return b
}

// Frame appends a frame of kind to staff id. With title set the frame holds
// a Text styled "title".
func (b *Builder) Frame(id int, kind score.FrameKind, title bool) *Builder {
	return b.Raw(id, Frame(kind, title))
}

// Lock adds a system lock range.
func (b *Builder) Lock(start, end string) *Builder {
	b.locks = append(b.locks, [2]string{start, end})
	return b
}

// ScoreChild adds a raw element to the Score element.
func (b *Builder) ScoreChild(child string) *Builder {
	b.extra = append(b.extra, child)
	return b
}

// XML renders the score.
func (b *Builder) XML() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&sb, "<museScore version=%q>\n", b.version)
	sb.WriteString("<programVersion>4.2.0</programVersion>\n")
	sb.WriteString("<Score>\n")
	sb.WriteString(`<metaTag name="workTitle">Test</metaTag>` + "\n")
	for _, extra := range b.extra {
		sb.WriteString(extra + "\n")
	}
	for _, p := range b.parts {
		sb.WriteString("<Part>\n")
		for _, id := range p.staves {
			fmt.Fprintf(&sb, "<Staff id=\"%d\"><defaultClef>G</defaultClef></Staff>\n", id)
		}
		if p.name != "" {
			fmt.Fprintf(&sb, "<trackName>%s</trackName>\n", encoding.EscapeXMLText(p.name))
		}
		sb.WriteString("<Instrument>")
		if p.name != "" {
			fmt.Fprintf(&sb, "<longName>%s</longName>", encoding.EscapeXMLText(p.name))
		}
		sb.WriteString(`<Channel><program value="40"/><controller ctrl="7" value="100"/><midiPort>0</midiPort><midiChannel>0</midiChannel></Channel>`)
		sb.WriteString("</Instrument>\n")
		sb.WriteString("</Part>\n")
	}
	for _, id := range b.staffOrder {
		fmt.Fprintf(&sb, "<Staff id=\"%d\">\n", id)
		for _, child := range b.content[id] {
			sb.WriteString(child + "\n")
		}
		sb.WriteString("</Staff>\n")
	}
	if len(b.locks) > 0 {
		sb.WriteString("<SystemLocks>\n")
		for _, l := range b.locks {
			fmt.Fprintf(&sb, "<systemLock><startMeasure>%s</startMeasure><endMeasure>%s</endMeasure></systemLock>\n", l[0], l[1])
		}
		sb.WriteString("</SystemLocks>\n")
	}
	sb.WriteString("</Score>\n</museScore>\n")
	return sb.String()
}

// Score parses the rendered XML.
func (b *Builder) Score(t testing.TB) *score.Score {
	t.Helper()
	s, err := score.Parse([]byte(b.XML()))
	if err != nil {
		t.Fatalf("parse built score: %v", err)
	}
	return s
}

// Measure renders a measure with an optional eid and extra inner XML.
func Measure(eid, inner string) string {
	var sb strings.Builder
	sb.WriteString("<Measure>")
	if eid != "" {
		fmt.Fprintf(&sb, "<eid>%s</eid>", eid)
	}
	if inner != "" {
		sb.WriteString(inner)
	}
	sb.WriteString("<voice><Rest><durationType>measure</durationType><duration>4/4</duration></Rest></voice></Measure>")
	return sb.String()
}

// Frame renders a frame element.
func Frame(kind score.FrameKind, title bool) string {
	style := "subtitle"
	if title {
		style = "title"
	}
	return fmt.Sprintf("<%s><height>10</height><Text><style>%s</style><text>Frame</text></Text></%s>", kind, style, kind)
}

// Container describes an .mscz file to write.
type Container struct {
	ScoreName string            // defaults to "score.mscx"
	Score     string            // score XML
	Manifest  bool              // write META-INF/container.xml
	Rootfile  string            // manifest target, defaults to ScoreName
	Assets    map[string][]byte // extra entries, written in name order
	Comment   string
}

// WriteMSCZ writes c as dir/name and returns the path.
func WriteMSCZ(t testing.TB, dir, name string, c Container) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	scoreName := c.ScoreName
	if scoreName == "" {
		scoreName = "score.mscx"
	}

	zw := zip.NewWriter(f)
	write := func(name string, data []byte) {
		method := zip.Deflate
		if strings.HasSuffix(name, "/") {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if c.Manifest {
		rootfile := c.Rootfile
		if rootfile == "" {
			rootfile = scoreName
		}
		write("META-INF/container.xml", []byte(Manifest(rootfile)))
	}
	write(scoreName, []byte(c.Score))

	names := make([]string, 0, len(c.Assets))
	for n := range c.Assets {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		write(n, c.Assets[n])
	}
	if c.Comment != "" {
		if err := zw.SetComment(c.Comment); err != nil {
			t.Fatalf("set comment: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return path
}

// WriteScore writes b as a plain .mscz with the given assets.
func WriteScore(t testing.TB, dir, name string, b *Builder, assets map[string][]byte) string {
	t.Helper()
	return WriteMSCZ(t, dir, name, Container{Score: b.XML(), Manifest: true, Assets: assets})
}

// Manifest renders a META-INF/container.xml naming scoreName.
func Manifest(scoreName string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<container>
  <rootfiles>
    <rootfile full-path="` + scoreName + `"/>
  </rootfiles>
</container>
`
}
