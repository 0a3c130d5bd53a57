package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/diedeno/mscz-concatenator/core/concat"
	"github.com/diedeno/mscz-concatenator/core/mscz"
)

// Color palette.
var (
	colorPrimary = lipgloss.Color("39")  // Blue
	colorSuccess = lipgloss.Color("34")  // Green
	colorWarning = lipgloss.Color("214") // Orange
	colorError   = lipgloss.Color("196") // Red
	colorMuted   = lipgloss.Color("240") // Dark gray
)

const (
	symbolCheck  = "✓"
	symbolCross  = "✗"
	symbolWarn   = "!"
	symbolBullet = "•"
)

type styles struct {
	title   lipgloss.Style
	heading lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
}

// newStyles binds styles to w, so colour is only emitted on a terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		heading: r.NewStyle().Bold(true),
		ok:      r.NewStyle().Foreground(colorSuccess),
		warn:    r.NewStyle().Foreground(colorWarning),
		err:     r.NewStyle().Foreground(colorError).Bold(true),
		muted:   r.NewStyle().Foreground(colorMuted),
	}
}

func (a *app) renderReport(r *concat.Report) {
	s := a.styles
	size := ""
	if info, err := os.Stat(r.Output); err == nil {
		size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
	}
	fmt.Fprintf(a.stdout, "%s merged %d of %d scores into %s%s\n",
		s.ok.Render(symbolCheck), len(r.Merged), len(r.Merged)+len(r.Skipped), s.title.Render(r.Output), size)

	for _, sk := range r.Skipped {
		fmt.Fprintf(a.stdout, "  %s skipped %s\n", s.warn.Render(symbolCross), sk)
	}
	for _, w := range r.Warnings() {
		fmt.Fprintf(a.stdout, "  %s %s\n", s.warn.Render(symbolWarn), w)
	}
	if r.AssetsCopied > 0 {
		fmt.Fprintf(a.stdout, "  %s copied %d asset(s)\n", s.muted.Render(symbolBullet), r.AssetsCopied)
	}
	fmt.Fprintf(a.stdout, "  %s\n", s.muted.Render("blake3 "+r.OutputDigest+"  "+r.Duration.Round(time.Millisecond).String()))
}

func (a *app) renderCheck(r *concat.Report) {
	s := a.styles
	fmt.Fprintf(a.stdout, "%s %s\n", s.heading.Render("base"), r.Merged[0])
	for _, path := range r.Merged[1:] {
		fmt.Fprintf(a.stdout, "  %s %s\n", s.ok.Render(symbolCheck), path)
	}
	for _, sk := range r.Skipped {
		fmt.Fprintf(a.stdout, "  %s %s\n", s.err.Render(symbolCross), sk)
	}
}

type skipJSON struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}

type renamedJSON struct {
	Path    string            `json:"path"`
	Mapping map[string]string `json:"mapping"`
}

type reportJSON struct {
	RunID        string        `json:"run_id"`
	Merged       []string      `json:"merged"`
	Skipped      []skipJSON    `json:"skipped"`
	Renamed      []renamedJSON `json:"renamed,omitempty"`
	AssetsCopied int           `json:"assets_copied"`
	Output       string        `json:"output,omitempty"`
	OutputDigest string        `json:"output_blake3,omitempty"`
	DurationMS   int64         `json:"duration_ms"`
}

func newReportJSON(r *concat.Report) reportJSON {
	out := reportJSON{
		RunID:        r.RunID,
		Merged:       r.Merged,
		Skipped:      []skipJSON{},
		AssetsCopied: r.AssetsCopied,
		Output:       r.Output,
		OutputDigest: r.OutputDigest,
		DurationMS:   r.Duration.Milliseconds(),
	}
	for _, sk := range r.Skipped {
		out.Skipped = append(out.Skipped, skipJSON{Path: sk.Path, Reason: sk.Reason, Kind: sk.Kind.String()})
	}
	for _, rn := range r.Renamed {
		out.Renamed = append(out.Renamed, renamedJSON{Path: rn.Path, Mapping: rn.Mapping})
	}
	return out
}

type channelInfo struct {
	Name        string `json:"name"`
	Program     *int   `json:"program,omitempty"`
	Volume      *int   `json:"volume,omitempty"`
	Balance     *int   `json:"balance,omitempty"`
	Pan         *int   `json:"pan,omitempty"`
	MIDIPort    *int   `json:"midi_port,omitempty"`
	MIDIChannel *int   `json:"midi_channel,omitempty"`
}

type partInfo struct {
	Name              string        `json:"name"`
	Instrument        string        `json:"instrument,omitempty"`
	ShortName         string        `json:"short_name,omitempty"`
	Staves            []int         `json:"staves"`
	Channels          []channelInfo `json:"channels,omitempty"`
	DuplicateChannels []string      `json:"duplicate_channels,omitempty"`
}

type staffInfo struct {
	ID       int `json:"id"`
	Measures int `json:"measures"`
	Empty    int `json:"empty_measures"`
	Frames   int `json:"frames"`
}

type entryInfo struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

type inspection struct {
	Path           string            `json:"path"`
	Version        string            `json:"version"`
	ProgramVersion string            `json:"program_version,omitempty"`
	Compressed     bool              `json:"compressed"`
	ScoreEntry     string            `json:"score_entry,omitempty"`
	Entries        []entryInfo       `json:"entries,omitempty"`
	Parts          []partInfo        `json:"parts"`
	DuplicateParts []string          `json:"duplicate_parts,omitempty"`
	Staves         []staffInfo       `json:"staves"`
	EIDs           int               `json:"eids"`
	SystemLocks    int               `json:"system_locks"`
	SoundFonts     []string          `json:"sound_fonts,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

func optional(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

func inspect(doc *mscz.Document) inspection {
	tree := doc.Tree()
	info := inspection{
		Path:           doc.Path(),
		Version:        tree.Version(),
		ProgramVersion: tree.ProgramVersion(),
		Compressed:     doc.IsCompressed(),
		ScoreEntry:     doc.ScoreEntry(),
		DuplicateParts: tree.DuplicatePartNames(),
		EIDs:           len(tree.EIDNodes()),
		SoundFonts:     tree.SoundFonts(),
		Meta:           map[string]string{},
	}
	for _, name := range doc.Entries() {
		info.Entries = append(info.Entries, entryInfo{Name: name, Size: doc.AssetSize(name)})
	}

	for _, p := range tree.Parts() {
		pi := partInfo{Name: p.Name(), Staves: []int{}}
		for _, d := range p.StaffDefs() {
			if id, ok := d.ID(); ok {
				pi.Staves = append(pi.Staves, id)
			}
		}
		if inst := p.Instrument(); inst != nil {
			pi.Instrument = inst.Name()
			pi.ShortName = inst.ShortName()
			pi.DuplicateChannels = inst.DuplicateChannelNames()
			for _, ch := range inst.Channels() {
				pi.Channels = append(pi.Channels, channelInfo{
					Name:        ch.Name(),
					Program:     optional(ch.Program()),
					Volume:      optional(ch.Volume()),
					Balance:     optional(ch.Balance()),
					Pan:         optional(ch.Pan()),
					MIDIPort:    optional(ch.MIDIPort()),
					MIDIChannel: optional(ch.MIDIChannel()),
				})
			}
		}
		info.Parts = append(info.Parts, pi)
	}

	for _, st := range tree.Staves() {
		id, _ := st.ID()
		si := staffInfo{ID: id, Measures: st.Length(), Frames: len(st.Frames())}
		for _, m := range st.Measures() {
			if m.IsEmpty() {
				si.Empty++
			}
		}
		info.Staves = append(info.Staves, si)
	}

	if locks := tree.SystemLocks(); locks != nil {
		info.SystemLocks = len(locks.Locks())
	}
	for k, v := range tree.MetaTags() {
		if v != "" {
			info.Meta[k] = v
		}
	}
	return info
}

func (a *app) renderInspection(info inspection) {
	s := a.styles
	w := a.stdout

	kind := "plain"
	if info.Compressed {
		kind = "compressed"
	}
	fmt.Fprintf(w, "%s  %s\n", s.title.Render(filepath.Base(info.Path)),
		s.muted.Render(fmt.Sprintf("MuseScore %s, %s", info.Version, kind)))

	fmt.Fprintln(w, s.heading.Render("Parts"))
	for i, p := range info.Parts {
		staves := make([]string, len(p.Staves))
		for j, id := range p.Staves {
			staves[j] = fmt.Sprint(id)
		}
		inst := p.Instrument
		if p.ShortName != "" {
			inst += " / " + p.ShortName
		}
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, p.Name,
			s.muted.Render(fmt.Sprintf("(%s, staves %s)", inst, strings.Join(staves, ","))))
		for _, ch := range p.Channels {
			fmt.Fprintf(w, "     %s %s\n", s.muted.Render(symbolBullet), channelLine(ch))
		}
		for _, name := range p.DuplicateChannels {
			fmt.Fprintf(w, "     %s duplicate channel name %q\n", s.warn.Render(symbolWarn), name)
		}
	}
	for _, name := range info.DuplicateParts {
		fmt.Fprintf(w, "  %s duplicate part name %q\n", s.warn.Render(symbolWarn), name)
	}

	fmt.Fprintln(w, s.heading.Render("Staves"))
	for _, st := range info.Staves {
		fmt.Fprintf(w, "  %d  %d measures, %d empty, %d frames\n", st.ID, st.Measures, st.Empty, st.Frames)
	}
	fmt.Fprintf(w, "%s %d eids, %d system locks\n", s.heading.Render("Identifiers"), info.EIDs, info.SystemLocks)
	if len(info.SoundFonts) > 0 {
		fmt.Fprintf(w, "%s %s\n", s.heading.Render("Sound fonts"), strings.Join(info.SoundFonts, ", "))
	}

	if len(info.Meta) > 0 {
		fmt.Fprintln(w, s.heading.Render("Meta"))
		keys := make([]string, 0, len(info.Meta))
		for k := range info.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, info.Meta[k])
		}
	}

	if len(info.Entries) > 0 {
		fmt.Fprintln(w, s.heading.Render("Entries"))
		for _, e := range info.Entries {
			fmt.Fprintf(w, "  %-40s %s\n", e.Name, s.muted.Render(humanize.Bytes(e.Size)))
		}
	}
}

func channelLine(ch channelInfo) string {
	parts := []string{ch.Name}
	for _, v := range []struct {
		label string
		value *int
	}{
		{"program", ch.Program},
		{"volume", ch.Volume},
		{"balance", ch.Balance},
		{"pan", ch.Pan},
	} {
		if v.value != nil {
			parts = append(parts, fmt.Sprintf("%s %d", v.label, *v.value))
		}
	}
	if ch.MIDIPort != nil {
		parts = append(parts, fmt.Sprintf("port %d", *ch.MIDIPort))
	}
	if ch.MIDIChannel != nil {
		parts = append(parts, fmt.Sprintf("channel %d", *ch.MIDIChannel))
	}
	return strings.Join(parts, "  ")
}
