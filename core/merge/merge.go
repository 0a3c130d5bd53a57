// Package merge appends the content of one score onto another.
//
// Staves are paired by id, never by position. Measures are always copied;
// frames and system locks are copied per Options. Merging is append-only:
// nothing already in the target is reordered or modified, except for layout
// breaks added by InsertBreaks.
package merge

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/diedeno/mscz-concatenator/core/eid"
	"github.com/diedeno/mscz-concatenator/core/score"
	"github.com/diedeno/mscz-concatenator/core/xml"
)

// Options selects the content classes copied from a source.
type Options struct {
	CopyFrames      bool
	CopyTitleFrames bool // only with CopyFrames
	CopySystemLocks bool
	CopyPictures    bool
}

// DefaultOptions copies frames, title frames and system locks.
func DefaultOptions() Options {
	return Options{CopyFrames: true, CopyTitleFrames: true, CopySystemLocks: true}
}

// MeasuresOnly copies measures and system locks only.
func MeasuresOnly() Options {
	return Options{CopySystemLocks: true}
}

// WithFrames copies frames, dropping a leading title frame when skipTitle
// is set.
func WithFrames(skipTitle bool) Options {
	return Options{CopyFrames: true, CopyTitleFrames: !skipTitle, CopySystemLocks: true}
}

// Mismatch describes staff layouts that cannot be aligned.
type Mismatch struct {
	TargetIDs []int
	SourceIDs []int
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("staff layout differs: target staves %v, source staves %v", m.TargetIDs, m.SourceIDs)
}

// Reason is the report text for a mismatch.
func (m *Mismatch) Reason() string {
	if len(m.TargetIDs) != len(m.SourceIDs) {
		return fmt.Sprintf("different staff count (%d vs %d)", len(m.TargetIDs), len(m.SourceIDs))
	}
	return fmt.Sprintf("different staff ids (%v vs %v)", m.TargetIDs, m.SourceIDs)
}

// Result is the outcome of one Merge.
type Result struct {
	// Renamed maps source eids that collided with the target to their
	// replacements. Empty when nothing collided.
	Renamed eid.Mapping
	// Mismatch is set when the staves could not be aligned. The target is
	// left untouched in that case.
	Mismatch *Mismatch
	// Measures and Frames count the appended elements.
	Measures int
	Frames   int
	// Locks counts the appended system lock ranges.
	Locks int
}

// Merged reports whether content was appended.
func (r Result) Merged() bool { return r.Mismatch == nil }

// Collided reports whether identifiers were renamed.
func (r Result) Collided() bool { return len(r.Renamed) > 0 }

// Engine merges sources into a target.
type Engine struct {
	opts   Options
	logger *slog.Logger
	gen    *eid.Generator
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the diagnostic logger. The default discards.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithGenerator sets the identifier generator used for renames.
func WithGenerator(g *eid.Generator) EngineOption {
	return func(e *Engine) {
		if g != nil {
			e.gen = g
		}
	}
}

// NewEngine returns an engine copying per opts.
func NewEngine(opts Options, options ...EngineOption) *Engine {
	e := &Engine{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		gen:    eid.NewGenerator(nil),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Options returns the engine's options.
func (e *Engine) Options() Options { return e.opts }

// Merge renames colliding identifiers in source, then appends the source's
// staff content and system locks onto target. A staff mismatch is reported
// in the result, not as an error; errors are internal failures only.
func (e *Engine) Merge(target, source *score.Score) (Result, error) {
	var res Result

	collisions := eid.FindCollisions(target, source)
	mapping, err := e.gen.Remap(target, source, collisions)
	if err != nil {
		return res, fmt.Errorf("renaming identifiers: %w", err)
	}
	res.Renamed = mapping
	if len(mapping) > 0 {
		e.logger.Debug("renamed colliding identifiers", "count", len(mapping))
	}

	if m := CheckAlignment(target, source); m != nil {
		e.logger.Debug("staff mismatch", "target", m.TargetIDs, "source", m.SourceIDs)
		res.Mismatch = m
		return res, nil
	}

	for _, dst := range target.Staves() {
		id, ok := dst.ID()
		if !ok {
			continue
		}
		src, ok := source.Staff(id)
		if !ok {
			continue
		}
		m, f := e.copyStaff(dst, src)
		res.Measures += m
		res.Frames += f
		e.logger.Debug("merged staff", "staff", id, "measures", m, "frames", f)
	}

	if e.opts.CopySystemLocks {
		res.Locks = mergeLocks(target, source)
	}
	return res, nil
}

// frameSlot tracks whether a staff's first frame has been seen. Only the
// first frame may be dropped as a title.
type frameSlot struct {
	firstSeen bool
}

// admit decides whether f is copied and returns the next slot state.
func (s frameSlot) admit(f *score.Frame, copyTitles bool) (bool, frameSlot) {
	if !s.firstSeen && !copyTitles && f.IsTitle() {
		return false, frameSlot{firstSeen: true}
	}
	return true, frameSlot{firstSeen: true}
}

func (e *Engine) copyStaff(dst, src *score.Staff) (measures, frames int) {
	var slot frameSlot
	for _, c := range src.Children() {
		switch c.Kind {
		case score.KindMeasure:
			dst.Append(xml.Clone(c.Node))
			measures++
		case score.KindFrame:
			if !e.opts.CopyFrames {
				continue
			}
			var ok bool
			ok, slot = slot.admit(c.Frame(), e.opts.CopyTitleFrames)
			if !ok {
				e.logger.Debug("dropped title frame", "kind", c.Node.Data)
				continue
			}
			dst.Append(xml.Clone(c.Node))
			frames++
		}
	}
	return measures, frames
}

func mergeLocks(target, source *score.Score) int {
	src := source.SystemLocks()
	if src == nil {
		return 0
	}
	locks := src.Locks()
	dst := target.SystemLocks()
	if dst == nil {
		target.AttachSystemLocks(xml.Clone(src.Node()))
		return len(locks)
	}
	for _, l := range locks {
		dst.Append(xml.Clone(l.Node()))
	}
	return len(locks)
}

// CheckAlignment returns a Mismatch unless target and source have the same
// number of content staves with the same id set.
func CheckAlignment(target, source *score.Score) *Mismatch {
	t, s := staffIDs(target), staffIDs(source)
	if len(t) != len(s) {
		return &Mismatch{TargetIDs: t, SourceIDs: s}
	}
	a, b := sortedCopy(t), sortedCopy(s)
	for i := range a {
		if a[i] != b[i] {
			return &Mismatch{TargetIDs: t, SourceIDs: s}
		}
	}
	return nil
}

func staffIDs(s *score.Score) []int {
	var ids []int
	for _, st := range s.Staves() {
		id, ok := st.ID()
		if !ok {
			id = -1
		}
		ids = append(ids, id)
	}
	return ids
}

func sortedCopy(ids []int) []int {
	out := append([]int(nil), ids...)
	sort.Ints(out)
	return out
}
