// Package concat merges an ordered list of MuseScore documents into one.
//
// The first source is the base: its container is carried over entry by
// entry and every later source is appended onto its score. Incompatible or
// misaligned sources are skipped and reported; usage and I/O errors abort
// before the output is written. The output path is only touched by the
// final save.
package concat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/diedeno/mscz-concatenator/core/compat"
	"github.com/diedeno/mscz-concatenator/core/eid"
	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/merge"
	"github.com/diedeno/mscz-concatenator/core/mscz"
	"github.com/diedeno/mscz-concatenator/internal/logging"
	"github.com/diedeno/mscz-concatenator/internal/validation"
)

// Options configures a run.
type Options struct {
	Merge   merge.Options
	Compat  compat.Options
	Breaks  merge.Breaks
	Section merge.SectionBreak
	// AssetPrefix selects the entries copied with Merge.CopyPictures.
	// Empty means pictures.
	AssetPrefix string
}

// DefaultOptions copies everything but pictures, matches part names
// exactly, skips incompatible sources and inserts no breaks.
func DefaultOptions() Options {
	return Options{
		Merge:   merge.DefaultOptions(),
		Compat:  compat.DefaultOptions(),
		Section: merge.DefaultSectionBreak(),
	}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if err := o.Compat.Validate(); err != nil {
		return err
	}
	if o.Section.Pause < 0 {
		return errors.NewValidation("pause", fmt.Sprintf("must not be negative, got %g", o.Section.Pause))
	}
	return nil
}

// ProgressFunc is called with the number of processed sources and the
// total, once after the base is loaded and once after every later source.
type ProgressFunc func(current, total int)

// Skip is a source left out of the merge.
type Skip struct {
	Path   string
	Reason string
	Kind   errors.Kind // KindCompatibility or KindStructural
}

func (s Skip) String() string {
	return fmt.Sprintf("%s: %s", s.Path, s.Reason)
}

// Renamed records the identifiers renamed in one source.
type Renamed struct {
	Path    string
	Mapping eid.Mapping
}

// Report summarizes a run.
type Report struct {
	RunID        string
	Merged       []string // base first
	Skipped      []Skip
	Renamed      []Renamed
	AssetsCopied int
	Output       string
	OutputDigest string // BLAKE3 of the written file
	Duration     time.Duration
}

// Warnings renders one line per source whose identifiers were renamed.
func (r *Report) Warnings() []string {
	var out []string
	for _, rn := range r.Renamed {
		noun := "identifiers"
		if len(rn.Mapping) == 1 {
			noun = "identifier"
		}
		out = append(out, fmt.Sprintf("%s: renamed %d colliding %s", rn.Path, len(rn.Mapping), noun))
	}
	return out
}

// Concatenator runs merges with fixed options.
type Concatenator struct {
	opts     Options
	logger   *slog.Logger
	progress ProgressFunc
	gen      *eid.Generator
	runID    string
}

// Option configures a Concatenator.
type Option func(*Concatenator)

// WithLogger sets the diagnostic logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *Concatenator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(p ProgressFunc) Option {
	return func(c *Concatenator) { c.progress = p }
}

// WithGenerator sets the identifier generator used for renames.
func WithGenerator(g *eid.Generator) Option {
	return func(c *Concatenator) { c.gen = g }
}

// WithRunID fixes the run id attached to log records.
func WithRunID(id string) Option {
	return func(c *Concatenator) { c.runID = id }
}

// New returns a Concatenator.
func New(opts Options, options ...Option) *Concatenator {
	c := &Concatenator{opts: opts, logger: logging.Discard()}
	for _, o := range options {
		o(c)
	}
	return c
}

// MergeDocuments merges sources into target with a discarding logger.
func MergeDocuments(sources []string, target string, opts Options, progress ProgressFunc) (*Report, error) {
	return New(opts, WithProgress(progress)).Run(sources, target)
}

// Check validates every later source against the first without merging
// or writing anything. Strict policy failures are returned as errors.
func (c *Concatenator) Check(sources []string) (*Report, error) {
	if err := c.preflight(sources, "", true); err != nil {
		return nil, err
	}
	r, err := c.process(sources, false)
	if err != nil {
		return nil, err
	}
	return &r.Report, nil
}

// Run merges sources in order and writes the result to target.
func (c *Concatenator) Run(sources []string, target string) (*Report, error) {
	if err := c.preflight(sources, target, false); err != nil {
		return nil, err
	}
	start := time.Now()
	report, err := c.process(sources, true)
	if err != nil {
		return nil, err
	}
	logger := c.runLogger(report.RunID)

	base := report.base
	if err := base.SaveAs(target); err != nil {
		logging.MergeFailed(logger, err)
		return nil, err
	}
	sum, err := mscz.FileDigest(target)
	if err != nil {
		return nil, errors.AsIO(target, err)
	}
	report.Output = target
	report.OutputDigest = sum
	report.Duration = time.Since(start)

	logging.MergeComplete(logger, target, len(report.Merged), len(report.Skipped), report.Duration,
		"assets", report.AssetsCopied, "digest", sum)
	return &report.Report, nil
}

func (c *Concatenator) preflight(sources []string, target string, checkOnly bool) error {
	if err := c.opts.Validate(); err != nil {
		return &errors.MergeError{Kind: errors.KindUsage, Reason: err.Error(), Err: err}
	}
	var err error
	if checkOnly {
		err = validation.ValidateSources(sources, mscz.ExtCompressed)
	} else {
		err = validation.ValidateMergePaths(sources, target, mscz.ExtCompressed)
	}
	if err != nil {
		path := ""
		var pe *validation.PathError
		if errors.As(err, &pe) {
			path = pe.Path
		}
		return &errors.MergeError{Kind: errors.KindUsage, Path: path, Err: err}
	}
	return nil
}

func (c *Concatenator) runLogger(runID string) *slog.Logger {
	return logging.ForRun(c.logger, runID)
}

type run struct {
	Report
	base *mscz.Document
}

func (c *Concatenator) process(sources []string, write bool) (*run, error) {
	runID := c.runID
	if runID == "" {
		runID = logging.NewRunID()
	}
	logger := c.runLogger(runID)
	total := len(sources)

	base, err := mscz.Open(sources[0])
	if err != nil {
		logging.MergeFailed(logger, err)
		return nil, err
	}
	logging.SourceLoaded(logger, sources[0], 1, total)

	r := &run{Report: Report{RunID: runID, Merged: []string{sources[0]}}, base: base}
	c.report(1, total)

	engine := merge.NewEngine(c.opts.Merge, merge.WithLogger(logger), merge.WithGenerator(c.gen))
	for i, path := range sources[1:] {
		if err := c.mergeOne(r, engine, logger, path, i+2, total, write); err != nil {
			logging.MergeFailed(logger, err, "path", path)
			return nil, err
		}
		c.report(i+2, total)
	}
	return r, nil
}

func (c *Concatenator) mergeOne(r *run, engine *merge.Engine, logger *slog.Logger, path string, index, total int, write bool) error {
	doc, err := mscz.Open(path)
	if err != nil {
		return err
	}
	logging.SourceLoaded(logger, path, index, total)
	target := r.base.Tree()

	res := compat.Validate(target, doc.Tree(), c.opts.Compat)
	switch res.Outcome {
	case compat.Fail:
		return res.Err(path)
	case compat.Skip:
		c.skip(r, logger, Skip{Path: path, Reason: res.Reason, Kind: errors.KindCompatibility})
		return nil
	}

	if m := merge.CheckAlignment(target, doc.Tree()); m != nil {
		c.skip(r, logger, Skip{Path: path, Reason: m.Reason(), Kind: errors.KindStructural})
		return nil
	}
	if !write {
		r.Merged = append(r.Merged, path)
		return nil
	}

	merge.InsertBreaks(target, c.opts.Breaks, c.opts.Section)
	result, err := engine.Merge(target, doc.Tree())
	if err != nil {
		return errors.Wrapf(err, "merge %s", path)
	}
	if result.Mismatch != nil {
		return errors.NewInternal(fmt.Sprintf("%s: %v", path, result.Mismatch))
	}
	if result.Collided() {
		r.Renamed = append(r.Renamed, Renamed{Path: path, Mapping: result.Renamed})
		logging.IdentifiersRenamed(logger, path, len(result.Renamed))
	}

	if c.opts.Merge.CopyPictures {
		n, err := merge.CopyAssets(r.base, doc, c.opts.AssetPrefix)
		if err != nil {
			return errors.AsIO(path, err)
		}
		r.AssetsCopied += n
		logging.AssetsCopied(logger, path, n)
	}
	r.Merged = append(r.Merged, path)
	return nil
}

func (c *Concatenator) skip(r *run, logger *slog.Logger, s Skip) {
	r.Skipped = append(r.Skipped, s)
	logging.SourceSkipped(logger, s.Path, s.Reason, s.Kind.String())
}

func (c *Concatenator) report(current, total int) {
	if c.progress != nil {
		c.progress(current, total)
	}
}
