package main

import (
	"encoding/json"
	"fmt"

	"github.com/diedeno/mscz-concatenator/core/compat"
	"github.com/diedeno/mscz-concatenator/core/concat"
	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/fuzzy"
	"github.com/diedeno/mscz-concatenator/core/merge"
	"github.com/diedeno/mscz-concatenator/core/mscz"
)

// CompatFlags select how part lists are compared.
type CompatFlags struct {
	Strategy  string  `help:"Part name matching" enum:"exact,fuzzy" default:"${strategy}" group:"Compatibility"`
	Threshold float64 `help:"Minimum fuzzy similarity, 0 to 1" default:"${threshold}" group:"Compatibility"`
	Numbers   string  `help:"Trailing part numbers in fuzzy mode" enum:"prefer,ignore,match" default:"${numbers}" group:"Compatibility"`
	Policy    string  `help:"Incompatible sources are skipped or abort the run" enum:"skip,strict" default:"${policy}" group:"Compatibility"`
}

func (f *CompatFlags) options() (compat.Options, error) {
	var (
		opts compat.Options
		err  error
	)
	if opts.Strategy, err = compat.ParseStrategy(f.Strategy); err != nil {
		return opts, err
	}
	if opts.Numbers, err = fuzzy.ParseNumbersStrategy(f.Numbers); err != nil {
		return opts, err
	}
	if opts.Policy, err = compat.ParsePolicy(f.Policy); err != nil {
		return opts, err
	}
	opts.Threshold = f.Threshold
	return opts, nil
}

// MergeFlags select what is copied from each source.
type MergeFlags struct {
	Frames      bool   `help:"Copy frames" negatable:"" default:"${frames}" group:"Content"`
	TitleFrames bool   `help:"Copy a title frame opening a source" negatable:"" default:"${titleFrames}" group:"Content"`
	SystemLocks bool   `help:"Copy system locks" negatable:"" default:"${systemLocks}" group:"Content"`
	Pictures    bool   `help:"Copy pictures missing from the output" negatable:"" default:"${pictures}" group:"Content"`
	AssetPrefix string `help:"Container entries copied with --pictures" default:"${assetPrefix}" placeholder:"Pictures/" group:"Content"`
}

// BreakFlags control the layout breaks written between sources.
type BreakFlags struct {
	Breaks      string  `help:"Breaks before each appended score: line, page, section or none" default:"${breaks}" group:"Breaks"`
	Pause       float64 `help:"Section break pause in seconds" default:"${pause}" group:"Breaks"`
	LongNames   bool    `help:"Section starts with long instrument names" negatable:"" default:"${longNames}" group:"Breaks"`
	MeasureOne  bool    `help:"Section restarts measure numbering" negatable:"" default:"${measureOne}" group:"Breaks"`
	Indentation bool    `help:"Section indents its first system" negatable:"" default:"${indentation}" group:"Breaks"`
	Courtesy    bool    `help:"Show courtesy signatures before the section" negatable:"" default:"${courtesy}" group:"Breaks"`
	AutoRepeats bool    `help:"No pause after a section ending on a repeat" negatable:"" default:"${autoRepeats}" group:"Breaks"`
}

// MergeCmd merges sources into one output file.
type MergeCmd struct {
	Sources []string `arg:"" name:"source" help:"Scores to merge, first one is the base" type:"path"`
	Output  string   `help:"Output score" short:"o" required:"" type:"path"`
	JSON    bool     `help:"Print the report as JSON"`

	CompatFlags `embed:""`
	MergeFlags  `embed:""`
	BreakFlags  `embed:""`
}

func (c *MergeCmd) options() (concat.Options, error) {
	opts := concat.DefaultOptions()
	var err error
	if opts.Compat, err = c.CompatFlags.options(); err != nil {
		return opts, err
	}
	if opts.Breaks, err = merge.ParseBreaks(c.Breaks); err != nil {
		return opts, err
	}
	opts.Merge = merge.Options{
		CopyFrames:      c.Frames,
		CopyTitleFrames: c.TitleFrames,
		CopySystemLocks: c.SystemLocks,
		CopyPictures:    c.Pictures,
	}
	opts.AssetPrefix = c.AssetPrefix
	opts.Section = merge.SectionBreak{
		Pause:                  c.Pause,
		StartWithLongNames:     c.LongNames,
		StartWithMeasureOne:    c.MeasureOne,
		FirstSystemIndentation: c.Indentation,
		ShowCourtesySignature:  c.Courtesy,
		AutoDetectRepeats:      c.AutoRepeats,
	}
	return opts, nil
}

func (c *MergeCmd) Run(a *app) error {
	opts, err := c.options()
	if err != nil {
		return errors.NewUsage("", err.Error())
	}

	report, err := concat.New(opts,
		concat.WithLogger(a.logger),
		concat.WithProgress(a.progress()),
	).Run(c.Sources, c.Output)
	if err != nil {
		return err
	}

	if c.JSON {
		return writeJSON(a, newReportJSON(report))
	}
	if !a.globals.Quiet {
		a.renderReport(report)
	}
	return nil
}

// CheckCmd validates sources against the first without writing.
type CheckCmd struct {
	Sources []string `arg:"" name:"source" help:"Scores to check, first one is the base" type:"path"`
	JSON    bool     `help:"Print the report as JSON"`

	CompatFlags `embed:""`
}

func (c *CheckCmd) Run(a *app) error {
	copts, err := c.CompatFlags.options()
	if err != nil {
		return errors.NewUsage("", err.Error())
	}
	opts := concat.DefaultOptions()
	opts.Compat = copts

	report, err := concat.New(opts, concat.WithLogger(a.logger)).Check(c.Sources)
	if err != nil {
		return err
	}

	if c.JSON {
		if err := writeJSON(a, newReportJSON(report)); err != nil {
			return err
		}
	} else if !a.globals.Quiet {
		a.renderCheck(report)
	}
	if n := len(report.Skipped); n > 0 {
		return errors.NewCompatibility("", fmt.Sprintf("%d of %d sources cannot be merged", n, len(c.Sources)-1))
	}
	return nil
}

// InspectCmd prints the parts, staves and container of a score.
type InspectCmd struct {
	File string `arg:"" help:"Score to inspect (.mscz or .mscx)" type:"existingfile"`
	JSON bool   `help:"Print as JSON"`
}

func (c *InspectCmd) Run(a *app) error {
	doc, err := mscz.Open(c.File)
	if err != nil {
		return err
	}
	info := inspect(doc)
	if c.JSON {
		return writeJSON(a, info)
	}
	a.renderInspection(info)
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(a *app) error {
	fmt.Fprintf(a.stdout, "mscz-concat version %s\n", version)
	return nil
}

func (a *app) progress() concat.ProgressFunc {
	if !a.interactive || a.globals.Quiet {
		return nil
	}
	return func(current, total int) {
		fmt.Fprintf(a.stderr, "\r%s", a.styles.muted.Render(fmt.Sprintf("processed %d/%d", current, total)))
		if current == total {
			fmt.Fprintln(a.stderr)
		}
	}
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
