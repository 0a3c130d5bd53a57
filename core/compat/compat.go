// Package compat decides whether two scores share an instrumentation and
// may be merged.
package compat

import (
	"fmt"
	"strings"

	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/fuzzy"
	"github.com/diedeno/mscz-concatenator/core/score"
)

// Strategy selects how part names are compared.
type Strategy int

const (
	// Exact compares names position by position for equality.
	Exact Strategy = iota
	// Fuzzy scores each position with the fuzzy matcher.
	Fuzzy
)

func (s Strategy) String() string {
	if s == Fuzzy {
		return "fuzzy"
	}
	return "exact"
}

// ParseStrategy parses "exact" or "fuzzy".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return Exact, nil
	case "fuzzy":
		return Fuzzy, nil
	}
	return Exact, fmt.Errorf("unknown compatibility strategy %q", s)
}

// Policy selects what happens to an incompatible source.
type Policy int

const (
	// PolicySkip leaves the source out of the merge and carries on.
	PolicySkip Policy = iota
	// PolicyStrict aborts the run.
	PolicyStrict
)

func (p Policy) String() string {
	if p == PolicyStrict {
		return "strict"
	}
	return "skip"
}

// ParsePolicy parses "skip" or "strict".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skip":
		return PolicySkip, nil
	case "strict":
		return PolicyStrict, nil
	}
	return PolicySkip, fmt.Errorf("unknown incompatibility policy %q", s)
}

// DefaultThreshold is the default minimum fuzzy score.
const DefaultThreshold = 0.8

// Options configures validation.
type Options struct {
	Strategy  Strategy
	Threshold float64 // 0..1 inclusive, fuzzy only
	Numbers   fuzzy.NumbersStrategy
	Policy    Policy
}

// DefaultOptions returns exact matching under the skip policy.
func DefaultOptions() Options {
	return Options{Strategy: Exact, Threshold: DefaultThreshold, Numbers: fuzzy.Prefer, Policy: PolicySkip}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold > 1 {
		return errors.NewValidation("threshold", fmt.Sprintf("must be between 0 and 1, got %g", o.Threshold))
	}
	return nil
}

// Outcome is the classification of a validation.
type Outcome int

const (
	Compatible Outcome = iota
	Skip
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Skip:
		return "skip"
	case Fail:
		return "fail"
	default:
		return "compatible"
	}
}

// Reasons reported for incompatible sources.
const (
	ReasonNoParts        = "no musical parts"
	ReasonPartCount      = "different part count"
	ReasonNameMismatch   = "part names differ"
	ReasonBelowThreshold = "part names below similarity threshold"
)

// Result is the outcome of Validate.
type Result struct {
	Outcome Outcome
	Reason  string
	// Position is the first mismatching part index, or -1.
	Position int
	// Scores holds the per-position fuzzy scores.
	Scores []float64
}

// OK reports whether the source may be merged.
func (r Result) OK() bool { return r.Outcome == Compatible }

// Validate compares the ordered part names of target and source.
// Incompatibility yields Skip, or Fail under PolicyStrict.
func Validate(target, source *score.Score, opts Options) Result {
	return Escalate(classify(target.PartNames(), source.PartNames(), opts), opts.Policy)
}

// ValidateNames compares two ordered name lists. Empty names are dropped.
func ValidateNames(target, source []string, opts Options) Result {
	return Escalate(classify(clean(target), clean(source), opts), opts.Policy)
}

func clean(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}

func classify(target, source []string, opts Options) Result {
	if len(source) == 0 {
		return incompatible(ReasonNoParts, -1)
	}
	if len(target) != len(source) {
		return incompatible(ReasonPartCount, -1)
	}

	if opts.Strategy == Exact {
		for i := range target {
			if target[i] != source[i] {
				return incompatible(fmt.Sprintf("%s: %q vs %q", ReasonNameMismatch, target[i], source[i]), i)
			}
		}
		return Result{Outcome: Compatible, Position: -1}
	}

	res := Result{Outcome: Compatible, Position: -1, Scores: make([]float64, len(target))}
	for i := range target {
		s := fuzzy.Score(target[i], source[i], opts.Numbers)
		res.Scores[i] = s
		if s < opts.Threshold && res.Position < 0 {
			res.Outcome = Skip
			res.Position = i
			res.Reason = fmt.Sprintf("%s: %q vs %q scored %.2f", ReasonBelowThreshold, target[i], source[i], s)
		}
	}
	return res
}

func incompatible(reason string, pos int) Result {
	return Result{Outcome: Skip, Reason: reason, Position: pos}
}

// Escalate turns Skip into Fail under PolicyStrict.
func Escalate(r Result, p Policy) Result {
	if r.Outcome == Skip && p == PolicyStrict {
		r.Outcome = Fail
	}
	return r
}

// Err converts a Fail result into a compatibility error for path.
func (r Result) Err(path string) error {
	if r.Outcome != Fail {
		return nil
	}
	return errors.NewCompatibility(path, r.Reason)
}
