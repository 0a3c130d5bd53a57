package compat_test

import (
	"testing"

	"github.com/diedeno/mscz-concatenator/core/compat"
	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/fuzzy"
	"github.com/diedeno/mscz-concatenator/internal/scoretest"
)

func fuzzyOpts(threshold float64, numbers fuzzy.NumbersStrategy) compat.Options {
	return compat.Options{Strategy: compat.Fuzzy, Threshold: threshold, Numbers: numbers}
}

func TestValidateExact(t *testing.T) {
	target := scoretest.New().Parts("Violin I", "Viola").Score(t)

	same := scoretest.New().Parts("Violin I", "Viola").Score(t)
	if r := compat.Validate(target, same, compat.DefaultOptions()); !r.OK() {
		t.Errorf("identical parts: %+v", r)
	}

	swapped := scoretest.New().Parts("Viola", "Violin I").Score(t)
	r := compat.Validate(target, swapped, compat.DefaultOptions())
	if r.Outcome != compat.Skip || r.Position != 0 {
		t.Errorf("swapped parts: %+v", r)
	}

	renamed := scoretest.New().Parts("Violin 1", "Viola").Score(t)
	if r := compat.Validate(target, renamed, compat.DefaultOptions()); r.OK() {
		t.Error("exact matching must not accept Violin 1 for Violin I")
	}
}

func TestValidateFuzzy(t *testing.T) {
	target := scoretest.New().Parts("Violin 1", "Viola").Score(t)
	source := scoretest.New().Parts("Violin I", "Viola").Score(t)

	r := compat.Validate(target, source, fuzzyOpts(0.7, fuzzy.Prefer))
	if !r.OK() {
		t.Fatalf("fuzzy match rejected: %+v", r)
	}
	if len(r.Scores) != 2 || r.Scores[0] < 0.7 {
		t.Errorf("scores = %v", r.Scores)
	}

	strict := scoretest.New().Parts("Violin 2", "Viola").Score(t)
	if r := compat.Validate(target, strict, fuzzyOpts(0.7, fuzzy.Match)); r.OK() {
		t.Error("match strategy must reject different numbers")
	}
	if r := compat.Validate(target, strict, fuzzyOpts(1, fuzzy.Prefer)); r.OK() || r.Position != 0 {
		t.Errorf("threshold 1 must reject a partial score: %+v", r)
	}
	if r := compat.Validate(target, strict, fuzzyOpts(0, fuzzy.Prefer)); !r.OK() {
		t.Errorf("threshold 0 must accept everything of equal length: %+v", r)
	}
}

func TestValidateNoParts(t *testing.T) {
	target := scoretest.New().Parts("Piano").Score(t)
	source := scoretest.New().Part("").Score(t)

	for _, opts := range []compat.Options{compat.DefaultOptions(), fuzzyOpts(0, fuzzy.Ignore)} {
		r := compat.Validate(target, source, opts)
		if r.Outcome != compat.Skip || r.Reason != compat.ReasonNoParts {
			t.Errorf("%v: %+v", opts.Strategy, r)
		}
	}
}

func TestValidatePartCount(t *testing.T) {
	target := scoretest.New().Parts("Flute", "Oboe").Score(t)
	source := scoretest.New().Parts("Flute").Score(t)
	r := compat.Validate(target, source, fuzzyOpts(0, fuzzy.Ignore))
	if r.Outcome != compat.Skip || r.Reason != compat.ReasonPartCount {
		t.Errorf("Validate() = %+v", r)
	}
}

func TestValidateStrictPolicy(t *testing.T) {
	target := scoretest.New().Parts("Flute").Score(t)
	source := scoretest.New().Parts("Trumpet").Score(t)

	opts := compat.DefaultOptions()
	opts.Policy = compat.PolicyStrict
	r := compat.Validate(target, source, opts)
	if r.Outcome != compat.Fail {
		t.Fatalf("Outcome = %v, want fail", r.Outcome)
	}
	err := r.Err("b.mscz")
	if errors.KindOf(err) != errors.KindCompatibility {
		t.Errorf("Err() = %v", err)
	}
	if compat.Validate(target, target, opts).Err("a.mscz") != nil {
		t.Error("compatible result must not produce an error")
	}
}

func TestValidateIdempotent(t *testing.T) {
	target := scoretest.New().Parts("Horn in F", "Trumpet 2").Score(t)
	source := scoretest.New().Parts("Horn in F", "Trumpet II").Score(t)
	opts := fuzzyOpts(0.8, fuzzy.Prefer)

	first := compat.Validate(target, source, opts)
	second := compat.Validate(target, source, opts)
	if first.Outcome != second.Outcome || first.Reason != second.Reason {
		t.Errorf("results differ: %+v vs %+v", first, second)
	}
	if names := source.PartNames(); names[1] != "Trumpet II" {
		t.Errorf("validation modified the source: %v", names)
	}
}

func TestValidateNames(t *testing.T) {
	r := compat.ValidateNames([]string{"A", " "}, []string{"", "A"}, compat.DefaultOptions())
	if !r.OK() {
		t.Errorf("blank names should be dropped: %+v", r)
	}
}

func TestEscalate(t *testing.T) {
	skip := compat.Result{Outcome: compat.Skip}
	if compat.Escalate(skip, compat.PolicySkip).Outcome != compat.Skip {
		t.Error("skip policy must not escalate")
	}
	if compat.Escalate(skip, compat.PolicyStrict).Outcome != compat.Fail {
		t.Error("strict policy must escalate")
	}
	ok := compat.Result{Outcome: compat.Compatible}
	if compat.Escalate(ok, compat.PolicyStrict).Outcome != compat.Compatible {
		t.Error("compatible results must stay compatible")
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := compat.DefaultOptions().Validate(); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
	for _, th := range []float64{-0.1, 1.5} {
		o := compat.DefaultOptions()
		o.Threshold = th
		if o.Validate() == nil {
			t.Errorf("threshold %v accepted", th)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := compat.ParseStrategy("FUZZY"); err != nil || s != compat.Fuzzy {
		t.Errorf("ParseStrategy(FUZZY) = %v, %v", s, err)
	}
	if _, err := compat.ParseStrategy("loose"); err == nil {
		t.Error("unknown strategy accepted")
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := compat.ParsePolicy("Strict"); err != nil || p != compat.PolicyStrict {
		t.Errorf("ParsePolicy(Strict) = %v, %v", p, err)
	}
	if p, err := compat.ParsePolicy(""); err != nil || p != compat.PolicySkip {
		t.Errorf("ParsePolicy(\"\") = %v, %v", p, err)
	}
	if _, err := compat.ParsePolicy("abort"); err == nil {
		t.Error("unknown policy accepted")
	}
}
