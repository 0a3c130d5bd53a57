// Package fuzzy scores the similarity of instrument and part names.
//
// Names are split into a stem and an optional numeric suffix so that
// "Violin 1", "violin1" and "Violin I" share the stem "violin" and the
// number 1. Stems are compared with normalized Levenshtein similarity and
// token overlap; the numeric suffix is weighed per NumbersStrategy.
package fuzzy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// NumbersStrategy selects how numeric suffixes affect a score.
type NumbersStrategy int

const (
	// Prefer rewards equal numbers and mildly penalizes different ones.
	Prefer NumbersStrategy = iota
	// Ignore compares stems only.
	Ignore
	// Match forces the score to zero unless the numbers are equal.
	Match
)

func (s NumbersStrategy) String() string {
	switch s {
	case Ignore:
		return "ignore"
	case Match:
		return "match"
	default:
		return "prefer"
	}
}

// ParseNumbersStrategy parses "prefer", "ignore" or "match".
func ParseNumbersStrategy(s string) (NumbersStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefer":
		return Prefer, nil
	case "ignore":
		return Ignore, nil
	case "match":
		return Match, nil
	}
	return Prefer, fmt.Errorf("unknown numbers strategy %q", s)
}

// Weights of the Prefer strategy.
const (
	StemWeight   = 0.8
	NumberWeight = 0.2

	numberEqual   = 1.0
	numberMissing = 0.75
	numberDiffers = 0.5
)

var (
	romanRe   = regexp.MustCompile(`^x{0,3}(ix|iv|v?i{0,3})$`)
	gluedRe   = regexp.MustCompile(`^(\p{L}+)(\d+)$`)
	romanVals = map[byte]int{'i': 1, 'v': 5, 'x': 10}
)

// Name is a normalized name.
type Name struct {
	Stem      []string
	Number    int
	HasNumber bool
}

// Normalize case-folds s, collapses whitespace, strips punctuation and
// splits off the last numeric token.
func Normalize(s string) Name {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'')
	})

	var n Name
	idx := -1
	for i := len(fields) - 1; i >= 0; i-- {
		tok := fields[i]
		if v, err := strconv.Atoi(tok); err == nil {
			n.Number, n.HasNumber, idx = v, true, i
			break
		}
		if m := gluedRe.FindStringSubmatch(tok); m != nil {
			v, _ := strconv.Atoi(m[2])
			n.Number, n.HasNumber = v, true
			fields[i] = m[1]
			break
		}
		if i > 0 {
			if v, ok := roman(tok); ok {
				n.Number, n.HasNumber, idx = v, true, i
				break
			}
		}
	}
	for i, tok := range fields {
		if i != idx {
			n.Stem = append(n.Stem, tok)
		}
	}
	return n
}

func roman(tok string) (int, bool) {
	if tok == "" || !romanRe.MatchString(tok) {
		return 0, false
	}
	total := 0
	for i := 0; i < len(tok); i++ {
		v := romanVals[tok[i]]
		if i+1 < len(tok) && romanVals[tok[i+1]] > v {
			total -= v
		} else {
			total += v
		}
	}
	return total, true
}

// StemSimilarity returns the larger of the normalized Levenshtein
// similarity and the token Jaccard overlap of two stems.
func StemSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	lev := levenshtein.Similarity(strings.Join(a, " "), strings.Join(b, " "), nil)
	if j := jaccard(a, b); j > lev {
		return j
	}
	return lev
}

func jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}
	inter := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Score returns the similarity of two names in [0, 1].
func Score(a, b string, numbers NumbersStrategy) float64 {
	na, nb := Normalize(a), Normalize(b)
	stem := StemSimilarity(na.Stem, nb.Stem)

	switch numbers {
	case Ignore:
		return stem
	case Match:
		if na.HasNumber != nb.HasNumber || na.Number != nb.Number {
			return 0
		}
		return stem
	}

	if !na.HasNumber && !nb.HasNumber {
		return stem
	}
	num := numberDiffers
	switch {
	case na.HasNumber != nb.HasNumber:
		num = numberMissing
	case na.Number == nb.Number:
		num = numberEqual
	}
	return StemWeight*stem + NumberWeight*num
}
