// Package eid generates MuseScore element identifiers and resolves
// identifier collisions between two score trees.
package eid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/core/score"
	"github.com/diedeno/mscz-concatenator/core/xml"
)

// Alphabet is the digit set of an eid half, most significant digit first.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// MaxAttempts bounds regeneration of a single replacement identifier.
const MaxAttempts = 16

// Generator produces identifiers from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a generator reading from r. A nil r uses crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// Next returns a fresh identifier: two random 64-bit values rendered in
// base 64 and joined by an underscore.
func (g *Generator) Next() (string, error) {
	var buf [16]byte
	if _, err := io.ReadFull(g.rand, buf[:]); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}
	hi := binary.BigEndian.Uint64(buf[:8])
	lo := binary.BigEndian.Uint64(buf[8:])
	return Encode(hi) + "_" + Encode(lo), nil
}

// Encode renders v in base 64 over Alphabet. Zero renders as "A".
func Encode(v uint64) string {
	if v == 0 {
		return Alphabet[:1]
	}
	var digits [11]byte
	i := len(digits)
	for v > 0 {
		i--
		digits[i] = Alphabet[v%64]
		v /= 64
	}
	return string(digits[i:])
}

// Decode parses one base-64 half produced by Encode.
func Decode(s string) (uint64, error) {
	if s == "" || len(s) > 11 {
		return 0, fmt.Errorf("invalid eid half %q", s)
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(Alphabet, s[i])
		if d < 0 {
			return 0, fmt.Errorf("invalid eid digit %q", s[i])
		}
		if v > (^uint64(0))>>6 {
			return 0, fmt.Errorf("eid half %q overflows", s)
		}
		v = v<<6 | uint64(d)
	}
	return v, nil
}

// Valid reports whether s has the two-half identifier form.
func Valid(s string) bool {
	hi, lo, ok := strings.Cut(s, "_")
	if !ok {
		return false
	}
	if _, err := Decode(hi); err != nil {
		return false
	}
	_, err := Decode(lo)
	return err == nil
}

// Set is a set of identifiers.
type Set map[string]struct{}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FindCollisions returns the identifiers present in both trees.
func FindCollisions(target, source *score.Score) Set {
	have := target.EIDs()
	collisions := make(Set)
	for id := range source.EIDs() {
		if _, ok := have[id]; ok {
			collisions[id] = struct{}{}
		}
	}
	return collisions
}

// Mapping records old to new identifier renames.
type Mapping map[string]string

// Sorted returns the old identifiers in lexical order.
func (m Mapping) Sorted() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Remap renames every colliding identifier in source. A replacement is
// regenerated while it exists in target, in source or among replacements
// already issued. Every eid element and every system lock reference in
// source is rewritten. The target is only read.
func (g *Generator) Remap(target, source *score.Score, collisions Set) (Mapping, error) {
	mapping := make(Mapping, len(collisions))
	if len(collisions) == 0 {
		return mapping, nil
	}

	taken := source.EIDs()
	for id := range target.EIDs() {
		taken[id] = struct{}{}
	}

	for _, old := range collisions.Sorted() {
		fresh, err := g.unique(taken)
		if err != nil {
			return nil, err
		}
		taken[fresh] = struct{}{}
		mapping[old] = fresh
	}

	for _, n := range source.EIDNodes() {
		if fresh, ok := mapping[strings.TrimSpace(n.InnerText())]; ok {
			xml.SetText(n, fresh)
		}
	}
	if locks := source.SystemLocks(); locks != nil {
		for _, ref := range locks.References() {
			if fresh, ok := mapping[strings.TrimSpace(ref.InnerText())]; ok {
				xml.SetText(ref, fresh)
			}
		}
	}
	return mapping, nil
}

func (g *Generator) unique(taken map[string]struct{}) (string, error) {
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		id, err := g.Next()
		if err != nil {
			return "", errors.NewInternal(err.Error())
		}
		if _, clash := taken[id]; !clash {
			return id, nil
		}
	}
	return "", errors.NewInternal(fmt.Sprintf("no unique identifier after %d attempts", MaxAttempts))
}

// Remap renames collisions in source using a crypto/rand generator.
func Remap(target, source *score.Score, collisions Set) (Mapping, error) {
	return NewGenerator(nil).Remap(target, source, collisions)
}
