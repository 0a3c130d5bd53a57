package eid_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/diedeno/mscz-concatenator/core/eid"
	"github.com/diedeno/mscz-concatenator/core/errors"
	"github.com/diedeno/mscz-concatenator/internal/scoretest"
)

// pairs renders each value pair as the 16 random bytes the generator reads.
func pairs(values ...uint64) *bytes.Reader {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(buf[8*i:], v)
	}
	return bytes.NewReader(buf)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestEncode(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "a"},
		{52, "0"},
		{62, "+"},
		{63, "/"},
		{64, "BA"},
		{4095, "//"},
		{^uint64(0), "P//////////"},
	}
	for _, tt := range tests {
		if got := eid.Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%d) = %q, want %q", tt.in, got, tt.want)
		}
		back, err := eid.Decode(tt.want)
		if err != nil || back != tt.in {
			t.Errorf("Decode(%q) = %d, %v", tt.want, back, err)
		}
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	for _, s := range []string{"", "A-B", "////////////", "g//////////"} {
		if _, err := eid.Decode(s); err == nil {
			t.Errorf("Decode(%q) should fail", s)
		}
	}
}

func TestGeneratorNext(t *testing.T) {
	g := eid.NewGenerator(pairs(0, 1, 64, ^uint64(0)))

	first, err := g.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first != "A_B" {
		t.Errorf("Next() = %q, want A_B", first)
	}
	second, _ := g.Next()
	if second != "BA_P//////////" {
		t.Errorf("Next() = %q", second)
	}
	if !eid.Valid(first) || !eid.Valid(second) {
		t.Error("generated ids should be valid")
	}
	if _, err := g.Next(); err == nil {
		t.Error("Next should fail when the random source is exhausted")
	}
}

func TestGeneratorDefaultsToCryptoRand(t *testing.T) {
	g := eid.NewGenerator(nil)
	a, err := g.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	b, _ := g.Next()
	if a == b {
		t.Errorf("two crypto/rand ids collided: %q", a)
	}
	if strings.Count(a, "_") != 1 || !eid.Valid(a) {
		t.Errorf("malformed id %q", a)
	}
}

func TestValid(t *testing.T) {
	for s, want := range map[string]bool{
		"A_A":        true,
		"Ab+/_z09":   true,
		"AA":         false,
		"A_":         false,
		"A_B_C":      false,
		"measure-12": false,
	} {
		if got := eid.Valid(s); got != want {
			t.Errorf("Valid(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestFindCollisions(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "a", "b", "").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "b", "c", "").Score(t)

	got := eid.FindCollisions(target, source).Sorted()
	if len(got) != 1 || got[0] != "b" {
		t.Errorf("FindCollisions() = %v, want [b]", got)
	}
	if n := len(eid.FindCollisions(target, scoretest.New().Parts("Viola").Score(t))); n != 0 {
		t.Errorf("FindCollisions() with no eids = %d", n)
	}
}

func TestRemap(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "x", "y").Lock("x", "y").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "x", "z").Lock("x", "z").Score(t)

	collisions := eid.FindCollisions(target, source)
	g := eid.NewGenerator(pairs(5, 6))
	mapping, err := g.Remap(target, source, collisions)
	if err != nil {
		t.Fatalf("Remap failed: %v", err)
	}
	if mapping["x"] != "F_G" {
		t.Errorf("mapping = %v, want x -> F_G", mapping)
	}

	srcIDs := source.EIDs()
	if _, ok := srcIDs["x"]; ok {
		t.Error("source still holds the colliding id")
	}
	if _, ok := srcIDs["F_G"]; !ok {
		t.Error("source lacks the replacement id")
	}
	if lock := source.SystemLocks().Locks()[0]; lock.Start() != "F_G" || lock.End() != "z" {
		t.Errorf("source lock = %s..%s", lock.Start(), lock.End())
	}
	if unresolved := source.SystemLocks().Unresolved(srcIDs); len(unresolved) != 0 {
		t.Errorf("unresolved references: %v", unresolved)
	}

	if _, ok := target.EIDs()["x"]; !ok {
		t.Error("target must keep its own id")
	}
	if lock := target.SystemLocks().Locks()[0]; lock.Start() != "x" {
		t.Error("target lock must be untouched")
	}
}

func TestRemapRetriesTakenCandidates(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "dup", "A_A").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "dup", "B_B").Score(t)

	// First candidate exists in the target, second in the source.
	g := eid.NewGenerator(pairs(0, 0, 1, 1, 2, 2))
	mapping, err := g.Remap(target, source, eid.FindCollisions(target, source))
	if err != nil {
		t.Fatalf("Remap failed: %v", err)
	}
	if mapping["dup"] != "C_C" {
		t.Errorf("mapping = %v, want dup -> C_C", mapping)
	}
}

func TestRemapDistinctReplacements(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "a", "b").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "a", "b").Score(t)

	// The second collision draws the id issued to the first one, then a new one.
	g := eid.NewGenerator(pairs(7, 7, 7, 7, 8, 8))
	mapping, err := g.Remap(target, source, eid.FindCollisions(target, source))
	if err != nil {
		t.Fatalf("Remap failed: %v", err)
	}
	if mapping["a"] != "H_H" || mapping["b"] != "I_I" {
		t.Errorf("mapping = %v", mapping)
	}
}

func TestRemapGivesUp(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "dup", "A_A").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "dup").Score(t)

	g := eid.NewGenerator(zeroReader{})
	_, err := g.Remap(target, source, eid.FindCollisions(target, source))
	if errors.KindOf(err) != errors.KindInternal {
		t.Errorf("Remap() error = %v, want internal", err)
	}

	empty := eid.NewGenerator(bytes.NewReader(nil))
	_, err = empty.Remap(target, source, eid.FindCollisions(target, source))
	if errors.KindOf(err) != errors.KindInternal {
		t.Errorf("Remap() with exhausted source error = %v, want internal", err)
	}
}

func TestRemapNoCollisions(t *testing.T) {
	target := scoretest.New().Parts("Viola").Measures(1, "a").Score(t)
	source := scoretest.New().Parts("Viola").Measures(1, "b").Score(t)
	mapping, err := eid.Remap(target, source, eid.FindCollisions(target, source))
	if err != nil || len(mapping) != 0 {
		t.Errorf("Remap() = %v, %v", mapping, err)
	}
}
