package score_test

import (
	"reflect"
	"testing"

	"github.com/diedeno/mscz-concatenator/core/score"
	"github.com/diedeno/mscz-concatenator/internal/scoretest"
)

func TestNewRejectsNonScore(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"wrong root", `<root><Score/></root>`},
		{"missing Score", `<museScore version="4.20"/>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := score.Parse([]byte(tt.xml)); err == nil {
				t.Error("Parse should fail")
			}
		})
	}
}

func TestScoreParts(t *testing.T) {
	s := scoretest.New().Parts("Violin I", "Viola", "", "Viola").Score(t)

	parts := s.Parts()
	if len(parts) != 4 {
		t.Fatalf("Parts() = %d, want 4", len(parts))
	}
	if got := s.PartNames(); !reflect.DeepEqual(got, []string{"Violin I", "Viola", "Viola"}) {
		t.Errorf("PartNames() = %v", got)
	}
	if got := s.DuplicatePartNames(); !reflect.DeepEqual(got, []string{"Viola"}) {
		t.Errorf("DuplicatePartNames() = %v", got)
	}
	if got := s.InstrumentNames(); !reflect.DeepEqual(got, []string{"Violin I", "Viola", "", "Viola"}) {
		t.Errorf("InstrumentNames() = %v", got)
	}
	if p, ok := s.Part("Viola"); !ok || p.Index() != 1 {
		t.Errorf("Part(Viola) = %v, %v", p, ok)
	}
	if _, ok := s.Part("Cello"); ok {
		t.Error("Part(Cello) should not exist")
	}
}

func TestPartNameFallsBackToInstrument(t *testing.T) {
	s, err := score.Parse([]byte(`<museScore version="4.20"><Score>
<Part><Staff id="1"/><Instrument><trackName>Flute</trackName></Instrument></Part>
<Staff id="1"/>
</Score></museScore>`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	p := s.Parts()[0]
	if p.TrackName() != "" {
		t.Errorf("TrackName() = %q, want empty", p.TrackName())
	}
	if p.Name() != "Flute" {
		t.Errorf("Name() = %q, want Flute", p.Name())
	}
}

func TestStaves(t *testing.T) {
	s := scoretest.New().
		Part("Piano", 1, 2).
		Part("Cello").
		Measures(1, "a", "b").
		Frame(1, score.VBox, true).
		EmptyMeasures(2, 2).
		EmptyMeasures(3, 2).
		Score(t)

	staves := s.Staves()
	if len(staves) != 3 {
		t.Fatalf("Staves() = %d, want 3", len(staves))
	}
	for i, st := range staves {
		if id, ok := st.ID(); !ok || id != i+1 {
			t.Errorf("staff %d id = %d, %v", i, id, ok)
		}
	}

	piano := s.Parts()[0]
	if got := len(piano.StaffDefs()); got != 2 {
		t.Errorf("StaffDefs() = %d, want 2", got)
	}
	if got := len(piano.Staves()); got != 2 {
		t.Errorf("Part.Staves() = %d, want 2", got)
	}

	first := s.FirstStaff()
	if first.Length() != 2 || s.Length() != 2 {
		t.Errorf("Length() = %d", first.Length())
	}
	children := first.Children()
	kinds := []score.ChildKind{score.KindMeasure, score.KindMeasure, score.KindFrame}
	if len(children) != len(kinds) {
		t.Fatalf("Children() = %d, want %d", len(children), len(kinds))
	}
	for i, k := range kinds {
		if children[i].Kind != k {
			t.Errorf("child %d kind = %v, want %v", i, children[i].Kind, k)
		}
	}
	if eid, ok := first.LastMeasure().EID(); !ok || eid != "b" {
		t.Errorf("LastMeasure().EID() = %q, %v", eid, ok)
	}
	if len(first.Frames()) != 1 || !first.Frames()[0].IsTitle() {
		t.Error("expected one title frame")
	}
	if _, ok := s.Staff(9); ok {
		t.Error("Staff(9) should not exist")
	}
}

func TestMeasureClassification(t *testing.T) {
	s := scoretest.New().Part("Horn").
		Raw(1, scoretest.Measure("", "<endRepeat>2</endRepeat>")).
		Raw(1, scoretest.Measure("", "<voice><Jump><jumpTo>start</jumpTo></Jump></voice>")).
		Raw(1, `<Measure endRepeat="2"><voice/></Measure>`).
		Raw(1, `<Measure><voice><Chord><Note><pitch>60</pitch></Note></Chord></voice></Measure>`).
		Measures(1, "plain").
		Score(t)

	measures := s.FirstStaff().Measures()
	wantRepeat := []bool{true, true, true, false, false}
	wantEmpty := []bool{true, true, true, false, true}
	for i, m := range measures {
		if m.HasRepeat() != wantRepeat[i] {
			t.Errorf("measure %d HasRepeat() = %v", i, m.HasRepeat())
		}
		if m.IsEmpty() != wantEmpty[i] {
			t.Errorf("measure %d IsEmpty() = %v", i, m.IsEmpty())
		}
	}
	if s.FirstStaff().IsEmpty() {
		t.Error("staff with a note should not be empty")
	}
}

func TestFrameIsTitle(t *testing.T) {
	s := scoretest.New().Part("Oboe").
		Frame(1, score.VBox, true).
		Frame(1, score.TBox, true).
		Frame(1, score.HBox, true).
		Frame(1, score.VBox, false).
		Raw(1, `<VBox><Text style=" Title "><text>x</text></Text></VBox>`).
		Score(t)

	want := []bool{true, true, false, false, true}
	frames := s.FirstStaff().Frames()
	if len(frames) != len(want) {
		t.Fatalf("Frames() = %d, want %d", len(frames), len(want))
	}
	for i, f := range frames {
		if f.IsTitle() != want[i] {
			t.Errorf("frame %d (%s) IsTitle() = %v, want %v", i, f.Kind(), f.IsTitle(), want[i])
		}
	}
}

func TestSystemLocksAndEIDs(t *testing.T) {
	s := scoretest.New().Part("Harp").
		Measures(1, "m1", "m2", "m3").
		Lock("m1", "m2").
		Lock("m3", "gone").
		Score(t)

	locks := s.SystemLocks()
	if locks == nil {
		t.Fatal("SystemLocks() returned nil")
	}
	if got := len(locks.Locks()); got != 2 {
		t.Errorf("Locks() = %d, want 2", got)
	}
	if l := locks.Locks()[0]; l.Start() != "m1" || l.End() != "m2" {
		t.Errorf("lock 0 = %s..%s", l.Start(), l.End())
	}
	if got := len(locks.References()); got != 4 {
		t.Errorf("References() = %d, want 4", got)
	}

	eids := s.EIDs()
	if len(eids) != 3 {
		t.Errorf("EIDs() = %v", eids)
	}
	if got := locks.Unresolved(eids); !reflect.DeepEqual(got, []string{"gone"}) {
		t.Errorf("Unresolved() = %v", got)
	}

	if scoretest.New().Part("Harp").Score(t).SystemLocks() != nil {
		t.Error("score without locks should return nil")
	}
}

func TestMetaTags(t *testing.T) {
	s := scoretest.New().Part("Tuba").
		ScoreChild(`<Synthesizer><Fluid><val id="0">MS Basic.sf3</val></Fluid></Synthesizer>`).
		Score(t)
	if v, ok := s.MetaTag("workTitle"); !ok || v != "Test" {
		t.Errorf("MetaTag(workTitle) = %q, %v", v, ok)
	}
	if _, ok := s.MetaTag("composer"); ok {
		t.Error("MetaTag(composer) should be missing")
	}
	if got := s.MetaTags()["workTitle"]; got != "Test" {
		t.Errorf("MetaTags() = %v", s.MetaTags())
	}
	if got := s.SoundFonts(); !reflect.DeepEqual(got, []string{"MS Basic.sf3"}) {
		t.Errorf("SoundFonts() = %v", got)
	}
	if s.Version() != "4.20" || s.ProgramVersion() != "4.2.0" {
		t.Errorf("Version() = %q, ProgramVersion() = %q", s.Version(), s.ProgramVersion())
	}
}

func TestStaffClear(t *testing.T) {
	s := scoretest.New().Part("Bass").
		Raw(1, `<Measure><voice><Chord><Note><pitch>40</pitch></Note></Chord></voice></Measure>`).
		EmptyMeasures(1, 3).
		Score(t)
	st := s.FirstStaff()
	st.Clear()
	if st.Length() != 1 {
		t.Errorf("Length() after Clear = %d, want 1", st.Length())
	}
	if !st.IsEmpty() {
		t.Error("staff should be empty after Clear")
	}
}
