package abc

import (
	"reflect"
	"testing"
)

func TestCollectVoices(t *testing.T) {
	header := []string{
		`V:1 clef=treble transpose=-2 nm="Clarinet in Bb" snm="Cl."`,
		"V:2 treble",
		"V:3 clef=perc",
		"K:none",
		"I:percmap D pedal-hi-hat x",
		"I:percmap F bass-drum-1",
		"V:4 clef=bass",
		"K:none", // 最近声部不是打击乐，忽略
	}
	voices, overrides := CollectVoices(header)

	if len(voices) != 4 {
		t.Fatalf("got %d voices, want 4", len(voices))
	}
	v1 := voices[1]
	if v1.Clef != "treble" || v1.Transpose != -2 || v1.Name != "Clarinet in Bb" || v1.ShortName != "Cl." {
		t.Errorf("voice 1 = %+v", v1)
	}
	if voices[2].Clef != "treble" {
		t.Errorf("bare clef token not picked up: %+v", voices[2])
	}
	if voices[2].Transpose != 0 {
		t.Errorf("missing transpose should default to 0, got %d", voices[2].Transpose)
	}

	ov := overrides[3]
	if ov == nil || !ov.NoKey {
		t.Fatalf("percussion override missing: %+v", ov)
	}
	wantMaps := []string{"I:percmap D pedal-hi-hat x", "I:percmap F bass-drum-1"}
	if !reflect.DeepEqual(ov.PercMaps, wantMaps) {
		t.Errorf("percmaps = %v, want %v", ov.PercMaps, wantMaps)
	}
	if overrides[4] != nil {
		t.Errorf("non-percussion voice got an override: %+v", overrides[4])
	}
}

func TestCollectVoicesClefWithOctave(t *testing.T) {
	voices, _ := CollectVoices([]string{"V:7 clef=treble+8"})
	if voices[7].Clef != "treble+8" {
		t.Errorf("clef = %q, want treble+8", voices[7].Clef)
	}
}

func TestGroupOf(t *testing.T) {
	groups := map[int]string{1: "(1|2)"}
	if g := GroupOf(groups, 1); g != "(1|2)" {
		t.Errorf("GroupOf(1) = %q", g)
	}
	if g := GroupOf(groups, 9); g != "(9)" {
		t.Errorf("GroupOf(9) = %q, want (9)", g)
	}
}

func TestBroadcastShortNames(t *testing.T) {
	voices := map[int]*VoiceMeta{
		1: {ID: 1},
		2: {ID: 2, ShortName: "Vln."},
		3: {ID: 3},
	}
	groups := map[int]string{1: "(1|2)", 2: "(1|2)"}

	BroadcastShortNames(voices, groups)
	if voices[1].ShortName != "Vln." {
		t.Errorf("voice 1 short name = %q, want Vln.", voices[1].ShortName)
	}
	if voices[3].ShortName != "" {
		t.Errorf("ungrouped voice should stay empty, got %q", voices[3].ShortName)
	}

	// 幂等
	BroadcastShortNames(voices, groups)
	if voices[1].ShortName != "Vln." || voices[2].ShortName != "Vln." {
		t.Errorf("second broadcast changed names: %+v %+v", voices[1], voices[2])
	}
}

func TestBroadcastPrefersLowestID(t *testing.T) {
	voices := map[int]*VoiceMeta{
		5: {ID: 5, ShortName: "Pno."},
		6: {ID: 6, ShortName: "RH"},
		7: {ID: 7},
	}
	groups := map[int]string{5: "{(5|7)|6}", 6: "{(5|7)|6}", 7: "{(5|7)|6}"}
	BroadcastShortNames(voices, groups)
	if voices[7].ShortName != "Pno." {
		t.Errorf("leader should be the lowest-numbered non-empty name, got %q", voices[7].ShortName)
	}
	if voices[6].ShortName != "RH" {
		t.Errorf("existing short name must not be overwritten, got %q", voices[6].ShortName)
	}
}
