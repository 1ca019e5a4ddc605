package cleaner

import (
	"io"
	"log"
	"strings"
	"testing"
)

func newTestCleaner() *Cleaner {
	return New(log.New(io.Discard, "", 0))
}

func TestEncode(t *testing.T) {
	input := strings.Join([]string{
		"X:1",
		"%%score (1|2)",
		"L:1/8",
		"Q:1/4=100",
		"M:2/4",
		"K:C",
		`V:1 clef=treble transpose=0 nm="Flute" snm="Fl."`,
		`V:2 clef=treble nm="Oboe"`,
		"[V:1]abc|[V:2]def",
	}, "\n")

	want := strings.Join([]string{
		"V:1 treb 0 Fl. (1|2)",
		"V:2 treb 0 Fl. (1|2)",
		"[V:1][Q:1/4=100][M:2/4][K:C]abc|[V:2][K:C]def",
	}, "\n")

	got, err := newTestCleaner().Encode(input)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got != want {
		t.Errorf("Encode =\n%s\nwant:\n%s", got, want)
	}
}

func TestEncodeTempoMeterInjectedOnce(t *testing.T) {
	input := strings.Join([]string{
		"Q:1/4=80",
		"M:3/4",
		"K:G",
		"V:1 clef=treble",
		"[V:1]ab|[V:1]cd",
	}, "\n")

	got, err := newTestCleaner().Encode(input)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	first := got[strings.LastIndex(got, "\n")+1:]
	want := "[V:1][Q:1/4=80][M:3/4][K:G]ab|[V:1][K:G]cd"
	if first != want {
		t.Errorf("first body line = %q, want %q", first, want)
	}
}

func TestEncodePercussionOverrides(t *testing.T) {
	input := strings.Join([]string{
		"%%score 1 2",
		"M:4/4",
		"K:Eb",
		"V:1 clef=treble",
		"V:2 clef=perc",
		"K:none",
		"I:percmap D bass-drum-1",
		"[V:1]CDEF|[V:2]DDDD|",
	}, "\n")

	got, err := newTestCleaner().Encode(input)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	lines := strings.Split(got, "\n")
	if lines[0] != "V:1 treb 0 (1)" || lines[1] != "V:2 perc 0 (2)" {
		t.Errorf("compact header = %q", lines[:2])
	}
	want := "[V:1][M:4/4][K:Eb]CDEF|[V:2][K:none][I:percmapDbass-drum-1]DDDD|"
	if lines[2] != want {
		t.Errorf("body line = %q, want %q", lines[2], want)
	}
}

func TestEncodeSkipsSegmentsWithInlineKey(t *testing.T) {
	input := strings.Join([]string{
		"K:D",
		"V:1 clef=treble",
		"V:2 clef=bass",
		"[V:1]ab[K:A]cd|[V:2]ef",
	}, "\n")

	got, err := newTestCleaner().Encode(input)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	last := got[strings.LastIndex(got, "\n")+1:]
	want := "[V:1]ab[K:A]cd|[V:2][K:D]ef"
	if last != want {
		t.Errorf("body line = %q, want %q", last, want)
	}
}

func TestEncodeStripsFloatingTempoInBody(t *testing.T) {
	input := strings.Join([]string{
		"K:C",
		"V:1 clef=treble",
		"[V:1]ab|",
		"cd [Q:1/4=60] ef|",
	}, "\n")

	got, err := newTestCleaner().Encode(input)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(got, "[Q:1/4=60]") {
		t.Errorf("floating tempo tag survived:\n%s", got)
	}
	if !strings.HasSuffix(got, "cdef|") {
		t.Errorf("body line mangled:\n%s", got)
	}
}

func TestEncodeEmptyDocument(t *testing.T) {
	if _, err := newTestCleaner().Encode("  \n \n"); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestShortenClef(t *testing.T) {
	cases := []struct{ in, want string }{
		{"treble", "treb"},
		{"treble+8", "treb+8"},
		{"tenor-8", "teno-8"},
		{"bass", "bass"},
		{"alto", "alto"},
		{"perc", "perc"},
		{"TREBLE", "treb"},
		{"", ""},
	}
	for _, c := range cases {
		if got := shortenClef(c.in); got != c.want {
			t.Errorf("shortenClef(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripFloatingTempo(t *testing.T) {
	cases := []struct{ in, want string }{
		{"abc[Q:1/4=60]def", "abcdef"},
		{"[V:2][Q:1/4=60]x", "[V:2][Q:1/4=60]x"},
		{"[V:1] [Q:1/2=40]y", "[V:1][Q:1/2=40]y"},
		{"[V:1][Q:1/4=60]a[Q:1/4=90]b", "[V:1][Q:1/4=60]ab"},
		{"no tempo here", "no tempo here"},
	}
	for _, c := range cases {
		if got := stripFloatingTempo(c.in); got != c.want {
			t.Errorf("stripFloatingTempo(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
