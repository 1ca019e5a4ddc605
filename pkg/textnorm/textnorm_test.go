package textnorm

import (
	"reflect"
	"strings"
	"testing"
)

func TestTransliterate(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Flöte", "Flote"},
		{"naïve café", "naive cafe"},
		{"B♭ Clarinet", "Bb Clarinet"},
		{"F♯ G♮", "F# G="},
		{"“quoted” – dash", `"quoted" - dash`},
		{"ascii only", "ascii only"},
		{"中文残留", ""},
	}
	for _, c := range cases {
		if got := Transliterate(c.in); got != c.want {
			t.Errorf("Transliterate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

type suffixConv struct{}

func (suffixConv) TradToSim(s string) string { return strings.ReplaceAll(s, "樂", "乐") }

func TestNormalizeLines(t *testing.T) {
	got := NormalizeLines([]string{"Flöte", "音樂"}, suffixConv{})
	want := []string{"Flote", ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeLines = %v, want %v", got, want)
	}

	// conv 为 nil 时只做转写
	got = NormalizeLines([]string{"é"}, nil)
	if got[0] != "e" {
		t.Errorf("NormalizeLines without converter = %v", got)
	}
}
