package restore

import (
	"io"
	"log"
	"strings"
	"testing"
)

func newTestRestorer() *Restorer {
	return New(log.New(io.Discard, "", 0))
}

func TestDecode(t *testing.T) {
	input := strings.Join([]string{
		"V:1 treb 0 Fl. (1|2)",
		"V:2 treb 0 Fl. (1|2)",
		"[V:1][Q:1/4=100][M:2/4][K:C]abc|[V:2][K:C]def",
	}, "\n")

	want := strings.Join([]string{
		"%%score ( 1 2 )",
		"L:1/8",
		"Q:1/4=100",
		"M:2/4",
		"K:C",
		`V:1 treble nm="Fl." snm="Fl."`,
		"V:2 treble",
		"[V:1][Q:1/4=100][M:2/4][K:C]abc|[V:2][K:C]def",
	}, "\n") + "\n"

	if got := newTestRestorer().Decode(input); got != want {
		t.Errorf("Decode =\n%s\nwant:\n%s", got, want)
	}
}

func TestDecodePercussionAndTranspose(t *testing.T) {
	input := strings.Join([]string{
		"V:1 treb -2 Cl. (1)",
		"V:2 perc 0 Dr. (2)",
		"[V:1][M:4/4][K:none]x|",
		"[V:2][K:Eb]y|",
	}, "\n")

	got := newTestRestorer().Decode(input)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")

	if lines[0] != "%%score 1 2" {
		t.Errorf("score line = %q", lines[0])
	}
	// [K:none] 不算探测结果，取后面的 [K:Eb]
	var sawKey bool
	for _, ln := range lines {
		if ln == "K:Eb" {
			sawKey = true
		}
		if ln == "K:none" {
			t.Errorf("K:none leaked into header")
		}
	}
	if !sawKey {
		t.Errorf("probed key missing from header:\n%s", got)
	}
	if !contains(lines, `V:1 treble transpose=-2 nm="Cl." snm="Cl."`) {
		t.Errorf("voice 1 declaration wrong:\n%s", got)
	}
	if !contains(lines, `V:2 perc stafflines=1 nm="Dr." snm="Dr."`) {
		t.Errorf("voice 2 declaration wrong:\n%s", got)
	}
}

func TestDecodeBraceGroup(t *testing.T) {
	input := strings.Join([]string{
		"V:5 treb 0 Pno. {(5|7)|6}",
		"V:6 treb 0 Pno. {(5|7)|6}",
		"V:7 bass 0 Pno. {(5|7)|6}",
		"[V:5]a|[V:6]b|[V:7]c|",
	}, "\n")

	got := newTestRestorer().Decode(input)
	lines := strings.Split(got, "\n")
	if lines[0] != "%%score { ( 5 7 ) | 6 }" {
		t.Errorf("score line = %q", lines[0])
	}
	// 组代表是最小编号成员，只有它带 nm/snm
	if !contains(lines, `V:5 treble nm="Pno." snm="Pno."`) {
		t.Errorf("representative voice missing names:\n%s", got)
	}
	if !contains(lines, "V:6 treble") || !contains(lines, "V:7 bass") {
		t.Errorf("member voices should carry no names:\n%s", got)
	}
}

func TestDecodeDegradedFourFieldLine(t *testing.T) {
	input := "V:3 bass 0 Cello\n[V:3]C,|"
	got := newTestRestorer().Decode(input)
	lines := strings.Split(got, "\n")
	if lines[0] != "%%score 3" {
		t.Errorf("score line = %q", lines[0])
	}
	if !contains(lines, `V:3 bass nm="Cello" snm="Cello"`) {
		t.Errorf("four-field line mishandled:\n%s", got)
	}
}

func TestDecodeUnknownClefPassthrough(t *testing.T) {
	got := newTestRestorer().Decode("V:9 weird 0 X. (9)\n[V:9]z|")
	if !strings.Contains(got, "V:9 weird") {
		t.Errorf("unknown clef should pass through:\n%s", got)
	}
}

func TestDecodeNoCompactVoices(t *testing.T) {
	input := "K:C\nCDEF|"
	want := "K:C\nCDEF|\n"
	if got := newTestRestorer().Decode(input); got != want {
		t.Errorf("Decode = %q, want %q", got, want)
	}
	if got := newTestRestorer().Decode(""); got != "" {
		t.Errorf("Decode of empty input = %q", got)
	}
}

func TestNormTokens(t *testing.T) {
	if got := normParenToken("(5|7|8)"); got != "( 5 7 8 )" {
		t.Errorf("normParenToken = %q", got)
	}
	if got := normParenToken("(4)"); got != "4" {
		t.Errorf("single-member group should degrade to bare id, got %q", got)
	}
	if got := normBraceToken("{(5|7|8)|(6|9|10)}"); got != "{ ( 5 7 8 ) | ( 6 9 10 ) }" {
		t.Errorf("normBraceToken = %q", got)
	}
	if got := normBraceToken("{5|6}"); got != "{ 5 | 6 }" {
		t.Errorf("bare arms mishandled, got %q", got)
	}
}

func TestFieldsN(t *testing.T) {
	parts := fieldsN("V:17 bass -12 Cb. (17|18)", 5)
	want := []string{"V:17", "bass", "-12", "Cb.", "(17|18)"}
	if len(parts) != 5 {
		t.Fatalf("got %d parts: %v", len(parts), parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Errorf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}
	// 最后一段保留剩余原文
	parts = fieldsN("a b c d e f", 3)
	if parts[2] != "c d e f" {
		t.Errorf("tail = %q, want %q", parts[2], "c d e f")
	}
}

func contains(lines []string, want string) bool {
	for _, ln := range lines {
		if ln == want {
			return true
		}
	}
	return false
}
