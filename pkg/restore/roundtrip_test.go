package restore

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/naivecynics/abc-utils/pkg/cleaner"
)

// 压缩后还原不保证逐字节一致，但布局、组代表命名与 Q/M/K 必须语义保留。
func TestEncodeDecodeKeepsSemantics(t *testing.T) {
	original := strings.Join([]string{
		"%%score {1|2}",
		"L:1/8",
		"Q:1/4=120",
		"M:4/4",
		"K:C",
		`V:1 clef=treble nm="Violin" snm="Violin"`,
		`V:2 clef=bass nm="Cello" snm="Cello"`,
		"[V:1]CDEF|[V:2]C,D,E,F,|",
	}, "\n")

	compact, err := cleaner.New(log.New(io.Discard, "", 0)).Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	restored := newTestRestorer().Decode(compact)
	lines := strings.Split(strings.TrimRight(restored, "\n"), "\n")

	if lines[0] != "%%score { 1 | 2 }" {
		t.Errorf("layout not rebuilt as a brace over both voices: %q", lines[0])
	}
	if !contains(lines, "L:1/8") {
		t.Errorf("default unit length missing:\n%s", restored)
	}
	for _, want := range []string{"Q:1/4=120", "M:4/4", "K:C"} {
		if !contains(lines, want) {
			t.Errorf("global field %q missing:\n%s", want, restored)
		}
	}
	if !contains(lines, `V:1 treble nm="Violin" snm="Violin"`) {
		t.Errorf("representative voice lost its name:\n%s", restored)
	}
	if !contains(lines, "V:2 bass") {
		t.Errorf("non-representative voice should carry no name:\n%s", restored)
	}
	// 正文只读
	if lines[len(lines)-1] != "[V:1][Q:1/4=120][M:4/4][K:C]CDEF|[V:2][K:C]C,D,E,F,|" {
		t.Errorf("body changed by decode: %q", lines[len(lines)-1])
	}
}
