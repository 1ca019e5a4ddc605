package rotate

import (
	"strings"
	"testing"
)

func TestRotate(t *testing.T) {
	input := strings.Join([]string{
		"K:C",
		"CDEF|GABc|",
		"V:2",
		"EFGA|Bcde|",
	}, "\n")

	want := strings.Join([]string{
		"K:C",
		"[V:1]CDEF|[V:2]EFGA|",
		"[V:1]GABc|[V:2]Bcde|",
	}, "\n") + "\n"

	got, err := Rotate(input)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if got != want {
		t.Errorf("Rotate =\n%s\nwant:\n%s", got, want)
	}
}

func TestRotateUnequalBars(t *testing.T) {
	input := "K:C\nCDEF|GABc|\nV:2\nCDEF|"
	if _, err := Rotate(input); err == nil {
		t.Error("expected error for unequal bar counts")
	}
}

func TestRotatePrefixOnFirstRow(t *testing.T) {
	got, err := Rotate("K:C\n|:CDEF|GABc:|")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	want := "K:C\n[V:1]|:CDEF|\n[V:1]GABc:|\n"
	if got != want {
		t.Errorf("Rotate = %q, want %q", got, want)
	}
}

func TestUnrotate(t *testing.T) {
	input := strings.Join([]string{
		"K:C",
		"[V:1]CDEF|[V:2]EFGA|",
		"[V:1]GABc|[V:2]Bcde|",
	}, "\n")

	want := strings.Join([]string{
		"K:C",
		"V:1",
		"CDEF|GABc|",
		"V:2",
		"EFGA|Bcde|",
	}, "\n") + "\n"

	if got := Unrotate(input); got != want {
		t.Errorf("Unrotate =\n%s\nwant:\n%s", got, want)
	}
}

func TestCheckAlignment(t *testing.T) {
	body := []string{"CDEF|GABc|", "V:2", "EFGA|Bcde|"}
	counts, ok := CheckAlignment(body)
	if !ok {
		t.Errorf("alignment should pass, counts = %v", counts)
	}
	if counts[1] != 2 || counts[2] != 2 {
		t.Errorf("counts = %v", counts)
	}

	counts, ok = CheckAlignment([]string{"CD|EF|", "V:2", "CD|"})
	if ok {
		t.Errorf("alignment should fail, counts = %v", counts)
	}
}

func TestCheckAlignmentIgnoresQuotedBarlines(t *testing.T) {
	counts, ok := CheckAlignment([]string{`"x|y"CD|EF|`, "V:2", "GA|Bc|"})
	if !ok || counts[1] != 2 {
		t.Errorf("quoted barline miscounted: counts = %v ok = %v", counts, ok)
	}
}

func TestTagRows(t *testing.T) {
	input := "K:C\n[V:1]a|\n[V:1]b|\n[V:1]c|\n"
	want := "K:C\n[r:1/2][V:1]a|\n[r:2/1][V:1]b|\n[r:3/0][V:1]c|\n"
	if got := TagRows(input); got != want {
		t.Errorf("TagRows = %q, want %q", got, want)
	}

	// 没有正文行时原样返回
	if got := TagRows("K:C\nV:1\n"); got != "K:C\nV:1\n" {
		t.Errorf("TagRows on headers only = %q", got)
	}
}
