package abc

import (
	"reflect"
	"testing"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want map[int]string
	}{
		{
			name: "paren group with bare trailing id",
			expr: "(1|2) 3",
			want: map[int]string{1: "(1|2)", 2: "(1|2)", 3: "(3)"},
		},
		{
			name: "space separated members",
			expr: "( 5 7 8 )",
			want: map[int]string{5: "(5|7|8)", 7: "(5|7|8)", 8: "(5|7|8)"},
		},
		{
			name: "brace with nested paren",
			expr: "{(1|2)|3}",
			want: map[int]string{1: "{(1|2)|3}", 2: "{(1|2)|3}", 3: "{(1|2)|3}"},
		},
		{
			name: "brace overrides paren for shared member",
			expr: "(1|2) {1|3}",
			want: map[int]string{1: "{1|3}", 2: "(1|2)", 3: "{1|3}"},
		},
		{
			name: "first group wins within one bracket kind",
			expr: "(1|2)(2|3)",
			want: map[int]string{1: "(1|2)", 2: "(1|2)", 3: "(2|3)"},
		},
		{
			name: "bare ids become singleton groups",
			expr: "1 2",
			want: map[int]string{1: "(1)", 2: "(2)"},
		},
		{
			name: "stray closer and unclosed opener tolerated",
			expr: ") 4 (5",
			want: map[int]string{4: "(4)"},
		},
		{
			name: "empty expression",
			expr: "",
			want: map[int]string{},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ParseScore(c.expr)
			if !reflect.DeepEqual(got, c.want) {
				t.Errorf("ParseScore(%q) = %v, want %v", c.expr, got, c.want)
			}
		})
	}
}
