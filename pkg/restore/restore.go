// Package restore 实现压缩谱面的表头还原：
// 从紧凑 V 行重建 %%score 布局指令与完整的声部声明，
// 并从正文行内标签只读地探回速度/拍号/调号。
// 还原是尽力而为的语义逆变换，不保证与原始表头逐字节一致：
// 模型未覆盖的字段（布局、Q/M/K、谱号/移调/声部名、打击乐覆盖之外
// 的一切）在压缩时已经丢弃，不会复现。
package restore

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/naivecynics/abc-utils/pkg/abc"
)

var (
	probeTempoRe = regexp.MustCompile(`\[Q:[^\]]+\]`)
	probeMeterRe = regexp.MustCompile(`\[M:[^\]]+\]`)
	probeKeyRe   = regexp.MustCompile(`\[K:([^\]]+)\]`)
)

// clefNames 4 字符谱号缩写到全名的固定映射，未知缩写原样通过
var clefNames = map[string]string{
	"treb":   "treble",
	"treble": "treble",
	"alto":   "alto",
	"teno":   "tenor",
	"tenor":  "tenor",
	"bass":   "bass",
	"perc":   "perc",
}

// voiceDef 一条紧凑 V 行解析出的声部定义
type voiceDef struct {
	id        int
	clef      string
	transpose int
	name      string
	group     string // "(1|2)" 或 "{(5|7)|6}"，无分组时为空
}

// Restorer 表头还原器。无状态，可并发使用。
type Restorer struct {
	logger *log.Logger
}

// New 创建一个表头还原器
func New(logger *log.Logger) *Restorer {
	return &Restorer{logger: logger}
}

// Decode 还原一份压缩谱面。解析不出任何紧凑 V 行时原样返回。
func (r *Restorer) Decode(text string) string {
	lines := splitLines(text)
	header, body := abc.SplitHeaderBody(lines)

	defs := parseCompactVoices(header)
	if len(defs) == 0 {
		if len(header)+len(body) == 0 {
			return ""
		}
		return strings.Join(append(header, body...), "\n") + "\n"
	}

	head := renderHeader(defs, body)
	return strings.Join(append(head, body...), "\n") + "\n"
}

// parseCompactVoices 解析紧凑 V 行。严格形式是五段：
// V:<id> <谱号> <移调> <简名> <分组>；缺分组的四段形式也接受。
// 分组段必须是完整的圆括号或花括号表达式，否则按无分组处理。
func parseCompactVoices(header []string) []*voiceDef {
	var out []*voiceDef
	for _, ln := range header {
		if !strings.HasPrefix(ln, "V:") {
			continue
		}
		parts := fieldsN(ln, 5)
		var group string
		if len(parts) < 5 {
			parts = fieldsN(ln, 4)
			if len(parts) < 4 {
				continue
			}
		} else {
			group = strings.TrimSpace(parts[4])
		}
		id, err := strconv.Atoi(strings.TrimPrefix(parts[0], "V:"))
		if err != nil {
			continue
		}
		clef := strings.ToLower(parts[1])
		if full, ok := clefNames[clef]; ok {
			clef = full
		}
		transpose, err := strconv.Atoi(parts[2])
		if err != nil {
			transpose = 0
		}
		if group != "" && !isGroupToken(group) {
			group = ""
		}
		out = append(out, &voiceDef{
			id:        id,
			clef:      clef,
			transpose: transpose,
			name:      parts[3],
			group:     group,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func isGroupToken(s string) bool {
	return (strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) ||
		(strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"))
}

// renderHeader 重建完整表头：布局指令、默认单位时值、
// 从正文探到的 Q/M/K，然后按编号升序输出声部声明。
// 打击乐声部附带 stafflines=1，移调为 0 时省略 transpose 字段，
// nm/snm 只写在组代表（组内最小编号）和未入组的单声部上。
func renderHeader(defs []*voiceDef, body []string) []string {
	tokens, reps := buildScoreTokens(defs)
	head := []string{"%%score " + strings.Join(tokens, " "), "L:1/8"}

	tempo, meter, key := probeGlobals(body)
	if tempo != "" {
		head = append(head, tempo)
	}
	if meter != "" {
		head = append(head, meter)
	}
	if key != "" {
		head = append(head, key)
	}

	for _, v := range defs {
		fields := []string{fmt.Sprintf("V:%d", v.id), v.clef}
		if v.clef == "perc" {
			fields = append(fields, "stafflines=1")
		}
		if v.transpose != 0 {
			fields = append(fields, fmt.Sprintf("transpose=%d", v.transpose))
		}
		if reps[v.id] && v.name != "" {
			fields = append(fields, fmt.Sprintf("nm=%q", v.name), fmt.Sprintf("snm=%q", v.name))
		}
		head = append(head, strings.Join(fields, " "))
	}
	return head
}

// probeGlobals 只读地在正文中找第一个行内速度/拍号/调号标签，
// 三者找齐或正文扫完即停。调号值为 none 的标签忽略。
func probeGlobals(body []string) (tempo, meter, key string) {
	for _, ln := range body {
		if tempo == "" {
			if m := probeTempoRe.FindString(ln); m != "" {
				tempo = m[1 : len(m)-1]
			}
		}
		if meter == "" {
			if m := probeMeterRe.FindString(ln); m != "" {
				meter = m[1 : len(m)-1]
			}
		}
		if key == "" {
			if m := probeKeyRe.FindStringSubmatch(ln); m != nil {
				val := strings.TrimSpace(m[1])
				if !strings.EqualFold(val, "none") {
					key = "K:" + val
				}
			}
		}
		if tempo != "" && meter != "" && key != "" {
			break
		}
	}
	return tempo, meter, key
}

// buildScoreTokens 按声部定义重建布局指令的记号序列。
// 分组按首次出现顺序输出一次（用排序后的成员编号做去重键），
// 未入组的声部按编号升序跟在后面。每个组的最小编号成员是
// 命名代表；单声部是自己的代表。
func buildScoreTokens(defs []*voiceDef) ([]string, map[int]bool) {
	seen := map[string]bool{}
	grouped := map[int]bool{}
	reps := map[int]bool{}
	var tokens []string

	for _, v := range defs {
		if v.group == "" {
			continue
		}
		ids := groupMembers(v.group)
		key := dedupKey(v.group, ids)
		if seen[key] {
			continue
		}
		seen[key] = true
		rep := v.id
		if len(ids) > 0 {
			rep = ids[0]
			for _, id := range ids {
				grouped[id] = true
				if id < rep {
					rep = id
				}
			}
		}
		reps[rep] = true
		if strings.HasPrefix(v.group, "(") {
			tokens = append(tokens, normParenToken(v.group))
		} else {
			tokens = append(tokens, normBraceToken(v.group))
		}
	}

	for _, v := range defs {
		if !grouped[v.id] {
			tokens = append(tokens, strconv.Itoa(v.id))
			reps[v.id] = true
		}
	}
	return tokens, reps
}

func dedupKey(group string, ids []int) string {
	sorted := append([]int(nil), ids...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	prefix := "P:"
	if strings.HasPrefix(group, "{") {
		prefix = "B:"
	}
	return prefix + strings.Join(parts, ",")
}

// splitTopLevelPipes 只在嵌套深度为 0 处按 '|' 切分
func splitTopLevelPipes(s string) []string {
	var out []string
	var buf strings.Builder
	level := 0
	flush := func() {
		if tok := strings.TrimSpace(buf.String()); tok != "" {
			out = append(out, tok)
		}
		buf.Reset()
	}
	for _, ch := range s {
		switch ch {
		case '(', '{':
			level++
			buf.WriteRune(ch)
		case ')', '}':
			level--
			buf.WriteRune(ch)
		case '|':
			if level == 0 {
				flush()
			} else {
				buf.WriteRune(ch)
			}
		default:
			buf.WriteRune(ch)
		}
	}
	flush()
	return out
}

// normParenToken "(5|7|8)" -> "( 5 7 8 )"；单成员退化为裸编号
func normParenToken(s string) string {
	nums := innerDigits(strings.TrimSpace(s))
	switch len(nums) {
	case 0:
		return "( )"
	case 1:
		return strconv.Itoa(nums[0])
	default:
		return "( " + joinInts(nums, " ") + " )"
	}
}

// normBraceToken "{(5|7|8)|(6|9|10)}" -> "{ ( 5 7 8 ) | ( 6 9 10 ) }"，
// 裸臂 "5|6|7" 与单编号臂同样接受
func normBraceToken(s string) string {
	inner := strings.TrimSpace(s)
	inner = strings.TrimSpace(inner[1 : len(inner)-1])
	var arms []string
	for _, arm := range splitTopLevelPipes(inner) {
		if strings.HasPrefix(arm, "(") && strings.HasSuffix(arm, ")") {
			arms = append(arms, normParenToken(arm))
			continue
		}
		var nums []int
		for _, p := range splitTopLevelPipes(arm) {
			if n, err := strconv.Atoi(p); err == nil {
				nums = append(nums, n)
			}
		}
		switch len(nums) {
		case 0:
		case 1:
			arms = append(arms, strconv.Itoa(nums[0]))
		default:
			arms = append(arms, "( "+joinInts(nums, " ")+" )")
		}
	}
	if len(arms) == 0 {
		return "{ }"
	}
	return "{ " + strings.Join(arms, " | ") + " }"
}

// groupMembers 把分组串展开为成员编号列表
func groupMembers(s string) []int {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return innerDigits(s)
	}
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		inner := strings.TrimSpace(s[1 : len(s)-1])
		var ids []int
		for _, arm := range splitTopLevelPipes(inner) {
			if strings.HasPrefix(arm, "(") && strings.HasSuffix(arm, ")") {
				ids = append(ids, innerDigits(arm)...)
				continue
			}
			for _, p := range splitTopLevelPipes(arm) {
				if n, err := strconv.Atoi(p); err == nil {
					ids = append(ids, n)
				}
			}
		}
		return ids
	}
	return nil
}

// innerDigits 取括号内按 '|' 分隔的全部整数
func innerDigits(s string) []int {
	inner := strings.TrimSpace(s[1 : len(s)-1])
	var nums []int
	for _, p := range strings.Split(inner, "|") {
		if n, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}

func joinInts(nums []int, sep string) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}

// fieldsN 按空白切分，最多 n 段，最后一段保留剩余原文
func fieldsN(s string, n int) []string {
	var out []string
	i := 0
	for len(out) < n-1 {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			return out
		}
		j := i
		for j < len(s) && s[j] != ' ' && s[j] != '\t' {
			j++
		}
		out = append(out, s[i:j])
		i = j
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if rest := strings.TrimRight(s[i:], " \t"); rest != "" {
		out = append(out, rest)
	}
	return out
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			out = append(out, ln)
		}
	}
	return out
}
