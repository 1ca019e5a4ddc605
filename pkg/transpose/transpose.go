// Package transpose 把 ABC 谱面移调到十二个大调之一，
// 供语料做调性增强。音高按半音差重拼，拼写跟随目标调的
// 升降习惯；调号行与行内 [K:] 标签一并改写。
// 小节内持续生效的临时记号不做跨音推算，属尽力而为的简化。
package transpose

import (
	"fmt"
	"strings"
)

// Key2Index 十二个大调名到半音音级的映射
var Key2Index = map[string]int{
	"C": 0, "Db": 1, "D": 2, "Eb": 3, "E": 4, "F": 5,
	"Gb": 6, "G": 7, "Ab": 8, "A": 9, "Bb": 10, "B": 11,
}

// MajorKeys 固定顺序的大调名列表，增强输出目录按此命名
var MajorKeys = []string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// flatKeys 使用降号拼写的调
var flatKeys = map[string]bool{"F": true, "Bb": true, "Eb": true, "Ab": true, "Db": true, "Gb": true}

var letterPitch = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// 每个音级在升号/降号体系下的拼写（记号 + 字母）
var sharpSpelling = [12]string{"C", "^C", "D", "^D", "E", "F", "^F", "G", "^G", "A", "^A", "B"}
var flatSpelling = [12]string{"C", "_D", "D", "_E", "E", "F", "_G", "G", "_A", "A", "_B", "B"}

// Transpose 把整份 ABC 文本移调到 target 大调。
// 原调取表头第一个 K: 字段（取不到按 C 处理），
// 半音差规整到 [-5, +6] 以减小整体音域漂移。
func Transpose(text, target string) (string, error) {
	targetIdx, ok := Key2Index[target]
	if !ok {
		return "", fmt.Errorf("unknown target key %q (want one of %s)", target, strings.Join(MajorKeys, " "))
	}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	origin := originKey(lines)
	delta := (targetIdx - Key2Index[origin]) % 12
	if delta > 6 {
		delta -= 12
	} else if delta < -5 {
		delta += 12
	}

	useFlats := flatKeys[target]
	out := make([]string, len(lines))
	for i, ln := range lines {
		s := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(s, "K:"):
			out[i] = rewriteKeyField(ln, target)
		case isInfoLine(s):
			out[i] = ln
		default:
			out[i] = transposeMusicLine(ln, delta, useFlats, target)
		}
	}
	return strings.Join(out, "\n"), nil
}

// originKey 找表头第一个 K: 的调名；none 或不可识别时按 C
func originKey(lines []string) string {
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if !strings.HasPrefix(s, "K:") {
			continue
		}
		val := strings.Fields(strings.TrimPrefix(s, "K:"))
		if len(val) == 0 {
			break
		}
		k := normalizeKeyName(val[0])
		if _, ok := Key2Index[k]; ok {
			return k
		}
		break
	}
	return "C"
}

// normalizeKeyName 把 "eb"、"F#" 之类的写法规整到 Key2Index 的键名
func normalizeKeyName(k string) string {
	if k == "" {
		return ""
	}
	k = strings.ToUpper(k[:1]) + k[1:]
	switch k {
	case "C#":
		return "Db"
	case "D#":
		return "Eb"
	case "F#":
		return "Gb"
	case "G#":
		return "Ab"
	case "A#":
		return "Bb"
	}
	return k
}

// isInfoLine 信息字段行与 % 指令行不含音符，整行跳过
func isInfoLine(s string) bool {
	if strings.HasPrefix(s, "%") {
		return true
	}
	return len(s) >= 2 && isAlpha(s[0]) && s[1] == ':'
}

// rewriteKeyField 替换 K: 字段里的调名，保留 clef= 等后缀；K:none 不动
func rewriteKeyField(line, target string) string {
	idx := strings.Index(line, "K:")
	head, val := line[:idx+2], strings.TrimSpace(line[idx+2:])
	fields := strings.Fields(val)
	if len(fields) == 0 || strings.EqualFold(fields[0], "none") {
		return line
	}
	fields[0] = target
	return head + strings.Join(fields, " ")
}

// transposeMusicLine 逐字符扫描一行正文并移调其中的音符。
// 跳过双引号注记、!...! 装饰、行内 [X:...] 信息标签；
// 休止符 z/x/Z/X 与其它记号原样保留。
func transposeMusicLine(line string, delta int, useFlats bool, target string) string {
	var b strings.Builder
	b.Grow(len(line) + 8)

	i := 0
	for i < len(line) {
		c := line[i]

		// 引号注记整段照抄
		if c == '"' {
			j := strings.IndexByte(line[i+1:], '"')
			if j < 0 {
				b.WriteString(line[i:])
				return b.String()
			}
			b.WriteString(line[i : i+j+2])
			i += j + 2
			continue
		}
		// 装饰记号 !trill! 整段照抄
		if c == '!' {
			j := strings.IndexByte(line[i+1:], '!')
			if j < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			b.WriteString(line[i : i+j+2])
			i += j + 2
			continue
		}
		// 行内信息标签 [K:...]、[V:...] 等：调号标签改写，其余照抄
		if c == '[' && i+2 < len(line) && isAlpha(line[i+1]) && line[i+2] == ':' {
			j := strings.IndexByte(line[i:], ']')
			if j < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			tag := line[i : i+j+1]
			if strings.HasPrefix(tag, "[K:") {
				tag = "[" + rewriteKeyField(tag[1:len(tag)-1], target) + "]"
			}
			b.WriteString(tag)
			i += j + 1
			continue
		}

		if note, n := parseNote(line[i:]); n > 0 {
			b.WriteString(renderNote(noteSemitone(note)+delta, useFlats))
			i += n
			continue
		}

		b.WriteByte(c)
		i++
	}
	return b.String()
}

// noteToken 一个音符：记号（^ ^^ _ __ =）、字母、八度标记（' 与 ,）
type noteToken struct {
	accidental string
	letter     byte
	octaves    int // 相对基准八度的偏移，' 为 +1，, 为 -1
}

// parseNote 尝试在 s 开头解析一个音符，返回记号与消费的字节数；
// 解析不出时 n 为 0
func parseNote(s string) (noteToken, int) {
	var t noteToken
	i := 0
	for i < len(s) && (s[i] == '^' || s[i] == '_' || s[i] == '=') {
		i++
		if i > 2 {
			return t, 0
		}
	}
	t.accidental = s[:i]
	if i >= len(s) {
		return t, 0
	}
	c := s[i]
	upper := c &^ 0x20
	if upper < 'A' || upper > 'G' {
		return t, 0
	}
	t.letter = c
	i++
	for i < len(s) && (s[i] == '\'' || s[i] == ',') {
		if s[i] == '\'' {
			t.octaves++
		} else {
			t.octaves--
		}
		i++
	}
	return t, i
}

// noteSemitone 音符的绝对半音值，大写基准八度为 0
func noteSemitone(t noteToken) int {
	upper := t.letter &^ 0x20
	semi := letterPitch[upper]
	if t.letter >= 'a' {
		semi += 12
	}
	semi += 12 * t.octaves
	switch t.accidental {
	case "^":
		semi++
	case "^^":
		semi += 2
	case "_":
		semi--
	case "__":
		semi -= 2
	}
	return semi
}

// renderNote 把绝对半音值渲染回 ABC 记法，拼写跟随目标调
func renderNote(semi int, useFlats bool) string {
	octave := semi / 12
	pc := semi % 12
	if pc < 0 {
		pc += 12
		octave--
	}
	spell := sharpSpelling[pc]
	if useFlats {
		spell = flatSpelling[pc]
	}
	letter := spell[len(spell)-1]
	accidental := spell[:len(spell)-1]

	var b strings.Builder
	b.WriteString(accidental)
	switch {
	case octave <= 0:
		b.WriteByte(letter)
		for k := 0; k < -octave; k++ {
			b.WriteByte(',')
		}
	default:
		b.WriteByte(letter | 0x20)
		for k := 1; k < octave; k++ {
			b.WriteByte('\'')
		}
	}
	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
