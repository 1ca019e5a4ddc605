// Package cleaner 实现谱面表头的压缩编码：
// 把冗长的声明表头重写成每声部一行的紧凑形式，
// 并把速度/拍号/调号与打击乐覆盖下放到正文首行的行内标签里。
// 逆向还原见 pkg/restore。
package cleaner

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
	tempoRe = regexp.MustCompile(`^Q:\s*(.+)$`)
	meterRe = regexp.MustCompile(`^M:\s*(.+)$`)
	keyRe   = regexp.MustCompile(`^K:\s*(.+)$`)
	scoreRe = regexp.MustCompile(`^%%score\s+(.*)$`)

	inlineVoiceRe = regexp.MustCompile(`\[V:\s*(\d+)\]`)
	voiceTempoRe  = regexp.MustCompile(`(\[V:\s*\d+\])\s*(\[Q:[^\]]+\])`)
	anyTempoRe    = regexp.MustCompile(`\[Q:[^\]]+\]`)
	clefShapeRe   = regexp.MustCompile(`^([a-z]+)([+-]\d+)?$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// defaultUnitLength 默认单位时值声明。压缩时整行丢弃，视为约定默认，
// 编码侧永不重新输出（还原侧会补回）。
const defaultUnitLength = "L:1/8"

// Cleaner 压缩编码器。无状态，可在多个 goroutine 中并发使用。
type Cleaner struct {
	logger *log.Logger
}

// New 创建一个压缩编码器
func New(logger *log.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Encode 压缩一份完整的 ABC 文本并返回压缩结果。
// 表头中的 Q/M/K、%%score 与打击乐 K:none、I:percmap 行全部移出表头：
// 前三者作为行内标签注入正文首行（见 injectFirstLine），
// 表头只保留紧凑 V 行。格式良好的表头不会返回错误；
// 布局/声部语法畸形时按容错规则降级而不是失败。
func (c *Cleaner) Encode(text string) (string, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return "", fmt.Errorf("empty document")
	}

	header, body := abc.SplitHeaderBody(lines)

	kept := header[:0:0]
	for _, ln := range header {
		if strings.HasPrefix(ln, defaultUnitLength) {
			continue
		}
		kept = append(kept, ln)
	}
	header = kept

	globals := abc.GlobalFields{
		Tempo: pickOnce(header, tempoRe),
		Meter: pickOnce(header, meterRe),
		Key:   pickOnce(header, keyRe),
		Score: pickOnce(header, scoreRe),
	}

	voices, overrides := abc.CollectVoices(header)

	groups := map[int]string{}
	if globals.Score != "" {
		groups = abc.ParseScore(globals.Score)
	}

	abc.BroadcastShortNames(voices, groups)

	out := renderCompactHeader(voices, groups)

	if len(body) > 0 {
		body[0] = injectFirstLine(body[0], globals, overrides)
	}
	for _, ln := range body {
		ln = stripFloatingTempo(ln)
		// 小节内容对空白不敏感，压缩时全部去掉
		out = append(out, spaceRe.ReplaceAllString(ln, ""))
	}

	return strings.Join(out, "\n"), nil
}

// renderCompactHeader 按声部编号升序渲染紧凑 V 行：
//
//	V:<id> [<谱号前4字符+八度后缀>] <移调> [<去空格简名>] <分组串>
//
// 谱号为空时不输出该字段；简名为空时省略；未入组的声部输出单声部分组。
func renderCompactHeader(voices map[int]*abc.VoiceMeta, groups map[int]string) []string {
	out := make([]string, 0, len(voices))
	for _, id := range sortedIDs(voices) {
		meta := voices[id]
		parts := []string{fmt.Sprintf("V:%d", id)}
		if clef := shortenClef(meta.Clef); clef != "" {
			parts = append(parts, clef)
		}
		parts = append(parts, strconv.Itoa(meta.Transpose))
		if snm := strings.ReplaceAll(meta.ShortName, " ", ""); snm != "" {
			parts = append(parts, snm)
		}
		parts = append(parts, abc.GroupOf(groups, id))
		out = append(out, strings.Join(parts, " "))
	}
	return out
}

// shortenClef 截短谱号：基名最多 4 个字符，八度后缀原样保留，
// 如 treble -> treb，treble+8 -> treb+8
func shortenClef(clef string) string {
	clef = strings.ToLower(strings.TrimSpace(clef))
	if clef == "" {
		return ""
	}
	if m := clefShapeRe.FindStringSubmatch(clef); m != nil {
		base := m[1]
		if len(base) > 4 {
			base = base[:4]
		}
		return base + m[2]
	}
	if len(clef) > 4 {
		return clef[:4]
	}
	return clef
}

// injectFirstLine 重写正文首行：以每个 [V:n] 标记为锚点切段，
// 段间文本原样保留。速度与拍号各至多注入一次，且只跟在 1 号声部
// 的标记后面。调号对每个标记注入，除非该声部的段里已带行内调号，
// 或声部有"无调号"覆盖（此时强制 [K:none]）。调号之后依原始顺序
// 追加该声部的打击乐映射行，各自包成行内标签。
func injectFirstLine(line string, globals abc.GlobalFields, overrides map[int]*abc.PercussionOverride) string {
	locs := inlineVoiceRe.FindAllStringSubmatchIndex(line, -1)
	if locs == nil {
		return line
	}

	var b strings.Builder
	tempoDone := false
	meterDone := false
	pos := 0
	for k, loc := range locs {
		b.WriteString(line[pos:loc[0]])
		b.WriteString(line[loc[0]:loc[1]])
		pos = loc[1]

		id, _ := strconv.Atoi(line[loc[2]:loc[3]])

		if id == 1 && !tempoDone && globals.Tempo != "" {
			b.WriteString("[Q:" + globals.Tempo + "]")
			tempoDone = true
		}
		if id == 1 && !meterDone && globals.Meter != "" {
			b.WriteString("[M:" + globals.Meter + "]")
			meterDone = true
		}

		segEnd := len(line)
		if k+1 < len(locs) {
			segEnd = locs[k+1][0]
		}
		segTail := line[loc[1]:segEnd]

		ov := overrides[id]
		switch {
		case ov != nil && ov.NoKey:
			b.WriteString("[K:none]")
		case !strings.Contains(segTail, "[K:") && globals.Key != "":
			b.WriteString("[K:" + globals.Key + "]")
		}
		if ov != nil {
			for _, pm := range ov.PercMaps {
				b.WriteString("[" + pm + "]")
			}
		}
	}
	b.WriteString(line[pos:])
	return b.String()
}

// stripFloatingTempo 删掉不紧跟在 [V:n] 之后的行内速度标签。
// 合法的 [V:n][Q:...] 组合先打标保护，统一剔除后再还原，
// 避免删除唯一合法的锚点速度。
func stripFloatingTempo(line string) string {
	protected := voiceTempoRe.ReplaceAllStringFunc(line, func(s string) string {
		m := voiceTempoRe.FindStringSubmatch(s)
		inner := m[2][1 : len(m[2])-1]
		return m[1] + "\x01" + inner + "\x02"
	})
	stripped := anyTempoRe.ReplaceAllString(protected, "")
	return strings.NewReplacer("\x01", "[", "\x02", "]").Replace(stripped)
}

func pickOnce(header []string, re *regexp.Regexp) string {
	for _, ln := range header {
		if m := re.FindStringSubmatch(strings.TrimSpace(ln)); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func sortedIDs(voices map[int]*abc.VoiceMeta) []int {
	ids := make([]int, 0, len(voices))
	for id := range voices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// splitLines 统一换行符并丢弃空行
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
