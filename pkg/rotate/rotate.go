// Package rotate 在两种谱面布局之间转换：
// 标准 ABC（每个声部一段连续的行）与交错形式（每小节一行，
// 行内依声部顺序排列 [V:n] 片段）。交错形式便于序列模型按时间轴读谱。
package rotate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/naivecynics/abc-utils/pkg/abc"
)

var (
	bodyVoiceRe   = regexp.MustCompile(`^V:\s*(\d+)\b`)
	inlineVoiceRe = regexp.MustCompile(`\[V:\s*(\d+)\]`)
)

// barlineTokens 小节线记号，按长度降序排列保证贪婪匹配
var barlineTokens = []string{"|]", "[|", "||", "|:", ":|", "::", "|"}

// VoicePart 一个声部的小节序列。Prefix 是第一条小节线之前的引子
// （行内调号、拍号标签等），Bars 与 Barlines 等长，后者是每小节的右线。
type VoicePart struct {
	ID       int
	Prefix   string
	Bars     []string
	Barlines []string
}

// SplitVoices 把正文行按声部切块。正文中的 "V:<id>" 行切换当前声部，
// 没有任何声部标记时整个正文归入隐式的 1 号声部。
func SplitVoices(body []string) []*VoicePart {
	order := []int{}
	streams := map[int][]string{}
	cur := 1

	for _, ln := range body {
		if m := bodyVoiceRe.FindStringSubmatch(strings.TrimSpace(ln)); m != nil {
			cur, _ = strconv.Atoi(m[1])
			if _, ok := streams[cur]; !ok {
				order = append(order, cur)
				streams[cur] = nil
			}
			continue
		}
		if _, ok := streams[cur]; !ok {
			order = append(order, cur)
		}
		streams[cur] = append(streams[cur], ln)
	}

	parts := make([]*VoicePart, 0, len(order))
	for _, id := range order {
		text := strings.Join(streams[id], "")
		prefix, bars, lines := splitBars(text)
		parts = append(parts, &VoicePart{ID: id, Prefix: prefix, Bars: bars, Barlines: lines})
	}
	return parts
}

// splitBars 把一个声部的连续文本切成小节。
// 双引号内的内容视为注记，不参与小节线识别；
// '[' 只有后随 '|' 时才算小节线的一部分，否则是行内标签的开头。
func splitBars(text string) (prefix string, bars, barlines []string) {
	type seg struct{ text, line string }
	var segs []seg
	start := 0
	inQuote := false

	i := 0
	for i < len(text) {
		c := text[i]
		if c == '"' {
			inQuote = !inQuote
			i++
			continue
		}
		if inQuote {
			i++
			continue
		}
		matched := ""
		for _, tok := range barlineTokens {
			if strings.HasPrefix(text[i:], tok) {
				matched = tok
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		segs = append(segs, seg{text: text[start:i], line: matched})
		i += len(matched)
		start = i
	}
	if tail := text[start:]; strings.TrimSpace(tail) != "" {
		segs = append(segs, seg{text: tail, line: ""})
	}

	if len(segs) == 0 {
		return "", nil, nil
	}
	// 第一段若不含音符内容（只有标签/空白），视为引子而非首小节
	if strings.TrimSpace(segs[0].text) == "" {
		prefix = segs[0].text + segs[0].line
		segs = segs[1:]
	}
	for _, s := range segs {
		bars = append(bars, s.text)
		barlines = append(barlines, s.line)
	}
	return prefix, bars, barlines
}

// CheckAlignment 校验所有声部小节数是否一致。
// 这是批处理管线在谱面进入压缩编码之前的对齐闸门：
// 不一致的文件对该文件而言是致命错误，但不应中断整批任务。
func CheckAlignment(body []string) (map[int]int, bool) {
	parts := SplitVoices(body)
	counts := make(map[int]int, len(parts))
	ok := true
	want := -1
	for _, p := range parts {
		counts[p.ID] = len(p.Bars)
		if want < 0 {
			want = len(p.Bars)
		} else if len(p.Bars) != want {
			ok = false
		}
	}
	return counts, ok
}

// Rotate 把标准 ABC 文本转为交错形式。
// 表头原样保留；正文每小节输出一行，行内按声部声明顺序
// 拼接 [V:n]小节文本与右侧小节线，首行额外带上各声部引子。
// 声部小节数不一致时返回错误（调用方记录后跳过该文件）。
func Rotate(text string) (string, error) {
	lines := nonEmptyLines(text)
	header, body := abc.SplitHeaderBody(lines)

	parts := SplitVoices(body)
	if len(parts) == 0 {
		return "", fmt.Errorf("no body content to rotate")
	}
	barCount := len(parts[0].Bars)
	for _, p := range parts {
		if len(p.Bars) != barCount {
			return "", fmt.Errorf("unequal bar count: V:%d has %d bars, V:%d has %d",
				parts[0].ID, barCount, p.ID, len(p.Bars))
		}
	}

	out := make([]string, 0, len(header)+barCount)
	out = append(out, header...)
	for i := 0; i < barCount; i++ {
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(fmt.Sprintf("[V:%d]", p.ID))
			if i == 0 {
				b.WriteString(p.Prefix)
			}
			b.WriteString(p.Bars[i])
			b.WriteString(p.Barlines[i])
		}
		out = append(out, b.String())
	}
	return strings.Join(out, "\n") + "\n", nil
}

// Unrotate 把交错形式还原为标准 ABC：逐行按 [V:n] 标记切片，
// 将各声部的小节重新聚到一起，依首次出现顺序输出声部块。
func Unrotate(text string) string {
	lines := nonEmptyLines(text)
	header, body := abc.SplitHeaderBody(lines)

	order := []int{}
	chunks := map[int][]string{}
	for _, ln := range body {
		locs := inlineVoiceRe.FindAllStringSubmatchIndex(ln, -1)
		if locs == nil {
			// 没有声部标记的行归入上一声部，保持内容不丢
			if len(order) > 0 {
				last := order[len(order)-1]
				chunks[last] = append(chunks[last], ln)
			}
			continue
		}
		for k, loc := range locs {
			id, _ := strconv.Atoi(ln[loc[2]:loc[3]])
			end := len(ln)
			if k+1 < len(locs) {
				end = locs[k+1][0]
			}
			if _, ok := chunks[id]; !ok {
				order = append(order, id)
			}
			chunks[id] = append(chunks[id], ln[loc[1]:end])
		}
	}

	out := make([]string, 0, len(header)+2*len(order))
	out = append(out, header...)
	for _, id := range order {
		out = append(out, fmt.Sprintf("V:%d", id))
		out = append(out, strings.Join(chunks[id], ""))
	}
	return strings.Join(out, "\n") + "\n"
}

// TagRows 给每个正文行（以 '[' 开头的行）加上 [r:已过/剩余] 位置标签，
// 让模型在生成时知道当前进度。没有正文行时返回原文。
func TagRows(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	var bodyIdx []int
	for i, ln := range lines {
		if strings.HasPrefix(strings.TrimSpace(ln), "[") {
			bodyIdx = append(bodyIdx, i)
		}
	}
	total := len(bodyIdx)
	if total == 0 {
		return text
	}
	idxSet := make(map[int]bool, total)
	for _, i := range bodyIdx {
		idxSet[i] = true
	}
	out := make([]string, 0, len(lines))
	count := 1
	for i, ln := range lines {
		if idxSet[i] {
			out = append(out, fmt.Sprintf("[r:%d/%d]%s", count, total-count, ln))
			count++
		} else {
			out = append(out, ln)
		}
	}
	return strings.Join(out, "\n") + "\n"
}

func nonEmptyLines(text string) []string {
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
