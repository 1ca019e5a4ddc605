// Package textnorm 负责谱面文本的规范化：
// 繁体中文声部名/标题折算为简体，再将全文转写为 ASCII，
// 保证训练语料里不残留会干扰分词的非 ASCII 字符。
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TextConverter 定义文本转换器接口
type TextConverter interface {
	TradToSim(text string) string // 将繁体中文转换为简体
}

// foldTransform 先做 NFD 分解，去掉所有组合附加符号，再组合回 NFC
var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// symbolFold 乐谱文本里常见的非 ASCII 符号到 ASCII 的映射
var symbolFold = map[rune]string{
	'♭': "b",
	'♯': "#",
	'♮': "=",
	'–': "-",
	'—': "-",
	'‘': "'",
	'’': "'",
	'“': `"`,
	'”': `"`,
	'…': "...",
	'×': "x",
	'°': "o",
	' ': " ",
}

// Transliterate 将一行文本转写为 ASCII：
// 去掉变音符号（é -> e），折算常见乐谱符号（♭ -> b），
// 仍然无法表示的字符直接丢弃。尽力而为，不保证可逆。
func Transliterate(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if rep, ok := symbolFold[r]; ok {
			b.WriteString(rep)
		}
	}
	return b.String()
}

// NormalizeLines 对整份谱面逐行规范化。
// conv 可以为 nil，此时跳过繁简转换只做转写。
func NormalizeLines(lines []string, conv TextConverter) []string {
	out := make([]string, len(lines))
	for i, ln := range lines {
		if conv != nil {
			ln = conv.TradToSim(ln)
		}
		out[i] = Transliterate(ln)
	}
	return out
}
