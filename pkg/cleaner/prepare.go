package cleaner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/naivecynics/abc-utils/pkg/abc"
	"github.com/naivecynics/abc-utils/pkg/rotate"
	"github.com/naivecynics/abc-utils/pkg/textnorm"
)

var (
	quoteRe = regexp.MustCompile(`"[^"]*"`)
	barNoRe = regexp.MustCompile(`\s*%\s*\d+\s*$`)
	fieldRe = regexp.MustCompile(`^[A-Za-z]:`)
)

// droppedFields 预处理阶段整行删除的信息字段：
// 曲目编号/标题/作者/歌词/抄录者与 %%MIDI 指令对训练语料没有意义
var droppedFields = []string{"X:", "T:", "C:", "W:", "w:", "Z:", "%%MIDI"}

// barlineChars 出现在双引号注记里时说明该注记是结构性杂质，整段删除
var barlineChars = []string{"|", "::"}

// Prepare 在压缩编码之前对原始 ABC 做清理和标准化：
// 繁简折算与 ASCII 转写、删信息字段、删小节号注释、
// 清理引号注记，最后做声部小节对齐校验。
// 对齐失败对该文件是致命错误，调用方应记录并跳过。
// conv 可为 nil（跳过繁简折算）。
func (c *Cleaner) Prepare(text string, conv textnorm.TextConverter) (string, error) {
	lines := splitLines(text)
	lines = textnorm.NormalizeLines(lines, conv)

	var kept []string
	for _, ln := range lines {
		if hasDroppedField(ln) {
			continue
		}
		ln = barNoRe.ReplaceAllString(ln, "")
		if !fieldRe.MatchString(ln) && !strings.HasPrefix(ln, "%") {
			// 正文行里的转义双引号还原为普通双引号
			ln = strings.ReplaceAll(ln, `\"`, `"`)
			ln = cleanQuotes(ln)
		}
		if strings.TrimSpace(ln) != "" {
			kept = append(kept, ln)
		}
	}

	_, body := abc.SplitHeaderBody(kept)
	if counts, ok := rotate.CheckAlignment(body); !ok {
		return "", fmt.Errorf("unequal bar counts across voices: %v", counts)
	}
	return strings.Join(kept, "\n") + "\n", nil
}

// cleanQuotes 清理一行里的双引号注记：
// 空注记删除；含小节线字符的注记是错切进来的结构文本，删除；
// 以 ^ 或 _ 开头的装饰注记把连续重复的标点压成单个，
// 压缩后仍超过 40 个字符的整段删除。
func cleanQuotes(line string) string {
	return quoteRe.ReplaceAllStringFunc(line, func(q string) string {
		inner := q[1 : len(q)-1]
		if inner == "" {
			return ""
		}
		for _, bc := range barlineChars {
			if strings.Contains(inner, bc) {
				return ""
			}
		}
		if inner[0] == '^' || inner[0] == '_' {
			collapsed := collapseRepeats(q)
			if len(collapsed) > 40 {
				return ""
			}
			return collapsed
		}
		return q
	})
}

// collapseRepeats 把连续重复的非字母数字字符压成一个
func collapseRepeats(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !alnum && r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

func hasDroppedField(line string) bool {
	for _, f := range droppedFields {
		if strings.HasPrefix(line, f) {
			return true
		}
	}
	return false
}
