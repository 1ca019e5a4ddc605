// Package abc 提供 ABC 记谱文本的结构化模型：
// 表头/正文切分、%%score 分组语法解析、声部声明字段提取。
// 压缩编码 (pkg/cleaner) 与还原解码 (pkg/restore) 共用这一套模型。
package abc

// VoiceMeta 保存一条 V: 声部声明解析出的字段
type VoiceMeta struct {
	ID        int    // 声部编号，全谱唯一
	Clef      string // 谱号（小写），可带八度后缀，如 "treble+8"
	Transpose int    // 移调半音数，缺省为 0
	Name      string // nm="..." 全名
	ShortName string // snm="..." 简名
}

// GlobalFields 表头里最多各出现一次的全局字段，均可缺省
type GlobalFields struct {
	Tempo string // Q: 速度，如 "1/4=120"
	Meter string // M: 拍号，如 "4/4"
	Key   string // K: 默认调号，如 "C"、"Eb"
	Score string // %%score 后的分组表达式
}

// PercussionOverride 记录打击乐声部需要下放到正文首行的覆盖信息。
// 只有紧随（中间无新 V: 行）该声部声明之后出现的行才会被捕获。
type PercussionOverride struct {
	NoKey    bool     // 表头中出现过 K:none
	PercMaps []string // I:percmap 行，保持原始顺序
}

// Document 单个谱面的内存模型，每个文件独立构建，渲染后即丢弃
type Document struct {
	Voices    map[int]*VoiceMeta
	Groups    map[int]string // 声部编号 -> 规范化分组串，如 "(1|2)"、"{(1|2)|3}"
	Globals   GlobalFields
	Overrides map[int]*PercussionOverride
	BodyLines []string
}

// SplitHeaderBody 按单一规则切分表头与正文：
// 在遇到第一个正文行之前，以单个字母加冒号开头或以 %% 开头的行属于表头；
// 第一个不满足该模式的行以及其后所有行都是正文，即使后面又出现形如表头的行
// （正文开始后表头不再恢复）。行序保持不变，不丢行。
func SplitHeaderBody(lines []string) (header, body []string) {
	inBody := false
	for _, ln := range lines {
		if !inBody && IsHeaderLine(ln) {
			header = append(header, ln)
		} else {
			inBody = true
			body = append(body, ln)
		}
	}
	return header, body
}

// IsHeaderLine 判断一行是否具有表头形态
func IsHeaderLine(line string) bool {
	s := trimSpace(line)
	if len(s) >= 2 && isAlpha(s[0]) && s[1] == ':' {
		return true
	}
	return len(s) >= 2 && s[0] == '%' && s[1] == '%'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}
