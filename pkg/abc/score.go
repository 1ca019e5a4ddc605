package abc

import (
	"strconv"
	"strings"
)

// scoreNode 括号栈上的一个累加器：记录开括号类型、
// 已渲染的子元素（编号或子分组串）以及覆盖到的声部编号集合
type scoreNode struct {
	tag     byte // '(' 或 '{'
	elems   []string
	members map[int]struct{}
}

// ParseScore 解析 %%score 指令后的分组表达式，返回 声部编号 -> 分组串。
// 语法只认 ( ) { } | 和整数，其余字符一律忽略；'|' 仅是分隔符，
// 分组关系由嵌套决定。解析过程维护两张表：圆括号闭合写入一张，
// 花括号闭合写入另一张，最后合并时花括号覆盖圆括号（花括号优先）。
// 容错：闭合符与栈顶开括号类型不匹配时按栈顶自身类型渲染；
// 栈空时遇到闭合符直接忽略；残留未闭合的累加器不输出。
func ParseScore(expr string) map[int]string {
	tokens := tokenizeScore(expr)

	var stack []*scoreNode
	parenMap := make(map[int]string)
	braceMap := make(map[int]string)

	flush := func(n *scoreNode) (string, map[int]struct{}) {
		var s string
		if n.tag == '(' {
			s = "(" + strings.Join(n.elems, "|") + ")"
			for id := range n.members {
				if _, ok := parenMap[id]; !ok {
					parenMap[id] = s
				}
			}
		} else {
			s = "{" + strings.Join(n.elems, "|") + "}"
			for id := range n.members {
				if _, ok := braceMap[id]; !ok {
					braceMap[id] = s
				}
			}
		}
		return s, n.members
	}

	for _, tk := range tokens {
		switch tk {
		case "(", "{":
			stack = append(stack, &scoreNode{tag: tk[0], members: make(map[int]struct{})})
		case ")", "}":
			if len(stack) == 0 {
				continue // 游离闭合符
			}
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			s, ids := flush(node)
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.elems = append(parent.elems, s)
				for id := range ids {
					parent.members[id] = struct{}{}
				}
			}
		case "|":
			// 分隔符本身不携带结构信息
		default:
			id, err := strconv.Atoi(tk)
			if err != nil {
				continue
			}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.elems = append(top.elems, strconv.Itoa(id))
				top.members[id] = struct{}{}
			} else if _, ok := parenMap[id]; !ok {
				// 顶层裸编号按单声部分组处理
				parenMap[id] = "(" + strconv.Itoa(id) + ")"
			}
		}
	}

	groups := make(map[int]string, len(parenMap)+len(braceMap))
	for id, s := range parenMap {
		groups[id] = s
	}
	for id, s := range braceMap {
		groups[id] = s
	}
	return groups
}

func tokenizeScore(expr string) []string {
	var out []string
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == '(' || c == ')' || c == '{' || c == '}' || c == '|':
			out = append(out, string(c))
			i++
		case isDigit(c):
			j := i
			for j < len(expr) && isDigit(expr[j]) {
				j++
			}
			out = append(out, expr[i:j])
			i = j
		default:
			i++
		}
	}
	return out
}
