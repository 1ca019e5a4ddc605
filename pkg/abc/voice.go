package abc

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	voiceRe     = regexp.MustCompile(`^V:\s*(\d+)\b(.*)$`)
	keyLineRe   = regexp.MustCompile(`^K:\s*(.+)$`)
	clefPairRe  = regexp.MustCompile(`clef\s*=\s*([A-Za-z]+)\s*([+-]\d+)?`)
	transposeRe = regexp.MustCompile(`transpose\s*=\s*(-?\d+)`)
	nameRe      = regexp.MustCompile(`nm="([^"]*)"`)
	shortNameRe = regexp.MustCompile(`snm="([^"]*)"`)
)

// percMapPrefix 打击乐映射行的标记
const percMapPrefix = "I:percmap"

// CollectVoices 扫描表头，解析所有 V: 声部声明，同时跟踪打击乐覆盖信息：
// 记录最近一次出现的声部编号及其谱号是否为 perc；此后出现的 K:none 行
// （仅当最近声部是打击乐时）记为该声部的"无调号"覆盖，I:percmap 行按序
// 记为该声部的映射覆盖。跟踪状态只在遇到新的 V: 行时重置，其他表头行
// 穿插其间不影响归属。
func CollectVoices(header []string) (map[int]*VoiceMeta, map[int]*PercussionOverride) {
	voices := make(map[int]*VoiceMeta)
	overrides := make(map[int]*PercussionOverride)

	lastID := 0
	lastIsPerc := false
	seen := false

	for _, ln := range header {
		s := trimSpace(ln)
		if m := voiceRe.FindStringSubmatch(s); m != nil {
			id, _ := strconv.Atoi(m[1])
			meta := parseVoicePayload(strings.TrimSpace(m[2]))
			meta.ID = id
			voices[id] = meta
			lastID, lastIsPerc, seen = id, meta.Clef == "perc", true
			continue
		}
		if !seen || !lastIsPerc {
			continue
		}
		if m := keyLineRe.FindStringSubmatch(s); m != nil {
			if strings.EqualFold(strings.TrimSpace(m[1]), "none") {
				ov := overrides[lastID]
				if ov == nil {
					ov = &PercussionOverride{}
					overrides[lastID] = ov
				}
				ov.NoKey = true
			}
			continue
		}
		if strings.HasPrefix(ln, percMapPrefix) {
			ov := overrides[lastID]
			if ov == nil {
				ov = &PercussionOverride{}
				overrides[lastID] = ov
			}
			ov.PercMaps = append(ov.PercMaps, s)
		}
	}
	return voices, overrides
}

// parseVoicePayload 解析 V: 行编号之后的载荷。
// 谱号优先取 clef=NAME[+|-N] 键值对，否则取第一个不含 '=' 的空白分隔词；
// 统一转小写。transpose 取不到或不可解析时为 0。
func parseVoicePayload(payload string) *VoiceMeta {
	meta := &VoiceMeta{}

	if m := clefPairRe.FindStringSubmatch(payload); m != nil {
		meta.Clef = strings.ToLower(m[1]) + m[2]
	} else {
		for _, tok := range strings.Fields(payload) {
			if !strings.Contains(tok, "=") {
				meta.Clef = strings.ToLower(tok)
				break
			}
		}
	}

	if m := transposeRe.FindStringSubmatch(payload); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			meta.Transpose = n
		}
	}

	if m := nameRe.FindStringSubmatch(payload); m != nil {
		meta.Name = strings.TrimSpace(m[1])
	}
	if m := shortNameRe.FindStringSubmatch(payload); m != nil {
		meta.ShortName = strings.TrimSpace(m[1])
	}
	return meta
}

// GroupOf 返回声部所属的分组串，未入组的声部按单声部分组 "(id)" 处理
func GroupOf(groups map[int]string, id int) string {
	if g, ok := groups[id]; ok {
		return g
	}
	return fmt.Sprintf("(%d)", id)
}

// BroadcastShortNames 组内广播简名：按分组串聚合声部，
// 组内按编号升序取第一个非空简名作为该组的简名，补给组内所有缺简名的成员。
// 单声部自成一组不受影响。该操作幂等。
func BroadcastShortNames(voices map[int]*VoiceMeta, groups map[int]string) {
	byGroup := make(map[string][]int)
	for id := range voices {
		key := GroupOf(groups, id)
		byGroup[key] = append(byGroup[key], id)
	}

	for _, ids := range byGroup {
		sort.Ints(ids)
		leader := ""
		for _, id := range ids {
			if snm := strings.TrimSpace(voices[id].ShortName); snm != "" {
				leader = snm
				break
			}
		}
		if leader == "" {
			continue
		}
		for _, id := range ids {
			if strings.TrimSpace(voices[id].ShortName) == "" {
				voices[id].ShortName = leader
			}
		}
	}
}
