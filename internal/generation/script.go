package generation

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultDialogue    = "None"
	DefaultComposition = "medium shot"
)

// PanelScript 漫画脚本中的单个分镜
type PanelScript struct {
	Number      int    `json:"id"`
	Dialogue    string `json:"dialogue"`
	Narration   string `json:"narration"`
	Visual      string `json:"visual"`
	Setting     string `json:"setting"`
	Mood        string `json:"mood"`
	Composition string `json:"composition"`
}

var (
	panelMarker = regexp.MustCompile(`(?i)\*\*Panel\s*(\d+):\*\*`)

	fieldLabels = map[string]*regexp.Regexp{
		"dialogue":    regexp.MustCompile(`(?i)\*\*DIALOGUE:\*\*`),
		"narration":   regexp.MustCompile(`(?i)\*\*NARRATION:\*\*`),
		"visual":      regexp.MustCompile(`(?i)\*\*VISUAL:\*\*`),
		"setting":     regexp.MustCompile(`(?i)\*\*SETTING:\*\*`),
		"mood":        regexp.MustCompile(`(?i)\*\*MOOD:\*\*`),
		"composition": regexp.MustCompile(`(?i)\*\*COMPOSITION:\*\*`),
	}
)

// ParseComicScript 按 **Panel N:** 标记切分脚本，保留原文中的编号（可以不连续）。
// 没有匹配到任何分镜时返回空切片，由调用方决定是否视为失败。
func ParseComicScript(text string) []PanelScript {
	markers := panelMarker.FindAllStringSubmatchIndex(text, -1)
	panels := make([]PanelScript, 0, len(markers))

	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		number, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		span := text[m[1]:end]

		panel := PanelScript{
			Number:      number,
			Dialogue:    panelField(span, "dialogue"),
			Narration:   panelField(span, "narration"),
			Visual:      panelField(span, "visual"),
			Setting:     panelField(span, "setting"),
			Mood:        panelField(span, "mood"),
			Composition: panelField(span, "composition"),
		}
		if panel.Dialogue == "" {
			panel.Dialogue = DefaultDialogue
		}
		if panel.Composition == "" {
			panel.Composition = DefaultComposition
		}
		panels = append(panels, panel)
	}
	return panels
}

// panelField 取标签之后的内容，直到下一行以 ** 开头（下一个标签）或分镜结束
func panelField(span, name string) string {
	loc := fieldLabels[name].FindStringIndex(span)
	if loc == nil {
		return ""
	}
	rest := strings.TrimLeft(span[loc[1]:], " \t\r\n")
	if strings.HasPrefix(rest, "**") {
		return ""
	}

	lines := strings.Split(rest, "\n")
	kept := lines[:1]
	for _, line := range lines[1:] {
		if strings.HasPrefix(strings.TrimLeft(line, " \t\r"), "**") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// IsSilentDialogue 对白为 "none"（不区分大小写）或为空时不生成语音
func IsSilentDialogue(dialogue string) bool {
	d := strings.TrimSpace(dialogue)
	return d == "" || strings.EqualFold(d, "none")
}
