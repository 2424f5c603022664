package generation

import (
	"fmt"
	"strings"
)

const DefaultNegativePrompt = "blurry, low quality, distorted, ugly, bad anatomy"

const comicStyle = ", western comic book art style, colorful american comic book illustration" +
	", bold vibrant colors, dynamic shading, comic panel border" +
	", professional comic book art, detailed illustration, high quality" +
	", clean composition, consistent character design"

var featureKeywords = []string{"hair", "eyes", "tall", "short", "beard", "glasses", "hat", "dress", "suit", "jacket"}

// BuildImagePrompt 组合角色一致性说明和分镜描述，生成绘图提示词
func BuildImagePrompt(panel PanelScript, characters []Character) string {
	var b strings.Builder

	if len(characters) > 0 {
		b.WriteString("CHARACTER CONSISTENCY REQUIRED:\n")
		for _, c := range characters {
			role := c.Role
			if role == "" {
				role = "character"
			}
			fmt.Fprintf(&b, "**%s** (%s):\n", c.Name, role)
			fmt.Fprintf(&b, "- MUST LOOK EXACTLY LIKE: %s\n", c.Description)
			fmt.Fprintf(&b, "- Distinctive features: %s\n\n", KeyFeatures(c.Description))
		}
		b.WriteString("Characters must keep the same face, hair style and clothing in every panel.\n---\n\n")
	}

	composition := panel.Composition
	if composition == "" {
		composition = DefaultComposition
	}
	fmt.Fprintf(&b, "SCENE: %s showing %s", composition, panel.Visual)
	if panel.Setting != "" {
		fmt.Fprintf(&b, ", LOCATION: %s", panel.Setting)
	}
	if panel.Mood != "" {
		fmt.Fprintf(&b, ", MOOD: %s", panel.Mood)
	}
	b.WriteString(comicStyle)
	return b.String()
}

// KeyFeatures 取描述中关键外貌词附近的短语（最多 3 个），找不到时退回描述前 100 个字符
func KeyFeatures(description string) string {
	words := strings.Fields(description)
	lower := strings.ToLower(description)

	var features []string
	for _, keyword := range featureKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		for i, w := range words {
			if strings.Contains(strings.ToLower(w), keyword) {
				start := max(0, i-2)
				end := min(len(words), i+3)
				features = append(features, strings.Join(words[start:end], " "))
				break
			}
		}
		if len(features) == 3 {
			break
		}
	}

	if len(features) == 0 {
		return truncate(description, 100)
	}
	return strings.Join(features, ", ")
}
