package generation

import (
	"regexp"
	"strings"
)

var (
	boldLabel  = regexp.MustCompile(`\*\*([^*]+):\*\*`)
	boldText   = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicText = regexp.MustCompile(`\*([^*]+)\*`)
	underText  = regexp.MustCompile(`_([^_]+)_`)
	markupTag  = regexp.MustCompile(`<[^>]*>`)
	spaceRun   = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&quot;", `"`,
		"&apos;", "'",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
	)
)

// CleanSpeechText 去掉 Markdown 标记、XML 标签和 HTML 实体，得到适合朗读的文本
func CleanSpeechText(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}

	cleaned = boldLabel.ReplaceAllString(cleaned, "$1:")
	cleaned = boldText.ReplaceAllString(cleaned, "$1")
	cleaned = italicText.ReplaceAllString(cleaned, "$1")
	cleaned = underText.ReplaceAllString(cleaned, "$1")
	cleaned = markupTag.ReplaceAllString(cleaned, "")
	cleaned = entityReplacer.Replace(cleaned)
	cleaned = strings.TrimSpace(spaceRun.ReplaceAllString(cleaned, " "))

	for _, q := range []string{`"`, "'"} {
		if len(cleaned) >= 2 && strings.HasPrefix(cleaned, q) && strings.HasSuffix(cleaned, q) {
			cleaned = cleaned[1 : len(cleaned)-1]
		}
	}
	return cleaned
}
