package generation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	questionHeading = regexp.MustCompile(`###\s*\*\*Question\s+\d+:`)
	optionLine      = regexp.MustCompile(`(?m)^([A-D])\.[ \t]+(.+?)[ \t]*$`)
	answerLetter    = regexp.MustCompile(`\*\*Correct Answer:\*\*\s*([A-D])\b`)
	answerLabel     = regexp.MustCompile(`\*\*Correct Answer:\*\*`)

	labelQuestion    = regexp.MustCompile(`\*\*Question:\*\*\s*\n`)
	labelClassic     = regexp.MustCompile(`\*\*ClassicText:\*\*\s*\n`)
	labelModern      = regexp.MustCompile(`\*\*ModernText:\*\*\s*\n`)
	labelComic       = regexp.MustCompile(`\*\*Comic Context:\*\*\s*\n`)
	labelExplanation = regexp.MustCompile(`\*\*Explanation:\*\*\s*\n`)

	untilLabelOrOption = regexp.MustCompile(`\n\*\*|\n[A-D]\.`)
	untilSection       = regexp.MustCompile(`\n---|\n###`)

	grammarRules = []string{
		"Present Perfect", "Past Simple", "Future Simple", "Modal Verb",
		"Article", "Pronoun", "Passive Voice", "Conditional",
	}

	errNoSections = errors.New("no question sections found")
)

// ParseMarkdownExercises 解析 "### **Question N:**" 分段格式的模型输出
func ParseMarkdownExercises(raw string, maxQuestions int) ([]Candidate, error) {
	parts := questionHeading.Split(raw, -1)
	if len(parts) < 2 {
		return nil, errNoSections
	}
	blocks := parts[1:]
	if maxQuestions > 0 && len(blocks) > maxQuestions {
		blocks = blocks[:maxQuestions]
	}

	records := make([]Candidate, 0, len(blocks))
	for _, block := range blocks {
		question := section(block, labelQuestion, untilLabelOrOption)
		if question == "" {
			continue
		}

		// 选项只在答案标签之前，答案行 "B. went" 不算选项
		optionText := block
		if loc := answerLabel.FindStringIndex(block); loc != nil {
			optionText = block[:loc[0]]
		}
		options := make([]any, 0, 4)
		for _, m := range optionLine.FindAllStringSubmatch(optionText, -1) {
			options = append(options, strings.TrimSpace(m[2]))
		}

		correct := 0
		if m := answerLetter.FindStringSubmatch(block); m != nil {
			correct = int(m[1][0] - 'A')
		}

		explanation := section(block, labelExplanation, untilSection)
		record := Candidate{
			"type":        "grammar",
			"question":    question,
			"options":     options,
			"correct":     correct,
			"explanation": explanation,
		}
		if v := unquote(section(block, labelClassic, untilLabelOrOption)); v != "" {
			record["classic_text"] = v
		}
		if v := unquote(section(block, labelModern, untilLabelOrOption)); v != "" {
			record["modern_text"] = v
		}
		if v := section(block, labelComic, untilLabelOrOption); v != "" {
			record["comic_reference"] = v
		}
		if rule := detectGrammarRule(explanation); rule != "" {
			record["grammar_rule"] = rule
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, errNoSections
	}
	return records, nil
}

// section 返回 label 之后到第一个终止符之前的文本，找不到终止符则取到末尾
func section(block string, label, terminator *regexp.Regexp) string {
	loc := label.FindStringIndex(block)
	if loc == nil {
		return ""
	}
	rest := block[loc[1]:]
	if end := terminator.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return strings.TrimSpace(rest)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

func detectGrammarRule(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range grammarRules {
		if strings.Contains(lower, strings.ToLower(rule)) {
			return rule
		}
	}
	return ""
}
