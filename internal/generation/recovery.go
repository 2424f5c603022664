package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Tier 标记练习解析最终采用的策略
type Tier int

const (
	TierNone     Tier = 0
	TierDirect   Tier = 1 // 直接 JSON 解码
	TierRepaired Tier = 2 // 语法修复后解码
	TierMarkdown Tier = 3 // Markdown 分段扫描
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "json"
	case TierRepaired:
		return "repaired_json"
	case TierMarkdown:
		return "markdown"
	default:
		return "none"
	}
}

// Candidate 模型输出中解析出的原始练习记录，字段未经校验
type Candidate map[string]any

// ParseFailure 三种策略全部失败时返回，保留每一层的错误便于排查
type ParseFailure struct {
	DirectErr   error
	RepairErr   error
	MarkdownErr error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("failed to parse exercises: json: %v; repaired json: %v; markdown: %v",
		e.DirectErr, e.RepairErr, e.MarkdownErr)
}

var (
	fenceOpen  = regexp.MustCompile("```(?:json|JSON)?")
	arraySpan  = regexp.MustCompile(`\[[\s\S]*\]`)
	objectSpan = regexp.MustCompile(`\{[\s\S]*\}`)

	adjacentStrings = regexp.MustCompile(`"\s*\n\s*"`)
	closeThenKey    = regexp.MustCompile(`([\]}])\s*\n\s*"`)

	errNoRecords = errors.New("no exercise objects found")
)

// RecoverExercises 将模型返回的文本解析为练习候选列表。
// 依次尝试：直接解码、修复后解码、Markdown 扫描，第一个成功的策略生效。
// maxQuestions 仅限制 Markdown 分段数量，<=0 表示不限制。
func RecoverExercises(raw string, maxQuestions int) ([]Candidate, Tier, error) {
	cleaned := stripFences(raw)

	records, directErr := decodeCandidates(extractArray(cleaned))
	if directErr == nil {
		return records, TierDirect, nil
	}

	records, repairErr := repairAndDecode(cleaned)
	if repairErr == nil {
		return records, TierRepaired, nil
	}

	records, markdownErr := ParseMarkdownExercises(raw, maxQuestions)
	if markdownErr == nil {
		return records, TierMarkdown, nil
	}

	return nil, TierNone, &ParseFailure{
		DirectErr:   directErr,
		RepairErr:   repairErr,
		MarkdownErr: markdownErr,
	}
}

// repairAndDecode 依次尝试：从第一个 '[' 到结尾整体修复、截断到最后一个完整元素、修复贪婪匹配区间
func repairAndDecode(cleaned string) ([]Candidate, error) {
	start := strings.Index(cleaned, "[")
	if start < 0 {
		return nil, errors.New("no JSON array found")
	}
	tail := cleaned[start:]

	records, err := decodeCandidates(RepairJSON(tail))
	if err == nil {
		return records, nil
	}
	if cut := truncateToLastElement(fixCommas(tail)); cut != "" {
		if records, cutErr := decodeCandidates(cut); cutErr == nil {
			return records, nil
		}
	}
	if span := arraySpan.FindString(cleaned); span != "" && span != tail {
		if records, spanErr := decodeCandidates(RepairJSON(span)); spanErr == nil {
			return records, nil
		}
	}
	return nil, err
}

func stripFences(raw string) string {
	cleaned := fenceOpen.ReplaceAllString(raw, "")
	return strings.TrimSpace(cleaned)
}

// extractArray 取第一个 '[' 到最后一个 ']' 的区间
func extractArray(text string) string {
	if span := arraySpan.FindString(text); span != "" {
		return span
	}
	return text
}

func decodeCandidates(payload string) ([]Candidate, error) {
	var items []any
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}

	records := make([]Candidate, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			records = append(records, Candidate(obj))
		}
	}
	if len(records) == 0 {
		return nil, errNoRecords
	}
	return records, nil
}

// RepairJSON 补全漏掉的逗号，闭合未结束的字符串，再按嵌套顺序补齐缺失的 '}' 和 ']'
func RepairJSON(payload string) string {
	fixed := fixCommas(payload)

	stack, inString := scanBrackets(fixed)
	if inString {
		fixed += `"`
	}
	var closers strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return fixed + closers.String()
}

func fixCommas(payload string) string {
	fixed := adjacentStrings.ReplaceAllString(payload, "\",\n\"")
	return closeThenKey.ReplaceAllString(fixed, "$1,\n\"")
}

// scanBrackets 返回未闭合的括号栈，以及结尾是否仍处于字符串内
func scanBrackets(s string) ([]byte, bool) {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, ch)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return stack, inString
}

// truncateToLastElement 截断到外层数组中最后一个完整元素并闭合数组
func truncateToLastElement(s string) string {
	depth, last := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 1 {
				last = i
			}
		}
	}
	if last < 0 {
		return ""
	}
	return s[:last+1] + "]"
}
