package generation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// 校验拒绝原因
const (
	ReasonMissingQuestion     = "missing question"
	ReasonInvalidOptions      = "invalid options"
	ReasonUnresolvableCorrect = "unresolvable correct answer"
	ReasonMissingExplanation  = "missing explanation"
)

const (
	DifficultyBeginner = "beginner"
	DifficultyMedium   = "medium"
	DifficultyAdvanced = "advanced"
)

// TypeMultipleChoice 默认题型
const TypeMultipleChoice = "multiple_choice"

var ExerciseTypes = []string{
	TypeMultipleChoice, "fill_in_blank", "true_false", "matching", "error_correction",
	"transformation", "ordering", "completion", "pronunciation", "vocabulary",
}

var ErrNoValidExercises = errors.New("no valid exercises after validation")

// Exercise 通过校验的练习
type Exercise struct {
	Type           string   `json:"type"`
	Difficulty     string   `json:"difficulty"`
	Question       string   `json:"question"`
	ClassicText    string   `json:"classic_text,omitempty"`
	ModernText     string   `json:"modern_text,omitempty"`
	ComicReference string   `json:"comic_reference,omitempty"`
	AudioText      string   `json:"audio_text,omitempty"`
	AudioType      string   `json:"audio_type,omitempty"`
	Options        []string `json:"options"`
	Correct        int      `json:"correct"`
	Explanation    string   `json:"explanation"`
	GrammarRule    string   `json:"grammar_rule,omitempty"`
}

// Rejection 被跳过的候选记录
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult 一批候选的校验结果
type BatchResult struct {
	Exercises  []Exercise  `json:"exercises"`
	Rejections []Rejection `json:"rejections"`
}

func (b BatchResult) Summary() string {
	total := len(b.Exercises) + len(b.Rejections)
	return fmt.Sprintf("saved %d of %d exercises, %d rejected", len(b.Exercises), total, len(b.Rejections))
}

// Rules 校验规则。生成流程要求恰好 4 个选项，手工录入至少 2 个
type Rules struct {
	ExactOptions int
	MinOptions   int
}

var (
	PipelineRules = Rules{ExactOptions: 4}
	AuthoredRules = Rules{MinOptions: 2}
)

// Validate 按顺序校验单条候选，返回空原因表示通过
func (r Rules) Validate(c Candidate) (Exercise, string) {
	question := stringField(c, "question")
	if question == "" {
		return Exercise{}, ReasonMissingQuestion
	}

	options, ok := optionList(c["options"])
	if !ok || !r.optionCountOK(len(options)) {
		return Exercise{}, ReasonInvalidOptions
	}

	var raw any
	for _, key := range []string{"correct", "correct_answer", "correctAnswer"} {
		if v, ok := c[key]; ok && v != nil {
			raw = v
			break
		}
	}
	correct, err := ResolveAnswerIndex(raw, options)
	if err != nil {
		return Exercise{}, ReasonUnresolvableCorrect
	}

	explanation := stringField(c, "explanation")
	if explanation == "" {
		return Exercise{}, ReasonMissingExplanation
	}

	return Exercise{
		Type:           NormalizeType(stringField(c, "type")),
		Difficulty:     NormalizeDifficulty(stringField(c, "difficulty")),
		Question:       question,
		ClassicText:    stringField(c, "classic_text", "classicText"),
		ModernText:     stringField(c, "modern_text", "modernText"),
		ComicReference: stringField(c, "comic_reference", "comicReference"),
		AudioText:      stringField(c, "audio_text", "audioText"),
		AudioType:      stringField(c, "audio_type", "audioType"),
		Options:        options,
		Correct:        correct,
		Explanation:    explanation,
		GrammarRule:    stringField(c, "grammar_rule", "grammarRule"),
	}, ""
}

// ValidateBatch 校验整批候选；只有全部被拒绝时才返回错误
func (r Rules) ValidateBatch(candidates []Candidate) (BatchResult, error) {
	result := BatchResult{
		Exercises:  make([]Exercise, 0, len(candidates)),
		Rejections: []Rejection{},
	}
	for i, c := range candidates {
		ex, reason := r.Validate(c)
		if reason != "" {
			result.Rejections = append(result.Rejections, Rejection{Index: i, Reason: reason})
			continue
		}
		result.Exercises = append(result.Exercises, ex)
	}
	if len(result.Exercises) == 0 {
		return result, ErrNoValidExercises
	}
	return result, nil
}

func (r Rules) optionCountOK(n int) bool {
	if r.ExactOptions > 0 {
		return n == r.ExactOptions
	}
	return n >= r.MinOptions
}

// ResolveAnswerIndex 将正确答案解析为选项下标。
// 支持整数、数字字符串、选项字母（A-Z）以及与选项文本精确或忽略大小写匹配的字符串。
func ResolveAnswerIndex(raw any, options []string) (int, error) {
	idx, err := answerIndex(raw, options)
	if err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(options) {
		return 0, fmt.Errorf("correct answer index %d out of range (options: %d)", idx, len(options))
	}
	return idx, nil
}

func answerIndex(raw any, options []string) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("correct answer %v is not an integer", v)
		}
		return int(v), nil
	case string:
		s := strings.TrimSpace(v)
		for i, opt := range options {
			if opt == s {
				return i, nil
			}
		}
		for i, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt), s) {
				return i, nil
			}
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		if len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z' {
			return int(s[0] - 'A'), nil
		}
		return 0, fmt.Errorf("correct answer %q matches no option", s)
	default:
		return 0, fmt.Errorf("correct answer has unsupported type %T", raw)
	}
}

func NormalizeDifficulty(d string) string {
	switch strings.ToLower(strings.TrimSpace(d)) {
	case DifficultyBeginner:
		return DifficultyBeginner
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyMedium
	}
}

// NormalizeType 不在题型集合内的类型统一归为 multiple_choice
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	if IsExerciseType(t) {
		return t
	}
	return TypeMultipleChoice
}

func IsExerciseType(t string) bool {
	for _, known := range ExerciseTypes {
		if known == t {
			return true
		}
	}
	return false
}

// stringField 依次尝试各个键名，返回第一个非空字符串
func stringField(c Candidate, keys ...string) string {
	for _, key := range keys {
		if s, ok := c[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func optionList(raw any) ([]string, bool) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		return append([]string(nil), v...), true
	default:
		return nil, false
	}
	options := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		options = append(options, strings.TrimSpace(s))
	}
	return options, true
}
