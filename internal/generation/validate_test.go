package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(correct any) Candidate {
	return Candidate{
		"question":    "Choose the modern form of 'thou art'.",
		"options":     []any{"you are", "you is", "thou are", "you be"},
		"correct":     correct,
		"explanation": "'Thou art' becomes 'you are'.",
	}
}

func TestValidate_CorrectIndexBoundaries(t *testing.T) {
	for idx := -1; idx <= 4; idx++ {
		ex, reason := PipelineRules.Validate(candidate(float64(idx)))
		if idx >= 0 && idx < 4 {
			assert.Empty(t, reason, "index %d", idx)
			assert.Equal(t, idx, ex.Correct)
		} else {
			assert.Equal(t, ReasonUnresolvableCorrect, reason, "index %d", idx)
		}
	}
}

func TestValidate_CorrectAnswerForms(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want int
	}{
		{"int", 2, 2},
		{"float", float64(3), 3},
		{"numeric string", "1", 1},
		{"exact option text", "thou are", 2},
		{"case-insensitive option text", "YOU BE", 3},
		{"letter", "B", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex, reason := PipelineRules.Validate(candidate(tc.raw))
			require.Empty(t, reason)
			assert.Equal(t, tc.want, ex.Correct)
		})
	}
}

func TestValidate_RejectsUnresolvableAnswers(t *testing.T) {
	for _, raw := range []any{1.5, "Z", "maybe", nil, true, "7"} {
		_, reason := PipelineRules.Validate(candidate(raw))
		assert.Equal(t, ReasonUnresolvableCorrect, reason, "%v", raw)
	}
}

func TestValidate_LegacyCorrectAnswerAlias(t *testing.T) {
	c := candidate(nil)
	delete(c, "correct")
	c["correctAnswer"] = "you is"

	ex, reason := PipelineRules.Validate(c)
	require.Empty(t, reason)
	assert.Equal(t, 1, ex.Correct)
}

func TestValidate_RuleOrder(t *testing.T) {
	c := Candidate{"options": []any{"a"}, "correct": 9}
	_, reason := PipelineRules.Validate(c)
	assert.Equal(t, ReasonMissingQuestion, reason)

	c["question"] = "Q"
	_, reason = PipelineRules.Validate(c)
	assert.Equal(t, ReasonInvalidOptions, reason)

	c["options"] = []any{"a", "b", "c", "d"}
	_, reason = PipelineRules.Validate(c)
	assert.Equal(t, ReasonUnresolvableCorrect, reason)

	c["correct"] = 0
	_, reason = PipelineRules.Validate(c)
	assert.Equal(t, ReasonMissingExplanation, reason)

	c["explanation"] = "because"
	_, reason = PipelineRules.Validate(c)
	assert.Empty(t, reason)
}

func TestValidate_OptionsMustBeStrings(t *testing.T) {
	c := candidate(0)
	c["options"] = []any{"a", 2, "c", "d"}
	_, reason := PipelineRules.Validate(c)
	assert.Equal(t, ReasonInvalidOptions, reason)

	c["options"] = "a, b, c, d"
	_, reason = PipelineRules.Validate(c)
	assert.Equal(t, ReasonInvalidOptions, reason)
}

func TestValidate_Normalization(t *testing.T) {
	c := candidate(0)
	c["difficulty"] = "expert"
	c["type"] = "grammar"
	c["classicText"] = "Thou art"
	c["grammar_rule"] = "Pronoun"

	ex, reason := PipelineRules.Validate(c)
	require.Empty(t, reason)
	assert.Equal(t, DifficultyMedium, ex.Difficulty)
	assert.Equal(t, "multiple_choice", ex.Type)
	assert.Equal(t, "Thou art", ex.ClassicText)
	assert.Equal(t, "Pronoun", ex.GrammarRule)

	c["difficulty"] = " Advanced "
	c["type"] = "vocabulary"
	ex, _ = PipelineRules.Validate(c)
	assert.Equal(t, DifficultyAdvanced, ex.Difficulty)
	assert.Equal(t, "vocabulary", ex.Type)
}

func TestAuthoredRules_AllowVariableOptionCount(t *testing.T) {
	c := Candidate{
		"question":    "True or false: 'hath' means 'has'.",
		"options":     []any{"True", "False"},
		"correct":     0,
		"explanation": "'Hath' is the archaic third person form of 'have'.",
	}
	_, reason := AuthoredRules.Validate(c)
	assert.Empty(t, reason)

	_, reason = PipelineRules.Validate(c)
	assert.Equal(t, ReasonInvalidOptions, reason)

	c["options"] = []any{"True"}
	_, reason = AuthoredRules.Validate(c)
	assert.Equal(t, ReasonInvalidOptions, reason)

	c["options"] = []any{"True", "False"}
	c["correct"] = 2
	_, reason = AuthoredRules.Validate(c)
	assert.Equal(t, ReasonUnresolvableCorrect, reason)
}

func TestValidateBatch(t *testing.T) {
	candidates := []Candidate{
		candidate(0),
		{"question": "", "options": []any{"a", "b", "c", "d"}, "correct": 0, "explanation": "x"},
		candidate("D"),
	}

	result, err := PipelineRules.ValidateBatch(candidates)
	require.NoError(t, err)
	assert.Len(t, result.Exercises, 2)
	assert.Equal(t, []Rejection{{Index: 1, Reason: ReasonMissingQuestion}}, result.Rejections)
	assert.Equal(t, "saved 2 of 3 exercises, 1 rejected", result.Summary())
}

func TestValidateBatch_AllRejected(t *testing.T) {
	result, err := PipelineRules.ValidateBatch([]Candidate{candidate(9), {}})
	assert.ErrorIs(t, err, ErrNoValidExercises)
	assert.Empty(t, result.Exercises)
	assert.Len(t, result.Rejections, 2)
}

func TestResolveAnswerIndex(t *testing.T) {
	options := []string{"go", "went", "gone"}

	idx, err := ResolveAnswerIndex("Went", options)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = ResolveAnswerIndex(3, options)
	assert.Error(t, err)

	_, err = ResolveAnswerIndex(-1, options)
	assert.Error(t, err)
}
