package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoExercises = `[
  {"question": "Q1", "options": ["a", "b", "c", "d"], "correct": 1, "explanation": "E1"},
  {"question": "Q2", "options": ["a", "b", "c", "d"], "correct": "C", "explanation": "E2"}
]`

const markdownExercises = `### **Question 1:**
**Question:**
Which word replaces "thou"?
**ClassicText:**
"Thou art wise"
**ModernText:**
"You are wise"
**Comic Context:**
Panel 1 dialogue
A. You
B. Thee
C. Thy
D. Thine
**Correct Answer:** A
**Explanation:**
Modern English uses the Pronoun you.
---
### **Question 2:**
**Question:**
Pick the past form.
A. go
B. went
C. gone
D. going
**Correct Answer:** B
**Explanation:**
Past Simple uses went.`

func TestRecoverExercises_DirectJSON(t *testing.T) {
	records, tier, err := RecoverExercises(twoExercises, 5)
	require.NoError(t, err)
	assert.Equal(t, TierDirect, tier)
	require.Len(t, records, 2)
	assert.Equal(t, "Q1", records[0]["question"])
	assert.Equal(t, "Q2", records[1]["question"])
}

func TestRecoverExercises_FencedWithProse(t *testing.T) {
	raw := "Here are your questions:\n```json\n" + twoExercises + "\n```\nGood luck!"

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierDirect, tier)
	assert.Len(t, records, 2)
}

func TestRecoverExercises_SkipsNonObjectElements(t *testing.T) {
	raw := `["stray", {"question": "Q1", "options": ["a", "b", "c", "d"], "correct": 0, "explanation": "E"}, 3]`

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierDirect, tier)
	assert.Len(t, records, 1)
}

func TestRecoverExercises_MissingClosingBracket(t *testing.T) {
	raw := `[
  {"question": "Q1", "options": ["a", "b", "c", "d"], "correct": 1, "explanation": "E1"},
  {"question": "Q2", "options": ["a", "b", "c", "d"], "correct": 2, "explanation": "E2"}`

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierRepaired, tier)
	require.Len(t, records, 2)
	assert.Equal(t, "E1", records[0]["explanation"])
	assert.Equal(t, "E2", records[1]["explanation"])
}

func TestRecoverExercises_TruncatedRecordKeepsLeadingRecord(t *testing.T) {
	raw := `[
  {"question": "Q1", "options": ["a", "b", "c", "d"], "correct": 1, "explanation": "E1"},
  {"question": "Q2", "options": ["a", "b"`

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierRepaired, tier)
	require.Len(t, records, 2)
	assert.Equal(t, Candidate{
		"question":    "Q1",
		"options":     []any{"a", "b", "c", "d"},
		"correct":     float64(1),
		"explanation": "E1",
	}, records[0])

	result, err := PipelineRules.ValidateBatch(records)
	require.NoError(t, err)
	assert.Len(t, result.Exercises, 1)
	assert.Equal(t, []Rejection{{Index: 1, Reason: ReasonInvalidOptions}}, result.Rejections)
}

func TestRecoverExercises_TruncatedInsideKey(t *testing.T) {
	raw := `[
  {"question": "Q1", "options": ["a", "b", "c", "d"], "correct": 1, "explanation": "E1"},
  {"question": "Q2", "opt`

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierRepaired, tier)
	require.Len(t, records, 1)
	assert.Equal(t, "Q1", records[0]["question"])
}

func TestRecoverExercises_MissingCommas(t *testing.T) {
	raw := "[\n{\"question\": \"Q1\"\n\"options\": [\"a\", \"b\", \"c\", \"d\"]\n\"correct\": 0,\n\"explanation\": \"E1\"}\n]"

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierRepaired, tier)
	require.Len(t, records, 1)
	assert.Equal(t, "E1", records[0]["explanation"])
}

func TestRecoverExercises_MarkdownFallback(t *testing.T) {
	records, tier, err := RecoverExercises(markdownExercises, 5)
	require.NoError(t, err)
	assert.Equal(t, TierMarkdown, tier)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, `Which word replaces "thou"?`, first["question"])
	assert.Equal(t, "Thou art wise", first["classic_text"])
	assert.Equal(t, "You are wise", first["modern_text"])
	assert.Equal(t, "Panel 1 dialogue", first["comic_reference"])
	assert.Equal(t, []any{"You", "Thee", "Thy", "Thine"}, first["options"])
	assert.Equal(t, 0, first["correct"])
	assert.Equal(t, "Modern English uses the Pronoun you.", first["explanation"])
	assert.Equal(t, "Pronoun", first["grammar_rule"])

	second := records[1]
	assert.Equal(t, "Pick the past form.", second["question"])
	assert.Equal(t, 1, second["correct"])
	assert.Equal(t, "Past Simple", second["grammar_rule"])
	assert.NotContains(t, second, "classic_text")
}

func TestRecoverExercises_MarkdownAnswerOnOwnLine(t *testing.T) {
	raw := `### **Question 1:**
**Question:**
Pick the past form.
A. go
B. went
C. gone
D. going
**Correct Answer:**
B. went
**Explanation:**
Past Simple uses went.`

	records, tier, err := RecoverExercises(raw, 5)
	require.NoError(t, err)
	assert.Equal(t, TierMarkdown, tier)
	require.Len(t, records, 1)
	assert.Equal(t, []any{"go", "went", "gone", "going"}, records[0]["options"])
	assert.Equal(t, 1, records[0]["correct"])

	result, err := PipelineRules.ValidateBatch(records)
	require.NoError(t, err)
	require.Len(t, result.Exercises, 1)
	assert.Empty(t, result.Rejections)
}

func TestRecoverExercises_MarkdownRespectsLimit(t *testing.T) {
	records, tier, err := RecoverExercises(markdownExercises, 1)
	require.NoError(t, err)
	assert.Equal(t, TierMarkdown, tier)
	assert.Len(t, records, 1)
}

func TestRecoverExercises_AllTiersFail(t *testing.T) {
	for _, raw := range []string{"I cannot help with that.", "[1, 2, 3]", ""} {
		records, tier, err := RecoverExercises(raw, 5)
		require.Error(t, err, raw)
		assert.Nil(t, records)
		assert.Equal(t, TierNone, tier)

		var failure *ParseFailure
		require.True(t, errors.As(err, &failure))
		assert.Error(t, failure.DirectErr)
		assert.Error(t, failure.RepairErr)
		assert.Error(t, failure.MarkdownErr)
		assert.Contains(t, err.Error(), "markdown:")
	}
}

func TestRepairJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"closes nested", `[{"a": "b"`, `[{"a": "b"}]`},
		{"closes string", `{"a": "unterminated`, `{"a": "unterminated"}`},
		{"adjacent strings", "[\"x\"\n\"y\"]", "[\"x\",\n\"y\"]"},
		{"bracket then key", "{\"a\": [1]\n\"b\": 2}", "{\"a\": [1],\n\"b\": 2}"},
		{"brackets inside strings", `[{"a": "[{"`, `[{"a": "[{"}]`},
		{"already valid", `[{"a": 1}]`, `[{"a": 1}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RepairJSON(tc.in))
		})
	}
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "json", TierDirect.String())
	assert.Equal(t, "repaired_json", TierRepaired.String())
	assert.Equal(t, "markdown", TierMarkdown.String())
	assert.Equal(t, "none", TierNone.String())
}
