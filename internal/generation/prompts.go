package generation

import (
	"fmt"
	"strings"
)

// GrammarTopic 练习生成可选的语法主题
type GrammarTopic struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	IsBasic     bool   `json:"is_basic"`
}

var GrammarTopics = []GrammarTopic{
	{ID: "tenses", Label: "Tenses", Description: "Present, Past, Perfect forms", IsBasic: true},
	{ID: "modals", Label: "Modal Verbs", Description: "can, must, should, etc.", IsBasic: false},
	{ID: "articles", Label: "Articles", Description: "a, an, the usage", IsBasic: true},
	{ID: "pronouns", Label: "Pronouns", Description: "thou/you, thy/your, etc.", IsBasic: true},
	{ID: "passive", Label: "Passive Voice", Description: "Active to passive conversion", IsBasic: false},
	{ID: "conditionals", Label: "Conditionals", Description: "If clauses and hypotheticals", IsBasic: false},
	{ID: "vocabulary", Label: "Vocabulary", Description: "Archaic to modern word changes", IsBasic: true},
	{ID: "syntax", Label: "Sentence Structure", Description: "Word order and syntax", IsBasic: false},
	{ID: "pronunciation", Label: "Pronunciation", Description: "Classic vs modern pronunciation", IsBasic: true},
}

// Prompt 一次模型调用的输入
type Prompt struct {
	System      string
	User        string
	Temperature float64
}

const modernizeSystem = `You are an expert literary translator who modernizes classic English texts while preserving their meaning, tone and literary quality.
Convert archaic pronouns and verb forms (thou, thee, thy, dost, hath) to modern English, replace obsolete words, simplify tangled sentence structures and keep the length close to the original.
Return ONLY the modernized text, no explanations.`

func ModernizePrompt(classicText string) Prompt {
	return Prompt{
		System:      modernizeSystem,
		User:        classicText,
		Temperature: 0.3,
	}
}

const scriptSystem = `You are a comic book writer adapting classic literature into short educational comics for English learners.
Write exactly %d panels. Format every panel like this:

**Panel 1:**
**DIALOGUE:** spoken line in modern English, or None
**NARRATION:** short caption
**VISUAL:** what the reader sees
**SETTING:** location and time
**MOOD:** emotional tone
**COMPOSITION:** camera framing such as close-up, medium shot or wide shot

Do not add any text outside the panels.`

func ComicScriptPrompt(classicText, modernText string, panelCount int) Prompt {
	if panelCount <= 0 {
		panelCount = 4
	}
	user := fmt.Sprintf("Classic text:\n%s\n\nModern text:\n%s", classicText, modernText)
	return Prompt{
		System:      fmt.Sprintf(scriptSystem, panelCount),
		User:        user,
		Temperature: 0.7,
	}
}

const characterSystem = "You are a character analyst. Return only valid JSON."

func CharacterPrompt(classicText, modernText string) Prompt {
	user := fmt.Sprintf(`Identify the main characters (at most 5) in this story excerpt.
For each character give a detailed physical description for visual consistency: height, build, face, hair, eyes, age, clothing and distinguishing marks.

Classic text:
%s

Modern text:
%s

Return ONLY JSON in this shape:
{"characters": [{"name": "Full Name", "role": "protagonist|antagonist|supporting", "description": "detailed visual description"}]}`,
		truncate(classicText, 800), truncate(modernText, 800))
	return Prompt{System: characterSystem, User: user, Temperature: 0.3}
}

// ExerciseRequest 练习生成参数
type ExerciseRequest struct {
	ClassicText  string
	ModernText   string
	Panels       []PanelScript
	Topics       []string
	NumQuestions int
	Difficulty   string
	Characters   []Character
}

const exerciseSystem = `You are an expert English teacher creating contextual multiple-choice grammar questions from a comic adaptation of a classic text.
Every question must reference a comic panel, its dialogue, or the change between the classic and the modern text.
%s
Focus on these topics:
%s

Return ONLY a JSON array. Each element must look like:
{"type": "multiple_choice", "difficulty": "%s", "question": "...", "classic_text": "...", "modern_text": "...", "comic_reference": "Panel 2", "options": ["A", "B", "C", "D"], "correct": 0, "explanation": "...", "grammar_rule": "..."}
Use exactly four options and a zero-based correct index.`

func ExercisePrompt(req ExerciseRequest) Prompt {
	numQuestions := req.NumQuestions
	if numQuestions <= 0 {
		numQuestions = 5
	}

	var topics []string
	for _, t := range GrammarTopics {
		for _, selected := range req.Topics {
			if t.ID == selected {
				topics = append(topics, fmt.Sprintf("- %s: %s", t.Label, t.Description))
			}
		}
	}
	if len(topics) == 0 {
		topics = append(topics, "- General grammar and vocabulary")
	}

	var panels strings.Builder
	for _, p := range req.Panels {
		fmt.Fprintf(&panels, "Panel %d: dialogue=%q narration=%q visual=%q\n", p.Number, p.Dialogue, p.Narration, p.Visual)
	}

	user := fmt.Sprintf("Create %d questions.\n\nClassic text:\n%s\n\nModern text:\n%s\n\nComic panels:\n%s",
		numQuestions, req.ClassicText, req.ModernText, panels.String())

	return Prompt{
		System:      fmt.Sprintf(exerciseSystem, CharacterReference(req.Characters), strings.Join(topics, "\n"), NormalizeDifficulty(req.Difficulty)),
		User:        user,
		Temperature: 0.7,
	}
}

// CharacterReference 生成角色一致性说明，没有角色时为空
func CharacterReference(characters []Character) string {
	if len(characters) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Characters (use these exact descriptions):\n")
	for _, c := range characters {
		fmt.Fprintf(&b, "[%s] %s (%s): %s\n", c.ID, c.Name, c.Role, c.Description)
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
