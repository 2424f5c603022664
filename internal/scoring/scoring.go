package scoring

// DefaultPointsPerCorrect 每答对一题的得分
const DefaultPointsPerCorrect = 10

// Result 单次作答的判分结果
type Result struct {
	IsCorrect    bool `json:"is_correct"`
	PointsEarned int  `json:"points_earned"`
}

// Counters 一次学习记录上的累计计数
type Counters struct {
	TotalScore     int
	CorrectAnswers int
	TotalQuestions int
}

type Engine struct {
	PointsPerCorrect int
}

func NewEngine(pointsPerCorrect int) *Engine {
	if pointsPerCorrect <= 0 {
		pointsPerCorrect = DefaultPointsPerCorrect
	}
	return &Engine{PointsPerCorrect: pointsPerCorrect}
}

// Score 判定作答是否正确。越界的选项下标视为答错，不返回错误
func (e *Engine) Score(selected, correct int) Result {
	if selected != correct {
		return Result{}
	}
	return Result{IsCorrect: true, PointsEarned: e.PointsPerCorrect}
}

// Apply 将一次判分结果累加到计数上
func (e *Engine) Apply(c Counters, r Result) Counters {
	c.TotalQuestions++
	if r.IsCorrect {
		c.CorrectAnswers++
	}
	c.TotalScore += r.PointsEarned
	return c
}

// Answer 整份提交中的一道题
type Answer struct {
	ExerciseID     string
	SelectedAnswer int
}

// Graded 判分后的作答
type Graded struct {
	ExerciseID     string `json:"exercise_id"`
	SelectedAnswer int    `json:"selected_answer"`
	Result
}

// Tally 对整份提交逐题判分并从零开始累计。
// correctByExercise 中找不到的题目视为答错。
func (e *Engine) Tally(answers []Answer, correctByExercise map[string]int) ([]Graded, Counters) {
	graded := make([]Graded, 0, len(answers))
	var counters Counters
	for _, a := range answers {
		var r Result
		if correct, ok := correctByExercise[a.ExerciseID]; ok {
			r = e.Score(a.SelectedAnswer, correct)
		}
		counters = e.Apply(counters, r)
		graded = append(graded, Graded{ExerciseID: a.ExerciseID, SelectedAnswer: a.SelectedAnswer, Result: r})
	}
	return graded, counters
}
