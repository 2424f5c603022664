package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	e := NewEngine(10)

	assert.Equal(t, Result{IsCorrect: true, PointsEarned: 10}, e.Score(2, 2))
	assert.Equal(t, Result{}, e.Score(1, 2))
	// 越界选项只算答错
	assert.Equal(t, Result{}, e.Score(-1, 0))
	assert.Equal(t, Result{}, e.Score(99, 3))
}

func TestNewEngine_DefaultPoints(t *testing.T) {
	assert.Equal(t, DefaultPointsPerCorrect, NewEngine(0).PointsPerCorrect)
	assert.Equal(t, 25, NewEngine(25).PointsPerCorrect)
}

func TestApply(t *testing.T) {
	e := NewEngine(10)
	c := Counters{TotalScore: 30, CorrectAnswers: 3, TotalQuestions: 4}

	c = e.Apply(c, e.Score(1, 1))
	assert.Equal(t, Counters{TotalScore: 40, CorrectAnswers: 4, TotalQuestions: 5}, c)

	c = e.Apply(c, e.Score(0, 1))
	assert.Equal(t, Counters{TotalScore: 40, CorrectAnswers: 4, TotalQuestions: 6}, c)
}

func TestTally(t *testing.T) {
	e := NewEngine(10)
	answers := []Answer{
		{ExerciseID: "ex1", SelectedAnswer: 2},
		{ExerciseID: "ex2", SelectedAnswer: 0},
		{ExerciseID: "missing", SelectedAnswer: 0},
	}

	graded, counters := e.Tally(answers, map[string]int{"ex1": 2, "ex2": 3})
	assert.Equal(t, Counters{TotalScore: 10, CorrectAnswers: 1, TotalQuestions: 3}, counters)
	assert.True(t, graded[0].IsCorrect)
	assert.False(t, graded[1].IsCorrect)
	assert.False(t, graded[2].IsCorrect)
	assert.Equal(t, 10, graded[0].PointsEarned)
}
