package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAttempts() []Attempt {
	return []Attempt{
		{UserID: 1, ModuleID: "m1", TotalScore: 30, CorrectAnswers: 3, TotalQuestions: 4, Completed: true, StartedAt: time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)},
		{UserID: 2, ModuleID: "m1", TotalScore: 10, CorrectAnswers: 1, TotalQuestions: 4, StartedAt: time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)},
		{UserID: 1, ModuleID: "m2", TotalScore: 40, CorrectAnswers: 4, TotalQuestions: 4, Completed: true, StartedAt: time.Date(2024, time.March, 12, 9, 0, 0, 0, time.UTC)},
	}
}

func TestGroupBy_Module(t *testing.T) {
	groups := GroupBy(sampleAttempts(), ByModule)
	require.Len(t, groups, 2)

	m1 := groups[0]
	assert.Equal(t, "m1", m1.Key)
	assert.Equal(t, 2, m1.Attempts)
	assert.Equal(t, 1, m1.Completed)
	assert.Equal(t, 50.0, m1.CompletionRate)
	assert.Equal(t, 20.0, m1.AvgScore)
	assert.Equal(t, 50.0, m1.AvgAccuracy)
	assert.Equal(t, 2, m1.Participants)

	SortByAvgScore(groups)
	assert.Equal(t, "m2", groups[0].Key)
	assert.Equal(t, 1, groups[0].Participants)
}

func TestGroupBy_Student(t *testing.T) {
	groups := GroupBy(sampleAttempts(), ByStudent)
	SortByTotalScore(groups)

	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups[0].Key)
	assert.Equal(t, 70, groups[0].TotalScore)
	assert.Equal(t, 100.0, groups[0].CompletionRate)
	assert.Equal(t, 87.5, groups[0].AvgAccuracy)
	assert.Equal(t, "2", groups[1].Key)
}

func TestGroupBy_Week(t *testing.T) {
	groups := GroupBy(sampleAttempts(), ByWeek)
	SortByKey(groups)

	require.Len(t, groups, 2)
	assert.Equal(t, "2024-03-04", groups[0].Key)
	assert.Equal(t, 2, groups[0].Attempts)
	assert.Equal(t, "2024-03-11", groups[1].Key)
}

func TestGroupBy_Empty(t *testing.T) {
	assert.Empty(t, GroupBy(nil, ByModule))
	assert.Equal(t, 0.0, Group{}.AvgAccuracy)
}
