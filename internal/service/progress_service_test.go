package service

import (
	"context"
	"testing"
	"time"

	"comic_english_backend/internal/model"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerQuestion(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "alice", model.Student)
	s := f.progressService()

	res, err := s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex1", SelectedAnswer: intPtr(2)})
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 10, res.PointsEarned)
	assert.Equal(t, 2, res.CorrectAnswer)
	assert.Equal(t, "because", res.Explanation)
	assert.Equal(t, 10, res.Progress.TotalScore)
	assert.Equal(t, 1, res.Progress.TotalQuestions)

	res, err = s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex2", SelectedAnswer: intPtr(9)})
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)
	assert.Equal(t, 0, res.PointsEarned)
	assert.Equal(t, 10, res.Progress.TotalScore)
	assert.Equal(t, 1, res.Progress.CorrectAnswers)
	assert.Equal(t, 2, res.Progress.TotalQuestions)

	_, err = s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex1", SelectedAnswer: intPtr(2)})
	assert.ErrorIs(t, err, util.ErrAlreadyAnswered)

	_, err = s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex3", SelectedAnswer: intPtr(0)})
	assert.ErrorIs(t, err, util.ErrExerciseNotFound)

	_, err = s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "missing", SelectedAnswer: intPtr(0)})
	assert.ErrorIs(t, err, util.ErrExerciseNotFound)
}

func TestAnswerQuestion_PointsHotReload(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "alice", model.Student)
	s := f.progressService()
	s.SetPointsPerCorrect(25)

	res, err := s.AnswerQuestion(student.ID, f.moduleID, AnswerRequest{ExerciseID: "ex1", SelectedAnswer: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, 25, res.PointsEarned)
	assert.Equal(t, 25, s.Engine().PointsPerCorrect)
}

func TestSubmitAttempt(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "alice", model.Student)
	s := f.progressService()

	correct := true
	res, err := s.SubmitAttempt(student.ID, SubmitRequest{
		ModuleID: f.moduleID,
		Answers: []SubmittedAnswer{
			{ExerciseID: "ex1", SelectedAnswer: 2},
			{ExerciseID: "ex2", SelectedAnswer: 0, IsCorrect: &correct},
			{ExerciseID: "ex1", SelectedAnswer: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Progress.TotalQuestions)
	assert.Equal(t, 1, res.Progress.CorrectAnswers)
	assert.Equal(t, 10, res.Progress.TotalScore)
	assert.Equal(t, 50.0, res.Accuracy)
	require.Len(t, res.Results, 2)
	assert.True(t, res.Results[0].IsCorrect)
	assert.False(t, res.Results[1].IsCorrect)

	// 重新提交替换旧作答
	res, err = s.SubmitAttempt(student.ID, SubmitRequest{
		ModuleID: f.moduleID,
		Answers: []SubmittedAnswer{
			{ExerciseID: "ex1", SelectedAnswer: 2},
			{ExerciseID: "ex2", SelectedAnswer: 3},
			{ExerciseID: "ex3", SelectedAnswer: 0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Progress.TotalQuestions)
	assert.Equal(t, 2, res.Progress.CorrectAnswers)
	assert.Equal(t, 20, res.Progress.TotalScore)

	progress, err := s.ModuleProgress(student.ID, f.moduleID)
	require.NoError(t, err)
	assert.Len(t, progress.Answers, 2)

	var records int64
	require.NoError(t, f.db.Model(&model.UserProgress{}).Count(&records).Error)
	assert.Equal(t, int64(1), records)

	_, err = s.SubmitAttempt(student.ID, SubmitRequest{ModuleID: "missing"})
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	student := f.user(t, "alice", model.Student)
	s := f.progressService()

	progress, err := s.Complete(student.ID, f.moduleID)
	require.NoError(t, err)
	assert.True(t, progress.Completed)
	require.NotNil(t, progress.CompletedAt)

	_, err = s.Complete(student.ID, "missing")
	assert.ErrorIs(t, err, util.ErrModuleNotFound)

	mine, err := s.MyProgress(student.ID)
	require.NoError(t, err)
	require.Len(t, mine.Progress, 1)
	assert.Equal(t, "Romeo and Juliet", mine.Progress[0].ModuleName)
	assert.Equal(t, 1, mine.Summary.ModulesCompleted)
}

// seedScores 四名学生总分 50、80、80、30
func seedScores(t *testing.T, f *fixture) []*model.User {
	students := []*model.User{
		f.user(t, "s1", model.Student),
		f.user(t, "s2", model.Student),
		f.user(t, "s3", model.Student),
		f.user(t, "s4", model.Student),
	}
	scores := []int{50, 80, 80, 30}
	for i, u := range students {
		f.record(t, u.ID, f.moduleID, scores[i], scores[i]/10, 10, i == 1, fixedNow.Add(-time.Hour))
	}
	return students
}

func TestLeaderboard_StableTieBreak(t *testing.T) {
	f := newFixture(t)
	students := seedScores(t, f)
	f.user(t, "idle", model.Student)
	s := f.progressService()

	board, err := s.Leaderboard(context.Background(), students[0], "all_time", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, board.TotalStudents)
	require.Len(t, board.Entries, 4)

	ranks := map[string]int{}
	for _, e := range board.Entries {
		ranks[e.Username] = e.Rank
	}
	assert.Equal(t, map[string]int{"s1": 3, "s2": 1, "s3": 2, "s4": 4}, ranks)
	assert.Equal(t, "s2", board.Entries[0].Username)
	assert.Contains(t, board.Entries[0].Badges, stats.BadgeFirstSteps)

	require.NotNil(t, board.CurrentUserRank)
	assert.Equal(t, 3, board.CurrentUserRank.Rank)
	assert.True(t, board.CurrentUserRank.IsCurrentUser)

	board, err = s.Leaderboard(context.Background(), students[3], "", 2)
	require.NoError(t, err)
	assert.Len(t, board.Entries, 2)
	assert.Equal(t, 4, board.TotalStudents)
	require.NotNil(t, board.CurrentUserRank)
	assert.Equal(t, 4, board.CurrentUserRank.Rank)

	board, err = s.Leaderboard(context.Background(), f.teacher, "all_time", 10)
	require.NoError(t, err)
	assert.Nil(t, board.CurrentUserRank)
}

func TestLeaderboard_Timeframe(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "recent", model.Student)
	b := f.user(t, "old", model.Student)
	f.record(t, a.ID, f.moduleID, 10, 1, 2, false, fixedNow.Add(-24*time.Hour))
	f.record(t, b.ID, f.moduleID, 90, 9, 10, false, fixedNow.AddDate(0, -2, 0))
	s := f.progressService()

	week, err := s.Leaderboard(context.Background(), a, "this_week", 10)
	require.NoError(t, err)
	require.Len(t, week.Entries, 1)
	assert.Equal(t, "recent", week.Entries[0].Username)
	assert.Equal(t, stats.ThisWeek, week.TimePeriod)

	all, err := s.Leaderboard(context.Background(), a, "all_time", 10)
	require.NoError(t, err)
	require.Len(t, all.Entries, 2)
	assert.Equal(t, "old", all.Entries[0].Username)

	_, err = s.Leaderboard(context.Background(), a, "yesterday", 10)
	assert.ErrorIs(t, err, util.ErrInvalidQuery)
}

func TestStudentRank(t *testing.T) {
	f := newFixture(t)
	students := seedScores(t, f)
	s := f.progressService()

	rank, err := s.StudentRank(students[0], students[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rank.Rank)
	assert.Equal(t, 4, rank.TotalStudents)
	assert.Equal(t, 50, rank.Percentile)
	require.Len(t, rank.StudentsAbove, 2)
	assert.Equal(t, "s2", rank.StudentsAbove[0].Username)
	require.Len(t, rank.StudentsBelow, 1)
	assert.Equal(t, "s4", rank.StudentsBelow[0].Username)

	_, err = s.StudentRank(students[1], students[0].ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	rank, err = s.StudentRank(f.teacher, students[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 100, rank.Percentile)

	_, err = s.StudentRank(f.teacher, f.teacher.ID)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestTopPerformers(t *testing.T) {
	f := newFixture(t)
	a := f.user(t, "a", model.Student)
	b := f.user(t, "b", model.Student)
	f.user(t, "idle", model.Student)
	// a: 两条记录正确率 100 和 50，平均 75
	f.record(t, a.ID, f.moduleID, 20, 2, 2, true, fixedNow)
	f.record(t, a.ID, f.otherID, 10, 1, 2, true, fixedNow)
	// b: 总分更高但正确率 40
	f.record(t, b.ID, f.moduleID, 40, 4, 10, false, fixedNow)
	s := f.progressService()

	top, err := s.TopPerformers("", 0)
	require.NoError(t, err)
	assert.Equal(t, MetricScore, top.Metric)
	require.Len(t, top.TopPerformers, 2)
	assert.Equal(t, "b", top.TopPerformers[0].Username)

	top, err = s.TopPerformers(MetricAccuracy, 1)
	require.NoError(t, err)
	require.Len(t, top.TopPerformers, 1)
	assert.Equal(t, "a", top.TopPerformers[0].Username)
	assert.Equal(t, 75.0, top.TopPerformers[0].Accuracy)

	top, err = s.TopPerformers(MetricModules, 5)
	require.NoError(t, err)
	assert.Equal(t, "a", top.TopPerformers[0].Username)
	assert.Equal(t, 2, top.TopPerformers[0].ModulesCompleted)

	_, err = s.TopPerformers("speed", 5)
	assert.ErrorIs(t, err, util.ErrInvalidQuery)
}

func TestStudentsOverviewAndDetails(t *testing.T) {
	f := newFixture(t)
	students := seedScores(t, f)
	idle := f.user(t, "idle", model.Student)
	s := f.progressService()

	overview, err := s.StudentsOverview()
	require.NoError(t, err)
	assert.Equal(t, 5, overview.TotalStudents)
	assert.Equal(t, 1, overview.TotalCompletions)
	last := overview.Students[len(overview.Students)-1]
	assert.Equal(t, idle.ID, last.UserID)
	assert.Equal(t, 0, last.TotalScore)

	_, err = s.AnswerQuestion(students[0].ID, f.otherID, AnswerRequest{ExerciseID: "ex3", SelectedAnswer: intPtr(0)})
	require.NoError(t, err)

	details, err := s.StudentDetails(students[0].ID)
	require.NoError(t, err)
	require.Len(t, details.Modules, 2)
	assert.Equal(t, 60, details.Stats.TotalScore)
	var answered int
	for _, m := range details.Modules {
		answered += len(m.Answers)
	}
	assert.Equal(t, 1, answered)

	_, err = s.StudentDetails(9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}

func TestWarmLeaderboards_NoCache(t *testing.T) {
	f := newFixture(t)
	s := f.progressService()
	require.NoError(t, s.WarmLeaderboards(context.Background()))

	c, err := s.StartLeaderboardWarmup("@every 1m")
	require.NoError(t, err)
	assert.Nil(t, c)
}
