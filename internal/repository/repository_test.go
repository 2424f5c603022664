package repository

import (
	"testing"
	"time"

	"comic_english_backend/internal/model"
	"comic_english_backend/internal/scoring"
	"comic_english_backend/internal/testutil"
	"comic_english_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

func newExercise(id string, correct int) model.Exercise {
	ex := model.Exercise{
		Question:      "Question " + id,
		CorrectAnswer: correct,
		Explanation:   "because",
	}
	ex.ID = id
	_ = ex.SetOptions([]string{"a", "b", "c", "d"})
	return ex
}

func seedModule(t *testing.T, db *gorm.DB) *model.LearningModule {
	t.Helper()
	repo := NewModuleRepository(db)
	module := &model.LearningModule{ModuleName: "Romeo and Juliet", ClassicText: "But soft!"}
	panels := []model.ComicPanel{
		{PanelNumber: 2, Dialogue: "second"},
		{PanelNumber: 1, Dialogue: "first"},
	}
	exercises := []model.Exercise{newExercise("ex1", 2), newExercise("ex2", 3)}
	exercises[0].Position = 0
	exercises[1].Position = 1
	require.NoError(t, repo.CreateWithContent(module, panels, exercises))
	return module
}

func seedUser(t *testing.T, db *gorm.DB, username string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{Username: username, Email: username + "@example.com", Password: "x", Role: role, IsActive: true}
	require.NoError(t, NewUserRepository(db).Create(user))
	return user
}

func count(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestModuleRepository_CreateAndFind(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	require.NotEmpty(t, module.ID)

	repo := NewModuleRepository(db)
	found, err := repo.FindByID(module.ID)
	require.NoError(t, err)
	require.Len(t, found.Panels, 2)
	assert.Equal(t, 1, found.Panels[0].PanelNumber)
	assert.Equal(t, 2, found.Panels[1].PanelNumber)
	require.Len(t, found.Exercises, 2)
	assert.Equal(t, "ex1", found.Exercises[0].ID)
	assert.Equal(t, []string{"a", "b", "c", "d"}, found.Exercises[0].OptionList())

	items, err := repo.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].PanelCount)
	assert.Equal(t, int64(2), items[0].ExerciseCount)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestModuleRepository_DuplicatePanelNumberRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewModuleRepository(db)

	module := &model.LearningModule{ModuleName: "dup", ClassicText: "x"}
	err := repo.CreateWithContent(module, []model.ComicPanel{{PanelNumber: 1}, {PanelNumber: 1}}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(0), count(t, db, &model.LearningModule{}))
}

func TestModuleRepository_DeleteWithoutAnswers(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	student := seedUser(t, db, "sam", model.Student)

	progressRepo := NewProgressRepository(db)
	_, err := progressRepo.MarkComplete(student.ID, module.ID, now)
	require.NoError(t, err)

	require.NoError(t, NewModuleRepository(db).Delete(module.ID))
	assert.Equal(t, int64(0), count(t, db, &model.LearningModule{}))
	assert.Equal(t, int64(0), count(t, db, &model.ComicPanel{}))
	assert.Equal(t, int64(0), count(t, db, &model.Exercise{}))
	assert.Equal(t, int64(0), count(t, db, &model.UserProgress{}))

	assert.ErrorIs(t, NewModuleRepository(db).Delete(module.ID), util.ErrModuleNotFound)
}

func TestModuleRepository_DeleteBlockedByAnswers(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	student := seedUser(t, db, "sam", model.Student)

	_, err := NewProgressRepository(db).ApplyAnswer(student.ID, module.ID,
		&model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 2, IsCorrect: true}, 10, now)
	require.NoError(t, err)

	err = NewModuleRepository(db).Delete(module.ID)
	assert.ErrorIs(t, err, util.ErrModuleHasAnswers)
	assert.Equal(t, int64(1), count(t, db, &model.LearningModule{}))
	assert.Equal(t, int64(2), count(t, db, &model.ComicPanel{}))
	assert.Equal(t, int64(2), count(t, db, &model.Exercise{}))
	assert.Equal(t, int64(1), count(t, db, &model.UserProgress{}))
	assert.Equal(t, int64(1), count(t, db, &model.UserAnswer{}))
}

func TestModuleRepository_DeleteExerciseChecksOwnAnswersOnly(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	student := seedUser(t, db, "sam", model.Student)
	repo := NewModuleRepository(db)

	_, err := NewProgressRepository(db).ApplyAnswer(student.ID, module.ID,
		&model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 0}, 0, now)
	require.NoError(t, err)

	assert.ErrorIs(t, repo.DeleteExercise("ex1"), util.ErrExerciseHasAnswers)
	assert.NoError(t, repo.DeleteExercise("ex2"))
	assert.ErrorIs(t, repo.DeleteExercise("ex2"), util.ErrExerciseNotFound)

	exercises, err := repo.ListExercises(module.ID)
	require.NoError(t, err)
	require.Len(t, exercises, 1)
	assert.Equal(t, "ex1", exercises[0].ID)
}

func TestModuleRepository_CreateExerciseAppends(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	repo := NewModuleRepository(db)

	ex := newExercise("", 0)
	ex.ModuleID = module.ID
	require.NoError(t, repo.CreateExercise(&ex))
	assert.NotEmpty(t, ex.ID)
	assert.Equal(t, 2, ex.Position)

	exercises, err := repo.ListExercises(module.ID)
	require.NoError(t, err)
	assert.Equal(t, ex.ID, exercises[2].ID)
}

func TestModuleRepository_PanelAudio(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	repo := NewModuleRepository(db)

	require.NoError(t, repo.UpdatePanelAudio(module.ID, 1, util.AudioNarration, "UklGRg==", 1.5))
	panel, err := repo.FindPanel(module.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "UklGRg==", panel.NarrationAudioBase64)
	assert.Equal(t, 1.5, panel.NarrationAudioDuration)

	assert.ErrorIs(t, repo.UpdatePanelAudio(module.ID, 9, util.AudioDialogue, "x", 0), util.ErrPanelNotFound)
	assert.Error(t, repo.UpdatePanelAudio(module.ID, 1, "music", "x", 0))
	_, err = repo.FindPanel(module.ID, 9)
	assert.ErrorIs(t, err, util.ErrPanelNotFound)
}

func TestProgressRepository_ReplaceAttempt(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	student := seedUser(t, db, "sam", model.Student)
	repo := NewProgressRepository(db)
	engine := scoring.NewEngine(10)

	graded, totals := engine.Tally([]scoring.Answer{
		{ExerciseID: "ex1", SelectedAnswer: 2},
		{ExerciseID: "ex2", SelectedAnswer: 0},
	}, map[string]int{"ex1": 2, "ex2": 3})
	answers := make([]model.UserAnswer, len(graded))
	for i, g := range graded {
		answers[i] = model.UserAnswer{ExerciseID: g.ExerciseID, SelectedAnswer: g.SelectedAnswer, IsCorrect: g.IsCorrect}
	}

	progress, err := repo.ReplaceAttempt(student.ID, module.ID, answers, totals, now)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.TotalQuestions)
	assert.Equal(t, 1, progress.CorrectAnswers)
	assert.Equal(t, 10, progress.TotalScore)
	assert.True(t, progress.Completed)

	// 重做：旧作答被替换而不是累加
	retry := []model.UserAnswer{{ExerciseID: "ex2", SelectedAnswer: 3, IsCorrect: true}}
	progress, err = repo.ReplaceAttempt(student.ID, module.ID, retry, scoring.Counters{TotalScore: 10, CorrectAnswers: 1, TotalQuestions: 1}, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, progress.TotalQuestions)
	assert.Equal(t, int64(1), count(t, db, &model.UserProgress{}))
	assert.Equal(t, int64(1), count(t, db, &model.UserAnswer{}))

	stored, err := repo.FindByUserAndModule(student.ID, module.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 1)
	assert.Equal(t, "ex2", stored.Answers[0].ExerciseID)
	assert.Equal(t, now, stored.StartedAt.UTC())
}

func TestProgressRepository_ApplyAnswer(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	student := seedUser(t, db, "sam", model.Student)
	repo := NewProgressRepository(db)

	p, err := repo.ApplyAnswer(student.ID, module.ID, &model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 2, IsCorrect: true}, 10, now)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalQuestions)
	assert.Equal(t, 1, p.CorrectAnswers)
	assert.Equal(t, 10, p.TotalScore)

	p, err = repo.ApplyAnswer(student.ID, module.ID, &model.UserAnswer{ExerciseID: "ex2", SelectedAnswer: 7}, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalQuestions)
	assert.Equal(t, 1, p.CorrectAnswers)
	assert.Equal(t, 10, p.TotalScore)

	_, err = repo.ApplyAnswer(student.ID, module.ID, &model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 2, IsCorrect: true}, 10, now)
	assert.ErrorIs(t, err, util.ErrAlreadyAnswered)

	stored, err := repo.FindByUserAndModule(student.ID, module.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalQuestions)
	assert.Len(t, stored.Answers, 2)
}

func TestProgressRepository_ListAndDelete(t *testing.T) {
	db := testutil.NewDB(t)
	module := seedModule(t, db)
	alice := seedUser(t, db, "alice", model.Student)
	bob := seedUser(t, db, "bob", model.Student)
	repo := NewProgressRepository(db)

	_, err := repo.ApplyAnswer(alice.ID, module.ID, &model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 2, IsCorrect: true}, 10, now)
	require.NoError(t, err)
	_, err = repo.MarkComplete(bob.ID, module.ID, now.AddDate(0, 0, -10))
	require.NoError(t, err)

	since := now.AddDate(0, 0, -1)
	recent, err := repo.List(ProgressFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, alice.ID, recent[0].UserID)

	all, err := repo.List(ProgressFilter{ModuleID: module.ID, UserIDs: []uint{alice.ID, bob.ID}})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	counts, err := repo.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Attempts)
	assert.Equal(t, int64(1), counts.Completed)

	deleted, err := repo.DeleteByUser(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Equal(t, int64(0), count(t, db, &model.UserAnswer{}))
	assert.Equal(t, int64(1), count(t, db, &model.UserProgress{}))
}

func TestUserRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewUserRepository(db)
	alice := seedUser(t, db, "alice", model.Student)
	seedUser(t, db, "tom", model.Teacher)
	module := seedModule(t, db)

	found, err := repo.FindByLogin("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)

	require.NoError(t, repo.RecordLogin(alice.ID, now))
	require.NoError(t, repo.RecordLogin(alice.ID, now))
	found, err = repo.FindByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.LoginCount)
	require.NotNil(t, found.LastLogin)

	taken, err := repo.EmailTaken("alice@example.com", alice.ID)
	require.NoError(t, err)
	assert.False(t, taken)
	taken, err = repo.EmailTaken("alice@example.com", 999)
	require.NoError(t, err)
	assert.True(t, taken)

	users, total, err := repo.List(UserFilter{Role: model.Student, Search: "ali", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "alice", users[0].Username)

	students, err := repo.ListByRole(model.Student)
	require.NoError(t, err)
	assert.Len(t, students, 1)

	counts, err := repo.Counts(now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total)
	assert.Equal(t, int64(1), counts.Teachers)

	_, err = NewProgressRepository(db).ApplyAnswer(alice.ID, module.ID, &model.UserAnswer{ExerciseID: "ex1", SelectedAnswer: 0}, 0, now)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(alice.ID))
	assert.Equal(t, int64(0), count(t, db, &model.UserProgress{}))
	assert.Equal(t, int64(0), count(t, db, &model.UserAnswer{}))
	_, err = repo.FindByID(alice.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
