package service

import (
	"testing"
	"time"

	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// 2024-03-06 是周三
var fixedNow = time.Date(2024, time.March, 6, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	users     *repository.UserRepository
	modules   *repository.ModuleRepository
	progress  *repository.ProgressRepository
	moduleID  string
	otherID   string
	teacher   *model.User
	exercises []model.Exercise
}

func newExercise(id, kind string, correct int) model.Exercise {
	ex := model.Exercise{
		Type:          kind,
		Difficulty:    "easy",
		Question:      "Question " + id,
		CorrectAnswer: correct,
		Explanation:   "because",
	}
	ex.ID = id
	_ = ex.SetOptions([]string{"a", "b", "c", "d"})
	return ex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		modules:  repository.NewModuleRepository(db),
		progress: repository.NewProgressRepository(db),
	}

	exercises := []model.Exercise{
		newExercise("ex1", "multiple_choice", 2),
		newExercise("ex2", "vocabulary", 3),
	}
	exercises[1].Position = 1
	module := &model.LearningModule{ModuleName: "Romeo and Juliet", ClassicText: "But soft! What light through yonder window breaks?"}
	require.NoError(t, f.modules.CreateWithContent(module, []model.ComicPanel{{PanelNumber: 1, Dialogue: "hello"}}, exercises))
	f.moduleID = module.ID
	f.exercises = exercises

	other := &model.LearningModule{ModuleName: "Hamlet", ClassicText: "To be, or not to be"}
	require.NoError(t, f.modules.CreateWithContent(other, nil, []model.Exercise{newExercise("ex3", "true_false", 0)}))
	f.otherID = other.ID

	f.teacher = f.user(t, "teacher", model.Teacher)
	return f
}

func (f *fixture) user(t *testing.T, username string, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{Username: username, Email: username + "@example.com", Password: "x", FullName: username + " name", Role: role, IsActive: true}
	require.NoError(t, f.users.Create(u))
	return u
}

// record 直接写入一条学习记录
func (f *fixture) record(t *testing.T, userID uint, moduleID string, score, correct, total int, completed bool, startedAt time.Time) {
	t.Helper()
	p := model.UserProgress{
		UserID:         userID,
		ModuleID:       moduleID,
		TotalScore:     score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Completed:      completed,
		StartedAt:      startedAt,
	}
	if completed {
		done := startedAt.Add(time.Hour)
		p.CompletedAt = &done
	}
	require.NoError(t, f.db.Create(&p).Error)
}

func (f *fixture) progressService() *ProgressService {
	s := NewProgressService(f.progress, f.modules, f.users, nil, 10)
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) reportService() *ReportService {
	s := NewReportService(f.progress, f.modules, f.users)
	s.now = func() time.Time { return fixedNow }
	return s
}

func intPtr(v int) *int { return &v }
