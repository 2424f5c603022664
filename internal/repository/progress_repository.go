package repository

import (
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/scoring"
	"comic_english_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// ProgressFilter 学习记录查询条件，零值字段不参与过滤
type ProgressFilter struct {
	UserIDs  []uint
	ModuleID string
	Since    *time.Time
	Until    *time.Time
}

// findOrCreate 同一用户同一模块只有一条学习记录
func findOrCreate(tx *gorm.DB, userID uint, moduleID string, now time.Time) (*model.UserProgress, error) {
	var progress model.UserProgress
	err := tx.Where(model.UserProgress{UserID: userID, ModuleID: moduleID}).
		Attrs(model.UserProgress{StartedAt: now}).
		FirstOrCreate(&progress).Error
	return &progress, err
}

// ApplyAnswer 记录单题作答并原子累加计数；同一次学习中重复作答同一题返回 ErrAlreadyAnswered
func (r *ProgressRepository) ApplyAnswer(userID uint, moduleID string, answer *model.UserAnswer, points int, now time.Time) (*model.UserProgress, error) {
	var updated model.UserProgress
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		progress, err := findOrCreate(tx, userID, moduleID, now)
		if err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&model.UserAnswer{}).
			Where("progress_id = ? AND exercise_id = ?", progress.ID, answer.ExerciseID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return util.ErrAlreadyAnswered
		}

		answer.ProgressID = progress.ID
		if answer.AnsweredAt.IsZero() {
			answer.AnsweredAt = now
		}
		if err := tx.Create(answer).Error; err != nil {
			return err
		}

		correct := 0
		if answer.IsCorrect {
			correct = 1
		}
		if err := tx.Model(&model.UserProgress{}).
			Where("id = ?", progress.ID).
			Updates(map[string]interface{}{
				"total_questions": gorm.Expr("total_questions + ?", 1),
				"correct_answers": gorm.Expr("correct_answers + ?", correct),
				"total_score":     gorm.Expr("total_score + ?", points),
			}).Error; err != nil {
			return err
		}

		return tx.First(&updated, progress.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ReplaceAttempt 整份提交：删除旧作答、写入新作答并覆盖计数，在同一事务内完成
func (r *ProgressRepository) ReplaceAttempt(userID uint, moduleID string, answers []model.UserAnswer, totals scoring.Counters, now time.Time) (*model.UserProgress, error) {
	var saved *model.UserProgress
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		progress, err := findOrCreate(tx, userID, moduleID, now)
		if err != nil {
			return err
		}

		if err := tx.Where("progress_id = ?", progress.ID).Delete(&model.UserAnswer{}).Error; err != nil {
			return err
		}
		for i := range answers {
			answers[i].ID = 0
			answers[i].ProgressID = progress.ID
			if answers[i].AnsweredAt.IsZero() {
				answers[i].AnsweredAt = now
			}
		}
		if len(answers) > 0 {
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}

		progress.TotalScore = totals.TotalScore
		progress.CorrectAnswers = totals.CorrectAnswers
		progress.TotalQuestions = totals.TotalQuestions
		progress.Completed = true
		progress.CompletedAt = &now
		if err := tx.Save(progress).Error; err != nil {
			return err
		}
		progress.Answers = answers
		saved = progress
		return nil
	})
	return saved, err
}

// MarkComplete 标记模块完成，已完成的记录保持原完成时间
func (r *ProgressRepository) MarkComplete(userID uint, moduleID string, now time.Time) (*model.UserProgress, error) {
	var saved *model.UserProgress
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		progress, err := findOrCreate(tx, userID, moduleID, now)
		if err != nil {
			return err
		}
		if progress.Completed {
			saved = progress
			return nil
		}
		progress.Completed = true
		progress.CompletedAt = &now
		saved = progress
		return tx.Save(progress).Error
	})
	return saved, err
}

func (r *ProgressRepository) FindByUserAndModule(userID uint, moduleID string) (*model.UserProgress, error) {
	var progress model.UserProgress
	err := r.DB.Preload("Answers").
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProgressNotFound
	}
	return &progress, err
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.UserProgress, error) {
	var records []model.UserProgress
	err := r.DB.Where("user_id = ?", userID).Order("started_at DESC").Find(&records).Error
	return records, err
}

// ListByUserWithAnswers 带作答明细，按开始时间倒序
func (r *ProgressRepository) ListByUserWithAnswers(userID uint) ([]model.UserProgress, error) {
	var records []model.UserProgress
	err := r.DB.Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("answered_at ASC, id ASC") }).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&records).Error
	return records, err
}

// List 按条件查询学习记录，按 id 升序
func (r *ProgressRepository) List(filter ProgressFilter) ([]model.UserProgress, error) {
	query := r.DB.Model(&model.UserProgress{})
	if len(filter.UserIDs) > 0 {
		query = query.Where("user_id IN ?", filter.UserIDs)
	}
	if filter.ModuleID != "" {
		query = query.Where("module_id = ?", filter.ModuleID)
	}
	if filter.Since != nil {
		query = query.Where("started_at >= ?", *filter.Since)
	}
	if filter.Until != nil {
		query = query.Where("started_at < ?", *filter.Until)
	}

	var records []model.UserProgress
	err := query.Order("id ASC").Find(&records).Error
	return records, err
}

// DeleteByUser 清空用户的学习记录和作答，返回删除的学习记录数
func (r *ProgressRepository) DeleteByUser(userID uint) (int64, error) {
	var deleted int64
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		n, err := deleteProgress(tx, "user_id = ?", userID)
		deleted = n
		return err
	})
	return deleted, err
}

// ProgressCounts 学习记录总数和完成数
type ProgressCounts struct {
	Attempts  int64 `json:"total_attempts"`
	Completed int64 `json:"completed_attempts"`
}

func (r *ProgressRepository) Counts() (*ProgressCounts, error) {
	var counts ProgressCounts
	if err := r.DB.Model(&model.UserProgress{}).Count(&counts.Attempts).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.UserProgress{}).Where("completed = ?", true).Count(&counts.Completed).Error; err != nil {
		return nil, err
	}
	return &counts, nil
}
