package repository

import (
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

// ModuleListItem 模块列表项
type ModuleListItem struct {
	model.LearningModule
	PanelCount    int64 `json:"panel_count"`
	ExerciseCount int64 `json:"exercise_count"`
}

// CreateWithContent 在一个事务中保存模块、分镜和练习
func (r *ModuleRepository) CreateWithContent(module *model.LearningModule, panels []model.ComicPanel, exercises []model.Exercise) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Panels", "Exercises").Create(module).Error; err != nil {
			return err
		}
		for i := range panels {
			panels[i].ModuleID = module.ID
		}
		if len(panels) > 0 {
			if err := tx.Create(&panels).Error; err != nil {
				return err
			}
		}
		for i := range exercises {
			exercises[i].ModuleID = module.ID
		}
		if len(exercises) > 0 {
			if err := tx.Create(&exercises).Error; err != nil {
				return err
			}
		}
		module.Panels = panels
		module.Exercises = exercises
		return nil
	})
}

// FindByID 返回模块及按编号排序的分镜和练习
func (r *ModuleRepository) FindByID(id string) (*model.LearningModule, error) {
	var module model.LearningModule
	err := r.DB.
		Preload("Panels", func(db *gorm.DB) *gorm.DB { return db.Order("panel_number ASC") }).
		Preload("Exercises", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, created_at ASC") }).
		Where("id = ?", id).
		First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	return &module, err
}

func (r *ModuleRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.LearningModule{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

type countRow struct {
	ModuleID string
	Count    int64
}

func (r *ModuleRepository) List() ([]ModuleListItem, error) {
	var modules []model.LearningModule
	if err := r.DB.Order("created_at DESC").Find(&modules).Error; err != nil {
		return nil, err
	}

	panelCounts, err := r.countBy(&model.ComicPanel{})
	if err != nil {
		return nil, err
	}
	exerciseCounts, err := r.countBy(&model.Exercise{})
	if err != nil {
		return nil, err
	}

	items := make([]ModuleListItem, len(modules))
	for i, m := range modules {
		items[i] = ModuleListItem{
			LearningModule: m,
			PanelCount:     panelCounts[m.ID],
			ExerciseCount:  exerciseCounts[m.ID],
		}
	}
	return items, nil
}

func (r *ModuleRepository) countBy(table interface{}) (map[string]int64, error) {
	var rows []countRow
	err := r.DB.Model(table).
		Select("module_id, COUNT(*) AS count").
		Group("module_id").
		Scan(&rows).Error
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ModuleID] = row.Count
	}
	return counts, err
}

// ModuleNames 按 id 查询模块名称
func (r *ModuleRepository) ModuleNames() (map[string]string, error) {
	var modules []model.LearningModule
	if err := r.DB.Select("id", "module_name").Find(&modules).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(modules))
	for _, m := range modules {
		names[m.ID] = m.ModuleName
	}
	return names, nil
}

// Delete 模块的练习有学生作答时拒绝删除；否则删除模块、分镜、练习和学习记录
func (r *ModuleRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var module model.LearningModule
		if err := tx.Select("id").Where("id = ?", id).First(&module).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrModuleNotFound
			}
			return err
		}

		exerciseIDs := tx.Model(&model.Exercise{}).Select("id").Where("module_id = ?", id)
		var answers int64
		if err := tx.Model(&model.UserAnswer{}).Where("exercise_id IN (?)", exerciseIDs).Count(&answers).Error; err != nil {
			return err
		}
		if answers > 0 {
			return util.ErrModuleHasAnswers
		}

		if _, err := deleteProgress(tx, "module_id = ?", id); err != nil {
			return err
		}
		if err := tx.Where("module_id = ?", id).Delete(&model.ComicPanel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("module_id = ?", id).Delete(&model.Exercise{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.LearningModule{}).Error
	})
}

// FindPanel 按模块和分镜编号查找
func (r *ModuleRepository) FindPanel(moduleID string, number int) (*model.ComicPanel, error) {
	var panel model.ComicPanel
	err := r.DB.Where("module_id = ? AND panel_number = ?", moduleID, number).First(&panel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrPanelNotFound
	}
	return &panel, err
}

// UpdatePanelAudio 保存分镜的对白或旁白语音
func (r *ModuleRepository) UpdatePanelAudio(moduleID string, number int, kind, audioBase64 string, duration float64) error {
	columns := map[string]interface{}{}
	switch kind {
	case util.AudioDialogue:
		columns["dialogue_audio_base64"] = audioBase64
		columns["dialogue_audio_duration"] = duration
	case util.AudioNarration:
		columns["narration_audio_base64"] = audioBase64
		columns["narration_audio_duration"] = duration
	default:
		return fmt.Errorf("%w: audio type must be dialogue or narration", util.ErrInvalidQuery)
	}

	res := r.DB.Model(&model.ComicPanel{}).
		Where("module_id = ? AND panel_number = ?", moduleID, number).
		Updates(columns)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrPanelNotFound
	}
	return nil
}

func (r *ModuleRepository) FindExercise(id string) (*model.Exercise, error) {
	var exercise model.Exercise
	err := r.DB.Where("id = ?", id).First(&exercise).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrExerciseNotFound
	}
	return &exercise, err
}

func (r *ModuleRepository) ListExercises(moduleID string) ([]model.Exercise, error) {
	var exercises []model.Exercise
	err := r.DB.Where("module_id = ?", moduleID).Order("position ASC, created_at ASC").Find(&exercises).Error
	return exercises, err
}

// ListAllExercises 全部练习，按模块和位置排序
func (r *ModuleRepository) ListAllExercises() ([]model.Exercise, error) {
	var exercises []model.Exercise
	err := r.DB.Order("module_id ASC, position ASC, created_at ASC").Find(&exercises).Error
	return exercises, err
}

// FindExercisesByIDs 只返回属于该模块的练习
func (r *ModuleRepository) FindExercisesByIDs(moduleID string, ids []string) ([]model.Exercise, error) {
	var exercises []model.Exercise
	if len(ids) == 0 {
		return exercises, nil
	}
	err := r.DB.Where("module_id = ? AND id IN ?", moduleID, ids).Find(&exercises).Error
	return exercises, err
}

// CreateExercise 追加到模块练习列表末尾
func (r *ModuleRepository) CreateExercise(exercise *model.Exercise) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var last struct{ Max *int }
		if err := tx.Model(&model.Exercise{}).Select("MAX(position) AS max").
			Where("module_id = ?", exercise.ModuleID).Scan(&last).Error; err != nil {
			return err
		}
		if last.Max != nil {
			exercise.Position = *last.Max + 1
		}
		return tx.Create(exercise).Error
	})
}

func (r *ModuleRepository) SaveExercise(exercise *model.Exercise) error {
	return r.DB.Save(exercise).Error
}

// DeleteExercise 只检查该练习自身的作答记录
func (r *ModuleRepository) DeleteExercise(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var answers int64
		if err := tx.Model(&model.UserAnswer{}).Where("exercise_id = ?", id).Count(&answers).Error; err != nil {
			return err
		}
		if answers > 0 {
			return util.ErrExerciseHasAnswers
		}
		res := tx.Where("id = ?", id).Delete(&model.Exercise{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrExerciseNotFound
		}
		return nil
	})
}

// ExerciseAnswerStat 单道练习的作答统计
type ExerciseAnswerStat struct {
	ExerciseID string `json:"exercise_id"`
	Attempts   int64  `json:"attempts"`
	Correct    int64  `json:"correct"`
}

// ExerciseAnswerStats 按练习统计作答次数和答对次数，moduleID 为空时统计全部
func (r *ModuleRepository) ExerciseAnswerStats(moduleID string) (map[string]ExerciseAnswerStat, error) {
	query := r.DB.Model(&model.UserAnswer{}).
		Select("user_answers.exercise_id AS exercise_id, COUNT(*) AS attempts, " +
			"SUM(CASE WHEN user_answers.is_correct THEN 1 ELSE 0 END) AS correct").
		Group("user_answers.exercise_id")
	if moduleID != "" {
		query = query.Joins("JOIN exercises ON exercises.id = user_answers.exercise_id").
			Where("exercises.module_id = ?", moduleID)
	}

	var rows []ExerciseAnswerStat
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	stats := make(map[string]ExerciseAnswerStat, len(rows))
	for _, row := range rows {
		stats[row.ExerciseID] = row
	}
	return stats, nil
}
