package model

import "time"

// UserProgress 学生在一个模块上的学习记录，每个 (用户, 模块) 一条
type UserProgress struct {
	BaseModel
	UserID         uint         `gorm:"not null;uniqueIndex:idx_progress_user_module" json:"user_id"`
	ModuleID       string       `gorm:"size:36;not null;uniqueIndex:idx_progress_user_module;index" json:"module_id"`
	TotalScore     int          `gorm:"default:0" json:"total_score"`
	CorrectAnswers int          `gorm:"default:0" json:"correct_answers"`
	TotalQuestions int          `gorm:"default:0" json:"total_questions"`
	Completed      bool         `gorm:"default:false" json:"completed"`
	StartedAt      time.Time    `gorm:"index" json:"started_at"`
	CompletedAt    *time.Time   `json:"completed_at"`
	Answers        []UserAnswer `gorm:"foreignKey:ProgressID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (UserProgress) TableName() string {
	return "user_progress"
}

// Accuracy 本条记录的正确率（百分比），没有作答时为 0
func (p UserProgress) Accuracy() float64 {
	if p.TotalQuestions == 0 {
		return 0
	}
	return 100 * float64(p.CorrectAnswers) / float64(p.TotalQuestions)
}

// UserAnswer 一条学习记录中对一道题的作答，IsCorrect 在创建时由判分得出
type UserAnswer struct {
	BaseModel
	ProgressID     uint      `gorm:"not null;uniqueIndex:idx_answer_progress_exercise" json:"progress_id"`
	ExerciseID     string    `gorm:"size:36;not null;uniqueIndex:idx_answer_progress_exercise;index" json:"exercise_id"`
	SelectedAnswer int       `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at"`
}

func (UserAnswer) TableName() string {
	return "user_answers"
}
