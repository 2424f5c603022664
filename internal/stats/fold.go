// Package stats 汇总学习记录：个人统计、徽章、排名、时间窗口和分组对比
package stats

import (
	"math"
	"time"
)

// Attempt 一条学习记录（一个学生对一个模块的一次学习）
type Attempt struct {
	UserID         uint
	ModuleID       string
	TotalScore     int
	CorrectAnswers int
	TotalQuestions int
	Completed      bool
	StartedAt      time.Time
	CompletedAt    *time.Time
}

// Summary 单个学生的汇总统计
type Summary struct {
	UserID           uint       `json:"user_id"`
	TotalScore       int        `json:"total_score"`
	ModulesAttempted int        `json:"modules_attempted"`
	ModulesCompleted int        `json:"modules_completed"`
	CorrectAnswers   int        `json:"correct_answers"`
	TotalQuestions   int        `json:"total_questions"`
	Accuracy         float64    `json:"accuracy"`
	LastActivity     *time.Time `json:"last_activity"`
}

// Fold 汇总一个学生的全部学习记录；没有题目时正确率为 0
func Fold(userID uint, attempts []Attempt) Summary {
	s := Summary{UserID: userID}
	for _, a := range attempts {
		s.ModulesAttempted++
		s.TotalScore += a.TotalScore
		s.CorrectAnswers += a.CorrectAnswers
		s.TotalQuestions += a.TotalQuestions
		if a.Completed {
			s.ModulesCompleted++
		}
		if at := a.activity(); s.LastActivity == nil || at.After(*s.LastActivity) {
			s.LastActivity = &at
		}
	}
	s.Accuracy = Percent(s.CorrectAnswers, s.TotalQuestions)
	return s
}

// FoldByUser 按学生分组后汇总，userIDs 决定输出顺序，没有记录的学生被跳过
func FoldByUser(userIDs []uint, attempts []Attempt) []Summary {
	byUser := make(map[uint][]Attempt)
	for _, a := range attempts {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	summaries := make([]Summary, 0, len(byUser))
	for _, id := range userIDs {
		records, ok := byUser[id]
		if !ok {
			continue
		}
		summaries = append(summaries, Fold(id, records))
	}
	return summaries
}

// MeanAttemptAccuracy 每条有题目的记录单独计算正确率后取平均
func MeanAttemptAccuracy(attempts []Attempt) float64 {
	var sum float64
	var n int
	for _, a := range attempts {
		if a.TotalQuestions == 0 {
			continue
		}
		sum += 100 * float64(a.CorrectAnswers) / float64(a.TotalQuestions)
		n++
	}
	if n == 0 {
		return 0
	}
	return Round2(sum / float64(n))
}

// Percent 返回 100*num/den，保留两位小数，分母为 0 时返回 0
func Percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return Round2(100 * float64(num) / float64(den))
}

// Average 返回 sum/n，保留两位小数，n 为 0 时返回 0
func Average(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return Round2(float64(sum) / float64(n))
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (a Attempt) activity() time.Time {
	if a.CompletedAt != nil && a.CompletedAt.After(a.StartedAt) {
		return *a.CompletedAt
	}
	return a.StartedAt
}
