package stats

import (
	"sort"
	"strconv"
)

// Group 一组学习记录的对比统计
type Group struct {
	Key            string  `json:"key"`
	Attempts       int     `json:"attempts"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
	TotalScore     int     `json:"total_score"`
	AvgScore       float64 `json:"avg_score"`
	CorrectAnswers int     `json:"correct_answers"`
	TotalQuestions int     `json:"total_questions"`
	AvgAccuracy    float64 `json:"avg_accuracy"`
	Participants   int     `json:"participants"`
}

// KeyFunc 从记录中取分组键
type KeyFunc func(Attempt) string

func ByStudent(a Attempt) string { return strconv.FormatUint(uint64(a.UserID), 10) }

func ByModule(a Attempt) string { return a.ModuleID }

// ByWeek 以记录开始日期所在周的周一作为分组键
func ByWeek(a Attempt) string { return WeekStart(a.StartedAt).Format("2006-01-02") }

// GroupBy 按键分组统计，输出顺序为键第一次出现的顺序
func GroupBy(attempts []Attempt, key KeyFunc) []Group {
	index := make(map[string]int)
	users := make(map[string]map[uint]struct{})
	var groups []Group

	for _, a := range attempts {
		k := key(a)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
			users[k] = make(map[uint]struct{})
		}
		g := &groups[i]
		g.Attempts++
		if a.Completed {
			g.Completed++
		}
		g.TotalScore += a.TotalScore
		g.CorrectAnswers += a.CorrectAnswers
		g.TotalQuestions += a.TotalQuestions
		users[k][a.UserID] = struct{}{}
	}

	for i := range groups {
		g := &groups[i]
		g.CompletionRate = Percent(g.Completed, g.Attempts)
		g.AvgScore = Average(g.TotalScore, g.Attempts)
		g.AvgAccuracy = Percent(g.CorrectAnswers, g.TotalQuestions)
		g.Participants = len(users[g.Key])
	}
	return groups
}

// SortByAvgScore 按平均分降序，稳定排序
func SortByAvgScore(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].AvgScore > groups[j].AvgScore })
}

// SortByTotalScore 按总分降序，稳定排序
func SortByTotalScore(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].TotalScore > groups[j].TotalScore })
}

// SortByKey 按键升序，周分组键为日期字符串，升序即时间顺序
func SortByKey(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
}
