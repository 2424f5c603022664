package stats

const (
	BadgeMasterLearner    = "Master Learner"
	BadgeDedicatedStudent = "Dedicated Student"
	BadgeFirstSteps       = "First Steps"
	BadgePerfectAccuracy  = "Perfect Accuracy"
	BadgeHighAchiever     = "High Achiever"
	BadgeScoreChampion    = "Score Champion"
	BadgeRisingStar       = "Rising Star"
)

type threshold struct {
	min   float64
	badge string
}

// 每一类按从高到低排列，只取第一个满足的
var (
	completionBadges = []threshold{{10, BadgeMasterLearner}, {5, BadgeDedicatedStudent}, {1, BadgeFirstSteps}}
	accuracyBadges   = []threshold{{90, BadgePerfectAccuracy}, {80, BadgeHighAchiever}}
	scoreBadges      = []threshold{{1000, BadgeScoreChampion}, {500, BadgeRisingStar}}
)

// Badges 根据汇总统计计算徽章，每类最多一个。
// 正确率门槛按答题数精确计算，不使用展示用的两位小数
func Badges(s Summary) []string {
	var accuracy float64
	if s.TotalQuestions > 0 {
		accuracy = 100 * float64(s.CorrectAnswers) / float64(s.TotalQuestions)
	}

	badges := make([]string, 0, 3)
	for _, c := range []struct {
		value  float64
		levels []threshold
	}{
		{float64(s.ModulesCompleted), completionBadges},
		{accuracy, accuracyBadges},
		{float64(s.TotalScore), scoreBadges},
	} {
		for _, level := range c.levels {
			if c.value >= level.min {
				badges = append(badges, level.badge)
				break
			}
		}
	}
	return badges
}
