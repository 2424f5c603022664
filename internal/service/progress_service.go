package service

import (
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/scoring"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"comic_english_backend/pkg/monitoring"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultPerformerLimit   = 5
	maxPerformerLimit       = 20
	rankNeighbourSpan       = 3
)

// 优秀学生排序指标
const (
	MetricScore    = "score"
	MetricAccuracy = "accuracy"
	MetricModules  = "modules"
)

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	ModuleRepo   *repository.ModuleRepository
	UserRepo     *repository.UserRepository
	Cache        *LeaderboardCache

	engine atomic.Pointer[scoring.Engine]
	now    func() time.Time
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	moduleRepo *repository.ModuleRepository,
	userRepo *repository.UserRepository,
	cache *LeaderboardCache,
	pointsPerCorrect int,
) *ProgressService {
	s := &ProgressService{
		ProgressRepo: progressRepo,
		ModuleRepo:   moduleRepo,
		UserRepo:     userRepo,
		Cache:        cache,
		now:          time.Now,
	}
	s.engine.Store(scoring.NewEngine(pointsPerCorrect))
	return s
}

// SetPointsPerCorrect 配置热更新时替换判分引擎，只影响之后的作答
func (s *ProgressService) SetPointsPerCorrect(points int) {
	s.engine.Store(scoring.NewEngine(points))
}

func (s *ProgressService) Engine() *scoring.Engine {
	return s.engine.Load()
}

// InvalidateLeaderboard 学习记录变化后调用
func (s *ProgressService) InvalidateLeaderboard() {
	s.Cache.Invalidate(context.Background())
}

func toAttempts(records []model.UserProgress) []stats.Attempt {
	attempts := make([]stats.Attempt, len(records))
	for i, r := range records {
		attempts[i] = stats.Attempt{
			UserID:         r.UserID,
			ModuleID:       r.ModuleID,
			TotalScore:     r.TotalScore,
			CorrectAnswers: r.CorrectAnswers,
			TotalQuestions: r.TotalQuestions,
			Completed:      r.Completed,
			StartedAt:      r.StartedAt,
			CompletedAt:    r.CompletedAt,
		}
	}
	return attempts
}

type AnswerRequest struct {
	ExerciseID     string `json:"exercise_id" binding:"required"`
	SelectedAnswer *int   `json:"selected_answer" binding:"required"`
}

type AnswerResult struct {
	IsCorrect     bool                `json:"is_correct"`
	CorrectAnswer int                 `json:"correct_answer"`
	Explanation   string              `json:"explanation"`
	PointsEarned  int                 `json:"points_earned"`
	Progress      *model.UserProgress `json:"progress"`
}

// AnswerQuestion 单题作答：服务端判分并在事务内累加学习记录
func (s *ProgressService) AnswerQuestion(userID uint, moduleID string, req AnswerRequest) (*AnswerResult, error) {
	exercise, err := s.ModuleRepo.FindExercise(req.ExerciseID)
	if err != nil {
		return nil, err
	}
	if exercise.ModuleID != moduleID {
		return nil, util.ErrExerciseNotFound
	}

	selected := *req.SelectedAnswer
	result := s.Engine().Score(selected, exercise.CorrectAnswer)
	answer := &model.UserAnswer{
		ExerciseID:     exercise.ID,
		SelectedAnswer: selected,
		IsCorrect:      result.IsCorrect,
	}
	progress, err := s.ProgressRepo.ApplyAnswer(userID, moduleID, answer, result.PointsEarned, s.now())
	if err != nil {
		return nil, err
	}

	monitoring.ObserveAnswer(result.IsCorrect)
	s.InvalidateLeaderboard()
	return &AnswerResult{
		IsCorrect:     result.IsCorrect,
		CorrectAnswer: exercise.CorrectAnswer,
		Explanation:   exercise.Explanation,
		PointsEarned:  result.PointsEarned,
		Progress:      progress,
	}, nil
}

// SubmittedAnswer 客户端提交的 is_correct 会被忽略
type SubmittedAnswer struct {
	ExerciseID     string `json:"exercise_id" binding:"required"`
	SelectedAnswer int    `json:"selected_answer"`
	IsCorrect      *bool  `json:"is_correct,omitempty"`
}

type SubmitRequest struct {
	ModuleID string            `json:"module_id" binding:"required"`
	Answers  []SubmittedAnswer `json:"answers" binding:"dive"`
}

type SubmitResult struct {
	Progress *model.UserProgress `json:"progress"`
	Results  []scoring.Graded    `json:"results"`
	Accuracy float64             `json:"accuracy"`
}

// SubmitAttempt 整份提交。重试会替换旧作答并从零重新计数；同一题重复提交时只取第一次
func (s *ProgressService) SubmitAttempt(userID uint, req SubmitRequest) (*SubmitResult, error) {
	exists, err := s.ModuleRepo.Exists(req.ModuleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrModuleNotFound
	}

	seen := make(map[string]struct{}, len(req.Answers))
	answers := make([]scoring.Answer, 0, len(req.Answers))
	ids := make([]string, 0, len(req.Answers))
	for _, a := range req.Answers {
		if _, dup := seen[a.ExerciseID]; dup {
			continue
		}
		seen[a.ExerciseID] = struct{}{}
		answers = append(answers, scoring.Answer{ExerciseID: a.ExerciseID, SelectedAnswer: a.SelectedAnswer})
		ids = append(ids, a.ExerciseID)
	}

	exercises, err := s.ModuleRepo.FindExercisesByIDs(req.ModuleID, ids)
	if err != nil {
		return nil, err
	}
	correctByExercise := make(map[string]int, len(exercises))
	for _, e := range exercises {
		correctByExercise[e.ID] = e.CorrectAnswer
	}

	graded, totals := s.Engine().Tally(answers, correctByExercise)
	rows := make([]model.UserAnswer, 0, len(graded))
	for _, g := range graded {
		if _, ok := correctByExercise[g.ExerciseID]; !ok {
			// 不属于该模块的题目计入总题数但不保存作答
			logger.Log.Warn("Answer for unknown exercise",
				zap.String("moduleId", req.ModuleID), zap.String("exerciseId", g.ExerciseID))
			continue
		}
		rows = append(rows, model.UserAnswer{
			ExerciseID:     g.ExerciseID,
			SelectedAnswer: g.SelectedAnswer,
			IsCorrect:      g.IsCorrect,
		})
		monitoring.ObserveAnswer(g.IsCorrect)
	}

	progress, err := s.ProgressRepo.ReplaceAttempt(userID, req.ModuleID, rows, totals, s.now())
	if err != nil {
		return nil, err
	}
	s.InvalidateLeaderboard()

	logger.Log.Info("Attempt submitted",
		zap.Uint("userId", userID),
		zap.String("moduleId", req.ModuleID),
		zap.Int("questions", totals.TotalQuestions),
		zap.Int("correct", totals.CorrectAnswers))
	return &SubmitResult{
		Progress: progress,
		Results:  graded,
		Accuracy: stats.Percent(totals.CorrectAnswers, totals.TotalQuestions),
	}, nil
}

func (s *ProgressService) Complete(userID uint, moduleID string) (*model.UserProgress, error) {
	exists, err := s.ModuleRepo.Exists(moduleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrModuleNotFound
	}
	progress, err := s.ProgressRepo.MarkComplete(userID, moduleID, s.now())
	if err != nil {
		return nil, err
	}
	s.InvalidateLeaderboard()
	return progress, nil
}

// ModuleProgress 当前用户在一个模块上的记录和作答
func (s *ProgressService) ModuleProgress(userID uint, moduleID string) (*model.UserProgress, error) {
	return s.ProgressRepo.FindByUserAndModule(userID, moduleID)
}

type MyProgress struct {
	UserID     uint               `json:"user_id"`
	FullName   string             `json:"full_name"`
	Progress   []UserProgressItem `json:"progress"`
	TotalScore int                `json:"total_score"`
	Summary    stats.Summary      `json:"summary"`
}

func (s *ProgressService) MyProgress(userID uint) (*MyProgress, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	names, err := s.ModuleRepo.ModuleNames()
	if err != nil {
		return nil, err
	}

	summary := stats.Fold(userID, toAttempts(records))
	return &MyProgress{
		UserID:     user.ID,
		FullName:   user.FullName,
		Progress:   progressItems(records, names),
		TotalScore: summary.TotalScore,
		Summary:    summary,
	}, nil
}

func progressItems(records []model.UserProgress, names map[string]string) []UserProgressItem {
	items := make([]UserProgressItem, len(records))
	for i, r := range records {
		items[i] = UserProgressItem{
			UserProgress: r,
			ModuleName:   names[r.ModuleID],
			Accuracy:     stats.Round2(r.Accuracy()),
		}
	}
	return items
}

func (s *ProgressService) findUser(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// LeaderboardEntry 排行榜中的一名学生
type LeaderboardEntry struct {
	Rank             int        `json:"rank"`
	StudentID        uint       `json:"student_id"`
	Username         string     `json:"username"`
	StudentName      string     `json:"student_name"`
	TotalScore       int        `json:"total_score"`
	ModulesCompleted int        `json:"modules_completed"`
	Accuracy         float64    `json:"accuracy"`
	Badges           []string   `json:"badges"`
	LatestActivity   *time.Time `json:"latest_activity"`
	IsCurrentUser    bool       `json:"is_current_user"`
}

type Leaderboard struct {
	Entries         []LeaderboardEntry `json:"leaderboard"`
	TotalStudents   int                `json:"total_students"`
	CurrentUserRank *LeaderboardEntry  `json:"current_user_rank"`
	TimePeriod      stats.Timeframe    `json:"time_period"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

// studentAttempts 全部学生（按 id 升序）及其学习记录
func (s *ProgressService) studentAttempts() ([]model.User, []stats.Attempt, error) {
	students, err := s.UserRepo.ListByRole(model.Student)
	if err != nil {
		return nil, nil, err
	}
	if len(students) == 0 {
		return students, nil, nil
	}
	records, err := s.ProgressRepo.List(repository.ProgressFilter{UserIDs: studentIDs(students)})
	if err != nil {
		return nil, nil, err
	}
	return students, toAttempts(records), nil
}

func studentIDs(students []model.User) []uint {
	ids := make([]uint, len(students))
	for i, u := range students {
		ids[i] = u.ID
	}
	return ids
}

// rankLeaderboard 时间窗口内有记录的学生按总分排名，同分保持 id 升序
func rankLeaderboard(students []model.User, attempts []stats.Attempt, tf stats.Timeframe, now time.Time) []LeaderboardEntry {
	byID := make(map[uint]model.User, len(students))
	for _, u := range students {
		byID[u.ID] = u
	}
	summaries := stats.FoldByUser(studentIDs(students), stats.InWindow(attempts, tf, now))
	ranked := stats.RankBy(summaries, func(sum stats.Summary) float64 { return float64(sum.TotalScore) })

	entries := make([]LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		u := byID[r.Item.UserID]
		entries[i] = LeaderboardEntry{
			Rank:             r.Rank,
			StudentID:        u.ID,
			Username:         u.Username,
			StudentName:      u.FullName,
			TotalScore:       r.Item.TotalScore,
			ModulesCompleted: r.Item.ModulesCompleted,
			Accuracy:         r.Item.Accuracy,
			Badges:           stats.Badges(r.Item),
			LatestActivity:   r.Item.LastActivity,
		}
	}
	return entries
}

func (s *ProgressService) leaderboardEntries(ctx context.Context, tf stats.Timeframe) ([]LeaderboardEntry, error) {
	if entries, ok := s.Cache.Get(ctx, tf); ok {
		return entries, nil
	}
	students, attempts, err := s.studentAttempts()
	if err != nil {
		return nil, err
	}
	entries := rankLeaderboard(students, attempts, tf, s.now())
	s.Cache.Set(ctx, tf, entries)
	return entries, nil
}

// Leaderboard 截取发生在完整排名之后，当前学生的名次反映全部学生
func (s *ProgressService) Leaderboard(ctx context.Context, viewer *model.User, timeframe string, limit int) (*Leaderboard, error) {
	tf, err := stats.ParseTimeframe(timeframe)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrInvalidQuery, err)
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	limit = util.Clamp(limit, 1, maxLeaderboardLimit)

	entries, err := s.leaderboardEntries(ctx, tf)
	if err != nil {
		return nil, err
	}

	board := &Leaderboard{
		TotalStudents: len(entries),
		TimePeriod:    tf,
		GeneratedAt:   s.now(),
	}
	for i := range entries {
		if viewer != nil && entries[i].StudentID == viewer.ID {
			entries[i].IsCurrentUser = true
			if viewer.Role == model.Student {
				current := entries[i]
				board.CurrentUserRank = &current
			}
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	board.Entries = entries
	return board, nil
}

// WarmLeaderboards 一次读取全部记录，刷新所有时间范围的缓存
func (s *ProgressService) WarmLeaderboards(ctx context.Context) error {
	if !s.Cache.enabled() {
		return nil
	}
	students, attempts, err := s.studentAttempts()
	if err != nil {
		return err
	}
	now := s.now()
	for _, tf := range leaderboardTimeframes {
		s.Cache.Set(ctx, tf, rankLeaderboard(students, attempts, tf, now))
	}
	return nil
}

// StartLeaderboardWarmup 按 cron 表达式定时刷新排行榜缓存；未启用缓存时不启动
func (s *ProgressService) StartLeaderboardWarmup(spec string) (*cron.Cron, error) {
	if !s.Cache.enabled() {
		logger.Log.Info("Leaderboard cache disabled, warm-up not scheduled")
		return nil, nil
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.WarmLeaderboards(ctx); err != nil {
			logger.Log.Warn("Leaderboard warm-up failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	logger.Log.Info("Leaderboard warm-up scheduled", zap.String("spec", spec))
	return c, nil
}

// RankNeighbour 排名附近的学生
type RankNeighbour struct {
	Rank       int    `json:"rank"`
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	TotalScore int    `json:"total_score"`
}

type StudentRank struct {
	StudentID        uint            `json:"student_id"`
	Username         string          `json:"username"`
	FullName         string          `json:"full_name"`
	Rank             int             `json:"rank"`
	TotalScore       int             `json:"total_score"`
	CompletedModules int             `json:"completed_modules"`
	TotalStudents    int             `json:"total_students"`
	Percentile       int             `json:"percentile"`
	StudentsAbove    []RankNeighbour `json:"students_above"`
	StudentsBelow    []RankNeighbour `json:"students_below"`
}

// foldAll 每个学生一条汇总，没有记录的学生计为 0 分
func foldAll(students []model.User, attempts []stats.Attempt) []stats.Summary {
	byUser := make(map[uint][]stats.Attempt)
	for _, a := range attempts {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}
	summaries := make([]stats.Summary, len(students))
	for i, u := range students {
		summaries[i] = stats.Fold(u.ID, byUser[u.ID])
	}
	return summaries
}

// StudentRank 全部学生的总排名。教师可查看任何学生，学生只能查看自己
func (s *ProgressService) StudentRank(viewer *model.User, studentID uint) (*StudentRank, error) {
	student, err := s.findUser(studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != model.Student {
		return nil, util.ErrUserNotFound
	}
	if viewer.Role != model.Teacher && viewer.ID != studentID {
		return nil, util.ErrPermissionDenied
	}

	students, attempts, err := s.studentAttempts()
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(students))
	for _, u := range students {
		names[u.ID] = u.Username
	}
	ranked := stats.RankBy(foldAll(students, attempts), func(sum stats.Summary) float64 { return float64(sum.TotalScore) })
	idx := stats.Find(ranked, func(sum stats.Summary) bool { return sum.UserID == studentID })

	result := &StudentRank{
		StudentID:     student.ID,
		Username:      student.Username,
		FullName:      student.FullName,
		TotalStudents: len(students),
		StudentsAbove: []RankNeighbour{},
		StudentsBelow: []RankNeighbour{},
	}
	if idx < 0 {
		return result, nil
	}

	me := ranked[idx]
	result.Rank = me.Rank
	result.TotalScore = me.Item.TotalScore
	result.CompletedModules = me.Item.ModulesCompleted
	result.Percentile = stats.Percentile(me.Rank, len(ranked))

	above, below := stats.Neighbours(ranked, idx, rankNeighbourSpan)
	toNeighbours := func(rs []stats.Ranked[stats.Summary]) []RankNeighbour {
		out := make([]RankNeighbour, len(rs))
		for i, r := range rs {
			out[i] = RankNeighbour{Rank: r.Rank, UserID: r.Item.UserID, Username: names[r.Item.UserID], TotalScore: r.Item.TotalScore}
		}
		return out
	}
	result.StudentsAbove = toNeighbours(above)
	result.StudentsBelow = toNeighbours(below)
	return result, nil
}

type Performer struct {
	Rank             int     `json:"rank"`
	UserID           uint    `json:"user_id"`
	Username         string  `json:"username"`
	FullName         string  `json:"full_name"`
	TotalScore       int     `json:"total_score"`
	ModulesCompleted int     `json:"modules_completed"`
	Accuracy         float64 `json:"accuracy"`
}

type TopPerformers struct {
	Metric        string      `json:"metric"`
	TopPerformers []Performer `json:"top_performers"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

// TopPerformers 有学习记录的学生按指标排名；正确率取每条记录正确率的平均值
func (s *ProgressService) TopPerformers(metric string, limit int) (*TopPerformers, error) {
	if metric == "" {
		metric = MetricScore
	}
	var score func(Performer) float64
	switch metric {
	case MetricScore:
		score = func(p Performer) float64 { return float64(p.TotalScore) }
	case MetricAccuracy:
		score = func(p Performer) float64 { return p.Accuracy }
	case MetricModules:
		score = func(p Performer) float64 { return float64(p.ModulesCompleted) }
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", util.ErrInvalidQuery, metric)
	}
	if limit <= 0 {
		limit = defaultPerformerLimit
	}
	limit = util.Clamp(limit, 1, maxPerformerLimit)

	students, attempts, err := s.studentAttempts()
	if err != nil {
		return nil, err
	}
	byUser := make(map[uint][]stats.Attempt)
	for _, a := range attempts {
		byUser[a.UserID] = append(byUser[a.UserID], a)
	}

	performers := make([]Performer, 0, len(students))
	for _, u := range students {
		records, ok := byUser[u.ID]
		if !ok {
			continue
		}
		sum := stats.Fold(u.ID, records)
		performers = append(performers, Performer{
			UserID:           u.ID,
			Username:         u.Username,
			FullName:         u.FullName,
			TotalScore:       sum.TotalScore,
			ModulesCompleted: sum.ModulesCompleted,
			Accuracy:         stats.MeanAttemptAccuracy(records),
		})
	}

	top := stats.Top(stats.RankBy(performers, score), limit)
	result := &TopPerformers{Metric: metric, TopPerformers: make([]Performer, len(top)), GeneratedAt: s.now()}
	for i, r := range top {
		p := r.Item
		p.Rank = r.Rank
		result.TopPerformers[i] = p
	}
	return result, nil
}

// StudentOverviewRow 教师端学生总览中的一行
type StudentOverviewRow struct {
	Rank             int        `json:"rank"`
	UserID           uint       `json:"user_id"`
	Username         string     `json:"username"`
	FullName         string     `json:"full_name"`
	TotalScore       int        `json:"total_score"`
	ModulesCompleted int        `json:"modules_completed"`
	Accuracy         float64    `json:"accuracy"`
	TotalAttempts    int        `json:"total_attempts"`
	LatestActivity   *time.Time `json:"latest_activity"`
}

type StudentsOverview struct {
	Students         []StudentOverviewRow `json:"students"`
	TotalStudents    int                  `json:"total_students"`
	TotalCompletions int                  `json:"total_completions"`
	AverageAccuracy  float64              `json:"average_accuracy"`
}

// StudentsOverview 全部学生（包括没有记录的）按总分排名
func (s *ProgressService) StudentsOverview() (*StudentsOverview, error) {
	students, attempts, err := s.studentAttempts()
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.User, len(students))
	for _, u := range students {
		byID[u.ID] = u
	}

	ranked := stats.RankBy(foldAll(students, attempts), func(sum stats.Summary) float64 { return float64(sum.TotalScore) })
	overview := &StudentsOverview{Students: make([]StudentOverviewRow, len(ranked)), TotalStudents: len(ranked)}
	var accuracySum float64
	for i, r := range ranked {
		u := byID[r.Item.UserID]
		overview.Students[i] = StudentOverviewRow{
			Rank:             r.Rank,
			UserID:           u.ID,
			Username:         u.Username,
			FullName:         u.FullName,
			TotalScore:       r.Item.TotalScore,
			ModulesCompleted: r.Item.ModulesCompleted,
			Accuracy:         r.Item.Accuracy,
			TotalAttempts:    r.Item.ModulesAttempted,
			LatestActivity:   r.Item.LastActivity,
		}
		overview.TotalCompletions += r.Item.ModulesCompleted
		accuracySum += r.Item.Accuracy
	}
	if len(ranked) > 0 {
		overview.AverageAccuracy = stats.Round2(accuracySum / float64(len(ranked)))
	}
	return overview, nil
}

type StudentDetails struct {
	User    *model.User        `json:"user"`
	Modules []UserProgressItem `json:"modules"`
	Stats   stats.Summary      `json:"stats"`
}

// StudentDetails 学生的每个模块记录，包含逐题作答
func (s *ProgressService) StudentDetails(userID uint) (*StudentDetails, error) {
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUserWithAnswers(userID)
	if err != nil {
		return nil, err
	}
	names, err := s.ModuleRepo.ModuleNames()
	if err != nil {
		return nil, err
	}
	return &StudentDetails{
		User:    user,
		Modules: progressItems(records, names),
		Stats:   stats.Fold(userID, toAttempts(records)),
	}, nil
}
