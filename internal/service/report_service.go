package service

import (
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 报表类型
const (
	ReportStudentProgress   = "student_progress"
	ReportClassOverview     = "class_overview"
	ReportModulePerformance = "module_performance"
	ReportExerciseAnalysis  = "exercise_analysis"
	ReportComparative       = "comparative_analysis"
	ReportWeeklySummary     = "weekly_summary"
)

// 对比分析维度
const (
	CompareStudents = "students"
	CompareModules  = "modules"
	CompareTime     = "time"
)

const (
	weeklyTrendWeeks = 12
	topClassCount    = 5
	topExerciseCount = 3
)

type ReportType struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
	Formats     []string `json:"formats"`
}

var reportFormats = []string{FormatPDF, FormatExcel, FormatJSON}

var ReportTypes = []ReportType{
	{ReportStudentProgress, "Individual Student Progress Report", "Detailed progress report for a specific student", []string{"student_id"}, reportFormats},
	{ReportClassOverview, "Class Overview Report", "Overview of all students' performance", []string{}, reportFormats},
	{ReportModulePerformance, "Module Performance Report", "Performance analysis for learning modules", []string{"module_id (optional)"}, reportFormats},
	{ReportExerciseAnalysis, "Exercise Analysis Report", "Exercise success rates grouped by type", []string{}, reportFormats},
	{ReportComparative, "Comparative Analysis Report", "Compare performance across students, modules, or time periods", []string{"comparison_type", "student_ids", "module_ids", "date_from", "date_to"}, reportFormats},
	{ReportWeeklySummary, "Weekly Summary Report", "Weekly performance summary for all students", []string{"week_offset"}, reportFormats},
}

// Report 报表内容：JSON 输出 Data，PDF 和 Excel 输出 Summary 与 Tables
type Report struct {
	Type        string
	Title       string
	GeneratedAt time.Time
	Summary     []Metric
	Tables      []Table
	Data        interface{}
}

type Metric struct {
	Label string
	Value string
}

type Table struct {
	Name    string
	Headers []string
	Rows    [][]string
}

type ReportService struct {
	ProgressRepo *repository.ProgressRepository
	ModuleRepo   *repository.ModuleRepository
	UserRepo     *repository.UserRepository
	now          func() time.Time
}

func NewReportService(progressRepo *repository.ProgressRepository, moduleRepo *repository.ModuleRepository, userRepo *repository.UserRepository) *ReportService {
	return &ReportService{
		ProgressRepo: progressRepo,
		ModuleRepo:   moduleRepo,
		UserRepo:     userRepo,
		now:          time.Now,
	}
}

func (s *ReportService) newReport(reportType, title string) *Report {
	return &Report{Type: reportType, Title: title, GeneratedAt: s.now()}
}

func itoa(n int) string { return strconv.Itoa(n) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(util.DateFormat)
}

func (s *ReportService) students() ([]model.User, map[uint]model.User, error) {
	students, err := s.UserRepo.ListByRole(model.Student)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[uint]model.User, len(students))
	for _, u := range students {
		byID[u.ID] = u
	}
	return students, byID, nil
}

func (s *ReportService) studentRecords(students []model.User, filter repository.ProgressFilter) ([]model.UserProgress, error) {
	if len(students) == 0 {
		return nil, nil
	}
	if len(filter.UserIDs) == 0 {
		filter.UserIDs = studentIDs(students)
	}
	return s.ProgressRepo.List(filter)
}

// TypePerformance 某一题型的作答统计
type TypePerformance struct {
	Type        string  `json:"type"`
	Attempts    int     `json:"attempts"`
	Correct     int     `json:"correct"`
	SuccessRate float64 `json:"success_rate"`
}

type StudentModuleRow struct {
	ModuleID    string     `json:"module_id"`
	ModuleName  string     `json:"module_name"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Score       int        `json:"score"`
	Questions   int        `json:"questions"`
	Correct     int        `json:"correct"`
	Accuracy    float64    `json:"accuracy"`
	Completed   bool       `json:"completed"`
}

type StudentProgressData struct {
	Student             *model.User        `json:"student"`
	Summary             stats.Summary      `json:"summary"`
	Modules             []StudentModuleRow `json:"module_details"`
	ExercisePerformance []TypePerformance  `json:"exercise_performance"`
	WeeklyProgress      []stats.Group      `json:"weekly_progress"`
}

func (s *ReportService) StudentProgress(studentID uint) (*Report, error) {
	student, err := s.UserRepo.FindByID(studentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUserWithAnswers(studentID)
	if err != nil {
		return nil, err
	}
	names, err := s.ModuleRepo.ModuleNames()
	if err != nil {
		return nil, err
	}
	exercises, err := s.ModuleRepo.ListAllExercises()
	if err != nil {
		return nil, err
	}
	typeOf := make(map[string]string, len(exercises))
	for _, e := range exercises {
		typeOf[e.ID] = e.Type
	}

	data := StudentProgressData{
		Student: student,
		Summary: stats.Fold(studentID, toAttempts(records)),
		Modules: make([]StudentModuleRow, len(records)),
	}
	byType := make(map[string]*TypePerformance)
	for i, r := range records {
		data.Modules[i] = StudentModuleRow{
			ModuleID:    r.ModuleID,
			ModuleName:  names[r.ModuleID],
			StartedAt:   r.StartedAt,
			CompletedAt: r.CompletedAt,
			Score:       r.TotalScore,
			Questions:   r.TotalQuestions,
			Correct:     r.CorrectAnswers,
			Accuracy:    stats.Round2(r.Accuracy()),
			Completed:   r.Completed,
		}
		for _, a := range r.Answers {
			t := typeOf[a.ExerciseID]
			if t == "" {
				t = generation.TypeMultipleChoice
			}
			tp, ok := byType[t]
			if !ok {
				tp = &TypePerformance{Type: t}
				byType[t] = tp
			}
			tp.Attempts++
			if a.IsCorrect {
				tp.Correct++
			}
		}
	}
	for _, tp := range byType {
		tp.SuccessRate = stats.Percent(tp.Correct, tp.Attempts)
		data.ExercisePerformance = append(data.ExercisePerformance, *tp)
	}
	sort.Slice(data.ExercisePerformance, func(i, j int) bool {
		return data.ExercisePerformance[i].Type < data.ExercisePerformance[j].Type
	})
	data.WeeklyProgress = stats.GroupBy(toAttempts(records), stats.ByWeek)
	stats.SortByKey(data.WeeklyProgress)

	report := s.newReport(ReportStudentProgress, "Student Progress Report: "+displayName(*student))
	report.Summary = []Metric{
		{"Modules attempted", itoa(data.Summary.ModulesAttempted)},
		{"Modules completed", itoa(data.Summary.ModulesCompleted)},
		{"Total score", itoa(data.Summary.TotalScore)},
		{"Accuracy (%)", ftoa(data.Summary.Accuracy)},
	}
	moduleTable := Table{Name: "Modules", Headers: []string{"Module", "Started", "Completed", "Score", "Questions", "Correct", "Accuracy (%)"}}
	for _, m := range data.Modules {
		moduleTable.Rows = append(moduleTable.Rows, []string{
			m.ModuleName, m.StartedAt.Format(util.DateFormat), dateOrDash(m.CompletedAt),
			itoa(m.Score), itoa(m.Questions), itoa(m.Correct), ftoa(m.Accuracy),
		})
	}
	typeTable := Table{Name: "Exercise types", Headers: []string{"Type", "Attempts", "Correct", "Success rate (%)"}}
	for _, tp := range data.ExercisePerformance {
		typeTable.Rows = append(typeTable.Rows, []string{tp.Type, itoa(tp.Attempts), itoa(tp.Correct), ftoa(tp.SuccessRate)})
	}
	report.Tables = []Table{moduleTable, typeTable, groupTable("Weekly progress", "Week", data.WeeklyProgress, nil)}
	report.Data = data
	return report, nil
}

func displayName(u model.User) string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// groupTable 分组统计表，labels 为分组键到显示名的映射
func groupTable(name, keyHeader string, groups []stats.Group, labels map[string]string) Table {
	t := Table{Name: name, Headers: []string{keyHeader, "Attempts", "Completed", "Completion (%)", "Total score", "Avg score", "Avg accuracy (%)", "Participants"}}
	for _, g := range groups {
		label := g.Key
		if l, ok := labels[g.Key]; ok && l != "" {
			label = l
		}
		t.Rows = append(t.Rows, []string{
			label, itoa(g.Attempts), itoa(g.Completed), ftoa(g.CompletionRate),
			itoa(g.TotalScore), ftoa(g.AvgScore), ftoa(g.AvgAccuracy), itoa(g.Participants),
		})
	}
	return t
}

type ClassRow struct {
	Rank             int        `json:"rank"`
	StudentID        uint       `json:"student_id"`
	StudentName      string     `json:"student_name"`
	Username         string     `json:"username"`
	TotalScore       int        `json:"total_score"`
	ModulesCompleted int        `json:"modules_completed"`
	Accuracy         float64    `json:"accuracy"`
	TotalQuestions   int        `json:"total_questions"`
	CorrectAnswers   int        `json:"correct_answers"`
	LatestActivity   *time.Time `json:"latest_activity"`
}

type ClassStatistics struct {
	TotalStudents  int        `json:"total_students"`
	ActiveStudents int        `json:"active_students"`
	AvgScore       float64    `json:"avg_score"`
	AvgAccuracy    float64    `json:"avg_accuracy"`
	TopPerformers  []ClassRow `json:"top_performers"`
}

type ClassOverviewData struct {
	Students   []ClassRow      `json:"class_data"`
	Statistics ClassStatistics `json:"statistics"`
}

func (s *ReportService) ClassOverview() (*Report, error) {
	students, byID, err := s.students()
	if err != nil {
		return nil, err
	}
	records, err := s.studentRecords(students, repository.ProgressFilter{})
	if err != nil {
		return nil, err
	}

	ranked := stats.RankBy(foldAll(students, toAttempts(records)), func(sum stats.Summary) float64 { return float64(sum.TotalScore) })
	data := ClassOverviewData{Students: make([]ClassRow, len(ranked))}
	var scoreSum int
	var accuracySum float64
	for i, r := range ranked {
		u := byID[r.Item.UserID]
		data.Students[i] = ClassRow{
			Rank:             r.Rank,
			StudentID:        u.ID,
			StudentName:      u.FullName,
			Username:         u.Username,
			TotalScore:       r.Item.TotalScore,
			ModulesCompleted: r.Item.ModulesCompleted,
			Accuracy:         r.Item.Accuracy,
			TotalQuestions:   r.Item.TotalQuestions,
			CorrectAnswers:   r.Item.CorrectAnswers,
			LatestActivity:   r.Item.LastActivity,
		}
		if r.Item.LastActivity != nil {
			data.Statistics.ActiveStudents++
		}
		scoreSum += r.Item.TotalScore
		accuracySum += r.Item.Accuracy
	}
	data.Statistics.TotalStudents = len(students)
	if n := len(ranked); n > 0 {
		data.Statistics.AvgScore = stats.Average(scoreSum, n)
		data.Statistics.AvgAccuracy = stats.Round2(accuracySum / float64(n))
	}
	top := data.Students
	if len(top) > topClassCount {
		top = top[:topClassCount]
	}
	data.Statistics.TopPerformers = top

	report := s.newReport(ReportClassOverview, "Class Overview Report")
	report.Summary = []Metric{
		{"Total students", itoa(data.Statistics.TotalStudents)},
		{"Active students", itoa(data.Statistics.ActiveStudents)},
		{"Average score", ftoa(data.Statistics.AvgScore)},
		{"Average accuracy (%)", ftoa(data.Statistics.AvgAccuracy)},
	}
	table := Table{Name: "Students", Headers: []string{"Rank", "Student", "Username", "Score", "Completed", "Accuracy (%)", "Last activity"}}
	for _, row := range data.Students {
		table.Rows = append(table.Rows, []string{
			itoa(row.Rank), row.StudentName, row.Username, itoa(row.TotalScore),
			itoa(row.ModulesCompleted), ftoa(row.Accuracy), dateOrDash(row.LatestActivity),
		})
	}
	report.Tables = []Table{table}
	report.Data = data
	return report, nil
}

// ExerciseStat 单道练习的作答统计
type ExerciseStat struct {
	ExerciseID  string  `json:"exercise_id"`
	ModuleID    string  `json:"module_id"`
	Type        string  `json:"type"`
	Question    string  `json:"question"`
	Attempts    int     `json:"attempts"`
	Correct     int     `json:"correct"`
	SuccessRate float64 `json:"success_rate"`
	Difficulty  string  `json:"difficulty"`
}

// observedDifficulty 按答对率划分难度
func observedDifficulty(rate float64) string {
	switch {
	case rate >= 80:
		return "easy"
	case rate >= 50:
		return "medium"
	default:
		return "hard"
	}
}

func exerciseStats(exercises []model.Exercise, answers map[string]repository.ExerciseAnswerStat) []ExerciseStat {
	out := make([]ExerciseStat, len(exercises))
	for i, e := range exercises {
		a := answers[e.ID]
		rate := stats.Percent(int(a.Correct), int(a.Attempts))
		out[i] = ExerciseStat{
			ExerciseID:  e.ID,
			ModuleID:    e.ModuleID,
			Type:        e.Type,
			Question:    e.Question,
			Attempts:    int(a.Attempts),
			Correct:     int(a.Correct),
			SuccessRate: rate,
			Difficulty:  observedDifficulty(rate),
		}
	}
	return out
}

type ModulePerformanceRow struct {
	ModuleID      string         `json:"module_id"`
	ModuleName    string         `json:"module_name"`
	CreatedAt     time.Time      `json:"created_at"`
	ExerciseCount int            `json:"exercise_count"`
	Stats         stats.Group    `json:"stats"`
	Exercises     []ExerciseStat `json:"exercise_stats"`
}

// ModulePerformance moduleID 为空时统计全部模块
func (s *ReportService) ModulePerformance(moduleID string) (*Report, error) {
	var modules []model.LearningModule
	if moduleID != "" {
		m, err := s.ModuleRepo.FindByID(moduleID)
		if err != nil {
			return nil, err
		}
		modules = []model.LearningModule{*m}
	} else {
		items, err := s.ModuleRepo.List()
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			modules = append(modules, item.LearningModule)
		}
	}

	records, err := s.ProgressRepo.List(repository.ProgressFilter{ModuleID: moduleID})
	if err != nil {
		return nil, err
	}
	groups := make(map[string]stats.Group)
	for _, g := range stats.GroupBy(toAttempts(records), stats.ByModule) {
		groups[g.Key] = g
	}
	answers, err := s.ModuleRepo.ExerciseAnswerStats(moduleID)
	if err != nil {
		return nil, err
	}

	rows := make([]ModulePerformanceRow, 0, len(modules))
	for _, m := range modules {
		exercises, err := s.ModuleRepo.ListExercises(m.ID)
		if err != nil {
			return nil, err
		}
		g, ok := groups[m.ID]
		if !ok {
			g = stats.Group{Key: m.ID}
		}
		rows = append(rows, ModulePerformanceRow{
			ModuleID:      m.ID,
			ModuleName:    m.ModuleName,
			CreatedAt:     m.CreatedAt,
			ExerciseCount: len(exercises),
			Stats:         g,
			Exercises:     exerciseStats(exercises, answers),
		})
	}

	report := s.newReport(ReportModulePerformance, "Module Performance Report")
	report.Summary = []Metric{{"Modules", itoa(len(rows))}, {"Attempts", itoa(len(records))}}
	labels := make(map[string]string, len(rows))
	moduleGroups := make([]stats.Group, len(rows))
	exerciseTable := Table{Name: "Exercises", Headers: []string{"Module", "Type", "Question", "Attempts", "Correct", "Success (%)"}}
	for i, row := range rows {
		labels[row.ModuleID] = row.ModuleName
		moduleGroups[i] = row.Stats
		for _, e := range row.Exercises {
			exerciseTable.Rows = append(exerciseTable.Rows, []string{
				row.ModuleName, e.Type, preview(e.Question), itoa(e.Attempts), itoa(e.Correct), ftoa(e.SuccessRate),
			})
		}
	}
	report.Tables = []Table{groupTable("Modules", "Module", moduleGroups, labels), exerciseTable}
	report.Data = map[string]interface{}{"modules": rows}
	return report, nil
}

type TypeAnalysis struct {
	Type                   string         `json:"type"`
	TotalExercises         int            `json:"total_exercises"`
	TotalAttempts          int            `json:"total_attempts"`
	CorrectAnswers         int            `json:"correct_answers"`
	AvgSuccessRate         float64        `json:"avg_success_rate"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
	TopChallenging         []ExerciseStat `json:"top_challenging"`
	TopEasy                []ExerciseStat `json:"top_easy"`
	Exercises              []ExerciseStat `json:"exercises"`
}

func (s *ReportService) ExerciseAnalysis() (*Report, error) {
	exercises, err := s.ModuleRepo.ListAllExercises()
	if err != nil {
		return nil, err
	}
	answers, err := s.ModuleRepo.ExerciseAnswerStats("")
	if err != nil {
		return nil, err
	}

	byType := make(map[string][]ExerciseStat)
	for _, st := range exerciseStats(exercises, answers) {
		byType[st.Type] = append(byType[st.Type], st)
	}

	analysis := make([]TypeAnalysis, 0, len(generation.ExerciseTypes))
	table := Table{Name: "Exercise types", Headers: []string{"Type", "Exercises", "Attempts", "Correct", "Success (%)", "Easy", "Medium", "Hard"}}
	for _, t := range generation.ExerciseTypes {
		list := byType[t]
		ta := TypeAnalysis{
			Type:                   t,
			TotalExercises:         len(list),
			DifficultyDistribution: map[string]int{"easy": 0, "medium": 0, "hard": 0},
			TopChallenging:         []ExerciseStat{},
			TopEasy:                []ExerciseStat{},
			Exercises:              list,
		}
		for _, e := range list {
			ta.TotalAttempts += e.Attempts
			ta.CorrectAnswers += e.Correct
			ta.DifficultyDistribution[e.Difficulty]++
		}
		ta.AvgSuccessRate = stats.Percent(ta.CorrectAnswers, ta.TotalAttempts)

		sorted := append([]ExerciseStat(nil), list...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SuccessRate < sorted[j].SuccessRate })
		if len(sorted) >= topExerciseCount {
			ta.TopChallenging = sorted[:topExerciseCount]
			ta.TopEasy = sorted[len(sorted)-topExerciseCount:]
		}
		if ta.Exercises == nil {
			ta.Exercises = []ExerciseStat{}
		}
		analysis = append(analysis, ta)

		table.Rows = append(table.Rows, []string{
			t, itoa(ta.TotalExercises), itoa(ta.TotalAttempts), itoa(ta.CorrectAnswers), ftoa(ta.AvgSuccessRate),
			itoa(ta.DifficultyDistribution["easy"]), itoa(ta.DifficultyDistribution["medium"]), itoa(ta.DifficultyDistribution["hard"]),
		})
	}

	report := s.newReport(ReportExerciseAnalysis, "Exercise Analysis Report")
	report.Summary = []Metric{{"Exercises", itoa(len(exercises))}}
	report.Tables = []Table{table}
	report.Data = map[string]interface{}{"types": analysis}
	return report, nil
}

type ComparativeQuery struct {
	Type       string `form:"comparison_type" binding:"omitempty,oneof=students modules time"`
	StudentIDs string `form:"student_ids"`
	ModuleIDs  string `form:"module_ids"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
}

type ComparativeRow struct {
	stats.Group
	Label string `json:"label"`
}

type ComparativeData struct {
	ComparisonType string           `json:"comparison_type"`
	Rows           []ComparativeRow `json:"data"`
	DateFrom       string           `json:"date_from,omitempty"`
	DateTo         string           `json:"date_to,omitempty"`
}

// parseDate 接受 2006-01-02 或 RFC3339
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(util.DateFormat, s, time.Local); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", util.ErrInvalidQuery, s)
	}
	return &t, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Comparative 按学生、模块或周分组对比；学生按总分排序，模块和时间按平均分排序
func (s *ReportService) Comparative(q ComparativeQuery) (*Report, error) {
	if q.Type == "" {
		q.Type = CompareStudents
	}
	from, err := parseDate(q.DateFrom)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(q.DateTo)
	if err != nil {
		return nil, err
	}

	students, byID, err := s.students()
	if err != nil {
		return nil, err
	}
	filter := repository.ProgressFilter{Since: from}
	if to != nil {
		// 截止日期当天包含在内
		until := to.AddDate(0, 0, 1)
		filter.Until = &until
	}
	for _, raw := range splitIDs(q.StudentIDs) {
		id := util.MustParseUint(raw)
		if _, ok := byID[id]; !ok {
			continue
		}
		filter.UserIDs = append(filter.UserIDs, id)
	}
	if q.StudentIDs != "" && len(filter.UserIDs) == 0 {
		students = nil
	}
	records, err := s.studentRecords(students, filter)
	if err != nil {
		return nil, err
	}
	if moduleIDs := splitIDs(q.ModuleIDs); len(moduleIDs) > 0 {
		wanted := make(map[string]struct{}, len(moduleIDs))
		for _, id := range moduleIDs {
			wanted[id] = struct{}{}
		}
		kept := records[:0]
		for _, r := range records {
			if _, ok := wanted[r.ModuleID]; ok {
				kept = append(kept, r)
			}
		}
		records = kept
	}

	attempts := toAttempts(records)
	labels := map[string]string{}
	var groups []stats.Group
	var keyHeader string
	switch q.Type {
	case CompareStudents:
		groups = stats.GroupBy(attempts, stats.ByStudent)
		stats.SortByTotalScore(groups)
		for _, u := range students {
			labels[strconv.FormatUint(uint64(u.ID), 10)] = displayName(u)
		}
		keyHeader = "Student"
	case CompareModules:
		groups = stats.GroupBy(attempts, stats.ByModule)
		stats.SortByAvgScore(groups)
		names, err := s.ModuleRepo.ModuleNames()
		if err != nil {
			return nil, err
		}
		labels = names
		keyHeader = "Module"
	case CompareTime:
		groups = stats.GroupBy(attempts, stats.ByWeek)
		stats.SortByAvgScore(groups)
		keyHeader = "Week"
	default:
		return nil, fmt.Errorf("%w: unknown comparison type %q", util.ErrInvalidQuery, q.Type)
	}

	data := ComparativeData{ComparisonType: q.Type, Rows: make([]ComparativeRow, len(groups)), DateFrom: q.DateFrom, DateTo: q.DateTo}
	for i, g := range groups {
		label := labels[g.Key]
		if label == "" {
			label = g.Key
		}
		data.Rows[i] = ComparativeRow{Group: g, Label: label}
	}

	report := s.newReport(ReportComparative, "Comparative Analysis Report ("+q.Type+")")
	report.Summary = []Metric{
		{"Comparison", q.Type},
		{"Groups", itoa(len(groups))},
		{"Records", itoa(len(records))},
	}
	if q.DateFrom != "" || q.DateTo != "" {
		report.Summary = append(report.Summary, Metric{"Period", q.DateFrom + " ~ " + q.DateTo})
	}
	report.Tables = []Table{groupTable("Comparison", keyHeader, groups, labels)}
	report.Data = data
	return report, nil
}

type WeeklyStudentRow struct {
	StudentID        uint    `json:"student_id"`
	StudentName      string  `json:"student_name"`
	ModulesAttempted int     `json:"modules_attempted"`
	ModulesCompleted int     `json:"modules_completed"`
	TotalScore       int     `json:"total_score"`
	TotalQuestions   int     `json:"total_questions"`
	CorrectAnswers   int     `json:"correct_answers"`
	Accuracy         float64 `json:"accuracy"`
	TimeSpentMinutes int     `json:"time_spent_minutes"`
}

type WeeklyTotals struct {
	WeekStart             time.Time `json:"week_start"`
	WeekEnd               time.Time `json:"week_end"`
	TotalStudentsActive   int       `json:"total_students_active"`
	TotalModulesAttempted int       `json:"total_modules_attempted"`
	TotalModulesCompleted int       `json:"total_modules_completed"`
	TotalScore            int       `json:"total_score"`
	AvgAccuracy           float64   `json:"avg_accuracy"`
}

type WeeklySummaryData struct {
	Summary  WeeklyTotals       `json:"weekly_summary"`
	Students []WeeklyStudentRow `json:"students"`
	Trend    []stats.Group      `json:"trend"`
}

// WeeklySummary weekOffset=0 为本周，1 为上周，以此类推；趋势为截至该周的最近若干周
func (s *ReportService) WeeklySummary(weekOffset int) (*Report, error) {
	if weekOffset < 0 {
		weekOffset = 0
	}
	weekStart := stats.WeekStart(s.now()).AddDate(0, 0, -7*weekOffset)
	weekEnd := weekStart.AddDate(0, 0, 7)
	trendStart := weekStart.AddDate(0, 0, -7*(weeklyTrendWeeks-1))

	students, byID, err := s.students()
	if err != nil {
		return nil, err
	}
	records, err := s.studentRecords(students, repository.ProgressFilter{Since: &trendStart, Until: &weekEnd})
	if err != nil {
		return nil, err
	}

	var week []model.UserProgress
	minutes := make(map[uint]int)
	for _, r := range records {
		if r.StartedAt.Before(weekStart) {
			continue
		}
		week = append(week, r)
		if r.CompletedAt != nil && r.CompletedAt.After(r.StartedAt) {
			minutes[r.UserID] += int(r.CompletedAt.Sub(r.StartedAt).Minutes())
		}
	}

	data := WeeklySummaryData{
		Summary:  WeeklyTotals{WeekStart: weekStart, WeekEnd: weekEnd},
		Students: []WeeklyStudentRow{},
	}
	var accuracySum float64
	for _, sum := range stats.FoldByUser(studentIDs(students), toAttempts(week)) {
		u := byID[sum.UserID]
		data.Students = append(data.Students, WeeklyStudentRow{
			StudentID:        u.ID,
			StudentName:      displayName(u),
			ModulesAttempted: sum.ModulesAttempted,
			ModulesCompleted: sum.ModulesCompleted,
			TotalScore:       sum.TotalScore,
			TotalQuestions:   sum.TotalQuestions,
			CorrectAnswers:   sum.CorrectAnswers,
			Accuracy:         sum.Accuracy,
			TimeSpentMinutes: minutes[u.ID],
		})
		data.Summary.TotalModulesAttempted += sum.ModulesAttempted
		data.Summary.TotalModulesCompleted += sum.ModulesCompleted
		data.Summary.TotalScore += sum.TotalScore
		accuracySum += sum.Accuracy
	}
	data.Summary.TotalStudentsActive = len(data.Students)
	if n := len(data.Students); n > 0 {
		data.Summary.AvgAccuracy = stats.Round2(accuracySum / float64(n))
	}
	data.Trend = stats.GroupBy(toAttempts(records), stats.ByWeek)
	stats.SortByKey(data.Trend)

	report := s.newReport(ReportWeeklySummary, "Weekly Summary Report: "+weekStart.Format(util.DateFormat))
	report.Summary = []Metric{
		{"Week", weekStart.Format(util.DateFormat) + " ~ " + weekEnd.AddDate(0, 0, -1).Format(util.DateFormat)},
		{"Active students", itoa(data.Summary.TotalStudentsActive)},
		{"Modules attempted", itoa(data.Summary.TotalModulesAttempted)},
		{"Modules completed", itoa(data.Summary.TotalModulesCompleted)},
		{"Total score", itoa(data.Summary.TotalScore)},
		{"Average accuracy (%)", ftoa(data.Summary.AvgAccuracy)},
	}
	table := Table{Name: "Students", Headers: []string{"Student", "Attempted", "Completed", "Score", "Accuracy (%)", "Minutes"}}
	for _, row := range data.Students {
		table.Rows = append(table.Rows, []string{
			row.StudentName, itoa(row.ModulesAttempted), itoa(row.ModulesCompleted),
			itoa(row.TotalScore), ftoa(row.Accuracy), itoa(row.TimeSpentMinutes),
		})
	}
	report.Tables = []Table{table, groupTable("Trend", "Week", data.Trend, nil)}
	report.Data = data
	return report, nil
}

// ReportParams 生成报表时的查询参数，各报表只读取自己需要的字段
type ReportParams struct {
	StudentID   uint
	ModuleID    string
	WeekOffset  int
	Comparative ComparativeQuery
}

func (s *ReportService) Generate(reportType string, p ReportParams) (*Report, error) {
	switch reportType {
	case ReportStudentProgress:
		if p.StudentID == 0 {
			return nil, fmt.Errorf("%w: student_id is required", util.ErrInvalidQuery)
		}
		return s.StudentProgress(p.StudentID)
	case ReportClassOverview:
		return s.ClassOverview()
	case ReportModulePerformance:
		return s.ModulePerformance(p.ModuleID)
	case ReportExerciseAnalysis:
		return s.ExerciseAnalysis()
	case ReportComparative:
		return s.Comparative(p.Comparative)
	case ReportWeeklySummary:
		return s.WeeklySummary(p.WeekOffset)
	default:
		return nil, fmt.Errorf("%w: %s", util.ErrInvalidReportType, reportType)
	}
}
