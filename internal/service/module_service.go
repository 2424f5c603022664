package service

import (
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"comic_english_backend/pkg/monitoring"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

type ModuleService struct {
	ModuleRepo *repository.ModuleRepository
	// OnProgressChanged 删除模块会连带删除学习记录，用于刷新排行榜缓存
	OnProgressChanged func()
}

func NewModuleService(moduleRepo *repository.ModuleRepository) *ModuleService {
	return &ModuleService{ModuleRepo: moduleRepo}
}

// PanelInput 保存模块时提交的分镜，图片和语音为可选的 base64 数据
type PanelInput struct {
	PanelNumber            int     `json:"panel_number" binding:"min=1"`
	Dialogue               string  `json:"dialogue"`
	Narration              string  `json:"narration"`
	Visual                 string  `json:"visual"`
	Setting                string  `json:"setting"`
	Mood                   string  `json:"mood"`
	Composition            string  `json:"composition"`
	ImageData              string  `json:"image_data"`
	ImageURL               string  `json:"image_url"`
	DialogueAudio          string  `json:"dialogue_audio"`
	NarrationAudio         string  `json:"narration_audio"`
	DialogueAudioDuration  float64 `json:"dialogue_audio_duration"`
	NarrationAudioDuration float64 `json:"narration_audio_duration"`
}

type SaveModuleRequest struct {
	ModuleName  string                 `json:"module_name" binding:"required,max=255"`
	ClassicText string                 `json:"classic_text" binding:"required"`
	ModernText  string                 `json:"modern_text"`
	ComicScript string                 `json:"comic_script"`
	Panels      []PanelInput           `json:"panels" binding:"dive"`
	Exercises   []generation.Candidate `json:"exercises"`
}

type SaveModuleResult struct {
	ModuleID          string                 `json:"module_id"`
	PanelsSaved       int                    `json:"panels_saved"`
	ImagesSaved       int                    `json:"images_saved"`
	AudiosSaved       int                    `json:"audios_saved"`
	ExercisesSaved    int                    `json:"exercises_saved"`
	ExercisesRejected int                    `json:"exercises_rejected"`
	Rejections        []generation.Rejection `json:"rejections"`
	Message           string                 `json:"message"`
}

// SaveModule 手工保存模块：练习按录入规则校验，被拒绝的记录计入结果而不是中断保存
func (s *ModuleService) SaveModule(createdBy *uint, req SaveModuleRequest) (*SaveModuleResult, error) {
	batch := generation.BatchResult{Exercises: []generation.Exercise{}, Rejections: []generation.Rejection{}}
	if len(req.Exercises) > 0 {
		var err error
		batch, err = generation.AuthoredRules.ValidateBatch(req.Exercises)
		logRejections(batch.Rejections)
		if errors.Is(err, generation.ErrNoValidExercises) {
			return nil, fmt.Errorf("%w: %s", util.ErrNoValidExercises, batch.Summary())
		}
	}
	return s.save(createdBy, req, batch)
}

// SaveGenerated 保存生成流程的结果，练习已经按生成规则校验过
func (s *ModuleService) SaveGenerated(createdBy *uint, req SaveModuleRequest, batch generation.BatchResult) (*SaveModuleResult, error) {
	return s.save(createdBy, req, batch)
}

func (s *ModuleService) save(createdBy *uint, req SaveModuleRequest, batch generation.BatchResult) (*SaveModuleResult, error) {
	seen := make(map[int]bool, len(req.Panels))
	panels := make([]model.ComicPanel, 0, len(req.Panels))
	result := &SaveModuleResult{Rejections: batch.Rejections}

	for _, p := range req.Panels {
		if seen[p.PanelNumber] {
			return nil, fmt.Errorf("%w: %d", util.ErrDuplicatePanel, p.PanelNumber)
		}
		seen[p.PanelNumber] = true

		panel := toPanelModel(p)
		if panel.HasImage() {
			result.ImagesSaved++
		}
		if panel.DialogueAudioBase64 != "" {
			result.AudiosSaved++
		}
		if panel.NarrationAudioBase64 != "" {
			result.AudiosSaved++
		}
		panels = append(panels, panel)
	}

	exercises := make([]model.Exercise, 0, len(batch.Exercises))
	for i, ex := range batch.Exercises {
		m, err := toExerciseModel(ex)
		if err != nil {
			return nil, err
		}
		m.Position = i
		exercises = append(exercises, m)
	}

	module := &model.LearningModule{
		ModuleName:  strings.TrimSpace(req.ModuleName),
		ClassicText: req.ClassicText,
		ModernText:  req.ModernText,
		ComicScript: req.ComicScript,
		CreatedBy:   createdBy,
	}
	if err := s.ModuleRepo.CreateWithContent(module, panels, exercises); err != nil {
		return nil, err
	}

	result.ModuleID = module.ID
	result.PanelsSaved = len(panels)
	result.ExercisesSaved = len(exercises)
	result.ExercisesRejected = len(batch.Rejections)
	result.Message = batch.Summary()

	logger.Log.Info("Module saved",
		zap.String("moduleId", module.ID),
		zap.Int("panels", result.PanelsSaved),
		zap.Int("exercises", result.ExercisesSaved),
		zap.Int("rejected", result.ExercisesRejected))
	return result, nil
}

func logRejections(rejections []generation.Rejection) {
	for _, r := range rejections {
		monitoring.RejectionCounter.WithLabelValues(r.Reason).Inc()
		logger.Log.Warn("Exercise rejected", zap.Int("index", r.Index), zap.String("reason", r.Reason))
	}
}

func toPanelModel(p PanelInput) model.ComicPanel {
	dialogue := p.Dialogue
	if strings.TrimSpace(dialogue) == "" {
		dialogue = generation.DefaultDialogue
	}
	composition := p.Composition
	if strings.TrimSpace(composition) == "" {
		composition = generation.DefaultComposition
	}
	return model.ComicPanel{
		PanelNumber:            p.PanelNumber,
		Dialogue:               dialogue,
		Narration:              p.Narration,
		VisualDescription:      p.Visual,
		Setting:                p.Setting,
		Mood:                   p.Mood,
		Composition:            composition,
		ImageBase64:            p.ImageData,
		ImageURL:               p.ImageURL,
		DialogueAudioBase64:    p.DialogueAudio,
		NarrationAudioBase64:   p.NarrationAudio,
		DialogueAudioDuration:  p.DialogueAudioDuration,
		NarrationAudioDuration: p.NarrationAudioDuration,
	}
}

func toExerciseModel(ex generation.Exercise) (model.Exercise, error) {
	m := model.Exercise{
		Type:           ex.Type,
		Difficulty:     ex.Difficulty,
		Question:       ex.Question,
		ClassicText:    ex.ClassicText,
		ModernText:     ex.ModernText,
		ComicReference: ex.ComicReference,
		AudioText:      ex.AudioText,
		AudioType:      ex.AudioType,
		CorrectAnswer:  ex.Correct,
		Explanation:    ex.Explanation,
		GrammarRule:    ex.GrammarRule,
	}
	if err := m.SetOptions(ex.Options); err != nil {
		return m, err
	}
	return m, nil
}

// ModuleSummary 模块列表项
type ModuleSummary struct {
	ID             string    `json:"id"`
	ModuleName     string    `json:"module_name"`
	ClassicPreview string    `json:"classic_preview"`
	ModernPreview  string    `json:"modern_preview"`
	PanelCount     int64     `json:"panel_count"`
	ExerciseCount  int64     `json:"exercise_count"`
	CreatedBy      *uint     `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

const previewLength = 100

func preview(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= previewLength {
		return string(r)
	}
	return string(r[:previewLength]) + "..."
}

func (s *ModuleService) ListModules() ([]ModuleSummary, error) {
	items, err := s.ModuleRepo.List()
	if err != nil {
		return nil, err
	}
	summaries := make([]ModuleSummary, len(items))
	for i, item := range items {
		summaries[i] = ModuleSummary{
			ID:             item.ID,
			ModuleName:     item.ModuleName,
			ClassicPreview: preview(item.ClassicText),
			ModernPreview:  preview(item.ModernText),
			PanelCount:     item.PanelCount,
			ExerciseCount:  item.ExerciseCount,
			CreatedBy:      item.CreatedBy,
			CreatedAt:      item.CreatedAt,
		}
	}
	return summaries, nil
}

func (s *ModuleService) GetModule(id string) (*model.LearningModule, error) {
	return s.ModuleRepo.FindByID(id)
}

// ModuleNames 模块 id 到名称的映射，用于学习记录列表
func (s *ModuleService) ModuleNames() (map[string]string, error) {
	return s.ModuleRepo.ModuleNames()
}

func (s *ModuleService) DeleteModule(id string) error {
	if err := s.ModuleRepo.Delete(id); err != nil {
		return err
	}
	logger.Log.Info("Module deleted", zap.String("moduleId", id))
	if s.OnProgressChanged != nil {
		s.OnProgressChanged()
	}
	return nil
}

// ExerciseWithStats 练习及其作答统计，有作答记录的练习不能删除
type ExerciseWithStats struct {
	model.Exercise
	Attempts    int64   `json:"attempts"`
	CorrectRate float64 `json:"correct_rate"`
	CanDelete   bool    `json:"can_delete"`
}

func (s *ModuleService) ModuleExercises(moduleID string) ([]ExerciseWithStats, error) {
	exists, err := s.ModuleRepo.Exists(moduleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrModuleNotFound
	}

	exercises, err := s.ModuleRepo.ListExercises(moduleID)
	if err != nil {
		return nil, err
	}
	answerStats, err := s.ModuleRepo.ExerciseAnswerStats(moduleID)
	if err != nil {
		return nil, err
	}

	result := make([]ExerciseWithStats, len(exercises))
	for i, ex := range exercises {
		st := answerStats[ex.ID]
		result[i] = ExerciseWithStats{
			Exercise:    ex,
			Attempts:    st.Attempts,
			CorrectRate: stats.Percent(int(st.Correct), int(st.Attempts)),
			CanDelete:   st.Attempts == 0,
		}
	}
	return result, nil
}

// ExerciseInput 新增练习。correct_answer 可以是下标、选项文本或数字字符串
type ExerciseInput struct {
	Type           string   `json:"type" binding:"omitempty,exercise_type"`
	Difficulty     string   `json:"difficulty" binding:"omitempty,difficulty"`
	Question       string   `json:"question" binding:"required"`
	ClassicText    string   `json:"classic_text"`
	ModernText     string   `json:"modern_text"`
	ComicReference string   `json:"comic_reference"`
	Options        []string `json:"options" binding:"required,min=2"`
	CorrectAnswer  any      `json:"correct_answer" binding:"required"`
	Explanation    string   `json:"explanation" binding:"required"`
	GrammarRule    string   `json:"grammar_rule"`
}

func (in ExerciseInput) candidate() generation.Candidate {
	return generation.Candidate{
		"type":            in.Type,
		"difficulty":      in.Difficulty,
		"question":        in.Question,
		"classic_text":    in.ClassicText,
		"modern_text":     in.ModernText,
		"comic_reference": in.ComicReference,
		"options":         in.Options,
		"correct":         in.CorrectAnswer,
		"explanation":     in.Explanation,
		"grammar_rule":    in.GrammarRule,
	}
}

func validateAuthored(c generation.Candidate) (generation.Exercise, error) {
	ex, reason := generation.AuthoredRules.Validate(c)
	if reason != "" {
		return ex, fmt.Errorf("%w: %s", util.ErrInvalidExercise, reason)
	}
	return ex, nil
}

func (s *ModuleService) AddExercise(moduleID string, in ExerciseInput) (*model.Exercise, error) {
	exists, err := s.ModuleRepo.Exists(moduleID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.ErrModuleNotFound
	}

	ex, err := validateAuthored(in.candidate())
	if err != nil {
		return nil, err
	}
	m, err := toExerciseModel(ex)
	if err != nil {
		return nil, err
	}
	m.ModuleID = moduleID
	if err := s.ModuleRepo.CreateExercise(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ExerciseUpdate 部分更新，未提供的字段保持不变
type ExerciseUpdate struct {
	Type           *string  `json:"type" binding:"omitempty,exercise_type"`
	Difficulty     *string  `json:"difficulty" binding:"omitempty,difficulty"`
	Question       *string  `json:"question"`
	ClassicText    *string  `json:"classic_text"`
	ModernText     *string  `json:"modern_text"`
	ComicReference *string  `json:"comic_reference"`
	Options        []string `json:"options"`
	CorrectAnswer  any      `json:"correct_answer"`
	Explanation    *string  `json:"explanation"`
	GrammarRule    *string  `json:"grammar_rule"`
}

// UpdateExercise 合并后整体重新校验，正确答案按（可能更新后的）选项检查范围
func (s *ModuleService) UpdateExercise(id string, upd ExerciseUpdate) (*model.Exercise, error) {
	existing, err := s.ModuleRepo.FindExercise(id)
	if err != nil {
		return nil, err
	}

	c := generation.Candidate{
		"type":            existing.Type,
		"difficulty":      existing.Difficulty,
		"question":        existing.Question,
		"classic_text":    existing.ClassicText,
		"modern_text":     existing.ModernText,
		"comic_reference": existing.ComicReference,
		"audio_text":      existing.AudioText,
		"audio_type":      existing.AudioType,
		"options":         existing.OptionList(),
		"correct":         existing.CorrectAnswer,
		"explanation":     existing.Explanation,
		"grammar_rule":    existing.GrammarRule,
	}
	setString := func(key string, v *string) {
		if v != nil {
			c[key] = *v
		}
	}
	setString("type", upd.Type)
	setString("difficulty", upd.Difficulty)
	setString("question", upd.Question)
	setString("classic_text", upd.ClassicText)
	setString("modern_text", upd.ModernText)
	setString("comic_reference", upd.ComicReference)
	setString("explanation", upd.Explanation)
	setString("grammar_rule", upd.GrammarRule)
	if upd.Options != nil {
		c["options"] = upd.Options
	}
	if upd.CorrectAnswer != nil {
		c["correct"] = upd.CorrectAnswer
	}

	ex, err := validateAuthored(c)
	if err != nil {
		return nil, err
	}
	updated, err := toExerciseModel(ex)
	if err != nil {
		return nil, err
	}
	updated.UUIDBase = existing.UUIDBase
	updated.ModuleID = existing.ModuleID
	updated.Position = existing.Position
	if err := s.ModuleRepo.SaveExercise(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ModuleService) DeleteExercise(id string) error {
	return s.ModuleRepo.DeleteExercise(id)
}

// PanelAudio 分镜语音
type PanelAudio struct {
	PanelNumber            int     `json:"panel_number"`
	DialogueAudio          string  `json:"dialogue_audio,omitempty"`
	NarrationAudio         string  `json:"narration_audio,omitempty"`
	DialogueAudioDuration  float64 `json:"dialogue_audio_duration,omitempty"`
	NarrationAudioDuration float64 `json:"narration_audio_duration,omitempty"`
}

// SavePanelAudio 保存对白或旁白语音。未给出时长时尝试用 ffprobe 读取，失败不影响保存
func (s *ModuleService) SavePanelAudio(moduleID string, panelNumber int, kind, audioData string, duration float64) error {
	data, mime, err := util.DecodeDataURI(audioData)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidMedia, err)
	}
	if duration <= 0 {
		if info, probeErr := util.ProbeAudio(data); probeErr == nil {
			duration = info.Duration
		} else {
			logger.Log.Debug("Audio probe skipped", zap.String("mime", mime), zap.Error(probeErr))
		}
	}
	return s.ModuleRepo.UpdatePanelAudio(moduleID, panelNumber, kind, audioData, duration)
}

func (s *ModuleService) GetPanelAudio(moduleID string, panelNumber int) (*PanelAudio, error) {
	panel, err := s.ModuleRepo.FindPanel(moduleID, panelNumber)
	if err != nil {
		return nil, err
	}
	return &PanelAudio{
		PanelNumber:            panel.PanelNumber,
		DialogueAudio:          panel.DialogueAudioBase64,
		NarrationAudio:         panel.NarrationAudioBase64,
		DialogueAudioDuration:  panel.DialogueAudioDuration,
		NarrationAudioDuration: panel.NarrationAudioDuration,
	}, nil
}
