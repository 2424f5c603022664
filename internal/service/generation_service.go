package service

import (
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"comic_english_backend/pkg/monitoring"
	"comic_english_backend/pkg/tracing"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// 生成步骤，同时用作指标标签和进度事件名
const (
	KindModernize  = "modernize"
	KindScript     = "script"
	KindCharacters = "characters"
	KindImage      = "image"
	KindAudio      = "audio"
	KindExercises  = "exercises"
	KindSave       = "save"
)

// GenerationService 串联文本、图片、语音三个外部服务，并负责解析和校验模型输出
type GenerationService struct {
	LLM      TextGenerator
	Images   ImageGenerator
	Speech   SpeechSynthesizer
	Storage  *StorageService
	Notifier ProgressNotifier
	Modules  *ModuleService
}

func NewGenerationService(llm TextGenerator, images ImageGenerator, speech SpeechSynthesizer,
	storage *StorageService, notifier ProgressNotifier, modules *ModuleService) *GenerationService {
	return &GenerationService{
		LLM:      llm,
		Images:   images,
		Speech:   speech,
		Storage:  storage,
		Notifier: notifier,
		Modules:  modules,
	}
}

func (s *GenerationService) complete(ctx context.Context, kind string, p generation.Prompt) (string, error) {
	ctx, end := tracing.StartSpan(ctx, "llm."+kind, attribute.Float64("temperature", p.Temperature))
	text, err := s.LLM.Generate(ctx, p.System, p.User, p.Temperature)
	end(err)
	monitoring.ObserveGeneration(kind, err)
	return text, err
}

// Modernize 将古典英语改写为现代英语
func (s *GenerationService) Modernize(ctx context.Context, classicText string) (string, error) {
	text, err := s.complete(ctx, KindModernize, generation.ModernizePrompt(classicText))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", util.ExternalError("llm", errors.New("empty modernized text"))
	}
	return text, nil
}

type ComicScriptResult struct {
	Script     string                   `json:"script"`
	Panels     []generation.PanelScript `json:"panels"`
	Characters []generation.Character   `json:"characters"`
}

// GenerateComicScript 生成漫画脚本，同时提取角色。角色提取失败不影响脚本
func (s *GenerationService) GenerateComicScript(ctx context.Context, classicText, modernText string, panelCount int) (*ComicScriptResult, error) {
	var (
		wg         sync.WaitGroup
		characters []generation.Character
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		characters = s.ExtractCharacters(ctx, classicText, modernText)
	}()

	script, err := s.complete(ctx, KindScript, generation.ComicScriptPrompt(classicText, modernText, panelCount))
	wg.Wait()
	if err != nil {
		return nil, err
	}

	panels := generation.ParseComicScript(script)
	if len(panels) == 0 {
		logger.Log.Warn("Comic script has no panels", zap.Int("length", len(script)))
		return nil, util.ExternalError("llm", errors.New("comic script contains no panels"))
	}

	return &ComicScriptResult{Script: script, Panels: panels, Characters: characters}, nil
}

// ExtractCharacters 角色提取，任何失败都返回空列表
func (s *GenerationService) ExtractCharacters(ctx context.Context, classicText, modernText string) []generation.Character {
	raw, err := s.complete(ctx, KindCharacters, generation.CharacterPrompt(classicText, modernText))
	if err != nil {
		logger.Log.Warn("Character extraction failed", zap.Error(err))
		return []generation.Character{}
	}
	characters, err := generation.ParseCharacters(raw)
	if err != nil {
		logger.Log.Warn("Character response malformed", zap.Error(err))
		return []generation.Character{}
	}
	return characters
}

type PanelImageRequest struct {
	Panel      generation.PanelScript `json:"panel" binding:"required"`
	Characters []generation.Character `json:"characters"`
	Width      int                    `json:"width" binding:"omitempty,min=256,max=2048"`
	Height     int                    `json:"height" binding:"omitempty,min=256,max=2048"`
	Steps      int                    `json:"steps" binding:"omitempty,min=1,max=150"`
	CFG        float64                `json:"cfg" binding:"omitempty,min=1,max=30"`
	Seed       int64                  `json:"seed"`
	Batch      string                 `json:"batch"`
}

type PanelImageResult struct {
	PanelNumber int    `json:"panel_number"`
	ImageData   string `json:"image_data"`
	ImageURL    string `json:"image_url,omitempty"`
	Prompt      string `json:"prompt"`
}

// GeneratePanelImage 渲染分镜图片；配置了对象存储时同时存档
func (s *GenerationService) GeneratePanelImage(ctx context.Context, req PanelImageRequest) (*PanelImageResult, error) {
	prompt := generation.BuildImagePrompt(req.Panel, req.Characters)

	ctx, end := tracing.StartSpan(ctx, "image.generate", attribute.Int("panel", req.Panel.Number))
	data, err := s.Images.GenerateImage(ctx, ImageRequest{
		Prompt: prompt,
		Width:  req.Width,
		Height: req.Height,
		Steps:  req.Steps,
		CFG:    req.CFG,
		Seed:   req.Seed,
	})
	end(err)
	monitoring.ObserveGeneration(KindImage, err)
	if err != nil {
		return nil, err
	}

	result := &PanelImageResult{
		PanelNumber: req.Panel.Number,
		ImageData:   base64.StdEncoding.EncodeToString(data),
		Prompt:      prompt,
	}
	result.ImageURL = s.archive(ctx, req.Batch, req.Panel.Number, KindImage, data, util.MimePNG)
	return result, nil
}

// archive 存档失败只记录日志
func (s *GenerationService) archive(ctx context.Context, batch string, panel int, kind string, data []byte, mime string) string {
	if s.Storage == nil || len(data) == 0 {
		return ""
	}
	if batch == "" {
		batch = uuid.NewString()
	}
	url, err := s.Storage.ArchivePanelAsset(ctx, batch, panel, kind, data, mime)
	if err != nil {
		logger.Log.Warn("Archive panel asset failed", zap.Int("panel", panel), zap.String("kind", kind), zap.Error(err))
		return ""
	}
	return url
}

type PanelAudioRequest struct {
	PanelNumber int    `json:"panel_number"`
	Dialogue    string `json:"dialogue"`
	Narration   string `json:"narration"`
	Batch       string `json:"batch"`
}

// PanelAudioResult 没有可朗读内容或合成失败的音轨为空
type PanelAudioResult struct {
	PanelNumber       int      `json:"panel_number"`
	DialogueAudio     string   `json:"dialogue_audio,omitempty"`
	NarrationAudio    string   `json:"narration_audio,omitempty"`
	DialogueDuration  float64  `json:"dialogue_audio_duration,omitempty"`
	NarrationDuration float64  `json:"narration_audio_duration,omitempty"`
	DialogueURL       string   `json:"dialogue_audio_url,omitempty"`
	NarrationURL      string   `json:"narration_audio_url,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

type audioTrack struct {
	data     string
	duration float64
	url      string
	err      error
}

func (s *GenerationService) synthesize(ctx context.Context, req PanelAudioRequest, kind, text, voice string) audioTrack {
	if generation.IsSilentDialogue(generation.CleanSpeechText(text)) {
		return audioTrack{}
	}

	ctx, end := tracing.StartSpan(ctx, "tts.synthesize", attribute.String("track", kind))
	audio, err := s.Speech.Synthesize(ctx, text, voice)
	end(err)
	monitoring.ObserveGeneration(KindAudio, err)
	if err != nil || len(audio) == 0 {
		return audioTrack{err: err}
	}

	track := audioTrack{data: base64.StdEncoding.EncodeToString(audio)}
	if info, probeErr := util.ProbeAudio(audio); probeErr == nil {
		track.duration = info.Duration
	}
	track.url = s.archive(ctx, req.Batch, req.PanelNumber, kind, audio, util.MimeWAV)
	return track
}

// GeneratePanelAudio 分别合成对白（modern 音色）和旁白（narrator 音色）。
// 所有需要合成的音轨都失败时才返回错误
func (s *GenerationService) GeneratePanelAudio(ctx context.Context, req PanelAudioRequest) (*PanelAudioResult, error) {
	var dialogue, narration audioTrack
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		dialogue = s.synthesize(ctx, req, util.AudioDialogue, req.Dialogue, VoiceDialogue)
	}()
	go func() {
		defer wg.Done()
		narration = s.synthesize(ctx, req, util.AudioNarration, req.Narration, VoiceNarration)
	}()
	wg.Wait()

	result := &PanelAudioResult{
		PanelNumber:       req.PanelNumber,
		DialogueAudio:     dialogue.data,
		NarrationAudio:    narration.data,
		DialogueDuration:  dialogue.duration,
		NarrationDuration: narration.duration,
		DialogueURL:       dialogue.url,
		NarrationURL:      narration.url,
	}

	var errs []error
	for _, track := range []audioTrack{dialogue, narration} {
		if track.err != nil {
			errs = append(errs, track.err)
			result.Errors = append(result.Errors, track.err.Error())
		}
	}
	if len(errs) > 0 && result.DialogueAudio == "" && result.NarrationAudio == "" {
		return nil, errors.Join(errs...)
	}
	return result, nil
}

type ExerciseGenerationRequest struct {
	ClassicText  string                   `json:"classic_text" binding:"required"`
	ModernText   string                   `json:"modern_text" binding:"required"`
	Panels       []generation.PanelScript `json:"panels"`
	Topics       []string                 `json:"grammar_topics"`
	NumQuestions int                      `json:"num_questions" binding:"omitempty,min=1,max=30"`
	Difficulty   string                   `json:"difficulty" binding:"omitempty,difficulty"`
	Characters   []generation.Character   `json:"characters"`
}

type ExerciseGenerationResult struct {
	Exercises  []generation.Exercise  `json:"exercises"`
	Accepted   int                    `json:"accepted"`
	Rejected   int                    `json:"rejected"`
	Rejections []generation.Rejection `json:"rejections"`
	Tier       string                 `json:"tier"`
	Message    string                 `json:"message"`
}

// GenerateExercises 生成练习：模型输出经过三级解析，再按生成规则逐条校验
func (s *GenerationService) GenerateExercises(ctx context.Context, req ExerciseGenerationRequest) (*ExerciseGenerationResult, error) {
	numQuestions := req.NumQuestions
	if numQuestions <= 0 {
		numQuestions = 5
	}
	raw, err := s.complete(ctx, KindExercises, generation.ExercisePrompt(generation.ExerciseRequest{
		ClassicText:  req.ClassicText,
		ModernText:   req.ModernText,
		Panels:       req.Panels,
		Topics:       req.Topics,
		NumQuestions: numQuestions,
		Difficulty:   req.Difficulty,
		Characters:   req.Characters,
	}))
	if err != nil {
		return nil, err
	}

	candidates, tier, err := generation.RecoverExercises(raw, numQuestions)
	if err != nil {
		logger.Log.Error("Exercise parsing failed", zap.Error(err), zap.Int("length", len(raw)))
		return nil, util.ExternalError("llm", err)
	}
	monitoring.ParseTierCounter.WithLabelValues(tier.String()).Inc()
	if tier != generation.TierDirect {
		logger.Log.Info("Exercises recovered by fallback parser", zap.String("tier", tier.String()), zap.Int("candidates", len(candidates)))
	}

	batch, err := generation.PipelineRules.ValidateBatch(candidates)
	logRejections(batch.Rejections)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrNoValidExercises, batch.Summary())
	}

	return &ExerciseGenerationResult{
		Exercises:  batch.Exercises,
		Accepted:   len(batch.Exercises),
		Rejected:   len(batch.Rejections),
		Rejections: batch.Rejections,
		Tier:       tier.String(),
		Message:    batch.Summary(),
	}, nil
}

type PipelineRequest struct {
	ModuleName     string   `json:"module_name" binding:"required,max=255"`
	ClassicText    string   `json:"classic_text" binding:"required"`
	PanelCount     int      `json:"panel_count" binding:"omitempty,min=1,max=12"`
	Topics         []string `json:"grammar_topics"`
	NumQuestions   int      `json:"num_questions" binding:"omitempty,min=1,max=30"`
	Difficulty     string   `json:"difficulty" binding:"omitempty,difficulty"`
	GenerateImages bool     `json:"generate_images"`
	GenerateAudio  bool     `json:"generate_audio"`
}

// CreateModulePipeline 完整生成流程：现代文、脚本和角色、（可选）图片与语音、练习，最后保存。
// 每一步都向发起的教师推送进度
func (s *GenerationService) CreateModulePipeline(ctx context.Context, userID uint, req PipelineRequest) (*SaveModuleResult, error) {
	ctx, end := tracing.StartSpan(ctx, "generation.pipeline", attribute.Int("user", int(userID)))
	result, err := s.runPipeline(ctx, userID, req)
	end(err)
	return result, err
}

func (s *GenerationService) runPipeline(ctx context.Context, userID uint, req PipelineRequest) (*SaveModuleResult, error) {
	step := func(name string, fn func() (string, error)) error {
		s.notify(userID, ProgressEvent{Step: name, Status: StepStarted})
		detail, err := fn()
		if err != nil {
			s.notify(userID, ProgressEvent{Step: name, Status: StepFailed, Detail: err.Error()})
			return err
		}
		s.notify(userID, ProgressEvent{Step: name, Status: StepCompleted, Detail: detail})
		return nil
	}

	var (
		modern    string
		script    *ComicScriptResult
		exercises *ExerciseGenerationResult
		saved     *SaveModuleResult
	)
	batch := uuid.NewString()

	if err := step(KindModernize, func() (string, error) {
		var err error
		modern, err = s.Modernize(ctx, req.ClassicText)
		return "", err
	}); err != nil {
		return nil, err
	}

	if err := step(KindScript, func() (string, error) {
		var err error
		script, err = s.GenerateComicScript(ctx, req.ClassicText, modern, req.PanelCount)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d panels, %d characters", len(script.Panels), len(script.Characters)), nil
	}); err != nil {
		return nil, err
	}

	panels := make([]PanelInput, len(script.Panels))
	for i, p := range script.Panels {
		panels[i] = PanelInput{
			PanelNumber: p.Number,
			Dialogue:    p.Dialogue,
			Narration:   p.Narration,
			Visual:      p.Visual,
			Setting:     p.Setting,
			Mood:        p.Mood,
			Composition: p.Composition,
		}
	}

	// 单个分镜的图片或语音失败时该素材留空
	if req.GenerateImages {
		_ = step(KindImage, func() (string, error) {
			rendered := 0
			for i, p := range script.Panels {
				img, err := s.GeneratePanelImage(ctx, PanelImageRequest{Panel: p, Characters: script.Characters, Batch: batch})
				if err != nil {
					logger.Log.Warn("Panel image failed", zap.Int("panel", p.Number), zap.Error(err))
					continue
				}
				panels[i].ImageData = img.ImageData
				panels[i].ImageURL = img.ImageURL
				rendered++
			}
			return fmt.Sprintf("%d of %d images", rendered, len(script.Panels)), nil
		})
	}
	if req.GenerateAudio {
		_ = step(KindAudio, func() (string, error) {
			tracks := 0
			for i, p := range script.Panels {
				audio, err := s.GeneratePanelAudio(ctx, PanelAudioRequest{PanelNumber: p.Number, Dialogue: p.Dialogue, Narration: p.Narration, Batch: batch})
				if err != nil {
					logger.Log.Warn("Panel audio failed", zap.Int("panel", p.Number), zap.Error(err))
					continue
				}
				panels[i].DialogueAudio = audio.DialogueAudio
				panels[i].NarrationAudio = audio.NarrationAudio
				panels[i].DialogueAudioDuration = audio.DialogueDuration
				panels[i].NarrationAudioDuration = audio.NarrationDuration
				if audio.DialogueAudio != "" {
					tracks++
				}
				if audio.NarrationAudio != "" {
					tracks++
				}
			}
			return fmt.Sprintf("%d audio tracks", tracks), nil
		})
	}

	if err := step(KindExercises, func() (string, error) {
		var err error
		exercises, err = s.GenerateExercises(ctx, ExerciseGenerationRequest{
			ClassicText:  req.ClassicText,
			ModernText:   modern,
			Panels:       script.Panels,
			Topics:       req.Topics,
			NumQuestions: req.NumQuestions,
			Difficulty:   req.Difficulty,
			Characters:   script.Characters,
		})
		if err != nil {
			return "", err
		}
		return exercises.Message, nil
	}); err != nil {
		return nil, err
	}

	if err := step(KindSave, func() (string, error) {
		var err error
		createdBy := userID
		saved, err = s.Modules.SaveGenerated(&createdBy, SaveModuleRequest{
			ModuleName:  strings.TrimSpace(req.ModuleName),
			ClassicText: req.ClassicText,
			ModernText:  modern,
			ComicScript: script.Script,
			Panels:      panels,
		}, generation.BatchResult{Exercises: exercises.Exercises, Rejections: exercises.Rejections})
		if err != nil {
			return "", err
		}
		return saved.ModuleID, nil
	}); err != nil {
		return nil, err
	}

	logger.Log.Info("Module pipeline finished", zap.Uint("userId", userID), zap.String("moduleId", saved.ModuleID))
	return saved, nil
}

func (s *GenerationService) notify(userID uint, event ProgressEvent) {
	if s.Notifier != nil {
		s.Notifier.Notify(userID, event)
	}
}
