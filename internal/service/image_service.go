package service

import (
	"comic_english_backend/internal/config"
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultImageSize  = 1024
	defaultImageSteps = 25
	defaultImageCFG   = 7.5

	saveImageNode = "9"
)

// ImageRequest 一次绘图请求的参数，零值字段使用默认值
type ImageRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CFG            float64 `json:"cfg"`
	Seed           int64   `json:"seed"`
}

func (r ImageRequest) withDefaults(now time.Time) ImageRequest {
	if r.NegativePrompt == "" {
		r.NegativePrompt = generation.DefaultNegativePrompt
	}
	if r.Width <= 0 {
		r.Width = defaultImageSize
	}
	if r.Height <= 0 {
		r.Height = defaultImageSize
	}
	if r.Steps <= 0 {
		r.Steps = defaultImageSteps
	}
	if r.CFG <= 0 {
		r.CFG = defaultImageCFG
	}
	if r.Seed == 0 {
		r.Seed = now.UnixMilli() % 1000000
	}
	return r
}

// ImageGenerator 绘图接口，测试中用假实现替换
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error)
}

// ComfyUIService 提交工作流、轮询历史记录并下载生成的图片
type ComfyUIService struct {
	client       *resty.Client
	checkpoint   string
	PollInterval time.Duration
	MaxAttempts  int
}

func NewComfyUIService(cfg config.ComfyUIConfig) *ComfyUIService {
	interval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	attempts := cfg.MaxPollAttempts
	if attempts <= 0 {
		attempts = 60
	}
	return &ComfyUIService{
		client:       resty.New().SetBaseURL(strings.TrimRight(cfg.URL, "/")).SetTimeout(60 * time.Second),
		checkpoint:   cfg.Checkpoint,
		PollInterval: interval,
		MaxAttempts:  attempts,
	}
}

// buildWorkflow 生成 ComfyUI 的 API 格式工作流：
// 加载模型 -> 正/负提示词编码 -> 空 latent -> KSampler -> VAE 解码 -> 保存
func (s *ComfyUIService) buildWorkflow(req ImageRequest) map[string]any {
	node := func(class string, inputs map[string]any) map[string]any {
		return map[string]any{"class_type": class, "inputs": inputs}
	}
	return map[string]any{
		"4": node("CheckpointLoaderSimple", map[string]any{"ckpt_name": s.checkpoint}),
		"6": node("CLIPTextEncode", map[string]any{"text": req.Prompt, "clip": []any{"4", 1}}),
		"7": node("CLIPTextEncode", map[string]any{"text": req.NegativePrompt, "clip": []any{"4", 1}}),
		"5": node("EmptyLatentImage", map[string]any{"width": req.Width, "height": req.Height, "batch_size": 1}),
		"3": node("KSampler", map[string]any{
			"seed":         req.Seed,
			"steps":        req.Steps,
			"cfg":          req.CFG,
			"sampler_name": "euler",
			"scheduler":    "normal",
			"denoise":      1.0,
			"model":        []any{"4", 0},
			"positive":     []any{"6", 0},
			"negative":     []any{"7", 0},
			"latent_image": []any{"5", 0},
		}),
		"8":           node("VAEDecode", map[string]any{"samples": []any{"3", 0}, "vae": []any{"4", 2}}),
		saveImageNode: node("SaveImage", map[string]any{"filename_prefix": "comic_panel", "images": []any{"8", 0}}),
	}
}

// Submit 提交工作流，返回任务 ID
func (s *ComfyUIService) Submit(ctx context.Context, req ImageRequest) (string, error) {
	req = req.withDefaults(time.Now())

	var result struct {
		PromptID string `json:"prompt_id"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"prompt": s.buildWorkflow(req)}).
		SetResult(&result).
		Post("/prompt")
	if err != nil {
		return "", util.ExternalError("comfyui", err)
	}
	if resp.IsError() {
		return "", util.ExternalError("comfyui", fmt.Errorf("submit status %d: %s", resp.StatusCode(), resp.String()))
	}
	if result.PromptID == "" {
		return "", util.ExternalError("comfyui", errors.New("missing prompt_id"))
	}
	return result.PromptID, nil
}

type comfyImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type comfyHistory map[string]struct {
	Outputs map[string]struct {
		Images []comfyImage `json:"images"`
	} `json:"outputs"`
}

// Poll 查询一次任务状态。任务未完成时返回 (nil, false, nil)
func (s *ComfyUIService) Poll(ctx context.Context, promptID string) ([]byte, bool, error) {
	var history comfyHistory
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&history).
		Get("/history/" + promptID)
	if err != nil {
		return nil, false, util.ExternalError("comfyui", err)
	}
	if resp.IsError() {
		return nil, false, util.ExternalError("comfyui", fmt.Errorf("history status %d", resp.StatusCode()))
	}

	entry, ok := history[promptID]
	if !ok {
		return nil, false, nil
	}
	images := entry.Outputs[saveImageNode].Images
	if len(images) == 0 {
		return nil, false, nil
	}

	img := images[0]
	params := map[string]string{"filename": img.Filename}
	if img.Subfolder != "" {
		params["subfolder"] = img.Subfolder
	}
	if img.Type != "" {
		params["type"] = img.Type
	}
	view, err := s.client.R().SetContext(ctx).SetQueryParams(params).Get("/view")
	if err != nil {
		return nil, false, util.ExternalError("comfyui", err)
	}
	if view.IsError() {
		return nil, false, util.ExternalError("comfyui", fmt.Errorf("view status %d", view.StatusCode()))
	}
	return view.Body(), true, nil
}

// WaitForImage 按固定间隔轮询，超过最大次数返回 ErrImageTimeout
func (s *ComfyUIService) WaitForImage(ctx context.Context, promptID string) ([]byte, error) {
	timer := time.NewTimer(s.PollInterval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		data, done, err := s.Poll(ctx, promptID)
		if err != nil {
			return nil, err
		}
		if done {
			logger.Log.Debug("Image ready", zap.String("promptId", promptID), zap.Int("attempts", attempt))
			return data, nil
		}
		timer.Reset(s.PollInterval)
	}
	return nil, fmt.Errorf("%w: prompt %s after %d polls", util.ErrImageTimeout, promptID, s.MaxAttempts)
}

func (s *ComfyUIService) GenerateImage(ctx context.Context, req ImageRequest) ([]byte, error) {
	promptID, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.WaitForImage(ctx, promptID)
}
