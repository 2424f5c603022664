package service

import (
	"comic_english_backend/internal/config"
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

// TextGenerator 文本生成接口，测试中用假实现替换
type TextGenerator interface {
	Generate(ctx context.Context, system, user string, temperature float64) (string, error)
}

type AIService struct {
	config config.AIConfig
	client *resty.Client
}

func NewAIService(cfg config.AIConfig) *AIService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &AIService{config: cfg, client: client}
}

type AIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []AIChatMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type ChatCompletionResponse struct {
	Choices []struct {
		Message AIChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate 调用 chat completions 接口，返回第一条回复的原始文本
func (s *AIService) Generate(ctx context.Context, system, user string, temperature float64) (string, error) {
	body := ChatCompletionRequest{
		Model: s.config.Model,
		Messages: []AIChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   s.config.MaxTokens,
	}

	var result ChatCompletionResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&result).
		Post("/chat/completions")
	if err != nil {
		return "", util.ExternalError("llm", err)
	}

	if resp.IsError() {
		msg := string(resp.Body())
		if result.Error != nil && result.Error.Message != "" {
			msg = result.Error.Message
		}
		logger.Log.Warn("LLM request failed", zap.Int("status", resp.StatusCode()), zap.String("error", msg))
		return "", util.ExternalError("llm", fmt.Errorf("status %d: %s", resp.StatusCode(), msg))
	}
	if len(result.Choices) == 0 {
		return "", util.ExternalError("llm", errors.New("empty choices in response"))
	}

	content := strings.TrimSpace(result.Choices[0].Message.Content)
	logger.Log.Debug("LLM response received", zap.String("model", s.config.Model), zap.Int("length", len(content)))
	return content, nil
}
