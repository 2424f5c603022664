package service

import (
	"comic_english_backend/internal/config"
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// 可选音色
var Voices = map[string]string{
	"classic":  "en-GB-RyanNeural",
	"modern":   "en-US-GuyNeural",
	"narrator": "en-US-AriaNeural",
	"male":     "en-US-DavisNeural",
	"female":   "en-US-JennyNeural",
}

const (
	VoiceDialogue  = "modern"
	VoiceNarration = "narrator"
)

// SpeechSynthesizer 语音合成接口。没有可朗读内容时返回 (nil, nil)
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

type TTSService struct {
	client       *resty.Client
	defaultVoice string
}

func NewTTSService(cfg config.TTSConfig) *TTSService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	voice := cfg.DefaultVoice
	if _, ok := Voices[voice]; !ok {
		voice = VoiceDialogue
	}
	return &TTSService{
		client:       resty.New().SetBaseURL(strings.TrimRight(cfg.URL, "/")).SetTimeout(timeout),
		defaultVoice: voice,
	}
}

// Synthesize 清理文本后合成语音，未知音色回退到默认音色
func (s *TTSService) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	cleaned := generation.CleanSpeechText(text)
	if cleaned == "" || generation.IsSilentDialogue(cleaned) {
		return nil, nil
	}

	voiceName, ok := Voices[voice]
	if !ok {
		logger.Log.Warn("Unknown voice type, using default", zap.String("voice", voice))
		voiceName = Voices[s.defaultVoice]
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": cleaned, "voice": voiceName}).
		Post("/synthesize")
	if err != nil {
		return nil, util.ExternalError("tts", err)
	}
	if resp.IsError() {
		return nil, util.ExternalError("tts", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}
	if len(resp.Body()) == 0 {
		return nil, util.ExternalError("tts", fmt.Errorf("empty audio for voice %s", voiceName))
	}
	return resp.Body(), nil
}
