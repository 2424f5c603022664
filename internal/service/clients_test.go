package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comic_english_backend/internal/config"
	"comic_english_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAIService_Generate(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": "  Hello there  "}}},
		})
	}))
	defer srv.Close()

	s := NewAIService(config.AIConfig{BaseURL: srv.URL + "/", APIKey: "key", Model: "test-model", MaxTokens: 100})
	out, err := s.Generate(context.Background(), "sys", "user", 0.3)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, 0.3, got.Temperature)
}

func TestAIService_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer bad" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": map[string]string{"message": "invalid key"}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	_, err := NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "bad"}).Generate(context.Background(), "s", "u", 0.7)
	assert.ErrorIs(t, err, util.ErrExternalService)
	assert.Contains(t, err.Error(), "invalid key")

	_, err = NewAIService(config.AIConfig{BaseURL: srv.URL, APIKey: "good"}).Generate(context.Background(), "s", "u", 0.7)
	assert.ErrorIs(t, err, util.ErrExternalService)
}

func TestComfyUIService_GenerateImage(t *testing.T) {
	polls := 0
	var workflow map[string]map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt map[string]map[string]any `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		workflow = body.Prompt
		writeJSON(w, http.StatusOK, map[string]string{"prompt_id": "p1"})
	})
	mux.HandleFunc("/history/p1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"p1": map[string]any{"outputs": map[string]any{
				"9": map[string]any{"images": []any{map[string]string{"filename": "panel.png", "type": "output"}}},
			}},
		})
	})
	mux.HandleFunc("/view", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "panel.png", r.URL.Query().Get("filename"))
		w.Write([]byte("PNGDATA"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewComfyUIService(config.ComfyUIConfig{URL: srv.URL, Checkpoint: "model.safetensors"})
	s.PollInterval = time.Millisecond
	data, err := s.GenerateImage(context.Background(), ImageRequest{Prompt: "a comic panel"})
	require.NoError(t, err)
	assert.Equal(t, []byte("PNGDATA"), data)
	assert.Equal(t, 2, polls)

	require.Contains(t, workflow, "3")
	inputs := workflow["3"]["inputs"].(map[string]any)
	assert.Equal(t, float64(defaultImageSteps), inputs["steps"])
	assert.Equal(t, "a comic panel", workflow["6"]["inputs"].(map[string]any)["text"])
}

func TestComfyUIService_Timeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/prompt", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"prompt_id": "p2"})
	})
	mux.HandleFunc("/history/p2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewComfyUIService(config.ComfyUIConfig{URL: srv.URL, MaxPollAttempts: 3})
	s.PollInterval = time.Millisecond
	_, err := s.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, util.ErrImageTimeout)
}

func TestTTSService_Synthesize(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/synthesize", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("MP3DATA"))
	}))
	defer srv.Close()

	s := NewTTSService(config.TTSConfig{URL: srv.URL, DefaultVoice: "classic"})
	audio, err := s.Synthesize(context.Background(), "**Romeo**: Hello &amp; welcome", "narrator")
	require.NoError(t, err)
	assert.Equal(t, []byte("MP3DATA"), audio)
	assert.Equal(t, Voices["narrator"], got["voice"])
	assert.NotContains(t, got["text"], "**")

	_, err = s.Synthesize(context.Background(), "Hello", "robot")
	require.NoError(t, err)
	assert.Equal(t, Voices["classic"], got["voice"])

	audio, err = s.Synthesize(context.Background(), "   ", "modern")
	require.NoError(t, err)
	assert.Nil(t, audio)
}

func TestTTSService_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewTTSService(config.TTSConfig{URL: srv.URL}).Synthesize(context.Background(), "Hello", "modern")
	assert.ErrorIs(t, err, util.ErrExternalService)
}
