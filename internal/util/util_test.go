package util

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comic_english_backend/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Username: "alice", Role: model.Teacher}
	user.ID = 42

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.IsTeacher())

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)

	expired, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.Error(t, err)
}

func TestDecodeDataURI(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	encoded := base64.StdEncoding.EncodeToString(png)

	data, mime, err := DecodeDataURI("data:image/png;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, MimePNG, mime)

	data, _, err = DecodeDataURI(encoded)
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, _, err = DecodeDataURI("")
	assert.Error(t, err)
	_, _, err = DecodeDataURI("data:image/png;base64")
	assert.Error(t, err)
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		want int
	}{
		{ErrModuleNotFound, http.StatusNotFound},
		{fmt.Errorf("delete: %w", ErrModuleHasAnswers), http.StatusConflict},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrInvalidCredential, http.StatusUnauthorized},
		{ErrNoValidExercises, http.StatusBadRequest},
		{ExternalError("llm", fmt.Errorf("boom")), http.StatusBadGateway},
		{fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		HandleError(c, tc.err)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}

func TestParseProbe(t *testing.T) {
	info, err := parseProbe(`{"streams":[{"codec_type":"audio","sample_rate":"22050"}],"format":{"duration":"3.250000","format_name":"wav"}}`)
	require.NoError(t, err)
	assert.Equal(t, 3.25, info.Duration)
	assert.Equal(t, 22050, info.SampleRate)
	assert.Equal(t, "wav", info.Format)

	_, err = parseProbe("not json")
	assert.Error(t, err)
}

func TestConv(t *testing.T) {
	assert.Equal(t, uint(12), MustParseUint("12"))
	assert.Equal(t, uint(0), MustParseUint("x"))
	assert.Equal(t, 7, IntDefault("x", 7))
	assert.Equal(t, 100, Clamp(500, 1, 100))
	assert.Equal(t, 1, Clamp(0, 1, 100))
	assert.Nil(t, BoolPtr(""))
	assert.True(t, *BoolPtr("true"))
}
