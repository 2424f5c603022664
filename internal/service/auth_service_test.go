package service

import (
	"testing"
	"time"

	"comic_english_backend/internal/config"
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(f *fixture) *AuthService {
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	return NewAuthService(f.users, f.progress, cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)

	user, err := s.Register(RegisterRequest{Username: " bob ", Email: "Bob@Example.com", Password: "secret1", FullName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = s.Register(RegisterRequest{Username: "bob", Email: "other@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, util.ErrUsernameTaken)
	_, err = s.Register(RegisterRequest{Username: "bobby", Email: "bob@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	res, err := s.Login("bob@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.Type)
	assert.Equal(t, 1, res.User.LoginCount)
	claims, err := util.ParseJWT(res.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = s.Login("bob", "wrong")
	assert.ErrorIs(t, err, util.ErrInvalidCredential)
	_, err = s.Login("nobody", "secret1")
	assert.ErrorIs(t, err, util.ErrInvalidCredential)

	activity, err := s.Activity(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, activity.LoginCount)
	assert.NotNil(t, activity.LastLogin)
}

func TestLogin_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	s := newAuthService(f)
	user, err := s.Register(RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NoError(t, f.db.Model(user).Update("is_active", false).Error)

	_, err = s.Login("carol", "secret1")
	assert.ErrorIs(t, err, util.ErrAccountDisabled)
}

func TestCurrentUser_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := newAuthService(f).CurrentUser(12345)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
