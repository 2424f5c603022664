package service

import (
	"comic_english_backend/internal/config"
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	Cfg          *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
		Cfg:          cfg,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"max=100"`
	Role     string `json:"role" binding:"omitempty,oneof=student teacher"`
}

func (s *AuthService) Register(req RegisterRequest) (*model.User, error) {
	role := model.UserRole(req.Role)
	if role == "" {
		role = model.Student
	}
	if !role.Valid() {
		return nil, util.ErrInvalidRole
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	taken, err := s.UserRepo.UsernameTaken(username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, util.ErrUsernameTaken
	}
	taken, err = s.UserRepo.EmailTaken(email, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, util.ErrEmailRegistered
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
		IsActive: true,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	logger.Log.Info("User registered", zap.Uint("userId", user.ID), zap.String("role", string(role)))
	return user, nil
}

type LoginResult struct {
	Token string      `json:"access_token"`
	Type  string      `json:"token_type"`
	User  *model.User `json:"user"`
}

// Login 支持用户名或邮箱登录
func (s *AuthService) Login(identifier, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByLogin(strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrInvalidCredential
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, util.ErrAccountDisabled
	}

	now := time.Now()
	if err := s.UserRepo.RecordLogin(user.ID, now); err != nil {
		return nil, err
	}
	user.LoginCount++
	user.LastLogin = &now
	user.LastActive = &now

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, Type: "bearer", User: user}, nil
}

func (s *AuthService) CurrentUser(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

// Activity 当前用户的登录和学习概况
type Activity struct {
	LoginCount       int        `json:"login_count"`
	LastLogin        *time.Time `json:"last_login"`
	LastActive       *time.Time `json:"last_active"`
	MemberSince      time.Time  `json:"member_since"`
	ModulesAttempted int        `json:"modules_attempted"`
	ModulesCompleted int        `json:"modules_completed"`
	TotalScore       int        `json:"total_score"`
	Accuracy         float64    `json:"accuracy"`
}

func (s *AuthService) Activity(userID uint) (*Activity, error) {
	user, err := s.CurrentUser(userID)
	if err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	summary := stats.Fold(userID, toAttempts(records))
	return &Activity{
		LoginCount:       user.LoginCount,
		LastLogin:        user.LastLogin,
		LastActive:       user.LastActive,
		MemberSince:      user.CreatedAt,
		ModulesAttempted: summary.ModulesAttempted,
		ModulesCompleted: summary.ModulesCompleted,
		TotalScore:       summary.TotalScore,
		Accuracy:         summary.Accuracy,
	}, nil
}

// TouchLastActive 供活跃度中间件调用
func (s *AuthService) TouchLastActive(userID uint) error {
	return s.UserRepo.TouchLastActive(userID, time.Now())
}
