package service

import (
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/repository"
	"comic_english_backend/internal/stats"
	"comic_english_backend/internal/util"
	"comic_english_backend/pkg/logger"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService 教师端的用户管理
type UserService struct {
	UserRepo     *repository.UserRepository
	ProgressRepo *repository.ProgressRepository
	// 删除或重置学习记录后刷新排行榜缓存
	OnProgressChanged func()
}

func NewUserService(userRepo *repository.UserRepository, progressRepo *repository.ProgressRepository) *UserService {
	return &UserService{
		UserRepo:     userRepo,
		ProgressRepo: progressRepo,
	}
}

// UserWithStats 用户及其学习汇总
type UserWithStats struct {
	model.User
	Stats *stats.Summary `json:"stats,omitempty"`
}

type UserListQuery struct {
	Role     string `form:"role" binding:"omitempty,oneof=student teacher"`
	Search   string `form:"search"`
	IsActive *bool  `form:"is_active"`
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
}

func (s *UserService) ListUsers(q UserListQuery) ([]UserWithStats, int64, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = util.DefaultPageSize
	}
	limit = util.Clamp(limit, 1, util.MaxPageSize)

	users, total, err := s.UserRepo.List(repository.UserFilter{
		Role:     model.UserRole(q.Role),
		Search:   strings.TrimSpace(q.Search),
		IsActive: q.IsActive,
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		if u.Role == model.Student {
			ids = append(ids, u.ID)
		}
	}
	summaries := map[uint]stats.Summary{}
	if len(ids) > 0 {
		records, err := s.ProgressRepo.List(repository.ProgressFilter{UserIDs: ids})
		if err != nil {
			return nil, 0, err
		}
		for _, sum := range stats.FoldByUser(ids, toAttempts(records)) {
			summaries[sum.UserID] = sum
		}
	}

	result := make([]UserWithStats, len(users))
	for i, u := range users {
		result[i] = UserWithStats{User: u}
		if u.Role == model.Student {
			sum, ok := summaries[u.ID]
			if !ok {
				sum = stats.Fold(u.ID, nil)
			}
			result[i].Stats = &sum
		}
	}
	return result, total, nil
}

func (s *UserService) findUser(id uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetUser(id uint) (*UserWithStats, error) {
	user, err := s.findUser(id)
	if err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUser(id)
	if err != nil {
		return nil, err
	}
	sum := stats.Fold(id, toAttempts(records))
	return &UserWithStats{User: *user, Stats: &sum}, nil
}

// UserProgressItem 用户在单个模块上的学习记录
type UserProgressItem struct {
	model.UserProgress
	ModuleName string  `json:"module_name"`
	Accuracy   float64 `json:"accuracy"`
}

func (s *UserService) UserProgress(id uint, moduleNames map[string]string) ([]UserProgressItem, error) {
	if _, err := s.findUser(id); err != nil {
		return nil, err
	}
	records, err := s.ProgressRepo.ListByUser(id)
	if err != nil {
		return nil, err
	}
	return progressItems(records, moduleNames), nil
}

type UpdateUserRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name" binding:"omitempty,max=100"`
	Role     *string `json:"role" binding:"omitempty,oneof=student teacher"`
	IsActive *bool   `json:"is_active"`
}

// UpdateUser 教师不能修改其他教师；只有学生账号可以改角色
func (s *UserService) UpdateUser(actorID, targetID uint, req UpdateUserRequest) (*model.User, error) {
	user, err := s.findUser(targetID)
	if err != nil {
		return nil, err
	}
	if user.Role == model.Teacher && user.ID != actorID {
		return nil, util.ErrPermissionDenied
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		taken, err := s.UserRepo.EmailTaken(email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, util.ErrEmailRegistered
		}
		user.Email = email
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	roleChanged := false
	if req.Role != nil && model.UserRole(*req.Role) != user.Role {
		role := model.UserRole(*req.Role)
		if !role.Valid() {
			return nil, util.ErrInvalidRole
		}
		if user.Role != model.Student {
			return nil, util.ErrPermissionDenied
		}
		user.Role = role
		roleChanged = true
	}
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		if user.Role == model.Teacher || user.ID == actorID {
			return nil, util.ErrPermissionDenied
		}
		user.IsActive = *req.IsActive
	}

	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	logger.Log.Info("User updated", zap.Uint("actorId", actorID), zap.Uint("userId", user.ID))
	// 学生变为教师后不再出现在排行榜
	if roleChanged {
		s.progressChanged()
	}
	return user, nil
}

// ToggleStatus 切换启用状态，不能作用于教师或自己
func (s *UserService) ToggleStatus(actorID, targetID uint) (*model.User, error) {
	user, err := s.findUser(targetID)
	if err != nil {
		return nil, err
	}
	if user.Role == model.Teacher || user.ID == actorID {
		return nil, util.ErrPermissionDenied
	}
	user.IsActive = !user.IsActive
	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteUser 删除学生及其全部学习记录，不能删除教师或自己
func (s *UserService) DeleteUser(actorID, targetID uint) error {
	user, err := s.findUser(targetID)
	if err != nil {
		return err
	}
	if user.Role == model.Teacher || user.ID == actorID {
		return util.ErrPermissionDenied
	}
	if err := s.UserRepo.Delete(user.ID); err != nil {
		return err
	}
	s.progressChanged()
	logger.Log.Info("User deleted", zap.Uint("actorId", actorID), zap.Uint("userId", targetID))
	return nil
}

// ResetProgress 清空学生的学习记录，返回删除的记录数
func (s *UserService) ResetProgress(targetID uint) (int64, error) {
	if _, err := s.findUser(targetID); err != nil {
		return 0, err
	}
	n, err := s.ProgressRepo.DeleteByUser(targetID)
	if err != nil {
		return 0, err
	}
	s.progressChanged()
	return n, nil
}

func (s *UserService) progressChanged() {
	if s.OnProgressChanged != nil {
		s.OnProgressChanged()
	}
}

// StatisticsOverview 用户和学习记录总览
type StatisticsOverview struct {
	repository.UserCounts
	TotalAttempts  int64   `json:"total_attempts"`
	Completed      int64   `json:"completed_attempts"`
	CompletionRate float64 `json:"completion_rate"`
}

func (s *UserService) Statistics(now time.Time) (*StatisticsOverview, error) {
	users, err := s.UserRepo.Counts(now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	progress, err := s.ProgressRepo.Counts()
	if err != nil {
		return nil, err
	}
	return &StatisticsOverview{
		UserCounts:     *users,
		TotalAttempts:  progress.Attempts,
		Completed:      progress.Completed,
		CompletionRate: stats.Percent(int(progress.Completed), int(progress.Attempts)),
	}, nil
}
