package repository

import (
	"comic_english_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

// UserFilter 用户列表筛选条件
type UserFilter struct {
	Role     model.UserRole
	Search   string
	IsActive *bool
	Page     int
	Limit    int
}

func (r *UserRepository) Create(user *model.User) error {
	return r.DB.Create(user).Error
}

func (r *UserRepository) FindByID(id uint) (*model.User, error) {
	var user model.User
	err := r.DB.First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(email string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByUsername(username string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ?", username).First(&user).Error
	return &user, err
}

// FindByLogin 用户名或邮箱登录
func (r *UserRepository) FindByLogin(identifier string) (*model.User, error) {
	var user model.User
	err := r.DB.Where("username = ? OR email = ?", identifier, identifier).First(&user).Error
	return &user, err
}

// EmailTaken 邮箱是否已被其他用户使用
func (r *UserRepository) EmailTaken(email string, excludeID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("email = ? AND id <> ?", email, excludeID).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) UsernameTaken(username string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) Update(user *model.User) error {
	return r.DB.Save(user).Error
}

// RecordLogin 登录成功后累加登录次数并刷新时间
func (r *UserRepository) RecordLogin(userID uint, at time.Time) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"login_count": gorm.Expr("login_count + ?", 1),
			"last_login":  at,
			"last_active": at,
		}).Error
}

func (r *UserRepository) TouchLastActive(userID uint, at time.Time) error {
	return r.DB.Model(&model.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_active", at).Error
}

func (r *UserRepository) List(filter UserFilter) ([]model.User, int64, error) {
	query := r.DB.Model(&model.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("username LIKE ? OR email LIKE ? OR full_name LIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	err := query.Order("id ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&users).Error
	return users, total, err
}

// ListByRole 按 id 升序返回，排行榜同分时以此顺序为准
func (r *UserRepository) ListByRole(role model.UserRole) ([]model.User, error) {
	var users []model.User
	err := r.DB.Where("role = ?", role).Order("id ASC").Find(&users).Error
	return users, err
}

// UserCounts 用户统计
type UserCounts struct {
	Total         int64 `json:"total_users"`
	Students      int64 `json:"total_students"`
	Teachers      int64 `json:"total_teachers"`
	Active        int64 `json:"active_users"`
	Inactive      int64 `json:"inactive_users"`
	RecentSignups int64 `json:"recent_registrations"`
}

func (r *UserRepository) Counts(since time.Time) (*UserCounts, error) {
	var counts UserCounts
	m := r.DB.Model(&model.User{})
	if err := m.Count(&counts.Total).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.User{}).Where("role = ?", model.Student).Count(&counts.Students).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.User{}).Where("role = ?", model.Teacher).Count(&counts.Teachers).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.User{}).Where("is_active = ?", true).Count(&counts.Active).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.User{}).Where("created_at >= ?", since).Count(&counts.RecentSignups).Error; err != nil {
		return nil, err
	}
	counts.Inactive = counts.Total - counts.Active
	return &counts, nil
}

// Delete 删除用户及其学习记录、作答记录
func (r *UserRepository) Delete(userID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := deleteProgress(tx, "user_id = ?", userID); err != nil {
			return err
		}
		return tx.Delete(&model.User{}, userID).Error
	})
}

// deleteProgress 删除匹配条件的学习记录及其作答，返回删除的学习记录数
func deleteProgress(tx *gorm.DB, where string, args ...interface{}) (int64, error) {
	progressIDs := tx.Model(&model.UserProgress{}).Select("id").Where(where, args...)
	if err := tx.Where("progress_id IN (?)", progressIDs).Delete(&model.UserAnswer{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where(where, args...).Delete(&model.UserProgress{})
	return res.RowsAffected, res.Error
}
