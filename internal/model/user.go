package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
)

func (r UserRole) Valid() bool {
	return r == Student || r == Teacher
}

// swagger:model User
type User struct {
	BaseModel
	Username   string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email      string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password   string     `gorm:"size:100;not null" json:"-"`
	FullName   string     `gorm:"size:100" json:"full_name"`
	Role       UserRole   `gorm:"size:20;default:student;not null" json:"role"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	LastActive *time.Time `json:"last_active"`
	LastLogin  *time.Time `json:"last_login"`
	LoginCount int        `gorm:"default:0" json:"login_count"`
}

func (User) TableName() string {
	return "users"
}
