package util

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound      = errors.New("用户不存在")
	ErrEmailRegistered   = errors.New("该邮箱已被注册")
	ErrUsernameTaken     = errors.New("用户名已被占用")
	ErrInvalidCredential = errors.New("用户名或密码错误")
	ErrAccountDisabled   = errors.New("账号已被禁用")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidRole       = errors.New("role must be student or teacher")

	ErrModuleNotFound   = errors.New("module not found")
	ErrExerciseNotFound = errors.New("exercise not found")
	ErrPanelNotFound    = errors.New("panel not found")
	ErrProgressNotFound = errors.New("progress not found")

	// 有学生作答记录时禁止删除
	ErrModuleHasAnswers   = errors.New("module has student answers and cannot be deleted")
	ErrExerciseHasAnswers = errors.New("exercise has student answers and cannot be deleted")

	ErrAlreadyAnswered   = errors.New("exercise already answered in this attempt")
	ErrDuplicatePanel    = errors.New("duplicate panel number")
	ErrInvalidExercise   = errors.New("invalid exercise")
	ErrNoValidExercises  = errors.New("no valid exercises")
	ErrExternalService   = errors.New("external service failure")
	ErrImageTimeout      = errors.New("image generation timed out")
	ErrInvalidReportType = errors.New("unknown report type")
	ErrInvalidMedia      = errors.New("invalid media data")
	ErrInvalidQuery      = errors.New("invalid query parameter")
)

// ExternalError 包装外部服务错误，可用 errors.Is(err, ErrExternalService) 判断
func ExternalError(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalService, service, err)
}
