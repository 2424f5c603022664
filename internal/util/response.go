package util

import (
	"comic_english_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// SuccessMsg 带自定义消息的成功响应
func SuccessMsg(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func BadGateway(c *gin.Context, message string) {
	Error(c, http.StatusBadGateway, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.String("path", c.FullPath()), zap.Error(err))
	InternalServerError(c)
}

// HandleError 按错误类型映射 HTTP 状态码
func HandleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrModuleNotFound),
		errors.Is(err, ErrExerciseNotFound), errors.Is(err, ErrPanelNotFound),
		errors.Is(err, ErrProgressNotFound):
		Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrModuleHasAnswers), errors.Is(err, ErrExerciseHasAnswers),
		errors.Is(err, ErrAlreadyAnswered), errors.Is(err, ErrEmailRegistered),
		errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrDuplicatePanel):
		Conflict(c, err.Error())
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrAccountDisabled):
		Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidCredential):
		Error(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrInvalidExercise), errors.Is(err, ErrNoValidExercises),
		errors.Is(err, ErrInvalidRole), errors.Is(err, ErrInvalidReportType),
		errors.Is(err, ErrInvalidMedia), errors.Is(err, ErrInvalidQuery):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrExternalService), errors.Is(err, ErrImageTimeout):
		logger.Log.Warn("External service failure", zap.String("path", c.FullPath()), zap.Error(err))
		BadGateway(c, err.Error())
	default:
		LogInternalError(c, err)
	}
}
