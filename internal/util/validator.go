package util

import (
	"comic_english_backend/internal/generation"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验器注册自定义标签：exercise_type、difficulty
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterValidation("exercise_type", func(fl validator.FieldLevel) bool {
			return generation.IsExerciseType(fl.Field().String())
		})
		v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case generation.DifficultyBeginner, generation.DifficultyMedium, generation.DifficultyAdvanced:
				return true
			}
			return false
		})
	})
}

// BindErrorMessage 把绑定错误转换为可读信息，校验错误按字段列出失败的规则
func BindErrorMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}
