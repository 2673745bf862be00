package util

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUserNotFound        = errors.New("用户不存在")
	ErrEmailRegistered     = errors.New("该邮箱已被注册")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrLessonInactive      = errors.New("lesson is not active")
	ErrPrerequisiteNotMet  = errors.New("lesson prerequisites not met")
	ErrConcurrencyConflict = errors.New("user aggregate was modified concurrently")
	ErrDuplicateActivity   = errors.New("activity already recorded")
	ErrInsufficientXP      = errors.New("not enough XP")
)

// ValidationError 表示事件在任何状态变更前就被拒绝的输入错误
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// CycleError 前置课程图中存在环，属于致命的内容配置错误
type CycleError struct {
	LessonIDs []uint
	Titles    []string
}

func (e *CycleError) Error() string {
	if len(e.Titles) > 0 {
		return fmt.Sprintf("prerequisite cycle detected: %s", strings.Join(e.Titles, " -> "))
	}
	return fmt.Sprintf("prerequisite cycle detected among %d lessons", len(e.LessonIDs))
}
