package service

import (
	"errors"
	"fmt"

	"testops/internal/repository"
)

// ValidationError 请求格式错误或缺少必填字段
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError 请求合法但与现有活跃数据冲突
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError 目标 id 不存在
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// Warning 非致命的引用解析问题，请求继续执行
type Warning struct {
	Kind    string `json:"kind"` // tag, suite
	Ref     string `json:"ref"`
	Message string `json:"message"`
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// mapStoreError translates repository sentinels into the service taxonomy.
func mapStoreError(err error, resource string, id uint, conflictMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	case errors.Is(err, repository.ErrDuplicate):
		return &ConflictError{Message: conflictMsg, Err: err}
	default:
		return err
	}
}
