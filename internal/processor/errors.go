package processor

import (
	"errors"
	"fmt"
)

// 基础错误类型，handler 通过 errors.Is 映射为 HTTP 状态码
var (
	ErrValidation = errors.New("validation failed")
	ErrUpstream   = errors.New("upstream service failed")
	ErrStore      = errors.New("store operation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// 密码重置的校验失败，Error() 即对外消息
var (
	ErrInvalidOTP = errors.New("Invalid OTP")
	ErrOTPExpired = errors.New("OTP has expired")
)

// PipelineError 带操作名和对象键的错误。Detail 是可以直接返回给调用方的消息。
type PipelineError struct {
	Op      string
	Key     string
	BaseErr error
	// Cause 是底层错误，可为 nil
	Cause  error
	Detail string
}

func (e *PipelineError) Error() string {
	switch {
	case e.Key != "" && e.Detail != "":
		return fmt.Sprintf("%s (操作:%s, 对象:%s): %s", e.BaseErr, e.Op, e.Key, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	default:
		return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
	}
}

func (e *PipelineError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.BaseErr}
	}
	return []error{e.BaseErr, e.Cause}
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// Message 返回对外消息，没有 Detail 时退回到 Error()
func Message(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Detail != "" {
		return pe.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func newValidationError(op, detail string) error {
	return &PipelineError{Op: op, BaseErr: ErrValidation, Detail: detail}
}

func newNotFoundError(op, key, detail string) error {
	return &PipelineError{Op: op, Key: key, BaseErr: ErrNotFound, Detail: detail}
}

func newStoreError(op, key string, err error) error {
	return &PipelineError{Op: op, Key: key, BaseErr: ErrStore, Cause: err, Detail: err.Error()}
}

func newUpstreamError(op, key string, err error) error {
	return &PipelineError{Op: op, Key: key, BaseErr: ErrUpstream, Cause: err, Detail: err.Error()}
}

func newConflictError(op, key, detail string) error {
	return &PipelineError{Op: op, Key: key, BaseErr: ErrConflict, Detail: detail}
}
