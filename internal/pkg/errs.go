package pkg

import (
	"github.com/pkg/errors"
)

// 业务错误，handler 层统一映射为 HTTP 状态码
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAlreadyVoted      = errors.New("already voted")
	ErrNotVoted          = errors.New("not voted")
	ErrExpired           = errors.New("token expired")
	ErrAlreadyUsed       = errors.New("token already used")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmailTaken        = errors.New("email already registered")
	ErrValidation        = errors.New("validation failed")
	ErrUpstream          = errors.New("upstream failure")
)

var domainErrors = []error{
	ErrNotFound,
	ErrForbidden,
	ErrUnauthorized,
	ErrAlreadyVoted,
	ErrNotVoted,
	ErrExpired,
	ErrAlreadyUsed,
	ErrInvalidTransition,
	ErrEmailTaken,
	ErrValidation,
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamError 存储/缓存/外部服务失败，保留原始错误链
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: errors.WithStack(err)}
}

// IsDomain 是否为可以原样返回给调用方的业务错误
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Classify 业务错误原样透传，其余一律归为 UpstreamError
func Classify(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return Upstream(op, err)
}

// ErrorCode 稳定的错误码，出现在响应体和批量结果中
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, ErrNotVoted):
		return "not_voted"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrEmailTaken):
		return "email_taken"
	default:
		return "upstream_error"
	}
}
