package service

import (
	"context"
	"errors"
)

// ErrorKind 对外可区分的错误类别
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation_failed"
	KindClosed       ErrorKind = "closed"
	KindDuplicate    ErrorKind = "duplicate"
	KindTransient    ErrorKind = "transient"
	KindUnauthorized ErrorKind = "unauthorized"
)

// Retryable 只有基础设施错误值得客户端重试
func (k ErrorKind) Retryable() bool {
	return k == KindTransient
}

// Error 业务错误：类别 + 原因码
type Error struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 类别和原因码相同即视为同一错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == e.Reason
}

func newError(kind ErrorKind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

var (
	// 业务错误定义
	ErrPollNotFound = newError(KindNotFound, "poll_not_found", "poll not found")

	ErrEmptyQuestion   = newError(KindValidation, "empty_question", "question must not be empty")
	ErrQuestionTooLong = newError(KindValidation, "question_too_long", "question is too long")
	ErrTooFewOptions   = newError(KindValidation, "too_few_options", "at least 2 non-empty options are required")
	ErrTooManyOptions  = newError(KindValidation, "too_many_options", "at most 10 options are allowed")
	ErrOptionTooLong   = newError(KindValidation, "option_too_long", "option is too long")
	ErrExpiryInPast    = newError(KindValidation, "expiry_in_past", "expires_at must be in the future")
	ErrInvalidOption   = newError(KindValidation, "invalid_option", "invalid option selection")
	ErrMissingName     = newError(KindValidation, "missing_name", "voter name is required for this poll")
	ErrNameTooLong     = newError(KindValidation, "name_too_long", "voter name is too long")
	ErrInvalidVoter    = newError(KindValidation, "invalid_voter", "voter identity is missing")

	ErrPollClosed   = newError(KindClosed, "poll_closed", "poll is closed")
	ErrAlreadyVoted = newError(KindDuplicate, "already_voted", "already voted in this poll")

	ErrUnauthenticated = newError(KindUnauthorized, "unauthenticated", "sign in required")
	ErrForbidden       = newError(KindUnauthorized, "forbidden", "only the poll owner can do this")

	ErrTimeout     = newError(KindTransient, "timeout", "operation timed out")
	ErrUnavailable = newError(KindTransient, "unavailable", "storage unavailable")
	ErrCleanupBusy = newError(KindTransient, "cleanup_running", "cleanup already running")
)

// transient 把基础设施错误归为可重试错误，保留原始错误
func transient(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransient, Reason: ErrTimeout.Reason, Message: ErrTimeout.Message, Err: err}
	}
	return &Error{Kind: KindTransient, Reason: ErrUnavailable.Reason, Message: ErrUnavailable.Message, Err: err}
}

// KindOf 未分类的错误按基础设施错误处理
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}
