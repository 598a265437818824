package repository

import "github.com/pkg/errors"

var (
	// ErrPollNotFound 投票不存在
	ErrPollNotFound = errors.New("poll not found")

	// ErrDuplicateBallot 同一投票者重复投票，由唯一约束触发
	ErrDuplicateBallot = errors.New("ballot already exists")
)
