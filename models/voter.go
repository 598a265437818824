package models

import (
	"errors"
	"strings"
)

// ErrInvalidVoter 空的投票者身份
var ErrInvalidVoter = errors.New("voter identity is empty")

type voterKind uint8

const (
	voterNone voterKind = iota
	voterAccount
	voterAnonymous
)

// VoterRef 投票者身份：登录账号或匿名令牌二选一，零值无效
type VoterRef struct {
	kind voterKind
	id   string
}

// AccountVoter 登录账号身份
func AccountVoter(accountID string) (VoterRef, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return VoterRef{}, ErrInvalidVoter
	}
	return VoterRef{kind: voterAccount, id: accountID}, nil
}

// AnonymousVoter 匿名客户端令牌身份
func AnonymousVoter(token string) (VoterRef, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VoterRef{}, ErrInvalidVoter
	}
	return VoterRef{kind: voterAnonymous, id: token}, nil
}

func (v VoterRef) Valid() bool       { return v.kind != voterNone && v.id != "" }
func (v VoterRef) IsAccount() bool   { return v.kind == voterAccount }
func (v VoterRef) IsAnonymous() bool { return v.kind == voterAnonymous }
func (v VoterRef) ID() string        { return v.id }

// Key 存储层使用的唯一键
func (v VoterRef) Key() string {
	switch v.kind {
	case voterAccount:
		return "account:" + v.id
	case voterAnonymous:
		return "anon:" + v.id
	default:
		return ""
	}
}

func (v VoterRef) String() string {
	if !v.Valid() {
		return "voter(none)"
	}
	return v.Key()
}

// Apply 把身份写入投票行，两个字段只会填一个
func (v VoterRef) Apply(vote *Vote) {
	vote.VoterKey = v.Key()
	vote.AccountID = nil
	vote.AnonymousID = nil
	id := v.id
	switch v.kind {
	case voterAccount:
		vote.AccountID = &id
	case voterAnonymous:
		vote.AnonymousID = &id
	}
}
