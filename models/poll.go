package models

import (
	"time"
)

const (
	MaxQuestionLength = 200
	MaxOptionLength   = 100
	MaxVoterNameLen   = 50
	MinOptions        = 2
	MaxOptions        = 10
)

// Poll 投票主表。选项以 JSON 数组保存，下标即选项的永久标识
type Poll struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Question        string    `gorm:"size:200;not null" json:"question"`
	Options         []string  `gorm:"serializer:json;type:text;not null" json:"options"`
	AllowMultiple   bool      `gorm:"not null" json:"allow_multiple"`
	IsAnonymous     bool      `gorm:"not null" json:"is_anonymous"`
	CustomExpiresAt bool      `gorm:"not null" json:"custom_expires_at"`
	OwnerID         *string   `gorm:"size:64;index" json:"owner_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `gorm:"not null;index" json:"expires_at"`

	// TotalVotes 由选票表实时统计（参与人数），不落库
	TotalVotes int64 `gorm:"-" json:"total_votes"`

	Ballots []Ballot `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"-"`
	Votes   []Vote   `gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE" json:"-"`
}

// IsExpired 当前时间不早于截止时间即视为已关闭
func (p *Poll) IsExpired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// IsOwnedBy 判断账号是否为投票创建者
func (p *Poll) IsOwnedBy(accountID string) bool {
	return p.OwnerID != nil && accountID != "" && *p.OwnerID == accountID
}

// HasOption 判断下标是否在选项范围内
func (p *Poll) HasOption(index int) bool {
	return index >= 0 && index < len(p.Options)
}

// VotedPoll 用户参与过的投票及参与时间
type VotedPoll struct {
	Poll
	VotedAt time.Time `json:"voted_at"`
}

// CleanupStats 保留期清理的预估数据
type CleanupStats struct {
	ExpiredPolls  int64 `json:"expired_polls"`
	PollsToDelete int64 `json:"polls_to_delete"`
	VotesToDelete int64 `json:"votes_to_delete"`
}
