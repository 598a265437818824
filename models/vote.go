package models

import "time"

// Ballot 每个投票者在每个投票中只有一行，(poll_id, voter_key) 唯一
type Ballot struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	PollID    string    `gorm:"size:36;not null;uniqueIndex:idx_ballots_poll_voter,priority:1" json:"poll_id"`
	VoterKey  string    `gorm:"size:200;not null;uniqueIndex:idx_ballots_poll_voter,priority:2" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Vote 一个选中的选项一行，(poll_id, voter_key, option_index) 唯一
type Vote struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	PollID      string    `gorm:"size:36;not null;index;uniqueIndex:idx_votes_poll_voter_option,priority:1" json:"poll_id"`
	VoterKey    string    `gorm:"size:200;not null;uniqueIndex:idx_votes_poll_voter_option,priority:2" json:"-"`
	OptionIndex int       `gorm:"not null;uniqueIndex:idx_votes_poll_voter_option,priority:3" json:"option_index"`
	AccountID   *string   `gorm:"size:64;index" json:"-"`
	AnonymousID *string   `gorm:"size:128" json:"-"`
	VoterName   *string   `gorm:"size:50" json:"voter_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// OptionCount 按选项分组的计数结果
type OptionCount struct {
	OptionIndex int   `json:"option_index"`
	VoteCount   int64 `json:"vote_count"`
}
