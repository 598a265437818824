package models

import "time"

// OptionResult 单个选项的统计
type OptionResult struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
	Leading    bool    `json:"leading"`
}

// PollResults 一次完整的结果聚合
type PollResults struct {
	PollID            string         `json:"poll_id"`
	Question          string         `json:"question"`
	AllowMultiple     bool           `json:"allow_multiple"`
	IsAnonymous       bool           `json:"is_anonymous"`
	IsExpired         bool           `json:"is_expired"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Options           []OptionResult `json:"options"`
	TotalSelections   int64          `json:"total_selections"`
	TotalParticipants int64          `json:"total_participants"`
	Leading           []int          `json:"leading"`
	HasVoted          bool           `json:"has_voted"`
	MySelections      []int          `json:"my_selections,omitempty"`
	ComputedAt        time.Time      `json:"computed_at"`
}

// VoterEntry 实名投票的投票人名单条目
type VoterEntry struct {
	VoterName string   `json:"voter_name"`
	Options   []int    `json:"option_indices"`
	Labels    []string `json:"option_labels"`
}
