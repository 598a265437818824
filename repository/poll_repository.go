package repository

import (
	"context"
	"time"

	"pickit-backend/models"
)

// PollRepository 定义投票数据访问接口
type PollRepository interface {
	CreatePoll(ctx context.Context, poll *models.Poll) error
	GetPollByID(ctx context.Context, id string) (*models.Poll, error)
	UpdateQuestion(ctx context.Context, id, question string) error
	// DeletePoll 删除投票及其全部选票，原子执行
	DeletePoll(ctx context.Context, id string) error
	ListPollsByOwner(ctx context.Context, ownerID string) ([]models.Poll, error)

	// 保留期清理
	ListExpiredPolls(ctx context.Context, now time.Time) ([]models.Poll, error)
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error)
	CleanupStats(ctx context.Context, now, cutoff time.Time) (*models.CleanupStats, error)
}

// VoteRepository 定义选票数据访问接口
type VoteRepository interface {
	// CreateBallot 在一个事务内写入 ballot 和全部 vote 行，唯一约束冲突返回 ErrDuplicateBallot
	CreateBallot(ctx context.Context, ballot *models.Ballot, votes []models.Vote) error
	HasVoted(ctx context.Context, pollID, voterKey string) (bool, error)
	SelectedOptions(ctx context.Context, pollID, voterKey string) ([]int, error)

	// CountByOption 等价于 GROUP BY option_index 的聚合过程
	CountByOption(ctx context.Context, pollID string) ([]models.OptionCount, error)
	CountParticipants(ctx context.Context, pollIDs ...string) (map[string]int64, error)

	ListNamedVotes(ctx context.Context, pollID string) ([]models.Vote, error)
	ListVotedPolls(ctx context.Context, voterKey string) ([]models.VotedPoll, error)
}
