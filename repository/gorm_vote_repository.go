package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"pickit-backend/models"
)

// GormVoteRepository 基于 gorm 的选票仓库
type GormVoteRepository struct {
	db *gorm.DB
}

// NewGormVoteRepository 创建选票仓库
func NewGormVoteRepository(db *gorm.DB) *GormVoteRepository {
	return &GormVoteRepository{db: db}
}

func (r *GormVoteRepository) CreateBallot(ctx context.Context, ballot *models.Ballot, votes []models.Vote) error {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin ballot")
	}

	if err := tx.Create(ballot).Error; err != nil {
		tx.Rollback()
		return translateInsert(err, "insert ballot")
	}
	if len(votes) > 0 {
		if err := tx.Create(&votes).Error; err != nil {
			tx.Rollback()
			return translateInsert(err, "insert votes")
		}
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "commit ballot")
	}
	return nil
}

func translateInsert(err error, msg string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateBallot
	}
	return errors.Wrap(err, msg)
}

func (r *GormVoteRepository) HasVoted(ctx context.Context, pollID, voterKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ballot{}).
		Where("poll_id = ? AND voter_key = ?", pollID, voterKey).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check ballot")
	}
	return count > 0, nil
}

func (r *GormVoteRepository) SelectedOptions(ctx context.Context, pollID, voterKey string) ([]int, error) {
	var indices []int
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("poll_id = ? AND voter_key = ?", pollID, voterKey).
		Order("option_index").
		Pluck("option_index", &indices).Error
	if err != nil {
		return nil, errors.Wrap(err, "selected options")
	}
	return indices, nil
}

func (r *GormVoteRepository) CountByOption(ctx context.Context, pollID string) ([]models.OptionCount, error) {
	var counts []models.OptionCount
	err := r.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("option_index, COUNT(*) AS vote_count").
		Where("poll_id = ?", pollID).
		Group("option_index").
		Order("option_index").
		Scan(&counts).Error
	if err != nil {
		return nil, errors.Wrap(err, "count votes by option")
	}
	return counts, nil
}

func (r *GormVoteRepository) CountParticipants(ctx context.Context, pollIDs ...string) (map[string]int64, error) {
	out := make(map[string]int64, len(pollIDs))
	if len(pollIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PollID string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Ballot{}).
		Select("poll_id, COUNT(*) AS total").
		Where("poll_id IN ?", pollIDs).
		Group("poll_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "count participants")
	}
	for _, row := range rows {
		out[row.PollID] = row.Total
	}
	return out, nil
}

func (r *GormVoteRepository) ListNamedVotes(ctx context.Context, pollID string) ([]models.Vote, error) {
	var votes []models.Vote
	err := r.db.WithContext(ctx).
		Where("poll_id = ? AND voter_name IS NOT NULL", pollID).
		Order("created_at, id").
		Find(&votes).Error
	if err != nil {
		return nil, errors.Wrap(err, "list named votes")
	}
	return votes, nil
}

func (r *GormVoteRepository) ListVotedPolls(ctx context.Context, voterKey string) ([]models.VotedPoll, error) {
	var ballots []models.Ballot
	err := r.db.WithContext(ctx).
		Where("voter_key = ?", voterKey).
		Order("created_at DESC, id DESC").
		Find(&ballots).Error
	if err != nil {
		return nil, errors.Wrap(err, "list ballots")
	}
	if len(ballots) == 0 {
		return []models.VotedPoll{}, nil
	}

	ids := make([]string, len(ballots))
	for i, b := range ballots {
		ids[i] = b.PollID
	}
	var polls []models.Poll
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&polls).Error; err != nil {
		return nil, errors.Wrap(err, "list voted polls")
	}
	byID := make(map[string]models.Poll, len(polls))
	for _, p := range polls {
		byID[p.ID] = p
	}

	out := make([]models.VotedPoll, 0, len(ballots))
	for _, b := range ballots {
		if p, ok := byID[b.PollID]; ok {
			out = append(out, models.VotedPoll{Poll: p, VotedAt: b.CreatedAt})
		}
	}
	return out, nil
}
