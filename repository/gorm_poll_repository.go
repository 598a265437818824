package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"pickit-backend/models"
)

// GormPollRepository 基于 gorm 的投票仓库
type GormPollRepository struct {
	db *gorm.DB
}

// NewGormPollRepository 创建投票仓库
func NewGormPollRepository(db *gorm.DB) *GormPollRepository {
	return &GormPollRepository{db: db}
}

func (r *GormPollRepository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if err := r.db.WithContext(ctx).Omit("Ballots", "Votes").Create(poll).Error; err != nil {
		return errors.Wrap(err, "create poll")
	}
	return nil
}

func (r *GormPollRepository) GetPollByID(ctx context.Context, id string) (*models.Poll, error) {
	var poll models.Poll
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get poll %s", id)
	}
	return &poll, nil
}

func (r *GormPollRepository) UpdateQuestion(ctx context.Context, id, question string) error {
	result := r.db.WithContext(ctx).Model(&models.Poll{}).Where("id = ?", id).Update("question", question)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "update poll %s", id)
	}
	if result.RowsAffected == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (r *GormPollRepository) DeletePoll(ctx context.Context, id string) error {
	deleted, err := r.deletePolls(ctx, []string{id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrPollNotFound
	}
	return nil
}

func (r *GormPollRepository) ListPollsByOwner(ctx context.Context, ownerID string) ([]models.Poll, error) {
	var polls []models.Poll
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&polls).Error
	if err != nil {
		return nil, errors.Wrap(err, "list polls by owner")
	}
	return polls, nil
}

func (r *GormPollRepository) ListExpiredPolls(ctx context.Context, now time.Time) ([]models.Poll, error) {
	var polls []models.Poll
	err := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Order("expires_at DESC").
		Find(&polls).Error
	if err != nil {
		return nil, errors.Wrap(err, "list expired polls")
	}
	return polls, nil
}

func (r *GormPollRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.Poll{}).
		Where("expires_at < ?", cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "select expired polls")
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := r.deletePolls(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormPollRepository) CleanupStats(ctx context.Context, now, cutoff time.Time) (*models.CleanupStats, error) {
	db := r.db.WithContext(ctx)
	stats := &models.CleanupStats{}

	if err := db.Model(&models.Poll{}).Where("expires_at <= ?", now).Count(&stats.ExpiredPolls).Error; err != nil {
		return nil, errors.Wrap(err, "count expired polls")
	}
	if err := db.Model(&models.Poll{}).Where("expires_at < ?", cutoff).Count(&stats.PollsToDelete).Error; err != nil {
		return nil, errors.Wrap(err, "count polls to delete")
	}

	stale := db.Model(&models.Poll{}).Select("id").Where("expires_at < ?", cutoff)
	if err := db.Model(&models.Vote{}).Where("poll_id IN (?)", stale).Count(&stats.VotesToDelete).Error; err != nil {
		return nil, errors.Wrap(err, "count votes to delete")
	}
	return stats, nil
}

// deletePolls 先删选票再删投票，全部在一个事务里
func (r *GormPollRepository) deletePolls(ctx context.Context, ids []string) (int64, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, errors.Wrap(tx.Error, "begin delete")
	}

	if err := tx.Where("poll_id IN ?", ids).Delete(&models.Vote{}).Error; err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "delete votes")
	}
	if err := tx.Where("poll_id IN ?", ids).Delete(&models.Ballot{}).Error; err != nil {
		tx.Rollback()
		return 0, errors.Wrap(err, "delete ballots")
	}
	result := tx.Where("id IN ?", ids).Delete(&models.Poll{})
	if result.Error != nil {
		tx.Rollback()
		return 0, errors.Wrap(result.Error, "delete polls")
	}

	if err := tx.Commit().Error; err != nil {
		return 0, errors.Wrap(err, "commit delete")
	}
	return result.RowsAffected, nil
}
