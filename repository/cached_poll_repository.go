package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"pickit-backend/cache"
	"pickit-backend/models"
)

const pollCacheTTL = 10 * time.Minute

// CachedPollRepository 带 Redis 读穿缓存的投票仓库。只缓存投票本身，统计结果总是实时计算
type CachedPollRepository struct {
	db    PollRepository
	cache *cache.JSONCache
}

// NewCachedPollRepository 创建带缓存的投票数据仓库
func NewCachedPollRepository(db PollRepository, jsonCache *cache.JSONCache) *CachedPollRepository {
	return &CachedPollRepository{db: db, cache: jsonCache}
}

func pollKey(id string) string {
	return "poll:" + id
}

func (r *CachedPollRepository) CreatePoll(ctx context.Context, poll *models.Poll) error {
	if err := r.db.CreatePoll(ctx, poll); err != nil {
		return err
	}
	// 可能缓存过“不存在”
	r.invalidate(ctx, poll.ID)
	return nil
}

func (r *CachedPollRepository) GetPollByID(ctx context.Context, id string) (*models.Poll, error) {
	var poll models.Poll
	found, err := r.cache.GetOrLoad(ctx, pollKey(id), pollCacheTTL, &poll, func(ctx context.Context) (interface{}, error) {
		p, err := r.db.GetPollByID(ctx, id)
		if err == ErrPollNotFound {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrPollNotFound
	}
	return &poll, nil
}

func (r *CachedPollRepository) UpdateQuestion(ctx context.Context, id, question string) error {
	return r.cache.Mutate(ctx, pollKey(id), func() error {
		return r.db.UpdateQuestion(ctx, id, question)
	})
}

func (r *CachedPollRepository) DeletePoll(ctx context.Context, id string) error {
	return r.cache.Mutate(ctx, pollKey(id), func() error {
		return r.db.DeletePoll(ctx, id)
	})
}

func (r *CachedPollRepository) ListPollsByOwner(ctx context.Context, ownerID string) ([]models.Poll, error) {
	return r.db.ListPollsByOwner(ctx, ownerID)
}

func (r *CachedPollRepository) ListExpiredPolls(ctx context.Context, now time.Time) ([]models.Poll, error) {
	return r.db.ListExpiredPolls(ctx, now)
}

func (r *CachedPollRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := r.db.DeleteExpiredBefore(ctx, cutoff)
	if len(ids) > 0 {
		r.invalidate(ctx, ids...)
	}
	return ids, err
}

func (r *CachedPollRepository) CleanupStats(ctx context.Context, now, cutoff time.Time) (*models.CleanupStats, error) {
	return r.db.CleanupStats(ctx, now, cutoff)
}

func (r *CachedPollRepository) invalidate(ctx context.Context, ids ...string) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = pollKey(id)
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("删除投票缓存失败")
	}
}
