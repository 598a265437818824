package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"pickit-backend/cache"
	"pickit-backend/metrics"
	"pickit-backend/models"
	"pickit-backend/repository"
)

const cleanupLockName = "retention-cleanup"

// RetentionCleaner 删除过期超过保留期的投票，多副本时由锁保证同一时间只有一个在跑
type RetentionCleaner struct {
	polls     repository.PollRepository
	locker    cache.Locker
	retention time.Duration
	now       func() time.Time
}

// NewRetentionCleaner 创建保留期清理任务
func NewRetentionCleaner(polls repository.PollRepository, locker cache.Locker, retention time.Duration, now func() time.Time) *RetentionCleaner {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &RetentionCleaner{polls: polls, locker: locker, retention: retention, now: now}
}

func (c *RetentionCleaner) cutoff(now time.Time) time.Time {
	return now.Add(-c.retention)
}

// Run 执行一次清理，返回删除的投票数
func (c *RetentionCleaner) Run(ctx context.Context) (int, error) {
	var deleted int
	err := c.locker.TryWithLock(ctx, cleanupLockName, 5*time.Minute, func() error {
		now := c.now().UTC()
		ids, err := c.polls.DeleteExpiredBefore(ctx, c.cutoff(now))
		if err != nil {
			return err
		}
		deleted = len(ids)
		return nil
	})
	if errors.Is(err, cache.ErrLockNotAcquired) {
		return 0, ErrCleanupBusy
	}
	if err != nil {
		return 0, transient(err)
	}

	metrics.CleanupDeleted.Add(float64(deleted))
	log.Info().Int("deleted", deleted).Dur("retention", c.retention).Msg("过期投票清理完成")
	return deleted, nil
}

// Stats 清理前的预估
func (c *RetentionCleaner) Stats(ctx context.Context) (*models.CleanupStats, error) {
	now := c.now().UTC()
	stats, err := c.polls.CleanupStats(ctx, now, c.cutoff(now))
	if err != nil {
		return nil, transient(err)
	}
	return stats, nil
}

// Expired 所有已关闭的投票，最近关闭的在前
func (c *RetentionCleaner) Expired(ctx context.Context) ([]models.Poll, error) {
	polls, err := c.polls.ListExpiredPolls(ctx, c.now().UTC())
	if err != nil {
		return nil, transient(err)
	}
	return polls, nil
}

// Start 定时清理，ctx 结束时退出
func (c *RetentionCleaner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Run(ctx); err != nil {
					if errors.Is(err, ErrCleanupBusy) {
						log.Debug().Msg("其他实例正在清理，跳过本轮")
						continue
					}
					log.Error().Err(err).Msg("过期投票清理失败")
				}
			}
		}
	}()
}
