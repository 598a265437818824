package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"pickit-backend/cache"
	"pickit-backend/config"
	"pickit-backend/database"
	"pickit-backend/logger"
	"pickit-backend/migrations"
	"pickit-backend/repository"
)

const pollBloomKey = "polls"

// Infra 服务端和清理任务共用的基础设施
type Infra struct {
	DB *gorm.DB
	// Redis 连接失败时为 nil，相关功能退回进程内实现
	Redis  *redis.Client
	Locker cache.Locker

	Polls repository.PollRepository
	Votes repository.VoteRepository
}

// Open 连接数据库并迁移，Redis 可选
func Open(ctx context.Context, cfg *config.Config) (*Infra, error) {
	db, err := database.Open(database.Options{
		Driver: cfg.DBDriver,
		DSN:    cfg.DBDSN,
		Logger: logger.Gorm(logger.ParseLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, err
	}
	if err := migrations.Apply(db); err != nil {
		database.Close(db)
		return nil, err
	}

	infra := &Infra{
		DB:     db,
		Locker: cache.NewLocalLocker(),
		Polls:  repository.NewGormPollRepository(db),
		Votes:  repository.NewGormVoteRepository(db),
	}

	client, err := cache.NewRedisClient(ctx, cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Redis不可用，使用进程内锁、会话和限流")
		return infra, nil
	}

	infra.Redis = client
	infra.Locker = cache.NewDistributedLockService(client)
	bloom := cache.NewBloomFilter(client, pollBloomKey, 3, 30*24*time.Hour)
	infra.Polls = repository.NewCachedPollRepository(infra.Polls, cache.NewJSONCache(client, infra.Locker, bloom, time.Minute))
	return infra, nil
}

// RedisClient 给需要接口类型的调用方，Redis 不可用时返回无类型 nil
func (i *Infra) RedisClient() cache.RedisClient {
	if i.Redis == nil {
		return nil
	}
	return i.Redis
}

// Close 关闭数据库和 Redis 连接
func (i *Infra) Close() {
	database.Close(i.DB)
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
