package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"pickit-backend/bootstrap"
	"pickit-backend/config"
	"pickit-backend/logger"
	"pickit-backend/service"
)

// 单次执行保留期清理，供 cron 等外部调度使用
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Configure(cfg.LogLevel, cfg.LogFile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	os.Exit(run(ctx, cfg))
}

func run(ctx context.Context, cfg *config.Config) int {
	infra, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("无法初始化数据库")
		return 1
	}
	defer infra.Close()

	cleaner := service.NewRetentionCleaner(infra.Polls, infra.Locker, cfg.RetentionPeriod, nil)
	deleted, err := cleaner.Run(ctx)
	if errors.Is(err, service.ErrCleanupBusy) {
		log.Warn().Msg("其他实例正在清理，本次跳过")
		return 0
	}
	if err != nil {
		log.Error().Err(err).Msg("过期投票清理失败")
		return 1
	}

	log.Info().Int("deleted", deleted).Dur("retention", cfg.RetentionPeriod).Msg("过期投票清理完成")
	fmt.Println(deleted)
	return 0
}
