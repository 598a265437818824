package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"pickit-backend/api"
	"pickit-backend/auth"
	"pickit-backend/bootstrap"
	"pickit-backend/cache"
	"pickit-backend/config"
	"pickit-backend/identity"
	"pickit-backend/logger"
	"pickit-backend/mq"
	"pickit-backend/realtime"
	"pickit-backend/routes"
	"pickit-backend/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("加载配置失败")
	}
	logger.Configure(cfg.LogLevel, cfg.LogFile)
	if logger.ParseLevel(cfg.LogLevel) > 0 {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("无法初始化数据库")
	}
	defer infra.Close()
	log.Info().Str("driver", cfg.DBDriver).Bool("redis", infra.Redis != nil).Msg("基础设施初始化完成")

	bus, err := mq.New(mq.Options{
		Driver:  cfg.MQDriver,
		Channel: "pickit:votes",
		RocketMQ: mq.RocketMQOptions{
			NameServer: cfg.RocketMQNameServer,
			Group:      cfg.RocketMQGroup,
			Topic:      cfg.RocketMQTopic,
		},
	}, infra.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("消息队列初始化失败，将使用内存模式")
		bus = mq.NewLocalBus(256)
	}
	defer bus.Close()

	pollService := service.NewPollService(infra.Polls, infra.Votes, bus, service.Options{
		DefaultPollDuration: cfg.DefaultPollDuration,
		VoteTimeout:         cfg.VoteTimeout,
	})

	cleaner := service.NewRetentionCleaner(infra.Polls, infra.Locker, cfg.RetentionPeriod, nil)
	cleaner.Start(ctx, cfg.CleanupInterval)

	hub := realtime.NewHub()
	go hub.Run(ctx)
	if err := realtime.NewRefresher(hub, pollService).Start(ctx, bus); err != nil {
		log.Fatal().Err(err).Msg("订阅投票事件失败")
	}

	var sessions auth.SessionStore = auth.NewMemorySessionStore(cfg.SessionTTL)
	var healthRedis redis.UniversalClient
	if infra.Redis != nil {
		sessions = auth.NewRedisSessionStore(infra.Redis, cfg.SessionTTL)
		healthRedis = infra.Redis
	}
	authenticator := auth.NewAuthenticator(sessions, cfg.IsAdmin)

	voteLimit := func(c *gin.Context) { c.Next() }
	if cfg.RateLimitEnabled {
		limiter := cache.NewRateLimiter(infra.RedisClient(), "ratelimit:vote", cfg.RateLimitRate, cfg.RateLimitBurst)
		voteLimit = api.RateLimit(limiter)
		log.Info().Int("rate", cfg.RateLimitRate).Int("burst", cfg.RateLimitBurst).Msg("限流器初始化成功")
	}

	resolver := identity.NewResolver(identity.Options{
		CookieName: cfg.VoterCookieName,
		MaxAge:     cfg.VoterCookieMaxAge,
		Secure:     cfg.CookieSecure,
	})

	router := routes.SetupRouter(routes.Dependencies{
		AllowOrigins:  cfg.AllowOrigins,
		Authenticator: authenticator,
		VoteLimit:     voteLimit,
		Polls:         api.NewPollController(pollService, resolver),
		Auth: api.NewAuthController(auth.NewSigner(cfg.AuthSigningSecret, 5*time.Minute), sessions, api.AuthOptions{
			ProviderURL:  cfg.AuthProviderURL,
			SessionTTL:   cfg.SessionTTL,
			CookieSecure: cfg.CookieSecure,
			IsAdmin:      cfg.IsAdmin,
		}),
		Admin:  api.NewAdminController(cleaner),
		Health: api.NewHealthController(infra.DB, healthRedis),
		Realtime: realtime.NewHandler(hub, pollService, realtime.HandlerOptions{
			AllowOrigins: cfg.AllowOrigins,
			OnError:      api.RespondError,
		}),
	})
	log.Info().Msg("路由设置完成")

	srv := routes.StartServer(router, cfg.ServerPort)

	// 等待中断信号以优雅地关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("关闭服务器...")

	cancel()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("服务器强制关闭")
	}
	log.Info().Msg("服务器优雅关闭")
}
