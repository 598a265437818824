package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pickit-backend/api"
	"pickit-backend/auth"
	"pickit-backend/metrics"
	"pickit-backend/realtime"
)

// Server 是HTTP服务器的封装
type Server struct {
	*http.Server
}

// Dependencies 路由需要的控制器和中间件
type Dependencies struct {
	AllowOrigins  []string
	Authenticator *auth.Authenticator
	VoteLimit     gin.HandlerFunc

	Polls    *api.PollController
	Auth     *api.AuthController
	Admin    *api.AdminController
	Health   *api.HealthController
	Realtime *realtime.Handler
}

// SetupRouter 设置和配置Gin路由
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(), metrics.Middleware())

	// 配置CORS中间件
	router.Use(cors.New(corsConfig(deps.AllowOrigins)))

	router.GET("/metrics", metrics.Handler())

	group := router.Group("/api")
	group.Use(deps.Authenticator.Middleware())
	{
		deps.Health.RegisterRoutes(group)
		deps.Auth.RegisterRoutes(group)
		deps.Polls.RegisterRoutes(group, deps.VoteLimit)
		deps.Admin.RegisterRoutes(group)

		// 实时更新端点（WebSocket和SSE）
		group.GET("/polls/:id/ws", deps.Realtime.ServeWebSocket)
		group.GET("/polls/:id/live", deps.Realtime.ServeSSE)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// StartServer 启动HTTP服务器
func StartServer(router *gin.Engine, port string) *Server {
	addr := ":" + port

	srv := &Server{
		&http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	// 在单独的goroutine中启动服务器
	go func() {
		log.Info().Str("addr", addr).Msg("服务器启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("服务器启动失败")
		}
	}()

	return srv
}
