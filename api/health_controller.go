package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pickit-backend/database"
)

// SystemInfo contains basic system metrics and information
type SystemInfo struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Uptime       string    `json:"uptime"`
	StartTime    time.Time `json:"start_time"`
	CurrentTime  time.Time `json:"current_time"`
	GoVersion    string    `json:"go_version"`
	NumGoroutine int       `json:"num_goroutine"`
	NumCPU       int       `json:"num_cpu"`
	DBStatus     string    `json:"db_status"`
	RedisStatus  string    `json:"redis_status"`
}

// Version 应用版本，可通过构建参数注入
var Version = "0.1.0"

// HealthController 健康检查
type HealthController struct {
	db        *gorm.DB
	redis     redis.UniversalClient
	startTime time.Time
}

// NewHealthController redisClient 为空表示未启用 Redis
func NewHealthController(db *gorm.DB, redisClient redis.UniversalClient) *HealthController {
	return &HealthController{db: db, redis: redisClient, startTime: time.Now()}
}

func (hc *HealthController) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/health", hc.HealthCheck)
	api.GET("/status", hc.SystemStatus)
}

// HealthCheck 提供基本健康检查端点
func (hc *HealthController) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// SystemStatus 提供详细的系统状态信息，数据库不可用时返回 503
func (hc *HealthController) SystemStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if err := database.Ping(ctx, hc.db); err != nil {
		dbStatus = "error"
	}

	redisStatus := "disabled"
	if hc.redis != nil {
		redisStatus = "ok"
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "error"
		}
	}

	info := SystemInfo{
		Status:       "ok",
		Version:      Version,
		Uptime:       time.Since(hc.startTime).String(),
		StartTime:    hc.startTime,
		CurrentTime:  time.Now(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		DBStatus:     dbStatus,
		RedisStatus:  redisStatus,
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		info.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, info)
}
