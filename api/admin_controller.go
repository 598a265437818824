package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pickit-backend/auth"
	"pickit-backend/service"
)

// CleanupResponse 手动清理的结果
type CleanupResponse struct {
	Deleted int `json:"deleted"`
}

// AdminController 管理员接口
type AdminController struct {
	cleaner *service.RetentionCleaner
}

func NewAdminController(cleaner *service.RetentionCleaner) *AdminController {
	return &AdminController{cleaner: cleaner}
}

// RegisterRoutes 管理员路由全部要求管理员账号
func (ac *AdminController) RegisterRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin", auth.RequireAdmin())
	{
		admin.POST("/cleanup", ac.RunCleanup)
		admin.GET("/cleanup/stats", ac.CleanupStats)
		admin.GET("/polls/expired", ac.ExpiredPolls)
	}
}

// RunCleanup 立即执行一次保留期清理
func (ac *AdminController) RunCleanup(c *gin.Context) {
	deleted, err := ac.cleaner.Run(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Deleted: deleted})
}

func (ac *AdminController) CleanupStats(c *gin.Context) {
	stats, err := ac.cleaner.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (ac *AdminController) ExpiredPolls(c *gin.Context) {
	polls, err := ac.cleaner.Expired(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, polls)
}
