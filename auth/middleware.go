package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pickit-backend/models"
)

const (
	// SessionCookieName 会话 cookie 名
	SessionCookieName = "pickit_session"

	accountKey = "auth.account"
	tokenKey   = "auth.token"
)

// Authenticator 从请求中解析登录会话
type Authenticator struct {
	store   SessionStore
	isAdmin func(email string) bool
}

// NewAuthenticator isAdmin 可以为空
func NewAuthenticator(store SessionStore, isAdmin func(email string) bool) *Authenticator {
	if isAdmin == nil {
		isAdmin = func(string) bool { return false }
	}
	return &Authenticator{store: store, isAdmin: isAdmin}
}

// Store 会话存储
func (a *Authenticator) Store() SessionStore {
	return a.store
}

// Middleware 有有效会话时把账号放进上下文，没有则按匿名请求继续
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		account, err := a.store.Get(c.Request.Context(), token)
		switch {
		case err == nil:
			account.IsAdmin = a.isAdmin(account.Email)
			c.Set(accountKey, account)
			c.Set(tokenKey, token)
		case errors.Is(err, ErrSessionNotFound):
		default:
			log.Warn().Err(err).Msg("读取会话失败，按匿名请求处理")
		}
		c.Next()
	}
}

// extractToken 优先 Authorization: Bearer，其次会话 cookie
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		const bearerPrefix = "Bearer "
		if strings.HasPrefix(header, bearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		}
		return ""
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil {
		return cookie
	}
	return ""
}

// CurrentAccount 当前登录账号，未登录返回 nil
func CurrentAccount(c *gin.Context) *models.Account {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil
	}
	account, _ := v.(*models.Account)
	return account
}

// CurrentToken 当前请求使用的会话令牌
func CurrentToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// RequireAccount 未登录时返回 401
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentAccount(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "sign in required",
				"kind":   "unauthorized",
				"reason": "unauthenticated",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin 只允许管理员邮箱
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := CurrentAccount(c)
		if account == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  "sign in required",
				"kind":   "unauthorized",
				"reason": "unauthenticated",
			})
			return
		}
		if !account.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":  "admin only",
				"kind":   "unauthorized",
				"reason": "forbidden",
			})
			return
		}
		c.Next()
	}
}
