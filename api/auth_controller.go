package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pickit-backend/auth"
	"pickit-backend/models"
	"pickit-backend/service"
)

// SessionResponse 登录成功后返回的会话
type SessionResponse struct {
	Token   string          `json:"token"`
	Account *models.Account `json:"account"`
}

// AuthOptions 登录相关配置
type AuthOptions struct {
	ProviderURL  string
	SessionTTL   time.Duration
	CookieSecure bool
	IsAdmin      func(email string) bool
}

// AuthController 身份提供方回调与会话管理
type AuthController struct {
	signer *auth.Signer
	store  auth.SessionStore
	opts   AuthOptions
}

// NewAuthController 创建登录控制器
func NewAuthController(signer *auth.Signer, store auth.SessionStore, opts AuthOptions) *AuthController {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(string) bool { return false }
	}
	return &AuthController{signer: signer, store: store, opts: opts}
}

// RegisterRoutes 注册登录路由
func (ac *AuthController) RegisterRoutes(api *gin.RouterGroup) {
	group := api.Group("/auth")
	{
		group.GET("/login", ac.Login)
		group.POST("/callback", ac.Callback)
		group.GET("/me", auth.RequireAccount(), ac.Me)
		group.DELETE("/session", ac.Logout)
	}
}

// Login 跳转到身份提供方
func (ac *AuthController) Login(c *gin.Context) {
	target, err := url.Parse(ac.opts.ProviderURL)
	if err != nil || ac.opts.ProviderURL == "" {
		RespondError(c, service.ErrUnavailable)
		return
	}
	if redirect := c.Query("redirect"); redirect != "" {
		q := target.Query()
		q.Set("redirect", redirect)
		target.RawQuery = q.Encode()
	}
	c.Redirect(http.StatusFound, target.String())
}

// Callback 校验签名声明并创建会话
func (ac *AuthController) Callback(c *gin.Context) {
	var assertion auth.Assertion
	if err := c.ShouldBindJSON(&assertion); err != nil {
		badRequest(c, err)
		return
	}

	if err := ac.signer.Verify(assertion); err != nil {
		reason := "invalid_assertion"
		switch {
		case errors.Is(err, auth.ErrAssertionExpired):
			reason = "assertion_expired"
		case errors.Is(err, auth.ErrSignerDisabled):
			reason = "signin_disabled"
		}
		log.Warn().Err(err).Str("account_id", assertion.AccountID).Msg("登录声明校验失败")
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
			Error:  err.Error(),
			Kind:   string(service.KindUnauthorized),
			Reason: reason,
		})
		return
	}

	account := models.Account{ID: assertion.AccountID, Email: assertion.Email}
	token, err := ac.store.Create(c.Request.Context(), account)
	if err != nil {
		RespondError(c, err)
		return
	}
	account.IsAdmin = ac.opts.IsAdmin(account.Email)

	ac.setSessionCookie(c, token, int(ac.opts.SessionTTL.Seconds()))
	log.Info().Str("account_id", account.ID).Bool("admin", account.IsAdmin).Msg("用户已登录")
	c.JSON(http.StatusOK, SessionResponse{Token: token, Account: &account})
}

// Me 当前登录账号
func (ac *AuthController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, auth.CurrentAccount(c))
}

// Logout 删除会话，未登录时也返回成功
func (ac *AuthController) Logout(c *gin.Context) {
	if token := auth.CurrentToken(c); token != "" {
		if err := ac.store.Delete(c.Request.Context(), token); err != nil {
			RespondError(c, err)
			return
		}
	}
	ac.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "signed out"})
}

func (ac *AuthController) setSessionCookie(c *gin.Context, token string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   ac.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
