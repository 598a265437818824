package identity

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pickit-backend/auth"
	"pickit-backend/models"
)

const (
	resolvedKey = "identity.voter"

	// 与 votes.anonymous_id 列宽一致
	maxTokenLength = 128
)

// Options 匿名 cookie 参数
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Resolver 确定当前请求的投票者身份：登录账号优先，否则使用匿名 cookie
type Resolver struct {
	opts Options
	now  func() time.Time
}

func NewResolver(opts Options) *Resolver {
	if opts.CookieName == "" {
		opts.CookieName = "voter_id"
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 365 * 24 * time.Hour
	}
	return &Resolver{opts: opts, now: time.Now}
}

// Resolve 同一请求内多次调用返回同一身份；没有 cookie 时生成新令牌并写回
func (r *Resolver) Resolve(c *gin.Context) (models.VoterRef, error) {
	if v, ok := c.Get(resolvedKey); ok {
		return v.(models.VoterRef), nil
	}

	if account := auth.CurrentAccount(c); account != nil {
		voter, err := models.AccountVoter(account.ID)
		if err != nil {
			return models.VoterRef{}, err
		}
		c.Set(resolvedKey, voter)
		return voter, nil
	}

	token, err := c.Cookie(r.opts.CookieName)
	if err != nil || !validToken(token) {
		token = r.newToken()
		r.setCookie(c, token)
	}

	voter, err := models.AnonymousVoter(token)
	if err != nil {
		return models.VoterRef{}, err
	}
	c.Set(resolvedKey, voter)
	return voter, nil
}

// Peek 只读取身份，不生成新的匿名令牌
func (r *Resolver) Peek(c *gin.Context) (models.VoterRef, bool) {
	if v, ok := c.Get(resolvedKey); ok {
		return v.(models.VoterRef), true
	}
	if account := auth.CurrentAccount(c); account != nil {
		voter, err := models.AccountVoter(account.ID)
		return voter, err == nil
	}
	token, err := c.Cookie(r.opts.CookieName)
	if err != nil || !validToken(token) {
		return models.VoterRef{}, false
	}
	voter, err := models.AnonymousVoter(token)
	return voter, err == nil
}

func (r *Resolver) newToken() string {
	return fmt.Sprintf("voter-%d-%s", r.now().UnixMilli(), uuid.NewString())
}

func (r *Resolver) setCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     r.opts.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(r.opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   r.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func validToken(token string) bool {
	token = strings.TrimSpace(token)
	return token != "" && len(token) <= maxTokenLength
}
