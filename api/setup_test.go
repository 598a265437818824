package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pickit-backend/auth"
	"pickit-backend/cache"
	"pickit-backend/identity"
	"pickit-backend/migrations"
	"pickit-backend/models"
	"pickit-backend/repository"
	"pickit-backend/service"
)

const testSecret = "test-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	store  auth.SessionStore
	signer *auth.Signer
	clock  *testClock
}

// setupTestEnvironment 内存 SQLite + 完整路由，limiter 为空时不限流
func setupTestEnvironment(t *testing.T, limiter cache.RateLimiter) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrations.Apply(db))

	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	polls := repository.NewGormPollRepository(db)
	svc := service.NewPollService(polls, repository.NewGormVoteRepository(db), nil, service.Options{Now: clock.Now})
	cleaner := service.NewRetentionCleaner(polls, cache.NewLocalLocker(), 7*24*time.Hour, clock.Now)

	store := auth.NewMemorySessionStore(time.Hour)
	signer := auth.NewSigner(testSecret, 5*time.Minute)
	isAdmin := func(email string) bool { return email == "admin@example.com" }

	router := gin.New()
	router.Use(auth.NewAuthenticator(store, isAdmin).Middleware())
	group := router.Group("/api")

	resolver := identity.NewResolver(identity.Options{CookieName: "voter_id"})
	NewPollController(svc, resolver).RegisterRoutes(group, RateLimit(limiter))
	NewAuthController(signer, store, AuthOptions{
		ProviderURL: "https://id.example.com/login",
		SessionTTL:  time.Hour,
		IsAdmin:     isAdmin,
	}).RegisterRoutes(group)
	NewAdminController(cleaner).RegisterRoutes(group)
	NewHealthController(db, nil).RegisterRoutes(group)

	return &testEnv{router: router, db: db, store: store, signer: signer, clock: clock}
}

// session 直接在会话存储里登录
func (e *testEnv) session(t *testing.T, id, email string) string {
	t.Helper()
	token, err := e.store.Create(context.Background(), models.Account{ID: id, Email: email})
	require.NoError(t, err)
	return token
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }
}

func withVoter(token string) requestOption {
	return func(req *http.Request) { req.AddCookie(&http.Cookie{Name: "voter_id", Value: token}) }
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest), w.Body.String())
}

// createPoll 以 owner 身份创建投票
func (e *testEnv) createPoll(t *testing.T, token string, body gin.H) models.Poll {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/polls", body, withToken(token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var poll models.Poll
	decodeBody(t, w, &poll)
	return poll
}

func (e *testEnv) results(t *testing.T, pollID string, opts ...requestOption) models.PollResults {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/polls/"+pollID+"/results", nil, opts...)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var r models.PollResults
	decodeBody(t, w, &r)
	return r
}

func counts(r models.PollResults) []int64 {
	out := make([]int64, len(r.Options))
	for i, o := range r.Options {
		out[i] = o.Count
	}
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	return resp
}
