package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pickit-backend/migrations"
	"pickit-backend/models"
	"pickit-backend/mq"
	"pickit-backend/repository"
)

// recordingPublisher 记录发布的事件
type recordingPublisher struct {
	mu     sync.Mutex
	events []mq.VoteEvent
}

func (p *recordingPublisher) PublishVote(_ context.Context, event mq.VoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	db        *gorm.DB
	polls     *repository.GormPollRepository
	votes     *repository.GormVoteRepository
	publisher *recordingPublisher
	clock     *fakeClock
	svc       *PollServiceImpl
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
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

	env := &testEnv{
		db:        db,
		polls:     repository.NewGormPollRepository(db),
		votes:     repository.NewGormVoteRepository(db),
		publisher: &recordingPublisher{},
		clock:     &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	env.svc = NewPollService(env.polls, env.votes, env.publisher, Options{
		DefaultPollDuration: 7 * 24 * time.Hour,
		VoteTimeout:         5 * time.Second,
		Now:                 env.clock.Now,
	})
	return env
}

var owner = &models.Account{ID: "owner-1", Email: "owner@example.com"}

func boolPtr(b bool) *bool { return &b }

func (e *testEnv) createPoll(t *testing.T, options []string, multiple, anonymous bool) *models.Poll {
	t.Helper()
	poll, err := e.svc.CreatePoll(context.Background(), owner, CreatePollInput{
		Question:      "Which one?",
		Options:       options,
		AllowMultiple: multiple,
		IsAnonymous:   boolPtr(anonymous),
	})
	require.NoError(t, err)
	return poll
}

func anon(t *testing.T, token string) models.VoterRef {
	t.Helper()
	v, err := models.AnonymousVoter(token)
	require.NoError(t, err)
	return v
}

func countsOf(r *models.PollResults) []int64 {
	out := make([]int64, len(r.Options))
	for i, o := range r.Options {
		out[i] = o.Count
	}
	return out
}
