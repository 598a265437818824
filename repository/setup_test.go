package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pickit-backend/migrations"
	"pickit-backend/models"
)

// setupTestDB 每个测试一个独立的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func newPoll(owner string, expiresAt time.Time, options ...string) *models.Poll {
	if len(options) == 0 {
		options = []string{"A", "B"}
	}
	return &models.Poll{
		ID:          uuid.NewString(),
		Question:    "Favourite letter?",
		Options:     options,
		IsAnonymous: true,
		OwnerID:     &owner,
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
}

func ballotFor(t *testing.T, pollID string, voter models.VoterRef, name *string, options ...int) (*models.Ballot, []models.Vote) {
	t.Helper()
	ballot := &models.Ballot{PollID: pollID, VoterKey: voter.Key(), CreatedAt: time.Now().UTC()}
	votes := make([]models.Vote, len(options))
	for i, idx := range options {
		votes[i] = models.Vote{PollID: pollID, OptionIndex: idx, VoterName: name, CreatedAt: ballot.CreatedAt}
		voter.Apply(&votes[i])
	}
	return ballot, votes
}

func mustVoter(t *testing.T, token string) models.VoterRef {
	t.Helper()
	v, err := models.AnonymousVoter(token)
	require.NoError(t, err)
	return v
}
