package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollIsExpired(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := &Poll{ExpiresAt: expires}

	assert.False(t, p.IsExpired(expires.Add(-time.Nanosecond)))
	assert.True(t, p.IsExpired(expires))
	assert.True(t, p.IsExpired(expires.Add(time.Hour)))
}

func TestPollOwnershipAndOptions(t *testing.T) {
	owner := "user-1"
	p := &Poll{OwnerID: &owner, Options: []string{"A", "B", "C"}}

	assert.True(t, p.IsOwnedBy("user-1"))
	assert.False(t, p.IsOwnedBy("user-2"))
	assert.False(t, p.IsOwnedBy(""))
	assert.False(t, (&Poll{}).IsOwnedBy("user-1"))

	assert.True(t, p.HasOption(0))
	assert.True(t, p.HasOption(2))
	assert.False(t, p.HasOption(3))
	assert.False(t, p.HasOption(-1))
}
