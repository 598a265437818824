package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("MQ_DRIVER", "local")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.ServerPort)
	assert.Equal(t, "voter_id", cfg.VoterCookieName)
	assert.Equal(t, 365*24*time.Hour, cfg.VoterCookieMaxAge)
	assert.Equal(t, 7*24*time.Hour, cfg.DefaultPollDuration)
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionPeriod)
	assert.Equal(t, 5*time.Second, cfg.VoteTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("MQ_DRIVER", "rocketmq")
	t.Setenv("VOTE_TIMEOUT", "2s")
	t.Setenv("ADMIN_EMAILS", " root@example.com, ,ops@example.com")
	t.Setenv("RATE_LIMIT_RATE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "rocketmq", cfg.MQDriver)
	assert.Equal(t, 2*time.Second, cfg.VoteTimeout)
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Equal(t, 5, cfg.RateLimitRate)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"db driver", map[string]string{"DB_DRIVER": "oracle", "MQ_DRIVER": "local"}},
		{"mq driver", map[string]string{"DB_DRIVER": "sqlite", "MQ_DRIVER": "kafka"}},
		{"timeout", map[string]string{"DB_DRIVER": "sqlite", "MQ_DRIVER": "local", "VOTE_TIMEOUT": "0s"}},
		{"cleanup interval", map[string]string{"DB_DRIVER": "sqlite", "MQ_DRIVER": "local", "CLEANUP_INTERVAL": "0s"}},
		{"negative retention", map[string]string{"DB_DRIVER": "sqlite", "MQ_DRIVER": "local", "RETENTION_PERIOD": "-1h"}},
		{"session ttl", map[string]string{"DB_DRIVER": "sqlite", "MQ_DRIVER": "local", "SESSION_TTL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminEmails: []string{"Admin@Example.com"}}

	assert.True(t, cfg.IsAdmin("admin@example.com"))
	assert.True(t, cfg.IsAdmin("  ADMIN@example.com "))
	assert.False(t, cfg.IsAdmin("someone@example.com"))
	assert.False(t, cfg.IsAdmin(""))
}
