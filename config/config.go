package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 服务运行配置，全部来自环境变量（可选 .env 文件）
type Config struct {
	ServerPort string
	LogLevel   string
	LogFile    string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// MQDriver 选择投票事件总线：redis、rocketmq 或 local
	MQDriver           string
	RocketMQNameServer string
	RocketMQGroup      string
	RocketMQTopic      string

	AllowOrigins []string

	AuthProviderURL   string
	AuthSigningSecret string
	SessionTTL        time.Duration
	AdminEmails       []string

	VoterCookieName   string
	VoterCookieMaxAge time.Duration
	CookieSecure      bool

	DefaultPollDuration time.Duration
	VoteTimeout         time.Duration
	RetentionPeriod     time.Duration
	CleanupInterval     time.Duration

	RateLimitEnabled bool
	RateLimitRate    int
	RateLimitBurst   int
}

var (
	validDBDrivers = map[string]bool{"mysql": true, "sqlite": true, "postgres": true}
	validMQDrivers = map[string]bool{"redis": true, "rocketmq": true, "local": true}
)

// Load 读取 .env（如果存在）和环境变量
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "8090"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFile:    getEnv("LOG_FILE", "pickit.log"),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DBDSN:    getEnv("DB_DSN", "pickit.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		MQDriver:           strings.ToLower(getEnv("MQ_DRIVER", "redis")),
		RocketMQNameServer: getEnv("ROCKETMQ_NAMESERVER", "127.0.0.1:9876"),
		RocketMQGroup:      getEnv("ROCKETMQ_GROUP", "pickit"),
		RocketMQTopic:      getEnv("ROCKETMQ_TOPIC", "pickit_votes"),

		AllowOrigins: getEnvList("ALLOW_ORIGINS", []string{"http://localhost:3000"}),

		AuthProviderURL:   getEnv("AUTH_PROVIDER_URL", "http://localhost:3000/login"),
		AuthSigningSecret: getEnv("AUTH_SIGNING_SECRET", ""),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*24*time.Hour),
		AdminEmails:       getEnvList("ADMIN_EMAILS", nil),

		VoterCookieName:   getEnv("VOTER_COOKIE_NAME", "voter_id"),
		VoterCookieMaxAge: getEnvDuration("VOTER_COOKIE_MAX_AGE", 365*24*time.Hour),
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),

		DefaultPollDuration: getEnvDuration("DEFAULT_POLL_DURATION", 7*24*time.Hour),
		VoteTimeout:         getEnvDuration("VOTE_TIMEOUT", 5*time.Second),
		RetentionPeriod:     getEnvDuration("RETENTION_PERIOD", 7*24*time.Hour),
		CleanupInterval:     getEnvDuration("CLEANUP_INTERVAL", time.Hour),

		RateLimitEnabled: getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitRate:    getEnvInt("RATE_LIMIT_RATE", 5),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if !validDBDrivers[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if !validMQDrivers[c.MQDriver] {
		return fmt.Errorf("unsupported MQ_DRIVER %q", c.MQDriver)
	}
	positive := []struct {
		name  string
		value time.Duration
	}{
		{"VOTE_TIMEOUT", c.VoteTimeout},
		{"SESSION_TTL", c.SessionTTL},
		{"RETENTION_PERIOD", c.RetentionPeriod},
		{"CLEANUP_INTERVAL", c.CleanupInterval},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	if c.RateLimitEnabled && (c.RateLimitRate <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RATE and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// IsAdmin 判断邮箱是否在管理员白名单中
func (c *Config) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.AdminEmails {
		if strings.ToLower(admin) == email {
			return true
		}
	}
	return false
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return d
}

// getEnvList 逗号分隔的列表，空项会被忽略
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
