package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter 按键限流
type RateLimiter interface {
	// Allow 判断请求是否允许通过
	Allow(ctx context.Context, key string) (bool, error)
}

// 令牌桶算法的Lua脚本，时间单位为毫秒
const tokenBucketScript = `
local tokens_key = KEYS[1] .. ":tokens"
local timestamp_key = KEYS[1] .. ":ts"
local now = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tokens = tonumber(redis.call("get", tokens_key) or burst)
local last_update = tonumber(redis.call("get", timestamp_key) or now)

-- 按经过的时间补充令牌
local elapsed = math.max(0, now - last_update)
local filled = math.min(burst, tokens + elapsed * rate / 1000)

local allowed = 0
if filled >= 1 then
	filled = filled - 1
	allowed = 1
end

redis.call("setex", tokens_key, ttl, tostring(filled))
redis.call("setex", timestamp_key, ttl, tostring(now))

return allowed
`

// TokenBucketRateLimiter 令牌桶限流器，状态保存在 Redis，多副本共享
type TokenBucketRateLimiter struct {
	redisClient RedisClient
	prefix      string
	rate        int // 每秒生成的令牌数量
	burst       int // 令牌桶最大容量
}

// NewTokenBucketRateLimiter 创建新的令牌桶限流器
func NewTokenBucketRateLimiter(client RedisClient, prefix string, rate, burst int) *TokenBucketRateLimiter {
	return &TokenBucketRateLimiter{
		redisClient: client,
		prefix:      "rate_limit:" + prefix,
		rate:        rate,
		burst:       burst,
	}
}

// Allow 判断请求是否允许通过
func (l *TokenBucketRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.redisClient == nil {
		return false, ErrRedisNotAvailable
	}

	// 桶填满所需时间再加一秒
	ttl := l.burst/l.rate + 1
	now := time.Now().UnixMilli()

	result, err := l.redisClient.Eval(ctx, tokenBucketScript,
		[]string{fmt.Sprintf("%s:%s", l.prefix, key)},
		now, l.rate, l.burst, ttl,
	).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// LocalRateLimiter 进程内令牌桶，每个键一个 rate.Limiter，闲置后过期回收
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters *gocache.Cache
	rate     rate.Limit
	burst    int
	idle     time.Duration
}

// NewLocalRateLimiter 创建进程内限流器
func NewLocalRateLimiter(perSecond, burst int) *LocalRateLimiter {
	idle := 10 * time.Minute
	return &LocalRateLimiter{
		limiters: gocache.New(idle, time.Minute),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
	}
}

// Allow 判断请求是否允许通过
func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var limiter *rate.Limiter
	if v, ok := l.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.rate, l.burst)
	}
	// 每次访问刷新过期时间
	l.limiters.Set(key, limiter, l.idle)

	return limiter.Allow(), nil
}

// FallbackRateLimiter Redis 出错时退回进程内限流
type FallbackRateLimiter struct {
	primary  RateLimiter
	fallback RateLimiter
}

// NewRateLimiter 有 Redis 用令牌桶，没有则只用进程内限流
func NewRateLimiter(client RedisClient, prefix string, perSecond, burst int) RateLimiter {
	local := NewLocalRateLimiter(perSecond, burst)
	if client == nil {
		return local
	}
	return &FallbackRateLimiter{
		primary:  NewTokenBucketRateLimiter(client, prefix, perSecond, burst),
		fallback: local,
	}
}

// Allow 判断请求是否允许通过
func (l *FallbackRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	allowed, err := l.primary.Allow(ctx, key)
	if err == nil {
		return allowed, nil
	}
	return l.fallback.Allow(ctx, key)
}
