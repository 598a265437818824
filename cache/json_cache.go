package cache

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const nullValue = "NULL"

// Loader 从数据源加载数据，返回 nil 表示数据不存在
type Loader func(ctx context.Context) (interface{}, error)

// JSONCache 读穿缓存：互斥锁防击穿，空值缓存防穿透，随机过期防雪崩
type JSONCache struct {
	redisClient RedisClient
	locker      Locker
	bloomFilter *BloomFilter
	nullTTL     time.Duration
}

// NewJSONCache 创建读穿缓存，bloom 可为 nil
func NewJSONCache(client RedisClient, locker Locker, bloom *BloomFilter, nullTTL time.Duration) *JSONCache {
	return &JSONCache{
		redisClient: client,
		locker:      locker,
		bloomFilter: bloom,
		nullTTL:     nullTTL,
	}
}

// GetOrLoad 读取缓存到 dest，未命中时加载并回填。返回值表示数据是否存在
func (c *JSONCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader Loader) (bool, error) {
	// 布隆过滤器说没缓存过，就不用查 Redis
	mayBeCached := true
	if c.bloomFilter != nil {
		if ok, err := c.bloomFilter.Contains(ctx, key); err == nil {
			mayBeCached = ok
		}
	}

	if mayBeCached {
		if found, hit := c.read(ctx, key, dest); hit {
			return found, nil
		}
	}

	var found bool
	err := c.locker.WithLock(ctx, "cache:"+key, 5*time.Second, func() error {
		// 双重检查，可能其他请求已经填充了缓存
		if f, hit := c.read(ctx, key, dest); hit {
			found = f
			return nil
		}

		var err error
		found, err = c.loadAndStore(ctx, key, ttl, dest, loader)
		return err
	})
	if errors.Is(err, ErrLockNotAcquired) {
		log.Warn().Err(err).Str("key", key).Msg("缓存锁获取失败，直接读取数据源")
		v, loadErr := loader(ctx)
		if loadErr != nil || v == nil {
			return false, loadErr
		}
		return true, copyInto(v, dest)
	}
	return found, err
}

// Mutate 在加载用的同一把锁内执行写操作并删除缓存，并发未命中的加载不会把旧值写回
func (c *JSONCache) Mutate(ctx context.Context, key string, write func() error) error {
	ran := false
	err := c.locker.WithLock(ctx, "cache:"+key, 5*time.Second, func() error {
		ran = true
		writeErr := write()
		if err := c.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("删除缓存失败")
		}
		return writeErr
	})
	if ran || !errors.Is(err, ErrLockNotAcquired) {
		return err
	}

	log.Warn().Err(err).Str("key", key).Msg("缓存锁获取失败，写入后直接删除缓存")
	writeErr := write()
	if err := c.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("删除缓存失败")
	}
	return writeErr
}

// Delete 删除缓存键
func (c *JSONCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.redisClient.Del(ctx, keys...).Err()
}

// read 第二个返回值表示缓存是否命中（包括空值命中）
func (c *JSONCache) read(ctx context.Context, key string, dest interface{}) (bool, bool) {
	data, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("读取缓存失败")
		}
		return false, false
	}
	if data == nullValue {
		return false, true
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("解析缓存数据失败")
		return false, false
	}
	return true, true
}

func (c *JSONCache) loadAndStore(ctx context.Context, key string, ttl time.Duration, dest interface{}, loader Loader) (bool, error) {
	v, err := loader(ctx)
	if err != nil {
		return false, err
	}

	if v == nil {
		if err := c.redisClient.Set(ctx, key, nullValue, c.nullTTL).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("写入空值缓存失败")
		}
		c.remember(ctx, key)
		return false, nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	if err := c.redisClient.Set(ctx, key, payload, jitter(ttl)).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("写入缓存失败")
	}
	c.remember(ctx, key)

	return true, json.Unmarshal(payload, dest)
}

func (c *JSONCache) remember(ctx context.Context, key string) {
	if c.bloomFilter == nil {
		return
	}
	if err := c.bloomFilter.Add(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("更新布隆过滤器失败")
	}
}

// jitter 在 ttl 基础上增加最多10%的随机时间
func jitter(ttl time.Duration) time.Duration {
	if ttl < 10 {
		return ttl
	}
	return ttl + time.Duration(rand.Int63n(int64(ttl/10)))
}

func copyInto(v interface{}, dest interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
