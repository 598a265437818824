package mq

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrBusClosed 总线已关闭
var ErrBusClosed = errors.New("event bus closed")

// Options 选择事件总线实现
type Options struct {
	Driver   string
	Channel  string
	RocketMQ RocketMQOptions
}

// New 按配置创建事件总线。Redis 不可用时退回进程内总线
func New(opts Options, redisClient *redis.Client) (Bus, error) {
	switch opts.Driver {
	case "rocketmq":
		return NewRocketMQBus(opts.RocketMQ)
	case "redis":
		if redisClient != nil {
			log.Info().Str("channel", opts.Channel).Msg("使用Redis Pub/Sub事件总线")
			return NewRedisBus(redisClient, opts.Channel), nil
		}
		log.Warn().Msg("Redis不可用，使用进程内事件总线")
	}
	return NewLocalBus(256), nil
}
