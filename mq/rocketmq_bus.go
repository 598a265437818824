package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/rs/zerolog/log"
)

const voteTag = "vote"

// RocketMQOptions RocketMQ 连接参数
type RocketMQOptions struct {
	NameServer string
	Group      string
	Topic      string
}

// RocketMQBus 基于 RocketMQ 的事件总线。消费者使用广播模式，每个副本都能推送实时结果
type RocketMQBus struct {
	opts     RocketMQOptions
	producer rocketmq.Producer

	mu        sync.Mutex
	consumers []rocketmq.PushConsumer
}

// NewRocketMQBus 创建并启动生产者
func NewRocketMQBus(opts RocketMQOptions) (*RocketMQBus, error) {
	p, err := rocketmq.NewProducer(
		producer.WithNameServer([]string{opts.NameServer}),
		producer.WithGroupName(opts.Group+"_producer"),
		producer.WithRetry(2),
		producer.WithSendMsgTimeout(3*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("创建RocketMQ生产者失败: %w", err)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("启动RocketMQ生产者失败: %w", err)
	}

	log.Info().Str("nameserver", opts.NameServer).Str("topic", opts.Topic).Msg("RocketMQ生产者已启动")
	return &RocketMQBus{opts: opts, producer: p}, nil
}

func (b *RocketMQBus) PublishVote(ctx context.Context, event VoteEvent) error {
	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	msg := primitive.NewMessage(b.opts.Topic, payload).
		WithTag(voteTag).
		WithKeys([]string{event.PollID})

	result, err := b.producer.SendSync(ctx, msg)
	if err != nil {
		return fmt.Errorf("发送投票事件失败: %w", err)
	}
	if result.Status != primitive.SendOK {
		return fmt.Errorf("发送投票事件失败: status %d", result.Status)
	}
	return nil
}

func (b *RocketMQBus) SubscribeVotes(ctx context.Context, handler func(VoteEvent)) error {
	c, err := rocketmq.NewPushConsumer(
		consumer.WithNameServer([]string{b.opts.NameServer}),
		consumer.WithGroupName(b.opts.Group+"_live"),
		consumer.WithConsumerModel(consumer.BroadCasting),
		consumer.WithConsumeFromWhere(consumer.ConsumeFromLastOffset),
	)
	if err != nil {
		return fmt.Errorf("创建RocketMQ消费者失败: %w", err)
	}

	err = c.Subscribe(b.opts.Topic, consumer.MessageSelector{
		Type:       consumer.TAG,
		Expression: voteTag,
	}, func(_ context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
		for _, event := range decodeMessages(msgs...) {
			handler(event)
		}
		return consumer.ConsumeSuccess, nil
	})
	if err != nil {
		return fmt.Errorf("订阅投票事件失败: %w", err)
	}
	if err := c.Start(); err != nil {
		return fmt.Errorf("启动RocketMQ消费者失败: %w", err)
	}

	b.mu.Lock()
	b.consumers = append(b.consumers, c)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := c.Shutdown(); err != nil {
			log.Warn().Err(err).Msg("关闭RocketMQ消费者失败")
		}
	}()
	return nil
}

// decodeMessages 跳过无法解析的消息，广播模式下重试没有意义
func decodeMessages(msgs ...*primitive.MessageExt) []VoteEvent {
	events := make([]VoteEvent, 0, len(msgs))
	for _, msg := range msgs {
		event, err := decodeEvent(msg.Body)
		if err != nil || event.PollID == "" {
			log.Warn().Err(err).Str("msg_id", msg.MsgId).Msg("无法解析投票事件")
			continue
		}
		events = append(events, event)
	}
	return events
}

func (b *RocketMQBus) Close() error {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	for _, c := range consumers {
		_ = c.Shutdown()
	}
	return b.producer.Shutdown()
}
