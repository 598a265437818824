package mq

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// LocalBus 进程内事件总线，没有 Redis 或 RocketMQ 时使用
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]func(VoteEvent)
	nextID   int

	events chan VoteEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewLocalBus 创建进程内总线并启动分发协程
func NewLocalBus(buffer int) *LocalBus {
	if buffer <= 0 {
		buffer = 256
	}
	b := &LocalBus{
		handlers: make(map[int]func(VoteEvent)),
		events:   make(chan VoteEvent, buffer),
		done:     make(chan struct{}),
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

func (b *LocalBus) PublishVote(ctx context.Context, event VoteEvent) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}

	select {
	case b.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		log.Warn().Str("poll_id", event.PollID).Msg("事件缓冲区已满，丢弃投票事件")
		return nil
	}
}

func (b *LocalBus) SubscribeVotes(ctx context.Context, handler func(VoteEvent)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()
	return nil
}

func (b *LocalBus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case event := <-b.events:
			b.mu.RLock()
			handlers := make([]func(VoteEvent), 0, len(b.handlers))
			for _, h := range b.handlers {
				handlers = append(handlers, h)
			}
			b.mu.RUnlock()

			for _, h := range handlers {
				h(event)
			}
		case <-b.done:
			return
		}
	}
}

func (b *LocalBus) Close() error {
	b.once.Do(func() {
		close(b.done)
	})
	b.wg.Wait()
	return nil
}
