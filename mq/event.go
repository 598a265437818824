package mq

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// VoteEvent 某个投票新增了选票。只携带投票ID，订阅方自行重新统计
type VoteEvent struct {
	PollID     string    `json:"poll_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 发布投票事件
type Publisher interface {
	PublishVote(ctx context.Context, event VoteEvent) error
}

// Subscriber 订阅投票事件，ctx 结束时取消订阅
type Subscriber interface {
	SubscribeVotes(ctx context.Context, handler func(VoteEvent)) error
}

// Bus 投票事件总线
type Bus interface {
	Publisher
	Subscriber
	Close() error
}

func encodeEvent(event VoteEvent) ([]byte, error) {
	return json.Marshal(event)
}

func decodeEvent(payload []byte) (VoteEvent, error) {
	var event VoteEvent
	err := json.Unmarshal(payload, &event)
	return event, err
}
