package realtime

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"pickit-backend/models"
	"pickit-backend/mq"
)

// ResultsSource 计算投票结果
type ResultsSource interface {
	GetResults(ctx context.Context, pollID string, viewer *models.VoterRef) (*models.PollResults, error)
}

// Refresher 收到投票事件后重新统计并广播给在线客户端
type Refresher struct {
	hub     *Hub
	source  ResultsSource
	timeout time.Duration
}

func NewRefresher(hub *Hub, source ResultsSource) *Refresher {
	return &Refresher{hub: hub, source: source, timeout: 5 * time.Second}
}

// Start 订阅事件总线，ctx 结束时取消订阅
func (r *Refresher) Start(ctx context.Context, sub mq.Subscriber) error {
	return sub.SubscribeVotes(ctx, func(event mq.VoteEvent) {
		r.Refresh(ctx, event.PollID)
	})
}

// Refresh 没有客户端在看时不做统计
func (r *Refresher) Refresh(ctx context.Context, pollID string) {
	if !r.hub.Watching(pollID) {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	results, err := r.source.GetResults(ctx, pollID, nil)
	if err != nil {
		log.Warn().Err(err).Str("poll_id", pollID).Msg("重新统计投票结果失败")
		return
	}

	payload, err := resultsMessage(results).ToJSON()
	if err != nil {
		log.Error().Err(err).Str("poll_id", pollID).Msg("序列化投票结果失败")
		return
	}
	n := r.hub.Broadcast(pollID, payload)
	log.Debug().Str("poll_id", pollID).Int("clients", n).Msg("已广播投票结果")
}
