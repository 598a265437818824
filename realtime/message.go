package realtime

import (
	"time"

	"github.com/goccy/go-json"

	"pickit-backend/models"
)

const (
	MessageResults   = "results"
	MessageHeartbeat = "heartbeat"
	MessageClosed    = "closed"
)

// Message 推送给实时客户端的帧
type Message struct {
	Type    string              `json:"type"`
	PollID  string              `json:"poll_id"`
	Results *models.PollResults `json:"results,omitempty"`
	Time    time.Time           `json:"time"`
}

// ToJSON 将消息转换为JSON格式
func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// closedMessage Hub 关闭或客户端被丢弃时的最后一帧
func closedMessage(pollID string) []byte {
	payload, _ := (&Message{Type: MessageClosed, PollID: pollID, Time: time.Now().UTC()}).ToJSON()
	return payload
}

func resultsMessage(results *models.PollResults) *Message {
	return &Message{Type: MessageResults, PollID: results.PollID, Results: results, Time: results.ComputedAt}
}
