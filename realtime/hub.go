package realtime

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"pickit-backend/metrics"
)

const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// Client 一个订阅某个投票结果的连接
type Client struct {
	// 订阅的投票ID
	PollID string

	// websocket 或 sse
	Transport string

	// 消息发送通道，Hub 注销时关闭
	send chan []byte
}

// NewClient 创建客户端，buffer 为发送缓冲区大小
func NewClient(pollID, transport string, buffer int) *Client {
	return &Client{PollID: pollID, Transport: transport, send: make(chan []byte, buffer)}
}

// Messages 待发送的消息，通道关闭表示连接应当结束
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// Hub 维护活跃的客户端集合并向客户端广播消息
type Hub struct {
	// 已注册的客户端，按投票ID分组
	clients map[string]map[*Client]bool
	closed  bool

	// 互斥锁保护clients map
	mu sync.RWMutex
}

// NewHub 创建一个新的Hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]bool)}
}

// Register 注册客户端到Hub，Hub 已关闭时直接关闭客户端
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(client.send)
		return
	}
	if _, ok := h.clients[client.PollID]; !ok {
		h.clients[client.PollID] = make(map[*Client]bool)
	}
	h.clients[client.PollID][client] = true
	total := len(h.clients[client.PollID])
	h.mu.Unlock()

	metrics.LiveClients.WithLabelValues(client.Transport).Inc()
	log.Debug().Str("poll_id", client.PollID).Str("transport", client.Transport).Int("clients", total).Msg("实时客户端已注册")
}

// Unregister 从Hub中注销客户端，重复注销无副作用
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := h.remove(client)
	h.mu.Unlock()
	if removed {
		log.Debug().Str("poll_id", client.PollID).Str("transport", client.Transport).Msg("实时客户端已注销")
	}
}

// Close 断开所有客户端，之后的注册会被拒绝
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, clients := range h.clients {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Run 阻塞到 ctx 结束后关闭 Hub
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.Close()
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) bool {
	clients, ok := h.clients[client.PollID]
	if !ok || !clients[client] {
		return false
	}
	delete(clients, client)
	close(client.send)
	metrics.LiveClients.WithLabelValues(client.Transport).Dec()
	if len(clients) == 0 {
		delete(h.clients, client.PollID)
	}
	return true
}

// Watching 该投票是否有在线客户端
func (h *Hub) Watching(pollID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[pollID]) > 0
}

// ClientCount 该投票的在线客户端数
func (h *Hub) ClientCount(pollID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[pollID])
}

// Broadcast 向某个投票的所有客户端发送消息，缓冲区满的客户端会被断开
func (h *Hub) Broadcast(pollID string, payload []byte) int {
	var slow []*Client
	delivered := 0

	// 持读锁发送，注销需要写锁，避免向已关闭的通道写入
	h.mu.RLock()
	for client := range h.clients[pollID] {
		select {
		case client.send <- payload:
			delivered++
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, client := range slow {
			h.remove(client)
		}
		h.mu.Unlock()
		log.Warn().Str("poll_id", pollID).Int("dropped", len(slow)).Msg("客户端发送缓冲区已满，断开连接")
	}
	return delivered
}
