package realtime

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时
	pongWait = 60 * time.Second

	// 发送ping间隔时间，必须小于pongWait
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 512

	sendBuffer = 64
)

// HandlerOptions 实时推送参数
type HandlerOptions struct {
	// AllowOrigins 为空或包含 * 时允许所有来源
	AllowOrigins []string
	// Heartbeat SSE 心跳间隔
	Heartbeat time.Duration
	// OnError 建立连接前的错误响应
	OnError func(c *gin.Context, err error)
}

// Handler WebSocket 和 SSE 两种推送方式
type Handler struct {
	hub       *Hub
	source    ResultsSource
	upgrader  websocket.Upgrader
	heartbeat time.Duration
	onError   func(c *gin.Context, err error)
}

// NewHandler 创建实时推送处理器
func NewHandler(hub *Hub, source ResultsSource, opts HandlerOptions) *Handler {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 15 * time.Second
	}
	if opts.OnError == nil {
		opts.OnError = func(c *gin.Context, err error) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
	return &Handler{
		hub:    hub,
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(opts.AllowOrigins),
		},
		heartbeat: opts.Heartbeat,
		onError:   opts.OnError,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(set) == 0 || set["*"] || set[origin]
	}
}

// snapshot 连接建立时先发送当前结果
func (h *Handler) snapshot(c *gin.Context) ([]byte, bool) {
	results, err := h.source.GetResults(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		h.onError(c, err)
		return nil, false
	}
	payload, err := resultsMessage(results).ToJSON()
	if err != nil {
		h.onError(c, err)
		return nil, false
	}
	return payload, true
}

// ServeWebSocket 处理WebSocket连接请求
func (h *Handler) ServeWebSocket(c *gin.Context) {
	pollID := c.Param("id")

	// 先注册再统计快照，快照之后提交的投票都会广播到这个客户端
	client := NewClient(pollID, TransportWebSocket, sendBuffer)
	h.hub.Register(client)
	payload, ok := h.snapshot(c)
	if !ok {
		h.hub.Unregister(client)
		return
	}

	// 升级HTTP连接为WebSocket
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Unregister(client)
		log.Warn().Err(err).Str("poll_id", pollID).Msg("WebSocket升级失败")
		return
	}

	// 快照必须是第一帧，注册期间排队的广播随后由 writePump 发送
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	go h.writePump(conn, client)
	go h.readPump(conn, client)

	log.Debug().Str("poll_id", pollID).Str("ip", c.ClientIP()).Msg("WebSocket连接已建立")
}

// readPump 只处理控制帧，客户端发来的消息会被忽略
func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("poll_id", client.PollID).Msg("WebSocket读取失败")
			}
			return
		}
	}
}

// writePump 每条消息单独一帧
func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				conn.WriteMessage(websocket.TextMessage, closedMessage(client.PollID))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE 处理SSE连接请求，直到客户端断开
func (h *Handler) ServeSSE(c *gin.Context) {
	pollID := c.Param("id")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	client := NewClient(pollID, TransportSSE, sendBuffer)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	payload, ok := h.snapshot(c)
	if !ok {
		return
	}

	// 设置SSE所需的HTTP头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // 禁用Nginx缓冲
	c.Status(http.StatusOK)

	if err := writeEvent(c.Writer, flusher, payload); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case message, ok := <-client.send:
			if !ok {
				writeEvent(c.Writer, flusher, closedMessage(pollID))
				return
			}
			if err := writeEvent(c.Writer, flusher, message); err != nil {
				return
			}
		case now := <-heartbeat.C:
			beat, _ := (&Message{Type: MessageHeartbeat, PollID: pollID, Time: now.UTC()}).ToJSON()
			if err := writeEvent(c.Writer, flusher, beat); err != nil {
				log.Debug().Err(err).Str("poll_id", pollID).Msg("发送心跳失败，关闭连接")
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
