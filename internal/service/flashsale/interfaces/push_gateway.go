package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhangzw218/EShop/internal/pkg/logger"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain"
	"github.com/zhangzw218/EShop/internal/service/flashsale/domain/port"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

// PushHub 维护所有在线的 websocket 连接，按 UserID 索引
// 同时实现结果通知端口：秒杀结局一出来就推给在线用户，免得干等轮询
type PushHub struct {
	clients    map[string]*pushClient
	register   chan *pushClient
	unregister chan *pushClient
	lock       sync.RWMutex
}

func NewPushHub() *PushHub {
	return &PushHub{
		clients:    make(map[string]*pushClient),
		register:   make(chan *pushClient),
		unregister: make(chan *pushClient),
	}
}

var _ port.ResultNotifier = (*PushHub)(nil)

// Run 处理注册与注销，直到 ctx 取消
func (h *PushHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.lock.Lock()
			// 同一用户重连时顶掉旧连接
			if old, ok := h.clients[client.userID]; ok {
				close(old.send)
			}
			h.clients[client.userID] = client
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("userId", client.userID).Msg("push client registered")
		case client := <-h.unregister:
			h.lock.Lock()
			if current, ok := h.clients[client.userID]; ok && current == client {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.lock.Unlock()
			logger.Ctx(ctx).Info().Str("userId", client.userID).Msg("push client unregistered")
		}
	}
}

// resultNotification 是推给客户端的消息体
type resultNotification struct {
	Type     string                       `json:"type"`
	ResultID string                       `json:"resultId"`
	PlanID   string                       `json:"planId"`
	Status   domain.FlashSaleResultStatus `json:"status"`
	OrderID  string                       `json:"orderId,omitempty"`
}

// NotifyResult 把已解决的结果推给在线用户，尽力而为
func (h *PushHub) NotifyResult(ctx context.Context, userID string, result *domain.FlashSaleResult) {
	h.lock.RLock()
	client, ok := h.clients[userID]
	h.lock.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(&resultNotification{
		Type:     "flash-sale-result",
		ResultID: result.ID,
		PlanID:   result.PlanID,
		Status:   result.Status,
		OrderID:  result.OrderID,
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("userId", userID).Msg("failed to marshal result notification")
		return
	}

	select {
	case client.send <- data:
	default:
		// 发送缓冲满说明连接已经不健康，丢弃本次推送
		logger.Ctx(ctx).Warn().Str("userId", userID).Msg("push client send buffer full, dropping notification")
	}
}

// ServeWS 把 HTTP 请求升级为 websocket 连接并挂进 Hub
func (h *PushHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &pushClient{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// pushClient 代表一条 websocket 连接
type pushClient struct {
	hub    *PushHub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// writePump 把 send 通道里的消息写到连接上，并周期性发 ping
func (c *pushClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只消费心跳，读到错误时注销连接
func (c *pushClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
