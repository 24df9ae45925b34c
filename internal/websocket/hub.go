package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	jwtpkg "mailrouter/backend/internal/auth/jwt"
	"mailrouter/backend/internal/domain"
)

// MessageType WebSocket 消息类型
type MessageType string

const (
	MessageTypeEmailLog MessageType = "email_log" // 新产生的邮件审计日志
	MessageTypePing     MessageType = "ping"
	MessageTypePong     MessageType = "pong"
	MessageTypeError    MessageType = "error"
)

// Message WebSocket 消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 一个已认证的 WebSocket 连接，归属于单个用户。
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	log    *zap.Logger
}

// Hub 管理所有 WebSocket 连接，按用户分组推送邮件日志。
//
// 实现 service.EventPublisher：分流管道每写入一条审计日志，
// 该用户的所有在线连接都会实时收到。
type Hub struct {
	clients        map[string]*Client            // clientID -> Client
	users          map[string]map[string]*Client // userID -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *userMessage
	mu             sync.RWMutex
	jwtManager     *jwtpkg.Manager
	allowedOrigins []string
	log            *zap.Logger
}

type userMessage struct {
	userID  string
	message *Message
}

// NewHub 创建 WebSocket Hub
func NewHub(jwtManager *jwtpkg.Manager, allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		users:          make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *userMessage, 256),
		jwtManager:     jwtManager,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
}

// Run 启动 Hub，ctx 取消时关闭所有连接。
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			if h.users[client.userID] == nil {
				h.users[client.userID] = make(map[string]*Client)
			}
			h.users[client.userID][client.id] = client
			h.mu.Unlock()
			h.log.Info("websocket client registered",
				zap.String("client_id", client.id),
				zap.String("user_id", client.userID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				if clients, exists := h.users[client.userID]; exists {
					delete(clients, client.id)
					if len(clients) == 0 {
						delete(h.users, client.userID)
					}
				}
				close(client.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToUser(msg.userID, msg.message)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// PublishEmailLog 向用户的所有在线连接推送一条新的邮件日志。
//
// 无人在线时消息被丢弃；日志的权威来源是存储层，推送只是通知。
func (h *Hub) PublishEmailLog(userID string, emailLog *domain.EmailLog) {
	data, err := json.Marshal(emailLog)
	if err != nil {
		h.log.Error("failed to marshal email log", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeEmailLog,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- &userMessage{userID: userID, message: msg}:
	default:
		h.log.Warn("websocket broadcast channel full, dropping message",
			zap.String("user_id", userID),
		)
	}
}

// broadcastToUser 向某个用户的全部连接发送消息
func (h *Hub) broadcastToUser(userID string, msg *Message) {
	h.mu.RLock()
	clients := h.users[userID]
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			// 客户端阻塞，跳过
			h.log.Warn("client channel blocked, skipping", zap.String("client_id", client.id))
		}
	}
}

// pingAllClients 向所有客户端发送应用层 ping
func (h *Hub) pingAllClients() {
	msg := &Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.users = make(map[string]map[string]*Client)
}

// newUpgrader 创建带 Origin 验证的升级器
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// HandleWebSocket 处理 WebSocket 连接请求。
//
// 认证方式：token 查询参数或 Authorization: Bearer 头。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := newUpgrader(hub.allowedOrigins)

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}

		claims, err := hub.jwtManager.ValidateToken(token)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"code": http.StatusUnauthorized,
				"msg":  "需要登录认证",
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
			)
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			userID: claims.UserID,
			conn:   conn,
			send:   make(chan []byte, 256),
			hub:    hub,
			log:    hub.log,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

// readPump 读取客户端消息，维持连接活性
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		if msg.Type == MessageTypePong {
			c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// writePump 向客户端发送消息
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.WriteMessage(websocket.TextMessage, message)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
