package service

import (
	"comic_english_backend/pkg/logger"
	"comic_english_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	shardCount     = 16

	// 多实例部署时通过 Redis 广播进度事件
	progressChannel = "generation_progress"
)

const (
	EventGenerationProgress = "GENERATION_PROGRESS"
	EventPong               = "PONG"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// 生成流程的步骤状态
const (
	StepStarted   = "started"
	StepCompleted = "completed"
	StepFailed    = "failed"
)

// ProgressEvent 生成流程中某一步的状态
type ProgressEvent struct {
	Step   string `json:"step"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// ProgressNotifier 向发起生成的教师推送进度
type ProgressNotifier interface {
	Notify(userID uint, event ProgressEvent)
}

type Client struct {
	Hub     *GenerationHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Limiter *rate.Limiter
}

func (c *Client) readPump() {
	defer func() {
		// Stop 之后 Run 已退出，不能再阻塞在 unregister 上
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.stop:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		// 客户端只会发送心跳
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.Type != "PING" {
			continue
		}
		if payload, err := json.Marshal(WSMessage{Type: EventPong}); err == nil {
			select {
			case c.Send <- payload:
			default:
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]map[*Client]struct{}
	mu      sync.RWMutex
}

// GenerationHub 维护教师的 websocket 连接，一个用户可以同时打开多个页面
type GenerationHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	Redis      *redis.Client
	ctx        context.Context
}

// NewGenerationHub rdb 为空时只向本实例的连接推送
func NewGenerationHub(rdb *redis.Client) *GenerationHub {
	h := &GenerationHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		Redis:      rdb,
		ctx:        context.Background(),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{clients: make(map[uint]map[*Client]struct{})}
	}
	return h
}

func (h *GenerationHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

type pubSubMessage struct {
	TargetUser uint            `json:"targetUser"`
	Payload    json.RawMessage `json:"payload"`
}

func (h *GenerationHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(h.ctx, progressChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var ps pubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &ps); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.deliverLocal(ps.TargetUser, ps.Payload)
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if s.clients[client.UserID] == nil {
				s.clients[client.UserID] = make(map[*Client]struct{})
			}
			s.clients[client.UserID][client] = struct{}{}
			s.mu.Unlock()
			monitoring.HubConnections.Inc()

		case client := <-h.unregister:
			h.remove(client)

		case <-h.stop:
			return
		}
	}
}

func (h *GenerationHub) remove(client *Client) {
	s := h.getShard(client.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	conns := s.clients[client.UserID]
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(s.clients, client.UserID)
	}
	close(client.Send)
	monitoring.HubConnections.Dec()
}

// Stop 关闭所有连接
func (h *GenerationHub) Stop() {
	closed := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for userID, conns := range s.clients {
			for client := range conns {
				close(client.Send)
				closed++
			}
			delete(s.clients, userID)
		}
		s.mu.Unlock()
	}
	close(h.stop)
	monitoring.HubConnections.Set(0)
	logger.Log.Info("GenerationHub stopped", zap.Int("closedConnections", closed))
}

// Notify 推送进度事件。配置了 Redis 时经由频道广播，由持有连接的实例投递
func (h *GenerationHub) Notify(userID uint, event ProgressEvent) {
	payload, err := json.Marshal(WSMessage{Type: EventGenerationProgress, Data: event})
	if err != nil {
		return
	}
	if h.Redis == nil {
		h.deliverLocal(userID, payload)
		return
	}

	msg, _ := json.Marshal(pubSubMessage{TargetUser: userID, Payload: payload})
	if err := h.Redis.Publish(h.ctx, progressChannel, msg).Err(); err != nil {
		logger.Log.Warn("Publish progress failed, delivering locally", zap.Error(err))
		h.deliverLocal(userID, payload)
	}
}

func (h *GenerationHub) deliverLocal(userID uint, payload []byte) {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients[userID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// ConnectionCount 某个用户在本实例上的连接数
func (h *GenerationHub) ConnectionCount(userID uint) int {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

func ServeWs(hub *GenerationHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		UserID:  userID,
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
	select {
	case hub.register <- client:
	case <-hub.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
