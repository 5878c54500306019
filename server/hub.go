package server

import (
	"encoding/json"
	"sync"
	"time"

	"ClipDeck/logger"

	"github.com/gorilla/websocket"
)

// MessageType 消息类型
type MessageType string

const (
	// 系统消息
	MsgTypeError MessageType = "error" // 错误消息
	MsgTypePing  MessageType = "ping"  // 心跳
	MsgTypePong  MessageType = "pong"  // 心跳响应
	MsgTypeState MessageType = "state" // 会话状态快照

	// 手势消息（控制端 -> 引擎）
	MsgTypePointerDown MessageType = "pointer_down" // 在片段上按下
	MsgTypePointerMove MessageType = "pointer_move" // 指针移动
	MsgTypePointerUp   MessageType = "pointer_up"   // 松开，手势结束
	MsgTypeResizeBegin MessageType = "resize_begin" // 抓住裁剪手柄
	MsgTypeResizeMove  MessageType = "resize_move"  // 裁剪移动
	MsgTypeResizeEnd   MessageType = "resize_end"   // 裁剪结束
	MsgTypeDragResult  MessageType = "drag_result"  // 拖拽解析结果回执（引擎 -> 控制端）

	// 播放控制消息（控制端 -> 引擎）
	MsgTypeTransport MessageType = "transport" // play/pause/toggle/skip/seek
	MsgTypePlayhead  MessageType = "playhead"  // 设置播放头

	// 解码面指令（引擎 -> 播放端）
	MsgTypeSurfaceLoad  MessageType = "surface_load"
	MsgTypeSurfacePlay  MessageType = "surface_play"
	MsgTypeSurfacePause MessageType = "surface_pause"
	MsgTypeSurfaceSeek  MessageType = "surface_seek"

	// 解码面事件（播放端 -> 引擎）
	MsgTypeSurfaceLoaded     MessageType = "surface_loaded"
	MsgTypeSurfaceError      MessageType = "surface_error"
	MsgTypeSurfaceEnded      MessageType = "surface_ended"
	MsgTypeSurfaceTimeUpdate MessageType = "surface_timeupdate"
	MsgTypeSurfaceWaiting    MessageType = "surface_waiting"
	MsgTypeSurfaceCanPlay    MessageType = "surface_canplay"
)

// 客户端角色：控制端发手势和命令，播放端承载解码面
const (
	RoleController = "controller"
	RolePlayer     = "player"
)

// WSMessage WebSocket 消息结构
type WSMessage struct {
	Type      MessageType     `json:"type"`
	ClientID  string          `json:"clientId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Client 一个已连接的界面端
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	ID   string
	Role string // controller, player
}

// BroadcastMessage 广播载荷
type BroadcastMessage struct {
	Message  []byte
	OnlyRole string // 只发给特定角色，空串发给所有客户端
}

// Hub 管理编辑会话的全部 WebSocket 连接。
// 控制端（时间轴界面）和播放端（承载 video 元素的预览窗口）
// 都挂在同一个 Hub 上。
type Hub struct {
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu   sync.RWMutex
	done chan struct{}
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// Run 启动 Hub 主循环
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info("ui client connected",
				logger.String("client", client.ID),
				logger.String("role", client.Role))

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastLocked(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop 停止 Hub
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		logger.Info("ui client disconnected", logger.String("client", client.ID))
	}
}

func (h *Hub) broadcastLocked(msg *BroadcastMessage) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if msg.OnlyRole != "" && client.Role != msg.OnlyRole {
			continue
		}
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.Send <- msg.Message:
		default:
			// 发送缓冲区满，踢掉客户端。
			// 这里本就运行在 Run 协程上，直接摘除，不能回投 unregister
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]bool)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast 广播 WSMessage，role 为空串时发给所有客户端
func (h *Hub) Broadcast(msg *WSMessage, role string) error {
	msg.Timestamp = time.Now().UnixMilli()
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- &BroadcastMessage{Message: data, OnlyRole: role}:
	case <-h.done:
	}
	return nil
}

// BroadcastData 带载荷广播的便捷封装
func (h *Hub) BroadcastData(msgType MessageType, data interface{}, role string) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal broadcast payload",
			logger.String("type", string(msgType)),
			logger.ErrorField(err))
		return
	}
	if err := h.Broadcast(&WSMessage{Type: msgType, Data: raw}, role); err != nil {
		logger.Warn("broadcast failed", logger.ErrorField(err))
	}
}

// ========== Client 方法 ==========

// ReadPump 读取消息循环
func (c *Client) ReadPump(handler func(client *Client, msg *WSMessage)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(8192)
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error",
					logger.ErrorField(err),
					logger.String("client", c.ID))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format",
				logger.ErrorField(err),
				logger.String("client", c.ID))
			continue
		}

		if msg.Type == MsgTypePing {
			pong := &WSMessage{Type: MsgTypePong, Timestamp: time.Now().UnixMilli()}
			if data, err := json.Marshal(pong); err == nil {
				select {
				case c.Send <- data:
				default:
				}
			}
			continue
		}

		handler(c, &msg)
	}
}

// WritePump 写入消息循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// 合并发送队列中的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
