package server

import (
	"net/http"

	"ClipDeck/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 本地回环服务，界面端来自 webview，放开来源检查
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketEditorHandler 建立界面端连接。
// ?role=controller 是时间轴界面，?role=player 是承载 video 元素的预览窗口。
func (h *APIHandler) WebSocketEditorHandler(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != RoleController && role != RolePlayer {
		role = RoleController
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &Client{
		Hub:  h.session.hub,
		Conn: conn,
		Send: make(chan []byte, 256),
		ID:   uuid.New().String(),
		Role: role,
	}
	client.Hub.Register(client)

	logger.Info("editor client connected",
		logger.String("client", client.ID),
		logger.String("role", role))

	go client.WritePump()

	// 新连接先收一份完整快照
	h.session.hub.BroadcastData(MsgTypeState, h.session.BuildSnapshot(), "")

	// 阻塞读循环；返回即断开，清理该客户端持有的手势
	client.ReadPump(h.session.HandleMessage)
	h.session.ReleaseClient(client)

	logger.Info("editor client disconnected",
		logger.String("client", client.ID),
		logger.String("role", role))
}
