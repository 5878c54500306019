package server

import (
	"sync"
)

// surfaceLoadCmd 解码面加载指令载荷
type surfaceLoadCmd struct {
	SourceLocator string `json:"sourceLocator"`
	Generation    uint64 `json:"generation"`
}

// surfaceSeekCmd 解码面定位指令载荷
type surfaceSeekCmd struct {
	Time float64 `json:"time"`
}

// surfaceStatus 播放端随 timeupdate 周期上报的解码面状态
type surfaceStatus struct {
	Time   float64 `json:"time"`
	Paused bool    `json:"paused"`
	Ended  bool    `json:"ended"`
	Ready  bool    `json:"ready"`
}

// RemoteSurface 把 playback.Surface 桥接到播放端窗口里的 video 元素：
// 指令走 WebSocket 发出去，解码器状态靠播放端上报的事件在本地镜像。
// 播放端掉线时镜像标记为未就绪，同步循环会自行退场。
type RemoteSurface struct {
	hub *Hub

	mu     sync.Mutex
	status surfaceStatus
}

// NewRemoteSurface 创建远端解码面
func NewRemoteSurface(hub *Hub) *RemoteSurface {
	return &RemoteSurface{
		hub: hub,
		// 初始视为已暂停未就绪
		status: surfaceStatus{Paused: true},
	}
}

// Load 让播放端打开新媒体源，generation 随完成事件回传
func (s *RemoteSurface) Load(sourceLocator string, generation uint64) {
	s.mu.Lock()
	s.status.Ready = false
	s.status.Ended = false
	s.mu.Unlock()

	s.hub.BroadcastData(MsgTypeSurfaceLoad, surfaceLoadCmd{
		SourceLocator: sourceLocator,
		Generation:    generation,
	}, RolePlayer)
}

// Play 发出播放指令，镜像乐观地置为未暂停
func (s *RemoteSurface) Play() {
	s.mu.Lock()
	s.status.Paused = false
	s.mu.Unlock()
	s.hub.BroadcastData(MsgTypeSurfacePlay, struct{}{}, RolePlayer)
}

// Pause 发出暂停指令
func (s *RemoteSurface) Pause() {
	s.mu.Lock()
	s.status.Paused = true
	s.mu.Unlock()
	s.hub.BroadcastData(MsgTypeSurfacePause, struct{}{}, RolePlayer)
}

// Seek 写解码器内部时钟，镜像同步更新避免纠偏抖动
func (s *RemoteSurface) Seek(t float64) {
	s.mu.Lock()
	s.status.Time = t
	s.mu.Unlock()
	s.hub.BroadcastData(MsgTypeSurfaceSeek, surfaceSeekCmd{Time: t}, RolePlayer)
}

// CurrentTime 返回镜像的解码器位置
func (s *RemoteSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Time
}

// Ready 解码面是否就绪
func (s *RemoteSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Ready
}

// Paused 解码面是否暂停
func (s *RemoteSurface) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Paused
}

// Ended 解码面是否播完
func (s *RemoteSurface) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Ended
}

// UpdateStatus 播放端上报状态时刷新镜像
func (s *RemoteSurface) UpdateStatus(st surfaceStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// MarkReady 播放端 loaded/canplay 事件后标记就绪
func (s *RemoteSurface) MarkReady() {
	s.mu.Lock()
	s.status.Ready = true
	s.mu.Unlock()
}

// MarkDetached 播放端断开时调用，同步循环据此退场
func (s *RemoteSurface) MarkDetached() {
	s.mu.Lock()
	s.status.Ready = false
	s.status.Paused = true
	s.mu.Unlock()
}
