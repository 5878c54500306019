package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ClipDeck/config"
	"ClipDeck/core/placement"
	"ClipDeck/core/playback"
	"ClipDeck/core/timeline"
	"ClipDeck/logger"
	"ClipDeck/media"
	"ClipDeck/model"

	"github.com/google/uuid"
)

// Session 是一次编辑会话：时间轴模型、放置引擎、播放时钟、
// 同步引擎和远端解码面的完整装配。桌面端一个项目窗口对应一个会话。
type Session struct {
	ID        string
	Model     *timeline.Model
	Placement *placement.Engine
	Clock     *playback.Clock
	Recovery  *playback.Recovery
	Sync      *playback.Engine
	Surface   *RemoteSurface
	Library   *media.Library

	hub *Hub

	mu       sync.Mutex
	drags    map[string]*placement.DragSession   // 按客户端记录进行中的拖拽
	resizes  map[string]*placement.ResizeSession // 按客户端记录进行中的裁剪
	lastDrag *placement.DragResult               // 手势期间的拖拽预览坐标
}

// NewSession 装配一次编辑会话
func NewSession(cfg *config.Config, library *media.Library, hub *Hub) *Session {
	m := timeline.NewModel()
	clock := playback.NewClock(m.TotalDuration)
	surface := NewRemoteSurface(hub)

	var probe playback.ProbeFunc
	if library != nil {
		probe = library.ProbeDecodable
	}
	recovery := playback.NewRecovery(probe)

	scheduler := playback.NewTickerScheduler(time.Duration(cfg.FrameInterval) * time.Millisecond)
	sync := playback.NewEngine(m, clock, surface, library, recovery, scheduler, playback.Options{
		SeekThreshold:  cfg.SeekThreshold,
		DriftThreshold: cfg.PlayheadDrift,
		FrameInterval:  time.Duration(cfg.FrameInterval) * time.Millisecond,
	})

	s := &Session{
		ID:        uuid.New().String(),
		Model:     m,
		Placement: placement.NewEngine(m, cfg.SnapInterval, cfg.PixelsPerSecond),
		Clock:     clock,
		Recovery:  recovery,
		Sync:      sync,
		Surface:   surface,
		Library:   library,
		hub:       hub,
		drags:     make(map[string]*placement.DragSession),
		resizes:   make(map[string]*placement.ResizeSession),
	}

	// 每次提交的修改都把状态快照推给所有界面端
	m.Subscribe(s.broadcastState)
	clock.Subscribe(s.broadcastState)
	return s
}

// Start 启动同步引擎
func (s *Session) Start() {
	s.Sync.Start()
}

// Stop 停止同步引擎，幂等
func (s *Session) Stop() {
	s.Sync.Stop()
}

// Snapshot 只读投影，表现层据此渲染
type Snapshot struct {
	SessionID     string                  `json:"sessionId"`
	Tracks        []*model.Track          `json:"tracks"`
	Playhead      float64                 `json:"playhead"`
	Running       bool                    `json:"running"`
	Selection     string                  `json:"selection,omitempty"`
	TotalDuration float64                 `json:"totalDuration"`
	SnapEnabled   bool                    `json:"snapEnabled"`
	SnapInterval  float64                 `json:"snapInterval"`
	LoadedClipID  string                  `json:"loadedClipId,omitempty"`
	LoadState     playback.LoadState      `json:"loadState"`
	LastError     *playback.PlaybackError `json:"lastError,omitempty"`
	DragPreview   *placement.DragResult   `json:"dragPreview,omitempty"`
}

// BuildSnapshot 汇总当前会话状态
func (s *Session) BuildSnapshot() Snapshot {
	s.mu.Lock()
	drag := s.lastDrag
	s.mu.Unlock()

	return Snapshot{
		SessionID:     s.ID,
		Tracks:        s.Model.Tracks(),
		Playhead:      s.Clock.Playhead(),
		Running:       s.Clock.Running(),
		Selection:     s.Model.Selection(),
		TotalDuration: s.Model.TotalDuration(),
		SnapEnabled:   s.Placement.SnapEnabled(),
		SnapInterval:  s.Placement.SnapInterval(),
		LoadedClipID:  s.Sync.LoadedClipID(),
		LoadState:     s.Recovery.State(),
		LastError:     s.Recovery.LastError(),
		DragPreview:   drag,
	}
}

func (s *Session) broadcastState() {
	s.hub.BroadcastData(MsgTypeState, s.BuildSnapshot(), "")
}

// AddClip 创建并放置一个新片段。
// 裁剪窗口缺省时取素材全长；返回的 PlacementError 作为内联校验反馈。
func (s *Session) AddClip(ctx context.Context, mediaRef, trackID string, startTime, trimStart, trimEnd float64) (*model.Clip, error) {
	if trimEnd <= trimStart {
		// 未给裁剪窗口：解析素材取全长
		src, err := s.Library.Resolve(ctx, mediaRef)
		if err != nil {
			return nil, err
		}
		trimStart = 0
		trimEnd = src.Duration
	}

	clip := &model.Clip{
		ID:        uuid.New().String(),
		MediaRef:  mediaRef,
		StartTime: startTime,
		TrimStart: trimStart,
		TrimEnd:   trimEnd,
		Duration:  trimEnd - trimStart,
	}
	if err := s.Model.AddClip(clip, trackID); err != nil {
		return nil, err
	}
	return clip, nil
}

// ========== WebSocket 消息分发 ==========

type pointerDownData struct {
	ClipID string  `json:"clipId"`
	X      float64 `json:"x"`
}

type pointerMoveData struct {
	X       float64 `json:"x"`
	TrackID string  `json:"trackId"`
}

type resizeBeginData struct {
	ClipID string `json:"clipId"`
	Edge   string `json:"edge"`
}

type resizeMoveData struct {
	DeltaTime float64 `json:"deltaTime"`
}

type transportData struct {
	Action string  `json:"action"` // play, pause, toggle, skip_forward, skip_backward, seek_start, seek_end
	Delta  float64 `json:"delta,omitempty"`
}

type playheadData struct {
	Time float64 `json:"time"`
}

type surfaceLoadedData struct {
	Generation uint64 `json:"generation"`
}

type surfaceErrorData struct {
	Generation uint64 `json:"generation"`
	Code       int    `json:"code"`
}

// HandleMessage 处理一条来自界面端的消息
func (s *Session) HandleMessage(client *Client, msg *WSMessage) {
	switch msg.Type {
	case MsgTypePointerDown:
		var data pointerDownData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.handlePointerDown(client, data)

	case MsgTypePointerMove:
		var data pointerMoveData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.handlePointerMove(client, data)

	case MsgTypePointerUp:
		s.handlePointerUp(client)

	case MsgTypeResizeBegin:
		var data resizeBeginData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.handleResizeBegin(client, data)

	case MsgTypeResizeMove:
		var data resizeMoveData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.handleResizeMove(client, data)

	case MsgTypeResizeEnd:
		s.handleResizeEnd(client)

	case MsgTypeTransport:
		var data transportData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.handleTransport(data)

	case MsgTypePlayhead:
		var data playheadData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.Clock.SetPlayhead(data.Time)

	case MsgTypeSurfaceLoaded:
		var data surfaceLoadedData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.Surface.MarkReady()
		s.Sync.OnSurfaceLoaded(data.Generation)

	case MsgTypeSurfaceError:
		var data surfaceErrorData
		if !decode(msg.Data, &data, client) {
			return
		}
		s.Sync.OnSurfaceError(data.Generation, data.Code)
		s.broadcastState()

	case MsgTypeSurfaceEnded:
		s.Sync.OnSurfaceEnded()

	case MsgTypeSurfaceTimeUpdate:
		var st surfaceStatus
		if !decode(msg.Data, &st, client) {
			return
		}
		s.Surface.UpdateStatus(st)

	case MsgTypeSurfaceWaiting:
		s.Sync.OnSurfaceWaiting()
		s.broadcastState()

	case MsgTypeSurfaceCanPlay:
		s.Surface.MarkReady()
		s.Sync.OnSurfaceCanPlay()

	default:
		logger.Debug("unhandled message type",
			logger.String("type", string(msg.Type)),
			logger.String("client", client.ID))
	}
}

func (s *Session) handlePointerDown(client *Client, data pointerDownData) {
	drag, err := s.Placement.BeginDrag(data.ClipID, data.X)
	if err != nil {
		logger.Warn("drag begin rejected",
			logger.String("clip", data.ClipID),
			logger.ErrorField(err))
		return
	}
	s.mu.Lock()
	s.drags[client.ID] = drag
	s.mu.Unlock()
}

func (s *Session) handlePointerMove(client *Client, data pointerMoveData) {
	s.mu.Lock()
	drag := s.drags[client.ID]
	s.mu.Unlock()
	if drag == nil {
		return
	}

	result, err := drag.Move(data.X, data.TrackID)
	if err != nil {
		logger.Warn("drag move failed", logger.ErrorField(err))
		return
	}
	if drag.Committed() {
		s.mu.Lock()
		s.lastDrag = &result
		s.mu.Unlock()
		// 拖拽预览坐标单独回执，不等整包快照
		s.hub.BroadcastData(MsgTypeDragResult, result, "")
	}
}

func (s *Session) handlePointerUp(client *Client) {
	s.mu.Lock()
	drag := s.drags[client.ID]
	delete(s.drags, client.ID)
	s.mu.Unlock()
	if drag == nil {
		return
	}

	drag.Release()
	s.mu.Lock()
	s.lastDrag = nil
	s.mu.Unlock()
	s.broadcastState()
}

func (s *Session) handleResizeBegin(client *Client, data resizeBeginData) {
	resize, err := s.Placement.BeginResize(data.ClipID, placement.ResizeEdge(data.Edge))
	if err != nil {
		logger.Warn("resize begin rejected",
			logger.String("clip", data.ClipID),
			logger.ErrorField(err))
		return
	}
	s.mu.Lock()
	s.resizes[client.ID] = resize
	s.mu.Unlock()
}

func (s *Session) handleResizeMove(client *Client, data resizeMoveData) {
	s.mu.Lock()
	resize := s.resizes[client.ID]
	s.mu.Unlock()
	if resize == nil {
		return
	}
	if err := resize.Move(data.DeltaTime); err != nil {
		logger.Debug("resize move rejected", logger.ErrorField(err))
	}
}

func (s *Session) handleResizeEnd(client *Client) {
	s.mu.Lock()
	resize := s.resizes[client.ID]
	delete(s.resizes, client.ID)
	s.mu.Unlock()
	if resize != nil {
		resize.Release()
	}
}

func (s *Session) handleTransport(data transportData) {
	switch data.Action {
	case "play":
		s.Clock.Play()
	case "pause":
		s.Clock.Pause()
	case "toggle":
		s.Clock.TogglePlayback()
	case "skip_forward":
		s.Clock.SkipForward(data.Delta)
	case "skip_backward":
		s.Clock.SkipBackward(data.Delta)
	case "seek_start":
		s.Clock.SeekToStart()
	case "seek_end":
		s.Clock.SeekToEnd()
	default:
		logger.Debug("unknown transport action", logger.String("action", data.Action))
	}
}

// ReleaseClient 客户端断开时清理它持有的手势会话
func (s *Session) ReleaseClient(client *Client) {
	s.mu.Lock()
	drag := s.drags[client.ID]
	resize := s.resizes[client.ID]
	delete(s.drags, client.ID)
	delete(s.resizes, client.ID)
	s.mu.Unlock()

	if drag != nil {
		drag.Release()
	}
	if resize != nil {
		resize.Release()
	}
	if client.Role == RolePlayer {
		// 播放端掉线，解码面镜像标记未就绪
		s.Surface.MarkDetached()
	}
}

func decode(raw json.RawMessage, v interface{}, client *Client) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		logger.Warn("invalid message payload",
			logger.ErrorField(err),
			logger.String("client", client.ID))
		return false
	}
	return true
}
