package placement

import (
	"fmt"
	"math"

	"ClipDeck/logger"
	"ClipDeck/model"
)

// DragThresholdPx 拖拽判定阈值：累计水平位移超过该值才开始真正移动，
// 避免单纯点击时片段被轻微挪动。
const DragThresholdPx = 5.0

// DragSession 承载一次拖拽手势的临时状态。
// 会话状态不进入持久模型，手势结束即丢弃。
type DragSession struct {
	engine *Engine

	clipID        string
	originalStart float64
	duration      float64
	startX        float64 // 手势起点（像素）
	committed     bool    // 是否越过阈值进入真正的拖拽
	lastResult    DragResult
	ended         bool
}

// BeginDrag 在片段上按下指针时调用：立即选中片段并开启会话。
// 同一片段已有会话（拖拽或裁剪）时返回错误。
func (e *Engine) BeginDrag(clipID string, pointerX float64) (*DragSession, error) {
	clip, ok := e.model.Clip(clipID)
	if !ok {
		return nil, fmt.Errorf("clip not found: %s", clipID)
	}
	if !e.beginSession(clipID, "drag") {
		return nil, fmt.Errorf("clip %s already has an active session", clipID)
	}

	// 按下即选中
	if err := e.model.SelectClip(clipID); err != nil {
		e.endSession(clipID)
		return nil, err
	}

	return &DragSession{
		engine:        e,
		clipID:        clipID,
		originalStart: clip.StartTime,
		duration:      clip.Duration,
		startX:        pointerX,
		lastResult:    DragResult{Time: clip.StartTime, Valid: true},
	}, nil
}

// Move 处理一次指针移动。
// targetTrackID 由表现层对指针纵坐标做轨道命中测试得出；与当前轨道
// 不同即表示换轨。位置用手势起点的增量换算（与视口滚动无关），
// 每次移动先过约束解析再落到模型，非法位置只体现在返回的 Valid 上。
func (s *DragSession) Move(pointerX float64, targetTrackID string) (DragResult, error) {
	if s.ended {
		return s.lastResult, fmt.Errorf("drag session already ended")
	}

	dx := pointerX - s.startX
	if !s.committed {
		if math.Abs(dx) <= DragThresholdPx {
			// 还没越过阈值，不动模型也不显示拖拽
			return s.lastResult, nil
		}
		// 先清除选中再开始视觉拖拽，避免残留的选中描边
		s.engine.model.ClearSelection()
		s.committed = true
	}

	s.engine.mu.Lock()
	ppu := s.engine.pixelsPerUnit
	s.engine.mu.Unlock()

	newStart := s.originalStart + dx/ppu
	result := s.engine.ApplyDragConstraints(newStart, s.duration, targetTrackID, s.clipID)

	clip, ok := s.engine.model.Clip(s.clipID)
	if !ok {
		return result, fmt.Errorf("clip disappeared during drag: %s", s.clipID)
	}

	trackID := ""
	if targetTrackID != clip.TrackID {
		trackID = targetTrackID
	}
	if err := s.engine.model.MoveClip(s.clipID, result.Time, trackID); err != nil {
		return result, err
	}

	s.lastResult = result
	return result, nil
}

// Committed 返回手势是否已越过阈值
func (s *DragSession) Committed() bool {
	return s.committed
}

// Release 结束手势。不回滚：最后一次（可能非法的）位置保持不变，
// 界面用红色描边提示用户自行挪开。
func (s *DragSession) Release() DragResult {
	if s.ended {
		return s.lastResult
	}
	s.ended = true
	s.engine.endSession(s.clipID)

	if s.committed && !s.lastResult.Valid {
		logger.Warn("drag released on invalid position",
			logger.String("clip", s.clipID),
			logger.Float64("time", s.lastResult.Time))
	}
	return s.lastResult
}

// ResizeEdge 裁剪手柄方向
type ResizeEdge string

const (
	EdgeLeft  ResizeEdge = "left"
	EdgeRight ResizeEdge = "right"
)

// ResizeSession 承载一次裁剪手势的临时状态
type ResizeSession struct {
	engine *Engine

	clipID            string
	edge              ResizeEdge
	originalStart     float64
	originalTrimStart float64
	originalTrimEnd   float64
	ended             bool
}

// BeginResize 在片段裁剪手柄上按下时调用。
// 与拖拽互斥：同一片段已有会话时返回错误。
func (e *Engine) BeginResize(clipID string, edge ResizeEdge) (*ResizeSession, error) {
	clip, ok := e.model.Clip(clipID)
	if !ok {
		return nil, fmt.Errorf("clip not found: %s", clipID)
	}
	if edge != EdgeLeft && edge != EdgeRight {
		return nil, fmt.Errorf("invalid resize edge: %s", edge)
	}
	if !e.beginSession(clipID, "resize") {
		return nil, fmt.Errorf("clip %s already has an active session", clipID)
	}

	return &ResizeSession{
		engine:            e,
		clipID:            clipID,
		edge:              edge,
		originalStart:     clip.StartTime,
		originalTrimStart: clip.TrimStart,
		originalTrimEnd:   clip.TrimEnd,
	}, nil
}

// Move 处理一次裁剪移动，deltaTime 是手柄相对手势起点的时间增量。
// 左手柄：trimStart 与 startTime 同步移动，右（播放）边缘保持固定；
// 右手柄：只动 trimEnd，起点不变。两个方向都由模型层兜底最小时长。
func (s *ResizeSession) Move(deltaTime float64) error {
	if s.ended {
		return fmt.Errorf("resize session already ended")
	}

	switch s.edge {
	case EdgeLeft:
		newTrimStart := s.originalTrimStart + deltaTime
		if newTrimStart < 0 {
			newTrimStart = 0
		}
		if limit := s.originalTrimEnd - model.MinClipDuration; newTrimStart > limit {
			newTrimStart = limit
		}
		if err := s.engine.model.TrimClip(s.clipID, newTrimStart, s.originalTrimEnd); err != nil {
			return err
		}
		// 位置补偿：起点随裁剪量移动，右边缘在时间轴上保持不动
		trimmed := newTrimStart - s.originalTrimStart
		return s.engine.model.MoveClip(s.clipID, s.originalStart+trimmed, "")

	case EdgeRight:
		newTrimEnd := s.originalTrimEnd + deltaTime
		if limit := s.originalTrimStart + model.MinClipDuration; newTrimEnd < limit {
			newTrimEnd = limit
		}
		return s.engine.model.TrimClip(s.clipID, s.originalTrimStart, newTrimEnd)
	}
	return fmt.Errorf("invalid resize edge: %s", s.edge)
}

// Release 结束裁剪手势，重复调用无副作用
func (s *ResizeSession) Release() {
	if s.ended {
		return
	}
	s.ended = true
	s.engine.endSession(s.clipID)
}
