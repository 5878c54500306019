package placement

import (
	"math"
	"sync"

	"ClipDeck/core/timeline"
)

const (
	// MaxTime 时间轴上限，10 小时（秒）
	MaxTime = 10 * 60 * 60.0
	// MinStartBuffer 拖拽起点的最小缓冲（秒）
	MinStartBuffer = 0.1

	minSnapInterval = 0.1
	maxSnapInterval = 10.0
)

// Engine 是叠在时间轴模型之上的交互式放置求解器：
// 网格吸附、碰撞检测、拖拽约束解析都在这里完成，模型层只负责不变量。
type Engine struct {
	model *timeline.Model

	mu            sync.Mutex
	snapEnabled   bool
	snapInterval  float64
	pixelsPerUnit float64 // 像素/秒 换算比例，来自视图缩放

	// 每个片段同一时间只允许一个操作会话（拖拽或裁剪）
	sessions map[string]string
}

// NewEngine 创建放置引擎，snapInterval 会被收敛到 [0.1, 10]
func NewEngine(m *timeline.Model, snapInterval, pixelsPerUnit float64) *Engine {
	e := &Engine{
		model:         m,
		snapEnabled:   true,
		pixelsPerUnit: pixelsPerUnit,
		sessions:      make(map[string]string),
	}
	e.snapInterval = clampSnapInterval(snapInterval)
	return e
}

func clampSnapInterval(v float64) float64 {
	if v < minSnapInterval {
		return minSnapInterval
	}
	if v > maxSnapInterval {
		return maxSnapInterval
	}
	return v
}

// Model 返回底层时间轴模型
func (e *Engine) Model() *timeline.Model {
	return e.model
}

// SetSnapEnabled 开关网格吸附
func (e *Engine) SetSnapEnabled(enabled bool) {
	e.mu.Lock()
	e.snapEnabled = enabled
	e.mu.Unlock()
}

// SnapEnabled 返回吸附开关状态
func (e *Engine) SnapEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapEnabled
}

// SetSnapInterval 设置吸附间隔，越界值被收敛
func (e *Engine) SetSnapInterval(v float64) {
	e.mu.Lock()
	e.snapInterval = clampSnapInterval(v)
	e.mu.Unlock()
}

// SnapInterval 返回当前吸附间隔
func (e *Engine) SnapInterval() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapInterval
}

// SetPixelsPerUnit 更新像素换算比例（视图缩放变化时调用）
func (e *Engine) SetPixelsPerUnit(v float64) {
	e.mu.Lock()
	if v > 0 {
		e.pixelsPerUnit = v
	}
	e.mu.Unlock()
}

// SnapToGridTime 把时间吸附到网格；吸附关闭时原样返回
func (e *Engine) SnapToGridTime(t float64) float64 {
	e.mu.Lock()
	enabled, interval := e.snapEnabled, e.snapInterval
	e.mu.Unlock()

	if !enabled {
		return t
	}
	return math.Round(t/interval) * interval
}

// CheckCollision 判断半开区间 [startTime, startTime+duration) 是否与
// 目标轨道上除 excludeClipID 以外的片段相交。
func (e *Engine) CheckCollision(startTime, duration float64, trackID, excludeClipID string) bool {
	end := startTime + duration
	for _, track := range e.model.Tracks() {
		if track.ID != trackID {
			continue
		}
		for _, c := range track.Clips {
			if c.ID == excludeClipID {
				continue
			}
			if startTime < c.End() && c.StartTime < end {
				return true
			}
		}
	}
	return false
}

// DragResult 拖拽约束解析结果
type DragResult struct {
	Time  float64 `json:"time"`
	Valid bool    `json:"valid"`
}

// ApplyDragConstraints 解析拖拽目标位置：
// 先收敛到 [0, MaxTime] 并施加最小起点缓冲；吸附开启时把时间吸到网格，
// 有碰撞则以 0.1×间隔为步长、2×间隔为半径向两侧搜索无碰撞的网格点；
// 搜索耗尽仍无解时返回最近网格点并标记 invalid —— 界面把它画成红色，
// 片段仍然跟手，由用户决定何时松开。
func (e *Engine) ApplyDragConstraints(rawStartTime, duration float64, targetTrackID, excludeClipID string) DragResult {
	t := rawStartTime
	if t < 0 {
		t = 0
	}
	if t > MaxTime {
		t = MaxTime
	}
	if t < MinStartBuffer {
		t = MinStartBuffer
	}

	e.mu.Lock()
	enabled, interval := e.snapEnabled, e.snapInterval
	e.mu.Unlock()

	if !enabled {
		collides := e.CheckCollision(t, duration, targetTrackID, excludeClipID)
		return DragResult{Time: t, Valid: !collides}
	}

	snapped := math.Round(t/interval) * interval
	if !e.CheckCollision(snapped, duration, targetTrackID, excludeClipID) {
		return DragResult{Time: snapped, Valid: true}
	}

	step := 0.1 * interval
	radius := 2 * interval
	for offset := step; offset <= radius+1e-9; offset += step {
		for _, dir := range []float64{1, -1} {
			candidate := math.Round((snapped+dir*offset)/interval) * interval
			if candidate < 0 {
				continue
			}
			if !e.CheckCollision(candidate, duration, targetTrackID, excludeClipID) {
				return DragResult{Time: candidate, Valid: true}
			}
		}
	}

	// 搜索半径内找不到空位，停在最近的网格点上并标记非法
	return DragResult{Time: snapped, Valid: false}
}

// beginSession 登记会话，同一片段已有会话时失败
func (e *Engine) beginSession(clipID, kind string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.sessions[clipID]; busy {
		return false
	}
	e.sessions[clipID] = kind
	return true
}

// endSession 注销会话，重复结束无副作用
func (e *Engine) endSession(clipID string) {
	e.mu.Lock()
	delete(e.sessions, clipID)
	e.mu.Unlock()
}
