package playback

import "sync"

// Clock 是逻辑播放头：一个标量时间加运行状态，独立于任何片段。
// Play/Pause 只翻转运行位，其余反应由 SyncEngine 订阅完成。
type Clock struct {
	mu       sync.Mutex
	playhead float64
	running  bool

	// totalDuration 的提供方，空模型返回 0 时播放头不做上界收敛
	durationFn func() float64

	observers []func()
}

// NewClock 创建播放时钟，durationFn 通常绑定时间轴模型的 TotalDuration
func NewClock(durationFn func() float64) *Clock {
	if durationFn == nil {
		durationFn = func() float64 { return 0 }
	}
	return &Clock{durationFn: durationFn}
}

// Subscribe 注册状态变化回调，锁外调用
func (c *Clock) Subscribe(fn func()) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

func (c *Clock) notify() {
	c.mu.Lock()
	obs := make([]func(), len(c.observers))
	copy(obs, c.observers)
	c.mu.Unlock()

	for _, fn := range obs {
		fn()
	}
}

// clamp 把播放头收敛到 [0, totalDuration]；
// 模型为空（总时长 0）时只保证非负，支持无内容时的预览拖动。
func (c *Clock) clamp(t float64) float64 {
	if t < 0 {
		return 0
	}
	if total := c.durationFn(); total > 0 && t > total {
		return total
	}
	return t
}

// Play 置运行位，无其他副作用
func (c *Clock) Play() {
	c.mu.Lock()
	changed := !c.running
	c.running = true
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Pause 清运行位
func (c *Clock) Pause() {
	c.mu.Lock()
	changed := c.running
	c.running = false
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// TogglePlayback 翻转运行位
func (c *Clock) TogglePlayback() {
	c.mu.Lock()
	c.running = !c.running
	c.mu.Unlock()
	c.notify()
}

// Running 返回运行状态
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// SetPlayhead 设置播放头（按模型总时长收敛）
func (c *Clock) SetPlayhead(t float64) {
	c.mu.Lock()
	clamped := c.clamp(t)
	changed := clamped != c.playhead
	c.playhead = clamped
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

// Playhead 返回当前播放头
func (c *Clock) Playhead() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playhead
}

// SkipForward 前进 delta 秒，delta<=0 时取默认 1.0
func (c *Clock) SkipForward(delta float64) {
	if delta <= 0 {
		delta = 1.0
	}
	c.SetPlayhead(c.Playhead() + delta)
}

// SkipBackward 后退 delta 秒，delta<=0 时取默认 1.0
func (c *Clock) SkipBackward(delta float64) {
	if delta <= 0 {
		delta = 1.0
	}
	c.SetPlayhead(c.Playhead() - delta)
}

// SeekToStart 回到 0
func (c *Clock) SeekToStart() {
	c.SetPlayhead(0)
}

// SeekToEnd 跳到时间轴末尾
func (c *Clock) SeekToEnd() {
	c.SetPlayhead(c.durationFn())
}
