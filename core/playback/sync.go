package playback

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"ClipDeck/core/timeline"
	"ClipDeck/logger"
	"ClipDeck/model"
)

const (
	// startEpsilon 空隙起播时向前多看一点，含住恰好从当前时刻开始的片段
	startEpsilon = 0.01
	// endEpsilon 片段播完后查找后继时回退一点，避免浮点边界漏掉紧邻片段
	endEpsilon = 0.01

	// defaultSeekThreshold 时钟→解码器 纠偏阈值
	defaultSeekThreshold = 0.1
	// defaultDriftThreshold 解码器→时钟 纠偏阈值。
	// 两个方向阈值不同，避免双向纠偏互相打架形成反馈环。
	defaultDriftThreshold = 0.05
)

// Options 同步引擎可调参数
type Options struct {
	SeekThreshold  float64       // 默认 0.1
	DriftThreshold float64       // 默认 0.05
	FrameInterval  time.Duration // 帧回调最小间隔，默认 16ms
}

// Engine 在播放时钟、时间轴模型和解码面之间做逐帧对账：
// 决定哪个片段该被加载、把播放头换算成片段内时间、在空隙上跳播，
// 并在两个独立推进的时钟之间做阈值纠偏。
type Engine struct {
	model     *timeline.Model
	clock     *Clock
	surface   Surface
	resolver  Resolver
	recovery  *Recovery
	scheduler FrameScheduler

	seekThreshold  float64
	driftThreshold float64
	frameInterval  time.Duration

	mu           sync.Mutex
	started      bool
	loadedClipID string
	pendingSeek  float64
	generation   uint64
	lastTick     time.Time

	// 对账重入护栏：用户改播放头和帧回调可能在同一帧里都请求对账
	reconciling bool
	dirty       bool
}

// NewEngine 创建同步引擎并订阅模型与时钟的变化
func NewEngine(m *timeline.Model, clock *Clock, surface Surface, resolver Resolver, recovery *Recovery, scheduler FrameScheduler, opts Options) *Engine {
	if opts.SeekThreshold <= 0 {
		opts.SeekThreshold = defaultSeekThreshold
	}
	if opts.DriftThreshold <= 0 {
		opts.DriftThreshold = defaultDriftThreshold
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}

	e := &Engine{
		model:          m,
		clock:          clock,
		surface:        surface,
		resolver:       resolver,
		recovery:       recovery,
		scheduler:      scheduler,
		seekThreshold:  opts.SeekThreshold,
		driftThreshold: opts.DriftThreshold,
		frameInterval:  opts.FrameInterval,
	}

	recovery.BindReload(e.reload)
	m.Subscribe(e.Reconcile)
	clock.Subscribe(e.Reconcile)
	return e
}

// Start 启动引擎并立即对账一次，幂等
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	e.Reconcile()
}

// Stop 停止引擎：同步取消帧回调并暂停解码面，幂等
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.mu.Unlock()

	e.scheduler.Stop()
	e.surface.Pause()
}

// LoadedClipID 返回当前加载进解码面的片段 id，空串表示无
func (e *Engine) LoadedClipID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadedClipID
}

// Reconcile 把解码面对齐到当前播放头。
// 幂等：从当前状态整体重算而不是做增量；可重入：对账过程中引发的
// 再次对账请求被合并到本轮结束后补跑一次。
// 对账中的内部异常按 SyncFault 处理：丢弃本轮、记录日志，
// 不污染模型与时钟状态，下一轮触发时照常恢复。
func (e *Engine) Reconcile() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	if e.reconciling {
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.reconciling = true
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync fault during reconciliation", logger.Any("panic", r))
		}
		e.mu.Lock()
		e.reconciling = false
		rerun := e.dirty
		e.dirty = false
		e.mu.Unlock()
		if rerun {
			e.Reconcile()
		}
	}()

	e.reconcileOnce()
}

func (e *Engine) reconcileOnce() {
	playhead := e.clock.Playhead()
	active, hasActive := e.model.ActiveClipAt(playhead)

	e.mu.Lock()
	loaded := e.loadedClipID
	e.mu.Unlock()

	switch {
	case hasActive && active.ID != loaded:
		// 播放头进入了另一个片段：换源并定位到片段内位置
		e.load(active, playhead-active.StartTime+active.TrimStart)

	case !hasActive && loaded != "":
		// 空隙。有后继就跳播，没有就只暂停：
		// 不清媒体源，保留最后一帧画面，也避免瞬时的"源不支持"错误
		if next, found := e.model.NextClipAfter(playhead); found {
			e.clock.SetPlayhead(next.StartTime)
			e.load(next, next.TrimStart)
		} else {
			e.mu.Lock()
			e.loadedClipID = ""
			e.mu.Unlock()
			e.surface.Pause()
		}

	case !hasActive && loaded == "" && e.clock.Running():
		// 在空隙或首个片段之前按下播放：找最近的后继片段起播。
		// 整条时间轴都没有片段时播放自然不会开始。
		if next, found := e.model.NextClipAfter(playhead - startEpsilon); found {
			e.clock.SetPlayhead(next.StartTime)
			e.load(next, next.TrimStart)
		}

	case hasActive:
		// 同一片段仍在加载状态：只做 时钟→解码器 方向的纠偏
		expected := playhead - active.StartTime + active.TrimStart
		if math.Abs(expected-e.surface.CurrentTime()) > e.seekThreshold {
			e.surface.Seek(expected)
		}
	}

	e.syncTransport()
}

// load 发起一次异步加载，分配新的 generation 供过期完成判别
func (e *Engine) load(clip model.Clip, clipLocalTime float64) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.loadedClipID = clip.ID
	e.pendingSeek = clipLocalTime
	e.mu.Unlock()

	e.recovery.SetState(StateLoading)

	src, err := e.resolver.Resolve(context.Background(), clip.MediaRef)
	if err != nil {
		e.recovery.Fail(resolveError(clip.MediaRef, err))
		return
	}

	logger.Debug("loading clip into decode surface",
		logger.String("clip", clip.ID),
		logger.String("mediaRef", clip.MediaRef),
		logger.Float64("clipLocal", clipLocalTime))
	e.surface.Load(src.SourceLocator, gen)
}

// reload 重新加载当前片段，供错误恢复的 Retry 调用
func (e *Engine) reload() {
	e.mu.Lock()
	loaded := e.loadedClipID
	e.mu.Unlock()
	if loaded == "" {
		return
	}

	clip, ok := e.model.Clip(loaded)
	if !ok {
		return
	}
	local := clip.TrimStart
	if playhead := e.clock.Playhead(); clip.Contains(playhead) {
		local = playhead - clip.StartTime + clip.TrimStart
	}
	e.load(clip, local)
}

// syncTransport 对齐解码面的播放/暂停状态并管理帧循环的启停
func (e *Engine) syncTransport() {
	e.mu.Lock()
	started := e.started
	loaded := e.loadedClipID
	e.mu.Unlock()

	if started && e.clock.Running() && loaded != "" {
		if e.surface.Ready() && e.surface.Paused() {
			e.surface.Play()
		}
		e.scheduler.Start(e.tick)
		return
	}

	e.scheduler.Stop()
	if loaded != "" && !e.surface.Paused() {
		e.surface.Pause()
	}
}

// tick 帧回调：读解码器实际位置，换算成时间轴时间，
// 超过漂移阈值时回写播放头（解码器→时钟 方向）。
func (e *Engine) tick() {
	now := time.Now()
	e.mu.Lock()
	if now.Sub(e.lastTick) < e.frameInterval {
		// 帧间隔太近，跳过本帧不做任何工作
		e.mu.Unlock()
		return
	}
	e.lastTick = now
	loaded := e.loadedClipID
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync fault during frame tick", logger.Any("panic", r))
		}
	}()

	if !e.clock.Running() || loaded == "" {
		e.scheduler.Stop()
		return
	}
	// 解码面没在正常推进时循环自行退场
	if !e.surface.Ready() || e.surface.Paused() || e.surface.Ended() {
		e.scheduler.Stop()
		return
	}

	clip, ok := e.model.Clip(loaded)
	if !ok {
		return
	}

	decodeTime := e.surface.CurrentTime()
	timelineTime := clip.StartTime + decodeTime - clip.TrimStart
	if math.Abs(timelineTime-e.clock.Playhead()) > e.driftThreshold {
		e.clock.SetPlayhead(timelineTime)
	}
}

// OnSurfaceLoaded 解码面完成加载。
// generation 与当前不符说明这是被换掉的片段的过期完成，静默丢弃。
func (e *Engine) OnSurfaceLoaded(generation uint64) {
	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		logger.Debug("discarding stale load completion",
			logger.Int64("generation", int64(generation)))
		return
	}
	seek := e.pendingSeek
	e.mu.Unlock()

	e.surface.Seek(seek)
	e.recovery.SetState(StateLoaded)
	e.syncTransport()
}

// OnSurfaceError 解码面上报故障，过期的同样丢弃
func (e *Engine) OnSurfaceError(generation uint64, code int) {
	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		logger.Debug("discarding stale error for superseded clip",
			logger.Int64("generation", int64(generation)),
			logger.Int("code", code))
		return
	}
	e.mu.Unlock()

	e.recovery.Fail(Classify(code))
	e.scheduler.Stop()
}

// OnSurfaceEnded 显式的流结束信号：跳到后继片段，
// 没有后继时暂停时钟并把播放头停在片段末尾。
func (e *Engine) OnSurfaceEnded() {
	e.mu.Lock()
	loaded := e.loadedClipID
	e.mu.Unlock()
	if loaded == "" {
		return
	}

	clip, ok := e.model.Clip(loaded)
	if !ok {
		return
	}

	end := clip.End()
	if next, found := e.model.NextClipAfter(end - endEpsilon); found {
		// 对账会在播放头变化后接手加载
		e.clock.SetPlayhead(next.StartTime)
	} else {
		e.clock.Pause()
		e.clock.SetPlayhead(end)
	}
}

// OnSurfaceWaiting 解码面进入缓冲
func (e *Engine) OnSurfaceWaiting() {
	if e.recovery.State() == StateLoaded {
		e.recovery.SetState(StateBuffering)
	}
}

// OnSurfaceCanPlay 缓冲结束，可以继续播放
func (e *Engine) OnSurfaceCanPlay() {
	if s := e.recovery.State(); s == StateBuffering || s == StateSeeking {
		e.recovery.SetState(StateLoaded)
	}
	e.syncTransport()
}

func resolveError(mediaRef string, err error) *PlaybackError {
	if errors.Is(err, model.ErrMediaNotFound) {
		return &PlaybackError{
			Kind: ErrKindUnknown, Code: 0, Retriable: false,
			Message: "media reference cannot be resolved: " + mediaRef,
			Hints:   []string{"素材可能已被移除，重新导入后再试"},
		}
	}
	return &PlaybackError{
		Kind: ErrKindNetwork, Code: 0, Retriable: true,
		Message: "failed to resolve media source: " + err.Error(),
		Hints:   []string{"检查媒体库服务是否可用"},
	}
}
