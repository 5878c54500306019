package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ClipDeck/core/timeline"
	"ClipDeck/model"
)

// fakeSurface 模拟解码面：记录命令，状态由测试显式推动
type fakeSurface struct {
	mu         sync.Mutex
	locator    string
	generation uint64
	loads      int
	current    float64
	ready      bool
	paused     bool
	ended      bool
	seeks      []float64
}

func (s *fakeSurface) Load(sourceLocator string, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locator = sourceLocator
	s.generation = generation
	s.loads++
	s.ready = false
	s.paused = true
	s.ended = false
}

func (s *fakeSurface) Play() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *fakeSurface) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *fakeSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *fakeSurface) Seek(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = t
	s.seeks = append(s.seeks, t)
}

func (s *fakeSurface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeSurface) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *fakeSurface) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *fakeSurface) setCurrent(t float64) {
	s.mu.Lock()
	s.current = t
	s.mu.Unlock()
}

func (s *fakeSurface) seekCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seeks)
}

func (s *fakeSurface) loadedLocator() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locator
}

// fakeResolver 按 mediaRef 查表
type fakeResolver struct {
	sources map[string]model.MediaSource
}

func (r *fakeResolver) Resolve(_ context.Context, mediaRef string) (model.MediaSource, error) {
	if src, ok := r.sources[mediaRef]; ok {
		return src, nil
	}
	return model.MediaSource{}, fmt.Errorf("resolve %s: %w", mediaRef, model.ErrMediaNotFound)
}

// manualScheduler 手动驱动的帧调度器
type manualScheduler struct {
	mu      sync.Mutex
	tick    func()
	running bool
}

func (s *manualScheduler) Start(tick func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.tick = tick
}

func (s *manualScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *manualScheduler) fire() {
	s.mu.Lock()
	tick := s.tick
	running := s.running
	s.mu.Unlock()
	if running && tick != nil {
		tick()
	}
}

func (s *manualScheduler) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

type harness struct {
	model     *timeline.Model
	clock     *Clock
	surface   *fakeSurface
	scheduler *manualScheduler
	recovery  *Recovery
	engine    *Engine
	trackID   string
}

// newHarness 搭一条单轨时间轴。clips 的 MediaRef 统一可解析。
func newHarness(t *testing.T, clips ...*model.Clip) *harness {
	t.Helper()
	m := timeline.NewModel()
	track := m.CreateTrack("V1")

	sources := make(map[string]model.MediaSource)
	for _, c := range clips {
		if err := m.AddClip(c, track.ID); err != nil {
			t.Fatalf("AddClip(%s): %v", c.ID, err)
		}
		sources[c.MediaRef] = model.MediaSource{
			MediaRef:      c.MediaRef,
			SourceLocator: "file:///" + c.MediaRef + ".mp4",
			Duration:      c.TrimEnd,
		}
	}

	clock := NewClock(m.TotalDuration)
	surface := &fakeSurface{paused: true}
	scheduler := &manualScheduler{}
	recovery := NewRecovery(nil)
	engine := NewEngine(m, clock, surface, &fakeResolver{sources: sources}, recovery, scheduler, Options{
		// 阈值取二进制可精确表示的值，边界断言不受浮点误差干扰
		SeekThreshold:  0.25,
		DriftThreshold: 0.125,
		// 帧间隔限流压到最小，手动驱动的 tick 不被吞掉
		FrameInterval: time.Nanosecond,
	})

	return &harness{
		model: m, clock: clock, surface: surface,
		scheduler: scheduler, recovery: recovery, engine: engine,
		trackID: track.ID,
	}
}

// completeLoad 模拟解码面异步加载完成
func (h *harness) completeLoad() {
	h.surface.mu.Lock()
	h.surface.ready = true
	gen := h.surface.generation
	h.surface.mu.Unlock()
	h.engine.OnSurfaceLoaded(gen)
}

func clipWithTrim(id string, start, trimStart, trimEnd float64) *model.Clip {
	return &model.Clip{
		ID: id, MediaRef: "media-" + id,
		StartTime: start,
		TrimStart: trimStart, TrimEnd: trimEnd,
		Duration: trimEnd - trimStart,
	}
}

func TestReconcileLoadsActiveClip(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 1, 6))
	h.clock.SetPlayhead(2)
	h.engine.Start()

	if h.engine.LoadedClipID() != "a" {
		t.Fatalf("loaded = %q, want a", h.engine.LoadedClipID())
	}
	if h.surface.loadedLocator() != "file:///media-a.mp4" {
		t.Errorf("locator = %q", h.surface.loadedLocator())
	}
	if h.recovery.State() != StateLoading {
		t.Errorf("state = %s, want loading", h.recovery.State())
	}

	// 加载完成后定位到片段内时间：播放头 2 + trimStart 1
	h.completeLoad()
	if got := h.surface.CurrentTime(); got != 3 {
		t.Errorf("surface positioned at %v, want 3", got)
	}
	if h.recovery.State() != StateLoaded {
		t.Errorf("state = %s, want loaded", h.recovery.State())
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))
	h.engine.Start()
	h.completeLoad()

	loads := h.surface.loads
	seeks := h.surface.seekCount()

	// 状态没变，连续对账不应产生新命令
	h.engine.Reconcile()
	h.engine.Reconcile()

	if h.surface.loads != loads {
		t.Errorf("redundant reconcile reloaded: %d -> %d", loads, h.surface.loads)
	}
	if h.surface.seekCount() != seeks {
		t.Errorf("redundant reconcile seeked: %d -> %d", seeks, h.surface.seekCount())
	}
}

func TestGapSkipsToNextClip(t *testing.T) {
	h := newHarness(t,
		clipWithTrim("a", 0, 0, 5),
		clipWithTrim("b", 10, 0, 5),
	)
	h.engine.Start()
	h.completeLoad()

	// 播放头落进 [5,10) 空隙：跳到后继片段并换源
	h.clock.SetPlayhead(6)

	if got := h.clock.Playhead(); got != 10 {
		t.Errorf("playhead = %v, want 10", got)
	}
	if h.engine.LoadedClipID() != "b" {
		t.Errorf("loaded = %q, want b", h.engine.LoadedClipID())
	}
}

func TestGapWithoutSuccessorPausesKeepingMedia(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))
	h.engine.Start()
	h.completeLoad()
	locator := h.surface.loadedLocator()

	// 时间轴总长 5，播放头收敛到 5，恰好出了半开区间
	h.clock.SetPlayhead(7)

	if h.engine.LoadedClipID() != "" {
		t.Errorf("loaded = %q, want cleared", h.engine.LoadedClipID())
	}
	if !h.surface.Paused() {
		t.Error("surface not paused in trailing gap")
	}
	// 媒体源保留，界面继续显示最后一帧
	if h.surface.loadedLocator() != locator {
		t.Errorf("media source changed: %q", h.surface.loadedLocator())
	}
}

func TestPlayBeforeFirstClipJumpsForward(t *testing.T) {
	h := newHarness(t, clipWithTrim("b", 10, 0, 5))
	h.engine.Start()

	if h.engine.LoadedClipID() != "" {
		t.Fatalf("nothing should load at playhead 0, got %q", h.engine.LoadedClipID())
	}

	h.clock.Play()

	if got := h.clock.Playhead(); got != 10 {
		t.Errorf("playhead = %v, want jump to 10", got)
	}
	if h.engine.LoadedClipID() != "b" {
		t.Errorf("loaded = %q, want b", h.engine.LoadedClipID())
	}
}

func TestPlayOnEmptyTimelineIsInert(t *testing.T) {
	h := newHarness(t)
	h.engine.Start()
	h.clock.Play()

	if h.engine.LoadedClipID() != "" {
		t.Errorf("loaded = %q on empty timeline", h.engine.LoadedClipID())
	}
	if h.scheduler.isRunning() {
		t.Error("frame loop started with nothing to play")
	}
}

func TestClockToDecoderDriftCorrection(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 1, 11))
	h.clock.SetPlayhead(2)
	h.engine.Start()
	h.completeLoad() // 定位到 3

	tests := []struct {
		name     string
		current  float64
		wantSeek bool
	}{
		{"within threshold", 3.125, false},
		{"exactly at threshold", 3.25, false}, // 严格大于才纠偏
		{"beyond threshold", 3.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.surface.setCurrent(tt.current)
			before := h.surface.seekCount()
			h.engine.Reconcile()
			seeked := h.surface.seekCount() > before
			if seeked != tt.wantSeek {
				t.Errorf("current %v: seeked = %v, want %v", tt.current, seeked, tt.wantSeek)
			}
			if tt.wantSeek {
				if got := h.surface.CurrentTime(); got != 3 {
					t.Errorf("corrected to %v, want 3", got)
				}
			}
		})
	}
}

func TestDecoderToClockDriftCorrection(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 10))
	h.engine.Start()
	h.completeLoad()
	h.clock.Play()

	if !h.scheduler.isRunning() {
		t.Fatal("frame loop not running")
	}

	tests := []struct {
		name    string
		current float64
		want    float64 // 期望的播放头
	}{
		{"within threshold", 0.0625, 0},
		{"exactly at threshold", 0.125, 0},
		{"beyond threshold", 0.25, 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.clock.SetPlayhead(0)
			h.surface.setCurrent(tt.current)
			h.scheduler.fire()
			if got := h.clock.Playhead(); got != tt.want {
				t.Errorf("playhead = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameLoopSelfTerminates(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 10))
	h.engine.Start()
	h.completeLoad()
	h.clock.Play()

	// 解码面意外停下，下一帧回调应把循环停掉
	h.surface.Pause()
	h.scheduler.fire()
	if h.scheduler.isRunning() {
		t.Error("frame loop kept running on a paused surface")
	}
}

func TestStaleLoadCompletionDiscarded(t *testing.T) {
	h := newHarness(t,
		clipWithTrim("a", 0, 0, 5),
		clipWithTrim("b", 10, 2, 7),
	)
	h.engine.Start()

	h.surface.mu.Lock()
	staleGen := h.surface.generation // a 的加载
	h.surface.mu.Unlock()

	// 加载完成前用户把播放头拖进了 b
	h.clock.SetPlayhead(12)
	if h.engine.LoadedClipID() != "b" {
		t.Fatalf("loaded = %q, want b", h.engine.LoadedClipID())
	}

	// a 的过期完成必须被静默丢弃
	seeks := h.surface.seekCount()
	h.engine.OnSurfaceLoaded(staleGen)
	if h.surface.seekCount() != seeks {
		t.Error("stale completion triggered a seek")
	}
	if h.recovery.State() != StateLoading {
		t.Errorf("state = %s, want still loading", h.recovery.State())
	}

	// b 自己的完成正常生效：定位到 12-10+2 = 4
	h.completeLoad()
	if got := h.surface.CurrentTime(); got != 4 {
		t.Errorf("surface positioned at %v, want 4", got)
	}
}

func TestStaleErrorDiscarded(t *testing.T) {
	h := newHarness(t,
		clipWithTrim("a", 0, 0, 5),
		clipWithTrim("b", 10, 0, 5),
	)
	h.engine.Start()

	h.surface.mu.Lock()
	staleGen := h.surface.generation
	h.surface.mu.Unlock()

	h.clock.SetPlayhead(12)
	h.engine.OnSurfaceError(staleGen, MediaErrNetwork)

	if h.recovery.State() == StateError {
		t.Error("stale error polluted recovery state")
	}
}

func TestSurfaceErrorEntersErrorState(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))
	h.engine.Start()

	h.surface.mu.Lock()
	gen := h.surface.generation
	h.surface.mu.Unlock()

	h.engine.OnSurfaceError(gen, MediaErrDecode)

	if h.recovery.State() != StateError {
		t.Fatalf("state = %s, want error", h.recovery.State())
	}
	if err := h.recovery.LastError(); err == nil || err.Kind != ErrKindDecode {
		t.Errorf("lastError = %+v, want decode kind", err)
	}
	if h.scheduler.isRunning() {
		t.Error("frame loop survived a surface error")
	}
}

func TestRetryReloadsCurrentClip(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 1, 6))
	h.clock.SetPlayhead(2)
	h.engine.Start()

	h.surface.mu.Lock()
	gen := h.surface.generation
	h.surface.mu.Unlock()
	h.engine.OnSurfaceError(gen, MediaErrNetwork)

	loads := h.surface.loads
	if !h.recovery.Retry() {
		t.Fatal("retry refused for a retriable error")
	}
	if h.surface.loads != loads+1 {
		t.Errorf("loads = %d, want %d", h.surface.loads, loads+1)
	}
	// 重载后仍定位回播放头对应的片段内时间
	h.completeLoad()
	if got := h.surface.CurrentTime(); got != 3 {
		t.Errorf("surface positioned at %v, want 3", got)
	}
}

func TestSurfaceEndedAdvancesToNextClip(t *testing.T) {
	h := newHarness(t,
		clipWithTrim("a", 0, 0, 5),
		clipWithTrim("b", 10, 0, 5),
	)
	h.engine.Start()
	h.completeLoad()

	h.engine.OnSurfaceEnded()

	if got := h.clock.Playhead(); got != 10 {
		t.Errorf("playhead = %v, want 10", got)
	}
	if h.engine.LoadedClipID() != "b" {
		t.Errorf("loaded = %q, want b", h.engine.LoadedClipID())
	}
}

func TestSurfaceEndedWithoutSuccessorStopsAtEnd(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))
	h.engine.Start()
	h.completeLoad()
	h.clock.Play()

	h.engine.OnSurfaceEnded()

	if h.clock.Running() {
		t.Error("clock kept running past the last clip")
	}
	if got := h.clock.Playhead(); got != 5 {
		t.Errorf("playhead = %v, want clip end 5", got)
	}
}

func TestBufferingTransitions(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))
	h.engine.Start()
	h.completeLoad()

	h.engine.OnSurfaceWaiting()
	if h.recovery.State() != StateBuffering {
		t.Fatalf("state = %s, want buffering", h.recovery.State())
	}
	h.engine.OnSurfaceCanPlay()
	if h.recovery.State() != StateLoaded {
		t.Fatalf("state = %s, want loaded", h.recovery.State())
	}

	// 错误状态不被 waiting 覆盖
	h.surface.mu.Lock()
	gen := h.surface.generation
	h.surface.mu.Unlock()
	h.engine.OnSurfaceError(gen, MediaErrDecode)
	h.engine.OnSurfaceWaiting()
	if h.recovery.State() != StateError {
		t.Errorf("waiting overwrote error state: %s", h.recovery.State())
	}
}

func TestStartStopIdempotent(t *testing.T) {
	h := newHarness(t, clipWithTrim("a", 0, 0, 5))

	h.engine.Start()
	loads := h.surface.loads
	h.engine.Start()
	if h.surface.loads != loads {
		t.Error("second Start reloaded")
	}

	h.engine.Stop()
	if !h.surface.Paused() {
		t.Error("Stop left surface playing")
	}
	h.engine.Stop() // 重复停无害

	// 停止后模型变化不再驱动解码面
	h.clock.SetPlayhead(3)
	if h.surface.loads != loads {
		t.Error("stopped engine still issuing loads")
	}
}

func TestResolveFailureIsTypedError(t *testing.T) {
	m := timeline.NewModel()
	track := m.CreateTrack("V1")
	clip := clipWithTrim("a", 0, 0, 5)
	if err := m.AddClip(clip, track.ID); err != nil {
		t.Fatal(err)
	}

	clock := NewClock(m.TotalDuration)
	surface := &fakeSurface{paused: true}
	recovery := NewRecovery(nil)
	// 空 resolver：一切 mediaRef 都解析失败
	engine := NewEngine(m, clock, surface, &fakeResolver{}, recovery, &manualScheduler{}, Options{})
	engine.Start()

	if recovery.State() != StateError {
		t.Fatalf("state = %s, want error", recovery.State())
	}
	err := recovery.LastError()
	if err == nil || err.Retriable {
		t.Errorf("unresolvable media should be non-retriable, got %+v", err)
	}
	if surface.loads != 0 {
		t.Error("surface received a load despite resolve failure")
	}
}
