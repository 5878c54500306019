package playback

import (
	"context"
	"fmt"
	"sync"

	"ClipDeck/logger"
)

// LoadState 解码面的加载状态机
type LoadState string

const (
	StateIdle      LoadState = "idle"
	StateLoading   LoadState = "loading"
	StateLoaded    LoadState = "loaded"
	StateError     LoadState = "error"
	StateBuffering LoadState = "buffering"
	StateSeeking   LoadState = "seeking"
)

// ErrorKind 播放错误分类
type ErrorKind string

const (
	ErrKindNetwork ErrorKind = "network"
	ErrKindDecode  ErrorKind = "decode"
	ErrKindFormat  ErrorKind = "format" // 媒体源或容器不受支持
	ErrKindUnknown ErrorKind = "unknown"
)

// maxRetries 可重试错误的重试上限
const maxRetries = 3

// PlaybackError 带重试资格和修复建议的类型化播放错误
type PlaybackError struct {
	Kind      ErrorKind `json:"kind"`
	Code      int       `json:"code"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
	Hints     []string  `json:"hints,omitempty"`
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback error (%s, code %d): %s", e.Kind, e.Code, e.Message)
}

// Classify 把解码面上报的原生错误码归类。
// format 错误不可重试，其余默认可重试。
func Classify(code int) *PlaybackError {
	switch code {
	case MediaErrNetwork:
		return &PlaybackError{
			Kind: ErrKindNetwork, Code: code, Retriable: true,
			Message: "network error while fetching media",
			Hints:   []string{"检查媒体服务是否可达", "稍后重试"},
		}
	case MediaErrDecode:
		return &PlaybackError{
			Kind: ErrKindDecode, Code: code, Retriable: true,
			Message: "media decoding failed",
			Hints:   []string{"文件可能已损坏，尝试重新导入"},
		}
	case MediaErrSrcNotSupported:
		return &PlaybackError{
			Kind: ErrKindFormat, Code: code, Retriable: false,
			Message: "media source or container not supported",
			Hints:   []string{"转换为受支持的容器格式（如 MP4/H.264）后重新导入"},
		}
	default:
		return &PlaybackError{
			Kind: ErrKindUnknown, Code: code, Retriable: true,
			Message: fmt.Sprintf("unknown playback failure (code %d)", code),
			Hints:   []string{"重试，若持续失败请重新导入媒体"},
		}
	}
}

// ProbeFunc 独立检测某个媒体源是否可解码，不触碰主解码面。
// 由媒体库注入（一次性的 ffprobe 探测）。
type ProbeFunc func(ctx context.Context, sourceLocator string) error

// Recovery 把解码面故障包成 错误/重试 状态机，
// 供 SyncEngine 和表现层消费。
type Recovery struct {
	mu         sync.Mutex
	state      LoadState
	lastErr    *PlaybackError
	retryCount int

	// reload 重新发起当前片段的加载，由 SyncEngine 注入
	reload func()
	// probe 独立探测能力，可为 nil
	probe ProbeFunc
}

// NewRecovery 创建错误恢复状态机
func NewRecovery(probe ProbeFunc) *Recovery {
	return &Recovery{state: StateIdle, probe: probe}
}

// BindReload 绑定重新加载回调
func (r *Recovery) BindReload(reload func()) {
	r.mu.Lock()
	r.reload = reload
	r.mu.Unlock()
}

// State 返回当前加载状态
func (r *Recovery) State() LoadState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastError 返回当前错误，无错误时为 nil
func (r *Recovery) LastError() *PlaybackError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// SetState 推进状态机（loading/loaded/buffering/seeking）
func (r *Recovery) SetState(s LoadState) {
	r.mu.Lock()
	r.state = s
	if s == StateLoaded {
		// 成功加载后清掉历史错误
		r.lastErr = nil
	}
	r.mu.Unlock()
}

// Fail 记录一次解码故障
func (r *Recovery) Fail(err *PlaybackError) {
	r.mu.Lock()
	r.state = StateError
	r.lastErr = err
	r.mu.Unlock()

	logger.Warn("decode surface failure",
		logger.String("kind", string(err.Kind)),
		logger.Int("code", err.Code),
		logger.Bool("retriable", err.Retriable),
		logger.Int("retryCount", r.retryCount))
}

// Retry 重新发起加载。
// 无错误、错误不可重试、或已达重试上限时为空操作。
func (r *Recovery) Retry() bool {
	r.mu.Lock()
	if r.lastErr == nil || !r.lastErr.Retriable || r.retryCount >= maxRetries {
		r.mu.Unlock()
		return false
	}
	r.retryCount++
	r.state = StateLoading
	reload := r.reload
	attempt := r.retryCount
	r.mu.Unlock()

	logger.Info("retrying media load", logger.Int("attempt", attempt))
	if reload != nil {
		reload()
	}
	return true
}

// ClearError 回到 idle 并重置重试计数
func (r *Recovery) ClearError() {
	r.mu.Lock()
	r.state = StateIdle
	r.lastErr = nil
	r.retryCount = 0
	r.mu.Unlock()
}

// Probe 独立测试媒体源是否可解码，不干扰主解码面
func (r *Recovery) Probe(ctx context.Context, sourceLocator string) error {
	r.mu.Lock()
	probe := r.probe
	r.mu.Unlock()

	if probe == nil {
		return fmt.Errorf("no probe capability configured")
	}
	return probe(ctx, sourceLocator)
}
