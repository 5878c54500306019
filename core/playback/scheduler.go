package playback

import (
	"sync"
	"time"
)

// FrameScheduler 是帧回调原语的抽象：真实实现用 ticker 模拟
// 平台的逐帧回调，测试里用手动驱动的实现。
// Stop 必须幂等，停两次无害。
type FrameScheduler interface {
	// Start 开始按帧调用 tick，已在运行时为空操作
	Start(tick func())
	// Stop 同步取消挂起的帧回调，幂等
	Stop()
}

// TickerScheduler 基于 time.Ticker 的帧调度器
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewTickerScheduler 创建帧调度器，interval<=0 时取 16ms
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TickerScheduler{interval: interval}
}

// Start 启动调度循环
func (s *TickerScheduler) Start(tick func()) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
}

// Stop 停止调度循环，幂等
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.done)
}
