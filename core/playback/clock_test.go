package playback

import "testing"

func TestClockClampAgainstDuration(t *testing.T) {
	total := 20.0
	c := NewClock(func() float64 { return total })

	c.SetPlayhead(-5)
	if got := c.Playhead(); got != 0 {
		t.Errorf("playhead = %v, want 0", got)
	}
	c.SetPlayhead(25)
	if got := c.Playhead(); got != 20 {
		t.Errorf("playhead = %v, want clamp to 20", got)
	}

	// 时长缩短后下一次写入按新上界收敛
	total = 10
	c.SetPlayhead(15)
	if got := c.Playhead(); got != 10 {
		t.Errorf("playhead = %v, want 10", got)
	}
}

func TestClockUnclampedOnEmptyTimeline(t *testing.T) {
	c := NewClock(func() float64 { return 0 })

	// 空时间轴只保证非负，预览拖动不受上界限制
	c.SetPlayhead(42)
	if got := c.Playhead(); got != 42 {
		t.Errorf("playhead = %v, want 42", got)
	}
	c.SetPlayhead(-1)
	if got := c.Playhead(); got != 0 {
		t.Errorf("playhead = %v, want 0", got)
	}
}

func TestClockTransport(t *testing.T) {
	c := NewClock(func() float64 { return 100 })

	c.Play()
	if !c.Running() {
		t.Error("not running after Play")
	}
	c.Play() // 重复 Play 无害
	c.TogglePlayback()
	if c.Running() {
		t.Error("running after toggle off")
	}
	c.TogglePlayback()
	if !c.Running() {
		t.Error("not running after toggle on")
	}
	c.Pause()
	if c.Running() {
		t.Error("running after Pause")
	}
}

func TestClockSkipDefaults(t *testing.T) {
	c := NewClock(func() float64 { return 100 })
	c.SetPlayhead(10)

	c.SkipForward(0) // 非正增量取默认 1s
	if got := c.Playhead(); got != 11 {
		t.Errorf("playhead = %v, want 11", got)
	}
	c.SkipBackward(-3)
	if got := c.Playhead(); got != 10 {
		t.Errorf("playhead = %v, want 10", got)
	}
	c.SkipForward(5)
	if got := c.Playhead(); got != 15 {
		t.Errorf("playhead = %v, want 15", got)
	}

	c.SeekToEnd()
	if got := c.Playhead(); got != 100 {
		t.Errorf("playhead = %v, want 100", got)
	}
	c.SeekToStart()
	if got := c.Playhead(); got != 0 {
		t.Errorf("playhead = %v, want 0", got)
	}
}

func TestClockNotifiesOnlyOnChange(t *testing.T) {
	c := NewClock(func() float64 { return 100 })

	var n int
	c.Subscribe(func() { n++ })

	c.SetPlayhead(5)
	c.SetPlayhead(5) // 无变化不通知
	if n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
	c.Pause() // 本来就没在播
	if n != 1 {
		t.Errorf("notifications = %d, want still 1", n)
	}
	c.Play()
	if n != 2 {
		t.Errorf("notifications = %d, want 2", n)
	}
}
