package timeline

import (
	"errors"
	"testing"

	"ClipDeck/model"
)

func newClip(id string, start, duration float64) *model.Clip {
	return &model.Clip{
		ID:        id,
		MediaRef:  "media-" + id,
		StartTime: start,
		Duration:  duration,
		TrimStart: 0,
		TrimEnd:   duration,
	}
}

func mustAdd(t *testing.T, m *Model, clip *model.Clip, trackID string) {
	t.Helper()
	if err := m.AddClip(clip, trackID); err != nil {
		t.Fatalf("AddClip(%s): %v", clip.ID, err)
	}
}

func placementReason(t *testing.T, err error) PlacementReason {
	t.Helper()
	var pe *PlacementError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PlacementError, got %v", err)
	}
	return pe.Reason
}

func TestAddClipRejectsOverlap(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 5), track.ID)

	tests := []struct {
		name  string
		start float64
		dur   float64
		want  PlacementReason
	}{
		{"full overlap", 0, 5, ReasonOverlap},
		{"partial tail", 4, 3, ReasonOverlap},
		{"partial head", -1, 2, ReasonOverlap},
		{"contained", 1, 2, ReasonOverlap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.AddClip(newClip("b-"+tt.name, tt.start, tt.dur), track.ID)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if got := placementReason(t, err); got != tt.want {
				t.Errorf("reason = %s, want %s", got, tt.want)
			}
		})
	}

	// 被拒绝的操作不产生任何修改
	tracks := m.Tracks()
	if len(tracks[0].Clips) != 1 {
		t.Fatalf("track has %d clips after rejections, want 1", len(tracks[0].Clips))
	}
}

func TestAddClipAdjacentClipsAllowed(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 5), track.ID)

	// 半开区间：[0,5) 和 [5,10) 不相交
	if err := m.AddClip(newClip("b", 5, 5), track.ID); err != nil {
		t.Fatalf("adjacent clip rejected: %v", err)
	}
}

func TestAddClipRejectsDuplicateID(t *testing.T) {
	m := NewModel()
	t1 := m.CreateTrack("V1")
	t2 := m.CreateTrack("V2")
	mustAdd(t, m, newClip("a", 0, 5), t1.ID)

	// 跨轨道也不允许重复 id
	err := m.AddClip(newClip("a", 20, 5), t2.ID)
	if got := placementReason(t, err); got != ReasonDuplicateID {
		t.Errorf("reason = %s, want %s", got, ReasonDuplicateID)
	}
}

func TestAddClipRejectsTooShort(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")

	err := m.AddClip(newClip("tiny", 0, 0.05), track.ID)
	if got := placementReason(t, err); got != ReasonTooShort {
		t.Errorf("reason = %s, want %s", got, ReasonTooShort)
	}
	if err := m.AddClip(newClip("exact", 0, model.MinClipDuration), track.ID); err != nil {
		t.Errorf("clip at exact minimum rejected: %v", err)
	}
}

func TestTotalDurationTracksFarthestEnd(t *testing.T) {
	m := NewModel()
	t1 := m.CreateTrack("V1")
	t2 := m.CreateTrack("V2")

	if m.TotalDuration() != 0 {
		t.Fatalf("empty timeline duration = %v", m.TotalDuration())
	}

	mustAdd(t, m, newClip("a", 0, 5), t1.ID)
	mustAdd(t, m, newClip("b", 10, 5), t2.ID)
	if got := m.TotalDuration(); got != 15 {
		t.Fatalf("TotalDuration = %v, want 15", got)
	}

	// 挪远端片段，总时长跟着变
	if err := m.MoveClip("b", 20, ""); err != nil {
		t.Fatal(err)
	}
	if got := m.TotalDuration(); got != 25 {
		t.Fatalf("TotalDuration after move = %v, want 25", got)
	}

	// 删掉远端片段，总时长缩回
	if err := m.RemoveClip("b"); err != nil {
		t.Fatal(err)
	}
	if got := m.TotalDuration(); got != 5 {
		t.Fatalf("TotalDuration after remove = %v, want 5", got)
	}
}

func TestMoveClipAcrossTracks(t *testing.T) {
	m := NewModel()
	t1 := m.CreateTrack("V1")
	t2 := m.CreateTrack("V2")
	mustAdd(t, m, newClip("a", 0, 5), t1.ID)

	if err := m.MoveClip("a", 7, t2.ID); err != nil {
		t.Fatal(err)
	}

	clip, ok := m.Clip("a")
	if !ok {
		t.Fatal("clip lost after move")
	}
	if clip.TrackID != t2.ID || clip.StartTime != 7 {
		t.Errorf("clip = {track %s, start %v}, want {track %s, start 7}", clip.TrackID, clip.StartTime, t2.ID)
	}

	// 原轨道不再持有该片段
	for _, track := range m.Tracks() {
		if track.ID == t1.ID && len(track.Clips) != 0 {
			t.Errorf("source track still has %d clips", len(track.Clips))
		}
	}
}

func TestMoveClipKeepsTrackOrder(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 2), track.ID)
	mustAdd(t, m, newClip("b", 5, 2), track.ID)

	// 把 a 挪到 b 后面，轨道内仍按 StartTime 有序
	if err := m.MoveClip("a", 10, ""); err != nil {
		t.Fatal(err)
	}
	clips := m.Tracks()[0].Clips
	for i := 1; i < len(clips); i++ {
		if clips[i-1].StartTime > clips[i].StartTime {
			t.Fatalf("clips out of order: %v before %v", clips[i-1].StartTime, clips[i].StartTime)
		}
	}
}

func TestTrimClip(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 10), track.ID)

	if err := m.TrimClip("a", 2, 8); err != nil {
		t.Fatal(err)
	}
	clip, _ := m.Clip("a")
	if clip.Duration != 6 || clip.TrimStart != 2 || clip.TrimEnd != 8 {
		t.Errorf("clip = {dur %v, trim [%v,%v]}, want {6, [2,8]}", clip.Duration, clip.TrimStart, clip.TrimEnd)
	}

	// 低于最小时长被拒绝，片段保持原状
	err := m.TrimClip("a", 2, 2.05)
	if got := placementReason(t, err); got != ReasonTooShort {
		t.Errorf("reason = %s, want %s", got, ReasonTooShort)
	}
	clip, _ = m.Clip("a")
	if clip.TrimStart != 2 || clip.TrimEnd != 8 {
		t.Errorf("clip mutated by rejected trim: [%v,%v]", clip.TrimStart, clip.TrimEnd)
	}
}

func TestSelectionClearedByRemoval(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 5), track.ID)

	if err := m.SelectClip("a"); err != nil {
		t.Fatal(err)
	}
	if m.Selection() != "a" {
		t.Fatalf("selection = %q, want a", m.Selection())
	}

	if err := m.RemoveClip("a"); err != nil {
		t.Fatal(err)
	}
	if m.Selection() != "" {
		t.Errorf("selection survived clip removal: %q", m.Selection())
	}
}

func TestSelectionClearedByTrackDeletion(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	other := m.CreateTrack("V2")
	mustAdd(t, m, newClip("a", 0, 5), track.ID)
	mustAdd(t, m, newClip("b", 0, 5), other.ID)

	if err := m.SelectClip("a"); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteTrack(track.ID); err != nil {
		t.Fatal(err)
	}
	if m.Selection() != "" {
		t.Errorf("selection survived track deletion: %q", m.Selection())
	}

	// 别的轨道上的选中不受影响
	if err := m.SelectClip("b"); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteTrack("no-such-track"); err == nil {
		t.Fatal("deleting unknown track should fail")
	}
	if m.Selection() != "b" {
		t.Errorf("selection = %q, want b", m.Selection())
	}
}

func TestUpdateTrackPartialFields(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")

	muted := true
	if err := m.UpdateTrack(track.ID, model.TrackUpdate{IsMuted: &muted}); err != nil {
		t.Fatal(err)
	}

	got := m.Tracks()[0]
	if !got.IsMuted {
		t.Error("IsMuted not applied")
	}
	if got.Name != "V1" || got.Volume != 1.0 {
		t.Errorf("untouched fields changed: name %q volume %v", got.Name, got.Volume)
	}
}

func TestObserverNotifiedAfterCommit(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")

	var seen []float64
	m.Subscribe(func() {
		// 回调在锁外调用，回读模型必须安全
		seen = append(seen, m.TotalDuration())
	})

	mustAdd(t, m, newClip("a", 0, 5), track.ID)
	if len(seen) != 1 || seen[0] != 5 {
		t.Fatalf("observer saw %v, want [5]", seen)
	}

	// 被拒绝的操作不通知
	_ = m.AddClip(newClip("a", 20, 5), track.ID)
	if len(seen) != 1 {
		t.Errorf("observer notified on rejected operation")
	}
}

func TestActiveClipAtTrackOrderWins(t *testing.T) {
	m := NewModel()
	t1 := m.CreateTrack("V1")
	t2 := m.CreateTrack("V2")
	mustAdd(t, m, newClip("top", 0, 10), t1.ID)
	mustAdd(t, m, newClip("bottom", 0, 10), t2.ID)

	clip, ok := m.ActiveClipAt(5)
	if !ok || clip.ID != "top" {
		t.Errorf("ActiveClipAt(5) = %v %v, want top", clip.ID, ok)
	}

	// 半开区间：片段结束时刻不算命中
	if _, ok := m.ActiveClipAt(10); ok {
		t.Error("ActiveClipAt(10) hit a clip ending at 10")
	}
}

func TestNextClipAfter(t *testing.T) {
	m := NewModel()
	track := m.CreateTrack("V1")
	mustAdd(t, m, newClip("a", 0, 5), track.ID)
	mustAdd(t, m, newClip("b", 10, 5), track.ID)

	tests := []struct {
		at     float64
		wantID string
		wantOK bool
	}{
		{-1, "a", true},
		{3, "b", true},
		{9.9, "b", true},
		{10, "", false},
		{20, "", false},
	}
	for _, tt := range tests {
		clip, ok := m.NextClipAfter(tt.at)
		if ok != tt.wantOK || (ok && clip.ID != tt.wantID) {
			t.Errorf("NextClipAfter(%v) = %v %v, want %v %v", tt.at, clip.ID, ok, tt.wantID, tt.wantOK)
		}
	}
}
