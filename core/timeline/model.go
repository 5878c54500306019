package timeline

import (
	"sort"
	"sync"

	"ClipDeck/logger"
	"ClipDeck/model"

	"github.com/google/uuid"
)

// Model 持有轨道与片段，维护放置不变量。
// 原来由响应式 store 驱动的派生值（totalDuration 等）在这里于每次
// 结构性修改内部同步重算，消费方通过 Subscribe 拿到显式通知。
type Model struct {
	mu            sync.Mutex
	tracks        []*model.Track
	selection     string // 选中的片段 id，空串表示无选中
	totalDuration float64

	observers []func()
}

// NewModel 创建空模型
func NewModel() *Model {
	return &Model{}
}

// Subscribe 注册一个修改通知回调。
// 回调在每次已提交的修改之后、锁外调用，可以安全地回读模型。
func (m *Model) Subscribe(fn func()) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// notify 在锁外逐个调用观察者
func (m *Model) notify() {
	m.mu.Lock()
	obs := make([]func(), len(m.observers))
	copy(obs, m.observers)
	m.mu.Unlock()

	for _, fn := range obs {
		fn()
	}
}

// recomputeTotalDuration 重算总时长，调用方需持有锁
func (m *Model) recomputeTotalDuration() {
	total := 0.0
	for _, t := range m.tracks {
		for _, c := range t.Clips {
			if end := c.End(); end > total {
				total = end
			}
		}
	}
	m.totalDuration = total
}

// findTrack 调用方需持有锁
func (m *Model) findTrack(id string) *model.Track {
	for _, t := range m.tracks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// findClip 调用方需持有锁
func (m *Model) findClip(id string) (*model.Clip, *model.Track) {
	for _, t := range m.tracks {
		for _, c := range t.Clips {
			if c.ID == id {
				return c, t
			}
		}
	}
	return nil, nil
}

// sortClips 保持轨道内片段按 StartTime 有序，调用方需持有锁
func sortClips(t *model.Track) {
	sort.SliceStable(t.Clips, func(i, j int) bool {
		return t.Clips[i].StartTime < t.Clips[j].StartTime
	})
}

// AddClip 插入片段。
// id 重复返回 DuplicateId；与同轨道任一片段相交返回 Overlap。
// 拒绝时模型保持不变。
func (m *Model) AddClip(clip *model.Clip, trackID string) error {
	m.mu.Lock()

	track := m.findTrack(trackID)
	if track == nil {
		m.mu.Unlock()
		return notFoundErr("track", trackID)
	}
	if existing, _ := m.findClip(clip.ID); existing != nil {
		m.mu.Unlock()
		return duplicateErr(clip.ID)
	}
	if clip.Duration < model.MinClipDuration {
		m.mu.Unlock()
		return tooShortErr(clip.ID)
	}
	for _, other := range track.Clips {
		if clip.Overlaps(other) {
			m.mu.Unlock()
			return overlapErr(clip.ID, trackID)
		}
	}

	clip.TrackID = trackID
	track.Clips = append(track.Clips, clip)
	sortClips(track)
	m.recomputeTotalDuration()
	m.mu.Unlock()

	logger.Debug("clip added",
		logger.String("clip", clip.ID),
		logger.String("track", trackID),
		logger.Float64("start", clip.StartTime))
	m.notify()
	return nil
}

// RemoveClip 移除片段，若其正被选中则同时清除选中
func (m *Model) RemoveClip(id string) error {
	m.mu.Lock()

	clip, track := m.findClip(id)
	if clip == nil {
		m.mu.Unlock()
		return notFoundErr("clip", id)
	}

	m.removeFromAllTracksLocked(id)
	if m.selection == id {
		m.selection = ""
	}
	m.recomputeTotalDuration()
	m.mu.Unlock()

	logger.Debug("clip removed",
		logger.String("clip", id),
		logger.String("track", track.ID))
	m.notify()
	return nil
}

// removeFromAllTracksLocked 从所有轨道摘除指定片段。
// 防御性地遍历全部轨道，即使在某个中间态下片段被重复持有也不会复制。
func (m *Model) removeFromAllTracksLocked(id string) {
	for _, t := range m.tracks {
		kept := t.Clips[:0]
		for _, c := range t.Clips {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		t.Clips = kept
	}
}

// MoveClip 原子地把片段挪到新的时间（以及可选的新轨道）。
// newTrackID 为空串表示留在原轨道。
// 这里不做碰撞检查：拖拽引擎负责给出已解析的目标位置，模型层放行
// 是为了让界面能把"非法位置"作为持续视觉反馈呈现而不是阻塞操作。
func (m *Model) MoveClip(id string, newStartTime float64, newTrackID string) error {
	m.mu.Lock()

	clip, current := m.findClip(id)
	if clip == nil {
		m.mu.Unlock()
		return notFoundErr("clip", id)
	}

	target := current
	if newTrackID != "" {
		target = m.findTrack(newTrackID)
		if target == nil {
			m.mu.Unlock()
			return notFoundErr("track", newTrackID)
		}
	}

	m.removeFromAllTracksLocked(id)
	clip.StartTime = newStartTime
	clip.TrackID = target.ID
	target.Clips = append(target.Clips, clip)
	sortClips(target)
	m.recomputeTotalDuration()
	m.mu.Unlock()

	m.notify()
	return nil
}

// TrimClip 原子地更新裁剪窗口与时长。
// 不满足最小时长返回 TooShort，拒绝时片段保持原状。
func (m *Model) TrimClip(id string, trimStart, trimEnd float64) error {
	m.mu.Lock()

	clip, _ := m.findClip(id)
	if clip == nil {
		m.mu.Unlock()
		return notFoundErr("clip", id)
	}
	if trimEnd-trimStart < model.MinClipDuration {
		m.mu.Unlock()
		return tooShortErr(id)
	}

	clip.TrimStart = trimStart
	clip.TrimEnd = trimEnd
	clip.Duration = trimEnd - trimStart
	m.recomputeTotalDuration()
	m.mu.Unlock()

	m.notify()
	return nil
}

// CreateTrack 新建轨道并返回
func (m *Model) CreateTrack(name string) *model.Track {
	track := &model.Track{
		ID:     uuid.New().String(),
		Name:   name,
		Volume: 1.0,
	}

	m.mu.Lock()
	m.tracks = append(m.tracks, track)
	m.mu.Unlock()

	logger.Debug("track created",
		logger.String("track", track.ID),
		logger.String("name", name))
	m.notify()
	return track
}

// DeleteTrack 删除轨道及其全部片段；若选中片段在该轨道上则清除选中
func (m *Model) DeleteTrack(id string) error {
	m.mu.Lock()

	track := m.findTrack(id)
	if track == nil {
		m.mu.Unlock()
		return notFoundErr("track", id)
	}

	for _, c := range track.Clips {
		if c.ID == m.selection {
			m.selection = ""
			break
		}
	}

	kept := m.tracks[:0]
	for _, t := range m.tracks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	m.tracks = kept
	m.recomputeTotalDuration()
	m.mu.Unlock()

	logger.Debug("track deleted", logger.String("track", id))
	m.notify()
	return nil
}

// UpdateTrack 部分更新轨道属性
func (m *Model) UpdateTrack(id string, update model.TrackUpdate) error {
	m.mu.Lock()

	track := m.findTrack(id)
	if track == nil {
		m.mu.Unlock()
		return notFoundErr("track", id)
	}

	if update.Name != nil {
		track.Name = *update.Name
	}
	if update.IsMuted != nil {
		track.IsMuted = *update.IsMuted
	}
	if update.Volume != nil {
		track.Volume = *update.Volume
	}
	m.mu.Unlock()

	m.notify()
	return nil
}

// SelectClip 选中片段；id 为空串等价于清除选中
func (m *Model) SelectClip(id string) error {
	m.mu.Lock()
	if id != "" {
		if clip, _ := m.findClip(id); clip == nil {
			m.mu.Unlock()
			return notFoundErr("clip", id)
		}
	}
	m.selection = id
	m.mu.Unlock()

	m.notify()
	return nil
}

// ClearSelection 清除选中
func (m *Model) ClearSelection() {
	m.mu.Lock()
	changed := m.selection != ""
	m.selection = ""
	m.mu.Unlock()

	if changed {
		m.notify()
	}
}

// Selection 返回当前选中的片段 id，空串表示无选中
func (m *Model) Selection() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selection
}

// TotalDuration 返回所有片段的最大结束时间，空模型为 0
func (m *Model) TotalDuration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalDuration
}

// Clip 返回片段的拷贝
func (m *Model) Clip(id string) (model.Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clip, _ := m.findClip(id); clip != nil {
		return *clip, true
	}
	return model.Clip{}, false
}

// Tracks 返回轨道及片段的深拷贝投影
func (m *Model) Tracks() []*model.Track {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.Track, 0, len(m.tracks))
	for _, t := range m.tracks {
		tc := *t
		tc.Clips = make([]*model.Clip, 0, len(t.Clips))
		for _, c := range t.Clips {
			cc := *c
			tc.Clips = append(tc.Clips, &cc)
		}
		out = append(out, &tc)
	}
	return out
}

// ActiveClipAt 返回 t 时刻的活动片段。
// 多条轨道同时有片段时取轨道顺序里先出现的那条（单视频源，不做合成）。
func (m *Model) ActiveClipAt(t float64) (model.Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, track := range m.tracks {
		for _, c := range track.Clips {
			if c.Contains(t) {
				return *c, true
			}
		}
	}
	return model.Clip{}, false
}

// NextClipAfter 返回所有轨道上 StartTime 严格大于 t 的最早片段
func (m *Model) NextClipAfter(t float64) (model.Clip, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *model.Clip
	for _, track := range m.tracks {
		for _, c := range track.Clips {
			if c.StartTime > t && (best == nil || c.StartTime < best.StartTime) {
				best = c
			}
		}
	}
	if best == nil {
		return model.Clip{}, false
	}
	return *best, true
}
