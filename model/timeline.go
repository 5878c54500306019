package model

// MinClipDuration 剪辑片段的最小时长（秒），任何产生更短片段的操作都会被拒绝
const MinClipDuration = 0.1

// Clip represents a placed reference to a media asset on a track.
// Times are in seconds. The trim window selects the portion of the
// underlying media that plays; Duration always equals TrimEnd-TrimStart.
type Clip struct {
	ID        string  `json:"id"`
	MediaRef  string  `json:"mediaRef"` // Opaque reference resolved by the media library
	TrackID   string  `json:"trackId"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
}

// End 返回片段在时间轴上的结束时间（半开区间右端点）
func (c *Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Contains 判断时间 t 是否落在片段区间 [start, start+duration) 内
func (c *Clip) Contains(t float64) bool {
	return t >= c.StartTime && t < c.End()
}

// Overlaps 判断两个片段的半开区间是否相交
func (c *Clip) Overlaps(other *Clip) bool {
	return c.StartTime < other.End() && other.StartTime < c.End()
}

// Track is an ordered, non-overlapping lane of clips.
// Clips are kept sorted by StartTime but are not required to be contiguous.
type Track struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Clips   []*Clip `json:"clips"`
	IsMuted bool    `json:"isMuted"`
	Volume  float64 `json:"volume"`
}

// TrackUpdate carries partial track fields for UpdateTrack.
// nil 字段表示不修改
type TrackUpdate struct {
	Name    *string  `json:"name,omitempty"`
	IsMuted *bool    `json:"isMuted,omitempty"`
	Volume  *float64 `json:"volume,omitempty"`
}
