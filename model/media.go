package model

import (
	"errors"
	"time"
)

// ErrMediaNotFound 媒体库里找不到对应的 mediaRef
var ErrMediaNotFound = errors.New("media not found")

// 媒体资源处理状态
const (
	AssetStatusProcessing = "processing"
	AssetStatusReady      = "ready"
	AssetStatusFailed     = "failed"
)

// MediaAsset represents an imported media file in the library.
// Clips reference assets by MediaRef; the engine never parses the file itself.
type MediaAsset struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	MediaRef  string    `json:"mediaRef" gorm:"size:36;uniqueIndex;not null"` // UUID handed to the timeline
	Title     string    `json:"title" gorm:"size:255;not null"`
	FilePath  string    `json:"-" gorm:"size:512;not null"` // Local path of the original file, not exposed in API
	ObjectKey string    `json:"objectKey" gorm:"size:512"`  // Key inside the MinIO bucket
	Duration  float64   `json:"duration"`                   // Duration in seconds
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Codec     string    `json:"codec" gorm:"size:64"`
	Container string    `json:"container" gorm:"size:64"`
	Status    string    `json:"status" gorm:"size:20;default:'processing';index"` // processing, ready, failed
	State     int8      `json:"state" gorm:"default:1"`                           // 0=soft deleted, 1=normal
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (MediaAsset) TableName() string {
	return "media_assets"
}

// ProbeResult ffprobe 探测出的媒体元数据
type ProbeResult struct {
	Duration  float64 `json:"duration"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Codec     string  `json:"codec"`
	Container string  `json:"container"`
	HasVideo  bool    `json:"hasVideo"`
	HasAudio  bool    `json:"hasAudio"`
}

// MediaSource 是 Resolve 的结果，交给解码面使用
type MediaSource struct {
	MediaRef      string  `json:"mediaRef"`
	SourceLocator string  `json:"sourceLocator"` // Presigned URL or local path the decode surface can open
	Duration      float64 `json:"duration"`
	Codec         string  `json:"codec,omitempty"`
}
