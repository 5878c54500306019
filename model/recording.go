package model

import "fmt"

// RecordingKind 是录制配置的显式类型标签。
// 录制来源用标签区分而不是靠字段存在性判断，保证 switch 可以穷举。
type RecordingKind string

const (
	RecordingScreen RecordingKind = "screen"
	RecordingWebcam RecordingKind = "webcam"
	RecordingPiP    RecordingKind = "pip" // 画中画：屏幕 + 摄像头
)

// CaptureArea 屏幕捕获区域
type CaptureArea struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RecordingSettings 录制配置，Kind 决定哪些字段有效
type RecordingSettings struct {
	Kind         RecordingKind `json:"kind"`
	Quality      string        `json:"quality"` // low, medium, high
	FrameRate    int           `json:"frameRate"`
	AudioEnabled bool          `json:"audioEnabled"`

	// screen / pip
	ScreenID    string       `json:"screenId,omitempty"`
	CaptureArea *CaptureArea `json:"captureArea,omitempty"`

	// webcam / pip
	CameraID      string `json:"cameraId,omitempty"`
	AudioDeviceID string `json:"audioDeviceId,omitempty"`

	// pip
	PiPPosition string `json:"pipPosition,omitempty"` // top-left, top-right, bottom-left, bottom-right
	PiPSize     string `json:"pipSize,omitempty"`     // small, medium, large
}

// Validate 检查配置与类型标签是否一致
func (s *RecordingSettings) Validate() error {
	switch s.Kind {
	case RecordingScreen:
		if s.ScreenID == "" {
			return fmt.Errorf("screen recording requires screenId")
		}
	case RecordingWebcam:
		if s.CameraID == "" {
			return fmt.Errorf("webcam recording requires cameraId")
		}
	case RecordingPiP:
		if s.ScreenID == "" || s.CameraID == "" {
			return fmt.Errorf("pip recording requires both screenId and cameraId")
		}
	default:
		return fmt.Errorf("unknown recording kind: %q", s.Kind)
	}
	if s.FrameRate <= 0 {
		return fmt.Errorf("frameRate must be positive, got %d", s.FrameRate)
	}
	return nil
}
