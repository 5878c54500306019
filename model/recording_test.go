package model

import "testing"

func TestRecordingSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       RecordingSettings
		wantErr bool
	}{
		{
			name: "screen ok",
			s:    RecordingSettings{Kind: RecordingScreen, ScreenID: "display-1", FrameRate: 30},
		},
		{
			name:    "screen missing screenId",
			s:       RecordingSettings{Kind: RecordingScreen, FrameRate: 30},
			wantErr: true,
		},
		{
			name: "webcam ok",
			s:    RecordingSettings{Kind: RecordingWebcam, CameraID: "cam-0", FrameRate: 30},
		},
		{
			name:    "webcam missing cameraId",
			s:       RecordingSettings{Kind: RecordingWebcam, FrameRate: 30},
			wantErr: true,
		},
		{
			name: "pip ok",
			s: RecordingSettings{
				Kind: RecordingPiP, ScreenID: "display-1", CameraID: "cam-0",
				FrameRate: 30, PiPPosition: "bottom-right", PiPSize: "small",
			},
		},
		{
			name:    "pip missing camera",
			s:       RecordingSettings{Kind: RecordingPiP, ScreenID: "display-1", FrameRate: 30},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			s:       RecordingSettings{Kind: "hologram", FrameRate: 30},
			wantErr: true,
		},
		{
			name:    "zero frame rate",
			s:       RecordingSettings{Kind: RecordingScreen, ScreenID: "display-1"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClipIntervalSemantics(t *testing.T) {
	a := &Clip{ID: "a", StartTime: 0, Duration: 5}
	b := &Clip{ID: "b", StartTime: 5, Duration: 5}

	// 半开区间：共享边界不算重叠也不算包含
	if a.Overlaps(b) {
		t.Error("adjacent clips reported as overlapping")
	}
	if a.Contains(5) {
		t.Error("Contains(end) should be false")
	}
	if !a.Contains(0) || !a.Contains(4.999) {
		t.Error("Contains misses interior points")
	}
	if a.End() != 5 {
		t.Errorf("End() = %v, want 5", a.End())
	}
}
