package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"ClipDeck/cache"
	"ClipDeck/logger"
	"ClipDeck/model"
)

// FFprobeProber 用 ffprobe 提取媒体元数据。
// 引擎核心从不自己解析媒体文件，全部探测集中在这里。
type FFprobeProber struct {
	ffprobePath string
}

// NewFFprobeProber 创建探测器
func NewFFprobeProber(ffprobePath string) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobeProber{ffprobePath: ffprobePath}
}

// ffprobe 的 JSON 输出结构，只取需要的字段
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe 探测媒体文件，结果过 Redis 缓存
func (p *FFprobeProber) Probe(ctx context.Context, path string) (*model.ProbeResult, error) {
	if cached, err := cache.GetProbeCache(ctx, path); err == nil && cached != nil {
		return cached, nil
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=format_name,duration",
		"-show_entries", "stream=codec_type,codec_name,width,height",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s",
			path, err, stderr.String())
	}

	result, err := parseProbeOutput(out.Bytes())
	if err != nil {
		return nil, fmt.Errorf("probe of %s: %w", path, err)
	}

	if err := cache.SetProbeCache(ctx, path, result); err != nil {
		logger.Warn("probe cache write failed", logger.ErrorField(err))
	}
	return result, nil
}

// parseProbeOutput 解析 ffprobe 的 JSON 输出
func parseProbeOutput(raw []byte) (*model.ProbeResult, error) {
	var probed probeOutput
	if err := json.Unmarshal(raw, &probed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(probed.Streams) == 0 {
		return nil, fmt.Errorf("no streams found")
	}

	result := &model.ProbeResult{
		Container: probed.Format.FormatName,
	}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		result.Duration = d
	}
	for _, s := range probed.Streams {
		switch s.CodecType {
		case "video":
			result.HasVideo = true
			// 多视频流时取第一条
			if result.Codec == "" {
				result.Codec = s.CodecName
				result.Width = s.Width
				result.Height = s.Height
			}
		case "audio":
			result.HasAudio = true
		}
	}
	return result, nil
}

// ProbeDecodable 一次性检测某个媒体源是否可解码，
// 供播放错误恢复的独立 probe 能力使用，不触碰主解码面。
func (p *FFprobeProber) ProbeDecodable(ctx context.Context, sourceLocator string) error {
	result, err := p.Probe(ctx, sourceLocator)
	if err != nil {
		return err
	}
	if !result.HasVideo && !result.HasAudio {
		return fmt.Errorf("source has no decodable streams: %s", sourceLocator)
	}
	return nil
}

// guessContentType 根据扩展名推断上传用的内容类型
func guessContentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
