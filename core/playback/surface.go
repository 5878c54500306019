package playback

import (
	"context"

	"ClipDeck/model"
)

// Surface 是解码/渲染面的抽象。引擎把它当不透明能力使用，
// 不假设具体的解码器或容器支持；真实实现通过 WebSocket 桥接到
// 界面里的 video 元素，测试里用假实现。
//
// Load/Seek 都是异步的，完成事件通过 SyncEngine 的 OnSurface* 回调
// 送回，并带上 Load 时分配的 generation，用于丢弃过期完成。
type Surface interface {
	// Load 让解码面打开新的媒体源，generation 由引擎分配并随完成事件回传
	Load(sourceLocator string, generation uint64)
	Play()
	Pause()
	// CurrentTime 返回解码器内部时钟的当前位置（秒）
	CurrentTime() float64
	// Seek 写解码器内部时钟
	Seek(t float64)
	// Ready 解码面是否就绪（已加载且可播放）
	Ready() bool
	Paused() bool
	Ended() bool
}

// Resolver 把片段的 mediaRef 解析成解码面能打开的媒体源。
// 引擎自身从不解析媒体文件。
type Resolver interface {
	Resolve(ctx context.Context, mediaRef string) (model.MediaSource, error)
}

// 解码面上报的原生错误码，取值沿用 HTML MediaError，
// 桌面端 webview 的 video 元素就是用这套编码上报的。
const (
	MediaErrAborted         = 1
	MediaErrNetwork         = 2
	MediaErrDecode          = 3
	MediaErrSrcNotSupported = 4
)
