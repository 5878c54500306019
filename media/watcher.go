package media

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"ClipDeck/logger"

	"github.com/fsnotify/fsnotify"
)

// 识别为视频素材的扩展名
var videoExts = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
	".avi":  true,
}

// Watcher 监听导入目录，新出现的视频文件自动登记进媒体库
type Watcher struct {
	library *Library
	dir     string
	watcher *fsnotify.Watcher
}

// NewWatcher 创建导入目录监听器
func NewWatcher(library *Library, dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return &Watcher{library: library, dir: dir, watcher: fw}, nil
}

// Run 处理事件直到 ctx 结束。
// 文件创建后等一小段时间再探测，避免读到还在写入的半个文件。
func (w *Watcher) Run(ctx context.Context) {
	logger.Info("watching import directory", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if !videoExts[ext] {
				continue
			}

			path := event.Name
			go func() {
				// 给写入方一点时间收尾
				time.Sleep(500 * time.Millisecond)

				importCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
				defer cancel()
				if _, err := w.library.Import(importCtx, path); err != nil {
					logger.Warn("auto import failed",
						logger.String("path", path),
						logger.ErrorField(err))
				}
			}()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("import watcher error", logger.ErrorField(err))
		}
	}
}

// Close 关闭底层监听器
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
