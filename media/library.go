package media

import (
	"context"
	"fmt"
	"path/filepath"

	"ClipDeck/cache"
	"ClipDeck/logger"
	"ClipDeck/model"
	"ClipDeck/repository"
	"ClipDeck/storage"

	"github.com/google/uuid"
)

// Library 是媒体库：片段通过不透明的 mediaRef 引用素材，
// 这里负责把引用解析成解码面能打开的媒体源。
// 元数据存数据库，媒体内容存对象存储，探测结果走 Redis 缓存。
type Library struct {
	repo   repository.AssetRepository
	prober *FFprobeProber
	bucket string
	// 没配对象存储时直接用本地文件路径作为 sourceLocator
	useObjectStore bool
}

// NewLibrary 创建媒体库
func NewLibrary(repo repository.AssetRepository, prober *FFprobeProber, bucket string, useObjectStore bool) *Library {
	return &Library{
		repo:           repo,
		prober:         prober,
		bucket:         bucket,
		useObjectStore: useObjectStore,
	}
}

// Resolve 把 mediaRef 解析成媒体源。
// 找不到资源时返回 model.ErrMediaNotFound。
func (l *Library) Resolve(ctx context.Context, mediaRef string) (model.MediaSource, error) {
	asset, err := l.repo.GetByMediaRef(mediaRef)
	if err != nil {
		return model.MediaSource{}, err
	}
	if asset.Status != model.AssetStatusReady {
		return model.MediaSource{}, fmt.Errorf("media asset not ready (%s): %w",
			asset.Status, model.ErrMediaNotFound)
	}

	locator := asset.FilePath
	if l.useObjectStore && asset.ObjectKey != "" {
		locator, err = storage.PresignURL(ctx, l.bucket, asset.ObjectKey)
		if err != nil {
			return model.MediaSource{}, fmt.Errorf("failed to presign media source: %w", err)
		}
	}

	return model.MediaSource{
		MediaRef:      asset.MediaRef,
		SourceLocator: locator,
		Duration:      asset.Duration,
		Codec:         asset.Codec,
	}, nil
}

// Import 把一个本地文件登记进媒体库：探测元数据、（可选）上传对象存储。
// 同一路径重复导入直接返回已有资源。
func (l *Library) Import(ctx context.Context, path string) (*model.MediaAsset, error) {
	if existing, err := l.repo.GetByFilePath(path); err == nil {
		return existing, nil
	}

	asset := &model.MediaAsset{
		MediaRef: uuid.New().String(),
		Title:    filepath.Base(path),
		FilePath: path,
		Status:   model.AssetStatusProcessing,
		State:    1,
	}
	if err := l.repo.Create(asset); err != nil {
		return nil, err
	}

	probed, err := l.prober.Probe(ctx, path)
	if err != nil {
		asset.Status = model.AssetStatusFailed
		if uerr := l.repo.Update(asset); uerr != nil {
			logger.Error("failed to mark asset failed", logger.ErrorField(uerr))
		}
		return nil, fmt.Errorf("probe failed for %s: %w", path, err)
	}

	asset.Duration = probed.Duration
	asset.Width = probed.Width
	asset.Height = probed.Height
	asset.Codec = probed.Codec
	asset.Container = probed.Container

	if l.useObjectStore {
		asset.ObjectKey = fmt.Sprintf("media/%s%s", asset.MediaRef, filepath.Ext(path))
		if err := storage.UploadFile(ctx, l.bucket, asset.ObjectKey, path, guessContentType(path)); err != nil {
			asset.Status = model.AssetStatusFailed
			if uerr := l.repo.Update(asset); uerr != nil {
				logger.Error("failed to mark asset failed", logger.ErrorField(uerr))
			}
			return nil, err
		}
	}

	asset.Status = model.AssetStatusReady
	if err := l.repo.Update(asset); err != nil {
		return nil, err
	}

	logger.Info("media asset imported",
		logger.String("mediaRef", asset.MediaRef),
		logger.String("title", asset.Title),
		logger.Float64("duration", asset.Duration))
	return asset, nil
}

// List 列出所有可用素材
func (l *Library) List() ([]*model.MediaAsset, error) {
	return l.repo.ListReady()
}

// Remove 软删除素材，同时清掉它的探测缓存，
// 同路径文件重新导入时不会拿到旧结果
func (l *Library) Remove(mediaRef string) error {
	if asset, err := l.repo.GetByMediaRef(mediaRef); err == nil && asset != nil {
		cache.InvalidateProbeCache(context.Background(), asset.FilePath)
	}
	return l.repo.SoftDelete(mediaRef)
}

// ProbeDecodable 独立探测某个源是否可解码，注入给播放错误恢复
func (l *Library) ProbeDecodable(ctx context.Context, sourceLocator string) error {
	return l.prober.ProbeDecodable(ctx, sourceLocator)
}
