package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ClipDeck/db"
	"ClipDeck/logger"
	"ClipDeck/model"

	"github.com/redis/go-redis/v9"
)

// probeCacheTTL 探测结果缓存时长；文件内容不变，给长一点
const probeCacheTTL = 24 * time.Hour

// probeKey 根据文件路径生成探测缓存键
func probeKey(path string) string {
	return fmt.Sprintf("probe:%s", path)
}

// SetProbeCache 缓存一次 ffprobe 探测结果
func SetProbeCache(ctx context.Context, path string, result *model.ProbeResult) error {
	if db.RedisClient == nil {
		return nil // 没配 Redis 时静默跳过，探测仍然可用
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal probe result: %w", err)
	}

	if err := db.RedisClient.Set(ctx, probeKey(path), data, probeCacheTTL).Err(); err != nil {
		logger.Error("设置探测缓存失败",
			logger.String("path", path),
			logger.ErrorField(err))
		return err
	}

	logger.Debug("探测缓存写入成功", logger.String("path", path))
	return nil
}

// GetProbeCache 读取探测缓存。
// 未命中返回 (nil, nil)，让调用方直接跑 ffprobe；
// Redis 故障时重试两次后同样放行，不把缓存问题变成探测失败。
func GetProbeCache(ctx context.Context, path string) (*model.ProbeResult, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	maxRetries := 2
	retryDelay := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		data, err := db.RedisClient.Get(ctx, probeKey(path)).Bytes()
		if err != nil {
			if err == redis.Nil {
				logger.Debug("探测缓存未命中", logger.String("path", path))
				return nil, nil
			}

			if attempt < maxRetries-1 {
				logger.Warn("读取探测缓存失败，准备重试",
					logger.String("path", path),
					logger.Int("attempt", attempt+1),
					logger.ErrorField(err))
				time.Sleep(retryDelay)
				retryDelay *= 2
				continue
			}

			logger.Error("读取探测缓存最终失败，回退到直接探测",
				logger.String("path", path),
				logger.ErrorField(err))
			return nil, nil
		}

		var result model.ProbeResult
		if err := json.Unmarshal(data, &result); err != nil {
			logger.Warn("探测缓存内容损坏，忽略",
				logger.String("path", path),
				logger.ErrorField(err))
			return nil, nil
		}
		return &result, nil
	}
	return nil, nil
}

// InvalidateProbeCache 删除某个文件的探测缓存（文件被替换时调用）
func InvalidateProbeCache(ctx context.Context, path string) {
	if db.RedisClient == nil {
		return
	}
	if err := db.RedisClient.Del(ctx, probeKey(path)).Err(); err != nil {
		logger.Warn("删除探测缓存失败",
			logger.String("path", path),
			logger.ErrorField(err))
	}
}
