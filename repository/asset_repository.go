package repository

import (
	"errors"
	"fmt"

	"ClipDeck/model"

	"gorm.io/gorm"
)

// AssetRepository 媒体资源仓库
type AssetRepository interface {
	Create(asset *model.MediaAsset) error
	Update(asset *model.MediaAsset) error
	GetByMediaRef(mediaRef string) (*model.MediaAsset, error)
	GetByFilePath(path string) (*model.MediaAsset, error)
	ListReady() ([]*model.MediaAsset, error)
	SoftDelete(mediaRef string) error
}

// GormAssetRepository 基于 GORM 的实现
type GormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository 创建媒体资源仓库
func NewGormAssetRepository(db *gorm.DB) *GormAssetRepository {
	return &GormAssetRepository{db: db}
}

// Create 新增资源记录
func (r *GormAssetRepository) Create(asset *model.MediaAsset) error {
	if err := r.db.Create(asset).Error; err != nil {
		return fmt.Errorf("failed to create media asset: %w", err)
	}
	return nil
}

// Update 保存资源记录的全部字段
func (r *GormAssetRepository) Update(asset *model.MediaAsset) error {
	if err := r.db.Save(asset).Error; err != nil {
		return fmt.Errorf("failed to update media asset: %w", err)
	}
	return nil
}

// GetByMediaRef 按 mediaRef 查询，软删除的记录视为不存在
func (r *GormAssetRepository) GetByMediaRef(mediaRef string) (*model.MediaAsset, error) {
	var asset model.MediaAsset
	err := r.db.Where("media_ref = ? AND state = 1", mediaRef).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media asset: %w", err)
	}
	return &asset, nil
}

// GetByFilePath 按本地文件路径查询（导入去重用）
func (r *GormAssetRepository) GetByFilePath(path string) (*model.MediaAsset, error) {
	var asset model.MediaAsset
	err := r.db.Where("file_path = ? AND state = 1", path).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrMediaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media asset by path: %w", err)
	}
	return &asset, nil
}

// ListReady 列出所有可用资源
func (r *GormAssetRepository) ListReady() ([]*model.MediaAsset, error) {
	var assets []*model.MediaAsset
	err := r.db.Where("status = ? AND state = 1", model.AssetStatusReady).
		Order("created_at DESC").Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list media assets: %w", err)
	}
	return assets, nil
}

// SoftDelete 软删除资源
func (r *GormAssetRepository) SoftDelete(mediaRef string) error {
	result := r.db.Model(&model.MediaAsset{}).
		Where("media_ref = ?", mediaRef).Update("state", 0)
	if result.Error != nil {
		return fmt.Errorf("failed to soft delete media asset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrMediaNotFound
	}
	return nil
}
