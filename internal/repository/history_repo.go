package repository

import (
	"context"
	"errors"
	"fmt"

	"HQLPreview/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryFilter 历史列表筛选条件
type HistoryFilter struct {
	GameGID int64  // 0 表示不限
	Mode    string // single / join / union
}

// HistoryRepository 生成历史仓储
type HistoryRepository interface {
	// Save 写入一条生成记录，RecordUUID 为空时自动生成
	Save(ctx context.Context, rec *model.GenerationRecord) error
	// List 按条件分页查询，最新的在前
	List(ctx context.Context, filter HistoryFilter, page, pageSize int) ([]*model.GenerationRecord, int64, error)
	// GetLatestByFingerprint 指纹对应的最近一条记录，不存在时返回 nil, nil
	GetLatestByFingerprint(ctx context.Context, fingerprint string) (*model.GenerationRecord, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建 HistoryRepository 实例
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Save(ctx context.Context, rec *model.GenerationRecord) error {
	if rec.RecordUUID == "" {
		rec.RecordUUID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("保存生成记录失败: %w, fingerprint: %s", err, rec.Fingerprint)
	}
	return nil
}

func (r *historyRepository) List(ctx context.Context, filter HistoryFilter, page, pageSize int) ([]*model.GenerationRecord, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	db := r.db.WithContext(ctx).Model(&model.GenerationRecord{})
	if filter.GameGID > 0 {
		db = db.Where("game_gid = ?", filter.GameGID)
	}
	if filter.Mode != "" {
		db = db.Where("mode = ?", filter.Mode)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*model.GenerationRecord
	if err := db.
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *historyRepository) GetLatestByFingerprint(ctx context.Context, fingerprint string) (*model.GenerationRecord, error) {
	var rec model.GenerationRecord
	if err := r.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		Order("id DESC").
		First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
