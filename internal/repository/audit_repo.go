package repository

import (
	"context"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
)

// AuditRepository 审计日志（只追加）数据访问接口
type AuditRepository interface {
	Create(ctx context.Context, entry *model.AuditEntry) error
	ListByRequest(ctx context.Context, requestID string, offset, limit int) ([]model.AuditEntry, int64, error)
}

type auditRepo struct {
	db *gorm.DB
}

// NewAuditRepo 创建 AuditRepository 实例
func NewAuditRepo(db *gorm.DB) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Create(ctx context.Context, entry *model.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepo) ListByRequest(ctx context.Context, requestID string, offset, limit int) ([]model.AuditEntry, int64, error) {
	var entries []model.AuditEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AuditEntry{}).
		Where("exeat_request_id = ?", requestID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, total, err
}
