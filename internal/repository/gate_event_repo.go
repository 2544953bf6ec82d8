package repository

import (
	"context"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
)

// GateEventRepository 门岗记录数据访问接口
type GateEventRepository interface {
	Create(ctx context.Context, event *model.GateEvent) error
	ListByRequest(ctx context.Context, requestID string) ([]model.GateEvent, error)
}

type gateEventRepo struct {
	db *gorm.DB
}

// NewGateEventRepo 创建 GateEventRepository 实例
func NewGateEventRepo(db *gorm.DB) GateEventRepository {
	return &gateEventRepo{db: db}
}

func (r *gateEventRepo) Create(ctx context.Context, event *model.GateEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gateEventRepo) ListByRequest(ctx context.Context, requestID string) ([]model.GateEvent, error) {
	var events []model.GateEvent
	err := r.db.WithContext(ctx).
		Where("exeat_request_id = ?", requestID).
		Order("recorded_at ASC").
		Find(&events).Error
	return events, err
}
