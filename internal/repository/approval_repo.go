package repository

import (
	"context"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
)

// ApprovalRepository 审批动作（只追加）数据访问接口
type ApprovalRepository interface {
	// Create 违反 (request, actor, role, stage, cycle) 唯一约束时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, approval *model.ExeatApproval) error
	Exists(ctx context.Context, requestID, actorID string, role model.Role, stage model.Stage, cycle int) (bool, error)
	ListByActor(ctx context.Context, requestID, actorID string, cycle int) ([]model.ExeatApproval, error)
	ListByRequest(ctx context.Context, requestID string) ([]model.ExeatApproval, error)
}

type approvalRepo struct {
	db *gorm.DB
}

// NewApprovalRepo 创建 ApprovalRepository 实例
func NewApprovalRepo(db *gorm.DB) ApprovalRepository {
	return &approvalRepo{db: db}
}

func (r *approvalRepo) Create(ctx context.Context, approval *model.ExeatApproval) error {
	return r.db.WithContext(ctx).Create(approval).Error
}

func (r *approvalRepo) Exists(ctx context.Context, requestID, actorID string, role model.Role, stage model.Stage, cycle int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ExeatApproval{}).
		Where("exeat_request_id = ? AND actor_id = ? AND role = ? AND stage = ? AND stage_cycle = ?",
			requestID, actorID, role, stage, cycle).
		Count(&count).Error
	return count > 0, err
}

func (r *approvalRepo) ListByActor(ctx context.Context, requestID, actorID string, cycle int) ([]model.ExeatApproval, error) {
	var approvals []model.ExeatApproval
	err := r.db.WithContext(ctx).
		Where("exeat_request_id = ? AND actor_id = ? AND stage_cycle = ?", requestID, actorID, cycle).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}

func (r *approvalRepo) ListByRequest(ctx context.Context, requestID string) ([]model.ExeatApproval, error) {
	var approvals []model.ExeatApproval
	err := r.db.WithContext(ctx).
		Where("exeat_request_id = ?", requestID).
		Order("created_at ASC").
		Find(&approvals).Error
	return approvals, err
}
