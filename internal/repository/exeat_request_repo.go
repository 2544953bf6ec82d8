package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exeat/backend/internal/model"
	pkgerrors "exeat/backend/pkg/errors"
)

// inactiveStatuses 不占用"每生一条活跃申请"名额的状态
var inactiveStatuses = []model.Stage{model.StageCompleted, model.StageRejected, model.StageAppeal}

// ExeatRequestRepository 离校申请数据访问接口
type ExeatRequestRepository interface {
	Create(ctx context.Context, req *model.ExeatRequest) error
	GetByID(ctx context.Context, id string) (*model.ExeatRequest, error)
	// GetByIDForUpdate 使用 SELECT ... FOR UPDATE 行级锁读取，必须在事务内调用
	GetByIDForUpdate(ctx context.Context, id string) (*model.ExeatRequest, error)
	GetActiveByStudent(ctx context.Context, studentID string) (*model.ExeatRequest, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.ExeatRequest, error)
	ListByStatus(ctx context.Context, status model.Stage, offset, limit int) ([]model.ExeatRequest, int64, error)
	Update(ctx context.Context, req *model.ExeatRequest) error
}

type exeatRequestRepo struct {
	db *gorm.DB
}

// NewExeatRequestRepo 创建 ExeatRequestRepository 实例
func NewExeatRequestRepo(db *gorm.DB) ExeatRequestRepository {
	return &exeatRequestRepo{db: db}
}

func (r *exeatRequestRepo) Create(ctx context.Context, req *model.ExeatRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *exeatRequestRepo) GetByID(ctx context.Context, id string) (*model.ExeatRequest, error) {
	var req model.ExeatRequest
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("exeat_request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *exeatRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ExeatRequest, error) {
	var req model.ExeatRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("exeat_request_id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *exeatRequestRepo) GetActiveByStudent(ctx context.Context, studentID string) (*model.ExeatRequest, error) {
	var req model.ExeatRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND status NOT IN ?", studentID, inactiveStatuses).
		Order("created_at DESC").
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *exeatRequestRepo) ListByStudent(ctx context.Context, studentID string) ([]model.ExeatRequest, error) {
	var reqs []model.ExeatRequest
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&reqs).Error
	return reqs, err
}

func (r *exeatRequestRepo) ListByStatus(ctx context.Context, status model.Stage, offset, limit int) ([]model.ExeatRequest, int64, error) {
	var reqs []model.ExeatRequest
	var total int64

	db := r.db.WithContext(ctx).Model(&model.ExeatRequest{}).
		Where("status = ?", status)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Student").
		Offset(offset).Limit(limit).
		Order("departure_date ASC, created_at ASC").
		Find(&reqs).Error
	return reqs, total, err
}

func (r *exeatRequestRepo) Update(ctx context.Context, req *model.ExeatRequest) error {
	oldVersion := req.Version
	result := r.db.WithContext(ctx).
		Model(&model.ExeatRequest{}).
		Where("exeat_request_id = ? AND version = ?", req.ExeatRequestID, oldVersion).
		Updates(map[string]interface{}{
			"status":             req.Status,
			"actual_return_time": req.ActualReturnTime,
			"stage_cycle":        req.StageCycle,
			"dean_override":      req.DeanOverride,
			"override_reason":    req.OverrideReason,
			"override_by":        req.OverrideBy,
			"override_at":        req.OverrideAt,
			"appeal_reason":      req.AppealReason,
			"appealed_at":        req.AppealedAt,
			"updated_by":         req.UpdatedBy,
			"updated_at":         gorm.Expr("CURRENT_TIMESTAMP"),
			"version":            oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	req.Version = oldVersion + 1
	return nil
}
