package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exeat/backend/internal/model"
)

// ParentConsentRepository 家长同意数据访问接口
type ParentConsentRepository interface {
	Create(ctx context.Context, consent *model.ParentConsent) error
	GetByToken(ctx context.Context, token string) (*model.ParentConsent, error)
	// GetByTokenForUpdate 行级锁读取，必须在事务内调用
	GetByTokenForUpdate(ctx context.Context, token string) (*model.ParentConsent, error)
	// GetCurrentByRequest 返回申请当前有效（未被替代）的同意记录
	GetCurrentByRequest(ctx context.Context, requestID string) (*model.ParentConsent, error)
	Update(ctx context.Context, consent *model.ParentConsent) error
	SupersedeByRequest(ctx context.Context, requestID string) error
}

type parentConsentRepo struct {
	db *gorm.DB
}

// NewParentConsentRepo 创建 ParentConsentRepository 实例
func NewParentConsentRepo(db *gorm.DB) ParentConsentRepository {
	return &parentConsentRepo{db: db}
}

func (r *parentConsentRepo) Create(ctx context.Context, consent *model.ParentConsent) error {
	return r.db.WithContext(ctx).Create(consent).Error
}

func (r *parentConsentRepo) GetByToken(ctx context.Context, token string) (*model.ParentConsent, error) {
	var consent model.ParentConsent
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&consent).Error
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *parentConsentRepo) GetByTokenForUpdate(ctx context.Context, token string) (*model.ParentConsent, error) {
	var consent model.ParentConsent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).
		First(&consent).Error
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *parentConsentRepo) GetCurrentByRequest(ctx context.Context, requestID string) (*model.ParentConsent, error) {
	var consent model.ParentConsent
	err := r.db.WithContext(ctx).
		Where("exeat_request_id = ? AND superseded = ?", requestID, false).
		Order("issued_at DESC").
		First(&consent).Error
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *parentConsentRepo) Update(ctx context.Context, consent *model.ParentConsent) error {
	return r.db.WithContext(ctx).
		Model(&model.ParentConsent{}).
		Where("parent_consent_id = ?", consent.ParentConsentID).
		Updates(map[string]interface{}{
			"status":          consent.Status,
			"resolved_at":     consent.ResolvedAt,
			"resolved_by":     consent.ResolvedBy,
			"delegate_reason": consent.DelegateReason,
			"superseded":      consent.Superseded,
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}

func (r *parentConsentRepo) SupersedeByRequest(ctx context.Context, requestID string) error {
	return r.db.WithContext(ctx).
		Model(&model.ParentConsent{}).
		Where("exeat_request_id = ? AND superseded = ?", requestID, false).
		Updates(map[string]interface{}{
			"superseded": true,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
