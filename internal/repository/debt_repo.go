package repository

import (
	"context"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
)

// DebtRepository 逾期欠款数据访问接口
type DebtRepository interface {
	Create(ctx context.Context, debt *model.StudentExeatDebt) error
	GetByID(ctx context.Context, id string) (*model.StudentExeatDebt, error)
	// GetOpenByRequest 返回申请名下未 cleared 的欠款，不存在时返回 gorm.ErrRecordNotFound
	GetOpenByRequest(ctx context.Context, requestID string) (*model.StudentExeatDebt, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.StudentExeatDebt, error)
	Update(ctx context.Context, debt *model.StudentExeatDebt) error
}

type debtRepo struct {
	db *gorm.DB
}

// NewDebtRepo 创建 DebtRepository 实例
func NewDebtRepo(db *gorm.DB) DebtRepository {
	return &debtRepo{db: db}
}

func (r *debtRepo) Create(ctx context.Context, debt *model.StudentExeatDebt) error {
	return r.db.WithContext(ctx).Create(debt).Error
}

func (r *debtRepo) GetByID(ctx context.Context, id string) (*model.StudentExeatDebt, error) {
	var debt model.StudentExeatDebt
	err := r.db.WithContext(ctx).
		Where("debt_id = ?", id).
		First(&debt).Error
	if err != nil {
		return nil, err
	}
	return &debt, nil
}

func (r *debtRepo) GetOpenByRequest(ctx context.Context, requestID string) (*model.StudentExeatDebt, error) {
	var debt model.StudentExeatDebt
	err := r.db.WithContext(ctx).
		Where("exeat_request_id = ? AND payment_status <> ?", requestID, model.PaymentCleared).
		First(&debt).Error
	if err != nil {
		return nil, err
	}
	return &debt, nil
}

func (r *debtRepo) ListByStudent(ctx context.Context, studentID string) ([]model.StudentExeatDebt, error) {
	var debts []model.StudentExeatDebt
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&debts).Error
	return debts, err
}

func (r *debtRepo) Update(ctx context.Context, debt *model.StudentExeatDebt) error {
	return r.db.WithContext(ctx).
		Model(&model.StudentExeatDebt{}).
		Where("debt_id = ?", debt.DebtID).
		Updates(map[string]interface{}{
			"payment_status": debt.PaymentStatus,
			"settled_by":     debt.SettledBy,
			"settled_at":     debt.SettledAt,
			"updated_at":     gorm.Expr("CURRENT_TIMESTAMP"),
		}).Error
}
