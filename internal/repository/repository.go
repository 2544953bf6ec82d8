package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Student      StudentRepository
	ExeatRequest ExeatRequestRepository
	Approval     ApprovalRepository
	Consent      ParentConsentRepository
	GateEvent    GateEventRepository
	Debt         DebtRepository
	Audit        AuditRepository
	Notification NotificationRepository

	db *gorm.DB
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Student:      NewStudentRepo(db),
		ExeatRequest: NewExeatRequestRepo(db),
		Approval:     NewApprovalRepo(db),
		Consent:      NewParentConsentRepo(db),
		GateEvent:    NewGateEventRepo(db),
		Debt:         NewDebtRepo(db),
		Audit:        NewAuditRepo(db),
		Notification: NewNotificationRepo(db),
		db:           db,
	}
}

// BeginTx 开启事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository 聚合
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个事务内执行 fn，fn 返回错误时整体回滚
// 未绑定数据库连接（单元测试注入 mock）时直接在当前聚合上执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
