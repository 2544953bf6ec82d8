package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus 欠款状态
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPaid    PaymentStatus = "paid"
	PaymentCleared PaymentStatus = "cleared"
)

// StudentExeatDebt 逾期欠款表 — 对应 student_exeat_debts
// 每条申请最多一笔非 cleared 欠款
type StudentExeatDebt struct {
	DebtID         string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"debt_id"`
	ExeatRequestID string          `gorm:"type:uuid;not null"                             json:"exeat_request_id"`
	StudentID      string          `gorm:"type:uuid;not null;index"                       json:"student_id"`
	DaysOverdue    int             `gorm:"not null"                                       json:"days_overdue"`
	Amount         decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	PaymentStatus  PaymentStatus   `gorm:"type:varchar(20);not null;default:'unpaid'"     json:"payment_status"`
	SettledBy      *string         `gorm:"type:uuid"                                      json:"settled_by,omitempty"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (StudentExeatDebt) TableName() string { return "student_exeat_debts" }
