package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction 审计动作标签
type AuditAction string

const (
	AuditSubmitted        AuditAction = "submitted"
	AuditApproved         AuditAction = "approved"
	AuditRejected         AuditAction = "rejected"
	AuditConsentResolved  AuditAction = "consent_resolved"
	AuditConsentDelegated AuditAction = "consent_delegated"
	AuditOverridden       AuditAction = "special_override"
	AuditAppealed         AuditAction = "appealed"
	AuditDebtSettled      AuditAction = "debt_settled"
)

// AuditSeverity 审计级别
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry 审计日志表 — 对应 audit_entries（只追加，不更新不删除）
type AuditEntry struct {
	AuditEntryID   string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"audit_entry_id"`
	ActorID        *string        `gorm:"type:uuid"                                      json:"actor_id,omitempty"` // 家长通过链接操作时为空
	StudentID      string         `gorm:"type:uuid;not null"                             json:"student_id"`
	ExeatRequestID string         `gorm:"type:uuid;not null;index"                       json:"exeat_request_id"`
	Action         AuditAction    `gorm:"type:varchar(40);not null"                      json:"action"`
	Severity       AuditSeverity  `gorm:"type:varchar(10);not null;default:'info'"       json:"severity"`
	Details        string         `gorm:"type:text"                                      json:"details,omitempty"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"                                     json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (AuditEntry) TableName() string { return "audit_entries" }
