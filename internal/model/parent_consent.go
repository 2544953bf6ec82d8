package model

import "time"

// ConsentStatus 家长同意状态
type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "pending"
	ConsentApproved ConsentStatus = "approved"
	ConsentDeclined ConsentStatus = "declined"
)

// ParentConsent 家长同意表 — 对应 parent_consents
// 重新进入 parent_consent 阶段时旧记录标记 superseded，不合并
type ParentConsent struct {
	ParentConsentID string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"parent_consent_id"`
	ExeatRequestID  string        `gorm:"type:uuid;not null;index"                       json:"exeat_request_id"`
	Token           string        `gorm:"type:varchar(128);not null;uniqueIndex"         json:"-"`
	ContactMethod   ContactMethod `gorm:"type:varchar(20);not null"                      json:"contact_method"`
	Status          ConsentStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	IssuedAt        time.Time     `gorm:"not null"                                       json:"issued_at"`
	ExpiresAt       time.Time     `gorm:"not null"                                       json:"expires_at"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy      *string       `gorm:"type:uuid"                                      json:"resolved_by,omitempty"` // 为空表示家长本人通过链接处理
	DelegateReason  string        `gorm:"type:varchar(500)"                              json:"delegate_reason,omitempty"`
	Superseded      bool          `gorm:"not null;default:false"                         json:"superseded"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName 指定表名
func (ParentConsent) TableName() string { return "parent_consents" }

// IsExpired 以调用时刻判断是否过期（无后台定时器）
func (p *ParentConsent) IsExpired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
