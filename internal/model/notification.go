package model

// Priority 通知优先级
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification 站内通知表 — 对应 notifications
// UserID 与 Role 二选一：按人投递或按岗位投递（岗位待办）
type Notification struct {
	NotificationID string   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"notification_id"`
	UserID         *string  `gorm:"type:uuid"                                      json:"user_id,omitempty"`
	Role           *Role    `gorm:"type:varchar(30)"                               json:"role,omitempty"`
	Type           string   `gorm:"type:varchar(50);not null"                      json:"type"`
	Title          string   `gorm:"type:varchar(200);not null"                     json:"title"`
	Content        string   `gorm:"type:text;not null"                             json:"content"`
	Priority       Priority `gorm:"type:varchar(10);not null;default:'medium'"     json:"priority"`
	IsRead         bool     `gorm:"not null;default:false"                         json:"is_read"`
	RelatedID      *string  `gorm:"type:uuid"                                      json:"related_id,omitempty"` // exeat_request_id
	BaseModel
}

// TableName 指定表名
func (Notification) TableName() string { return "notifications" }
