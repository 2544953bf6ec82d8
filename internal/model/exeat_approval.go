package model

import "time"

// Role 审批能力
type Role string

const (
	RoleCMD         Role = "cmd"
	RoleSecretary   Role = "secretary"
	RoleDeputyDean  Role = "deputy_dean"
	RoleDean        Role = "dean"
	RoleHostelAdmin Role = "hostel_admin"
	RoleSecurity    Role = "security"
	RoleAdmin       Role = "admin"
	RoleStudent     Role = "student"
)

// Outcome 审批结果
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// ExeatApproval 审批动作记录表 — 对应 exeat_approvals（只追加，不更新）
// (exeat_request_id, actor_id, role, stage, stage_cycle) 唯一
type ExeatApproval struct {
	ExeatApprovalID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"exeat_approval_id"`
	ExeatRequestID  string    `gorm:"type:uuid;not null"                             json:"exeat_request_id"`
	ActorID         string    `gorm:"type:uuid;not null"                             json:"actor_id"`
	Role            Role      `gorm:"type:varchar(30);not null"                      json:"role"`
	Stage           Stage     `gorm:"type:varchar(30);not null"                      json:"stage"`
	StageCycle      int       `gorm:"not null;default:0"                             json:"stage_cycle"`
	Outcome         Outcome   `gorm:"type:varchar(20);not null"                      json:"outcome"`
	Comment         string    `gorm:"type:text"                                      json:"comment,omitempty"`
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (ExeatApproval) TableName() string { return "exeat_approvals" }
