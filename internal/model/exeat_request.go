package model

import "time"

// Stage 审批阶段
type Stage string

const (
	StagePending         Stage = "pending"
	StageCMDReview       Stage = "cmd_review"
	StageSecretaryReview Stage = "secretary_review"
	StageParentConsent   Stage = "parent_consent"
	StageDeanReview      Stage = "dean_review"
	StageHostelSignout   Stage = "hostel_signout"
	StageSecuritySignout Stage = "security_signout"
	StageSecuritySignin  Stage = "security_signin"
	StageHostelSignin    Stage = "hostel_signin"
	StageCompleted       Stage = "completed"
	StageRejected        Stage = "rejected"
	StageAppeal          Stage = "appeal"
)

// IsTerminal 终态不再接受审批动作
// appeal 是 rejected 的学生侧分支，同样不可审批
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageRejected || s == StageAppeal
}

// Valid 是否为已知阶段
func (s Stage) Valid() bool {
	switch s {
	case StagePending, StageCMDReview, StageSecretaryReview, StageParentConsent, StageDeanReview,
		StageHostelSignout, StageSecuritySignout, StageSecuritySignin, StageHostelSignin,
		StageCompleted, StageRejected, StageAppeal:
		return true
	}
	return false
}

// Category 离校类别
type Category string

const (
	CategoryRegular      Category = "regular"
	CategoryDaily        Category = "daily"
	CategoryMedicalDaily Category = "medical_daily"
	CategoryHoliday      Category = "holiday"
	CategoryEmergency    Category = "emergency"
	CategoryWeekend      Category = "weekend"
)

// Valid 是否为已知类别
func (c Category) Valid() bool {
	switch c {
	case CategoryRegular, CategoryDaily, CategoryMedicalDaily, CategoryHoliday, CategoryEmergency, CategoryWeekend:
		return true
	}
	return false
}

// IsDaily 日间类别（含医疗日间）不经过院长审批
func (c Category) IsDaily() bool {
	return c == CategoryDaily || c == CategoryMedicalDaily
}

// ContactMethod 家长联系方式
type ContactMethod string

const (
	ContactEmail    ContactMethod = "email"
	ContactSMS      ContactMethod = "sms"
	ContactWhatsApp ContactMethod = "whatsapp"
)

// Valid 是否为已支持的联系方式
func (m ContactMethod) Valid() bool {
	return m == ContactEmail || m == ContactSMS || m == ContactWhatsApp
}

// ExeatRequest 离校申请表 — 对应 exeat_requests
type ExeatRequest struct {
	ExeatRequestID   string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"exeat_request_id"`
	StudentID        string        `gorm:"type:uuid;not null;index"                       json:"student_id"`
	Category         Category      `gorm:"type:varchar(30);not null"                      json:"category"`
	IsMedical        bool          `gorm:"not null;default:false"                         json:"is_medical"`
	Status           Stage         `gorm:"type:varchar(30);not null;default:'pending'"    json:"status"`
	Reason           string        `gorm:"type:varchar(500)"                              json:"reason,omitempty"`
	Destination      string        `gorm:"type:varchar(200)"                              json:"destination,omitempty"`
	ContactMethod    ContactMethod `gorm:"type:varchar(20);not null;default:'email'"      json:"contact_method"`
	DepartureDate    time.Time     `gorm:"type:date;not null"                             json:"departure_date"`
	ReturnDate       time.Time     `gorm:"type:date;not null"                             json:"return_date"`
	ActualReturnTime *time.Time    `json:"actual_return_time,omitempty"`
	StageCycle       int           `gorm:"not null;default:0"                             json:"stage_cycle"` // 特批回退时递增，区分重复进入的同名阶段
	DeanOverride     bool          `gorm:"not null;default:false"                         json:"dean_override"`
	OverrideReason   string        `gorm:"type:varchar(500)"                              json:"override_reason,omitempty"`
	OverrideBy       *string       `gorm:"type:uuid"                                      json:"override_by,omitempty"`
	OverrideAt       *time.Time    `json:"override_at,omitempty"`
	AppealReason     string        `gorm:"type:varchar(500)"                              json:"appeal_reason,omitempty"`
	AppealedAt       *time.Time    `json:"appealed_at,omitempty"`
	VersionedModel

	// 关联
	Student *Student `gorm:"foreignKey:StudentID;references:StudentID" json:"student,omitempty"`
}

// TableName 指定表名
func (ExeatRequest) TableName() string { return "exeat_requests" }
