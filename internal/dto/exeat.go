package dto

// ── 离校申请模块 DTO ──

// SubmitExeatRequest 学生提交离校申请
type SubmitExeatRequest struct {
	Category      string `json:"category"       binding:"required,oneof=regular daily medical_daily holiday emergency weekend"`
	IsMedical     bool   `json:"is_medical"`
	Reason        string `json:"reason"         binding:"required,max=500"`
	Destination   string `json:"destination"    binding:"required,max=200"`
	DepartureDate string `json:"departure_date" binding:"required"` // "2026-03-01"
	ReturnDate    string `json:"return_date"    binding:"required"` // "2026-03-03"
	ContactMethod string `json:"contact_method" binding:"omitempty,oneof=email sms whatsapp"`
}

// ListExeatRequest 按阶段查询待办
type ListExeatRequest struct {
	PaginationRequest
	Stage string `form:"stage" binding:"required"`
}

// ActionRequest 审批/驳回请求
// ExpectedStage 为调用方看到的阶段，用于识别过期页面上的重复提交
type ActionRequest struct {
	Role          string `json:"role"           binding:"omitempty,oneof=cmd secretary deputy_dean dean hostel_admin security admin"`
	Comment       string `json:"comment"        binding:"max=1000"`
	ExpectedStage string `json:"expected_stage"`
}

// BulkActionRequest 批量审批/驳回请求
type BulkActionRequest struct {
	ExeatRequestIDs []string `json:"exeat_request_ids" binding:"required,min=1,max=100,dive,required"`
	Role            string   `json:"role"              binding:"omitempty,oneof=cmd secretary deputy_dean dean hostel_admin security admin"`
	Outcome         string   `json:"outcome"           binding:"required,oneof=approved rejected"`
	Comment         string   `json:"comment"           binding:"max=1000"`
	ExpectedStage   string   `json:"expected_stage"` // 逐条校验，批量页面按阶段筛选
}

// OverrideRequest 院长特批请求
type OverrideRequest struct {
	ExeatRequestIDs []string `json:"exeat_request_ids" binding:"required,min=1,max=100,dive,required"`
	Reason          string   `json:"reason"            binding:"required,max=500"`
	SkipSecurity    bool     `json:"skip_security"`
	SkipHostel      bool     `json:"skip_hostel"`
}

// AppealRequest 学生申诉
type AppealRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// ExeatResponse 离校申请响应
type ExeatResponse struct {
	ID               string  `json:"id"`
	StudentID        string  `json:"student_id"`
	StudentName      string  `json:"student_name,omitempty"`
	Category         string  `json:"category"`
	IsMedical        bool    `json:"is_medical"`
	Status           string  `json:"status"`
	Reason           string  `json:"reason,omitempty"`
	Destination      string  `json:"destination,omitempty"`
	ContactMethod    string  `json:"contact_method"`
	DepartureDate    string  `json:"departure_date"`
	ReturnDate       string  `json:"return_date"`
	ActualReturnTime *string `json:"actual_return_time,omitempty"`
	DeanOverride     bool    `json:"dean_override"`
	OverrideReason   string  `json:"override_reason,omitempty"`
	AppealReason     string  `json:"appeal_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// TransitionResponse 单次流转结果
type TransitionResponse struct {
	ExeatRequestID string        `json:"exeat_request_id"`
	PreviousStatus string        `json:"previous_status"`
	Status         string        `json:"status"`
	Debt           *DebtResponse `json:"debt,omitempty"`
}

// AuditEntryResponse 审计记录
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	ActorID   *string        `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Severity  string         `json:"severity"`
	Details   string         `json:"details,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}
