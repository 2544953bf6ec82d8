package dto

// ── 家长同意模块 DTO ──

// ConsentDecisionRequest 家长通过链接提交决定
type ConsentDecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve decline"`
}

// DelegateConsentRequest 员工代家长处理
type DelegateConsentRequest struct {
	Decision      string `json:"decision"      binding:"required,oneof=approve decline"`
	Justification string `json:"justification" binding:"required,max=500"`
}

// ConsentResolveResponse 同意处理结果
// AlreadyResolved 为 true 表示此前已按相同决定处理，本次未产生变更
type ConsentResolveResponse struct {
	ExeatRequestID  string `json:"exeat_request_id"`
	ConsentStatus   string `json:"consent_status"`
	Status          string `json:"status"`
	AlreadyResolved bool   `json:"already_resolved"`
}
