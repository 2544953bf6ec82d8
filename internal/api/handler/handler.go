package handler

import "exeat/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Exeat   *ExeatHandler
	Consent *ConsentHandler
	Debt    *DebtHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Exeat:   NewExeatHandler(svc.Exeat, svc.Workflow),
		Consent: NewConsentHandler(svc.Consent),
		Debt:    NewDebtHandler(svc.Debt),
	}
}
