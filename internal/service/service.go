package service

import (
	"go.uber.org/zap"

	"exeat/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
// 各业务 Service 共享同一个 Engine，保证同一申请的流转走同一把锁
type Service struct {
	Exeat    ExeatService
	Workflow WorkflowService
	Consent  ConsentService
	Debt     DebtService
}

// NewService 创建 Service 聚合
func NewService(repo *repository.Repository, opts EngineOptions, logger *zap.Logger) *Service {
	engine := NewEngine(repo, opts, logger)
	return &Service{
		Exeat:    NewExeatService(engine, logger),
		Workflow: NewWorkflowService(engine, logger),
		Consent:  NewConsentService(engine, logger),
		Debt:     NewDebtService(engine, logger),
	}
}
