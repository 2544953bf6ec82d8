package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// ── 家长同意模块业务错误 ──

var (
	ErrConsentNotFound       = errors.New("同意链接无效")
	ErrConsentExpired        = errors.New("同意链接已过期")
	ErrConsentConflict       = errors.New("该链接已处理为相反的决定，不能更改")
	ErrConsentSuperseded     = errors.New("该链接已被新的同意请求取代")
	ErrInvalidDecision       = errors.New("决定必须为 approve 或 decline")
	ErrDelegationForbidden   = errors.New("无权代家长处理同意请求")
	ErrJustificationRequired = errors.New("代办必须填写理由")
)

// delegateRoles 可代家长处理同意请求的能力（按优先级）
var delegateRoles = []model.Role{model.RoleDeputyDean, model.RoleDean, model.RoleAdmin}

// ConsentDecision 家长决定
type ConsentDecision string

const (
	DecisionApprove ConsentDecision = "approve"
	DecisionDecline ConsentDecision = "decline"
)

func (d ConsentDecision) status() (model.ConsentStatus, error) {
	switch d {
	case DecisionApprove:
		return model.ConsentApproved, nil
	case DecisionDecline:
		return model.ConsentDeclined, nil
	}
	return "", ErrInvalidDecision
}

// ConsentService 家长同意业务接口
type ConsentService interface {
	// Resolve 家长通过令牌处理（公开接口，无登录）
	Resolve(ctx context.Context, token string, decision ConsentDecision) (*dto.ConsentResolveResponse, error)
	// ResolveOnBehalf 有代办能力的员工代家长处理当前未决的同意请求
	ResolveOnBehalf(ctx context.Context, requestID string, actor Actor, req *dto.DelegateConsentRequest) (*dto.ConsentResolveResponse, error)
}

type consentService struct {
	engine *Engine
	logger *zap.Logger
}

// NewConsentService 创建 ConsentService 实例
func NewConsentService(engine *Engine, logger *zap.Logger) ConsentService {
	return &consentService{engine: engine, logger: logger}
}

type delegation struct {
	actorID       string
	role          model.Role
	justification string
}

// ────────────────────── Resolve ──────────────────────

func (s *consentService) Resolve(ctx context.Context, token string, decision ConsentDecision) (*dto.ConsentResolveResponse, error) {
	target, err := decision.status()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrConsentNotFound
	}

	consent, err := s.engine.repo.Consent.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConsentNotFound
		}
		s.logger.Error("查询同意令牌失败", zap.Error(err))
		return nil, err
	}

	var current *model.ParentConsent
	result, ev, err := s.engine.Apply(ctx, consent.ExeatRequestID, func(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest) (TransitionEvent, error) {
		c, err := tx.Consent.GetByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConsentNotFound
			}
			return nil, err
		}
		current = c
		return s.resolve(ctx, tx, req, c, target, nil)
	})
	if err != nil {
		return nil, err
	}
	return toConsentResolveResponse(result, current, ev == nil), nil
}

// ────────────────────── ResolveOnBehalf ──────────────────────

func (s *consentService) ResolveOnBehalf(ctx context.Context, requestID string, actor Actor, req *dto.DelegateConsentRequest) (*dto.ConsentResolveResponse, error) {
	target, err := ConsentDecision(req.Decision).status()
	if err != nil {
		return nil, err
	}

	var role model.Role
	for _, r := range delegateRoles {
		if actor.Has(r) {
			role = r
			break
		}
	}
	if role == "" {
		return nil, ErrDelegationForbidden
	}

	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		return nil, ErrJustificationRequired
	}

	var current *model.ParentConsent
	result, ev, err := s.engine.Apply(ctx, requestID, func(ctx context.Context, tx *repository.Repository, r *model.ExeatRequest) (TransitionEvent, error) {
		c, err := tx.Consent.GetCurrentByRequest(ctx, r.ExeatRequestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrConsentNotFound
			}
			return nil, err
		}
		current = c
		return s.resolve(ctx, tx, r, c, target, &delegation{actorID: actor.ID, role: role, justification: justification})
	})
	if err != nil {
		return nil, err
	}
	return toConsentResolveResponse(result, current, ev == nil), nil
}

// resolve 事务内处理同意：
// 已处理为相同决定 → 幂等成功（nil 事件）；相反决定 → 冲突；未处理且过期 → 过期
func (s *consentService) resolve(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, c *model.ParentConsent, target model.ConsentStatus, by *delegation) (TransitionEvent, error) {
	e := s.engine

	if c.Status != model.ConsentPending {
		if c.Status == target {
			return nil, nil
		}
		return nil, ErrConsentConflict
	}
	if c.Superseded {
		return nil, ErrConsentSuperseded
	}
	now := e.now()
	if c.IsExpired(now) {
		return nil, ErrConsentExpired
	}
	if req.Status.IsTerminal() {
		return nil, ErrRequestNotActive
	}
	if req.Status != model.StageParentConsent {
		return nil, ErrStageMismatch
	}

	c.Status = target
	c.ResolvedAt = &now
	c.UpdatedAt = now
	actorID := ""
	if by != nil {
		actorID = by.actorID
		c.ResolvedBy = &by.actorID
		c.DelegateReason = by.justification

		outcome := model.OutcomeApproved
		if target == model.ConsentDeclined {
			outcome = model.OutcomeRejected
		}
		if _, err := e.ledger.TryRecord(ctx, tx.Approval, model.ExeatApproval{
			ExeatRequestID: req.ExeatRequestID,
			ActorID:        by.actorID,
			Role:           by.role,
			Stage:          req.Status,
			StageCycle:     req.StageCycle,
			Outcome:        outcome,
			Comment:        by.justification,
		}); err != nil {
			return nil, err
		}
	}
	if err := tx.Consent.Update(ctx, c); err != nil {
		return nil, err
	}

	from := req.Status
	if target == model.ConsentApproved {
		next, err := e.graph.Next(req)
		if err != nil {
			return nil, err
		}
		req.Status = next
	} else {
		req.Status = model.StageRejected
	}
	if err := e.save(ctx, tx, req, actorID); err != nil {
		return nil, err
	}

	ev := &ConsentResolvedEvent{
		Request: req,
		Consent: c,
		From:    from,
		To:      req.Status,
	}
	if by != nil {
		ev.DelegatedBy = by.actorID
		ev.DelegateRole = by.role
		ev.Justification = by.justification
	}
	return ev, nil
}

func toConsentResolveResponse(req *model.ExeatRequest, c *model.ParentConsent, alreadyResolved bool) *dto.ConsentResolveResponse {
	return &dto.ConsentResolveResponse{
		ExeatRequestID:  req.ExeatRequestID,
		ConsentStatus:   string(c.Status),
		Status:          string(req.Status),
		AlreadyResolved: alreadyResolved,
	}
}
