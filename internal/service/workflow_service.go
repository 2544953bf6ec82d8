package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// ── 审批流模块业务错误 ──

var (
	ErrOverrideForbidden      = errors.New("仅院长可执行特批")
	ErrOverrideReasonRequired = errors.New("特批必须填写理由")
	ErrInvalidOutcome         = errors.New("批量操作结果必须为 approved 或 rejected")
	ErrEmptyBatch             = errors.New("批量操作的申请列表不能为空")
)

// WorkflowService 审批流业务接口
type WorkflowService interface {
	Approve(ctx context.Context, requestID string, actor Actor, req *dto.ActionRequest) (*dto.TransitionResponse, error)
	Reject(ctx context.Context, requestID string, actor Actor, req *dto.ActionRequest) (*dto.TransitionResponse, error)
	BulkApply(ctx context.Context, actor Actor, req *dto.BulkActionRequest) (*dto.BatchResponse, error)
	Override(ctx context.Context, actor Actor, req *dto.OverrideRequest) (*dto.BatchResponse, error)
}

type workflowService struct {
	engine *Engine
	logger *zap.Logger
}

// NewWorkflowService 创建 WorkflowService 实例
func NewWorkflowService(engine *Engine, logger *zap.Logger) WorkflowService {
	return &workflowService{engine: engine, logger: logger}
}

// ────────────────────── Approve ──────────────────────

func (s *workflowService) Approve(ctx context.Context, requestID string, actor Actor, req *dto.ActionRequest) (*dto.TransitionResponse, error) {
	return s.apply(ctx, requestID, actor, req, model.OutcomeApproved, false)
}

// ────────────────────── Reject ──────────────────────

func (s *workflowService) Reject(ctx context.Context, requestID string, actor Actor, req *dto.ActionRequest) (*dto.TransitionResponse, error) {
	return s.apply(ctx, requestID, actor, req, model.OutcomeRejected, false)
}

func (s *workflowService) apply(ctx context.Context, requestID string, actor Actor, in *dto.ActionRequest, outcome model.Outcome, bulk bool) (*dto.TransitionResponse, error) {
	if in == nil {
		in = &dto.ActionRequest{}
	}

	var from model.Stage
	result, ev, err := s.engine.Apply(ctx, requestID, func(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest) (TransitionEvent, error) {
		from = req.Status
		if outcome == model.OutcomeRejected {
			return s.reject(ctx, tx, req, actor, in, bulk)
		}
		return s.approve(ctx, tx, req, actor, in, bulk)
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.TransitionResponse{
		ExeatRequestID: result.ExeatRequestID,
		PreviousStatus: string(from),
		Status:         string(result.Status),
	}
	if approved, ok := ev.(*ApprovedEvent); ok && approved.Debt != nil {
		resp.Debt = toDebtResponse(approved.Debt)
	}
	return resp, nil
}

// approve 事务内：授权 → 记账 → 阶段副作用 → 计算下一阶段
func (s *workflowService) approve(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actor Actor, in *dto.ActionRequest, bulk bool) (TransitionEvent, error) {
	e := s.engine
	role, err := e.authorize(ctx, tx, req, actor, model.Role(in.Role), model.Stage(in.ExpectedStage))
	if err != nil {
		return nil, err
	}

	from := req.Status
	if _, err := e.ledger.TryRecord(ctx, tx.Approval, model.ExeatApproval{
		ExeatRequestID: req.ExeatRequestID,
		ActorID:        actor.ID,
		Role:           role,
		Stage:          from,
		StageCycle:     req.StageCycle,
		Outcome:        model.OutcomeApproved,
		Comment:        in.Comment,
	}); err != nil {
		return nil, err
	}

	debt, err := e.recordGate(ctx, tx, req, from, actor.ID, false)
	if err != nil {
		return nil, err
	}

	next, err := e.graph.Next(req)
	if err != nil {
		return nil, err
	}
	req.Status = next

	var consent *model.ParentConsent
	if next == model.StageParentConsent {
		if consent, err = e.issueConsent(ctx, tx, req); err != nil {
			return nil, err
		}
	}

	if err := e.save(ctx, tx, req, actor.ID); err != nil {
		return nil, err
	}

	return &ApprovedEvent{
		Request: req,
		ActorID: actor.ID,
		Role:    role,
		From:    from,
		To:      next,
		Comment: in.Comment,
		Bulk:    bulk,
		Debt:    debt,
		Consent: consent,
	}, nil
}

// reject 事务内：授权 → 记账 → 强制 rejected
// parent_consent 阶段没有授权能力，仅 admin 可驳回
func (s *workflowService) reject(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actor Actor, in *dto.ActionRequest, bulk bool) (TransitionEvent, error) {
	e := s.engine

	var (
		role model.Role
		err  error
	)
	if req.Status == model.StageParentConsent && actor.Has(model.RoleAdmin) &&
		(in.ExpectedStage == "" || model.Stage(in.ExpectedStage) == req.Status) {
		role = model.RoleAdmin
	} else {
		role, err = e.authorize(ctx, tx, req, actor, model.Role(in.Role), model.Stage(in.ExpectedStage))
		if err != nil {
			return nil, err
		}
	}

	from := req.Status
	if _, err := e.ledger.TryRecord(ctx, tx.Approval, model.ExeatApproval{
		ExeatRequestID: req.ExeatRequestID,
		ActorID:        actor.ID,
		Role:           role,
		Stage:          from,
		StageCycle:     req.StageCycle,
		Outcome:        model.OutcomeRejected,
		Comment:        in.Comment,
	}); err != nil {
		return nil, err
	}

	req.Status = model.StageRejected
	if err := e.save(ctx, tx, req, actor.ID); err != nil {
		return nil, err
	}

	return &RejectedEvent{
		Request: req,
		ActorID: actor.ID,
		Role:    role,
		From:    from,
		Comment: in.Comment,
		Bulk:    bulk,
	}, nil
}

// ────────────────────── BulkApply ──────────────────────

// BulkApply 逐条独立执行，单条失败不影响其他条目
func (s *workflowService) BulkApply(ctx context.Context, actor Actor, req *dto.BulkActionRequest) (*dto.BatchResponse, error) {
	outcome := model.Outcome(req.Outcome)
	if outcome != model.OutcomeApproved && outcome != model.OutcomeRejected {
		return nil, ErrInvalidOutcome
	}
	if len(req.ExeatRequestIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	action := &dto.ActionRequest{Role: req.Role, Comment: req.Comment, ExpectedStage: req.ExpectedStage}
	batch := newBatch(len(req.ExeatRequestIDs))
	for _, id := range req.ExeatRequestIDs {
		resp, err := s.apply(ctx, id, actor, action, outcome, true)
		batch.add(id, resp, err)
	}

	s.logBulk(&BulkAppliedEvent{
		ActorID:   actor.ID,
		Outcome:   outcome,
		Total:     batch.Summary.Total,
		Succeeded: batch.Summary.Succeeded,
		Failed:    batch.Summary.Failed,
	})
	return batch.BatchResponse, nil
}

func (s *workflowService) logBulk(ev *BulkAppliedEvent) {
	s.logger.Info("批量审批完成",
		zap.String("actor_id", ev.ActorID),
		zap.String("outcome", string(ev.Outcome)),
		zap.Int("total", ev.Total),
		zap.Int("succeeded", ev.Succeeded),
		zap.Int("failed", ev.Failed),
	)
}

// ────────────────────── Override ──────────────────────

// Override 院长特批：逐条直达目标阶段，补录被跳过阶段的门岗记录
func (s *workflowService) Override(ctx context.Context, actor Actor, req *dto.OverrideRequest) (*dto.BatchResponse, error) {
	if !actor.HasAny(model.RoleDean, model.RoleAdmin) {
		return nil, ErrOverrideForbidden
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, ErrOverrideReasonRequired
	}
	if len(req.ExeatRequestIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	flags := BypassFlags{SkipSecurity: req.SkipSecurity, SkipHostel: req.SkipHostel}
	batch := newBatch(len(req.ExeatRequestIDs))
	for _, id := range req.ExeatRequestIDs {
		var from model.Stage
		result, ev, err := s.engine.Apply(ctx, id, func(ctx context.Context, tx *repository.Repository, r *model.ExeatRequest) (TransitionEvent, error) {
			from = r.Status
			return s.override(ctx, tx, r, actor, reason, flags)
		})
		if err != nil {
			batch.add(id, nil, err)
			continue
		}

		oe := ev.(*OverriddenEvent)
		s.logger.Warn("执行特批",
			zap.Bool("override", true),
			zap.String("request_id", id),
			zap.String("actor_id", actor.ID),
			zap.String("from", string(oe.From)),
			zap.String("to", string(oe.To)),
			zap.Any("skipped_stages", oe.Skipped),
			zap.String("reason", reason),
		)
		resp := &dto.TransitionResponse{
			ExeatRequestID: result.ExeatRequestID,
			PreviousStatus: string(from),
			Status:         string(result.Status),
		}
		if oe.Debt != nil {
			resp.Debt = toDebtResponse(oe.Debt)
		}
		batch.add(id, resp, nil)
	}
	return batch.BatchResponse, nil
}

func (s *workflowService) override(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actor Actor, reason string, flags BypassFlags) (TransitionEvent, error) {
	e := s.engine
	if req.Status.IsTerminal() {
		return nil, ErrRequestNotActive
	}

	from := req.Status
	target := e.graph.OverrideTarget(req, flags)
	pipeline := e.graph.Pipeline(req)

	ev := &OverriddenEvent{
		Request: req,
		ActorID: actor.ID,
		From:    from,
		To:      target,
		Reason:  reason,
		Flags:   flags,
	}

	skipped := stagesBetween(pipeline, from, target)
	if len(skipped) == 0 && stageIndex(pipeline, target) <= stageIndex(pipeline, from) {
		// 目标不在当前阶段之后：回退重入，开启新一轮以便同名阶段重新记账
		req.StageCycle++
		ev.Reentered = true
	}
	ev.Skipped = skipped

	recorded, err := e.gatesInCycle(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	for _, stage := range skipped {
		if _, _, ok := gateFor(stage); !ok || recorded[stage] {
			continue
		}
		debt, err := e.recordGate(ctx, tx, req, stage, actor.ID, true)
		if err != nil {
			return nil, err
		}
		if debt != nil {
			ev.Debt = debt
		}
		ev.Synthesized = append(ev.Synthesized, stage)
	}

	for _, stage := range skipped {
		if stage == model.StageParentConsent {
			if err := tx.Consent.SupersedeByRequest(ctx, req.ExeatRequestID); err != nil {
				return nil, err
			}
			break
		}
	}

	now := e.now()
	req.Status = target
	req.DeanOverride = true
	req.OverrideReason = reason
	req.OverrideBy = &actor.ID
	req.OverrideAt = &now
	if err := e.save(ctx, tx, req, actor.ID); err != nil {
		return nil, err
	}
	return ev, nil
}

// gatesInCycle 本轮已有门岗记录的阶段
func (e *Engine) gatesInCycle(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest) (map[model.Stage]bool, error) {
	events, err := tx.GateEvent.ListByRequest(ctx, req.ExeatRequestID)
	if err != nil {
		return nil, err
	}
	recorded := make(map[model.Stage]bool)
	for _, ge := range events {
		if ge.StageCycle != req.StageCycle {
			continue
		}
		for _, stage := range []model.Stage{model.StageHostelSignout, model.StageSecuritySignout, model.StageSecuritySignin, model.StageHostelSignin} {
			if p, d, _ := gateFor(stage); p == ge.Point && d == ge.Direction {
				recorded[stage] = true
			}
		}
	}
	return recorded, nil
}

// ── 批量结果 ──

type batch struct {
	*dto.BatchResponse
}

func newBatch(n int) *batch {
	return &batch{BatchResponse: &dto.BatchResponse{Results: make([]dto.BatchItemResult, 0, n)}}
}

func (b *batch) add(id string, resp *dto.TransitionResponse, err error) {
	item := dto.BatchItemResult{ExeatRequestID: id}
	if err != nil {
		item.Error = err.Error()
		b.Summary.Failed++
	} else {
		item.Success = true
		item.Status = resp.Status
		item.Debt = resp.Debt
		b.Summary.Succeeded++
	}
	b.Summary.Total++
	b.Results = append(b.Results, item)
}
