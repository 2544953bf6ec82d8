package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
	pkgerrors "exeat/backend/pkg/errors"
)

// ── 流转引擎通用错误 ──

var (
	ErrExeatNotFound         = errors.New("离校申请不存在")
	ErrNotAuthorizedForStage = errors.New("当前阶段无权操作")
	ErrAlreadyActed          = errors.New("已在该阶段操作过，请勿重复提交")
	ErrRequestNotActive      = errors.New("申请已结束，不能继续审批")
	ErrStageMismatch         = errors.New("申请阶段已变化，请刷新后重试")
	ErrNoNextStage           = errors.New("当前阶段没有后续阶段")
	ErrTransitionFailed      = errors.New("状态流转失败，操作未生效")
)

// domainErrors 业务错误原样返回，其余错误包装为 ErrTransitionFailed
var domainErrors = []error{
	ErrExeatNotFound, ErrNotAuthorizedForStage, ErrAlreadyActed, ErrRequestNotActive,
	ErrStageMismatch, ErrNoNextStage,
	ErrConsentNotFound, ErrConsentExpired, ErrConsentConflict, ErrConsentSuperseded,
	ErrDelegationForbidden, ErrJustificationRequired,
	ErrOverrideForbidden, ErrAppealForbidden, ErrDebtNotFound, ErrDebtAlreadyCleared,
	pkgerrors.ErrLockNotAcquired,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Actor 操作者：用户 ID + 持有的能力集合
type Actor struct {
	ID    string
	Roles []model.Role
}

// NewActor 由字符串能力列表构造
func NewActor(id string, roles []string) Actor {
	a := Actor{ID: id, Roles: make([]model.Role, 0, len(roles))}
	for _, r := range roles {
		a.Roles = append(a.Roles, model.Role(r))
	}
	return a
}

// Has 是否持有能力
func (a Actor) Has(role model.Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAny 是否持有任一能力
func (a Actor) HasAny(roles ...model.Role) bool {
	for _, r := range roles {
		if a.Has(r) {
			return true
		}
	}
	return false
}

// EngineOptions 引擎可注入项
type EngineOptions struct {
	Graph          StageGraph
	DebtRate       decimal.Decimal
	ConsentTTL     time.Duration
	ConsentBaseURL string
	Locker         RequestLocker
	Notifier       NotificationGateway
	ConsentSender  ConsentSender
	IssueToken     TokenIssuer
	Now            func() time.Time
}

// Engine 审批流转引擎：串行化、事务、审计与提交后的通知
type Engine struct {
	repo           *repository.Repository
	graph          StageGraph
	ledger         *ApprovalLedger
	debtRate       decimal.Decimal
	consentTTL     time.Duration
	consentBaseURL string
	locker         RequestLocker
	notifier       NotificationGateway
	consentSender  ConsentSender
	issueToken     TokenIssuer
	now            func() time.Time
	logger         *zap.Logger
}

// NewEngine 创建引擎；未提供的可选项使用默认实现
func NewEngine(repo *repository.Repository, opts EngineOptions, logger *zap.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IssueToken == nil {
		opts.IssueToken = NewConsentToken
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	if opts.Notifier == nil {
		opts.Notifier = NewFanoutGateway(logger, false, NewStoreGateway(repo.Notification))
	}
	if opts.ConsentSender == nil {
		opts.ConsentSender = NewConsentSender(nil)
	}
	if opts.ConsentTTL <= 0 {
		opts.ConsentTTL = 24 * time.Hour
	}
	return &Engine{
		repo:           repo,
		graph:          opts.Graph,
		ledger:         NewApprovalLedger(opts.Now),
		debtRate:       opts.DebtRate,
		consentTTL:     opts.ConsentTTL,
		consentBaseURL: opts.ConsentBaseURL,
		locker:         opts.Locker,
		notifier:       opts.Notifier,
		consentSender:  opts.ConsentSender,
		issueToken:     opts.IssueToken,
		now:            opts.Now,
		logger:         logger,
	}
}

// Graph 返回注入的状态图
func (e *Engine) Graph() StageGraph { return e.graph }

// transitionFunc 在事务内对已加行锁的申请执行变更
// 返回 nil 事件表示无变更（幂等命中），引擎不写审计也不发通知
type transitionFunc func(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest) (TransitionEvent, error)

// Apply 串行化执行一次流转：请求锁 → 事务(行锁 → fn → 审计) → 提交后通知
func (e *Engine) Apply(ctx context.Context, requestID string, fn transitionFunc) (*model.ExeatRequest, TransitionEvent, error) {
	unlock, err := e.locker.Lock(ctx, requestID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrLockNotAcquired) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: %w", ErrTransitionFailed, err)
	}
	defer unlock()

	var (
		result  *model.ExeatRequest
		event   TransitionEvent
		student *model.Student
	)
	err = e.repo.Transaction(ctx, func(tx *repository.Repository) error {
		req, err := tx.ExeatRequest.GetByIDForUpdate(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrExeatNotFound
			}
			return err
		}

		ev, err := fn(ctx, tx, req)
		if err != nil {
			return err
		}
		result = req
		if ev == nil {
			return nil
		}

		if entry := auditFor(ev, e.now()); entry != nil {
			if err := tx.Audit.Create(ctx, entry); err != nil {
				return err
			}
		}
		event = ev

		// 档案缺失不影响流转，只是通知少了邮件地址
		if s, err := tx.Student.GetByID(ctx, req.StudentID); err == nil {
			student = s
		}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return nil, nil, err
		}
		e.logger.Error("状态流转失败，已回滚", zap.String("request_id", requestID), zap.Error(err))
		return nil, nil, fmt.Errorf("%w: %w", ErrTransitionFailed, err)
	}

	if event != nil {
		e.afterCommit(ctx, event, student)
	}
	return result, event, nil
}

// afterCommit 已提交后派发通知与家长同意请求
func (e *Engine) afterCommit(ctx context.Context, ev TransitionEvent, student *model.Student) {
	if err := e.notifier.Notify(ctx, noticesFor(ev, student)); err != nil {
		e.logger.Warn("通知派发失败", zap.Error(err))
	}
	if approved, ok := ev.(*ApprovedEvent); ok && approved.Consent != nil {
		e.dispatchConsent(ctx, approved.Request, approved.Consent, student)
	}
}

// dispatchConsent 异步发送家长同意请求；失败只记日志
func (e *Engine) dispatchConsent(ctx context.Context, req *model.ExeatRequest, consent *model.ParentConsent, student *model.Student) {
	msg := ConsentMessage{
		RequestID:   req.ExeatRequestID,
		Destination: req.Destination,
		Departure:   req.DepartureDate,
		Return:      req.ReturnDate,
		Link:        e.consentBaseURL + "/" + consent.Token,
		ExpiresAt:   consent.ExpiresAt,
	}
	if student != nil {
		msg.StudentName = student.Name
		msg.ParentName = student.ParentName
	}
	to := parentAddress(student, consent.ContactMethod)
	method := consent.ContactMethod

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := e.consentSender.SendConsent(detached, method, to, msg); err != nil {
			e.logger.Warn("家长同意请求发送失败",
				zap.String("request_id", msg.RequestID),
				zap.String("contact_method", string(method)),
				zap.Error(err),
			)
		}
	}()
}

// save 持久化申请变更（乐观锁）
func (e *Engine) save(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actorID string) error {
	if actorID != "" {
		req.UpdatedBy = &actorID
	}
	return tx.ExeatRequest.Update(ctx, req)
}

// ── 授权 ──

// authorize 解析本次动作使用的能力
// expected 非空且与当前阶段不符：若已在 expected 阶段操作过视为重复提交，否则阶段不匹配
// expected 为空且已在上一阶段操作过：视为重复提交
// 当前阶段无权限：若本轮已以同一能力操作过视为重复提交（双击时第一次已推进阶段）
func (e *Engine) authorize(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actor Actor, requested model.Role, expected model.Stage) (model.Role, error) {
	if req.Status.IsTerminal() {
		acted, err := e.ledger.ActedInCycle(ctx, tx.Approval, req.ExeatRequestID, actor.ID, requested, req.StageCycle)
		if err != nil {
			return "", err
		}
		if acted {
			return "", ErrAlreadyActed
		}
		return "", ErrRequestNotActive
	}

	if expected != "" && expected != req.Status {
		acted, err := e.ledger.ActedAtStage(ctx, tx.Approval, req.ExeatRequestID, actor.ID, expected, req.StageCycle)
		if err != nil {
			return "", err
		}
		if acted {
			return "", ErrAlreadyActed
		}
		return "", ErrStageMismatch
	}

	role, ok := ResolveActingRole(actor, requested, req.Status)
	if ok {
		// 未携带 expected：同一能力连续拥有相邻两个阶段时（security 签出/签入、admin），
		// 在上一阶段已操作过即视为重复提交，需携带 expected_stage 才能继续
		if expected == "" {
			if prev, has := e.graph.Previous(req); has {
				acted, err := e.ledger.ActedAtStage(ctx, tx.Approval, req.ExeatRequestID, actor.ID, prev, req.StageCycle)
				if err != nil {
					return "", err
				}
				if acted {
					return "", ErrAlreadyActed
				}
			}
		}
		return role, nil
	}

	if !actor.Has(model.RoleAdmin) {
		acted, err := e.ledger.ActedInCycle(ctx, tx.Approval, req.ExeatRequestID, actor.ID, requested, req.StageCycle)
		if err != nil {
			return "", err
		}
		if acted {
			return "", ErrAlreadyActed
		}
	}
	return "", ErrNotAuthorizedForStage
}

// ── 阶段副作用 ──

// gateFor 阶段对应的门岗记录
func gateFor(stage model.Stage) (model.GatePoint, model.GateDirection, bool) {
	switch stage {
	case model.StageHostelSignout:
		return model.GateHostel, model.DirectionOut, true
	case model.StageSecuritySignout:
		return model.GateSecurity, model.DirectionOut, true
	case model.StageSecuritySignin:
		return model.GateSecurity, model.DirectionIn, true
	case model.StageHostelSignin:
		return model.GateHostel, model.DirectionIn, true
	}
	return "", "", false
}

// recordGate 写门岗记录；security_signin 同时记录实际返校时间并检查逾期
func (e *Engine) recordGate(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, stage model.Stage, actorID string, synthetic bool) (*model.StudentExeatDebt, error) {
	point, dir, ok := gateFor(stage)
	if !ok {
		return nil, nil
	}
	now := e.now()
	ev := &model.GateEvent{
		ExeatRequestID: req.ExeatRequestID,
		StudentID:      req.StudentID,
		Point:          point,
		Direction:      dir,
		StageCycle:     req.StageCycle,
		RecordedBy:     strPtr(actorID),
		Synthetic:      synthetic,
		RecordedAt:     now,
	}
	if err := tx.GateEvent.Create(ctx, ev); err != nil {
		return nil, err
	}

	if stage != model.StageSecuritySignin {
		return nil, nil
	}
	req.ActualReturnTime = &now
	return e.accrueDebt(ctx, tx, req, now)
}

// accrueDebt 签入时检查逾期；已存在未结清欠款时不重复计费
func (e *Engine) accrueDebt(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest, actualReturn time.Time) (*model.StudentExeatDebt, error) {
	days := DaysOverdue(req.ReturnDate, actualReturn)
	if days == 0 {
		return nil, nil
	}

	if _, err := tx.Debt.GetOpenByRequest(ctx, req.ExeatRequestID); err == nil {
		return nil, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	debt := &model.StudentExeatDebt{
		ExeatRequestID: req.ExeatRequestID,
		StudentID:      req.StudentID,
		DaysOverdue:    days,
		Amount:         DebtAmount(days, e.debtRate),
		PaymentStatus:  model.PaymentUnpaid,
		CreatedAt:      actualReturn,
		UpdatedAt:      actualReturn,
	}
	if err := tx.Debt.Create(ctx, debt); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil
		}
		return nil, err
	}
	e.logger.Info("逾期返校产生欠款",
		zap.String("request_id", req.ExeatRequestID),
		zap.Int("days_overdue", days),
		zap.String("amount", debt.Amount.StringFixed(2)),
	)
	return debt, nil
}

// issueConsent 进入 parent_consent 时签发新令牌，旧令牌标记 superseded
func (e *Engine) issueConsent(ctx context.Context, tx *repository.Repository, req *model.ExeatRequest) (*model.ParentConsent, error) {
	if err := tx.Consent.SupersedeByRequest(ctx, req.ExeatRequestID); err != nil {
		return nil, err
	}
	now := e.now()
	consent := &model.ParentConsent{
		ExeatRequestID: req.ExeatRequestID,
		Token:          e.issueToken(),
		ContactMethod:  req.ContactMethod,
		Status:         model.ConsentPending,
		IssuedAt:       now,
		ExpiresAt:      now.Add(e.consentTTL),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.Consent.Create(ctx, consent); err != nil {
		return nil, err
	}
	return consent, nil
}
