package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"exeat/backend/internal/dto"
	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// ── 欠款模块业务错误 ──

var (
	ErrDebtNotFound       = errors.New("欠款记录不存在")
	ErrDebtAlreadyCleared = errors.New("欠款已核销")
	ErrInvalidDebtStatus  = errors.New("欠款状态只能设为 paid 或 cleared")
)

// DebtService 逾期欠款业务接口
type DebtService interface {
	ListByStudent(ctx context.Context, studentID string) ([]dto.DebtResponse, error)
	Settle(ctx context.Context, debtID string, actor Actor, req *dto.SettleDebtRequest) (*dto.DebtResponse, error)
}

type debtService struct {
	engine *Engine
	logger *zap.Logger
}

// NewDebtService 创建 DebtService 实例
func NewDebtService(engine *Engine, logger *zap.Logger) DebtService {
	return &debtService{engine: engine, logger: logger}
}

// ────────────────────── ListByStudent ──────────────────────

func (s *debtService) ListByStudent(ctx context.Context, studentID string) ([]dto.DebtResponse, error) {
	debts, err := s.engine.repo.Debt.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询欠款失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.DebtResponse, 0, len(debts))
	for i := range debts {
		result = append(result, *toDebtResponse(&debts[i]))
	}
	return result, nil
}

// ────────────────────── Settle ──────────────────────

// Settle 通过申请锁串行化，审计记录与欠款更新同事务提交
func (s *debtService) Settle(ctx context.Context, debtID string, actor Actor, req *dto.SettleDebtRequest) (*dto.DebtResponse, error) {
	status := model.PaymentStatus(req.Status)
	if status != model.PaymentPaid && status != model.PaymentCleared {
		return nil, ErrInvalidDebtStatus
	}

	debt, err := s.engine.repo.Debt.GetByID(ctx, debtID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebtNotFound
		}
		s.logger.Error("查询欠款失败", zap.String("id", debtID), zap.Error(err))
		return nil, err
	}

	var settled *model.StudentExeatDebt
	_, _, err = s.engine.Apply(ctx, debt.ExeatRequestID, func(ctx context.Context, tx *repository.Repository, _ *model.ExeatRequest) (TransitionEvent, error) {
		d, err := tx.Debt.GetByID(ctx, debtID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrDebtNotFound
			}
			return nil, err
		}
		if d.PaymentStatus == model.PaymentCleared {
			return nil, ErrDebtAlreadyCleared
		}
		settled = d
		if d.PaymentStatus == status {
			return nil, nil
		}

		now := s.engine.now()
		d.PaymentStatus = status
		d.SettledBy = &actor.ID
		d.SettledAt = &now
		d.UpdatedAt = now
		if err := tx.Debt.Update(ctx, d); err != nil {
			return nil, err
		}
		return &DebtSettledEvent{Debt: d, ActorID: actor.ID}, nil
	})
	if err != nil {
		return nil, err
	}
	return toDebtResponse(settled), nil
}

func toDebtResponse(d *model.StudentExeatDebt) *dto.DebtResponse {
	resp := &dto.DebtResponse{
		ID:             d.DebtID,
		ExeatRequestID: d.ExeatRequestID,
		DaysOverdue:    d.DaysOverdue,
		Amount:         d.Amount.StringFixed(2),
		PaymentStatus:  string(d.PaymentStatus),
		CreatedAt:      d.CreatedAt.Format(time.RFC3339),
	}
	if d.SettledAt != nil {
		t := d.SettledAt.Format(time.RFC3339)
		resp.SettledAt = &t
	}
	return resp
}
