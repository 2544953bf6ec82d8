package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// ApprovalLedger 审批动作账本：(request, actor, role, stage, cycle) 至多记一次
type ApprovalLedger struct {
	now func() time.Time
}

// NewApprovalLedger 创建账本
func NewApprovalLedger(now func() time.Time) *ApprovalLedger {
	return &ApprovalLedger{now: now}
}

// TryRecord 记一笔审批动作，已存在时返回 ErrAlreadyActed
// 先查后写；并发下由唯一索引兜底，冲突同样映射为 ErrAlreadyActed
func (l *ApprovalLedger) TryRecord(ctx context.Context, repo repository.ApprovalRepository, entry model.ExeatApproval) (*model.ExeatApproval, error) {
	exists, err := repo.Exists(ctx, entry.ExeatRequestID, entry.ActorID, entry.Role, entry.Stage, entry.StageCycle)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyActed
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	if err := repo.Create(ctx, &entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyActed
		}
		return nil, err
	}
	return &entry, nil
}

// ActedInCycle 操作者在本轮是否已有动作；role 为空时匹配任意能力
func (l *ApprovalLedger) ActedInCycle(ctx context.Context, repo repository.ApprovalRepository, requestID, actorID string, role model.Role, cycle int) (bool, error) {
	actions, err := repo.ListByActor(ctx, requestID, actorID, cycle)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if role == "" || a.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// ActedAtStage 操作者在本轮是否已在指定阶段有动作
func (l *ApprovalLedger) ActedAtStage(ctx context.Context, repo repository.ApprovalRepository, requestID, actorID string, stage model.Stage, cycle int) (bool, error) {
	actions, err := repo.ListByActor(ctx, requestID, actorID, cycle)
	if err != nil {
		return false, err
	}
	for _, a := range actions {
		if a.Stage == stage {
			return true, nil
		}
	}
	return false, nil
}
