package service

import (
	"context"
	"errors"
	"fmt"
	"html"

	"go.uber.org/zap"

	"exeat/backend/internal/model"
	"exeat/backend/internal/repository"
)

// NoticeType 通知类型（封闭集合）
type NoticeType string

const (
	NoticeSubmitted        NoticeType = "exeat_submitted"
	NoticeApprovalRequired NoticeType = "approval_required"
	NoticeStageChanged     NoticeType = "stage_changed"
	NoticeRejected         NoticeType = "exeat_rejected"
	NoticeCompleted        NoticeType = "exeat_completed"
	NoticeOverride         NoticeType = "special_override"
	NoticeDebtCreated      NoticeType = "debt_created"
	NoticeDebtSettled      NoticeType = "debt_settled"
	NoticeAppeal           NoticeType = "exeat_appeal"
)

// Notice 一条待投递通知；UserID 与 Role 二选一
type Notice struct {
	RequestID string
	UserID    string
	Role      model.Role
	Email     string // 非空时额外走邮件通道
	Type      NoticeType
	Title     string
	Message   string
	Priority  model.Priority
}

// NotificationGateway 通知投递出口
type NotificationGateway interface {
	Notify(ctx context.Context, notices []Notice) error
}

// Mailer 邮件发送能力（pkg/mailer 实现）
type Mailer interface {
	Send(to, subject, htmlBody string) error
}

// ── 站内通知 ──

type storeGateway struct {
	repo repository.NotificationRepository
}

// NewStoreGateway 写入 notifications 表
func NewStoreGateway(repo repository.NotificationRepository) NotificationGateway {
	return &storeGateway{repo: repo}
}

func (g *storeGateway) Notify(ctx context.Context, notices []Notice) error {
	if len(notices) == 0 {
		return nil
	}
	rows := make([]model.Notification, 0, len(notices))
	for i := range notices {
		n := notices[i]
		row := model.Notification{
			Type:     string(n.Type),
			Title:    n.Title,
			Content:  n.Message,
			Priority: n.Priority,
		}
		if n.UserID != "" {
			row.UserID = &n.UserID
		} else if n.Role != "" {
			role := n.Role
			row.Role = &role
		} else {
			continue
		}
		if n.RequestID != "" {
			row.RelatedID = &n.RequestID
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}
	return g.repo.BatchCreate(ctx, rows)
}

// ── 邮件通知 ──

type emailGateway struct {
	mailer Mailer
}

// NewEmailGateway 对带 Email 的通知发邮件；mailer 为 nil 时返回 nil
func NewEmailGateway(mailer Mailer) NotificationGateway {
	if mailer == nil {
		return nil
	}
	return &emailGateway{mailer: mailer}
}

func (g *emailGateway) Notify(_ context.Context, notices []Notice) error {
	var errs []error
	for _, n := range notices {
		if n.Email == "" {
			continue
		}
		body := fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Message))
		if err := g.mailer.Send(n.Email, n.Title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ── 扇出 ──

type fanoutGateway struct {
	gateways []NotificationGateway
	async    bool
	logger   *zap.Logger
}

// NewFanoutGateway 依次投递到各出口，单个出口失败只记日志，不影响状态流转
// async=true 时在独立 goroutine 中投递
func NewFanoutGateway(logger *zap.Logger, async bool, gateways ...NotificationGateway) NotificationGateway {
	var live []NotificationGateway
	for _, g := range gateways {
		if g != nil {
			live = append(live, g)
		}
	}
	return &fanoutGateway{gateways: live, async: async, logger: logger}
}

func (g *fanoutGateway) Notify(ctx context.Context, notices []Notice) error {
	if len(notices) == 0 {
		return nil
	}
	if !g.async {
		g.deliver(ctx, notices)
		return nil
	}
	detached := context.WithoutCancel(ctx)
	go g.deliver(detached, notices)
	return nil
}

func (g *fanoutGateway) deliver(ctx context.Context, notices []Notice) {
	for _, gw := range g.gateways {
		if err := gw.Notify(ctx, notices); err != nil {
			g.logger.Warn("通知投递失败",
				zap.String("request_id", notices[0].RequestID),
				zap.Int("count", len(notices)),
				zap.Error(err),
			)
		}
	}
}
