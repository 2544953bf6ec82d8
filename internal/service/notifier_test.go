package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"exeat/backend/internal/model"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to+"|"+subject+"|"+body)
	return nil
}

// ── 通知出口 ──

func TestStoreGateway_SkipsNoticeWithoutRecipient(t *testing.T) {
	repo := newMockNotificationRepo()
	gw := NewStoreGateway(repo)

	err := gw.Notify(context.Background(), []Notice{
		{RequestID: "exeat-001", UserID: "stu-001", Type: NoticeSubmitted, Title: "t"},
		{RequestID: "exeat-001", Role: model.RoleDean, Type: NoticeApprovalRequired, Title: "t"},
		{RequestID: "exeat-001", Type: NoticeStageChanged, Title: "无收件人"},
	})
	if err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}
	if len(repo.notifications) != 2 {
		t.Fatalf("期望写入 2 条，实际 %d", len(repo.notifications))
	}
	if repo.notifications[1].Role == nil || *repo.notifications[1].Role != model.RoleDean {
		t.Errorf("岗位通知应写入 role: %+v", repo.notifications[1])
	}
	if repo.notifications[0].RelatedID == nil || *repo.notifications[0].RelatedID != "exeat-001" {
		t.Errorf("应关联申请 ID: %+v", repo.notifications[0])
	}
}

func TestEmailGateway_OnlyNoticesWithEmail(t *testing.T) {
	if NewEmailGateway(nil) != nil {
		t.Fatal("未配置邮件时应返回 nil")
	}

	m := &fakeMailer{}
	gw := NewEmailGateway(m)
	err := gw.Notify(context.Background(), []Notice{
		{UserID: "stu-001", Email: "s@example.edu", Title: "进度", Message: "<b>已通过</b>"},
		{Role: model.RoleDean, Title: "待办"},
	})
	if err != nil {
		t.Fatalf("Notify 应成功: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("期望发送 1 封，实际 %d", len(m.sent))
	}
	if strings.Contains(m.sent[0], "<b>") {
		t.Errorf("邮件正文应转义: %s", m.sent[0])
	}
}

func TestFanoutGateway_FailureDoesNotPropagate(t *testing.T) {
	repo := newMockNotificationRepo()
	failing := NewEmailGateway(&fakeMailer{err: errors.New("smtp down")})
	gw := NewFanoutGateway(zap.NewNop(), false, failing, nil, NewStoreGateway(repo))

	err := gw.Notify(context.Background(), []Notice{{UserID: "stu-001", Email: "s@example.edu", Title: "t"}})
	if err != nil {
		t.Fatalf("单个出口失败不应返回错误: %v", err)
	}
	if len(repo.notifications) != 1 {
		t.Errorf("其余出口应继续投递，实际 %d", len(repo.notifications))
	}
}

// ── 家长同意投递 ──

func TestConsentSender_Channels(t *testing.T) {
	ctx := context.Background()
	msg := ConsentMessage{RequestID: "exeat-001", Link: "https://x/consent/tok", ExpiresAt: time.Now()}

	m := &fakeMailer{}
	sender := NewConsentSender(m)
	if err := sender.SendConsent(ctx, model.ContactEmail, "parent@example.com", msg); err != nil {
		t.Fatalf("邮件投递应成功: %v", err)
	}
	if len(m.sent) != 1 || !strings.Contains(m.sent[0], "https://x/consent/tok?decision=approve") {
		t.Errorf("邮件应包含同意链接: %v", m.sent)
	}

	if err := sender.SendConsent(ctx, model.ContactSMS, "+86138", msg); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("短信期望 ErrChannelUnavailable，实际: %v", err)
	}
	if err := sender.SendConsent(ctx, model.ContactEmail, "", msg); !errors.Is(err, ErrNoParentAddress) {
		t.Errorf("无地址期望 ErrNoParentAddress，实际: %v", err)
	}
	if err := NewConsentSender(nil).SendConsent(ctx, model.ContactEmail, "p@example.com", msg); !errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("未配置邮件期望 ErrChannelUnavailable，实际: %v", err)
	}
}

func TestNewConsentToken_Unique(t *testing.T) {
	a, b := NewConsentToken(), NewConsentToken()
	if a == b || len(a) != 64 {
		t.Errorf("令牌应唯一且为 64 位: %s %s", a, b)
	}
}

// ── 请求锁 ──

func TestLocalLocker_Serializes(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "exeat-001")
	if err != nil {
		t.Fatalf("Lock 应成功: %v", err)
	}

	// 不同申请互不阻塞
	other, err := locker.Lock(ctx, "exeat-002")
	if err != nil {
		t.Fatalf("不同申请应可并行加锁: %v", err)
	}
	other()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(waitCtx, "exeat-001"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("已被持有的锁应等待至超时，实际: %v", err)
	}

	unlock()
	unlock() // 重复释放无副作用
	again, err := locker.Lock(ctx, "exeat-001")
	if err != nil {
		t.Fatalf("释放后应可重新加锁: %v", err)
	}
	again()
}

func TestNewRequestLocker_NilClientFallsBack(t *testing.T) {
	locker := NewRequestLocker(nil, time.Second, time.Second, zap.NewNop())
	unlock, err := locker.Lock(context.Background(), "exeat-001")
	if err != nil {
		t.Fatalf("无 Redis 时应使用进程内锁: %v", err)
	}
	unlock()
}
