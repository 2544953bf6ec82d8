package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"exeat/backend/internal/model"
)

var (
	ErrChannelUnavailable = errors.New("该联系渠道未接入")
	ErrNoParentAddress    = errors.New("学生档案缺少家长联系方式")
)

// ConsentMessage 发送给家长的同意请求
type ConsentMessage struct {
	RequestID   string
	StudentName string
	ParentName  string
	Destination string
	Departure   time.Time
	Return      time.Time
	Link        string
	ExpiresAt   time.Time
}

// ConsentSender 家长同意请求投递接口
type ConsentSender interface {
	SendConsent(ctx context.Context, method model.ContactMethod, to string, msg ConsentMessage) error
}

// TokenIssuer 生成一次性令牌
type TokenIssuer func() string

// NewConsentToken 两段随机 UUID 拼接，64 位十六进制
func NewConsentToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// parentAddress 按联系方式选出家长地址
func parentAddress(student *model.Student, method model.ContactMethod) string {
	if student == nil {
		return ""
	}
	if method == model.ContactEmail {
		return student.ParentEmail
	}
	return student.ParentPhone
}

// ── 渠道分发 ──

type channelConsentSender struct {
	mailer Mailer
}

// NewConsentSender email 走 SMTP；sms / whatsapp 暂无网关返回 ErrChannelUnavailable
func NewConsentSender(mailer Mailer) ConsentSender {
	return &channelConsentSender{mailer: mailer}
}

func (s *channelConsentSender) SendConsent(_ context.Context, method model.ContactMethod, to string, msg ConsentMessage) error {
	if to == "" {
		return ErrNoParentAddress
	}
	switch method {
	case model.ContactEmail:
		if s.mailer == nil {
			return ErrChannelUnavailable
		}
		return s.mailer.Send(to, "离校申请家长确认", renderConsentEmail(msg))
	case model.ContactSMS, model.ContactWhatsApp:
		return fmt.Errorf("%w: %s", ErrChannelUnavailable, method)
	}
	return fmt.Errorf("%w: %s", ErrChannelUnavailable, method)
}

func renderConsentEmail(msg ConsentMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s 您好：</p>", html.EscapeString(msg.ParentName))
	fmt.Fprintf(&b, "<p>%s 申请离校前往 %s，%s 出发，%s 返校。</p>",
		html.EscapeString(msg.StudentName),
		html.EscapeString(msg.Destination),
		msg.Departure.Format("2006-01-02"),
		msg.Return.Format("2006-01-02"),
	)
	fmt.Fprintf(&b, `<p><a href="%s?decision=approve">同意</a> | <a href="%s?decision=decline">不同意</a></p>`,
		html.EscapeString(msg.Link), html.EscapeString(msg.Link))
	fmt.Fprintf(&b, "<p>链接将于 %s 失效。</p>", msg.ExpiresAt.Format("2006-01-02 15:04"))
	return b.String()
}
