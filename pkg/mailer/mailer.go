package mailer

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"exeat/backend/config"
)

// Mailer SMTP 邮件发送器
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// New 根据配置创建 Mailer；未配置 SMTP 主机时返回 nil
func New(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	if !cfg.Enabled() {
		logger.Warn("未配置 SMTP，邮件通道不可用")
		return nil
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Username, cfg.Password),
		from:   from,
		logger: logger,
	}
}

// Send 发送 HTML 邮件
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if to == "" {
		return fmt.Errorf("收件人地址为空")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	m.logger.Debug("邮件已发送", zap.String("to", to), zap.String("subject", subject))
	return nil
}
