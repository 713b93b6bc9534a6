package mail

import (
	"fmt"

	appconfig "github.com/carlos18bp/live-chat-feature/config"
	"github.com/carlos18bp/live-chat-feature/models"

	"gopkg.in/gomail.v2"
)

// Mailer 负责会话创建时给管理员发通知邮件。
// 调用方以 fire-and-forget 方式使用：失败记日志，不重试，不影响会话创建。
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg *appconfig.MailConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendChatCreated 通知管理员有新会话创建。
func (m *Mailer) SendChatCreated(user models.User, adminEmail string) error {
	body := fmt.Sprintf(
		"A new chat has been created.\n\nUser details:\nEmail: %s\nFirst Name: %s\nLast Name: %s",
		user.Email, user.FirstName, user.LastName,
	)

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", adminEmail)
	msg.SetHeader("Subject", "New chat created")
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send chat notification mail: %w", err)
	}
	return nil
}
