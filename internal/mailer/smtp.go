package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"prosterio-go/internal/config"
	"prosterio-go/internal/logger"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const defaultTimeout = 15 * time.Second

// ErrNotConfigured SMTP 未配置
var ErrNotConfigured = errors.New("smtp is not configured")

// SMTPMailer 通过 SMTP 发送纯文本邮件
type SMTPMailer struct {
	client *mail.Client
	from   string
	log    zerolog.Logger
}

// NewSMTPMailer 根据配置创建客户端，只在发送时建立连接
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, ErrNotConfigured
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if from == "" {
		return nil, fmt.Errorf("%w: sender address is empty", ErrNotConfigured)
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
		mail.WithTimeout(config.GetDuration(cfg.Timeout, defaultTimeout)),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}
	return &SMTPMailer{client: client, from: from, log: logger.Named("mailer")}, nil
}

// Send 发送一封纯文本邮件
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg, err := buildMessage(m.from, to, subject, body)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	m.log.Info().Str("to", to).Str("subject", subject).Msg("邮件已发送")
	return nil
}

func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无效的发件人地址: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("无效的收件人地址: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

func tlsPolicy(s string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none", "notls":
		return mail.NoTLS
	default:
		return mail.TLSMandatory
	}
}
