package pkg

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender 邮件发送协作方，失败由调用方决定是否忽略
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 发件人邮箱
	Password string // 授权码/密码
	From     string // 显示的发件人，可与 Username 相同
}

type SMTPSender struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	return &SMTPSender{cfg: cfg, dialer: d}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return errors.Wrap(s.dialer.DialAndSend(m), "smtp send")
}

type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	name, addr := from, from
	if parsed, err := mail.ParseAddress(from); err == nil {
		name, addr = parsed.Name, parsed.Address
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   sgmail.NewEmail(name, addr),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail("", msg.To)
	m := sgmail.NewSingleEmail(s.from, msg.Subject, to, msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return errors.Wrap(err, "sendgrid send")
	}
	if resp.StatusCode >= 300 {
		return errors.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogSender 未配置邮件服务时使用，只打印日志
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email (log only)", "to", msg.To, "subject", msg.Subject)
	return nil
}

func VerificationEmail(to, firstName, link string, ttl time.Duration) Message {
	hours := int(ttl.Hours())
	name := strings.TrimSpace(firstName)
	if name == "" {
		name = "there"
	}
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Text: fmt.Sprintf("Hi %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nThe link expires in %d hours.\n",
			name, link, hours),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Please confirm your email address by clicking <a href="%s">this link</a>.</p><p>The link expires in %d hours.</p>`,
			html.EscapeString(name), html.EscapeString(link), hours),
	}
}

func IdeaSubmittedEmail(to, title, author, link string) Message {
	return Message{
		To:      to,
		Subject: "New Idea Submitted: " + title,
		Text:    fmt.Sprintf("%s submitted a new idea: %s\n\nReview it at %s\n", author, title, link),
		HTML: fmt.Sprintf(`<p><b>%s</b> submitted a new idea:</p><h3>%s</h3><p><a href="%s">Review it</a></p>`,
			html.EscapeString(author), html.EscapeString(title), html.EscapeString(link)),
	}
}
