// Package mail delivers the transactional emails (verification, password
// reset, group invitations) over SMTP. Callers treat delivery as
// best-effort; a failed send is logged and surfaced in the response body,
// never as a request failure.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/haneul-labs/keyshare/pkg/slogx"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// FrontendURL is the base for the links embedded in emails.
	FrontendURL string
}

type Mailer struct {
	cfg Config
}

func New(cfg Config) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) SendVerification(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.cfg.FrontendURL, token)
	body := "Welcome! Confirm your email address by opening the link below within 24 hours.\r\n\r\n" + link + "\r\n"
	return m.send(ctx, to, "Verify your email address", body)
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.cfg.FrontendURL, token)
	body := "A password reset was requested for your account. The link below is valid for 1 hour.\r\n\r\n" +
		link + "\r\n\r\nIf you did not request this, you can ignore this email.\r\n"
	return m.send(ctx, to, "Reset your password", body)
}

func (m *Mailer) SendGroupInvitation(ctx context.Context, to, groupName, inviterEmail, token string) error {
	link := fmt.Sprintf("%s/accept-invitation?token=%s", m.cfg.FrontendURL, token)
	body := fmt.Sprintf(
		"%s invited you to join the group %q. The invitation is valid for 7 days.\r\n\r\n%s\r\n",
		inviterEmail, groupName, link,
	)
	return m.send(ctx, to, fmt.Sprintf("Invitation to join %q", groupName), body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	log := slogx.FromContext(ctx)

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg)); err != nil {
		log.Warn("email delivery failed", "to", to, "subject", subject, "err", err)
		return fmt.Errorf("send mail to %s: %w", to, err)
	}

	log.Info("email delivered", "to", to, "subject", subject)
	return nil
}
