package services

import (
	"context"

	"gopkg.in/gomail.v2"

	"letsconnect/internal/config"
)

type EmailService interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type emailService struct {
	from   string
	dialer *gomail.Dialer
}

func NewEmailService(cfg config.Config) EmailService {
	return &emailService{
		from:   cfg.SMTPFrom,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
	}
}

func (e *emailService) SendEmail(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	// gomail has no context support; stop waiting when ctx is done.
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.dialer.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
