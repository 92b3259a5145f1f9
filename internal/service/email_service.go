package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

// EmailService отправляет транзакционные письма
type EmailService interface {
	SendWelcome(ctx context.Context, toEmail, username string) error
}

// NoopEmailService используется, когда Resend не настроен
type NoopEmailService struct{}

// SendWelcome только пишет в лог
func (NoopEmailService) SendWelcome(ctx context.Context, toEmail, username string) error {
	logrus.WithField("component", "EmailService").Debugf("[EmailService] noop welcome email to=%s", toEmail)
	return nil
}

// emailSender - часть клиента Resend, которой пользуется сервис
type emailSender interface {
	SendWithOptions(ctx context.Context, params *resend.SendEmailRequest, options *resend.SendEmailOptions) (*resend.SendEmailResponse, error)
}

// ResendEmailService отправляет письма через Resend REST API
type ResendEmailService struct {
	from   string
	sender emailSender
}

// NewResendEmailService создает сервис писем Resend
func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		sender: resend.NewClient(apiKey).Emails,
	}, nil
}

// SendWelcome отправляет приветственное письмо после регистрации.
// Ключ идемпотентности защищает от дублей при повторах.
func (s *ResendEmailService) SendWelcome(ctx context.Context, toEmail, username string) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Welcome to Pulse",
		Text:    fmt.Sprintf("Hi %s, your account is ready.", username),
		Html:    fmt.Sprintf("<p>Hi <strong>%s</strong>, your account is ready.</p>", html.EscapeString(username)),
	}
	options := &resend.SendEmailOptions{IdempotencyKey: "welcome:" + strings.ToLower(toEmail)}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.sender.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && (netErr.Timeout() || netErr.Temporary()) {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
