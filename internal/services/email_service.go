package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	pkglogger "github.com/BradenHooton/mriscan/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"gopkg.in/gomail.v2"
)

// EmailService delivers password reset links.
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error
}

const resetEmailSubject = "Password Reset - Brain MRI Platform"

// resetLink builds the frontend URL carrying the raw reset token.
func resetLink(baseURL, token string) string {
	return fmt.Sprintf("%s/auth/reset?token=%s", strings.TrimRight(baseURL, "/"), url.QueryEscape(token))
}

func resetEmailBodies(link string, expiresAt time.Time) (htmlBody, textBody string) {
	expiry := expiresAt.UTC().Format("2006-01-02 15:04 MST")

	htmlBody = fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .button { display: inline-block; background-color: #0066cc; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { color: #666; font-size: 12px; margin-top: 20px; padding-top: 20px; border-top: 1px solid #eee; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Password Reset Request</h1>
        <p>You requested a password reset for your Brain MRI Platform account.</p>
        <p><a href="%s" class="button">Reset Password</a></p>
        <p>Or copy and paste this link in your browser:<br>
        <code>%s</code></p>
        <p>This link expires at %s.</p>
        <p>If you didn't request this, you can ignore this email. Your password will not change.</p>
        <div class="footer">
            <p>This is an automated message. Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>
`, link, link, expiry)

	textBody = fmt.Sprintf(`Password Reset Request

You requested a password reset for your Brain MRI Platform account. Open the link below to choose a new password:

%s

This link expires at %s.

If you didn't request this, you can ignore this email. Your password will not change.
`, link, expiry)

	return htmlBody, textBody
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	sesClient   *ses.Client
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

// NewAWSSESEmailService creates a new AWS SES email service
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, baseURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESEmailService{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}, nil
}

func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	htmlBody, textBody := resetEmailBodies(resetLink(s.baseURL, token), expiresAt)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(resetEmailSubject)},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}

	s.logger.Info("password reset email sent",
		pkglogger.EmailAttr(email),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}

// SMTPEmailService sends emails through an SMTP relay.
type SMTPEmailService struct {
	dialer      *gomail.Dialer
	fromAddress string
	baseURL     string
	logger      *slog.Logger
}

func NewSMTPEmailService(host string, port int, username, password, fromAddress, baseURL string, logger *slog.Logger) *SMTPEmailService {
	return &SMTPEmailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		fromAddress: fromAddress,
		baseURL:     baseURL,
		logger:      logger,
	}
}

func (s *SMTPEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	htmlBody, textBody := resetEmailBodies(resetLink(s.baseURL, token), expiresAt)

	m := gomail.NewMessage()
	m.SetHeader("From", s.fromAddress)
	m.SetHeader("To", email)
	m.SetHeader("Subject", resetEmailSubject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	// gomail has no context support; run the dial in a goroutine and honor ctx.
	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email via SMTP: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("smtp send aborted: %w", ctx.Err())
	}

	s.logger.Info("password reset email sent", pkglogger.EmailAttr(email))
	return nil
}

// LogEmailService writes reset links to the log instead of sending mail. Development only.
type LogEmailService struct {
	baseURL string
	logger  *slog.Logger
}

func NewLogEmailService(baseURL string, logger *slog.Logger) *LogEmailService {
	return &LogEmailService{baseURL: baseURL, logger: logger}
}

func (s *LogEmailService) SendPasswordResetEmail(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.Info("password reset email (not sent)",
		pkglogger.EmailAttr(email),
		slog.String("reset_link", resetLink(s.baseURL, token)),
		slog.Time("expires_at", expiresAt))
	return nil
}
