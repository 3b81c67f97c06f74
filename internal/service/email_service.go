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
	"go.uber.org/zap"
)

// CompletionReceipt - данные письма-подтверждения о завершении опроса
type CompletionReceipt struct {
	ResponseID      int64
	CompetitionName string
	Rating          *int
	MaxRating       int
	CompletedAt     time.Time
	ResultURL       string
}

// EmailService sends transactional emails.
type EmailService interface {
	SendCompletionReceipt(ctx context.Context, toEmail string, receipt CompletionReceipt) error
}

// NoopEmailService is used when receipts are disabled.
type NoopEmailService struct {
	logger *zap.Logger
}

func NewNoopEmailService(logger *zap.Logger) *NoopEmailService {
	return &NoopEmailService{logger: logger}
}

func (s *NoopEmailService) SendCompletionReceipt(ctx context.Context, toEmail string, receipt CompletionReceipt) error {
	s.logger.Debug("noop completion receipt", zap.Int64("response_id", receipt.ResponseID))
	return nil
}

// ResendEmailService sends emails via Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

func NewResendEmailService(apiKey, from string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if from == "" {
		return nil, fmt.Errorf("email from is required")
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

func (s *ResendEmailService) SendCompletionReceipt(ctx context.Context, toEmail string, receipt CompletionReceipt) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}

	text, htmlBody := renderCompletionReceipt(receipt)
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: "Thank you for your feedback",
		Text:    text,
		Html:    htmlBody,
	}

	// Один ответ - одно письмо, даже при повторных попытках
	options := &resend.SendEmailOptions{
		IdempotencyKey: fmt.Sprintf("survey-response-completed-%d", receipt.ResponseID),
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
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

func renderCompletionReceipt(r CompletionReceipt) (string, string) {
	competition := r.CompetitionName
	if competition == "" {
		competition = "the competition"
	}
	maxRating := r.MaxRating
	if maxRating <= 0 {
		maxRating = 5
	}
	rating := "not rated"
	if r.Rating != nil {
		rating = fmt.Sprintf("%d/%d", *r.Rating, maxRating)
	}
	completed := r.CompletedAt.UTC().Format(time.RFC1123)

	text := fmt.Sprintf("Thank you for completing the survey for %s.\nYour rating: %s\nSubmitted: %s\n", competition, rating, completed)
	// Название соревнования и ссылка приходят из БД и конфига, в HTML только экранированными
	htmlBody := fmt.Sprintf("<p>Thank you for completing the survey for <strong>%s</strong>.</p><p>Your rating: %s<br>Submitted: %s</p>",
		html.EscapeString(competition), rating, completed)
	if r.ResultURL != "" {
		text += r.ResultURL + "\n"
		htmlBody += fmt.Sprintf(`<p><a href="%s">View your response</a></p>`, html.EscapeString(r.ResultURL))
	}
	return text, htmlBody
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
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
