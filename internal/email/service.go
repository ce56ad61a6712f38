package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/campus-events/server/internal/config"
	"github.com/campus-events/server/internal/metrics"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

const templateRegistrationConfirmation = "registration_confirmation"

// Service renders and sends transactional email. When disabled it only logs.
type Service struct {
	config       config.EmailConfig
	resendClient *resend.Client
	templates    *template.Template
	logger       zerolog.Logger
	now          func() time.Time
}

// RegistrationConfirmation is sent after a user registers for an event.
type RegistrationConfirmation struct {
	To         string
	Name       string
	EventTitle string
	Date       string
	Time       string
	Location   string
}

type confirmationData struct {
	RegistrationConfirmation
	CurrentYear int
}

func NewService(cfg config.EmailConfig, logger zerolog.Logger) (*Service, error) {
	if cfg.Enabled {
		if err := validateEmailAddress(cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender email in config: %w", err)
		}
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}

	s := &Service{
		config:    cfg,
		templates: templates,
		logger:    logger.With().Str("component", "email").Logger(),
		now:       time.Now,
	}
	if cfg.Enabled && cfg.ResendAPIKey != "" {
		s.resendClient = resend.NewClient(cfg.ResendAPIKey)
	}
	return s, nil
}

// WithClient replaces the Resend client, mainly to point it at a test server.
func (s *Service) WithClient(client *resend.Client) *Service {
	s.resendClient = client
	return s
}

// SendRegistrationConfirmation emails the attendee the event details.
func (s *Service) SendRegistrationConfirmation(ctx context.Context, msg RegistrationConfirmation) error {
	if err := validateEmailAddress(msg.To); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, "invalid").Inc()
		return fmt.Errorf("invalid recipient email: %w", err)
	}

	if !s.config.Enabled {
		metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, "skipped").Inc()
		s.logger.Info().
			Str("to", msg.To).
			Str("event", msg.EventTitle).
			Msg("email service disabled, skipping registration confirmation")
		return nil
	}

	body, err := s.render(templateRegistrationConfirmation+".html", confirmationData{
		RegistrationConfirmation: msg,
		CurrentYear:              s.now().Year(),
	})
	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, "failed").Inc()
		return err
	}

	subject := "You're registered: " + msg.EventTitle
	if err := s.sendViaResend(ctx, msg.To, subject, body); err != nil {
		metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, "failed").Inc()
		return fmt.Errorf("send registration confirmation: %w", err)
	}
	metrics.EmailsSentTotal.WithLabelValues(templateRegistrationConfirmation, "sent").Inc()
	return nil
}

// validateEmailAddress rejects malformed addresses and header injection.
func validateEmailAddress(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if strings.ContainsAny(addr.Address, "\r\n") {
		return fmt.Errorf("invalid email address: contains newline characters")
	}
	return nil
}

func (s *Service) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return buf.String(), nil
}
