package backend

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"go.uber.org/zap"
)

const (
	emailSentDetails    = "Email message with MFA code has been sent."
	smsSentDetails      = "SMS message with MFA code has been sent."
	deliveryFailDetails = "MFA code could not be delivered."

	// SMSBodyPrefix precedes the code in SMS messages.
	SMSBodyPrefix = "Your verification code is: "

	DefaultEmailSubject = "Your verification code"
	DefaultEmailBody    = "Your verification code is: {{.Code}}"
)

// Mailer sends one email.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender sends one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// messageHandler serves every method that transmits a code to an address
// taken from the user record.
type messageHandler struct {
	codes   *codeScheme
	source  SourceFunc
	send    func(ctx context.Context, to, code string) error
	details string
	log     *zap.Logger
}

func newEmailHandler(s Settings, c *codeScheme, mailer Mailer, log *zap.Logger) (*messageHandler, error) {
	subject := s.Email.Subject
	if subject == "" {
		subject = DefaultEmailSubject
	}
	text := s.Email.BodyTemplate
	if text == "" {
		text = DefaultEmailBody
	}
	tmpl, err := template.New("email").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("email body template: %w", err)
	}

	return &messageHandler{
		codes:  c,
		source: s.source(),
		send: func(ctx context.Context, to, code string) error {
			var body bytes.Buffer
			if err := tmpl.Execute(&body, struct{ Code string }{code}); err != nil {
				return err
			}
			return mailer.SendEmail(ctx, to, subject, body.String())
		},
		details: emailSentDetails,
		log:     log,
	}, nil
}

func newSMSHandler(s Settings, c *codeScheme, sender SMSSender, log *zap.Logger) *messageHandler {
	return &messageHandler{
		codes:  c,
		source: s.source(),
		send: func(ctx context.Context, to, code string) error {
			return sender.SendSMS(ctx, to, SMSBodyPrefix+code)
		},
		details: smsSentDetails,
		log:     log,
	}
}

func (h *messageHandler) Dispatch(ctx context.Context, t Target) (Outcome, error) {
	to, err := destination(h.source, t)
	if err != nil {
		return Outcome{}, err
	}

	code, err := h.codes.create(ctx, t)
	if err != nil {
		return Outcome{}, err
	}

	if err := h.send(ctx, to, code); err != nil {
		h.log.Warn("mfa code delivery failed",
			zap.String("method", t.Method.Name),
			zap.String("user_id", t.User.ID),
			zap.Error(err),
		)
		return Outcome{Success: false, Details: deliveryFailDetails}, nil
	}

	return Outcome{Success: true, Details: h.details}, nil
}

func (h *messageHandler) CreateCode(ctx context.Context, t Target) (string, error) {
	return h.codes.create(ctx, t)
}

func (h *messageHandler) ConfirmActivation(context.Context, Target, string) string {
	return ""
}

func (h *messageHandler) ValidateCode(ctx context.Context, t Target, code string) bool {
	return h.codes.validate(ctx, t, code)
}

func (h *messageHandler) ValidateConfirmationCode(ctx context.Context, t Target, code string) bool {
	return h.codes.validate(ctx, t, code)
}
