package backend

import (
	"context"
	"fmt"
)

// appHandler serves authenticator apps. Nothing is transmitted; Dispatch
// returns the otpauth:// URI to render as a QR code.
type appHandler struct {
	codes  *codeScheme
	issuer string
}

func (h *appHandler) Dispatch(_ context.Context, t Target) (Outcome, error) {
	account := t.User.Email
	if account == "" {
		account = t.User.Username
	}
	if account == "" {
		account = t.User.ID
	}

	uri, err := h.codes.engine.ProvisioningURI(t.Method.Secret, account, h.issuer, h.codes.interval)
	if err != nil {
		return Outcome{}, fmt.Errorf("provisioning uri: %w", err)
	}
	return Outcome{Success: true, Details: uri}, nil
}

func (h *appHandler) CreateCode(ctx context.Context, t Target) (string, error) {
	return h.codes.create(ctx, t)
}

func (h *appHandler) ConfirmActivation(context.Context, Target, string) string {
	return ""
}

func (h *appHandler) ValidateCode(ctx context.Context, t Target, code string) bool {
	return h.codes.validate(ctx, t, code)
}

func (h *appHandler) ValidateConfirmationCode(ctx context.Context, t Target, code string) bool {
	return h.codes.validate(ctx, t, code)
}
