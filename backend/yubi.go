package backend

import (
	"context"
	"crypto/subtle"

	"go.uber.org/zap"
)

const (
	// DeviceIDLength is the length of the public identifier that prefixes
	// every YubiKey OTP.
	DeviceIDLength = 12

	yubiDispatchDetails = "Generate code using YubiKey"
)

// YubicoVerifier asks the verification authority whether otp is valid.
type YubicoVerifier interface {
	Verify(ctx context.Context, otp string) (bool, error)
}

// yubiHandler binds a YubiKey on first confirmation and checks every later
// OTP against both the bound device id and the verification authority.
type yubiHandler struct {
	verifier YubicoVerifier
	log      *zap.Logger
}

func (h *yubiHandler) Dispatch(context.Context, Target) (Outcome, error) {
	return Outcome{Success: true, Details: yubiDispatchDetails}, nil
}

func (h *yubiHandler) CreateCode(context.Context, Target) (string, error) {
	return "", ErrCodeUnsupported
}

// ConfirmActivation binds the device that produced code. A code too short to
// carry a device id binds nothing.
func (h *yubiHandler) ConfirmActivation(_ context.Context, _ Target, code string) string {
	if len(code) <= DeviceIDLength {
		return ""
	}
	return code[:DeviceIDLength]
}

func (h *yubiHandler) ValidateConfirmationCode(ctx context.Context, t Target, code string) bool {
	if len(code) <= DeviceIDLength {
		return false
	}
	return h.verify(ctx, t, code)
}

func (h *yubiHandler) ValidateCode(ctx context.Context, t Target, code string) bool {
	if len(code) <= DeviceIDLength || len(t.Method.Secret) != DeviceIDLength {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(code[:DeviceIDLength]), []byte(t.Method.Secret)) != 1 {
		return false
	}
	return h.verify(ctx, t, code)
}

func (h *yubiHandler) verify(ctx context.Context, t Target, code string) bool {
	ok, err := h.verifier.Verify(ctx, code)
	if err != nil {
		h.log.Warn("yubikey verification failed",
			zap.String("user_id", t.User.ID),
			zap.Error(err),
		)
		return false
	}
	return ok
}
