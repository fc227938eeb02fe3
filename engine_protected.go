package goMFA

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/method"
	"go.uber.org/zap"
)

const amrBackupCode = "backup"

// tryMethod checks code against one active method: the backend first, then
// the method's backup codes. It returns the authentication method reference
// of whatever matched. A mismatch is (_, false, nil).
func (e *Engine) tryMethod(ctx context.Context, user UserRecord, m *method.Method, code string) (string, bool, error) {
	h, err := e.handlerFor(m.Name)
	if err != nil {
		// The method was removed from the configuration after enrollment.
		// Its backup codes remain usable.
		e.log.Warn("stored mfa method is not configured", zap.String("user_id", user.UserID), zap.String("method", m.Name))
	} else if h.ValidateCode(ctx, e.target(user, m), code) {
		return "otp:" + m.Name, true, nil
	}

	ok, err := e.consumeBackupCode(ctx, user.UserID, m, code)
	if err != nil || !ok {
		return "", false, err
	}
	return amrBackupCode, true, nil
}

// consumeBackupCode matches code against the stored entries of m and
// removes the matched entry. It reports false when nothing matched or when a
// concurrent request consumed the same entry first.
func (e *Engine) consumeBackupCode(ctx context.Context, userID string, m *method.Method, code string) (bool, error) {
	entry, ok := e.vault.Match(code, m.BackupCodes)
	if !ok {
		return false, nil
	}

	consumed, err := e.registry.ConsumeBackupCode(ctx, userID, m.Name, entry)
	if err != nil {
		return false, err
	}
	if consumed {
		e.metricInc(MetricBackupCodeUsed)
	}
	return consumed, nil
}

// verifyMethodCode gates a protected action on a valid code for m, taken
// either from its backend or from its backup codes.
func (e *Engine) verifyMethodCode(ctx context.Context, user UserRecord, m *method.Method, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrCodeNotProvided
	}

	_, ok, err := e.tryMethod(ctx, user, m, code)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricProtectedActionRejected)
		return ErrInvalidCode
	}
	return nil
}

// dispatch sends a code for m, or returns the provisioning payload for
// methods that send nothing. Delivery failures are an outcome, not an error.
func (e *Engine) dispatch(ctx context.Context, user UserRecord, m *method.Method) (*DispatchOutcome, error) {
	h, err := e.handlerFor(m.Name)
	if err != nil {
		return nil, err
	}

	outcome, err := h.Dispatch(ctx, e.target(user, m))
	if err != nil {
		if !errors.Is(err, backend.ErrMissingSourceAttribute) {
			e.log.Error("mfa dispatch failed", zap.String("user_id", user.UserID), zap.String("method", m.Name), zap.Error(err))
		}
		return nil, err
	}

	if outcome.Success {
		e.metricInc(MetricCodeDispatched)
	} else {
		e.metricInc(MetricCodeDeliveryFailed)
	}
	return &outcome, nil
}
