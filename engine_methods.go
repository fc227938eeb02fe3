package goMFA

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goMFA/internal/codes"
	"github.com/MrEthical07/goMFA/method"
	"go.uber.org/zap"
)

// RegisterMethod starts enrollment of name for userID.
//
// A pending method is created with a fresh secret, or the existing pending
// or inactive one is reused, and its activation code is dispatched. For
// authenticator apps the outcome carries the provisioning URI.
//
// attrs may only carry the method's own source attribute, for example the
// phone number of an SMS method. It is stored through
// UserProvider.UpdateAttributes once the registry has accepted the request
// and before the destination is resolved. Any other key, or a source
// attribute shared with one of the user's active methods, fails with
// ErrAttributeNotAllowed and leaves the user record unchanged.
func (e *Engine) RegisterMethod(ctx context.Context, userID, name string, attrs map[string]string) (*DispatchOutcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.handlerFor(name); err != nil {
		return nil, err
	}
	if err := e.checkEnrollmentAttrs(name, attrs); err != nil {
		return nil, err
	}
	if _, err := e.loadUser(ctx, userID); err != nil {
		return nil, err
	}

	secret, err := codes.NewSecret(e.config.SecretLength)
	if err != nil {
		return nil, err
	}
	m, created, err := e.registry.CreateOrGetPending(ctx, userID, name, secret)
	if err != nil {
		return nil, err
	}
	if created {
		e.metricInc(MetricMethodRegistered)
	}

	if len(attrs) > 0 {
		if err := e.checkSourceUnshared(ctx, userID, name); err != nil {
			return nil, err
		}
		if err := e.users.UpdateAttributes(ctx, userID, attrs); err != nil {
			return nil, err
		}
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.dispatch(ctx, user, m)
}

// checkEnrollmentAttrs accepts only the source attribute of method name.
func (e *Engine) checkEnrollmentAttrs(name string, attrs map[string]string) error {
	source := e.config.Methods[name].SourceAttribute
	for key := range attrs {
		if source == "" || key != source {
			return fmt.Errorf("%w: %q for method %q", ErrAttributeNotAllowed, key, name)
		}
	}
	return nil
}

// checkSourceUnshared refuses to rewrite a destination that an active method
// of the user already delivers to.
func (e *Engine) checkSourceUnshared(ctx context.Context, userID, name string) error {
	source := e.config.Methods[name].SourceAttribute
	active, err := e.registry.ListActive(ctx, userID)
	if err != nil {
		return err
	}
	for _, m := range active {
		if m.Name != name && e.config.Methods[m.Name].SourceAttribute == source {
			return fmt.Errorf("%w: %q is the destination of active method %q", ErrAttributeNotAllowed, source, m.Name)
		}
	}
	return nil
}

// ConfirmMethod activates a pending method with a code from its backend and
// returns the new backup codes in plain text. They are not retrievable
// later.
//
// The method becomes primary when the user has no other active method.
func (e *Engine) ConfirmMethod(ctx context.Context, userID, name, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeNotProvided
	}

	h, err := e.handlerFor(name)
	if err != nil {
		return nil, err
	}
	m, err := e.registry.Get(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if m.IsActive {
		return nil, ErrMethodAlreadyActive
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	t := e.target(user, m)
	if !h.ValidateConfirmationCode(ctx, t, code) {
		return nil, ErrInvalidCode
	}
	secret := h.ConfirmActivation(ctx, t, code)

	plain, stored, err := e.vault.Generate()
	if err != nil {
		return nil, err
	}
	if _, err := e.registry.Activate(ctx, userID, name, stored, secret); err != nil {
		return nil, err
	}

	e.metricInc(MetricMethodActivated)
	e.log.Info("mfa method activated", zap.String("user_id", userID), zap.String("method", name))
	return plain, nil
}

// DeactivateMethod turns off an active method.
//
// The primary method cannot be deactivated: move primacy with
// SetPrimaryMethod first. When ConfirmDisableWithCode is set, code must be
// valid for the method being deactivated, from its backend or its backup
// codes.
func (e *Engine) DeactivateMethod(ctx context.Context, userID, name, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	m, err := e.registry.Get(ctx, userID, name)
	if err != nil {
		return err
	}
	switch {
	case !m.IsActive:
		return ErrMethodNotEnabled
	case m.IsPrimary:
		return ErrDeactivatePrimary
	}

	if e.config.ConfirmDisableWithCode {
		user, err := e.loadUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := e.verifyMethodCode(ctx, user, m, code); err != nil {
			return err
		}
	}

	if err := e.registry.Deactivate(ctx, userID, name); err != nil {
		return err
	}
	e.metricInc(MetricMethodDeactivated)
	e.log.Info("mfa method deactivated", zap.String("user_id", userID), zap.String("method", name))
	return nil
}

// SetPrimaryMethod moves primacy to name. code must be valid for the
// current primary method.
func (e *Engine) SetPrimaryMethod(ctx context.Context, userID, name, code string) error {
	if err := e.ready(); err != nil {
		return err
	}

	primary, err := e.registry.GetPrimaryActive(ctx, userID)
	if errors.Is(err, method.ErrNoPrimary) {
		return ErrMFANotEnabled
	}
	if err != nil {
		return err
	}
	if primary.Name == name {
		return ErrNewPrimarySameAsOld
	}

	target, err := e.registry.Get(ctx, userID, name)
	if err != nil {
		return err
	}
	if !target.IsActive {
		return ErrPrimaryMethodInactive
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := e.verifyMethodCode(ctx, user, primary, code); err != nil {
		return err
	}

	if err := e.registry.SetPrimary(ctx, userID, name); err != nil {
		return err
	}
	e.metricInc(MetricPrimaryChanged)
	e.log.Info("primary mfa method changed",
		zap.String("user_id", userID),
		zap.String("from", primary.Name),
		zap.String("to", name),
	)
	return nil
}

// ListActiveMethods returns the user's active methods, primary first.
func (e *Engine) ListActiveMethods(ctx context.Context, userID string) ([]MethodInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	methods, err := e.registry.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MethodInfo, len(methods))
	for i, m := range methods {
		out[i] = MethodInfo{Name: m.Name, IsPrimary: m.IsPrimary}
	}
	return out, nil
}

// RequestMethodCode dispatches a fresh code for an active method so the user
// can confirm a protected action. An empty name selects the primary method.
func (e *Engine) RequestMethodCode(ctx context.Context, userID, name string) (*DispatchOutcome, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	var m *method.Method
	if name == "" {
		primary, err := e.registry.GetPrimaryActive(ctx, userID)
		if errors.Is(err, method.ErrNoPrimary) {
			return nil, ErrMFANotEnabled
		}
		if err != nil {
			return nil, err
		}
		m = primary
	} else {
		got, err := e.registry.Get(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if !got.IsActive {
			return nil, ErrMethodNotActive
		}
		m = got
	}

	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.dispatch(ctx, user, m)
}
