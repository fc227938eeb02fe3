package goMFA

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/ephemeral"
	"github.com/MrEthical07/goMFA/method"
	"go.uber.org/zap"
)

const amrPassword = "pwd"

// AuthenticateFirstFactor checks username and password.
//
// When the user has no primary method the login completes immediately and
// the result carries the final credential. Otherwise the primary method's
// code is dispatched and the result carries an ephemeral token and the
// method name; no credential is issued until AuthenticateSecondFactor
// succeeds.
//
// Unknown users and wrong passwords both yield ErrInvalidCredentials after
// the same Argon2 work. Inactive users yield ErrAccountDisabled.
func (e *Engine) AuthenticateFirstFactor(ctx context.Context, username, password string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	user, err := e.users.GetUserByIdentifier(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_, _ = e.passwords.Verify(password, e.dummyHash)
			e.metricInc(MetricFirstFactorFailure)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := e.passwords.Verify(password, user.PasswordHash)
	if err != nil {
		e.log.Debug("password verification error", zap.String("user_id", user.UserID), zap.Error(err))
	}
	if err != nil || !ok {
		e.metricInc(MetricFirstFactorFailure)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		e.metricInc(MetricFirstFactorFailure)
		return nil, ErrAccountDisabled
	}
	e.metricInc(MetricFirstFactorSuccess)

	primary, err := e.registry.GetPrimaryActive(ctx, user.UserID)
	if errors.Is(err, method.ErrNoPrimary) {
		credential, err := e.completeLogin(ctx, user, []string{amrPassword})
		if err != nil {
			return nil, err
		}
		return &LoginResult{Credential: credential}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		MFARequired: true,
		Method:      primary.Name,
	}

	if e.delivers(primary.Name) {
		outcome, err := e.dispatch(ctx, user, primary)
		switch {
		case errors.Is(err, ErrMissingSourceAttribute):
			// Backup codes and the other active methods still work.
			e.log.Warn("primary method has no destination", zap.String("user_id", user.UserID), zap.String("method", primary.Name))
			result.Dispatch = &DispatchOutcome{Success: false, Details: ErrorMessage(err)}
		case err != nil:
			return nil, err
		default:
			result.Dispatch = outcome
		}
	}

	result.EphemeralToken = e.tokens.Issue(userState(user))
	e.metricInc(MetricSecondFactorRequired)
	return result, nil
}

// AuthenticateSecondFactor completes a login started by
// AuthenticateFirstFactor.
//
// The code is tried against every active method of the user, primary
// first, then in registration order. For each method the backend check
// runs first and the method's backup codes second. A matched backup code is
// consumed. Any failure to match yields ErrInvalidCode, whichever check
// failed.
//
// A successful call updates the user's last-login marker, which invalidates
// the ephemeral token that was used.
func (e *Engine) AuthenticateSecondFactor(ctx context.Context, token, code string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeNotProvided
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricSecondFactorLatency, time.Since(start))
	}()

	user, err := e.userFromToken(ctx, token)
	if err != nil {
		return nil, err
	}

	methods, err := e.registry.ListActive(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	for _, m := range methods {
		amr, ok, err := e.tryMethod(ctx, user, m, code)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		credential, err := e.completeLogin(ctx, user, []string{amrPassword, "mfa", amr})
		if err != nil {
			return nil, err
		}
		e.metricInc(MetricSecondFactorSuccess)
		return &LoginResult{Credential: credential, Method: m.Name}, nil
	}

	e.metricInc(MetricSecondFactorFailure)
	return nil, ErrInvalidCode
}

// userFromToken resolves the ephemeral token to the current user record.
// Every rejection reason is reported as ErrInvalidToken.
func (e *Engine) userFromToken(ctx context.Context, token string) (UserRecord, error) {
	userID, ok := ephemeral.UserID(token)
	if !ok {
		e.metricInc(MetricEphemeralTokenRejected)
		return UserRecord{}, ErrInvalidToken
	}

	user, err := e.users.GetUserByID(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricEphemeralTokenRejected)
		return UserRecord{}, ErrInvalidToken
	}
	if err != nil {
		return UserRecord{}, err
	}

	if !e.tokens.Check(token, userState(user)) {
		e.metricInc(MetricEphemeralTokenRejected)
		return UserRecord{}, ErrInvalidToken
	}
	if !user.IsActive {
		return UserRecord{}, ErrAccountDisabled
	}
	return user, nil
}

// completeLogin records the login and issues the final credential.
func (e *Engine) completeLogin(ctx context.Context, user UserRecord, amr []string) (string, error) {
	at := e.now().UTC()
	if err := e.users.UpdateLastLogin(ctx, user.UserID, at); err != nil {
		return "", err
	}

	credential, err := e.credentials.Issue(user.UserID, amr)
	if err != nil {
		return "", err
	}
	return credential, nil
}

// delivers reports whether name transmits a code at login. Authenticator
// apps and hardware tokens produce their own codes.
func (e *Engine) delivers(name string) bool {
	s, ok := e.dispatcher.Settings(name)
	if !ok {
		return false
	}
	switch s.Handler {
	case backend.HandlerApp, backend.HandlerYubi:
		return false
	default:
		return true
	}
}
