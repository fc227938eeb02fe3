package goMFA

import (
	"context"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/jwt"
)

// UserProvider is the interface callers implement to connect the engine to
// their user database.
//
// GetUserByIdentifier and GetUserByID return [ErrUserNotFound] for unknown
// users. UpdateLastLogin must persist a value that is returned unchanged by
// later lookups: it is part of the ephemeral token binding.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdateAttributes(ctx context.Context, userID string, attrs map[string]string) error
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// UserRecord is the account record returned by [UserProvider].
type UserRecord struct {
	UserID       string
	Username     string
	PasswordHash string
	IsActive     bool
	LastLogin    time.Time

	Email       string
	PhoneNumber string
	// Attributes carries further delivery attributes keyed by path, for
	// example "profile.phone".
	Attributes map[string]string
}

func (u UserRecord) backendUser() backend.User {
	return backend.User{
		ID:          u.UserID,
		Username:    u.Username,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Attributes:  u.Attributes,
	}
}

// LoginResult is returned by [Engine.AuthenticateFirstFactor] and
// [Engine.AuthenticateSecondFactor]. Exactly one of Credential and
// EphemeralToken is set.
type LoginResult struct {
	Credential string

	MFARequired    bool
	EphemeralToken string
	Method         string
	// Dispatch is the outcome of sending the primary method's code.
	Dispatch *DispatchOutcome
}

// MethodInfo describes one active method of a user.
type MethodInfo struct {
	Name      string
	IsPrimary bool
}

// MethodDescriptor describes one configured method.
type MethodDescriptor struct {
	Name        string
	VerboseName string
	Handler     string
}

// MFASettings is the public part of the configuration, returned by
// [Engine.MFAConfig].
type MFASettings struct {
	Methods                      []MethodDescriptor
	ConfirmDisableWithCode       bool
	ConfirmBackupRegenWithCode   bool
	AllowBackupCodesRegeneration bool
}

// DispatchOutcome reports whether a code was delivered. Details is safe to
// show to the user.
type DispatchOutcome = backend.Outcome

// MethodConfig is the configuration block of one method.
type MethodConfig = backend.Settings

// SourceFunc resolves a delivery destination from a user record.
type SourceFunc = backend.SourceFunc

// Mailer, SMSSender and YubicoVerifier are the transports handlers use.
// Implementations given to the [Builder] replace the built-in clients.
type (
	Mailer         = backend.Mailer
	SMSSender      = backend.SMSSender
	YubicoVerifier = backend.YubicoVerifier
)

// CredentialClaims is the verified payload of a final credential.
type CredentialClaims = jwt.CredentialClaims

// AttributeSource returns the [SourceFunc] for an attribute path.
func AttributeSource(path string) SourceFunc {
	return backend.AttributeSource(path)
}
