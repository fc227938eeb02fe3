package goMFA

import (
	"errors"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/method"
)

var (
	// ErrInvalidCredentials is returned when the username or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned for users whose record is not active.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUserNotFound is returned by a UserProvider for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidToken covers malformed, expired and stale ephemeral tokens.
	ErrInvalidToken = errors.New("invalid or expired ephemeral token")
	// ErrCodeNotProvided is returned when a code is required but empty.
	ErrCodeNotProvided = errors.New("code not provided")
	// ErrInvalidCode covers every failed code check, whichever method or
	// backup code was tried.
	ErrInvalidCode = errors.New("invalid or expired code")
	// ErrMFANotEnabled is returned when the user has no primary method.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrMethodNotActive is returned when an operation needs an active method.
	ErrMethodNotActive = errors.New("mfa method not active")
	// ErrBackupCodesRegenerationDisabled is returned when regeneration is
	// switched off in the configuration.
	ErrBackupCodesRegenerationDisabled = errors.New("backup codes regeneration disabled")
	// ErrRestrictedCharInBackupCode is returned by Config.Validate when the
	// backup code alphabet contains the persistence delimiter.
	ErrRestrictedCharInBackupCode = errors.New("backup code alphabet contains a restricted character")
	// ErrInvalidCredential is returned by ParseCredential.
	ErrInvalidCredential = errors.New("invalid final credential")
	// ErrAttributeNotAllowed is returned by RegisterMethod for enrollment
	// attributes other than the method's own unshared source attribute.
	ErrAttributeNotAllowed = errors.New("enrollment attribute not allowed")
	// ErrEngineNotReady is returned by methods on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Sentinels owned by the method and backend packages, re-exported so callers
// can match them with errors.Is without importing those packages.
var (
	ErrMethodNotConfigured    = backend.ErrUnknownMethod
	ErrMethodHandlerMissing   = backend.ErrHandlerMissing
	ErrMissingSourceAttribute = backend.ErrMissingSourceAttribute
	ErrMethodAlreadyActive    = method.ErrAlreadyActive
	ErrMethodNotEnabled       = method.ErrNotEnabled
	ErrMethodDoesNotExist     = method.ErrNotFound
	ErrDeactivatePrimary      = method.ErrDeactivatePrimary
	ErrPrimaryMethodInactive  = method.ErrPrimaryInactive
	ErrNewPrimarySameAsOld    = method.ErrSamePrimary
	ErrStoreConflict          = method.ErrConflict
)

type apiError struct {
	err     error
	code    string
	message string
}

// apiErrors maps sentinels to the stable code and message shown at the API
// boundary. Order matters only for wrapped chains that match several.
var apiErrors = []apiError{
	{ErrInvalidCredentials, "invalid_credentials", "Unable to login with provided credentials."},
	{ErrAccountDisabled, "account_disabled", "User account is disabled."},
	{ErrUserNotFound, "invalid_credentials", "Unable to login with provided credentials."},
	{ErrInvalidToken, "invalid_token", "Invalid or expired token."},
	{ErrCodeNotProvided, "otp_code_missing", "OTP code not provided."},
	{ErrInvalidCode, "code_invalid_or_expired", "Code invalid or expired."},
	{ErrMFANotEnabled, "not_enabled", "2FA is not enabled."},
	{ErrMethodNotActive, "method_not_active", "Requested MFA method is not active."},
	{ErrBackupCodesRegenerationDisabled, "backup_codes_regeneration_disabled", "Backup codes regeneration is disabled."},
	{ErrInvalidCredential, "invalid_credential", "Invalid or expired credential."},
	{ErrMethodNotConfigured, "mfa_method_not_allowed", "Requested MFA method is not allowed."},
	{ErrMissingSourceAttribute, "missing_source_attribute", "Required field not provided."},
	{ErrAttributeNotAllowed, "attribute_not_allowed", "Only the source field of the requested MFA method can be set."},
	{ErrMethodAlreadyActive, "method_already_active", "MFA method already active."},
	{ErrMethodNotEnabled, "not_enabled", "MFA method not enabled."},
	{ErrMethodDoesNotExist, "mfa_method_not_exists", "Requested MFA method does not exist."},
	{ErrDeactivatePrimary, "deactivation_of_primary", "Deactivation of MFA method that is set as primary is not allowed. Set another MFA method as primary first."},
	{ErrPrimaryMethodInactive, "new_primary_method_inactive", "MFA Method selected as new primary method is not active."},
	{ErrNewPrimarySameAsOld, "new_primary_same_as_old", "MFA Method to be set as primary is already the primary method."},
	{ErrStoreConflict, "conflict", "Request conflicted with a concurrent change. Try again."},
}

// ErrorCode returns the stable machine-readable code for err, or
// "internal_error" when err is not one of the engine's sentinels.
func ErrorCode(err error) string {
	if e, ok := lookupAPIError(err); ok {
		return e.code
	}
	return "internal_error"
}

// ErrorMessage returns the user-facing message for err. It never includes
// details from wrapped errors.
func ErrorMessage(err error) string {
	if e, ok := lookupAPIError(err); ok {
		return e.message
	}
	return "Internal error."
}

func lookupAPIError(err error) (apiError, bool) {
	if err == nil {
		return apiError{}, false
	}
	for _, e := range apiErrors {
		if errors.Is(err, e.err) {
			return e, true
		}
	}
	return apiError{}, false
}
