package goMFA

import (
	"errors"
	"fmt"
	"testing"

	"github.com/MrEthical07/goMFA/method"
)

func TestErrorCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		code string
		msg  string
	}{
		{ErrInvalidCredentials, "invalid_credentials", "Unable to login with provided credentials."},
		{ErrUserNotFound, "invalid_credentials", "Unable to login with provided credentials."},
		{ErrAccountDisabled, "account_disabled", "User account is disabled."},
		{ErrInvalidToken, "invalid_token", "Invalid or expired token."},
		{ErrCodeNotProvided, "otp_code_missing", "OTP code not provided."},
		{ErrInvalidCode, "code_invalid_or_expired", "Code invalid or expired."},
		{ErrMFANotEnabled, "not_enabled", "2FA is not enabled."},
		{ErrMethodNotEnabled, "not_enabled", "MFA method not enabled."},
		{ErrMethodAlreadyActive, "method_already_active", "MFA method already active."},
		{ErrMethodDoesNotExist, "mfa_method_not_exists", "Requested MFA method does not exist."},
		{ErrNewPrimarySameAsOld, "new_primary_same_as_old", "MFA Method to be set as primary is already the primary method."},
		{ErrPrimaryMethodInactive, "new_primary_method_inactive", "MFA Method selected as new primary method is not active."},
		{ErrBackupCodesRegenerationDisabled, "backup_codes_regeneration_disabled", "Backup codes regeneration is disabled."},
		{ErrAttributeNotAllowed, "attribute_not_allowed", "Only the source field of the requested MFA method can be set."},
	}

	for _, tc := range cases {
		if got := ErrorCode(tc.err); got != tc.code {
			t.Fatalf("%v: expected code %q, got %q", tc.err, tc.code, got)
		}
		if got := ErrorMessage(tc.err); got != tc.msg {
			t.Fatalf("%v: expected message %q, got %q", tc.err, tc.msg, got)
		}
	}
}

func TestErrorCodeWrappedAndUnknown(t *testing.T) {
	wrapped := fmt.Errorf("activate: %w", method.ErrAlreadyActive)
	if got := ErrorCode(wrapped); got != "method_already_active" {
		t.Fatalf("expected wrapped sentinel to map, got %q", got)
	}
	if got := ErrorMessage(wrapped); got != "MFA method already active." {
		t.Fatalf("wrapped details must not leak, got %q", got)
	}

	if got := ErrorCode(errors.New("boom")); got != "internal_error" {
		t.Fatalf("expected internal_error, got %q", got)
	}
	if got := ErrorMessage(errors.New("secret detail")); got != "Internal error." {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ErrorCode(nil); got != "internal_error" {
		t.Fatalf("expected internal_error for nil, got %q", got)
	}
}

func TestReexportedSentinelsMatchStoreErrors(t *testing.T) {
	if !errors.Is(method.ErrDeactivatePrimary, ErrDeactivatePrimary) {
		t.Fatal("ErrDeactivatePrimary must be the store sentinel")
	}
	if !errors.Is(method.ErrNotFound, ErrMethodDoesNotExist) {
		t.Fatal("ErrMethodDoesNotExist must be the store sentinel")
	}
}
