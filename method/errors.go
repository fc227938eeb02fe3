package method

import "errors"

var (
	ErrNotFound          = errors.New("mfa method does not exist")
	ErrAlreadyActive     = errors.New("mfa method already active")
	ErrNotEnabled        = errors.New("mfa method not enabled")
	ErrDeactivatePrimary = errors.New("deactivation of primary mfa method is not allowed")
	ErrPrimaryInactive   = errors.New("new primary mfa method is not active")
	ErrSamePrimary       = errors.New("mfa method is already primary")
	ErrNoPrimary         = errors.New("no primary mfa method")
	ErrPrimaryInvariant  = errors.New("mfa method primary invariant violated")
	ErrConflict          = errors.New("mfa method update conflict")
	ErrCorrupt           = errors.New("corrupt mfa method record")
)
