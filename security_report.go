package goMFA

import (
	"sort"
	"time"
)

// SecurityReport summarizes the security posture of the active
// configuration. It contains no secrets.
type SecurityReport struct {
	SigningAlgorithm  string
	CredentialTTL     time.Duration
	EphemeralTokenTTL time.Duration
	Argon2            PasswordConfigReport

	HashedBackupCodes          bool
	BackupCodeQuantity         int
	BackupCodeLength           int
	BackupCodeRegeneration     bool
	ConfirmDisableWithCode     bool
	ConfirmBackupRegenWithCode bool
	Methods                    []MethodReport
}

// PasswordConfigReport is the Argon2id cost used for passwords and hashed
// backup codes.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// MethodReport describes the code scheme of one configured method. Scheme
// is empty for hardware tokens.
type MethodReport struct {
	Name           string
	Handler        string
	Scheme         string
	Interval       time.Duration
	ValidityPeriod time.Duration
}

// SecurityReport returns the posture summary.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	methods := make([]MethodReport, 0, len(e.config.Methods))
	for name, m := range e.config.Methods {
		methods = append(methods, MethodReport{
			Name:           name,
			Handler:        m.Handler,
			Scheme:         string(m.Scheme),
			Interval:       m.Interval,
			ValidityPeriod: m.ValidityPeriod,
		})
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Name < methods[j].Name })

	return SecurityReport{
		SigningAlgorithm:  e.config.Credential.SigningMethod,
		CredentialTTL:     e.config.Credential.TTL,
		EphemeralTokenTTL: e.config.EphemeralToken.TTL,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		HashedBackupCodes:          e.config.BackupCodes.Hashed,
		BackupCodeQuantity:         e.config.BackupCodes.Quantity,
		BackupCodeLength:           e.config.BackupCodes.Length,
		BackupCodeRegeneration:     e.config.AllowBackupCodesRegeneration,
		ConfirmDisableWithCode:     e.config.ConfirmDisableWithCode,
		ConfirmBackupRegenWithCode: e.config.ConfirmBackupRegenWithCode,
		Methods:                    methods,
	}
}
