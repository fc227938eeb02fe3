package goMFA

import (
	"context"

	"go.uber.org/zap"
)

// RegenerateBackupCodes replaces the backup codes of an active method and
// returns the new ones in plain text.
//
// It fails with ErrBackupCodesRegenerationDisabled when regeneration is
// switched off. When ConfirmBackupRegenWithCode is set, code must be valid
// for the method; a backup code of the method is accepted and is consumed
// by the check before the whole set is replaced.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, name, code string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !e.config.AllowBackupCodesRegeneration {
		return nil, ErrBackupCodesRegenerationDisabled
	}

	m, err := e.registry.Get(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if !m.IsActive {
		return nil, ErrMethodNotActive
	}

	if e.config.ConfirmBackupRegenWithCode {
		user, err := e.loadUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := e.verifyMethodCode(ctx, user, m, code); err != nil {
			return nil, err
		}
	}

	plain, stored, err := e.vault.Generate()
	if err != nil {
		return nil, err
	}
	if err := e.registry.ReplaceBackupCodes(ctx, userID, name, stored); err != nil {
		return nil, err
	}

	e.metricInc(MetricBackupCodeRegenerated)
	e.log.Info("backup codes regenerated", zap.String("user_id", userID), zap.String("method", name))
	return plain, nil
}
