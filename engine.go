package goMFA

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/backupcodes"
	"github.com/MrEthical07/goMFA/internal/ephemeral"
	"github.com/MrEthical07/goMFA/jwt"
	"github.com/MrEthical07/goMFA/method"
	"github.com/MrEthical07/goMFA/password"
	"go.uber.org/zap"
)

// Engine is the second factor orchestrator. It ties the method registry,
// the backend dispatcher, the backup code vault and the ephemeral token
// bridge together.
//
// Engine is immutable after Build and safe for concurrent use. All
// per-user state lives in the method store.
type Engine struct {
	config      Config
	registry    *method.Registry
	dispatcher  *backend.Dispatcher
	vault       *backupcodes.Vault
	tokens      *ephemeral.Manager
	credentials *jwt.Manager
	passwords   *password.Argon2
	users       UserProvider
	log         *zap.Logger
	metrics     *Metrics
	now         func() time.Time
	dummyHash   string
}

func (e *Engine) ready() error {
	if e == nil || e.registry == nil || e.dispatcher == nil || e.users == nil {
		return ErrEngineNotReady
	}
	return nil
}

// MetricsSnapshot returns a copy of the in-process counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// ParseCredential verifies a final credential issued by this engine and
// returns its claims.
func (e *Engine) ParseCredential(token string) (*CredentialClaims, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.credentials.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return claims, nil
}

// AvailableMethods lists the configured methods sorted by name.
func (e *Engine) AvailableMethods() []MethodDescriptor {
	if e == nil {
		return nil
	}
	names := e.config.methodNames()
	out := make([]MethodDescriptor, 0, len(names))
	for _, name := range names {
		m := e.config.Methods[name]
		out = append(out, MethodDescriptor{
			Name:        name,
			VerboseName: m.VerboseName,
			Handler:     m.Handler,
		})
	}
	return out
}

// MFAConfig returns the configured methods and the policy flags clients
// need to render their forms.
func (e *Engine) MFAConfig() MFASettings {
	if e == nil {
		return MFASettings{}
	}
	return MFASettings{
		Methods:                      e.AvailableMethods(),
		ConfirmDisableWithCode:       e.config.ConfirmDisableWithCode,
		ConfirmBackupRegenWithCode:   e.config.ConfirmBackupRegenWithCode,
		AllowBackupCodesRegeneration: e.config.AllowBackupCodesRegeneration,
	}
}

// loadUser fetches the current record of userID. Unknown users are
// reported with ErrUserNotFound.
func (e *Engine) loadUser(ctx context.Context, userID string) (UserRecord, error) {
	if userID == "" {
		return UserRecord{}, ErrUserNotFound
	}
	u, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return UserRecord{}, err
	}
	return u, nil
}

// handlerFor resolves the backend of a stored method. A method whose name
// is no longer configured is treated as not configured.
func (e *Engine) handlerFor(name string) (backend.Handler, error) {
	return e.dispatcher.Resolve(name)
}

func (e *Engine) target(u UserRecord, m *method.Method) backend.Target {
	return backend.Target{User: u.backendUser(), Method: m}
}

func userState(u UserRecord) ephemeral.UserState {
	return ephemeral.UserState{
		UserID:       u.UserID,
		PasswordHash: u.PasswordHash,
		LastLogin:    u.LastLogin,
	}
}
