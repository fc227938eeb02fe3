package backend

import (
	"context"
	"time"

	"github.com/MrEthical07/goMFA/internal/codes"
	"go.uber.org/zap"
)

// codeScheme generates and checks codes for one method and keeps the
// counter state of HOTP methods consistent.
type codeScheme struct {
	engine   *codes.Engine
	counters CounterStore
	scheme   Scheme
	interval time.Duration
	validity time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func (c *codeScheme) create(ctx context.Context, t Target) (string, error) {
	if c.scheme == SchemeTOTP {
		return c.engine.TOTP(t.Method.Secret, c.now(), c.interval)
	}

	m, err := c.counters.AdvanceCounter(ctx, t.Method.UserID, t.Method.Name)
	if err != nil {
		return "", err
	}
	return c.engine.HOTP(m.Secret, m.Counter)
}

// validate checks code against the method state in t. For HOTP a match is
// consumed with a compare-and-clear on the counter, so only one of two
// concurrent submissions of the same code succeeds.
func (c *codeScheme) validate(ctx context.Context, t Target, code string) bool {
	m := t.Method
	if c.scheme == SchemeTOTP {
		return c.engine.VerifyTOTP(m.Secret, code, c.now(), c.interval, c.validity)
	}

	if !c.engine.VerifyHOTP(m.Secret, code, m.Counter, m.CodeGeneratedAt, c.now(), c.validity) {
		return false
	}
	ok, err := c.counters.ConsumeCounterCode(ctx, m.UserID, m.Name, m.Counter)
	if err != nil {
		c.log.Error("consume counter code failed", zap.String("method", m.Name), zap.String("user_id", m.UserID), zap.Error(err))
		return false
	}
	return ok
}
