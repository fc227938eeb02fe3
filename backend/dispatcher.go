package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/MrEthical07/goMFA/internal/codes"
	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Deps are the collaborators handlers are built with. Nil transports are
// constructed from each method's Settings.
type Deps struct {
	Codes    *codes.Engine
	Counters CounterStore
	Issuer   string
	Now      func() time.Time
	Logger   *zap.Logger

	Mailer Mailer
	// SMS overrides the sender per handler reference (HandlerTwilio, ...).
	SMS    map[string]SMSSender
	Yubico YubicoVerifier
}

type factory func(ctx context.Context, s Settings, c *codeScheme, d Deps) (Handler, error)

var factories = map[string]factory{
	HandlerEmail: func(_ context.Context, s Settings, c *codeScheme, d Deps) (Handler, error) {
		mailer := d.Mailer
		if mailer == nil {
			mailer = NewSMTPMailer(s.Email.SMTP, s.Timeout)
		}
		return newEmailHandler(s, c, mailer, d.Logger)
	},
	HandlerTwilio: func(_ context.Context, s Settings, c *codeScheme, d Deps) (Handler, error) {
		sender := d.SMS[HandlerTwilio]
		if sender == nil {
			sender = NewTwilioSender(s.Twilio, s.Timeout)
		}
		return newSMSHandler(s, c, sender, d.Logger), nil
	},
	HandlerSMSAPI: func(_ context.Context, s Settings, c *codeScheme, d Deps) (Handler, error) {
		sender := d.SMS[HandlerSMSAPI]
		if sender == nil {
			sender = NewSMSAPISender(s.SMSAPI, s.Timeout)
		}
		return newSMSHandler(s, c, sender, d.Logger), nil
	},
	HandlerSNS: func(ctx context.Context, s Settings, c *codeScheme, d Deps) (Handler, error) {
		sender := d.SMS[HandlerSNS]
		if sender == nil {
			var err error
			if sender, err = NewSNSSender(ctx, s.SNS); err != nil {
				return nil, err
			}
		}
		return newSMSHandler(s, c, sender, d.Logger), nil
	},
	HandlerApp: func(_ context.Context, _ Settings, c *codeScheme, d Deps) (Handler, error) {
		return &appHandler{codes: c, issuer: d.Issuer}, nil
	},
	HandlerYubi: func(_ context.Context, s Settings, _ *codeScheme, d Deps) (Handler, error) {
		verifier := d.Yubico
		if verifier == nil {
			v, err := NewYubiCloudVerifier(s.Yubico, s.Timeout)
			if err != nil {
				return nil, err
			}
			verifier = v
		}
		return &yubiHandler{verifier: verifier, log: d.Logger}, nil
	},
}

// KnownHandler reports whether ref names a built-in handler.
func KnownHandler(ref string) bool {
	_, ok := factories[ref]
	return ok
}

// Dispatcher resolves configured method names to handlers.
type Dispatcher struct {
	handlers map[string]Handler
	settings map[string]Settings
}

// NewDispatcher builds one handler per configured method.
func NewDispatcher(ctx context.Context, methods map[string]Settings, d Deps) (*Dispatcher, error) {
	if d.Codes == nil {
		d.Codes = codes.New()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	out := &Dispatcher{
		handlers: make(map[string]Handler, len(methods)),
		settings: make(map[string]Settings, len(methods)),
	}
	for name, s := range methods {
		build, ok := factories[s.Handler]
		if !ok {
			return nil, fmt.Errorf("%w: method %q references %q", ErrHandlerMissing, name, s.Handler)
		}
		if s.Timeout <= 0 {
			s.Timeout = defaultTimeout
		}

		scheme := &codeScheme{
			engine:   d.Codes,
			counters: d.Counters,
			scheme:   s.Scheme,
			interval: s.Interval,
			validity: s.ValidityPeriod,
			now:      d.Now,
			log:      d.Logger,
		}
		h, err := build(ctx, s, scheme, d)
		if err != nil {
			return nil, fmt.Errorf("method %q: %w", name, err)
		}
		out.handlers[name] = h
		out.settings[name] = s
	}
	return out, nil
}

// Resolve returns the handler for name.
func (d *Dispatcher) Resolve(name string) (Handler, error) {
	h, ok := d.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	return h, nil
}

// Settings returns the configuration of name.
func (d *Dispatcher) Settings(name string) (Settings, bool) {
	s, ok := d.settings[name]
	return s, ok
}

// Names returns the configured method names, sorted.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
