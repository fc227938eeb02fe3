package backend

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMFA/method"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

func (f *fakeMailer) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{to: to, body: body})
	return nil
}

type fakeYubico struct {
	valid map[string]bool
	err   error
}

func (f *fakeYubico) Verify(_ context.Context, otp string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.valid[otp], nil
}

var errProviderDown = errors.New("provider unreachable")

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

const testSecret = "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"

// fixture owns a registry with one pending method per configured name.
type fixture struct {
	registry *method.Registry
	clock    *testClock
	mailer   *fakeMailer
	sms      *fakeSMS
	yubico   *fakeYubico
	disp     *Dispatcher
}

func newFixture(t *testing.T, methods map[string]Settings) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &testClock{t: time.Unix(1_700_000_000, 0)},
		mailer: &fakeMailer{},
		sms:    &fakeSMS{},
		yubico: &fakeYubico{valid: map[string]bool{}},
	}
	f.registry = method.NewRegistry(method.NewMemoryStore(), f.clock.Now)

	disp, err := NewDispatcher(context.Background(), methods, Deps{
		Counters: f.registry,
		Issuer:   "MyApplication",
		Now:      f.clock.Now,
		Mailer:   f.mailer,
		SMS:      map[string]SMSSender{HandlerTwilio: f.sms, HandlerSMSAPI: f.sms, HandlerSNS: f.sms},
		Yubico:   f.yubico,
	})
	require.NoError(t, err)
	f.disp = disp

	for name := range methods {
		_, _, err := f.registry.CreateOrGetPending(context.Background(), "u1", name, testSecret)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) target(t *testing.T, name string) Target {
	t.Helper()
	m, err := f.registry.Get(context.Background(), "u1", name)
	require.NoError(t, err)
	return Target{
		User:   User{ID: "u1", Username: "alice", Email: "alice@example.com", PhoneNumber: "+15550001111"},
		Method: m,
	}
}

func codeFrom(body string) string {
	i := strings.LastIndex(body, " ")
	return body[i+1:]
}
