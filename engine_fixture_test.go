package goMFA

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goMFA/backend"
	"github.com/MrEthical07/goMFA/internal/codes"
	"github.com/MrEthical07/goMFA/method"
	"github.com/MrEthical07/goMFA/password"
)

const (
	testUserID   = "u1"
	testUsername = "alice"
	testPassword = "correct-password-123"
	testDeviceID = "ccccccbchvth"
)

var errTransportDown = errors.New("transport down")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryUsers struct {
	mu     sync.Mutex
	byID   map[string]UserRecord
	byName map[string]string
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]UserRecord{}, byName: map[string]string{}}
}

func (m *memoryUsers) add(u UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[u.UserID] = u
	m.byName[u.Username] = u.UserID
}

func (m *memoryUsers) get(id string) UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memoryUsers) update(id string, fn func(*UserRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID[id]
	fn(&u)
	m.byID[id] = u
}

func (m *memoryUsers) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *memoryUsers) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) UpdateAttributes(_ context.Context, userID string, attrs map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	for k, v := range attrs {
		switch k {
		case "email":
			u.Email = v
		case "phone_number":
			u.PhoneNumber = v
		default:
			if u.Attributes == nil {
				u.Attributes = map[string]string{}
			}
			u.Attributes[k] = v
		}
	}
	m.byID[userID] = u
	return nil
}

func (m *memoryUsers) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = at
	m.byID[userID] = u
	return nil
}

type sentMessage struct {
	to   string
	body string
}

// outbox records messages sent through either transport interface.
type outbox struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (o *outbox) SendEmail(_ context.Context, to, _ string, body string) error {
	return o.record(to, body)
}

func (o *outbox) SendSMS(_ context.Context, to, body string) error {
	return o.record(to, body)
}

func (o *outbox) record(to, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, sentMessage{to: to, body: body})
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *outbox) last(t testing.TB) sentMessage {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		t.Fatal("expected a message to have been sent")
	}
	return o.sent[len(o.sent)-1]
}

// lastCode returns the code in the most recent message.
func (o *outbox) lastCode(t testing.TB) string {
	t.Helper()
	body := o.last(t).body
	i := strings.LastIndex(body, ": ")
	if i < 0 {
		t.Fatalf("no code in message %q", body)
	}
	return strings.TrimSpace(body[i+2:])
}

type stubYubico struct {
	mu    sync.Mutex
	valid map[string]bool
	err   error
}

func (s *stubYubico) Verify(_ context.Context, otp string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.valid[otp], nil
}

func (s *stubYubico) allow(otp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid[otp] = true
}

func yubiOTP(suffix string) string {
	otp := testDeviceID + suffix
	for len(otp) < 44 {
		otp += "c"
	}
	return otp
}

func cheapPasswordConfig() PasswordConfig {
	return PasswordConfig{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EphemeralToken.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Credential.SigningMethod = "hs256"
	cfg.Credential.PrivateKey = []byte("credential-signing-key-0123456789abcdef")
	cfg.Password = cheapPasswordConfig()
	cfg.Metrics.Enabled = true
	return cfg
}

func hashTestPassword(t testing.TB, pw string) string {
	t.Helper()
	pc := cheapPasswordConfig()
	h, err := password.NewArgon2(password.Config{
		Memory:        pc.Memory,
		Time:          pc.Time,
		Parallelism:   pc.Parallelism,
		SaltLength:    pc.SaltLength,
		KeyLength:     pc.KeyLength,
		MinInputBytes: 1,
		MaxInputBytes: password.DefaultMaxInputBytes,
	})
	if err != nil {
		t.Fatalf("NewArgon2 failed: %v", err)
	}
	encoded, err := h.Hash(pw)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	return encoded
}

type fixture struct {
	engine *Engine
	users  *memoryUsers
	store  *method.MemoryStore
	mail   *outbox
	sms    map[string]*outbox
	yubico *stubYubico
	clock  *testClock
	cfg    Config
}

// newFixture builds an engine over in-memory collaborators with one active
// user "u1" / "alice". mutate may adjust the configuration.
func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		users:  newMemoryUsers(),
		store:  method.NewMemoryStore(),
		mail:   &outbox{},
		sms:    map[string]*outbox{},
		yubico: &stubYubico{valid: map[string]bool{}},
		clock:  newTestClock(),
		cfg:    cfg,
	}
	f.users.add(UserRecord{
		UserID:       testUserID,
		Username:     testUsername,
		PasswordHash: hashTestPassword(t, testPassword),
		IsActive:     true,
		Email:        "alice@example.com",
		PhoneNumber:  "+15550001111",
	})

	b := New().
		WithConfig(cfg).
		WithMethodStore(f.store).
		WithUserProvider(f.users).
		WithMailer(f.mail).
		WithYubicoVerifier(f.yubico).
		WithClock(f.clock.Now)
	for _, ref := range []string{backend.HandlerTwilio, backend.HandlerSMSAPI, backend.HandlerSNS} {
		f.sms[ref] = &outbox{}
		b.WithSMSSender(ref, f.sms[ref])
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	f.engine = engine
	return f
}

func (f *fixture) methodRecord(t *testing.T, name string) *method.Method {
	t.Helper()
	m, err := f.engine.registry.Get(context.Background(), testUserID, name)
	if err != nil {
		t.Fatalf("registry Get(%s) failed: %v", name, err)
	}
	return m
}

// appCode returns the current authenticator code of the user's app method.
func (f *fixture) appCode(t *testing.T) string {
	t.Helper()
	m := f.methodRecord(t, "app")
	code, err := codes.New().TOTP(m.Secret, f.clock.Now(), 30*time.Second)
	if err != nil {
		t.Fatalf("TOTP failed: %v", err)
	}
	return code
}

// enrollDelivered registers and confirms a method that sends its code
// through box and returns the backup codes.
func (f *fixture) enrollDelivered(t *testing.T, name string, box *outbox) []string {
	t.Helper()
	ctx := context.Background()

	outcome, err := f.engine.RegisterMethod(ctx, testUserID, name, nil)
	if err != nil {
		t.Fatalf("RegisterMethod(%s) failed: %v", name, err)
	}
	if !outcome.Success {
		t.Fatalf("expected successful dispatch, got %+v", outcome)
	}

	backups, err := f.engine.ConfirmMethod(ctx, testUserID, name, box.lastCode(t))
	if err != nil {
		t.Fatalf("ConfirmMethod(%s) failed: %v", name, err)
	}
	return backups
}

func (f *fixture) enrollEmail(t *testing.T) []string {
	t.Helper()
	return f.enrollDelivered(t, "email", f.mail)
}

func (f *fixture) enrollApp(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	outcome, err := f.engine.RegisterMethod(ctx, testUserID, "app", nil)
	if err != nil {
		t.Fatalf("RegisterMethod(app) failed: %v", err)
	}
	if !strings.HasPrefix(outcome.Details, "otpauth://totp/") {
		t.Fatalf("expected provisioning URI, got %q", outcome.Details)
	}

	backups, err := f.engine.ConfirmMethod(ctx, testUserID, "app", f.appCode(t))
	if err != nil {
		t.Fatalf("ConfirmMethod(app) failed: %v", err)
	}
	return backups
}

func (f *fixture) enrollYubi(t *testing.T) []string {
	t.Helper()
	ctx := context.Background()

	if _, err := f.engine.RegisterMethod(ctx, testUserID, "yubi", nil); err != nil {
		t.Fatalf("RegisterMethod(yubi) failed: %v", err)
	}
	otp := yubiOTP("enroll")
	f.yubico.allow(otp)
	backups, err := f.engine.ConfirmMethod(ctx, testUserID, "yubi", otp)
	if err != nil {
		t.Fatalf("ConfirmMethod(yubi) failed: %v", err)
	}
	return backups
}

// login runs the first factor for alice and requires an MFA challenge.
func (f *fixture) login(t *testing.T) *LoginResult {
	t.Helper()
	res, err := f.engine.AuthenticateFirstFactor(context.Background(), testUsername, testPassword)
	if err != nil {
		t.Fatalf("AuthenticateFirstFactor failed: %v", err)
	}
	if !res.MFARequired || res.EphemeralToken == "" {
		t.Fatalf("expected MFA challenge, got %+v", res)
	}
	return res
}

func (f *fixture) primaryCount(t *testing.T) (active, primary int) {
	t.Helper()
	all, err := f.engine.registry.List(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, m := range all {
		if m.IsActive {
			active++
		}
		if m.IsPrimary {
			primary++
			if !m.IsActive {
				t.Fatalf("primary method %s is not active", m.Name)
			}
		}
	}
	return active, primary
}

func hasAMR(c *CredentialClaims, v string) bool {
	for _, a := range c.AMR {
		if a == v {
			return true
		}
	}
	return false
}
