// Package ephemeral issues and checks the short-lived token that carries a
// user from a successful first factor to the second factor.
//
// A token has three dash separated segments:
//
//	<user id>-<base36 unix seconds>-<hex HMAC-SHA256>
//
// Nothing is stored. The HMAC covers the user id, the user's password hash
// and last-login marker, and the timestamp, so a password change or a
// completed login invalidates every outstanding token for that user.
package ephemeral

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

const keySalt = "goMFA.ephemeral.v1"

// DefaultTTL is the default validity window.
const DefaultTTL = 15 * time.Minute

// UserState is the auth-relevant user state bound into a token.
type UserState struct {
	UserID       string
	PasswordHash string
	LastLogin    time.Time
}

// Manager issues and checks tokens. It is immutable after construction.
type Manager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

var (
	ErrShortSecret = errors.New("ephemeral: secret must be at least 32 bytes")
	ErrInvalidTTL  = errors.New("ephemeral: ttl must be at least one second")
)

// New derives the signing key from secret. now may be nil.
func New(secret []byte, ttl time.Duration, now func() time.Time) (*Manager, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	// Timestamps have one second resolution.
	if ttl < time.Second {
		return nil, ErrInvalidTTL
	}
	if now == nil {
		now = time.Now
	}

	k := sha256.Sum256(append([]byte(keySalt), secret...))
	return &Manager{key: k[:], ttl: ttl, now: now}, nil
}

// Issue returns a token for state at the current time.
func (m *Manager) Issue(state UserState) string {
	ts := m.now().Unix()
	return state.UserID + "-" + strconv.FormatInt(ts, 36) + "-" + m.mac(state, ts)
}

// UserID extracts the user id segment without checking anything else. It
// returns false for tokens that do not have three segments.
func UserID(token string) (string, bool) {
	userID, _, _, ok := split(token)
	return userID, ok
}

// Check reports whether token is valid for state. state must be the current
// record of the user named by UserID(token).
func (m *Manager) Check(token string, state UserState) bool {
	userID, tsPart, macPart, ok := split(token)
	if !ok || userID != state.UserID {
		return false
	}

	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	now := m.now().Unix()
	if ts > now || now-ts >= int64(m.ttl/time.Second) {
		return false
	}

	return hmac.Equal([]byte(macPart), []byte(m.mac(state, ts)))
}

func (m *Manager) mac(state UserState, ts int64) string {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(state.UserID))
	h.Write([]byte{0})
	h.Write([]byte(state.PasswordHash))
	h.Write([]byte{0})
	if !state.LastLogin.IsZero() {
		h.Write([]byte(strconv.FormatInt(state.LastLogin.UTC().Unix(), 10)))
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// split cuts on the last two dashes so user ids may contain dashes.
func split(token string) (userID, ts, mac string, ok bool) {
	i := strings.LastIndexByte(token, '-')
	if i <= 0 {
		return "", "", "", false
	}
	j := strings.LastIndexByte(token[:i], '-')
	if j <= 0 {
		return "", "", "", false
	}

	userID, ts, mac = token[:j], token[j+1:i], token[i+1:]
	if userID == "" || ts == "" || mac == "" {
		return "", "", "", false
	}
	return userID, ts, mac, true
}
