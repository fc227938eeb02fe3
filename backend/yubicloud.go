package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GeertJohan/yubigo"
)

// yubiAuthenticator is the subset of the yubigo client used here.
type yubiAuthenticator interface {
	Verify(otp string) (*yubigo.YubiResponse, bool, error)
}

// YubiCloudVerifier checks YubiKey OTPs against the YubiCloud validation
// servers. Request signing and response checks are done by yubigo when a
// secret key is configured.
type YubiCloudVerifier struct {
	auth    yubiAuthenticator
	timeout time.Duration
}

// NewYubiCloudVerifier returns a verifier for cfg. APIURL replaces the
// default server list; a plain http:// URL turns TLS off.
func NewYubiCloudVerifier(cfg YubicoSettings, timeout time.Duration) (*YubiCloudVerifier, error) {
	auth, err := yubigo.NewYubiAuth(cfg.ClientID, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("yubicloud: %w", err)
	}
	if u := cfg.APIURL; u != "" {
		if rest, ok := strings.CutPrefix(u, "http://"); ok {
			auth.UseHttps(false)
			u = rest
		}
		auth.SetApiServerList(strings.TrimPrefix(u, "https://"))
	}
	return &YubiCloudVerifier{auth: auth, timeout: timeout}, nil
}

// Verify implements YubicoVerifier. Any status other than OK is false;
// transport and protocol problems are errors.
func (v *YubiCloudVerifier) Verify(ctx context.Context, otp string) (bool, error) {
	ok, err := withContext(ctx, v.timeout, func() (bool, error) {
		_, ok, err := v.auth.Verify(otp)
		return ok, err
	})
	if err != nil {
		return false, fmt.Errorf("yubicloud: %w", err)
	}
	return ok, nil
}
