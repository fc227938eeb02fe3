package middleware

import (
	"net/http"

	goMFA "github.com/MrEthical07/goMFA"
)

// RequireMFA accepts only credentials issued after a second factor. Users
// without MFA get 403.
func RequireMFA(engine *goMFA.Engine) func(http.Handler) http.Handler {
	return RequireAMR(engine, "mfa")
}

// RequireAMR accepts credentials whose amr claim holds every value in want,
// for example "otp:app" to insist on the authenticator app.
func RequireAMR(engine *goMFA.Engine, want ...string) func(http.Handler) http.Handler {
	var p credentialParser
	if engine != nil {
		p = engine
	}
	return guard(p, func(c *goMFA.CredentialClaims) bool {
		return hasAll(c.AMR, want)
	})
}

func hasAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
