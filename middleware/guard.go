package middleware

import (
	"context"
	"net/http"
	"strings"

	goMFA "github.com/MrEthical07/goMFA"
)

type claimsContextKey struct{}

// credentialParser is the part of goMFA.Engine the guards need.
type credentialParser interface {
	ParseCredential(token string) (*goMFA.CredentialClaims, error)
}

// ClaimsFromContext returns the claims stored by a guard.
func ClaimsFromContext(ctx context.Context) (*goMFA.CredentialClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*goMFA.CredentialClaims)
	return c, ok
}

// Guard rejects requests without a valid final credential with 401.
func Guard(engine *goMFA.Engine) func(http.Handler) http.Handler {
	var p credentialParser
	if engine != nil {
		p = engine
	}
	return guard(p, nil)
}

func guard(p credentialParser, require func(*goMFA.CredentialClaims) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := p.ParseCredential(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if require != nil && !require(claims) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
