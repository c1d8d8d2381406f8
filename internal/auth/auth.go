package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/wilsonzlin/aero/proxy/meet-signaling/internal/config"
)

type Verifier interface {
	Verify(credential string) error
}

func NewVerifier(cfg config.Config) (Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthModeAPIKey:
		return APIKeyVerifier{Expected: cfg.APIKey}, nil
	case config.AuthModeJWT:
		return NewJWTVerifier(cfg.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
}

var ErrMissingCredentials = errors.New("missing credentials")

// CredentialFromQuery reads the credential from the query string. Browsers
// cannot set headers on a WebSocket upgrade, so this is how signaling clients
// authenticate. Each mode prefers its own parameter but accepts the other.
func CredentialFromQuery(mode config.AuthMode, q url.Values) (string, error) {
	var first, second string
	switch mode {
	case config.AuthModeNone:
		return "", nil
	case config.AuthModeAPIKey:
		first, second = "apiKey", "token"
	case config.AuthModeJWT:
		first, second = "token", "apiKey"
	default:
		return "", fmt.Errorf("unsupported auth mode %q", mode)
	}
	if v := strings.TrimSpace(q.Get(first)); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(q.Get(second)); v != "" {
		return v, nil
	}
	return "", ErrMissingCredentials
}

// CredentialFromRequest reads the credential from headers first
// (Authorization: Bearer/ApiKey, X-API-Key) and then the query string.
func CredentialFromRequest(mode config.AuthMode, r *http.Request) (string, error) {
	if mode == config.AuthModeNone {
		return "", nil
	}
	if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
		return v, nil
	}
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		scheme, value, ok := strings.Cut(authz, " ")
		if ok && (strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "ApiKey")) {
			if v := strings.TrimSpace(value); v != "" {
				return v, nil
			}
		}
	}
	return CredentialFromQuery(mode, r.URL.Query())
}

// Authorizer enforces AUTH_MODE for HTTP and WebSocket endpoints.
type Authorizer struct {
	mode     config.AuthMode
	verifier Verifier
}

func NewAuthorizer(cfg config.Config) (*Authorizer, error) {
	a := &Authorizer{mode: cfg.AuthMode}
	if cfg.AuthMode == config.AuthModeNone || cfg.AuthMode == "" {
		a.mode = config.AuthModeNone
		return a, nil
	}
	v, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	a.verifier = v
	return a, nil
}

func (a *Authorizer) Authorize(r *http.Request) error {
	if a == nil || a.mode == config.AuthModeNone {
		return nil
	}
	cred, err := CredentialFromRequest(a.mode, r)
	if err != nil {
		return err
	}
	return a.verifier.Verify(cred)
}

// Middleware rejects unauthorized requests with 401 before next runs. For
// WebSocket routes this means the upgrade never happens.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Authorize(r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"unauthorized","message":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// IsUnauthorized reports whether err should be treated as an authentication
// failure rather than a server problem.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrMissingCredentials) || errors.Is(err, ErrInvalidCredentials)
}
