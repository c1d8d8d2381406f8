package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustJWT(t *testing.T, secret string, header, claims map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(payloadJSON)

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signingInput))
	return signingInput + "." + enc.EncodeToString(mac.Sum(nil))
}

func fixedVerifier(secret string, now time.Time) JWTVerifier {
	v := NewJWTVerifier(secret)
	v.now = func() time.Time { return now }
	return v
}

func TestJWTVerifier_AcceptsValidHS256(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	v := fixedVerifier("secret", now)

	token := mustJWT(t, "secret", map[string]any{"alg": "HS256", "typ": "JWT"}, map[string]any{
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
		"sid": "sess_test",
	})

	claims, err := v.Claims(token)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims.SID != "sess_test" {
		t.Fatalf("sid=%q, want %q", claims.SID, "sess_test")
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	v := fixedVerifier("secret", now)
	hs256 := map[string]any{"alg": "HS256", "typ": "JWT"}

	cases := map[string]string{
		"expired": mustJWT(t, "secret", hs256, map[string]any{
			"exp": now.Add(-time.Minute).Unix(),
		}),
		"missing exp": mustJWT(t, "secret", hs256, map[string]any{
			"sid": "s",
		}),
		"wrong secret": mustJWT(t, "other", hs256, map[string]any{
			"exp": now.Add(time.Minute).Unix(),
		}),
		"alg HS512": mustJWT(t, "secret", map[string]any{"alg": "HS512"}, map[string]any{
			"exp": now.Add(time.Minute).Unix(),
		}),
		"alg none": mustJWT(t, "secret", map[string]any{"alg": "none"}, map[string]any{
			"exp": now.Add(time.Minute).Unix(),
		}),
		"garbage": "not.a.jwt",
		"empty":   "",
	}
	for name, token := range cases {
		if err := v.Verify(token); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: err=%v, want %v", name, err, ErrInvalidCredentials)
		}
	}
}

func TestJWTVerifier_SignRoundTrip(t *testing.T) {
	now := time.Unix(2_000_000, 0)
	v := fixedVerifier("secret", now)

	token, err := v.Sign("abc", time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := v.Claims(token)
	if err != nil {
		t.Fatalf("Claims: %v", err)
	}
	if claims.SID != "abc" {
		t.Fatalf("sid=%q", claims.SID)
	}

	later := fixedVerifier("secret", now.Add(2*time.Minute))
	if err := later.Verify(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestJWTVerifier_EmptySecretRejectsEverything(t *testing.T) {
	v := fixedVerifier("", time.Unix(1_000_000, 0))
	token := mustJWT(t, "", map[string]any{"alg": "HS256"}, map[string]any{"exp": 2_000_000})
	if err := v.Verify(token); err == nil {
		t.Fatalf("expected rejection with empty secret")
	}
}
