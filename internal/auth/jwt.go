package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims a signaling client may present. sid is optional
// and identifies the client session across reconnects.
type Claims struct {
	jwt.RegisteredClaims
	SID string `json:"sid,omitempty"`
}

type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret string) JWTVerifier {
	return JWTVerifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (v JWTVerifier) Verify(token string) error {
	_, err := v.Claims(token)
	return err
}

// Claims verifies an HS256 token and returns its claims. exp is required.
func (v JWTVerifier) Claims(token string) (*Claims, error) {
	if len(v.secret) == 0 || token == "" {
		return nil, ErrInvalidCredentials
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return claims, nil
}

// Sign issues an HS256 token for sid that expires after ttl. It exists for
// tooling and tests; the server only verifies.
func (v JWTVerifier) Sign(sid string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SID: sid,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
