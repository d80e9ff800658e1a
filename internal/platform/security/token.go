package security

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned when a token's signature, algorithm or expiry
// does not check out.
var ErrInvalidToken = errors.New("invalid token")

// IssueToken signs payload as an HS256 JWT. The token carries iat and an exp
// of now plus the configured TTL. payload is copied, not modified.
func (h *Helper) IssueToken(payload map[string]any, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("issue token: secret is required")
	}

	now := h.now()
	claims := jwt.MapClaims{}
	for k, v := range payload {
		claims[k] = v
	}
	claims["iat"] = jwt.NewNumericDate(now)
	claims["exp"] = jwt.NewNumericDate(now.Add(h.tokenTTL))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the token against secret and returns its claims.
func (h *Helper) VerifyToken(token, secret string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return map[string]any(claims), nil
}
