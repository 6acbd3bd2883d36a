package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// Claims accepts the user id either in the "id" claim issued by the identity
// service or in the standard subject.
type Claims struct {
	UserID interface{} `json:"id,omitempty"`
	jwt.RegisteredClaims
}

type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), now: time.Now}
}

func (v *JWTVerifier) Verify(raw string) (uint64, error) {
	if len(v.secret) == 0 || strings.TrimSpace(raw) == "" {
		return 0, ErrUnauthorized
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithTimeFunc(v.now))
	if err != nil || token == nil || !token.Valid {
		return 0, ErrUnauthorized
	}

	userID, err := claimUserID(claims)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

// Issue signs a token for userID. Used by tooling and tests; production
// tokens come from the identity service.
func (v *JWTVerifier) Issue(userID uint64, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	now := v.now().UTC()
	claims := Claims{
		UserID: strconv.FormatUint(userID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func claimUserID(claims *Claims) (uint64, error) {
	switch id := claims.UserID.(type) {
	case float64:
		if id > 0 && id == float64(uint64(id)) {
			return uint64(id), nil
		}
	case string:
		if n, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err == nil && n > 0 {
			return n, nil
		}
	case nil:
		if n, err := strconv.ParseUint(strings.TrimSpace(claims.Subject), 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrUnauthorized
}
