package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func TestIssueAndVerify(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	token, err := verifier.Issue(42, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestVerifyAcceptsNumericIDClaim(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	userID, err := NewJWTVerifier("secret").Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 7 {
		t.Fatalf("expected user 7, got %d", userID)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	verifier := NewJWTVerifier("secret")

	expired := &JWTVerifier{secret: []byte("secret"), now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	expiredToken, _ := expired.Issue(1, time.Minute)

	otherSecret, _ := NewJWTVerifier("other").Issue(1, time.Hour)

	noneToken, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      expiredToken,
		"other secret": otherSecret,
		"alg none":     noneToken,
	} {
		if _, err := verifier.Verify(token); err == nil {
			t.Fatalf("%s: expected verification to fail", name)
		}
	}
}

func TestRequireUserMiddleware(t *testing.T) {
	verifier := NewJWTVerifier("secret")
	token, _ := verifier.Issue(9, time.Hour)

	e := echo.New()
	handler := RequireUser(verifier)(func(c echo.Context) error {
		userID, ok := UserIDFromContext(c)
		if !ok || userID != 9 {
			t.Fatalf("unexpected user in context: %d %v", userID, ok)
		}
		return c.NoContent(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/subscriptions/details", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/subscriptions/details", nil)
	rec = httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}
