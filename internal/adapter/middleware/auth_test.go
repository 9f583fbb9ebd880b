package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"receivables-engine/internal/domain/access"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type roleTable map[access.Role]string

func (r roleTable) HasRole(_ context.Context, role access.Role, acct string) bool { return r[role] == acct }

func sign(t *testing.T, secret []byte, method jwt.SigningMethod, sub string, ttl time.Duration) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}})
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func bearer(t *testing.T, sub string, ttl time.Duration) string {
	t.Helper()
	return "Bearer " + sign(t, testSecret, jwt.SigningMethodHS256, sub, ttl)
}

func TestAuth(t *testing.T) {
	admin := strings.Repeat("d", 32)
	roles := roleTable{access.RoleAdmin: admin}

	var got access.Caller
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		got = CallerFrom(c)
		return c.NoContent(http.StatusNoContent)
	}, Auth(testSecret, roles))

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", bearer(t, admin, time.Hour), http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"expired", bearer(t, admin, -time.Minute), http.StatusUnauthorized},
		{"wrong secret", "Bearer " + sign(t, []byte("other"), jwt.SigningMethodHS256, admin, time.Hour), http.StatusUnauthorized},
		{"other hmac alg", "Bearer " + sign(t, testSecret, jwt.SigningMethodHS512, admin, time.Hour), http.StatusUnauthorized},
		{"bad subject", bearer(t, "Alice", time.Hour), http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got = access.Caller{}
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.want, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, bearer(t, admin, time.Hour))
	e.ServeHTTP(httptest.NewRecorder(), req)
	if got.Account != admin {
		t.Fatalf("caller account = %q, want %q", got.Account, admin)
	}
	if !got.Has(req.Context(), access.RoleAdmin) {
		t.Fatal("caller should resolve roles through the lookup")
	}
}

func TestCallerFrom_WithoutAuth(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if CallerFrom(c).Account != "" {
		t.Fatal("expected zero caller")
	}
}
