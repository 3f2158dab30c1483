package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/treevu/internal/http/middleware"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func ok(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func token(t *testing.T, a *middleware.Authenticator, sub, role string, exp time.Time) string {
	t.Helper()

	tok, err := a.Sign(middleware.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)

	return tok
}

func TestAuthenticator(t *testing.T) {
	a := middleware.NewAuthenticator("s3cret", "treevu", discard)
	other := middleware.NewAuthenticator("other", "treevu", discard)
	wrongIssuer := middleware.NewAuthenticator("s3cret", "someone-else", discard)

	r := chi.NewRouter()
	r.Use(a.Handler)
	r.With(middleware.RequireAccount("accountID")).Get("/accounts/{accountID}", ok)
	r.With(middleware.RequirePrivileged).Get("/reports", ok)

	future := time.Now().Add(time.Hour)

	type testCase struct {
		name   string
		path   string
		header string
		want   int
	}

	tests := []testCase{
		{name: "MissingToken", path: "/accounts/emp-1", want: http.StatusUnauthorized},
		{name: "NotBearer", path: "/accounts/emp-1", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "WrongSecret", path: "/accounts/emp-1", header: "Bearer " + token(t, other, "emp-1", "employee", future), want: http.StatusUnauthorized},
		{name: "WrongIssuer", path: "/accounts/emp-1", header: "Bearer " + token(t, wrongIssuer, "emp-1", "employee", future), want: http.StatusUnauthorized},
		{name: "Expired", path: "/accounts/emp-1", header: "Bearer " + token(t, a, "emp-1", "employee", time.Now().Add(-time.Minute)), want: http.StatusUnauthorized},
		{name: "OwnAccount", path: "/accounts/emp-1", header: "Bearer " + token(t, a, "emp-1", "employee", future), want: http.StatusOK},
		{name: "OtherAccount", path: "/accounts/emp-2", header: "Bearer " + token(t, a, "emp-1", "employee", future), want: http.StatusForbidden},
		{name: "EmployerAnyAccount", path: "/accounts/emp-2", header: "Bearer " + token(t, a, "hr-1", "employer", future), want: http.StatusOK},
		{name: "EmployeeReports", path: "/reports", header: "Bearer " + token(t, a, "emp-1", "employee", future), want: http.StatusForbidden},
		{name: "AdminReports", path: "/reports", header: "Bearer " + token(t, a, "root", "admin", future), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRequireAccount_NoClaimsAllows(t *testing.T) {
	r := chi.NewRouter()
	r.With(middleware.RequireAccount("accountID")).Get("/accounts/{accountID}", ok)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/emp-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 2, discard)
	h := rl.Handler(http.HandlerFunc(ok))

	call := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1111"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:3333"), "same host shares a bucket")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1111"))

	assert.Equal(t, 0, rl.Sweep(time.Now()))
	assert.Equal(t, 2, rl.Sweep(time.Now().Add(time.Hour)))
}
