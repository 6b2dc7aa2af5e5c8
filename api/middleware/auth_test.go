package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/freshmarket/grocery-backend/pkg/auth"
	"github.com/freshmarket/grocery-backend/pkg/auth/session"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveWithToken(handler http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejectsMissingOrInvalidToken(t *testing.T) {
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler())

	if rec := serveWithToken(handler, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401 got %d", rec.Code)
	}
	if rec := serveWithToken(handler, "Bearer invalid"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: expected 401 got %d", rec.Code)
	}
}

func TestAuthSeedsIdentity(t *testing.T) {
	token := mintTestToken(t, 42, enums.UserRoleVendor)

	var captured struct {
		user    uint
		role    string
		email   string
		session string
	}
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		captured.email = EmailFromContext(r.Context())
		captured.session = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	if rec := serveWithToken(handler, "bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if captured.user != 42 || captured.role != string(enums.UserRoleVendor) {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if captured.email != "user@example.com" || captured.session == "" {
		t.Fatalf("expected email and session id in context, got %+v", captured)
	}
}

func TestAuthRequiresLiveSession(t *testing.T) {
	token := mintTestToken(t, 7, enums.UserRoleCustomer)

	revoked := Auth(testJWT, stubSessionVerifier{ok: false}, nil)(okHandler())
	if rec := serveWithToken(revoked, "Bearer "+token); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked session: expected 401 got %d", rec.Code)
	}

	down := Auth(testJWT, stubSessionVerifier{err: errors.New("redis down")}, nil)(okHandler())
	if rec := serveWithToken(down, "Bearer "+token); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("session store down: expected 503 got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.UserRoleVendor, enums.UserRoleAdmin)(okHandler())

	for role, want := range map[enums.UserRole]int{
		enums.UserRoleVendor:   http.StatusOK,
		enums.UserRoleAdmin:    http.StatusOK,
		enums.UserRoleCustomer: http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithIdentity(req.Context(), 1, string(role), "x@example.com"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, rec.Code)
		}
	}
}

func mintTestToken(t *testing.T, userID uint, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Email:  "user@example.com",
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
