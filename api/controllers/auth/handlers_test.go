package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/freshmarket/grocery-backend/api/middleware"
	authsvc "github.com/freshmarket/grocery-backend/internal/auth"
	"github.com/freshmarket/grocery-backend/internal/users"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	login       *authsvc.LoginResponse
	pair        *authsvc.TokenPair
	err         error
	lastLogin   authsvc.LoginRequest
	lastRefresh authsvc.RefreshRequest
	loggedOut   []string
}

func (s *stubAuth) Login(ctx context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	s.lastLogin = req
	return s.login, s.err
}

func (s *stubAuth) Refresh(ctx context.Context, req authsvc.RefreshRequest) (*authsvc.TokenPair, error) {
	s.lastRefresh = req
	return s.pair, s.err
}

func (s *stubAuth) Logout(ctx context.Context, accessID string) error {
	if accessID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	s.loggedOut = append(s.loggedOut, accessID)
	return s.err
}

type stubRegister struct {
	resp *authsvc.SignupResponse
	err  error
	last authsvc.SignupRequest
}

func (s *stubRegister) Signup(ctx context.Context, req authsvc.SignupRequest) (*authsvc.SignupResponse, error) {
	s.last = req
	return s.resp, s.err
}

func TestSignupCreatesVendorRequest(t *testing.T) {
	id := uint(3)
	stub := &stubRegister{resp: &authsvc.SignupResponse{User: &users.UserDTO{ID: 1, Role: "vendor"}, VerificationID: &id}}
	body := `{"email":"shop@example.com","password":"secret1","role":"vendor","storeName":"Green Grocer","ownerName":"Ravi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(body))
	resp := httptest.NewRecorder()

	Signup(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "Green Grocer", stub.last.StoreName)
	assert.Equal(t, "Ravi", stub.last.OwnerName)
	assert.Contains(t, resp.Body.String(), `"verification_id":3`)
}

func TestSignupValidatesBody(t *testing.T) {
	stub := &stubRegister{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader(`{"email":"bad","password":"x"}`))
	resp := httptest.NewRecorder()

	Signup(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Empty(t, stub.last.Email)
}

func TestLoginPendingVendorIsForbiddenWithStatus(t *testing.T) {
	stub := &stubAuth{err: pkgerrors.New(pkgerrors.CodeForbidden, "Your vendor account is pending approval").
		WithDetails(map[string]any{"status": "pending"})}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"shop@example.com","password":"secret1"}`))
	resp := httptest.NewRecorder()

	Login(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"pending"`)
}

func TestLoginSetsAccessTokenHeader(t *testing.T) {
	stub := &stubAuth{login: &authsvc.LoginResponse{AccessToken: "tok", RefreshToken: "ref", User: &users.UserDTO{ID: 1}}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"pw"}`))
	resp := httptest.NewRecorder()

	Login(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "tok", resp.Header().Get("X-Access-Token"))
	assert.Equal(t, "a@example.com", stub.lastLogin.Email)
}

func TestRefreshTakesAccessTokenFromHeader(t *testing.T) {
	stub := &stubAuth{pair: &authsvc.TokenPair{AccessToken: "new", RefreshToken: "next"}}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refresh_token":"ref"}`))
	req.Header.Set("Authorization", "Bearer old")
	resp := httptest.NewRecorder()

	Refresh(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "old", stub.lastRefresh.AccessToken)
	assert.Equal(t, "ref", stub.lastRefresh.RefreshToken)
	assert.Equal(t, "new", resp.Header().Get("X-Access-Token"))
}

func TestRefreshRequiresBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(`{"refresh_token":"ref"}`))
	resp := httptest.NewRecorder()

	Refresh(&stubAuth{}, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestLogoutRevokesContextSession(t *testing.T) {
	stub := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), "jti-1"))
	resp := httptest.NewRecorder()

	Logout(stub, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"jti-1"}, stub.loggedOut)
}
