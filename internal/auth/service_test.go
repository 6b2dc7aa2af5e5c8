package auth

import (
	"context"
	"sync"
	"testing"

	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/internal/vendors"
	pkgAuth "github.com/freshmarket/grocery-backend/pkg/auth"
	"github.com/freshmarket/grocery-backend/pkg/auth/session"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/dbtest"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testJWT      = config.JWTConfig{Secret: "test-secret", Issuer: "freshmarket", ExpirationMinutes: 15}
	testPassword = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16}
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]fakeSession
}

type fakeSession struct {
	userID uint
	token  string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]fakeSession{}}
}

func (f *fakeSessions) Generate(_ context.Context, accessID string, userID uint) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "refresh-" + accessID
	f.sessions[accessID] = fakeSession{userID: userID, token: token}
	return token, nil
}

func (f *fakeSessions) Rotate(_ context.Context, oldAccessID, provided string) (string, string, uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.sessions[oldAccessID]
	if !ok || current.token != provided {
		return "", "", 0, session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	next := session.NewAccessID()
	token := "refresh-" + next
	f.sessions[next] = fakeSession{userID: current.userID, token: token}
	return next, token, current.userID, nil
}

func (f *fakeSessions) Revoke(_ context.Context, accessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, accessID)
	return nil
}

func (f *fakeSessions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type authFixture struct {
	client   *db.Client
	login    Service
	signup   RegisterService
	sessions *fakeSessions
}

func newAuthFixture(t *testing.T, name string) authFixture {
	t.Helper()
	client := dbtest.New(t, name)
	sessions := newFakeSessions()
	login, err := NewService(ServiceParams{
		UserRepo:       users.NewRepository(client.DB()),
		Verifications:  vendors.NewRepository(client.DB()),
		SessionManager: sessions,
		JWTConfig:      testJWT,
	})
	require.NoError(t, err)
	signup, err := NewRegisterService(RegisterServiceParams{DB: client, PasswordConfig: testPassword})
	require.NoError(t, err)
	return authFixture{client: client, login: login, signup: signup, sessions: sessions}
}

func forbiddenStatus(t *testing.T, err error) any {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())
	details, ok := typed.Details().(map[string]any)
	require.True(t, ok)
	return details["status"]
}

func TestCustomerSignupAndLogin(t *testing.T) {
	f := newAuthFixture(t, "auth_customer")
	ctx := context.Background()

	resp, err := f.signup.Signup(ctx, SignupRequest{Email: "Shopper@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleCustomer, resp.User.Role)
	assert.Equal(t, "shopper", resp.User.Name)
	assert.Nil(t, resp.VerificationID)

	login, err := f.login.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, login.RefreshToken)
	require.NotNil(t, login.User.LastLoginAt)

	claims, err := pkgAuth.ParseAccessToken(testJWT, login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, enums.UserRoleCustomer, claims.Role)

	_, err = f.login.Login(ctx, LoginRequest{Email: "shopper@example.com", Password: "wrong"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = f.login.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = f.login.Login(ctx, LoginRequest{Email: "shopper@example.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSignupRejectsDuplicatesAndAdminRole(t *testing.T) {
	f := newAuthFixture(t, "auth_signup_dupes")
	ctx := context.Background()

	_, err := f.signup.Signup(ctx, SignupRequest{Email: "x@example.com", Password: "secret1", Role: "admin"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.signup.Signup(ctx, SignupRequest{Email: "x@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.signup.Signup(ctx, SignupRequest{Email: "X@example.com", Password: "secret1", Role: "vendor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestVendorLoginGatedByVerification(t *testing.T) {
	f := newAuthFixture(t, "auth_vendor_gate")
	ctx := context.Background()

	resp, err := f.signup.Signup(ctx, SignupRequest{
		Email:     "grocer@example.com",
		Password:  "secret1",
		Role:      "vendor",
		Name:      "Green Grocer",
		StoreName: "Green Corner",
		Phone:     "9876543210",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.VerificationID)
	assert.Equal(t, enums.UserRoleVendor, resp.User.Role)

	_, err = f.login.Login(ctx, LoginRequest{Email: "grocer@example.com", Password: "secret1"})
	assert.Equal(t, enums.VerificationStatusPending, forbiddenStatus(t, err))

	_, err = f.login.Login(ctx, LoginRequest{Email: "grocer@example.com", Password: "nope"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "bad password is checked before verification")

	verifications, err := vendors.NewService(vendors.NewRepository(f.client.DB()), f.client, testPassword, nil)
	require.NoError(t, err)
	_, err = verifications.Resolve(ctx, *resp.VerificationID, vendors.ResolveInput{Status: "rejected", AdminNotes: "incomplete documents"})
	require.NoError(t, err)

	_, err = f.login.Login(ctx, LoginRequest{Email: "grocer@example.com", Password: "secret1"})
	assert.Equal(t, enums.VerificationStatusRejected, forbiddenStatus(t, err))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "incomplete documents", details["message"])

	_, err = f.signup.Signup(ctx, SignupRequest{Email: "grocer@example.com", Password: "secret1", Role: "vendor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestApprovedVendorLogsIn(t *testing.T) {
	f := newAuthFixture(t, "auth_vendor_ok")
	ctx := context.Background()

	resp, err := f.signup.Signup(ctx, SignupRequest{Email: "ok@example.com", Password: "secret1", Role: "vendor"})
	require.NoError(t, err)
	verifications, err := vendors.NewService(vendors.NewRepository(f.client.DB()), f.client, testPassword, nil)
	require.NoError(t, err)
	_, err = verifications.Resolve(ctx, *resp.VerificationID, vendors.ResolveInput{Status: "approved"})
	require.NoError(t, err)

	login, err := f.login.Login(ctx, LoginRequest{Email: "ok@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleVendor, login.User.Role)
}

func TestUnknownUserWithPendingRequest(t *testing.T) {
	f := newAuthFixture(t, "auth_unknown_pending")
	ctx := context.Background()

	resp, err := f.signup.Signup(ctx, SignupRequest{Email: "orphan@example.com", Password: "secret1", Role: "vendor"})
	require.NoError(t, err)
	require.NoError(t, f.client.DB().Exec("DELETE FROM users WHERE id = ?", resp.User.ID).Error)

	_, err = f.login.Login(ctx, LoginRequest{Email: "orphan@example.com", Password: "secret1"})
	assert.Equal(t, enums.VerificationStatusPending, forbiddenStatus(t, err))
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	f := newAuthFixture(t, "auth_refresh")
	ctx := context.Background()

	_, err := f.signup.Signup(ctx, SignupRequest{Email: "r@example.com", Password: "secret1"})
	require.NoError(t, err)
	login, err := f.login.Login(ctx, LoginRequest{Email: "r@example.com", Password: "secret1"})
	require.NoError(t, err)

	pair, err := f.login.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, pair.RefreshToken)
	assert.Equal(t, 1, f.sessions.count())

	_, err = f.login.Refresh(ctx, RefreshRequest{AccessToken: login.AccessToken, RefreshToken: login.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "old refresh token must not be reusable")

	_, err = f.login.Refresh(ctx, RefreshRequest{AccessToken: "garbage", RefreshToken: pair.RefreshToken})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	claims, err := pkgAuth.ParseAccessToken(testJWT, pair.AccessToken)
	require.NoError(t, err)
	require.NoError(t, f.login.Logout(ctx, claims.ID))
	assert.Zero(t, f.sessions.count())

	assert.True(t, pkgerrors.IsCode(f.login.Logout(ctx, " "), pkgerrors.CodeUnauthorized))
}
