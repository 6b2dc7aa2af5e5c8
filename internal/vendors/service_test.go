package vendors

import (
	"context"
	"testing"
	"time"

	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/dbtest"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPasswordCfg = config.PasswordConfig{ArgonMemoryKB: 8, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 8, ArgonKeyLen: 16, TempLength: 10}

func newTestService(t *testing.T, name string) (Service, *db.Client) {
	t.Helper()
	client := dbtest.New(t, name)
	svc, err := NewService(NewRepository(client.DB()), client, testPasswordCfg, nil)
	require.NoError(t, err)
	return svc, client
}

func seedVerification(t *testing.T, client *db.Client, email string, status enums.VerificationStatus, createdAt time.Time) models.VendorVerification {
	t.Helper()
	v := models.VendorVerification{
		VendorEmail: email,
		VendorName:  "Green Grocer",
		StoreName:   "Green Corner",
		Status:      status,
		CreatedAt:   createdAt,
	}
	require.NoError(t, client.DB().Create(&v).Error)
	return v
}

func TestResolveApprovalCreatesVendorWithTempPassword(t *testing.T) {
	svc, client := newTestService(t, "vendors_approve")
	ctx := context.Background()
	v := seedVerification(t, client, "grocer@example.com", enums.VerificationStatusPending, time.Now().UTC())

	result, err := svc.Resolve(ctx, v.ID, ResolveInput{Status: "approved", AdminNotes: " welcome ", Reviewer: "admin@freshmarket.com"})
	require.NoError(t, err)
	assert.Equal(t, enums.VerificationStatusApproved, result.Verification.Status)
	require.NotNil(t, result.Verification.AdminNotes)
	assert.Equal(t, "welcome", *result.Verification.AdminNotes)
	require.NotNil(t, result.Verification.ReviewedAt)
	assert.Len(t, result.TemporaryPassword, testPasswordCfg.TempLength)

	user, err := users.NewRepository(client.DB()).FindByEmail(ctx, "grocer@example.com")
	require.NoError(t, err)
	assert.Equal(t, enums.UserRoleVendor, user.Role)
	assert.True(t, user.MustRotatePassword)
	ok, err := security.VerifyPassword(result.TemporaryPassword, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := svc.Resolve(ctx, v.ID, ResolveInput{Status: "APPROVED", AdminNotes: "second pass", Reviewer: "ops@freshmarket.com"})
	require.NoError(t, err)
	assert.Empty(t, again.TemporaryPassword, "existing vendor must not be re-issued a password")
	require.NotNil(t, again.Verification.ReviewedBy)
	assert.Equal(t, "ops@freshmarket.com", *again.Verification.ReviewedBy)
}

func TestResolveApprovalKeepsSignupPassword(t *testing.T) {
	svc, client := newTestService(t, "vendors_existing_user")
	ctx := context.Background()
	v := seedVerification(t, client, "fresh@example.com", enums.VerificationStatusPending, time.Now().UTC())
	_, err := users.NewRepository(client.DB()).Create(ctx, users.CreateUserDTO{Email: "fresh@example.com", PasswordHash: "signup-hash", Role: enums.UserRoleVendor})
	require.NoError(t, err)

	result, err := svc.Resolve(ctx, v.ID, ResolveInput{Status: "approved"})
	require.NoError(t, err)
	assert.Empty(t, result.TemporaryPassword)

	user, err := users.NewRepository(client.DB()).FindByEmail(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, "signup-hash", user.PasswordHash)
	assert.False(t, user.MustRotatePassword)
}

func TestResolveRejectsInvalidTransitions(t *testing.T) {
	svc, client := newTestService(t, "vendors_invalid")
	ctx := context.Background()
	v := seedVerification(t, client, "late@example.com", enums.VerificationStatusRejected, time.Now().UTC())

	_, err := svc.Resolve(ctx, v.ID, ResolveInput{Status: "pending"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Resolve(ctx, 999, ResolveInput{Status: "approved"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Resolve(ctx, v.ID, ResolveInput{Status: "approved"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var count int64
	require.NoError(t, client.DB().Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, client := newTestService(t, "vendors_list")
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	seedVerification(t, client, "a@example.com", enums.VerificationStatusPending, base)
	seedVerification(t, client, "b@example.com", enums.VerificationStatusApproved, base.Add(time.Minute))
	seedVerification(t, client, "c@example.com", enums.VerificationStatusPending, base.Add(2*time.Minute))
	seedVerification(t, client, "d@example.com", enums.VerificationStatusPending, base.Add(3*time.Minute))

	first, err := svc.List(ctx, ListInput{Status: "pending", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Verifications, 2)
	assert.Equal(t, "d@example.com", first.Verifications[0].VendorEmail)
	assert.Equal(t, "c@example.com", first.Verifications[1].VendorEmail)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, ListInput{Status: "pending", Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Verifications, 1)
	assert.Equal(t, "a@example.com", second.Verifications[0].VendorEmail)
	assert.Empty(t, second.NextCursor)

	all, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	assert.Len(t, all.Verifications, 4)

	_, err = svc.List(ctx, ListInput{Status: "archived"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStatusLookup(t *testing.T) {
	svc, client := newTestService(t, "vendors_status")
	ctx := context.Background()
	v := seedVerification(t, client, "shop@example.com", enums.VerificationStatusPending, time.Now().UTC())
	_, err := svc.Resolve(ctx, v.ID, ResolveInput{Status: "rejected", AdminNotes: "missing license"})
	require.NoError(t, err)

	view, err := svc.Status(ctx, " Shop@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "rejected", view.Status)
	assert.Equal(t, "missing license", view.Message)
	assert.NotNil(t, view.ReviewedAt)

	missing, err := svc.Status(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, missing.Status)
}
