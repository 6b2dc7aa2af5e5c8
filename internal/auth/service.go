package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/internal/users"
	pkgAuth "github.com/freshmarket/grocery-backend/pkg/auth"
	"github.com/freshmarket/grocery-backend/pkg/auth/session"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/security"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	pendingApprovalMessage    = "Vendor account is pending admin approval. Please wait for verification."
	rejectedMessage           = "Vendor account application was rejected."
	rejectedDefaultNotes      = "Please contact support for more information."
)

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	Logout(ctx context.Context, accessID string) error
}

type service struct {
	users         userRepository
	verifications verificationLookup
	session       sessionManager
	jwtCfg        config.JWTConfig
	logg          *logger.Logger
	now           func() time.Time
}

type userRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uint, at time.Time) error
}

type verificationLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.VendorVerification, error)
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uint) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, uint, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	Verifications  verificationLookup
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	Logger         *logger.Logger
}

// NewService constructs a login service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository is required")
	}
	if params.Verifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification repository is required")
	}
	if params.SessionManager == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session manager is required")
	}
	return &service{
		users:         params.UserRepo,
		verifications: params.Verifications,
		session:       params.SessionManager,
		jwtCfg:        params.JWTConfig,
		logg:          params.Logger,
		now:           time.Now,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email and password are required")
	}

	user, err := s.authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if user.Role == enums.UserRoleVendor {
		if err := s.requireApproved(ctx, email); err != nil {
			return nil, err
		}
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}
	accessToken, refreshToken, err := s.issue(ctx, user, now, session.NewAccessID())
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, user.ID)
		logCtx = s.logg.WithActorRole(logCtx, string(user.Role))
		s.logg.Info(logCtx, "auth.login")
	}
	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, req.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}

	newAccessID, refreshToken, userID, err := s.session.Rotate(ctx, claims.ID, req.RefreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) || errors.Is(err, redislib.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if userID != claims.UserID {
		_ = s.session.Revoke(ctx, newAccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil || !user.IsActive {
		_ = s.session.Revoke(ctx, newAccessID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now().UTC(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// authenticate resolves the user for email. Unknown users with a vendor request
// get the request status instead of a generic credentials error.
func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
		}
		return nil, s.unknownUserError(ctx, email)
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

func (s *service) unknownUserError(ctx context.Context, email string) error {
	verification, err := s.verifications.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup verification")
	}

	switch verification.Status {
	case enums.VerificationStatusPending:
		return pkgerrors.New(pkgerrors.CodeForbidden, pendingApprovalMessage).
			WithDetails(map[string]any{
				"status":  verification.Status,
				"message": "Your vendor registration is under review. You will be notified once approved.",
			})
	case enums.VerificationStatusRejected:
		return rejectedError(verification)
	}
	return pkgerrors.New(pkgerrors.CodeInternal, "approved vendor has no user account")
}

func (s *service) requireApproved(ctx context.Context, email string) error {
	verification, err := s.verifications.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup verification")
	}
	if verification == nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, pendingApprovalMessage).
			WithDetails(map[string]any{"status": enums.VerificationStatusPending})
	}
	switch verification.Status {
	case enums.VerificationStatusApproved:
		return nil
	case enums.VerificationStatusRejected:
		return rejectedError(verification)
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, pendingApprovalMessage).
		WithDetails(map[string]any{"status": verification.Status})
}

func rejectedError(verification *models.VendorVerification) error {
	message := rejectedDefaultNotes
	if verification.AdminNotes != nil && strings.TrimSpace(*verification.AdminNotes) != "" {
		message = *verification.AdminNotes
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, rejectedMessage).
		WithDetails(map[string]any{"status": verification.Status, "message": message})
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) issue(ctx context.Context, user *models.User, now time.Time, accessID string) (string, string, error) {
	accessToken, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}
	return accessToken, refreshToken, nil
}
