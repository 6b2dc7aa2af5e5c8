package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/internal/vendors"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/security"
	"gorm.io/gorm"
)

const vendorSubmittedMessage = "Vendor verification request submitted. You will be notified once approved by admin."

// RegisterService handles the signup transaction.
type RegisterService interface {
	Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type registerService struct {
	db          *db.Client
	passwordCfg config.PasswordConfig
	logg        *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		passwordCfg: params.PasswordConfig,
		logg:        params.Logger,
	}, nil
}

func (s *registerService) Signup(ctx context.Context, req SignupRequest) (*SignupResponse, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email and password are required")
	}
	role, err := signupRole(req.Role)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var resp SignupResponse
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		verificationRepo := vendors.NewRepository(tx)

		taken, err := userRepo.ExistsByEmail(ctx, email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "Email already registered")
		}

		if role == enums.UserRoleVendor {
			if _, err := verificationRepo.FindByEmail(ctx, email); err == nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "Vendor verification request already exists")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check verification")
			}

			ownerName := strings.TrimSpace(req.OwnerName)
			if ownerName == "" {
				ownerName = name
			}
			verification := &models.VendorVerification{
				VendorEmail: email,
				VendorName:  name,
				StoreName:   strings.TrimSpace(req.StoreName),
				OwnerName:   ownerName,
				Phone:       strings.TrimSpace(req.Phone),
				Status:      enums.VerificationStatusPending,
			}
			if err := verificationRepo.Create(ctx, verification); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Vendor verification request already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create verification")
			}
			resp.VerificationID = &verification.ID
			resp.Message = vendorSubmittedMessage
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			Name:         name,
			Role:         role,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		resp.User = users.FromModel(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithUserID(ctx, resp.User.ID)
		logCtx = s.logg.WithActorRole(logCtx, string(role))
		s.logg.Info(logCtx, "auth.signup")
	}
	return &resp, nil
}

// signupRole accepts customer (the default) and vendor. Admin accounts are
// only provisioned by the seeder.
func signupRole(raw string) (enums.UserRole, error) {
	if strings.TrimSpace(raw) == "" {
		return enums.UserRoleCustomer, nil
	}
	role, err := enums.ParseUserRole(raw)
	if err != nil || role == enums.UserRoleAdmin {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "role must be customer or vendor").
			WithDetails(map[string]any{"field": "role"})
	}
	return role, nil
}
