package vendors

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/pagination"
	"github.com/freshmarket/grocery-backend/pkg/security"
	"gorm.io/gorm"
)

// Service manages the admin side of vendor verification.
type Service interface {
	Resolve(ctx context.Context, id uint, input ResolveInput) (*ResolveResult, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Status(ctx context.Context, email string) (*StatusView, error)
}

const defaultTempPasswordLength = 12

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo     Repository
	tx       txRunner
	password config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the verification service.
func NewService(repo Repository, tx txRunner, passwordCfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "vendor verification repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if passwordCfg.TempLength <= 0 {
		passwordCfg.TempLength = defaultTempPasswordLength
	}
	return &service{
		repo:     repo,
		tx:       tx,
		password: passwordCfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Resolve(ctx context.Context, id uint, input ResolveInput) (*ResolveResult, error) {
	status, err := enums.ParseVerificationStatus(input.Status)
	if err != nil || !status.IsResolved() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Status must be 'approved' or 'rejected'").
			WithDetails(map[string]any{"field": "status"})
	}
	reviewer := strings.TrimSpace(input.Reviewer)

	var (
		result  *ResolveResult
		created bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		verification, err := repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Verification request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load verification")
		}
		if verification.Status.IsResolved() && verification.Status != status {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "verification already resolved").
				WithDetails(map[string]any{"status": verification.Status})
		}

		now := s.now().UTC()
		notes := strings.TrimSpace(input.AdminNotes)
		verification.Status = status
		verification.AdminNotes = &notes
		verification.ReviewedAt = &now
		if reviewer != "" {
			verification.ReviewedBy = &reviewer
		} else {
			verification.ReviewedBy = nil
		}
		if err := repo.Save(ctx, verification); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update verification")
		}

		result = &ResolveResult{
			Verification: FromModel(*verification),
			Message:      "Vendor verification " + string(status) + " successfully",
		}
		if status != enums.VerificationStatusApproved {
			return nil
		}

		tempPassword, err := s.ensureVendorUser(ctx, users.NewRepository(tx), verification)
		if err != nil {
			return err
		}
		result.TemporaryPassword = tempPassword
		created = tempPassword != ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"verification_id": id,
			"status":          status,
			"user_created":    created,
		})
		s.logg.Info(logCtx, "vendors.verification_resolved")
	}
	return result, nil
}

// ensureVendorUser creates the vendor account on approval when signup did not.
// It returns the generated temporary password, or "" when the user exists.
func (s *service) ensureVendorUser(ctx context.Context, repo *users.Repository, verification *models.VendorVerification) (string, error) {
	exists, err := repo.ExistsByEmail(ctx, verification.VendorEmail)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup vendor user")
	}
	if exists {
		return "", nil
	}

	tempPassword, err := security.GenerateTempPassword(s.password.TempLength)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate temporary password")
	}
	hash, err := security.HashPassword(tempPassword, s.password)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash temporary password")
	}
	if _, err := repo.Create(ctx, users.CreateUserDTO{
		Email:              verification.VendorEmail,
		PasswordHash:       hash,
		Name:               verification.VendorName,
		Role:               enums.UserRoleVendor,
		MustRotatePassword: true,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create vendor user")
	}
	return tempPassword, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	params := listParams{Limit: input.Limit}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := enums.ParseVerificationStatus(raw)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter").
				WithDetails(map[string]any{"field": "status"})
		}
		params.Status = &status
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	params.Cursor = cursor

	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list verifications")
	}

	result := &ListResult{Verifications: make([]VerificationDTO, 0, len(rows))}
	for _, row := range rows {
		result.Verifications = append(result.Verifications, FromModel(row))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Status(ctx context.Context, email string) (*StatusView, error) {
	normalized := users.NormalizeEmail(email)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	verification, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &StatusView{Status: StatusNotFound, Message: "No verification request found"}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load verification")
	}

	view := &StatusView{
		Status:     string(verification.Status),
		CreatedAt:  &verification.CreatedAt,
		ReviewedAt: verification.ReviewedAt,
	}
	if verification.AdminNotes != nil {
		view.Message = *verification.AdminNotes
	}
	return view, nil
}
