package vendors

import (
	"net/http"
	"strings"

	"github.com/freshmarket/grocery-backend/api/middleware"
	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	vendorsvc "github.com/freshmarket/grocery-backend/internal/vendors"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/pagination"
	"github.com/go-chi/chi/v5"
)

// ResolveRequest is an admin decision on a verification request.
type ResolveRequest struct {
	Status     string `json:"status" validate:"required"`
	AdminNotes string `json:"admin_notes" validate:"max=2000"`
}

// VerificationStatus lets a vendor check their request without signing in.
func VerificationStatus(svc vendorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}

		email := strings.TrimSpace(chi.URLParam(r, "email"))
		if email == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email is required"))
			return
		}

		view, err := svc.Status(r.Context(), email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, view)
	}
}

// ListVerifications pages verification requests for admins, newest first.
func ListVerifications(svc vendorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.List(r.Context(), vendorsvc.ListInput{
			Status: query.Get("status"),
			Limit:  limit,
			Cursor: query.Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ResolveVerification approves or rejects a request. The reviewer is the
// signed-in admin.
func ResolveVerification(svc vendorsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload ResolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reviewer := middleware.EmailFromContext(r.Context())
		if reviewer == "" {
			reviewer = "admin"
		}

		result, err := svc.Resolve(r.Context(), id, vendorsvc.ResolveInput{
			Status:     payload.Status,
			AdminNotes: validators.SanitizeString(payload.AdminNotes, 2000),
			Reviewer:   reviewer,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
