package requests

import (
	"context"
	"net/http"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	requestsvc "github.com/freshmarket/grocery-backend/internal/requests"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

// Submit records a customer's interest in an out of stock product.
func Submit(svc requestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		var payload requestsvc.SubmitInput
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Submit(r.Context(), payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ListPending returns open requests for vendors.
func ListPending(svc requestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		list, err := svc.ListPending(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"requests": list})
	}
}

// MarkNotified moves a request to notified.
func MarkNotified(svc requestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return advance(svc, logg, requestsvc.Service.MarkNotified)
}

// MarkFulfilled closes a request.
func MarkFulfilled(svc requestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return advance(svc, logg, requestsvc.Service.MarkFulfilled)
}

func advance(svc requestsvc.Service, logg *logger.Logger, step func(requestsvc.Service, context.Context, uint) (*requestsvc.RequestDTO, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "requests service unavailable"))
			return
		}

		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := step(svc, r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, updated)
	}
}
