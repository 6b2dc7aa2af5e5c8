package cart

import (
	"net/http"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	"github.com/freshmarket/grocery-backend/internal/inventory"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

// Add reserves stock for one product.
func Add(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload LineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Reserve(r.Context(), payload.ProductID, payload.quantity())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lineResponse{Message: "Item added to cart", Product: product})
	}
}

// Remove returns stock for one product.
func Remove(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload LineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Release(r.Context(), payload.ProductID, payload.quantity())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, lineResponse{Message: "Item removed from cart", Product: product})
	}
}

// BulkAdd reserves each line on its own. A batch where every line failed
// validation still answers 200 with the per-line errors.
func BulkAdd(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var payload BulkAddRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.BulkReserve(r.Context(), toLines(payload.Items))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// StockNotifications lists products running low on stock.
func StockNotifications(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		alerts, err := svc.StockAlerts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"notifications": alerts})
	}
}
