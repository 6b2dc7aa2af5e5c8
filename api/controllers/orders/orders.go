package orders

import (
	"context"
	"net/http"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	ordersvc "github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/internal/tracking"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the storefront checkout body. Amount is advisory.
type CreateOrderRequest struct {
	Cart          map[string]int   `json:"cart" validate:"required"`
	Address       string           `json:"address" validate:"max=500"`
	Name          string           `json:"name" validate:"max=200"`
	Phone         string           `json:"phone" validate:"omitempty,max=40,phone"`
	PaymentMethod string           `json:"paymentMethod"`
	Amount        *decimal.Decimal `json:"amount"`
}

// LocationService is the tracking surface used by the location handlers.
type LocationService interface {
	GetLocation(ctx context.Context, orderID uint) (*tracking.Result, error)
	UpdateLocation(ctx context.Context, orderID uint, input tracking.UpdateInput) (*tracking.Result, error)
}

// UpdateLocationRequest is a partial tracking update.
type UpdateLocationRequest struct {
	Latitude  *tracking.Coordinate `json:"latitude"`
	Longitude *tracking.Coordinate `json:"longitude"`
	Status    *string              `json:"status"`
}

// Create places an order priced from the catalog.
func Create(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload CreateOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateOrder(r.Context(), ordersvc.CreateOrderInput{
			Cart:          payload.Cart,
			Address:       validators.SanitizeString(payload.Address, 500),
			CustomerName:  validators.SanitizeString(payload.Name, 200),
			CustomerPhone: validators.SanitizeString(payload.Phone, 40),
			PaymentMethod: payload.PaymentMethod,
			ClientAmount:  payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// Detail returns one order by internal id or gateway reference. The name and
// phone query parameters restrict the lookup to the customer who placed it.
func Detail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		query := r.URL.Query()
		detail, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"), ordersvc.OwnershipCheck{
			Name:  query.Get("name"),
			Phone: query.Get("phone"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// Collect records payment of a cash on delivery order.
func Collect(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.MarkCollected(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, detail)
	}
}

// Location reports the delivery tracking row of an order.
func Location(svc LocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.GetLocation(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// UpdateLocation applies a courier update.
func UpdateLocation(svc LocationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "tracking service unavailable"))
			return
		}

		orderID, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload UpdateLocationRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateLocation(r.Context(), orderID, tracking.UpdateInput{
			Latitude:  payload.Latitude,
			Longitude: payload.Longitude,
			Status:    payload.Status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}
