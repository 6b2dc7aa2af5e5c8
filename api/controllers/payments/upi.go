package payments

import (
	"context"
	"net/http"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	paymentsvc "github.com/freshmarket/grocery-backend/internal/payments"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

// UPIIssuer builds UPI collect intents for unpaid orders.
type UPIIssuer interface {
	Issue(ctx context.Context, orderRef string) (*paymentsvc.UPIIntent, error)
}

// UPIQRRequest names the order to pay. Any client-side amount is ignored.
type UPIQRRequest struct {
	OrderID string `json:"order_id" validate:"required,max=64"`
	Amount  any    `json:"amount,omitempty"`
}

// UPIQR returns the upi://pay string and QR image URL for an order.
func UPIQR(svc UPIIssuer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upi payments unavailable"))
			return
		}

		var payload UPIQRRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intent, err := svc.Issue(r.Context(), payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}
