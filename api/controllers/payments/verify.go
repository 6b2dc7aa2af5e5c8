package payments

import (
	"context"
	"net/http"

	"github.com/freshmarket/grocery-backend/api/responses"
	"github.com/freshmarket/grocery-backend/api/validators"
	paymentsvc "github.com/freshmarket/grocery-backend/internal/payments"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
)

// Verifier confirms a checkout-widget payment.
type Verifier interface {
	Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*paymentsvc.Settlement, error)
}

// VerifyRequest mirrors the fields the checkout widget hands back. Presence is
// checked by the verifier so every missing-field case reads the same.
type VerifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Verified bool              `json:"verified"`
	OrderID  uint              `json:"internalOrderId,omitempty"`
	Status   enums.OrderStatus `json:"status,omitempty"`
}

// Verify checks the payment signature and settles the order.
func Verify(svc Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment verifier unavailable"))
			return
		}

		var payload VerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.Verify(r.Context(), payload.OrderID, payload.PaymentID, payload.Signature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := verifyResponse{Verified: true}
		if settlement != nil {
			resp.OrderID = settlement.OrderID
			resp.Status = settlement.Status
		}
		responses.WriteSuccess(w, resp)
	}
}
