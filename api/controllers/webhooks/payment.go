package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/freshmarket/grocery-backend/api/responses"
	gatewaywebhook "github.com/freshmarket/grocery-backend/internal/webhooks/gateway"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/security"
	"github.com/freshmarket/grocery-backend/pkg/types"
)

// Gateway webhook headers.
const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"
)

const maxWebhookBody = 1 << 20

// PaymentWebhookService applies verified gateway events.
type PaymentWebhookService interface {
	HandleEvent(ctx context.Context, event *gatewaywebhook.Event) error
}

// PaymentWebhookGuard dedupes deliveries.
type PaymentWebhookGuard interface {
	CheckAndMark(ctx context.Context, deliveryID string) (bool, error)
	Delete(ctx context.Context, deliveryID string) error
}

// PaymentWebhook reconciles gateway payment events against orders. Every
// verified delivery that does not need a retry is acknowledged with ok=true.
func PaymentWebhook(svc PaymentWebhookService, secret string, guard PaymentWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}
		if strings.TrimSpace(secret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "webhook secret not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Missing signature"))
			return
		}
		if !security.VerifyHMAC(secret, payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidSignature, "Invalid signature"))
			return
		}

		deliveryID := gatewaywebhook.DeliveryID(r.Header.Get(EventIDHeader), payload)
		if logg != nil {
			ctx = logg.WithField(ctx, "delivery_id", deliveryID)
		}

		var event gatewaywebhook.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "webhooks.payment.unparseable")
			}
			responses.WriteSuccess(w, types.Ack{OK: true})
			return
		}

		seen, err := guard.CheckAndMark(ctx, deliveryID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "webhook idempotency check failed"))
			return
		}
		if seen {
			if logg != nil {
				logg.Info(ctx, "webhooks.payment.duplicate")
			}
			responses.WriteSuccess(w, types.Ack{OK: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if delErr := guard.Delete(ctx, deliveryID); delErr != nil && logg != nil {
				logg.Error(ctx, "webhooks.payment.unmark_failed", delErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, types.Ack{OK: true})
	}
}
