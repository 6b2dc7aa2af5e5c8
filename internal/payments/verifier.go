package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"github.com/freshmarket/grocery-backend/pkg/security"
)

// Verifier confirms checkout-widget payments using the gateway's
// order|payment HMAC signature.
type Verifier struct {
	keySecret string
	settler   *Settler
	metrics   *metrics.Domain
}

// NewVerifier builds a verifier. An empty key secret leaves verification disabled.
func NewVerifier(keySecret string, settler *Settler, m *metrics.Domain) (*Verifier, error) {
	if settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	return &Verifier{keySecret: strings.TrimSpace(keySecret), settler: settler, metrics: m}, nil
}

// Verify checks the signature in constant time and settles the order on match.
func (v *Verifier) Verify(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*Settlement, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	signature = strings.TrimSpace(signature)

	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Missing parameters")
	}
	if v.keySecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentsDisabled, "payments disabled on server")
	}

	payload := security.PaymentSignaturePayload(gatewayOrderID, gatewayPaymentID)
	if !security.VerifyHMAC(v.keySecret, payload, signature) {
		v.metrics.Settlement(SourceVerify, enums.OrderStatusPaid.String(), metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "Invalid signature")
	}
	return v.settler.MarkPaid(ctx, SourceVerify, gatewayOrderID, gatewayPaymentID)
}
