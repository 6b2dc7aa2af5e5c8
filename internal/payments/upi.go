package payments

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UPIIntent is a upi://pay link for one order plus a scannable QR image URL.
type UPIIntent struct {
	OrderRef   string          `json:"order_id"`
	PayeeVPA   string          `json:"upi_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	IntentURI  string          `json:"upi_string"`
	QRImageURL string          `json:"qr_url"`
}

// UPIIssuer builds collect intents. The amount always comes from the stored
// order total; callers only name the order.
type UPIIssuer struct {
	repo     orders.Repository
	vpa      string
	name     string
	qrBase   string
	currency string
}

func NewUPIIssuer(repo orders.Repository, cfg config.PaymentsConfig) (*UPIIssuer, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	vpa := strings.TrimSpace(cfg.UPIPayeeVPA)
	if !strings.Contains(vpa, "@") {
		return nil, fmt.Errorf("upi payee vpa %q is not a valid address", vpa)
	}
	return &UPIIssuer{
		repo:     repo,
		vpa:      vpa,
		name:     strings.TrimSpace(cfg.UPIPayeeName),
		qrBase:   strings.TrimSpace(cfg.UPIQRBaseURL),
		currency: cfg.NormalizedCurrency(),
	}, nil
}

// Issue returns the intent for an unpaid order, looked up by its public
// reference or internal id.
func (u *UPIIssuer) Issue(ctx context.Context, orderRef string) (*UPIIntent, error) {
	orderRef = strings.TrimSpace(orderRef)
	if orderRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_id is required")
	}
	order, err := u.findOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusCreated {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if !order.Total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid amount")
	}

	ref := orderRef
	if order.GatewayOrderID != nil && *order.GatewayOrderID != "" {
		ref = *order.GatewayOrderID
	}
	params := url.Values{}
	params.Set("pa", u.vpa)
	if u.name != "" {
		params.Set("pn", u.name)
	}
	params.Set("am", order.Total.StringFixed(2))
	params.Set("cu", u.currency)
	params.Set("tn", "Order "+ref)
	params.Set("tr", ref)
	intent := "upi://pay?" + strings.ReplaceAll(params.Encode(), "+", "%20")

	return &UPIIntent{
		OrderRef:   ref,
		PayeeVPA:   u.vpa,
		Amount:     order.Total,
		Currency:   u.currency,
		IntentURI:  intent,
		QRImageURL: u.qrBase + url.QueryEscape(intent),
	}, nil
}

func (u *UPIIssuer) findOrder(ctx context.Context, ref string) (*models.Order, error) {
	order, err := u.repo.FindByGatewayRef(ctx, ref)
	if err == nil {
		return order, nil
	}
	if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil && id > 0 {
		order, err = u.repo.FindByID(ctx, uint(id))
		if err == nil {
			return order, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
}
