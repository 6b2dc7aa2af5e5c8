package payments

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"gorm.io/gorm"
)

// Settlement sources.
const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Settlement reports what a settlement call did to the order.
type Settlement struct {
	OrderID uint
	Status  enums.OrderStatus
	// Outcome is one of metrics.OutcomeApplied, OutcomeNoop or OutcomeIgnored.
	Outcome string
}

// Settler owns the payment-driven order transitions shared by the synchronous
// verifier and the webhook reconciler.
type Settler struct {
	repo    orders.Repository
	tx      txRunner
	logg    *logger.Logger
	metrics *metrics.Domain
}

// NewSettler builds the shared settlement component.
func NewSettler(repo orders.Repository, tx txRunner, logg *logger.Logger, m *metrics.Domain) (*Settler, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Settler{repo: repo, tx: tx, logg: logg, metrics: m}, nil
}

// MarkPaid moves a Created order to Paid and records the payment id. Already
// settled orders are left untouched. Unknown orders are ignored.
func (s *Settler) MarkPaid(ctx context.Context, source, gatewayOrderID, paymentID string) (*Settlement, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	paymentID = strings.TrimSpace(paymentID)

	result := &Settlement{Outcome: metrics.OutcomeIgnored}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByGatewayRef(ctx, gatewayOrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for settlement")
		}
		result.OrderID = order.ID
		result.Status = order.Status

		var updates map[string]any
		if paymentID != "" {
			updates = map[string]any{"payment_id": paymentID}
		}
		changed, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusPaid, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
		}
		switch {
		case changed:
			result.Status = enums.OrderStatusPaid
			result.Outcome = metrics.OutcomeApplied
		case order.Status.IsSettled():
			result.Outcome = metrics.OutcomeNoop
		default:
			// Payment Failed is terminal.
			result.Outcome = metrics.OutcomeIgnored
			return nil
		}

		if err := repo.EnsureLocation(ctx, order.ID, enums.DeliveryStatusPreparing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "initialise order tracking")
		}
		return nil
	})
	if err != nil {
		s.metrics.Settlement(source, enums.OrderStatusPaid.String(), metrics.OutcomeFailed)
		return nil, err
	}

	s.metrics.Settlement(source, enums.OrderStatusPaid.String(), result.Outcome)
	s.log(ctx, source, "payments.mark_paid", gatewayOrderID, result)
	return result, nil
}

// MarkFailed moves a Created order to Payment Failed. Settled orders are never
// downgraded.
func (s *Settler) MarkFailed(ctx context.Context, source, gatewayOrderID string) (*Settlement, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)

	result := &Settlement{Outcome: metrics.OutcomeIgnored}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByGatewayRef(ctx, gatewayOrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order for settlement")
		}
		result.OrderID = order.ID
		result.Status = order.Status

		if order.Status == enums.OrderStatusPaymentFailed {
			result.Outcome = metrics.OutcomeNoop
			return nil
		}
		if order.Status != enums.OrderStatusCreated {
			return nil
		}

		changed, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusPaymentFailed, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order failed")
		}
		if changed {
			result.Status = enums.OrderStatusPaymentFailed
			result.Outcome = metrics.OutcomeApplied
		}
		return nil
	})
	if err != nil {
		s.metrics.Settlement(source, enums.OrderStatusPaymentFailed.String(), metrics.OutcomeFailed)
		return nil, err
	}

	s.metrics.Settlement(source, enums.OrderStatusPaymentFailed.String(), result.Outcome)
	s.log(ctx, source, "payments.mark_failed", gatewayOrderID, result)
	return result, nil
}

func (s *Settler) log(ctx context.Context, source, msg, gatewayOrderID string, result *Settlement) {
	fields := map[string]any{
		"source":  source,
		"outcome": result.Outcome,
	}
	if result.OrderID != 0 {
		fields["order_id"] = result.OrderID
		fields["status"] = result.Status.String()
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderRef(ctx, gatewayOrderID), fields)
	if result.Outcome == metrics.OutcomeIgnored {
		s.logg.Warn(logCtx, msg+".ignored")
		return
	}
	s.logg.Info(logCtx, msg)
}
