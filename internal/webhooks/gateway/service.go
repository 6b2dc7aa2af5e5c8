package gatewaywebhook

import (
	"context"
	"errors"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/payments"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
)

// Gateway event names handled by the reconciler.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// Event is the subset of the gateway webhook body used for reconciliation.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity is the payment object nested in payment.* events.
type PaymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type settler interface {
	MarkPaid(ctx context.Context, source, gatewayOrderID, paymentID string) (*payments.Settlement, error)
	MarkFailed(ctx context.Context, source, gatewayOrderID string) (*payments.Settlement, error)
}

// Service applies verified gateway events to orders.
type Service struct {
	settler settler
	logg    *logger.Logger
	metrics *metrics.Domain
}

func NewService(s settler, logg *logger.Logger, m *metrics.Domain) (*Service, error) {
	if s == nil {
		return nil, errors.New("settler required")
	}
	return &Service{settler: s, logg: logg, metrics: m}, nil
}

// HandleEvent returns an error only for failures the gateway should retry.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		s.metrics.WebhookEvent("unknown", metrics.OutcomeIgnored)
		return nil
	}
	name := strings.TrimSpace(event.Event)
	entity := event.Payload.Payment.Entity
	orderRef := strings.TrimSpace(entity.OrderID)

	var (
		result *payments.Settlement
		err    error
	)
	switch name {
	case EventPaymentCaptured:
		if orderRef == "" {
			break
		}
		result, err = s.settler.MarkPaid(ctx, payments.SourceWebhook, orderRef, entity.ID)
	case EventPaymentFailed:
		if orderRef == "" {
			break
		}
		result, err = s.settler.MarkFailed(ctx, payments.SourceWebhook, orderRef)
	default:
		s.metrics.WebhookEvent(name, metrics.OutcomeIgnored)
		s.debug(ctx, name, "webhooks.payment.unhandled_event")
		return nil
	}
	if err != nil {
		s.metrics.WebhookEvent(name, metrics.OutcomeFailed)
		return err
	}

	outcome := metrics.OutcomeIgnored
	if result != nil {
		outcome = result.Outcome
	}
	s.metrics.WebhookEvent(name, outcome)
	return nil
}

func (s *Service) debug(ctx context.Context, event, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithField(ctx, "event", event), msg)
}
