package tracking

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/orders"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UpdateInput is a partial location update; nil fields are left unchanged.
type UpdateInput struct {
	Latitude  *Coordinate
	Longitude *Coordinate
	Status    *string
}

// Result is the tracking view of one order. Location is nil until the first update.
type Result struct {
	OrderID  uint                 `json:"order_id"`
	Location *orders.LocationView `json:"location"`
}

// Service is the delivery tracking state machine.
type Service struct {
	repo orders.Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo orders.Repository, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *Service) GetLocation(ctx context.Context, orderID uint) (*Result, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	result := &Result{OrderID: order.ID}
	if order.Location != nil {
		result.Location = orders.LocationFromModel(order.Location)
	}
	return result, nil
}

func (s *Service) UpdateLocation(ctx context.Context, orderID uint, input UpdateInput) (*Result, error) {
	var (
		lat, lng   *float64
		nextStatus *enums.DeliveryStatus
	)
	if input.Latitude.IsSet() {
		v, err := input.Latitude.parse("latitude", 90)
		if err != nil {
			return nil, err
		}
		lat = &v
	}
	if input.Longitude.IsSet() {
		v, err := input.Longitude.parse("longitude", 180)
		if err != nil {
			return nil, err
		}
		lng = &v
	}
	if input.Status != nil && strings.TrimSpace(*input.Status) != "" {
		parsed, err := enums.ParseDeliveryStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid status").
				WithDetails(map[string]any{"field": "status", "value": *input.Status})
		}
		nextStatus = &parsed
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}

		loc := order.Location
		if loc == nil {
			loc = &models.OrderLocation{OrderID: order.ID, Status: enums.DeliveryStatusPreparing}
		}
		if lat != nil {
			loc.Latitude = lat
		}
		if lng != nil {
			loc.Longitude = lng
		}
		if nextStatus != nil {
			if !loc.Status.CanAdvanceTo(*nextStatus) {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("cannot move tracking from %s to %s", loc.Status, *nextStatus)).
					WithDetails(map[string]any{"current": loc.Status, "requested": *nextStatus})
			}
			loc.Status = *nextStatus
		}
		if err := repo.SaveLocation(ctx, loc); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save order location")
		}

		if nextStatus != nil {
			if err := s.syncOrderStatus(ctx, repo, order, *nextStatus); err != nil {
				return err
			}
		}

		result = &Result{OrderID: order.ID, Location: orders.LocationFromModel(loc)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// syncOrderStatus advances the order when the delivery milestone implies a
// legal order transition; anything else is logged and skipped.
func (s *Service) syncOrderStatus(ctx context.Context, repo orders.Repository, order *models.Order, delivery enums.DeliveryStatus) error {
	target, ok := delivery.OrderStatus()
	if !ok || order.Status == target {
		return nil
	}
	if !order.Status.CanTransitionTo(target) {
		if s.logg != nil {
			logCtx := s.logg.WithOrderID(ctx, order.ID)
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"order_status":    order.Status.String(),
				"delivery_status": delivery.String(),
			})
			s.logg.Warn(logCtx, "tracking.order_sync_skipped")
		}
		return nil
	}
	if _, err := repo.TransitionStatus(ctx, order.ID, order.Status, target, nil); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sync order status")
	}
	return nil
}

func mapLoadError(err error) error {
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}
