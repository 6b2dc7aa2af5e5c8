package requests

import (
	"context"
	"errors"
	"strings"

	"github.com/freshmarket/grocery-backend/internal/inventory"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"gorm.io/gorm"
)

// Service manages back-order requests raised against out of stock products.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error)
	ListPending(ctx context.Context) ([]RequestDTO, error)
	MarkNotified(ctx context.Context, id uint) (*RequestDTO, error)
	MarkFulfilled(ctx context.Context, id uint) (*RequestDTO, error)
}

type service struct {
	repo     Repository
	products inventory.Repository
	logg     *logger.Logger
}

// NewService wires the requests service.
func NewService(repo Repository, products inventory.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	}
	if products == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	return &service{repo: repo, products: products, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*RequestDTO, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	if email == "" || name == "" || input.ProductID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Missing required fields")
	}
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be positive")
	}

	product, err := s.products.FindProduct(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.Stock > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Product is not out of stock").
			WithDetails(map[string]any{"available": product.Stock})
	}

	req := &models.CustomerRequest{
		CustomerEmail: email,
		CustomerName:  name,
		ProductID:     product.ID,
		ProductName:   product.Name,
		Quantity:      qty,
		Status:        enums.RequestStatusPending,
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create customer request")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"request_id": req.ID, "product_id": product.ID})
		s.logg.Info(logCtx, "requests.submitted")
	}
	dto := fromModel(*req)
	return &dto, nil
}

func (s *service) ListPending(ctx context.Context) ([]RequestDTO, error) {
	rows, err := s.repo.ListByStatus(ctx, enums.RequestStatusPending)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customer requests")
	}
	out := make([]RequestDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (s *service) MarkNotified(ctx context.Context, id uint) (*RequestDTO, error) {
	return s.advance(ctx, id, enums.RequestStatusNotified)
}

func (s *service) MarkFulfilled(ctx context.Context, id uint) (*RequestDTO, error) {
	return s.advance(ctx, id, enums.RequestStatusFulfilled)
}

func (s *service) advance(ctx context.Context, id uint, next enums.RequestStatus) (*RequestDTO, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer request")
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, transitionError(current.Status, next)
	}

	updated, err := s.repo.TransitionStatus(ctx, id, current.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update customer request")
	}
	if !updated {
		// lost a race with another vendor; report against the fresh status
		fresh, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload customer request")
		}
		return nil, transitionError(fresh.Status, next)
	}

	current.Status = next
	dto := fromModel(*current)
	return &dto, nil
}

func transitionError(from, to enums.RequestStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "request cannot move from "+string(from)+" to "+string(to)).
		WithDetails(map[string]any{"from": from, "to": to})
}
