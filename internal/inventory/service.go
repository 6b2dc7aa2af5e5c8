package inventory

import (
	"context"
	stdErrors "errors"
	"fmt"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"gorm.io/gorm"
)

// DefaultLowStockThreshold applies when the configured threshold is not positive.
const DefaultLowStockThreshold = 10

// MaxLineQuantity caps a single cart or order line.
const MaxLineQuantity = 1000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service reserves and releases product stock.
type Service interface {
	Reserve(ctx context.Context, productID uint, qty int) (*ProductSnapshot, error)
	Release(ctx context.Context, productID uint, qty int) (*ProductSnapshot, error)
	BulkReserve(ctx context.Context, lines []Line) (*BulkResult, error)
	StockAlerts(ctx context.Context) ([]StockAlert, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	metrics   *metrics.Domain
	threshold int
}

// NewService wires the inventory ledger.
func NewService(repo Repository, tx txRunner, m *metrics.Domain, lowStockThreshold int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	return &service{
		repo:      repo,
		tx:        tx,
		metrics:   m,
		threshold: lowStockThreshold,
	}, nil
}

func (s *service) Reserve(ctx context.Context, productID uint, qty int) (*ProductSnapshot, error) {
	if err := validateQuantity(qty); err != nil {
		s.metrics.Reservation("reserve", metrics.OutcomeRejected)
		return nil, err
	}

	var snapshot *ProductSnapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := reserveOne(ctx, repo, productID, qty)
		if err != nil {
			return err
		}
		snap := snapshotFromModel(product)
		snapshot = &snap
		return nil
	})
	if err != nil {
		s.metrics.Reservation("reserve", outcomeFor(err))
		return nil, err
	}
	s.metrics.Reservation("reserve", metrics.OutcomeApplied)
	return snapshot, nil
}

// ReserveWithTx decrements stock inside a caller-owned transaction. Checkout
// uses it so a shortfall rolls back the whole order.
func ReserveWithTx(ctx context.Context, repo Repository, tx *gorm.DB, productID uint, qty int) error {
	if err := validateQuantity(qty); err != nil {
		return err
	}
	_, err := reserveOne(ctx, repo.WithTx(tx), productID, qty)
	return err
}

func reserveOne(ctx context.Context, repo Repository, productID uint, qty int) (*models.Product, error) {
	ok, err := repo.DecrementStock(ctx, productID, qty)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}

	product, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !ok {
		return nil, insufficientStock(product.Stock)
	}
	return product, nil
}

func (s *service) Release(ctx context.Context, productID uint, qty int) (*ProductSnapshot, error) {
	if err := validateQuantity(qty); err != nil {
		s.metrics.Reservation("release", metrics.OutcomeRejected)
		return nil, err
	}

	var snapshot *ProductSnapshot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.IncrementStock(ctx, productID, qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		product, err := repo.FindProduct(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		snap := snapshotFromModel(product)
		snapshot = &snap
		return nil
	})
	if err != nil {
		s.metrics.Reservation("release", outcomeFor(err))
		return nil, err
	}
	s.metrics.Reservation("release", metrics.OutcomeApplied)
	return snapshot, nil
}

func (s *service) BulkReserve(ctx context.Context, lines []Line) (*BulkResult, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}

	result := &BulkResult{Results: make([]LineResult, 0, len(lines))}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i, line := range lines {
			label := fmt.Sprintf("Item %d", i+1)
			if line.Malformed {
				result.Errors = append(result.Errors, label+": Invalid product_id or quantity")
				continue
			}
			if line.ProductID == 0 {
				result.Errors = append(result.Errors, label+": product_id is required")
				continue
			}
			if err := validateQuantity(line.Quantity); err != nil {
				result.Errors = append(result.Errors, label+": "+pkgerrors.As(err).Message())
				continue
			}

			product, err := reserveOne(ctx, repo, line.ProductID, line.Quantity)
			if err != nil {
				typed := pkgerrors.As(err)
				switch {
				case typed != nil && typed.Code() == pkgerrors.CodeNotFound:
					result.Errors = append(result.Errors, label+": Product not found")
				case typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock:
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", label, typed.Message()))
				default:
					return err
				}
				continue
			}

			result.Results = append(result.Results, LineResult{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Product:   snapshotFromModel(product),
			})
		}
		return nil
	})
	if err != nil {
		s.metrics.Reservation("bulk_reserve", metrics.OutcomeFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bulk reservation failed")
	}

	result.ItemsAdded = len(result.Results)
	result.PartialSuccess = len(result.Errors) > 0
	outcome := metrics.OutcomeApplied
	if result.ItemsAdded == 0 {
		outcome = metrics.OutcomeRejected
	}
	s.metrics.Reservation("bulk_reserve", outcome)
	return result, nil
}

func (s *service) StockAlerts(ctx context.Context) ([]StockAlert, error) {
	products, err := s.repo.ListBelowThreshold(ctx, s.threshold)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock products")
	}

	alerts := make([]StockAlert, 0, len(products))
	for _, p := range products {
		alert := StockAlert{
			ProductID:   p.ID,
			ProductName: p.Name,
			Stock:       p.Stock,
		}
		if p.Stock == 0 {
			alert.Type = AlertOutOfStock
			alert.Priority = PriorityHigh
			alert.Message = fmt.Sprintf("%s is out of stock", p.Name)
		} else {
			alert.Type = AlertLowStock
			alert.Priority = PriorityMedium
			alert.Message = fmt.Sprintf("%s is running low (%d remaining)", p.Name, p.Stock)
		}
		alert.ID = fmt.Sprintf("%s-%d", alert.Type, p.ID)
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func validateQuantity(qty int) error {
	switch {
	case qty <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be positive")
	case qty > MaxLineQuantity:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Quantity must be at most %d", MaxLineQuantity))
	}
	return nil
}

func insufficientStock(available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("Insufficient stock. Available: %d", available)).
		WithDetails(map[string]any{"available": available})
}

func outcomeFor(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeInternal) {
		return metrics.OutcomeFailed
	}
	return metrics.OutcomeRejected
}
