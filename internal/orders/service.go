package orders

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/freshmarket/grocery-backend/internal/inventory"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	pkgerrors "github.com/freshmarket/grocery-backend/pkg/errors"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	refPrefixCOD     = "cod"
	refPrefixTest    = "test"
	refPrefixReceipt = "rcpt"
)

var (
	hundred = decimal.NewFromInt(100)
	// maxOrderTotal is the largest value numeric(10,2) holds.
	maxOrderTotal = decimal.RequireFromString("99999999.99")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway opens payment sessions on the external payment provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	KeyID() string
}

// Options tune checkout behavior.
type Options struct {
	Currency          string
	AllowTestPayments bool
	// ReserveStock decrements stock for every line inside the checkout transaction.
	ReserveStock bool
}

// Service is the order ledger.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	GetOrder(ctx context.Context, ref string, check OwnershipCheck) (*OrderDetail, error)
	MarkCollected(ctx context.Context, orderID uint) (*OrderDetail, error)
}

type service struct {
	repo      Repository
	inventory inventory.Repository
	tx        txRunner
	gateway   Gateway
	opts      Options
	logg      *logger.Logger
	metrics   *metrics.Domain
	now       func() time.Time
}

// NewService builds the order ledger. gateway may be nil when online payments
// are not configured; inventoryRepo is only required when opts.ReserveStock is set.
func NewService(repo Repository, inventoryRepo inventory.Repository, tx txRunner, gateway Gateway, opts Options, logg *logger.Logger, m *metrics.Domain) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.ReserveStock && inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required when reserving stock at checkout")
	}
	if strings.TrimSpace(opts.Currency) == "" {
		opts.Currency = "INR"
	}
	return &service{
		repo:      repo,
		inventory: inventoryRepo,
		tx:        tx,
		gateway:   gateway,
		opts:      opts,
		logg:      logg,
		metrics:   m,
		now:       time.Now,
	}, nil
}

type cartLine struct {
	productID uint
	qty       int
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	lines, err := parseCart(input.Cart)
	if err != nil {
		return nil, err
	}
	method, err := enums.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod must be cod or online")
	}

	items, total, err := s.priceCart(ctx, lines)
	if err != nil {
		return nil, err
	}
	if total.GreaterThan(maxOrderTotal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order total exceeds the allowed maximum").
			WithDetails(map[string]any{"max_total": maxOrderTotal.String()})
	}
	if input.ClientAmount != nil && !input.ClientAmount.Equal(total) && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"client_amount": input.ClientAmount.String(),
			"server_amount": total.String(),
		})
		s.logg.Warn(logCtx, "orders.client_amount_mismatch")
	}

	order := &models.Order{
		Total:         total,
		PaymentMethod: method,
		Address:       strings.TrimSpace(input.Address),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CustomerPhone: strings.TrimSpace(input.CustomerPhone),
	}
	result := &CreateOrderResult{
		Amount:        total,
		Currency:      s.opts.Currency,
		PaymentMethod: method,
	}
	withLocation := false

	switch {
	case method == enums.PaymentMethodCOD:
		order.Status = enums.OrderStatusCreated
		order.GatewayOrderID = stringPtr(s.reference(refPrefixCOD))
		withLocation = true
	case s.gateway != nil:
		minor := total.Mul(hundred).Round(0).IntPart()
		ref, err := s.gateway.CreateOrder(ctx, minor, s.opts.Currency, s.reference(refPrefixReceipt))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not create payment order")
		}
		order.Status = enums.OrderStatusCreated
		order.GatewayOrderID = stringPtr(ref)
		result.KeyID = s.gateway.KeyID()
	case s.opts.AllowTestPayments:
		order.Status = enums.OrderStatusPaid
		order.GatewayOrderID = stringPtr(s.reference(refPrefixTest))
		result.KeyID = "TEST"
		result.TestMode = true
		withLocation = true
	default:
		return nil, pkgerrors.New(pkgerrors.CodePaymentsDisabled, "payments disabled on server")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if s.opts.ReserveStock {
			for _, line := range lines {
				if err := inventory.ReserveWithTx(ctx, s.inventory, tx, line.productID, line.qty); err != nil {
					return err
				}
			}
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order items")
		}
		if withLocation {
			if err := repo.EnsureLocation(ctx, order.ID, enums.DeliveryStatusPreparing); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "initialise order tracking")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderCreated(method.String(), order.Status.String())
	logCtx := s.logg.WithOrderRef(s.logg.WithOrderID(ctx, order.ID), *order.GatewayOrderID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_method": method.String(),
		"status":         order.Status.String(),
		"amount":         total.String(),
	})
	s.logg.Info(logCtx, "orders.created")

	result.OrderRef = *order.GatewayOrderID
	result.InternalOrderID = order.ID
	result.Status = order.Status
	return result, nil
}

func parseCart(cart map[string]int) ([]cartLine, error) {
	if len(cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cart is empty")
	}
	lines := make([]cartLine, 0, len(cart))
	for rawID, qty := range cart {
		id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
		if err != nil || id == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid cart format").
				WithDetails(map[string]any{"product_id": rawID})
		}
		if qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be positive").
				WithDetails(map[string]any{"product_id": rawID})
		}
		if qty > inventory.MaxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("Quantity must be at most %d", inventory.MaxLineQuantity)).
				WithDetails(map[string]any{"product_id": rawID})
		}
		lines = append(lines, cartLine{productID: uint(id), qty: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].productID < lines[j].productID })
	return lines, nil
}

// priceCart resolves current prices; item snapshots and the total use the same reads.
func (s *service) priceCart(ctx context.Context, lines []cartLine) ([]models.OrderItem, decimal.Decimal, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.productID)
	}
	products, err := s.repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart products")
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, ok := byID[line.productID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Product %d not found", line.productID))
		}
		item := models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.qty,
			Price:       product.Price,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, total, nil
}

func (s *service) GetOrder(ctx context.Context, ref string, check OwnershipCheck) (*OrderDetail, error) {
	order, err := s.findByRef(ctx, strings.TrimSpace(ref))
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(check.Name)
	phone := strings.TrimSpace(check.Phone)
	if name != "" || phone != "" {
		nameMatches := name != "" && order.CustomerName != "" && strings.EqualFold(name, order.CustomerName)
		phoneMatches := phone != "" && order.CustomerPhone != "" && phone == order.CustomerPhone
		if !nameMatches && !phoneMatches {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Unauthorized to view this order")
		}
	}
	return detailFromModel(order), nil
}

func (s *service) findByRef(ctx context.Context, ref string) (*models.Order, error) {
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference is required")
	}
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil && id > 0 {
		order, err := s.repo.FindByID(ctx, uint(id))
		if err == nil {
			return order, nil
		}
		if !stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
	}
	order, err := s.repo.FindByGatewayRef(ctx, ref)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) MarkCollected(ctx context.Context, orderID uint) (*OrderDetail, error) {
	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.PaymentMethod != enums.PaymentMethodCOD {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only cash on delivery orders can be collected").
				WithDetails(map[string]any{"payment_method": order.PaymentMethod})
		}
		ok, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusCreated, enums.OrderStatusPaid, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order collected")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}
		if err := repo.EnsureLocation(ctx, order.ID, enums.DeliveryStatusPreparing); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "initialise order tracking")
		}
		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			s.metrics.Settlement("cod_collect", enums.OrderStatusPaid.String(), metrics.OutcomeRejected)
		}
		return nil, err
	}
	s.metrics.Settlement("cod_collect", enums.OrderStatusPaid.String(), metrics.OutcomeApplied)
	return detailFromModel(updated), nil
}

func (s *service) reference(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%d_%s", prefix, s.now().Unix(), suffix)
}

func stringPtr(v string) *string {
	return &v
}
