package orders

import (
	"context"

	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines persistence operations for orders, their items and tracking rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProducts(ctx context.Context, ids []uint) ([]models.Product, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uint) (*models.Order, error)
	FindByGatewayRef(ctx context.Context, ref string) (*models.Order, error)
	TransitionStatus(ctx context.Context, id uint, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	EnsureLocation(ctx context.Context, orderID uint, status enums.DeliveryStatus) error
	FindLocation(ctx context.Context, orderID uint) (*models.OrderLocation, error)
	SaveLocation(ctx context.Context, loc *models.OrderLocation) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProducts(ctx context.Context, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Location").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByGatewayRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Location").
		Where("gateway_order_id = ?", ref).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionStatus moves the order from -> to only when the stored status still
// equals from. The boolean reports whether the row changed.
func (r *repository) TransitionStatus(ctx context.Context, id uint, from, to enums.OrderStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// EnsureLocation inserts the tracking row unless one already exists.
func (r *repository) EnsureLocation(ctx context.Context, orderID uint, status enums.DeliveryStatus) error {
	loc := models.OrderLocation{OrderID: orderID, Status: status}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(&loc).Error
}

func (r *repository) FindLocation(ctx context.Context, orderID uint) (*models.OrderLocation, error) {
	var loc models.OrderLocation
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&loc).Error; err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repository) SaveLocation(ctx context.Context, loc *models.OrderLocation) error {
	return r.db.WithContext(ctx).Save(loc).Error
}
