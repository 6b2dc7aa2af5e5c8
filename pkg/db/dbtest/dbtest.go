// Package dbtest opens isolated in-memory sqlite databases with the full schema.
package dbtest

import (
	"testing"

	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated client whose database disappears with the test.
func New(t testing.TB, name string) *db.Client {
	t.Helper()
	dsn := "file:" + name + "_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.Wrap(conn)
}

// SeedProduct inserts a product with the given price and stock.
func SeedProduct(t testing.TB, client *db.Client, name, price string, stock int) models.Product {
	t.Helper()
	product := models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "Vegetables",
		Unit:     "1 kg",
	}
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

// ReloadProduct fetches the current product row.
func ReloadProduct(t testing.TB, client *db.Client, id uint) models.Product {
	t.Helper()
	var product models.Product
	if err := client.DB().First(&product, id).Error; err != nil {
		t.Fatalf("reload product %d: %v", id, err)
	}
	return product
}
