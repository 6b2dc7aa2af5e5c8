package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freshmarket/grocery-backend/internal/users"
	"github.com/freshmarket/grocery-backend/internal/vendors"
	"github.com/freshmarket/grocery-backend/pkg/config"
	"github.com/freshmarket/grocery-backend/pkg/db"
	"github.com/freshmarket/grocery-backend/pkg/db/models"
	"github.com/freshmarket/grocery-backend/pkg/enums"
	"github.com/freshmarket/grocery-backend/pkg/logger"
	"github.com/freshmarket/grocery-backend/pkg/security"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Entry is one row of the seeding report.
type Entry struct {
	Kind   string
	Name   string
	Action string
}

const (
	ActionCreated = "created"
	ActionSkipped = "skipped"
)

type catalogItem struct {
	name     string
	price    string
	unit     string
	category string
	stock    int
	image    string
}

var catalog = []catalogItem{
	{"Fresh Tomatoes", "40", "per kg", "vegetables", 25, "🍅"},
	{"Organic Spinach", "30", "per bunch", "vegetables", 15, "🥬"},
	{"Sweet Bananas", "60", "per dozen", "fruits", 20, "🍌"},
	{"Fresh Apples", "120", "per kg", "fruits", 18, "🍎"},
	{"Whole Milk", "65", "per litre", "dairy", 30, "🥛"},
	{"Greek Yogurt", "45", "per cup", "dairy", 12, "🥄"},
	{"Basmati Rice", "85", "per kg", "staples", 50, "🌾"},
	{"Wheat Flour", "42", "per kg", "staples", 35, "🌾"},
}

type demoUser struct {
	email    string
	password string
	role     enums.UserRole
}

var demoUsers = []demoUser{
	{"customer@test.com", "test123", enums.UserRoleCustomer},
	{"vendor@test.com", "test123", enums.UserRoleVendor},
}

// Options controls what Run seeds.
type Options struct {
	Seed     config.SeedConfig
	Password config.PasswordConfig
}

// Run seeds the catalog (only into an empty products table), the admin account
// and, when enabled, demo users. It is safe to run repeatedly.
func Run(ctx context.Context, client *db.Client, opts Options, logg *logger.Logger) ([]Entry, error) {
	if client == nil {
		return nil, fmt.Errorf("db client is required")
	}

	var report []Entry
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		entries, err := seedProducts(ctx, tx)
		if err != nil {
			return err
		}
		report = append(report, entries...)

		userRepo := users.NewRepository(tx)
		entry, err := ensureUser(ctx, userRepo, opts.Seed.AdminEmail, opts.Seed.AdminPassword, enums.UserRoleAdmin, opts.Password)
		if err != nil {
			return err
		}
		report = append(report, entry)

		if !opts.Seed.DemoUsers {
			return nil
		}
		verificationRepo := vendors.NewRepository(tx)
		for _, demo := range demoUsers {
			entry, err := ensureUser(ctx, userRepo, demo.email, demo.password, demo.role, opts.Password)
			if err != nil {
				return err
			}
			report = append(report, entry)
			if demo.role == enums.UserRoleVendor {
				if err := ensureApproved(ctx, verificationRepo, demo.email); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if logg != nil {
		created := 0
		for _, e := range report {
			if e.Action == ActionCreated {
				created++
			}
		}
		logg.Info(logg.WithField(ctx, "created", created), "seed.completed")
	}
	return report, nil
}

func seedProducts(ctx context.Context, tx *gorm.DB) ([]Entry, error) {
	var count int64
	if err := tx.WithContext(ctx).Model(&models.Product{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return []Entry{{Kind: "products", Name: fmt.Sprintf("%d existing", count), Action: ActionSkipped}}, nil
	}

	entries := make([]Entry, 0, len(catalog))
	for _, item := range catalog {
		image := item.image
		product := models.Product{
			Name:     item.name,
			Price:    decimal.RequireFromString(item.price),
			Unit:     item.unit,
			Category: item.category,
			Stock:    item.stock,
			Image:    &image,
		}
		if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
			return nil, fmt.Errorf("seed product %q: %w", item.name, err)
		}
		entries = append(entries, Entry{Kind: "product", Name: item.name, Action: ActionCreated})
	}
	return entries, nil
}

func ensureUser(ctx context.Context, repo *users.Repository, email, password string, role enums.UserRole, cfg config.PasswordConfig) (Entry, error) {
	entry := Entry{Kind: string(role), Name: users.NormalizeEmail(email)}
	exists, err := repo.ExistsByEmail(ctx, email)
	if err != nil {
		return entry, fmt.Errorf("lookup %s: %w", email, err)
	}
	if exists {
		entry.Action = ActionSkipped
		return entry, nil
	}

	hash, err := security.HashPassword(password, cfg)
	if err != nil {
		return entry, fmt.Errorf("hash password for %s: %w", email, err)
	}
	if _, err := repo.Create(ctx, users.CreateUserDTO{Email: email, PasswordHash: hash, Role: role}); err != nil {
		return entry, fmt.Errorf("create %s: %w", email, err)
	}
	entry.Action = ActionCreated
	return entry, nil
}

func ensureApproved(ctx context.Context, repo vendors.Repository, email string) error {
	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("lookup verification %s: %w", email, err)
	}
	now := time.Now().UTC()
	reviewer := "seed"
	return repo.Create(ctx, &models.VendorVerification{
		VendorEmail: email,
		VendorName:  "Demo Vendor",
		StoreName:   "Demo Store",
		Status:      enums.VerificationStatusApproved,
		ReviewedAt:  &now,
		ReviewedBy:  &reviewer,
	})
}
