// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-pos/models"
)

const Password = "secret123"

// NewDB opens a private in-memory SQLite database with the full schema.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Fixture is a company with one brand, one outlet and an owner.
type Fixture struct {
	Company *models.Tenant
	Brand   *models.Tenant
	Outlet  *models.Tenant
	Owner   *models.User
}

// Seed creates a company tree. The outlet charges 10% tax.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{}

	f.Company = &models.Tenant{Name: "Acme Foods", Type: models.TenantCompany, IsActive: true}
	mustCreate(t, db, f.Company)
	f.Company.RootID = f.Company.ID
	mustSave(t, db, f.Company)

	f.Brand = &models.Tenant{Name: "Acme Grill", Type: models.TenantBrand, ParentID: &f.Company.ID, RootID: f.Company.ID, IsActive: true}
	mustCreate(t, db, f.Brand)

	f.Outlet = &models.Tenant{
		Name:     "Acme Grill Downtown",
		Type:     models.TenantOutlet,
		ParentID: &f.Brand.ID,
		RootID:   f.Company.ID,
		TaxRate:  decimal.RequireFromString("0.10"),
		IsActive: true,
	}
	mustCreate(t, db, f.Outlet)

	f.Owner = User(t, db, f.Company.ID, nil, models.RoleOwner, "owner@acme.test")
	return f
}

// User creates an active user with Password.
func User(t *testing.T, db *gorm.DB, tenantID uint, outletID *uint, role, email string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{
		TenantID: tenantID,
		OutletID: outletID,
		Name:     role,
		Email:    email,
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	mustCreate(t, db, u)
	return u
}

// Dish creates an available dish in the outlet. stock < 0 means untracked.
func Dish(t *testing.T, db *gorm.DB, outlet *models.Tenant, name, price, section string, stock int) *models.Dish {
	t.Helper()
	d := &models.Dish{
		TenantID:       outlet.RootID,
		OutletID:       outlet.ID,
		Name:           name,
		Price:          decimal.RequireFromString(price),
		KitchenSection: section,
		IsAvailable:    true,
	}
	if stock >= 0 {
		d.TrackStock = true
		d.Stock = stock
	}
	mustCreate(t, db, d)
	return d
}

func Table(t *testing.T, db *gorm.DB, outlet *models.Tenant, number string) *models.Table {
	t.Helper()
	tbl := &models.Table{OutletID: outlet.ID, Number: number, Capacity: 4, Status: models.TableAvailable}
	mustCreate(t, db, tbl)
	return tbl
}

func mustCreate(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func mustSave(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Save(v).Error; err != nil {
		t.Fatalf("save %T: %v", v, err)
	}
}
