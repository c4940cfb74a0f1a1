package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type CustomerInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

type CustomerService struct {
	DB *gorm.DB
}

func NewCustomerService(db *gorm.DB) *CustomerService {
	return &CustomerService{DB: db}
}

// FindOrCreate looks the customer up by phone inside the company and creates
// it when missing. tx is the caller's transaction.
func (s *CustomerService) FindOrCreate(tx *gorm.DB, tenantID uint, in CustomerInput) (*models.Customer, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return nil, utils.NewValidationError("customer phone is required")
	}

	var customer models.Customer
	err := tx.Where("tenant_id = ? AND phone = ?", tenantID, phone).First(&customer).Error
	switch {
	case err == nil:
		if customer.Name == "" && in.Name != "" {
			customer.Name = in.Name
			if err := tx.Model(&customer).Update("name", in.Name).Error; err != nil {
				return nil, err
			}
		}
		return &customer, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	customer = models.Customer{
		TenantID:   tenantID,
		Name:       strings.TrimSpace(in.Name),
		Phone:      phone,
		Email:      strings.TrimSpace(in.Email),
		TotalSpent: decimal.Zero,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// RecordVisit adds a completed order to the customer's stats.
func (s *CustomerService) RecordVisit(tx *gorm.DB, customerID uint, total decimal.Decimal, at time.Time) error {
	return tx.Model(&models.Customer{}).Where("id = ?", customerID).Updates(map[string]interface{}{
		"visit_count":    gorm.Expr("visit_count + ?", 1),
		"total_spent":    gorm.Expr("total_spent + ?", total),
		"loyalty_points": gorm.Expr("loyalty_points + ?", models.LoyaltyPointsFor(total)),
		"last_visit_at":  at,
	}).Error
}

func (s *CustomerService) List(ctx context.Context, tenantID uint, search string, p utils.Pagination) ([]models.Customer, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Customer{}).Where("tenant_id = ?", tenantID)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + search + "%"
		q = q.Where("phone LIKE ? OR name LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var customers []models.Customer
	err := q.Order("updated_at DESC, id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&customers).Error
	return customers, total, err
}

func (s *CustomerService) Get(ctx context.Context, tenantID, id uint) (*models.Customer, error) {
	var customer models.Customer
	if err := s.DB.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("customer")
		}
		return nil, err
	}
	return &customer, nil
}
