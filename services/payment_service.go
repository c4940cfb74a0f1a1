package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type PaymentInput struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference"`

	ReceivedBy *uint `json:"-"`
}

type PaymentService struct {
	DB     *gorm.DB
	Orders *OrderService
}

func NewPaymentService(db *gorm.DB, orders *OrderService) *PaymentService {
	return &PaymentService{DB: db, Orders: orders}
}

// RecordPayment applies a payment to the order balance. Cash may be tendered
// above the balance and the difference is returned as change; every other
// method must not exceed what is owed.
func (s *PaymentService) RecordPayment(ctx context.Context, outletID, orderID uint, in PaymentInput) (*models.Payment, *models.Order, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, utils.NewValidationError("amount must be greater than zero")
	}
	if !models.IsValidPaymentMethod(in.Method) {
		return nil, nil, utils.NewValidationError("invalid payment method %q", in.Method)
	}

	var payment models.Payment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		if order.Status == models.OrderCancelled {
			return utils.NewConflictError("a cancelled order cannot be paid")
		}
		if order.PaymentStatus == models.PaymentPaid {
			return utils.NewConflictError("order is already paid")
		}

		balance := order.Balance()
		applied, change := in.Amount, decimal.Zero
		if in.Amount.GreaterThan(balance) {
			if in.Method != models.MethodCash {
				return utils.NewValidationError("amount %s exceeds the outstanding balance %s",
					in.Amount.StringFixed(2), balance.StringFixed(2))
			}
			applied = balance
			change = in.Amount.Sub(balance)
		}

		payment = models.Payment{
			OrderID:    order.ID,
			OutletID:   order.OutletID,
			Amount:     applied,
			Method:     in.Method,
			Reference:  in.Reference,
			Tendered:   in.Amount,
			Change:     change,
			ReceivedBy: in.ReceivedBy,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		order.AmountPaid = order.AmountPaid.Add(applied)
		order.RefreshPaymentStatus()
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, nil, err
	}

	order, err := s.Orders.GetOrder(ctx, outletID, orderID)
	if err != nil {
		return nil, nil, err
	}
	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"payment_id":     payment.ID,
		"method":         payment.Method,
		"payment_status": order.PaymentStatus,
	}).Info("payment recorded")
	kds.BroadcastOrderUpdate(*order)
	return &payment, order, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, outletID, orderID uint) ([]models.Payment, error) {
	if _, err := loadOrder(s.DB.WithContext(ctx), outletID, orderID, false); err != nil {
		return nil, err
	}
	var payments []models.Payment
	err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&payments).Error
	return payments, err
}
