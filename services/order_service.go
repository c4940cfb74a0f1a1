package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type OrderItemInput struct {
	DishID   uint   `json:"dish_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes"`

	// Price overrides the dish price when positive. Set by platform imports only.
	Price decimal.Decimal `json:"-"`
}

type CreateOrderInput struct {
	Type       string           `json:"type" binding:"required"`
	Source     string           `json:"source"`
	TableID    *uint            `json:"table_id"`
	CustomerID *uint            `json:"customer_id"`
	Customer   *CustomerInput   `json:"customer"`
	Items      []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	Discount   decimal.Decimal  `json:"discount"`
	Notes      string           `json:"notes"`

	ExternalOrderID *string `json:"-"`
	CreatedBy       *uint   `json:"-"`
}

type OrderFilter struct {
	Status  string
	Source  string
	Type    string
	TableID uint
}

// PlatformStatusPusher reports status changes of platform orders back to the platform.
type PlatformStatusPusher interface {
	PushOrderStatus(ctx context.Context, order *models.Order)
}

type OrderService struct {
	DB        *gorm.DB
	Events    messaging.EventPublisher
	Customers *CustomerService
	Platforms PlatformStatusPusher
}

func NewOrderService(db *gorm.DB, events messaging.EventPublisher, customers *CustomerService) *OrderService {
	return &OrderService{DB: db, Events: events, Customers: customers}
}

// CreateOrder validates the request, reserves stock, prices the order, seats the
// table and generates one KOT per kitchen section, all in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, outlet *models.Tenant, in CreateOrderInput) (*models.Order, error) {
	if in.Source == "" {
		in.Source = models.SourcePOS
	}
	if !models.IsValidOrderType(in.Type) {
		return nil, utils.NewValidationError("invalid order type %q", in.Type)
	}
	if !models.IsValidOrderSource(in.Source) {
		return nil, utils.NewValidationError("invalid order source %q", in.Source)
	}
	if len(in.Items) == 0 {
		return nil, utils.NewValidationError("order must contain at least one item")
	}
	if in.Type == models.OrderTypeDineIn && in.TableID == nil {
		return nil, utils.NewValidationError("table_id is required for dine-in orders")
	}
	if in.Discount.IsNegative() {
		return nil, utils.NewValidationError("discount cannot be negative")
	}

	now := time.Now()
	order := &models.Order{
		TenantID:        outlet.RootID,
		OutletID:        outlet.ID,
		OrderNumber:     newOrderNumber(now),
		Type:            in.Type,
		Source:          in.Source,
		ExternalOrderID: in.ExternalOrderID,
		Status:          models.OrderPending,
		PaymentStatus:   models.PaymentUnpaid,
		TaxRate:         outlet.TaxRate,
		Discount:        in.Discount,
		Notes:           in.Notes,
		CreatedBy:       in.CreatedBy,
	}
	var table *models.Table

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.attachCustomer(tx, order, in); err != nil {
			return err
		}

		if in.TableID != nil {
			var t models.Table
			if err := tx.Where("id = ? AND outlet_id = ?", *in.TableID, outlet.ID).First(&t).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.NewNotFoundError("table")
				}
				return err
			}
			if t.CurrentOrderID != nil || t.Status == models.TableCleaning {
				return utils.NewConflictError("table %s is not free", t.Number).WithCode(utils.CodeTableOccupied)
			}
			table = &t
			order.TableID = &t.ID
		}

		for _, it := range in.Items {
			item, err := reserveItem(tx, outlet.ID, it)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, *item)
		}

		order.RecalculateTotals()
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		order.KOTs = buildKOTs(order, now)
		if len(order.KOTs) > 0 {
			if err := tx.Create(&order.KOTs).Error; err != nil {
				return err
			}
		}

		if table != nil {
			res := tx.Model(&models.Table{}).
				Where("id = ? AND current_order_id IS NULL", table.ID).
				Updates(map[string]interface{}{"status": models.TableOccupied, "current_order_id": order.ID})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.NewConflictError("table %s is not free", table.Number).WithCode(utils.CodeTableOccupied)
			}
			table.Status = models.TableOccupied
			table.CurrentOrderID = &order.ID
			order.Table = table
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"outlet_id": order.OutletID,
		"source":    order.Source,
		"kots":      len(order.KOTs),
	}).Info("order created")

	publishEvent(ctx, s.Events, messaging.KeyOrderCreated, order.TenantID, order.OutletID, order)
	kds.BroadcastOrderUpdate(*order)
	for _, kot := range order.KOTs {
		publishEvent(ctx, s.Events, messaging.KeyKOTCreated, order.TenantID, order.OutletID, kot)
		kds.BroadcastKOTCreated(order.TenantID, kot)
	}
	if table != nil {
		kds.BroadcastTableUpdate(order.TenantID, *table)
	}
	return order, nil
}

func (s *OrderService) attachCustomer(tx *gorm.DB, order *models.Order, in CreateOrderInput) error {
	switch {
	case in.CustomerID != nil:
		var customer models.Customer
		if err := tx.Where("id = ? AND tenant_id = ?", *in.CustomerID, order.TenantID).First(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("customer")
			}
			return err
		}
		order.CustomerID = &customer.ID
	case in.Customer != nil && strings.TrimSpace(in.Customer.Phone) != "":
		customer, err := s.Customers.FindOrCreate(tx, order.TenantID, *in.Customer)
		if err != nil {
			return err
		}
		order.CustomerID = &customer.ID
	}
	return nil
}

// reserveItem loads the dish, checks it can be sold and takes the stock.
func reserveItem(tx *gorm.DB, outletID uint, in OrderItemInput) (*models.OrderItem, error) {
	if in.Quantity < 1 {
		return nil, utils.NewValidationError("quantity must be at least 1")
	}

	var dish models.Dish
	if err := tx.Where("id = ? AND outlet_id = ?", in.DishID, outletID).First(&dish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError(fmt.Sprintf("dish %d", in.DishID))
		}
		return nil, err
	}
	if !dish.IsAvailable {
		return nil, utils.NewConflictError("dish %q is not available", dish.Name)
	}

	if dish.TrackStock {
		res := tx.Model(&models.Dish{}).
			Where("id = ? AND stock >= ?", dish.ID, in.Quantity).
			Update("stock", gorm.Expr("stock - ?", in.Quantity))
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, utils.NewConflictError("insufficient stock for %q", dish.Name).WithCode(utils.CodeInsufficientStock)
		}
	}

	price := dish.Price
	if in.Price.IsPositive() {
		price = in.Price
	}
	section := dish.KitchenSection
	if section == "" {
		section = models.DefaultKitchenSection
	}
	return &models.OrderItem{
		DishID:         dish.ID,
		Name:           dish.Name,
		Quantity:       in.Quantity,
		Price:          price,
		KitchenSection: section,
		Notes:          in.Notes,
		Status:         models.ItemPending,
	}, nil
}

// restoreStock gives back the stock an item reserved.
func restoreStock(tx *gorm.DB, item models.OrderItem) error {
	return tx.Model(&models.Dish{}).
		Where("id = ? AND track_stock = ?", item.DishID, true).
		Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error
}

// buildKOTs groups the order items by kitchen section in one pass,
// keeping sections in the order they first appear.
func buildKOTs(order *models.Order, now time.Time) []models.KOT {
	index := make(map[string]int)
	var kots []models.KOT
	for _, item := range order.Items {
		if item.Status == models.ItemCancelled {
			continue
		}
		i, ok := index[item.KitchenSection]
		if !ok {
			kots = append(kots, models.KOT{
				OrderID:        order.ID,
				OutletID:       order.OutletID,
				KOTNumber:      newKOTNumber(now),
				KitchenSection: item.KitchenSection,
				Status:         models.KOTPending,
			})
			i = len(kots) - 1
			index[item.KitchenSection] = i
		}
		kots[i].Items = append(kots[i].Items, models.KOTItem{
			OrderItemID: item.ID,
			DishID:      item.DishID,
			Name:        item.Name,
			Quantity:    item.Quantity,
			Notes:       item.Notes,
			Status:      models.ItemPending,
		})
	}
	return kots
}

func (s *OrderService) GetOrder(ctx context.Context, outletID, orderID uint) (*models.Order, error) {
	return loadOrder(s.DB.WithContext(ctx), outletID, orderID, true)
}

func loadOrder(db *gorm.DB, outletID, orderID uint, full bool) (*models.Order, error) {
	q := db.Preload("Items")
	if full {
		q = q.Preload("KOTs.Items").Preload("Payments").Preload("Customer").Preload("Table")
	}
	var order models.Order
	if err := q.Where("id = ? AND outlet_id = ?", orderID, outletID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("order")
		}
		return nil, err
	}
	return &order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, outletID uint, f OrderFilter, p utils.Pagination) ([]models.Order, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).Where("outlet_id = ?", outletID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.TableID != 0 {
		q = q.Where("table_id = ?", f.TableID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []models.Order
	err := q.Preload("Items").Order("created_at DESC, id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&orders).Error
	return orders, total, err
}

// UpdateStatus moves an order forward. Cancellation and completion have
// their own rules and are delegated.
func (s *OrderService) UpdateStatus(ctx context.Context, outletID, orderID uint, status string) (*models.Order, error) {
	switch status {
	case models.OrderCancelled:
		return s.CancelOrder(ctx, outletID, orderID, "")
	case models.OrderCompleted:
		return s.CompleteOrder(ctx, outletID, orderID)
	}

	var from string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		from = order.Status
		if order.IsTerminal() || !models.CanAdvanceOrder(order.Status, status) {
			return invalidTransition("order", order.Status, status)
		}

		now := time.Now()
		order.Status = status
		order.StampStatus(status, now)
		if status == models.OrderServed {
			if err := tx.Model(&models.OrderItem{}).
				Where("order_id = ? AND status <> ?", order.ID, models.ItemCancelled).
				Update("status", models.ItemServed).Error; err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatusChange(ctx, outletID, orderID, from)
}

// CancelOrder cancels a non-terminal order, returns its stock and frees the table.
func (s *OrderService) CancelOrder(ctx context.Context, outletID, orderID uint, reason string) (*models.Order, error) {
	var from string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		from = order.Status
		if order.IsTerminal() {
			return utils.NewConflictError("a %s order cannot be cancelled", order.Status).WithCode(utils.CodeInvalidTransition)
		}

		for _, item := range order.Items {
			if item.Status == models.ItemCancelled {
				continue
			}
			if err := restoreStock(tx, item); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND status <> ?", order.ID, models.ItemCancelled).
			Update("status", models.ItemCancelled).Error; err != nil {
			return err
		}

		openKOTs := tx.Model(&models.KOT{}).Select("id").
			Where("order_id = ? AND status IN ?", order.ID, []string{models.KOTPending, models.KOTPreparing})
		if err := tx.Model(&models.KOTItem{}).
			Where("kot_id IN (?)", openKOTs).
			Update("status", models.ItemCancelled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.KOT{}).
			Where("order_id = ? AND status IN ?", order.ID, []string{models.KOTPending, models.KOTPreparing}).
			Update("status", models.KOTCancelled).Error; err != nil {
			return err
		}

		order.Status = models.OrderCancelled
		order.CancelReason = reason
		order.StampStatus(models.OrderCancelled, time.Now())
		if err := releaseTable(tx, order); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatusChange(ctx, outletID, orderID, from)
}

// CancelItem cancels one pending or preparing item. Cancelling the last
// active item cancels the whole order.
func (s *OrderService) CancelItem(ctx context.Context, outletID, orderID, itemID uint) (*models.Order, error) {
	var from string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		from = order.Status
		if order.IsTerminal() {
			return utils.NewConflictError("items of a %s order cannot be cancelled", order.Status).WithCode(utils.CodeInvalidTransition)
		}

		idx := -1
		for i := range order.Items {
			if order.Items[i].ID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return utils.NewNotFoundError("order item")
		}
		item := &order.Items[idx]
		if item.Status != models.ItemPending && item.Status != models.ItemPreparing {
			return utils.NewConflictError("a %s item cannot be cancelled", item.Status).WithCode(utils.CodeInvalidTransition)
		}

		if err := restoreStock(tx, *item); err != nil {
			return err
		}
		item.Status = models.ItemCancelled
		if err := tx.Model(item).Update("status", models.ItemCancelled).Error; err != nil {
			return err
		}
		if err := cancelKOTItem(tx, item.ID); err != nil {
			return err
		}

		order.RecalculateTotals()
		now := time.Now()
		active := 0
		for _, it := range order.Items {
			if it.Status != models.ItemCancelled {
				active++
			}
		}
		if active == 0 {
			order.Status = models.OrderCancelled
			order.CancelReason = "all items cancelled"
			order.StampStatus(models.OrderCancelled, now)
			if err := releaseTable(tx, order); err != nil {
				return err
			}
		} else if _, err := promoteIfReady(tx, order, now); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatusChange(ctx, outletID, orderID, from)
}

func cancelKOTItem(tx *gorm.DB, orderItemID uint) error {
	var kotItem models.KOTItem
	if err := tx.Where("order_item_id = ?", orderItemID).First(&kotItem).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if err := tx.Model(&kotItem).Update("status", models.ItemCancelled).Error; err != nil {
		return err
	}

	var active int64
	if err := tx.Model(&models.KOTItem{}).
		Where("kot_id = ? AND status <> ?", kotItem.KOTID, models.ItemCancelled).
		Count(&active).Error; err != nil {
		return err
	}
	if active > 0 {
		return nil
	}
	return tx.Model(&models.KOT{}).
		Where("id = ? AND status IN ?", kotItem.KOTID, []string{models.KOTPending, models.KOTPreparing}).
		Update("status", models.KOTCancelled).Error
}

// promoteIfReady marks the order ready once every live KOT is ready.
func promoteIfReady(tx *gorm.DB, order *models.Order, now time.Time) (bool, error) {
	switch order.Status {
	case models.OrderPending, models.OrderConfirmed, models.OrderPreparing:
	default:
		return false, nil
	}

	var live, open int64
	if err := tx.Model(&models.KOT{}).
		Where("order_id = ? AND status <> ?", order.ID, models.KOTCancelled).
		Count(&live).Error; err != nil {
		return false, err
	}
	if err := tx.Model(&models.KOT{}).
		Where("order_id = ? AND status IN ?", order.ID, []string{models.KOTPending, models.KOTPreparing}).
		Count(&open).Error; err != nil {
		return false, err
	}
	if live == 0 || open > 0 {
		return false, nil
	}
	order.Status = models.OrderReady
	order.StampStatus(models.OrderReady, now)
	return true, nil
}

// CompleteOrder closes a ready or served order that is fully paid.
func (s *OrderService) CompleteOrder(ctx context.Context, outletID, orderID uint) (*models.Order, error) {
	var from string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		from = order.Status
		if order.Status != models.OrderReady && order.Status != models.OrderServed {
			return invalidTransition("order", order.Status, models.OrderCompleted)
		}
		if order.PaymentStatus != models.PaymentPaid {
			return utils.NewConflictError("order has an outstanding balance of %s", order.Balance().StringFixed(2))
		}

		now := time.Now()
		order.Status = models.OrderCompleted
		order.StampStatus(models.OrderCompleted, now)
		if err := releaseTable(tx, order); err != nil {
			return err
		}
		if order.CustomerID != nil {
			if err := s.Customers.RecordVisit(tx, *order.CustomerID, order.Total, now); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	return s.afterStatusChange(ctx, outletID, orderID, from)
}

// SetDiscount replaces the order discount and reprices it.
func (s *OrderService) SetDiscount(ctx context.Context, outletID, orderID uint, discount decimal.Decimal) (*models.Order, error) {
	if discount.IsNegative() {
		return nil, utils.NewValidationError("discount cannot be negative")
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := loadOrder(tx, outletID, orderID, false)
		if err != nil {
			return err
		}
		if order.IsTerminal() {
			return utils.NewConflictError("a %s order cannot be changed", order.Status)
		}
		order.Discount = discount
		order.RecalculateTotals()
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}
	order, err := s.GetOrder(ctx, outletID, orderID)
	if err != nil {
		return nil, err
	}
	kds.BroadcastOrderUpdate(*order)
	return order, nil
}

func releaseTable(tx *gorm.DB, order *models.Order) error {
	if order.TableID == nil {
		return nil
	}
	return tx.Model(&models.Table{}).
		Where("id = ? AND current_order_id = ?", *order.TableID, order.ID).
		Updates(map[string]interface{}{"status": models.TableAvailable, "current_order_id": nil}).Error
}

func invalidTransition(what, from, to string) error {
	return utils.NewConflictError("cannot move %s from %s to %s", what, from, to).WithCode(utils.CodeInvalidTransition)
}

// afterStatusChange reloads the order and fans the change out once the
// transaction has committed.
func (s *OrderService) afterStatusChange(ctx context.Context, outletID, orderID uint, from string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, outletID, orderID)
	if err != nil {
		return nil, err
	}
	s.notifyStatus(ctx, order, from)
	return order, nil
}

func (s *OrderService) notifyStatus(ctx context.Context, order *models.Order, from string) {
	kds.BroadcastOrderUpdate(*order)
	if order.Table != nil {
		kds.BroadcastTableUpdate(order.TenantID, *order.Table)
	}
	if from == order.Status {
		return
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       order.Status,
	}).Info("order status changed")
	publishEvent(ctx, s.Events, messaging.KeyOrderStatusChanged, order.TenantID, order.OutletID, StatusChange{
		ID: order.ID, Number: order.OrderNumber, From: from, To: order.Status,
	})
	if s.Platforms != nil && models.IsPlatformSource(order.Source) {
		s.Platforms.PushOrderStatus(ctx, order)
	}
}
