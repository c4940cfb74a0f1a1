package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type KOTService struct {
	DB     *gorm.DB
	Events messaging.EventPublisher
	Orders *OrderService
}

func NewKOTService(db *gorm.DB, events messaging.EventPublisher, orders *OrderService) *KOTService {
	return &KOTService{DB: db, Events: events, Orders: orders}
}

// ListForKitchen returns the tickets of an outlet. Without a status filter
// only tickets still on the line (pending, preparing) are returned.
func (s *KOTService) ListForKitchen(ctx context.Context, outletID uint, section, status string) ([]models.KOT, error) {
	q := s.DB.WithContext(ctx).Preload("Items").Where("outlet_id = ?", outletID)
	if section != "" {
		q = q.Where("kitchen_section = ?", section)
	}
	switch status {
	case "":
		q = q.Where("status IN ?", []string{models.KOTPending, models.KOTPreparing})
	case "all":
	default:
		q = q.Where("status = ?", status)
	}

	var kots []models.KOT
	err := q.Order("created_at ASC, id ASC").Find(&kots).Error
	return kots, err
}

func (s *KOTService) ListByOrder(ctx context.Context, outletID, orderID uint) ([]models.KOT, error) {
	if _, err := loadOrder(s.DB.WithContext(ctx), outletID, orderID, false); err != nil {
		return nil, err
	}
	var kots []models.KOT
	err := s.DB.WithContext(ctx).Preload("Items").
		Where("order_id = ?", orderID).
		Order("id ASC").Find(&kots).Error
	return kots, err
}

// UpdateStatus advances a ticket and mirrors the new status onto its items
// and their order items. The order follows: it starts preparing with its
// first ticket and becomes ready with its last.
func (s *KOTService) UpdateStatus(ctx context.Context, outletID, kotID uint, status string) (*models.KOT, error) {
	var kot models.KOT
	var kotFrom, orderFrom, orderTo string

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").Where("id = ? AND outlet_id = ?", kotID, outletID).First(&kot).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("kot")
			}
			return err
		}
		if !models.CanAdvanceKOT(kot.Status, status) {
			return invalidTransition("kot", kot.Status, status)
		}
		kotFrom = kot.Status

		now := time.Now()
		kot.Status = status
		if kot.StartedAt == nil {
			kot.StartedAt = &now
		}
		if status == models.KOTReady {
			kot.ReadyAt = &now
		}
		if err := tx.Omit(clause.Associations).Save(&kot).Error; err != nil {
			return err
		}

		// Served and cancelled lines are settled; the kitchen no longer moves them.
		settled := []string{models.ItemCancelled, models.ItemServed}
		var orderItemIDs []uint
		for i := range kot.Items {
			if kot.Items[i].Status == models.ItemCancelled || kot.Items[i].Status == models.ItemServed {
				continue
			}
			kot.Items[i].Status = status
			orderItemIDs = append(orderItemIDs, kot.Items[i].OrderItemID)
		}
		if len(orderItemIDs) > 0 {
			if err := tx.Model(&models.KOTItem{}).
				Where("kot_id = ? AND status NOT IN ?", kot.ID, settled).
				Update("status", status).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.OrderItem{}).
				Where("id IN ? AND status NOT IN ?", orderItemIDs, settled).
				Update("status", status).Error; err != nil {
				return err
			}
		}

		order, err := loadOrder(tx, outletID, kot.OrderID, false)
		if err != nil {
			return err
		}
		orderFrom = order.Status
		if status == models.KOTPreparing && (order.Status == models.OrderPending || order.Status == models.OrderConfirmed) {
			order.Status = models.OrderPreparing
			order.StampStatus(models.OrderPreparing, now)
		}
		if status == models.KOTReady {
			if _, err := promoteIfReady(tx, order, now); err != nil {
				return err
			}
		}
		orderTo = order.Status
		if orderTo == orderFrom {
			return nil
		}
		return tx.Omit(clause.Associations).Save(order).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"kot_id":   kot.ID,
		"order_id": kot.OrderID,
		"status":   kot.Status,
	}).Info("kot status changed")

	order, err := s.Orders.GetOrder(ctx, outletID, kot.OrderID)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.Events, messaging.KeyKOTStatusChanged, order.TenantID, outletID, StatusChange{
		ID: kot.ID, Number: kot.KOTNumber, From: kotFrom, To: kot.Status,
	})
	kds.BroadcastKOTUpdate(order.TenantID, kot)
	s.Orders.notifyStatus(ctx, order, orderFrom)
	return &kot, nil
}
