package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// SyncSummary reports the outcome of one pull from a platform.
type SyncSummary struct {
	Fetched int      `json:"fetched"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

type PushSummary struct {
	Pushed int `json:"pushed"`
}

type MappingInput struct {
	DishID         uint   `json:"dish_id" binding:"required"`
	ExternalItemID string `json:"external_item_id" binding:"required"`
}

// platformStatus translates our order status into the platform's vocabulary.
var platformStatus = map[string]string{
	models.OrderConfirmed: "accepted",
	models.OrderPreparing: "preparing",
	models.OrderReady:     "ready",
	models.OrderServed:    "dispatched",
	models.OrderCompleted: "delivered",
	models.OrderCancelled: "cancelled",
}

type PlatformSyncService struct {
	DB       *gorm.DB
	Orders   *OrderService
	Payments *PaymentService
	Clients  map[string]PlatformAPI
}

func NewPlatformSyncService(db *gorm.DB, orders *OrderService, payments *PaymentService, clients map[string]PlatformAPI) *PlatformSyncService {
	return &PlatformSyncService{DB: db, Orders: orders, Payments: payments, Clients: clients}
}

func (s *PlatformSyncService) client(platform string) (PlatformAPI, error) {
	c, ok := s.Clients[platform]
	if !ok || c == nil {
		return nil, utils.NewPlatformError("%s is not configured", platform)
	}
	return c, nil
}

func (s *PlatformSyncService) loadIntegration(ctx context.Context, id uint) (*models.PlatformIntegration, error) {
	var integration models.PlatformIntegration
	if err := s.DB.WithContext(ctx).Preload("ItemMappings").First(&integration, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("integration")
		}
		return nil, err
	}
	return &integration, nil
}

// PullOrders imports the placed orders of one integration. Every order is
// handled on its own: a failure is recorded in the summary and the pull
// carries on.
func (s *PlatformSyncService) PullOrders(ctx context.Context, integrationID uint) (*SyncSummary, error) {
	integration, err := s.loadIntegration(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if !integration.IsActive {
		return nil, utils.NewConflictError("integration %d is inactive", integration.ID)
	}
	client, err := s.client(integration.Platform)
	if err != nil {
		return nil, err
	}

	var outlet models.Tenant
	if err := s.DB.WithContext(ctx).First(&outlet, integration.OutletID).Error; err != nil {
		return nil, err
	}

	external, err := client.FetchOrders(ctx, integration.ExternalRestaurantID)
	if err != nil {
		return nil, utils.NewPlatformError("fetch %s orders: %v", integration.Platform, err)
	}

	mappings := make(map[string]uint, len(integration.ItemMappings))
	for _, m := range integration.ItemMappings {
		mappings[m.ExternalItemID] = m.DishID
	}
	opts := integration.Options()
	log := utils.InfoLogger.WithFields(logrus.Fields{
		"integration_id": integration.ID,
		"platform":       integration.Platform,
	})

	summary := &SyncSummary{Errors: []string{}}
	for _, ext := range external {
		summary.Fetched++
		created, skipped, problems := s.importOrder(ctx, &outlet, integration, mappings, opts, ext)
		summary.Errors = append(summary.Errors, problems...)
		switch {
		case created:
			summary.Created++
		case skipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	now := time.Now()
	if err := s.DB.WithContext(ctx).Model(integration).Update("last_synced_at", now).Error; err != nil {
		utils.ErrorLogger.Warnf("integration %d: update last_synced_at: %v", integration.ID, err)
	}
	for _, msg := range summary.Errors {
		log.Warn(msg)
	}
	log.WithFields(logrus.Fields{
		"fetched": summary.Fetched,
		"created": summary.Created,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("platform orders pulled")
	return summary, nil
}

func (s *PlatformSyncService) importOrder(ctx context.Context, outlet *models.Tenant, integration *models.PlatformIntegration,
	mappings map[string]uint, opts models.IntegrationSettings, ext ExternalOrder) (created, skipped bool, problems []string) {
	if strings.TrimSpace(ext.ID) == "" {
		return false, false, []string{"order without id"}
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("source = ? AND external_order_id = ?", integration.Platform, ext.ID).
		Count(&existing).Error; err != nil {
		return false, false, []string{fmt.Sprintf("order %s: %v", ext.ID, err)}
	}
	if existing > 0 {
		return false, true, nil
	}

	var items []OrderItemInput
	for _, line := range ext.Items {
		dishID, ok := mappings[line.ItemID]
		if !ok {
			problems = append(problems, fmt.Sprintf("order %s: item %s (%s) is not mapped", ext.ID, line.ItemID, line.Name))
			continue
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, OrderItemInput{DishID: dishID, Quantity: qty, Notes: line.Notes, Price: line.Price})
	}
	if len(items) == 0 {
		return false, false, append(problems, fmt.Sprintf("order %s: no mapped items", ext.ID))
	}

	in := CreateOrderInput{
		Type:            models.OrderTypeDelivery,
		Source:          integration.Platform,
		Items:           items,
		Notes:           ext.Notes,
		ExternalOrderID: &ext.ID,
	}
	if ext.Customer.Phone != "" {
		in.Customer = &CustomerInput{Name: ext.Customer.Name, Phone: ext.Customer.Phone}
	}

	order, err := s.Orders.CreateOrder(ctx, outlet, in)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, true, problems
		}
		return false, false, append(problems, fmt.Sprintf("order %s: %v", ext.ID, err))
	}

	if order.Total.IsPositive() {
		_, _, err := s.Payments.RecordPayment(ctx, outlet.ID, order.ID, PaymentInput{
			Amount:    order.Total,
			Method:    models.MethodPlatform,
			Reference: ext.ID,
		})
		if err != nil {
			problems = append(problems, fmt.Sprintf("order %s: record payment: %v", ext.ID, err))
		}
	}
	if opts.AutoAccept {
		if _, err := s.Orders.UpdateStatus(ctx, outlet.ID, order.ID, models.OrderConfirmed); err != nil {
			problems = append(problems, fmt.Sprintf("order %s: accept: %v", ext.ID, err))
		}
	}
	return true, false, problems
}

// PushOrderStatus reports a status change of a platform order. Failures are
// logged and never surface to the caller.
func (s *PlatformSyncService) PushOrderStatus(ctx context.Context, order *models.Order) {
	status, ok := platformStatus[order.Status]
	if !ok || order.ExternalOrderID == nil {
		return
	}
	log := utils.ErrorLogger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"platform": order.Source,
		"status":   status,
	})

	var integration models.PlatformIntegration
	err := s.DB.WithContext(ctx).
		Where("outlet_id = ? AND platform = ?", order.OutletID, order.Source).
		First(&integration).Error
	if err != nil {
		log.Warnf("no integration for platform order: %v", err)
		return
	}
	client, err := s.client(integration.Platform)
	if err != nil {
		log.Warn(err.Error())
		return
	}
	if err := client.UpdateOrderStatus(ctx, integration.ExternalRestaurantID, *order.ExternalOrderID, status); err != nil {
		log.Warnf("push order status: %v", err)
	}
}

// PushItemAvailability sends the availability of every mapped dish.
func (s *PlatformSyncService) PushItemAvailability(ctx context.Context, integrationID uint) (*PushSummary, error) {
	integration, err := s.loadIntegration(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	client, err := s.client(integration.Platform)
	if err != nil {
		return nil, err
	}
	if len(integration.ItemMappings) == 0 {
		return &PushSummary{}, nil
	}

	dishIDs := make([]uint, 0, len(integration.ItemMappings))
	for _, m := range integration.ItemMappings {
		dishIDs = append(dishIDs, m.DishID)
	}
	var dishes []models.Dish
	if err := s.DB.WithContext(ctx).Where("id IN ?", dishIDs).Find(&dishes).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Dish, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}

	items := make([]ItemAvailability, 0, len(integration.ItemMappings))
	for _, m := range integration.ItemMappings {
		dish, ok := byID[m.DishID]
		if !ok {
			continue
		}
		items = append(items, ItemAvailability{
			ItemID:    m.ExternalItemID,
			Available: dish.IsAvailable && (!dish.TrackStock || dish.Stock > 0),
			Price:     dish.Price,
		})
	}
	if err := client.UpdateItemAvailability(ctx, integration.ExternalRestaurantID, items); err != nil {
		return nil, utils.NewPlatformError("push %s availability: %v", integration.Platform, err)
	}
	return &PushSummary{Pushed: len(items)}, nil
}

// ReplaceMappings swaps the item mapping set of an integration.
func (s *PlatformSyncService) ReplaceMappings(ctx context.Context, outletID, integrationID uint, in []MappingInput) (*models.PlatformIntegration, error) {
	seen := make(map[string]bool, len(in))
	for _, m := range in {
		if seen[m.ExternalItemID] {
			return nil, utils.NewValidationError("external item %s is mapped twice", m.ExternalItemID)
		}
		seen[m.ExternalItemID] = true
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var integration models.PlatformIntegration
		if err := tx.Where("id = ? AND outlet_id = ?", integrationID, outletID).First(&integration).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("integration")
			}
			return err
		}

		dishIDs := make([]uint, 0, len(in))
		for _, m := range in {
			dishIDs = append(dishIDs, m.DishID)
		}
		if len(dishIDs) > 0 {
			var found []uint
			if err := tx.Model(&models.Dish{}).Where("id IN ? AND outlet_id = ?", dishIDs, outletID).Pluck("id", &found).Error; err != nil {
				return err
			}
			ok := make(map[uint]bool, len(found))
			for _, id := range found {
				ok[id] = true
			}
			for _, id := range dishIDs {
				if !ok[id] {
					return utils.NewValidationError("dish %d does not belong to this outlet", id)
				}
			}
		}

		if err := tx.Where("integration_id = ?", integration.ID).Delete(&models.PlatformItemMapping{}).Error; err != nil {
			return err
		}
		if len(in) == 0 {
			return nil
		}
		mappings := make([]models.PlatformItemMapping, 0, len(in))
		for _, m := range in {
			mappings = append(mappings, models.PlatformItemMapping{
				IntegrationID:  integration.ID,
				DishID:         m.DishID,
				ExternalItemID: m.ExternalItemID,
			})
		}
		return tx.Create(&mappings).Error
	})
	if err != nil {
		return nil, err
	}
	return s.loadIntegration(ctx, integrationID)
}

// HandleSyncJob runs a queued platform.sync job.
func (s *PlatformSyncService) HandleSyncJob(ctx context.Context, job messaging.SyncJob) error {
	_, err := s.PullOrders(ctx, job.IntegrationID)
	return err
}
