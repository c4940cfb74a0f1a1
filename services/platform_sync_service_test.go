package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/testutil"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type statusPush struct {
	restaurantID, orderID, status string
}

type fakePlatform struct {
	mu           sync.Mutex
	orders       []ExternalOrder
	pushes       []statusPush
	availability []ItemAvailability
}

func (f *fakePlatform) FetchOrders(context.Context, string) ([]ExternalOrder, error) {
	return f.orders, nil
}

func (f *fakePlatform) UpdateOrderStatus(_ context.Context, restaurantID, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, statusPush{restaurantID, orderID, status})
	return nil
}

func (f *fakePlatform) UpdateItemAvailability(_ context.Context, _ string, items []ItemAvailability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.availability = items
	return nil
}

func (f *fakePlatform) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.pushes {
		out = append(out, p.status)
	}
	return out
}

func newIntegration(t *testing.T, e *env, platform string, settings models.IntegrationSettings) *models.PlatformIntegration {
	t.Helper()
	raw, err := json.Marshal(settings)
	require.NoError(t, err)
	integration := &models.PlatformIntegration{
		TenantID:             e.fx.Company.ID,
		OutletID:             e.fx.Outlet.ID,
		Platform:             platform,
		ExternalRestaurantID: "rest-1",
		IsActive:             true,
		Settings:             raw,
	}
	require.NoError(t, e.db.Create(integration).Error)
	return integration
}

func TestPullOrdersImportsAndDeduplicates(t *testing.T) {
	platform := &fakePlatform{}
	e := newEnv(t, map[string]PlatformAPI{models.PlatformSwiggy: platform})
	ctx := context.Background()
	biryani := testutil.Dish(t, e.db, e.fx.Outlet, "Biryani", "200", "kitchen", 10)
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{AutoAccept: true})
	_, err := e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: biryani.ID, ExternalItemID: "SW-BIR"},
	})
	require.NoError(t, err)

	platform.orders = []ExternalOrder{
		{
			ID:       "SW-1001",
			Customer: ExternalCustomer{Name: "Dev", Phone: "9000000001"},
			Items: []ExternalItemLine{
				{ItemID: "SW-BIR", Name: "Biryani", Quantity: 2, Price: dec("180")},
				{ItemID: "SW-RAITA", Name: "Raita", Quantity: 1, Price: dec("20")},
			},
		},
		{
			ID:    "SW-1002",
			Items: []ExternalItemLine{{ItemID: "SW-UNKNOWN", Name: "Mystery", Quantity: 1}},
		},
	}

	summary, err := e.svc.PlatformSync.PullOrders(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Fetched)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)
	assert.Len(t, summary.Errors, 3, "unmapped raita, unmapped mystery, empty order")

	var order models.Order
	require.NoError(t, e.db.Preload("Items").Where("external_order_id = ?", "SW-1001").First(&order).Error)
	assert.Equal(t, models.SourceSwiggy, order.Source)
	assert.Equal(t, models.OrderTypeDelivery, order.Type)
	assert.Equal(t, models.OrderConfirmed, order.Status)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
	assertDecimal(t, "360", order.Subtotal)
	require.Len(t, order.Items, 1)
	assertDecimal(t, "180", order.Items[0].Price)
	assert.Equal(t, []string{"accepted"}, platform.statuses())

	var dish models.Dish
	require.NoError(t, e.db.First(&dish, biryani.ID).Error)
	assert.Equal(t, 8, dish.Stock)

	again, err := e.svc.PlatformSync.PullOrders(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 1, again.Skipped)

	var count int64
	e.db.Model(&models.Order{}).Count(&count)
	assert.EqualValues(t, 1, count)

	var synced models.PlatformIntegration
	require.NoError(t, e.db.First(&synced, integration.ID).Error)
	assert.NotNil(t, synced.LastSyncedAt)
}

func TestPlatformOrderStatusIsPushedBack(t *testing.T) {
	platform := &fakePlatform{}
	e := newEnv(t, map[string]PlatformAPI{models.PlatformZomato: platform})
	ctx := context.Background()
	wrap := testutil.Dish(t, e.db, e.fx.Outlet, "Wrap", "90", "kitchen", -1)
	integration := newIntegration(t, e, models.PlatformZomato, models.IntegrationSettings{})
	_, err := e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: wrap.ID, ExternalItemID: "Z-WRAP"},
	})
	require.NoError(t, err)
	platform.orders = []ExternalOrder{{ID: "Z-1", Items: []ExternalItemLine{{ItemID: "Z-WRAP", Quantity: 1}}}}

	summary, err := e.svc.PlatformSync.PullOrders(ctx, integration.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Created)
	assert.Empty(t, platform.statuses(), "no auto accept")

	var order models.Order
	require.NoError(t, e.db.Preload("Items").Where("external_order_id = ?", "Z-1").First(&order).Error)
	require.Len(t, order.Items, 1)
	assertDecimal(t, "90", order.Items[0].Price, "dish price when the platform sends none")

	_, err = e.svc.Orders.UpdateStatus(ctx, e.fx.Outlet.ID, order.ID, models.OrderPreparing)
	require.NoError(t, err)
	_, err = e.svc.Orders.CancelOrder(ctx, e.fx.Outlet.ID, order.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, []string{"preparing", "cancelled"}, platform.statuses())
}

func TestPullOrdersWithoutClient(t *testing.T) {
	e := newEnv(t, nil)
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{})

	_, err := e.svc.PlatformSync.PullOrders(context.Background(), integration.ID)
	assertCode(t, err, http.StatusBadGateway, utils.CodePlatformError)
}

func TestReplaceMappingsValidates(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Salad", "60", "cold", -1)
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{})

	_, err := e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: dish.ID, ExternalItemID: "A"},
		{DishID: dish.ID, ExternalItemID: "A"},
	})
	assertCode(t, err, http.StatusBadRequest, utils.CodeValidation)

	_, err = e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: dish.ID + 999, ExternalItemID: "B"},
	})
	assertCode(t, err, http.StatusBadRequest, utils.CodeValidation)

	updated, err := e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: dish.ID, ExternalItemID: "A"},
		{DishID: dish.ID, ExternalItemID: "A-LARGE"},
	})
	require.NoError(t, err)
	assert.Len(t, updated.ItemMappings, 2)

	updated, err = e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.ItemMappings)
}

func TestPushItemAvailability(t *testing.T) {
	platform := &fakePlatform{}
	e := newEnv(t, map[string]PlatformAPI{models.PlatformSwiggy: platform})
	ctx := context.Background()
	inStock := testutil.Dish(t, e.db, e.fx.Outlet, "Dosa", "80", "kitchen", 5)
	soldOut := testutil.Dish(t, e.db, e.fx.Outlet, "Idli", "40", "kitchen", 0)
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{})
	_, err := e.svc.PlatformSync.ReplaceMappings(ctx, e.fx.Outlet.ID, integration.ID, []MappingInput{
		{DishID: inStock.ID, ExternalItemID: "S-DOSA"},
		{DishID: soldOut.ID, ExternalItemID: "S-IDLI"},
	})
	require.NoError(t, err)

	summary, err := e.svc.PlatformSync.PushItemAvailability(ctx, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Pushed)

	available := map[string]bool{}
	for _, item := range platform.availability {
		available[item.ItemID] = item.Available
	}
	assert.True(t, available["S-DOSA"])
	assert.False(t, available["S-IDLI"])
}

func TestHandleSyncJob(t *testing.T) {
	platform := &fakePlatform{}
	e := newEnv(t, map[string]PlatformAPI{models.PlatformSwiggy: platform})
	integration := newIntegration(t, e, models.PlatformSwiggy, models.IntegrationSettings{})

	require.NoError(t, e.svc.PlatformSync.HandleSyncJob(context.Background(), messaging.SyncJob{IntegrationID: integration.ID}))
	assertCode(t, e.svc.PlatformSync.HandleSyncJob(context.Background(), messaging.SyncJob{IntegrationID: 9999}),
		http.StatusNotFound, utils.CodeNotFound)
}
