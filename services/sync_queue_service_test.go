package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/testutil"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func TestPushAppliesFreshChanges(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	table := testutil.Table(t, e.db, e.fx.Outlet, "T9")

	records, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", models.RoleManager, []SyncPushRecord{{
		EntityType:      models.EntityTable,
		EntityID:        table.ID,
		Payload:         map[string]interface{}{"capacity": float64(6), "status": models.TableReserved},
		ClientUpdatedAt: table.UpdatedAt.Add(time.Minute),
	}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.SyncCompleted, records[0].Status)
	assert.False(t, records[0].Conflict)
	assert.NotNil(t, records[0].ProcessedAt)

	var reloaded models.Table
	require.NoError(t, e.db.First(&reloaded, table.ID).Error)
	assert.Equal(t, 6, reloaded.Capacity)
	assert.Equal(t, models.TableReserved, reloaded.Status)
}

func TestPushParksConflicts(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Latte", "45", "bar", -1)

	records, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", models.RoleManager, []SyncPushRecord{{
		EntityType:      models.EntityDish,
		EntityID:        dish.ID,
		Payload:         map[string]interface{}{"price": float64(50)},
		ClientUpdatedAt: dish.UpdatedAt.Add(-time.Minute),
	}})
	require.NoError(t, err)
	rec := records[0]
	assert.Equal(t, models.SyncFailed, rec.Status)
	assert.True(t, rec.Conflict)
	assert.NotEmpty(t, rec.Error)

	var snapshot map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.ServerSnapshot, &snapshot))
	assert.Equal(t, "Latte", snapshot["name"])
	assert.Contains(t, snapshot, "updated_at")

	var reloaded models.Dish
	require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
	assertDecimal(t, "45", reloaded.Price)
}

func TestPushRejectsBadRecords(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Latte", "45", "bar", -1)
	table := testutil.Table(t, e.db, e.fx.Outlet, "T1")
	tea := testutil.Dish(t, e.db, e.fx.Outlet, "Tea", "20", "bar", -1)
	_, err := e.svc.Orders.CreateOrder(ctx, e.fx.Outlet, CreateOrderInput{
		Type:    models.OrderTypeDineIn,
		TableID: &table.ID,
		Items:   []OrderItemInput{{DishID: tea.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, e.db.First(table, table.ID).Error)
	future := time.Now().Add(time.Minute)

	records, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-2", models.RoleManager, []SyncPushRecord{
		{EntityType: models.EntityDish, EntityID: dish.ID, Payload: map[string]interface{}{"category": "hot"}, ClientUpdatedAt: future},
		{EntityType: "invoice", EntityID: 1, Payload: map[string]interface{}{"x": "y"}, ClientUpdatedAt: future},
		{EntityType: models.EntityDish, EntityID: 9999, Payload: map[string]interface{}{"name": "Ghost"}, ClientUpdatedAt: future},
		{EntityType: models.EntityTable, EntityID: table.ID, Payload: map[string]interface{}{"status": models.TableAvailable}, ClientUpdatedAt: future},
	})
	require.NoError(t, err)
	require.Len(t, records, 4)
	for _, rec := range records {
		assert.Equal(t, models.SyncFailed, rec.Status)
		assert.False(t, rec.Conflict)
		assert.NotEmpty(t, rec.Error)
	}

	_, err = e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, " ", models.RoleManager, []SyncPushRecord{{EntityType: models.EntityDish}})
	assertCode(t, err, http.StatusBadRequest, utils.CodeValidation)
}

func TestPushEnforcesRoles(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Latte", "45", "bar", -1)
	table := testutil.Table(t, e.db, e.fx.Outlet, "T4")
	reprice := []SyncPushRecord{{
		EntityType:      models.EntityDish,
		EntityID:        dish.ID,
		Payload:         map[string]interface{}{"price": 0.01},
		ClientUpdatedAt: time.Now(),
	}}

	for _, role := range []string{models.RoleWaiter, models.RoleChef, models.RoleCashier} {
		_, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", role, reprice)
		assertCode(t, err, http.StatusForbidden, utils.CodeForbidden)
	}
	_, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", models.RoleChef, []SyncPushRecord{{
		EntityType: models.EntityTable, EntityID: table.ID,
		Payload: map[string]interface{}{"capacity": float64(2)}, ClientUpdatedAt: time.Now(),
	}})
	assertCode(t, err, http.StatusForbidden, utils.CodeForbidden)

	var count int64
	require.NoError(t, e.db.Model(&models.SyncRecord{}).Count(&count).Error)
	assert.Zero(t, count, "rejected pushes leave no records")
	var reloaded models.Dish
	require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
	assertDecimal(t, "45", reloaded.Price)

	records, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", models.RoleWaiter, []SyncPushRecord{{
		EntityType: models.EntityTable, EntityID: table.ID,
		Payload: map[string]interface{}{"capacity": float64(2)}, ClientUpdatedAt: time.Now(),
	}})
	require.NoError(t, err)
	assert.Equal(t, models.SyncCompleted, records[0].Status)
}

func TestPushRejectsClocksAheadOfServer(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Latte", "45", "bar", -1)

	records, err := e.svc.SyncQueue.Push(ctx, e.fx.Outlet.ID, "tab-1", models.RoleManager, []SyncPushRecord{{
		EntityType:      models.EntityDish,
		EntityID:        dish.ID,
		Payload:         map[string]interface{}{"price": 0.01},
		ClientUpdatedAt: time.Now().Add(time.Hour),
	}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.SyncFailed, records[0].Status)
	assert.False(t, records[0].Conflict)
	assert.Contains(t, records[0].Error, "ahead of the server clock")

	var reloaded models.Dish
	require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
	assertDecimal(t, "45", reloaded.Price)
}

// conflict pushes a stale dish change and returns the parked record.
func conflict(t *testing.T, e *env, dish *models.Dish, payload, base map[string]interface{}) models.SyncRecord {
	t.Helper()
	records, err := e.svc.SyncQueue.Push(context.Background(), e.fx.Outlet.ID, "tab-1", models.RoleManager, []SyncPushRecord{{
		EntityType:      models.EntityDish,
		EntityID:        dish.ID,
		Payload:         payload,
		Base:            base,
		ClientUpdatedAt: dish.UpdatedAt.Add(-time.Hour),
	}})
	require.NoError(t, err)
	require.True(t, records[0].Conflict)
	return records[0]
}

func TestResolveStrategies(t *testing.T) {
	ctx := context.Background()

	t.Run("server wins", func(t *testing.T) {
		e := newEnv(t, nil)
		dish := testutil.Dish(t, e.db, e.fx.Outlet, "Old", "120", "kitchen", -1)
		rec := conflict(t, e, dish, map[string]interface{}{"name": "New"}, nil)

		resolved, err := e.svc.SyncQueue.Resolve(ctx, e.fx.Outlet.ID, rec.ID, models.StrategyServerWins, e.fx.Owner.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncCompleted, resolved.Status)
		assert.Equal(t, models.StrategyServerWins, resolved.Strategy)
		require.NotNil(t, resolved.ResolvedBy)
		assert.Equal(t, e.fx.Owner.ID, *resolved.ResolvedBy)

		var reloaded models.Dish
		require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
		assert.Equal(t, "Old", reloaded.Name)

		_, err = e.svc.SyncQueue.Resolve(ctx, e.fx.Outlet.ID, rec.ID, models.StrategyClientWins, e.fx.Owner.ID)
		assertCode(t, err, http.StatusConflict, utils.CodeConflict)
	})

	t.Run("client wins", func(t *testing.T) {
		e := newEnv(t, nil)
		dish := testutil.Dish(t, e.db, e.fx.Outlet, "Old", "120", "kitchen", -1)
		rec := conflict(t, e, dish, map[string]interface{}{"name": "New", "price": float64(150)}, nil)

		_, err := e.svc.SyncQueue.Resolve(ctx, e.fx.Outlet.ID, rec.ID, models.StrategyClientWins, e.fx.Owner.ID)
		require.NoError(t, err)

		var reloaded models.Dish
		require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
		assert.Equal(t, "New", reloaded.Name)
		assertDecimal(t, "150", reloaded.Price)
	})

	t.Run("merge keeps server edits", func(t *testing.T) {
		e := newEnv(t, nil)
		dish := testutil.Dish(t, e.db, e.fx.Outlet, "Old", "120", "kitchen", -1)
		rec := conflict(t, e, dish,
			map[string]interface{}{"name": "New", "price": float64(150), "is_available": false},
			map[string]interface{}{"name": "Old", "price": float64(100)},
		)

		_, err := e.svc.SyncQueue.Resolve(ctx, e.fx.Outlet.ID, rec.ID, models.StrategyMerge, e.fx.Owner.ID)
		require.NoError(t, err)

		var reloaded models.Dish
		require.NoError(t, e.db.First(&reloaded, dish.ID).Error)
		assert.Equal(t, "New", reloaded.Name, "server name still equals base")
		assertDecimal(t, "120", reloaded.Price, "server price moved away from base")
		assert.True(t, reloaded.IsAvailable, "no base value, server wins")
	})

	t.Run("unknown strategy", func(t *testing.T) {
		e := newEnv(t, nil)
		_, err := e.svc.SyncQueue.Resolve(ctx, e.fx.Outlet.ID, 1, "coin-flip", e.fx.Owner.ID)
		assertCode(t, err, http.StatusBadRequest, utils.CodeValidation)
	})
}

func TestPullAndList(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	testutil.Table(t, e.db, e.fx.Outlet, "T1")
	testutil.Dish(t, e.db, e.fx.Outlet, "Tea", "20", "bar", -1)

	res, err := e.svc.SyncQueue.Pull(ctx, e.fx.Outlet.ID, "tab-1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, res.Tables, 1)
	assert.Len(t, res.Dishes, 1)
	assert.Empty(t, res.Orders)

	res, err = e.svc.SyncQueue.Pull(ctx, e.fx.Outlet.ID, "tab-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, res.Tables)

	_, err = e.svc.SyncQueue.Pull(ctx, e.fx.Outlet.ID, "", time.Time{})
	assertCode(t, err, http.StatusBadRequest, utils.CodeValidation)

	dish := testutil.Dish(t, e.db, e.fx.Outlet, "Old", "10", "bar", -1)
	conflict(t, e, dish, map[string]interface{}{"name": "New"}, nil)

	p := utils.Pagination{Page: 1, Limit: 20}
	all, total, err := e.svc.SyncQueue.List(ctx, e.fx.Outlet.ID, SyncRecordFilter{DeviceID: "tab-1"}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, all, 3)

	yes := true
	conflicts, total, err := e.svc.SyncQueue.List(ctx, e.fx.Outlet.ID, SyncRecordFilter{Conflict: &yes}, p)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, models.SyncPush, conflicts[0].Direction)
}
