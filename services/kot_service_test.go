package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/testutil"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func TestKOTStatusDrivesOrder(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	outletID := e.fx.Outlet.ID
	noodles := testutil.Dish(t, e.db, e.fx.Outlet, "Noodles", "70", "kitchen", -1)
	lassi := testutil.Dish(t, e.db, e.fx.Outlet, "Lassi", "35", "bar", -1)
	order := e.takeaway(t, noodles, lassi)
	require.Len(t, order.KOTs, 2)
	kitchenKOT, barKOT := order.KOTs[0], order.KOTs[1]

	kot, err := e.svc.KOTs.UpdateStatus(ctx, outletID, kitchenKOT.ID, models.KOTPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.KOTPreparing, kot.Status)
	assert.NotNil(t, kot.StartedAt)

	current, err := e.svc.Orders.GetOrder(ctx, outletID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreparing, current.Status)
	for _, item := range current.Items {
		if item.DishID == noodles.ID {
			assert.Equal(t, models.ItemPreparing, item.Status)
		} else {
			assert.Equal(t, models.ItemPending, item.Status)
		}
	}

	_, err = e.svc.KOTs.UpdateStatus(ctx, outletID, kitchenKOT.ID, models.KOTReady)
	require.NoError(t, err)
	current, err = e.svc.Orders.GetOrder(ctx, outletID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreparing, current.Status, "the bar ticket is still open")

	_, err = e.svc.KOTs.UpdateStatus(ctx, outletID, barKOT.ID, models.KOTReady)
	require.NoError(t, err)
	current, err = e.svc.Orders.GetOrder(ctx, outletID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderReady, current.Status)
	assert.NotNil(t, current.ReadyAt)
	for _, kot := range current.KOTs {
		for _, item := range kot.Items {
			assert.Equal(t, models.ItemReady, item.Status)
		}
	}

	assert.Equal(t, 3, e.pub.count(messaging.KeyKOTStatusChanged))
}

func TestKOTStatusRejectsBackwardMoves(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	soup := testutil.Dish(t, e.db, e.fx.Outlet, "Soup", "45", "kitchen", -1)
	order := e.takeaway(t, soup)
	kotID := order.KOTs[0].ID

	_, err := e.svc.KOTs.UpdateStatus(ctx, e.fx.Outlet.ID, kotID, models.KOTReady)
	require.NoError(t, err)
	_, err = e.svc.KOTs.UpdateStatus(ctx, e.fx.Outlet.ID, kotID, models.KOTPreparing)
	assertCode(t, err, http.StatusConflict, utils.CodeInvalidTransition)

	_, err = e.svc.KOTs.UpdateStatus(ctx, e.fx.Outlet.ID+100, kotID, models.KOTReady)
	assertCode(t, err, http.StatusNotFound, utils.CodeNotFound)
}

func TestListForKitchen(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	rice := testutil.Dish(t, e.db, e.fx.Outlet, "Rice", "25", "kitchen", -1)
	coffee := testutil.Dish(t, e.db, e.fx.Outlet, "Coffee", "30", "bar", -1)
	first := e.takeaway(t, rice, coffee)
	e.takeaway(t, rice)

	_, err := e.svc.KOTs.UpdateStatus(ctx, e.fx.Outlet.ID, first.KOTs[0].ID, models.KOTReady)
	require.NoError(t, err)

	open, err := e.svc.KOTs.ListForKitchen(ctx, e.fx.Outlet.ID, "", "")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	kitchen, err := e.svc.KOTs.ListForKitchen(ctx, e.fx.Outlet.ID, "kitchen", "all")
	require.NoError(t, err)
	assert.Len(t, kitchen, 2)

	ready, err := e.svc.KOTs.ListForKitchen(ctx, e.fx.Outlet.ID, "", models.KOTReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Len(t, ready[0].Items, 1)

	byOrder, err := e.svc.KOTs.ListByOrder(ctx, e.fx.Outlet.ID, first.ID)
	require.NoError(t, err)
	assert.Len(t, byOrder, 2)
}

func TestKOTStatusLeavesServedItemsAlone(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	outletID := e.fx.Outlet.ID
	curry := testutil.Dish(t, e.db, e.fx.Outlet, "Curry", "60", "kitchen", -1)
	order := e.takeaway(t, curry)

	_, err := e.svc.Orders.UpdateStatus(ctx, outletID, order.ID, models.OrderServed)
	require.NoError(t, err)

	_, err = e.svc.KOTs.UpdateStatus(ctx, outletID, order.KOTs[0].ID, models.KOTPreparing)
	require.NoError(t, err)
	_, err = e.svc.KOTs.UpdateStatus(ctx, outletID, order.KOTs[0].ID, models.KOTReady)
	require.NoError(t, err)

	current, err := e.svc.Orders.GetOrder(ctx, outletID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderServed, current.Status)
	require.Len(t, current.Items, 1)
	assert.Equal(t, models.ItemServed, current.Items[0].Status)
}

func TestKOTStatusEventCarriesPreviousStatus(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	tea := testutil.Dish(t, e.db, e.fx.Outlet, "Tea", "15", "bar", -1)
	order := e.takeaway(t, tea)

	_, err := e.svc.KOTs.UpdateStatus(ctx, e.fx.Outlet.ID, order.KOTs[0].ID, models.KOTPreparing)
	require.NoError(t, err)

	event, ok := e.pub.last(messaging.KeyKOTStatusChanged)
	require.True(t, ok)
	change, ok := event.Data.(StatusChange)
	require.True(t, ok, "unexpected payload %T", event.Data)
	assert.Equal(t, models.KOTPending, change.From)
	assert.Equal(t, models.KOTPreparing, change.To)
	assert.Equal(t, order.KOTs[0].ID, change.ID)
}
