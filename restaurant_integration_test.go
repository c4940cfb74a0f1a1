package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/testutil"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger("error", "text")
	os.Exit(m.Run())
}

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *utils.ErrorBody `json:"error"`
}

// TestEndToEndIntegration walks a takeaway order through the HTTP API:
// 0. seed company, outlet, owner and two dishes, then log in
// 1. create the order, which reserves stock and raises KOTs per section
// 2. cancel one item, which gives its stock back and reprices the order
// 3. apply a discount and pay in two parts
// 4. mark the tickets ready and complete the order
func TestEndToEndIntegration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	noodles := testutil.Dish(t, db, fx.Outlet, "Mie Ayam", "40", models.DefaultKitchenSection, 10)
	tea := testutil.Dish(t, db, fx.Outlet, "Es Teh", "10", "bar", -1)

	cfg := &config.Config{
		JWTSecret:      "integration-secret",
		DefaultTaxRate: decimal.RequireFromString("0.10"),
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		CORSOrigins:    []string{"*"},
	}
	r := router.SetupRouter(db, cfg, utils.NewTokenManager(cfg.JWTSecret, time.Hour), services.NewContainer(db, nil, nil))

	call := func(method, path, token string, body interface{}, want int, out interface{}) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, want, w.Code, "%s %s -> %s", method, path, w.Body.String())

		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		if out != nil {
			require.NoError(t, json.Unmarshal(env.Data, out))
		}
	}

	// 0. login
	var login struct {
		Token string `json:"token"`
	}
	call(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": fx.Owner.Email, "password": testutil.Password}, http.StatusOK, &login)
	token := login.Token
	base := fmt.Sprintf("/api/v1/outlets/%d", fx.Outlet.ID)

	// 1. create order
	var order models.Order
	call(http.MethodPost, base+"/orders", token, gin.H{
		"type": models.OrderTypeTakeaway,
		"items": []gin.H{
			{"dish_id": noodles.ID, "quantity": 2},
			{"dish_id": tea.ID, "quantity": 1},
		},
	}, http.StatusCreated, &order)
	require.Len(t, order.Items, 2)
	require.Len(t, order.KOTs, 2)
	assert.True(t, decimal.RequireFromString("99").Equal(order.Total), "got %s", order.Total)

	var stocked models.Dish
	require.NoError(t, db.First(&stocked, noodles.ID).Error)
	assert.Equal(t, 8, stocked.Stock)

	// 2. cancel the noodles
	var noodleItem models.OrderItem
	for _, item := range order.Items {
		if item.DishID == noodles.ID {
			noodleItem = item
		}
	}
	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/items/%d/cancel", base, order.ID, noodleItem.ID), token, nil, http.StatusOK, &order)
	assert.True(t, decimal.RequireFromString("11").Equal(order.Total), "got %s", order.Total)
	require.NoError(t, db.First(&stocked, noodles.ID).Error)
	assert.Equal(t, 10, stocked.Stock)

	// 3. discount and split payment
	call(http.MethodPatch, fmt.Sprintf("%s/orders/%d/discount", base, order.ID), token, gin.H{"discount": 1}, http.StatusOK, &order)
	assert.True(t, decimal.RequireFromString("10").Equal(order.Total), "got %s", order.Total)

	var paid struct {
		Order models.Order `json:"order"`
	}
	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/payments", base, order.ID), token, gin.H{"amount": 4, "method": models.MethodCard}, http.StatusCreated, &paid)
	assert.Equal(t, models.PaymentPartial, paid.Order.PaymentStatus)

	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/payments", base, order.ID), token, gin.H{"amount": 7, "method": models.MethodCard}, http.StatusBadRequest, nil)
	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/payments", base, order.ID), token, gin.H{"amount": 6, "method": models.MethodCard}, http.StatusCreated, &paid)
	assert.Equal(t, models.PaymentPaid, paid.Order.PaymentStatus)

	var payments []models.Payment
	call(http.MethodGet, fmt.Sprintf("%s/orders/%d/payments", base, order.ID), token, nil, http.StatusOK, &payments)
	assert.Len(t, payments, 2)

	// 4. kitchen and completion
	var kots []models.KOT
	call(http.MethodGet, fmt.Sprintf("%s/orders/%d/kots", base, order.ID), token, nil, http.StatusOK, &kots)
	for _, kot := range kots {
		if kot.Status == models.KOTCancelled {
			continue
		}
		call(http.MethodPatch, fmt.Sprintf("%s/kots/%d/status", base, kot.ID), token, gin.H{"status": models.KOTReady}, http.StatusOK, nil)
	}

	var done models.Order
	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/complete", base, order.ID), token, nil, http.StatusOK, &done)
	assert.Equal(t, models.OrderCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	call(http.MethodPost, fmt.Sprintf("%s/orders/%d/cancel", base, order.ID), token, nil, http.StatusConflict, nil)
}

func TestHealthEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	cfg := &config.Config{JWTSecret: "x", RateLimitRPS: 10, RateLimitBurst: 10, CORSOrigins: []string{"*"}}
	r := router.SetupRouter(db, cfg, utils.NewTokenManager(cfg.JWTSecret, time.Hour), services.NewContainer(db, nil, nil))

	for _, path := range []string{"/ping", "/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
