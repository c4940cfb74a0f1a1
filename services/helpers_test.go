package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/testutil"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e messaging.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == key {
			n++
		}
	}
	return n
}

// last returns the most recent event published under key.
func (p *recordingPublisher) last(key string) (messaging.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Type == key {
			return p.events[i], true
		}
	}
	return messaging.Event{}, false
}

type env struct {
	db  *gorm.DB
	fx  *testutil.Fixture
	svc *Container
	pub *recordingPublisher
}

func newEnv(t *testing.T, clients map[string]PlatformAPI) *env {
	t.Helper()
	db := testutil.NewDB(t)
	pub := &recordingPublisher{}
	return &env{
		db:  db,
		fx:  testutil.Seed(t, db),
		svc: NewContainer(db, pub, clients),
		pub: pub,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func assertCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, status, appErr.Status)
	assert.Equal(t, code, appErr.Code)
}

// takeaway places a takeaway order for the given dishes, one of each.
func (e *env) takeaway(t *testing.T, dishes ...*models.Dish) *models.Order {
	t.Helper()
	in := CreateOrderInput{Type: models.OrderTypeTakeaway}
	for _, d := range dishes {
		in.Items = append(in.Items, OrderItemInput{DishID: d.ID, Quantity: 1})
	}
	order, err := e.svc.Orders.CreateOrder(context.Background(), e.fx.Outlet, in)
	require.NoError(t, err)
	return order
}
