package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// StatusChange is the payload of order.status_changed and kot.status_changed.
type StatusChange struct {
	ID     uint   `json:"id"`
	Number string `json:"number"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func publishEvent(ctx context.Context, pub messaging.EventPublisher, key string, tenantID, outletID uint, data interface{}) {
	if pub == nil {
		return
	}
	err := pub.Publish(ctx, messaging.Event{
		Type:       key,
		TenantID:   tenantID,
		OutletID:   outletID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"event":     key,
			"outlet_id": outletID,
		}).Warnf("event not published: %v", err)
	}
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102") + "-" + shortID()
}

func newKOTNumber(now time.Time) string {
	return "KOT-" + now.Format("20060102") + "-" + shortID()
}
