package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderServed    = "served"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

const (
	OrderTypeDineIn   = "dine-in"
	OrderTypeTakeaway = "takeaway"
	OrderTypeDelivery = "delivery"
)

const (
	SourcePOS         = "pos"
	SourceCustomerApp = "customer-app"
	SourceKiosk       = "kiosk"
	SourceSwiggy      = "swiggy"
	SourceZomato      = "zomato"
)

const (
	PaymentUnpaid  = "unpaid"
	PaymentPartial = "partial"
	PaymentPaid    = "paid"
)

// orderFlow is the only forward path an order may take.
var orderFlow = []string{OrderPending, OrderConfirmed, OrderPreparing, OrderReady, OrderServed, OrderCompleted}

func orderRank(status string) int {
	for i, s := range orderFlow {
		if s == status {
			return i
		}
	}
	return -1
}

// CanAdvanceOrder reports whether an order may move from one status to another
// along the forward flow. Skipping ahead is allowed, going back is not.
func CanAdvanceOrder(from, to string) bool {
	f, t := orderRank(from), orderRank(to)
	return f >= 0 && t > f
}

func IsValidOrderType(t string) bool {
	switch t {
	case OrderTypeDineIn, OrderTypeTakeaway, OrderTypeDelivery:
		return true
	}
	return false
}

func IsValidOrderSource(s string) bool {
	switch s {
	case SourcePOS, SourceCustomerApp, SourceKiosk, SourceSwiggy, SourceZomato:
		return true
	}
	return false
}

func IsPlatformSource(s string) bool {
	return s == SourceSwiggy || s == SourceZomato
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	TenantID        uint            `gorm:"not null;index" json:"tenant_id"`
	OutletID        uint            `gorm:"not null;index" json:"outlet_id"`
	OrderNumber     string          `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	CustomerID      *uint           `gorm:"index" json:"customer_id,omitempty"`
	Customer        *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	TableID         *uint           `gorm:"index" json:"table_id,omitempty"`
	Table           *Table          `gorm:"foreignKey:TableID" json:"table,omitempty"`
	Type            string          `gorm:"type:varchar(20);not null" json:"type"`
	Source          string          `gorm:"type:varchar(20);not null;default:'pos';uniqueIndex:idx_order_source_external" json:"source"`
	ExternalOrderID *string         `gorm:"type:varchar(100);uniqueIndex:idx_order_source_external" json:"external_order_id,omitempty"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentStatus   string          `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_status"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax"`
	Discount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	CancelReason    string          `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CreatedBy       *uint           `json:"created_by,omitempty"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	KOTs            []KOT           `gorm:"foreignKey:OrderID" json:"kots,omitempty"`
	Payments        []Payment       `gorm:"foreignKey:OrderID" json:"payments,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	PreparingAt     *time.Time      `json:"preparing_at,omitempty"`
	ReadyAt         *time.Time      `json:"ready_at,omitempty"`
	ServedAt        *time.Time      `json:"served_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsTerminal reports whether the order can no longer change.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderCompleted || o.Status == OrderCancelled
}

// RecalculateTotals derives subtotal, tax and total from the active items.
// The discount is capped so the total never goes negative.
func (o *Order) RecalculateTotals() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		if item.Status == ItemCancelled {
			continue
		}
		subtotal = subtotal.Add(item.LineTotal())
	}
	o.Subtotal = subtotal.Round(2)
	o.Tax = o.Subtotal.Mul(o.TaxRate).Round(2)

	gross := o.Subtotal.Add(o.Tax)
	if o.Discount.IsNegative() {
		o.Discount = decimal.Zero
	}
	if o.Discount.GreaterThan(gross) {
		o.Discount = gross
	}
	o.Total = gross.Sub(o.Discount)
	o.RefreshPaymentStatus()
}

// RefreshPaymentStatus derives payment_status from amount_paid and total.
func (o *Order) RefreshPaymentStatus() {
	switch {
	case o.AmountPaid.IsZero() || o.AmountPaid.IsNegative():
		o.PaymentStatus = PaymentUnpaid
		if o.Total.IsZero() && o.Status != OrderCancelled {
			o.PaymentStatus = PaymentPaid
		}
	case o.AmountPaid.GreaterThanOrEqual(o.Total):
		o.PaymentStatus = PaymentPaid
	default:
		o.PaymentStatus = PaymentPartial
	}
}

// Balance is what is still owed on the order.
func (o *Order) Balance() decimal.Decimal {
	b := o.Total.Sub(o.AmountPaid)
	if b.IsNegative() {
		return decimal.Zero
	}
	return b
}

// StampStatus sets the timestamp that belongs to status.
func (o *Order) StampStatus(status string, at time.Time) {
	switch status {
	case OrderConfirmed:
		o.ConfirmedAt = &at
	case OrderPreparing:
		o.PreparingAt = &at
	case OrderReady:
		o.ReadyAt = &at
	case OrderServed:
		o.ServedAt = &at
	case OrderCompleted:
		o.CompletedAt = &at
	case OrderCancelled:
		o.CancelledAt = &at
	}
}
