package models

import "github.com/shopspring/decimal"

func init() {
	// Money is rendered as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&User{},
		&Customer{},
		&Dish{},
		&Table{},
		&Order{},
		&OrderItem{},
		&KOT{},
		&KOTItem{},
		&Payment{},
		&PlatformIntegration{},
		&PlatformItemMapping{},
		&SyncRecord{},
	}
}
