package database

import (
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// backfills repair rows written before a column gained its current meaning.
// Each statement is idempotent.
var backfills = []string{
	"UPDATE tenants SET root_id = id WHERE type = 'company' AND (root_id IS NULL OR root_id = 0)",
	"UPDATE dishes SET kitchen_section = 'kitchen' WHERE kitchen_section IS NULL OR kitchen_section = ''",
	"UPDATE orders SET payment_status = 'unpaid' WHERE payment_status IS NULL OR payment_status = ''",
}

// Migrate brings the schema up to date and runs the backfills.
// A failing backfill is logged and skipped.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	utils.InfoLogger.Info("AutoMigrate completed")

	for _, stmt := range backfills {
		res := db.Exec(stmt)
		if res.Error != nil {
			utils.ErrorLogger.WithField("statement", stmt).Errorf("backfill failed: %v", res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			utils.InfoLogger.WithField("statement", stmt).Infof("backfilled %d rows", res.RowsAffected)
		}
	}
	return nil
}
