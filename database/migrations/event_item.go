package migrations

import (
	"errors"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/models"

	"gorm.io/gorm"
)

// MigrateEventItemsTable creates or updates the single key-value table every record lives in.
func MigrateEventItemsTable(db *gorm.DB) error {
	configslog.SLog.Info("Migrating event_items table...")

	if err := db.AutoMigrate(&models.EventItem{}); err != nil {
		errMsg := "event_items table could not be migrated: " + err.Error()
		configslog.Log.Error(errMsg)
		return errors.New(errMsg)
	}

	configslog.SLog.Info("event_items table migrated.")
	return nil
}
