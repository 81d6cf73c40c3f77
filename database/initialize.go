package database

import (
	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/database/migrations"
	"invites.fest2.fun/database/seeders"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Initialize runs the requested migrations and seeders in one transaction.
func Initialize(db *gorm.DB, migrate bool, seed bool) {
	if !migrate && !seed {
		configslog.SLog.Info("Neither migrate nor seed requested, nothing to do.")
		return
	}

	tx := db.Begin()
	if tx.Error != nil {
		configslog.Log.Fatal("Database transaction could not be started", zap.Error(tx.Error))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			configslog.Log.Fatal("Database initialization panicked", zap.Any("panic_info", r))
		} else if err := tx.Error; err != nil && err != gorm.ErrInvalidTransaction {
			configslog.SLog.Warn("Rolling back after an initialization error.", zap.Error(err))
			rbErr := tx.Rollback().Error
			if rbErr != nil && rbErr != gorm.ErrInvalidTransaction {
				configslog.Log.Error("Rollback failed as well", zap.Error(rbErr))
			}
		}
	}()

	configslog.SLog.Info("Database initialization starting...")

	if migrate {
		if err := RunMigrationsInOrder(tx); err != nil {
			tx.Error = err
			configslog.Log.Error("Migration failed", zap.Error(err))
			return
		}
	} else {
		configslog.SLog.Info("Migrate flag not set, skipping migrations.")
	}

	if seed {
		if err := CheckAndRunSeeders(tx); err != nil {
			tx.Error = err
			configslog.Log.Error("Seeding failed", zap.Error(err))
			return
		}
	} else {
		configslog.SLog.Info("Seed flag not set, skipping seeders.")
	}

	configslog.SLog.Info("Committing...")
	if err := tx.Commit().Error; err != nil {
		tx.Error = err
		configslog.Log.Error("Commit failed", zap.Error(err))
		return
	}

	configslog.SLog.Info("Database initialization finished")
}

func RunMigrationsInOrder(db *gorm.DB) error {
	configslog.SLog.Info(" -> event_items migration running...")
	if err := migrations.MigrateEventItemsTable(db); err != nil {
		return err
	}
	configslog.SLog.Info(" -> event_items migration done.")
	return nil
}

func CheckAndRunSeeders(db *gorm.DB) error {
	configslog.SLog.Info(" -> Template seeder running...")
	if err := seeders.SeedTemplates(db); err != nil {
		return err
	}
	configslog.SLog.Info(" -> Template seeder done.")
	return nil
}
