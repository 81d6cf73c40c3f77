package main

import (
	"flag"

	"invites.fest2.fun/configs"
	"invites.fest2.fun/configs/configsdatabase"
	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/database"

	"go.uber.org/zap"
)

func main() {
	configslog.InitLogger()
	defer configslog.SyncLogger()
	migrateFlag := flag.Bool("migrate", false, "Create or update the event_items table")
	seedFlag := flag.Bool("seed", false, "Store the default invitation templates")
	flag.Parse()

	cfg, err := configs.Load()
	if err != nil {
		configslog.Log.Fatal("Configuration could not be loaded", zap.Error(err))
	}

	configsdatabase.InitDB(cfg.Database)
	defer configsdatabase.CloseDB()

	db := configsdatabase.GetDB()

	configslog.SLog.Info("Running database initialization...")
	database.Initialize(db, *migrateFlag, *seedFlag)
}
