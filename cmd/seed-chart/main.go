package main

import (
	"context"
	"flag"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/sirupsen/logrus"
)

func main() {
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		panic("database not initialized")
	}
	logger := config.GetLogger()
	if logger == nil {
		logger = logrus.New()
	}

	if *migrate {
		if err := models.MigrateTable(); err != nil {
			panic(err)
		}
		logger.WithFields(logrus.Fields{"field": "migrations"}).Info("tables migrated")
	}

	created, err := models.SeedChartOfAccounts(context.Background(), db)
	if err != nil {
		panic(err)
	}
	logger.WithFields(logrus.Fields{"created": created}).Info("chart of accounts seeded")
}
