package main

import (
	"context"
	"flag"
	"os"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/sirupsen/logrus"
)

// Links a ledger to every customer and supplier that was created without one,
// e.g. while PARTNER_LEDGER_BEST_EFFORT was enabled.
func main() {
	dryRun := flag.Bool("dry-run", true, "Print actions without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		panic("database not initialized")
	}
	logger := config.GetLogger()
	if logger == nil {
		logger = logrus.New()
	}

	linked, failed, err := models.BackfillPartnerLedgers(context.Background(), db, logger, *dryRun)
	if err != nil {
		panic(err)
	}
	logger.WithFields(logrus.Fields{
		"dry_run": *dryRun,
		"linked":  linked,
		"failed":  failed,
	}).Info("partner ledger backfill finished")
	if failed > 0 {
		os.Exit(1)
	}
}
