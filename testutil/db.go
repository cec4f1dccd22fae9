// Package testutil opens a migrated and seeded database for package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a file-backed SQLite database, installs it as the global connection,
// migrates every table and seeds the default chart of accounts.
//
// A single connection serializes transactions the way row locks do on MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, true)
}

// NewEmptyDB is NewDB without the chart of accounts.
func NewEmptyDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, false)
}

func open(t *testing.T, seed bool) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), config.NewGormConfig(logger.Default.LogMode(logger.Silent)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	previous := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(previous)
		_ = sqlDB.Close()
	})

	if err := models.MigrateTable(); err != nil {
		t.Fatalf("MigrateTable: %v", err)
	}
	if seed {
		if _, err := models.SeedChartOfAccounts(context.Background(), db); err != nil {
			t.Fatalf("SeedChartOfAccounts: %v", err)
		}
	}
	return db
}

// Logger discards output below warn level.
func Logger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return l
}

func CreateProduct(t *testing.T, name string, price string, stock int) *models.Product {
	t.Helper()
	product, err := models.CreateProduct(context.Background(), &models.NewProduct{
		Name:         name,
		Sku:          name,
		Price:        decimal.RequireFromString(price),
		OpeningStock: stock,
	})
	if err != nil {
		t.Fatalf("CreateProduct(%s): %v", name, err)
	}
	return product
}

func CreateCustomer(t *testing.T, name string) *models.Customer {
	t.Helper()
	customer, err := models.CreateCustomer(context.Background(), &models.NewCustomer{Name: name})
	if err != nil {
		t.Fatalf("CreateCustomer(%s): %v", name, err)
	}
	return customer
}

func CreateSupplier(t *testing.T, name string) *models.Supplier {
	t.Helper()
	supplier, err := models.CreateSupplier(context.Background(), &models.NewSupplier{Name: name})
	if err != nil {
		t.Fatalf("CreateSupplier(%s): %v", name, err)
	}
	return supplier
}

// LedgerByName fails the test when the ledger does not exist.
func LedgerByName(t *testing.T, name string) *models.Ledger {
	t.Helper()
	ledger, err := models.GetLedgerByName(context.Background(), config.GetDB(), name)
	if err != nil {
		t.Fatalf("GetLedgerByName(%s): %v", name, err)
	}
	return ledger
}
