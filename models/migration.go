package models

import (
	"github.com/mmdatafocus/ledger_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&AccountGroup{}, &Ledger{},
		&Customer{}, &Supplier{},
		&Product{}, &StockMovement{},
		&Invoice{}, &InvoiceItem{},
		&Voucher{}, &VoucherEntry{},
		&IdempotencyKey{},
	)
}
