package workflow

import (
	"context"
	"strings"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ProcessInvoiceIdempotent runs ProcessInvoice at most once per client key.
// A repeated key returns the invoice of the first committed request with replayed=true.
// The key row is inserted first, so a concurrent duplicate waits on the unique
// index and then sees the committed row.
func ProcessInvoiceIdempotent(ctx context.Context, db *gorm.DB, logger *logrus.Logger, key string, input *models.NewInvoice) (invoice *models.Invoice, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		invoice, err = ProcessInvoice(ctx, db, logger, input)
		return invoice, false, err
	}
	if len(key) > 100 {
		return nil, false, models.NewValidationError("Idempotency-Key", "must be at most 100 characters")
	}
	if err := validateInvoiceInput(input); err != nil {
		return nil, false, err
	}

	var ledgers []*models.Ledger
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := models.IdempotencyKey{Scope: models.IdempotencyScopeInvoice, RequestKey: key}
		insertErr := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(&record).Error
		})
		if insertErr != nil {
			if !models.IsDuplicateKeyErr(insertErr) {
				return insertErr
			}
			var existing models.IdempotencyKey
			if err := tx.Where("scope = ? AND request_key = ?", models.IdempotencyScopeInvoice, key).
				Take(&existing).Error; err != nil {
				return err
			}
			found, err := models.GetInvoiceTx(ctx, tx, existing.ResourceId)
			if err != nil {
				return err
			}
			invoice, replayed = found, true
			return nil
		}

		var err error
		invoice, ledgers, err = processInvoiceTx(ctx, tx, logger, input)
		if err != nil {
			return err
		}
		return tx.Model(&models.IdempotencyKey{}).
			Where("id = ?", record.ID).
			Update("resource_id", invoice.ID).Error
	})
	if err != nil {
		config.LogError(logger, "Idempotency", "ProcessInvoiceIdempotent", "process invoice", key, err)
		return nil, false, err
	}
	models.CacheLedgerIds(ledgers...)
	return invoice, replayed, nil
}
