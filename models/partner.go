package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerHolder is a trading partner that owns the link to its accounting ledger.
type LedgerHolder interface {
	GetId() int
	GetLedgerId() *int
	SetLedgerId(id int)
	PartnerName() string
	PartnerKind() PartnerKind
	DefaultLedgerGroup() string
	TableName() string
}

// PartnerLedgerName is "{Kind}: {name}".
func PartnerLedgerName(holder LedgerHolder) string {
	return fmt.Sprintf("%s: %s", holder.PartnerKind(), holder.PartnerName())
}

// ProvisionPartnerLedger makes sure holder is linked to a ledger and returns it.
// It must run in the caller's transaction; the link is written through tx.
func ProvisionPartnerLedger(ctx context.Context, tx *gorm.DB, holder LedgerHolder) (*Ledger, error) {
	db := tx.WithContext(ctx)

	if ledgerId := holder.GetLedgerId(); ledgerId != nil {
		var linked Ledger
		err := db.First(&linked, *ledgerId).Error
		if err == nil {
			return &linked, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		// dangling link, provision again
	}

	name := PartnerLedgerName(holder)
	existing, err := findLedgerByName(db, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// two partners of the same kind and name must not share a ledger
		var count int64
		if err := db.Table(holder.TableName()).
			Where("ledger_id = ? AND id <> ?", existing.ID, holder.GetId()).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			name = disambiguatedLedgerName(holder)
		}
	}

	ledger, err := linkPartnerLedger(ctx, tx, holder, name)
	if IsDuplicateKeyErr(err) && name != disambiguatedLedgerName(holder) {
		// a concurrent partner of the same name linked the ledger after the check above
		ledger, err = linkPartnerLedger(ctx, tx, holder, disambiguatedLedgerName(holder))
	}
	if err != nil {
		return nil, err
	}
	holder.SetLedgerId(ledger.ID)
	return ledger, nil
}

func disambiguatedLedgerName(holder LedgerHolder) string {
	return fmt.Sprintf("%s (#%d)", PartnerLedgerName(holder), holder.GetId())
}

// linkPartnerLedger resolves the ledger called name and links it to holder in a
// savepoint. The unique ledger_id index turns a shared ledger into a duplicate key error.
func linkPartnerLedger(ctx context.Context, tx *gorm.DB, holder LedgerHolder, name string) (*Ledger, error) {
	var ledger *Ledger
	err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		var err error
		ledger, err = ResolveOrCreateLedger(ctx, sp, name, holder.DefaultLedgerGroup())
		if err != nil {
			return err
		}
		return sp.Table(holder.TableName()).
			Where("id = ?", holder.GetId()).
			Update("ledger_id", ledger.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func validatePartnerInput(input any) error {
	if err := utils.ValidateStruct(input); err != nil {
		for field, tag := range utils.ProcessValidationErrors(err) {
			return NewValidationError(field, "failed on "+tag)
		}
		return NewValidationError("", err.Error())
	}
	return nil
}

// createPartnerWithLedger inserts the partner and its ledger in one transaction.
// With PARTNER_LEDGER_BEST_EFFORT the ledger is provisioned in a savepoint and a
// failure keeps the partner without a ledger; the first invoice provisions it.
func createPartnerWithLedger(ctx context.Context, holder LedgerHolder) error {
	db := config.GetDB()
	logger := config.GetLogger()
	bestEffort := config.PartnerLedgerBestEffort()

	var ledger *Ledger
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(holder).Error; err != nil {
			return err
		}
		if !bestEffort {
			var err error
			ledger, err = ProvisionPartnerLedger(ctx, tx, holder)
			if err != nil {
				config.LogError(logger, string(holder.PartnerKind()), "createPartnerWithLedger", "provisioning partner ledger", holder.PartnerName(), err)
			}
			return err
		}

		if err := tx.Transaction(func(sp *gorm.DB) error {
			var err error
			ledger, err = ProvisionPartnerLedger(ctx, sp, holder)
			return err
		}); err != nil {
			ledger = nil
			logger.WithFields(logrus.Fields{
				"module":   string(holder.PartnerKind()),
				"funcName": "createPartnerWithLedger",
				"partner":  holder.GetId(),
			}).Warn("partner saved without ledger: " + err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}
	CacheLedgerIds(ledger)
	return nil
}

// BackfillPartnerLedgers links a ledger to every customer and supplier that has none.
// Each partner is provisioned in its own transaction; failures are logged and counted.
func BackfillPartnerLedgers(ctx context.Context, db *gorm.DB, logger *logrus.Logger, dryRun bool) (linked int, failed int, err error) {
	var customers []*Customer
	if err := db.WithContext(ctx).Where("ledger_id IS NULL").Order("id").Find(&customers).Error; err != nil {
		return 0, 0, err
	}
	var suppliers []*Supplier
	if err := db.WithContext(ctx).Where("ledger_id IS NULL").Order("id").Find(&suppliers).Error; err != nil {
		return 0, 0, err
	}

	holders := make([]LedgerHolder, 0, len(customers)+len(suppliers))
	for _, c := range customers {
		holders = append(holders, c)
	}
	for _, s := range suppliers {
		holders = append(holders, s)
	}

	for _, holder := range holders {
		if dryRun {
			logger.WithFields(logrus.Fields{"kind": holder.PartnerKind(), "id": holder.GetId()}).Info("would provision " + PartnerLedgerName(holder))
			linked++
			continue
		}
		var ledger *Ledger
		txErr := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			ledger, err = ProvisionPartnerLedger(ctx, tx, holder)
			return err
		})
		if txErr != nil {
			config.LogError(logger, "Partner", "BackfillPartnerLedgers", "provisioning partner ledger", holder.GetId(), txErr)
			failed++
			continue
		}
		CacheLedgerIds(ledger)
		linked++
	}
	return linked, failed, nil
}
