package models

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Ledger struct {
	ID             int             `gorm:"primary_key" json:"id"`
	Name           string          `gorm:"size:150;not null;uniqueIndex" json:"name"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_balance"`
	GroupId        int             `gorm:"index;not null" json:"group_id"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLedger struct {
	Name           string          `json:"name" validate:"required,max=150"`
	GroupId        int             `json:"group_id" validate:"required,gt=0"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func ledgerCacheKey(name string) string {
	return "Ledger:" + name
}

// ResolveOrCreateLedger returns the ledger called name, creating it under
// defaultGroupName when it does not exist yet.
//
// Concurrent callers converge on one row: the insert is conflict tolerant on the
// unique name index and the loser re-reads the winner's committed row.
// The group is only required when a ledger has to be created.
func ResolveOrCreateLedger(ctx context.Context, tx *gorm.DB, name string, defaultGroupName string) (*Ledger, error) {
	db := tx.WithContext(ctx)

	existing, err := findLedgerByName(db, name)
	if err != nil || existing != nil {
		return existing, err
	}

	group, err := GetAccountGroupByName(ctx, tx, defaultGroupName)
	if err != nil {
		return nil, err
	}

	ledger := Ledger{Name: name, GroupId: group.ID, OpeningBalance: decimal.Zero}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&ledger)
	if result.Error != nil {
		if !IsDuplicateKeyErr(result.Error) {
			return nil, result.Error
		}
	} else if result.RowsAffected > 0 {
		return &ledger, nil
	}

	// lost the race: another transaction inserted the same name first
	winner, err := findLedgerByName(db, name)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, errors.New("ledger " + strconv.Quote(name) + " conflicted on insert but could not be read back")
	}
	return winner, nil
}

func findLedgerByName(db *gorm.DB, name string) (*Ledger, error) {
	var ledger Ledger
	err := db.Where("name = ?", name).Take(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func GetLedgerByName(ctx context.Context, tx *gorm.DB, name string) (*Ledger, error) {
	ledger, err := findLedgerByName(tx.WithContext(ctx), name)
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return ledger, nil
}

func CreateLedger(ctx context.Context, input *NewLedger) (*Ledger, error) {
	db := config.GetDB()

	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		for field, tag := range utils.ProcessValidationErrors(err) {
			return nil, NewValidationError(field, "failed on "+tag)
		}
		return nil, NewValidationError("", err.Error())
	}

	ledger := Ledger{
		Name:           input.Name,
		GroupId:        input.GroupId,
		OpeningBalance: input.OpeningBalance,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[AccountGroup](ctx, tx, input.GroupId); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return NewValidationError("group_id", "account group does not exist")
			}
			return err
		}
		if err := tx.Create(&ledger).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return NewValidationError("name", "ledger already exists")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	CacheLedgerIds(&ledger)
	return &ledger, nil
}

func GetLedger(ctx context.Context, id int) (*Ledger, error) {
	db := config.GetDB()
	var result Ledger
	err := db.WithContext(ctx).First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetLedgers(ctx context.Context, name *string) ([]*Ledger, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx)
	if name != nil && *name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	var results []*Ledger
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetCachedLedgerId returns a ledger id previously cached by name.
func GetCachedLedgerId(name string) (int, bool) {
	value, exists, err := config.GetRedisValue(ledgerCacheKey(name))
	if err != nil || !exists {
		return 0, false
	}
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CacheLedgerIds stores name -> id. Only call it with committed ledgers:
// a cached id from a rolled back transaction would point at nothing.
func CacheLedgerIds(ledgers ...*Ledger) {
	logger := config.GetLogger()
	for _, l := range ledgers {
		if l == nil || l.ID == 0 {
			continue
		}
		if err := config.SetRedisValue(ledgerCacheKey(l.Name), strconv.Itoa(l.ID), utils.GetCacheLifespan()); err != nil {
			config.LogError(logger, "Ledger", "CacheLedgerIds", "caching ledger id", l.Name, err)
		}
	}
}
