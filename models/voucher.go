package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Voucher struct {
	ID            int                  `gorm:"primary_key" json:"id"`
	Type          VoucherType          `gorm:"size:20;not null;index" json:"voucher_type"`
	Number        string               `gorm:"size:100;not null;uniqueIndex" json:"number"`
	Date          time.Time            `gorm:"not null;index" json:"date"`
	Narration     string               `gorm:"type:text" json:"narration"`
	ReferenceType VoucherReferenceType `gorm:"size:20" json:"reference_type"`
	ReferenceId   int                  `gorm:"index" json:"reference_id"`
	CreatedBy     string               `gorm:"size:100" json:"created_by"`
	Entries       []VoucherEntry       `gorm:"foreignKey:VoucherId;constraint:OnDelete:CASCADE" json:"entries"`
	CreatedAt     time.Time            `gorm:"autoCreateTime" json:"created_at"`
}

// VoucherEntry is one leg; exactly one of Debit and Credit is nonzero.
type VoucherEntry struct {
	ID        int             `gorm:"primary_key" json:"id"`
	VoucherId int             `gorm:"index;not null" json:"voucher_id"`
	LedgerId  int             `gorm:"index;not null" json:"ledger_id"`
	Ledger    *Ledger         `gorm:"foreignKey:LedgerId" json:"ledger,omitempty"`
	Debit     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit"`
	Credit    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit"`
}

// AmountScale is the number of fractional digits every amount column stores.
const AmountScale = 4

// ExceedsAmountScale reports an amount the decimal(20,4) columns would round.
func ExceedsAmountScale(d decimal.Decimal) bool {
	return !d.Equal(d.Truncate(AmountScale))
}

// Totals sums both sides of the attached entries.
func (v *Voucher) Totals() (debit decimal.Decimal, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, e := range v.Entries {
		debit = debit.Add(e.Debit)
		credit = credit.Add(e.Credit)
	}
	return debit, credit
}

// BeforeCreate refuses to persist a voucher whose entries do not balance.
func (v *Voucher) BeforeCreate(tx *gorm.DB) error {
	if len(v.Entries) == 0 {
		return nil
	}
	debit, credit := v.Totals()
	if !debit.Equal(credit) {
		return &UnbalancedVoucherError{Debit: debit, Credit: credit}
	}
	return nil
}

func GetVoucher(ctx context.Context, id int) (*Voucher, error) {
	db := config.GetDB()
	var result Voucher
	err := db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Entries.Ledger").
		First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDayBook lists vouchers dated within [from, to], oldest first.
func GetDayBook(ctx context.Context, from time.Time, to time.Time) ([]*Voucher, error) {
	db := config.GetDB()
	var results []*Voucher
	err := db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Entries.Ledger").
		Where("date >= ? AND date <= ?", utils.DateOnly(from), utils.DateOnly(to)).
		Order("date").Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
