package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerBalance is a ledger's signed balance: positive is a debit balance.
type LedgerBalance struct {
	LedgerId   int             `json:"ledger_id"`
	LedgerName string          `json:"ledger_name"`
	GroupId    int             `json:"group_id"`
	Balance    decimal.Decimal `json:"balance"`
}

type ledgerMovement struct {
	LedgerId int
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

// money columns are decimal(20,4); SQLite sums them as floats
func normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// sumLedgerMovements totals debits and credits per ledger over vouchers dated on or
// before asOf (all vouchers when asOf is nil). ledgerIds nil means every ledger.
func sumLedgerMovements(ctx context.Context, db *gorm.DB, ledgerIds []int, asOf *time.Time) (map[int]ledgerMovement, error) {
	query := db.WithContext(ctx).
		Table("voucher_entries").
		Select("voucher_entries.ledger_id AS ledger_id, COALESCE(SUM(voucher_entries.debit), 0) AS debit, COALESCE(SUM(voucher_entries.credit), 0) AS credit").
		Joins("JOIN vouchers ON vouchers.id = voucher_entries.voucher_id").
		Group("voucher_entries.ledger_id")
	if ledgerIds != nil {
		if len(ledgerIds) == 0 {
			return map[int]ledgerMovement{}, nil
		}
		query = query.Where("voucher_entries.ledger_id IN ?", ledgerIds)
	}
	if asOf != nil {
		query = query.Where("vouchers.date <= ?", utils.DateOnly(*asOf))
	}

	var rows []ledgerMovement
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[int]ledgerMovement, len(rows))
	for _, r := range rows {
		r.Debit = normalize(r.Debit)
		r.Credit = normalize(r.Credit)
		result[r.LedgerId] = r
	}
	return result, nil
}

func balanceOf(ledger *models.Ledger, movements map[int]ledgerMovement) decimal.Decimal {
	m, ok := movements[ledger.ID]
	if !ok {
		return ledger.OpeningBalance
	}
	return ledger.OpeningBalance.Add(m.Debit).Sub(m.Credit)
}

// GetLedgerBalance returns opening balance + Σdebit − Σcredit up to asOf.
// It is recomputed from the entries on every call.
func GetLedgerBalance(ctx context.Context, ledgerId int, asOf *time.Time) (decimal.Decimal, error) {
	ledger, err := models.GetLedger(ctx, ledgerId)
	if err != nil {
		return decimal.Zero, err
	}
	movements, err := sumLedgerMovements(ctx, config.GetDB(), []int{ledgerId}, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return balanceOf(ledger, movements), nil
}

// GetLedgerBalances computes balances for the given ledgers in one query.
func GetLedgerBalances(ctx context.Context, ledgers []*models.Ledger, asOf *time.Time) ([]LedgerBalance, error) {
	ids := make([]int, 0, len(ledgers))
	for _, l := range ledgers {
		ids = append(ids, l.ID)
	}
	movements, err := sumLedgerMovements(ctx, config.GetDB(), ids, asOf)
	if err != nil {
		return nil, err
	}
	result := make([]LedgerBalance, 0, len(ledgers))
	for _, l := range ledgers {
		result = append(result, LedgerBalance{
			LedgerId:   l.ID,
			LedgerName: l.Name,
			GroupId:    l.GroupId,
			Balance:    balanceOf(l, movements),
		})
	}
	return result, nil
}
