package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type TrialBalanceRow struct {
	LedgerId   int                  `json:"ledger_id"`
	LedgerName string               `json:"ledger_name"`
	GroupName  string               `json:"group_name"`
	Nature     models.AccountNature `json:"nature"`
	Debit      decimal.Decimal      `json:"debit"`
	Credit     decimal.Decimal      `json:"credit"`
}

type TrialBalance struct {
	AsOf        *time.Time         `json:"as_of"`
	Rows        []*TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	IsBalanced  bool               `json:"is_balanced"`
}

// GetTrialBalance lists every ledger with a nonzero balance, debit balances in
// the debit column and credit balances in the credit column.
func GetTrialBalance(ctx context.Context, asOf *time.Time) (*TrialBalance, error) {
	db := config.GetDB()

	var ledgers []*models.Ledger
	if err := db.WithContext(ctx).Order("name").Find(&ledgers).Error; err != nil {
		return nil, err
	}
	tree, err := models.LoadGroupTree(ctx, db)
	if err != nil {
		return nil, err
	}
	movements, err := sumLedgerMovements(ctx, db, nil, asOf)
	if err != nil {
		return nil, err
	}

	tb := TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Rows: []*TrialBalanceRow{}}
	if asOf != nil {
		day := utils.DateOnly(*asOf)
		tb.AsOf = &day
	}
	for _, l := range ledgers {
		balance := balanceOf(l, movements)
		if balance.IsZero() {
			continue
		}
		row := &TrialBalanceRow{
			LedgerId:   l.ID,
			LedgerName: l.Name,
			Debit:      decimal.Zero,
			Credit:     decimal.Zero,
		}
		if g, ok := tree.Get(l.GroupId); ok {
			row.GroupName = g.Name
			row.Nature = g.Nature
		}
		if balance.IsPositive() {
			row.Debit = balance
		} else {
			row.Credit = balance.Neg()
		}
		tb.TotalDebit = tb.TotalDebit.Add(row.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(row.Credit)
		tb.Rows = append(tb.Rows, row)
	}
	tb.IsBalanced = tb.TotalDebit.Equal(tb.TotalCredit)
	return &tb, nil
}
