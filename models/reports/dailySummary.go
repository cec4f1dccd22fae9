package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
)

type DailySummary struct {
	Date         time.Time       `json:"date"`
	Sales        decimal.Decimal `json:"sales"`
	Purchase     decimal.Decimal `json:"purchase"`
	Receipt      decimal.Decimal `json:"receipt"`
	Payment      decimal.Decimal `json:"payment"`
	BankBalances []LedgerBalance `json:"bank_balances"`
	CashBalances []LedgerBalance `json:"cash_balances"`
}

// GetDailySummary reports the headline amount per voucher type for date and the
// balances of every bank and cash ledger as of date.
//
// The headline is Σdebit of that type's vouchers; every voucher balances, so
// it equals Σcredit.
func GetDailySummary(ctx context.Context, date time.Time) (*DailySummary, error) {
	db := config.GetDB()
	day := utils.DateOnly(date)

	var rows []struct {
		Type  models.VoucherType
		Total decimal.Decimal
	}
	err := db.WithContext(ctx).
		Table("voucher_entries").
		Select("vouchers.type AS type, COALESCE(SUM(voucher_entries.debit), 0) AS total").
		Joins("JOIN vouchers ON vouchers.id = voucher_entries.voucher_id").
		Where("vouchers.date = ?", day).
		Group("vouchers.type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summary := DailySummary{
		Date:     day,
		Sales:    decimal.Zero,
		Purchase: decimal.Zero,
		Receipt:  decimal.Zero,
		Payment:  decimal.Zero,
	}
	for _, r := range rows {
		total := normalize(r.Total)
		switch r.Type {
		case models.VoucherTypeSales:
			summary.Sales = total
		case models.VoucherTypePurchase:
			summary.Purchase = total
		case models.VoucherTypeReceipt:
			summary.Receipt = total
		case models.VoucherTypePayment:
			summary.Payment = total
		}
	}

	tree, err := models.LoadGroupTree(ctx, db)
	if err != nil {
		return nil, err
	}
	summary.BankBalances, err = groupLedgerBalances(ctx, tree, models.GroupBankAccounts, &day)
	if err != nil {
		return nil, err
	}
	summary.CashBalances, err = groupLedgerBalances(ctx, tree, models.GroupCashInHand, &day)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// groupLedgerBalances covers the named group and all groups below it.
func groupLedgerBalances(ctx context.Context, tree *models.GroupTree, groupName string, asOf *time.Time) ([]LedgerBalance, error) {
	group, ok := tree.ByName(groupName)
	if !ok {
		return nil, &models.ConfigurationError{Kind: "account group", Name: groupName}
	}
	groupIds := append([]int{group.ID}, tree.Descendants(group.ID)...)

	var ledgers []*models.Ledger
	if err := config.GetDB().WithContext(ctx).Where("group_id IN ?", groupIds).Order("name").Find(&ledgers).Error; err != nil {
		return nil, err
	}
	return GetLedgerBalances(ctx, ledgers, asOf)
}
