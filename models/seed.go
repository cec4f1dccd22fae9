package models

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type defaultGroup struct {
	Name   string
	Nature AccountNature
	Parent string
}

// parents are listed before their children
var defaultGroups = []defaultGroup{
	{GroupAssets, AccountNatureAssets, ""},
	{GroupLiabilities, AccountNatureLiabilities, ""},
	{GroupIncome, AccountNatureIncome, ""},
	{GroupExpenses, AccountNatureExpenses, ""},

	{GroupCurrentAssets, AccountNatureAssets, GroupAssets},
	{GroupCurrentLiabilities, AccountNatureLiabilities, GroupLiabilities},
	{GroupFixedAssets, AccountNatureAssets, GroupAssets},
	{GroupDirectIncome, AccountNatureIncome, GroupIncome},
	{GroupIndirectIncome, AccountNatureIncome, GroupIncome},
	{GroupDirectExpenses, AccountNatureExpenses, GroupExpenses},
	{GroupIndirectExpenses, AccountNatureExpenses, GroupExpenses},

	{GroupSundryDebtors, AccountNatureAssets, GroupCurrentAssets},
	{GroupSundryCreditors, AccountNatureLiabilities, GroupCurrentLiabilities},
	{GroupBankAccounts, AccountNatureAssets, GroupCurrentAssets},
	{GroupCashInHand, AccountNatureAssets, GroupCurrentAssets},
	{GroupSalesAccounts, AccountNatureIncome, GroupIncome},
	{GroupPurchaseAccounts, AccountNatureExpenses, GroupExpenses},
	{GroupDutiesAndTaxes, AccountNatureLiabilities, GroupCurrentLiabilities},
}

// SeedChartOfAccounts creates the default account groups. Existing groups are left untouched.
// It returns the number of groups created.
func SeedChartOfAccounts(ctx context.Context, db *gorm.DB) (int, error) {
	created := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make(map[string]int, len(defaultGroups))
		for _, g := range defaultGroups {
			group := AccountGroup{Name: g.Name, Nature: g.Nature}
			if g.Parent != "" {
				parentId := ids[g.Parent]
				group.ParentId = &parentId
			}
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&group)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				created++
				ids[g.Name] = group.ID
				continue
			}
			var existing AccountGroup
			if err := tx.Where("name = ?", g.Name).Take(&existing).Error; err != nil {
				return err
			}
			ids[g.Name] = existing.ID
		}
		return nil
	})
	if created > 0 {
		invalidateAccountGroupList()
	}
	return created, err
}
