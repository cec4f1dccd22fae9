package models_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/testutil"
)

func intPtr(v int) *int { return &v }

func sampleTree() *models.GroupTree {
	return models.NewGroupTree([]models.AccountGroup{
		{ID: 1, Name: "Assets", Nature: models.AccountNatureAssets},
		{ID: 2, Name: "Current Assets", Nature: models.AccountNatureAssets, ParentId: intPtr(1)},
		{ID: 3, Name: "Bank Accounts", Nature: models.AccountNatureAssets, ParentId: intPtr(2)},
		{ID: 4, Name: "Cash-in-Hand", Nature: models.AccountNatureAssets, ParentId: intPtr(2)},
		{ID: 5, Name: "Petty Cash", Nature: models.AccountNatureAssets, ParentId: intPtr(4)},
		{ID: 6, Name: "Liabilities", Nature: models.AccountNatureLiabilities},
	})
}

func TestGroupTree_Ancestors(t *testing.T) {
	tree := sampleTree()
	var names []string
	for _, g := range tree.Ancestors(5) {
		names = append(names, g.Name)
	}
	want := []string{"Cash-in-Hand", "Current Assets", "Assets"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	if got := tree.Ancestors(1); len(got) != 0 {
		t.Fatalf("root has no ancestors, got %v", got)
	}
}

func TestGroupTree_Descendants(t *testing.T) {
	tree := sampleTree()
	if got, want := tree.Descendants(2), []int{3, 4, 5}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got := tree.Descendants(6); len(got) != 0 {
		t.Fatalf("leaf has no descendants, got %v", got)
	}
}

func TestGroupTree_WouldCycle(t *testing.T) {
	tree := sampleTree()
	cases := []struct {
		id, parent int
		want       bool
	}{
		{2, 2, true},
		{2, 5, true},
		{1, 3, true},
		{5, 3, false},
		{6, 1, false},
	}
	for _, tc := range cases {
		if got := tree.WouldCycle(tc.id, tc.parent); got != tc.want {
			t.Fatalf("WouldCycle(%d, %d) = %v, want %v", tc.id, tc.parent, got, tc.want)
		}
	}
}

func TestGroupTree_AncestorsStopsOnCorruptLoop(t *testing.T) {
	tree := models.NewGroupTree([]models.AccountGroup{
		{ID: 1, Name: "A", ParentId: intPtr(2)},
		{ID: 2, Name: "B", ParentId: intPtr(1)},
	})
	if got := tree.Ancestors(1); len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected ancestors %v", got)
	}
}

func TestSeedChartOfAccounts_Idempotent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	created, err := models.SeedChartOfAccounts(ctx, db)
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected reseed to create nothing, created %d", created)
	}
	groups, err := models.GetAccountGroups(ctx)
	if err != nil {
		t.Fatalf("GetAccountGroups: %v", err)
	}
	if len(groups) != 18 {
		t.Fatalf("expected 18 groups, got %d", len(groups))
	}

	tree, err := models.LoadGroupTree(ctx, db)
	if err != nil {
		t.Fatalf("LoadGroupTree: %v", err)
	}
	debtors, ok := tree.ByName(models.GroupSundryDebtors)
	if !ok {
		t.Fatalf("missing %s", models.GroupSundryDebtors)
	}
	var path []string
	for _, g := range tree.Ancestors(debtors.ID) {
		path = append(path, g.Name)
	}
	if want := []string{models.GroupCurrentAssets, models.GroupAssets}; !reflect.DeepEqual(path, want) {
		t.Fatalf("got %v, want %v", path, want)
	}
	duties, _ := tree.ByName(models.GroupDutiesAndTaxes)
	if duties.Nature != models.AccountNatureLiabilities {
		t.Fatalf("expected %s to be a liability, got %s", duties.Name, duties.Nature)
	}
}

func TestCreateAndUpdateAccountGroup(t *testing.T) {
	testutil.NewDB(t)
	ctx := context.Background()
	db := config.GetDB()

	bank, err := models.GetAccountGroupByName(ctx, db, models.GroupBankAccounts)
	if err != nil {
		t.Fatalf("GetAccountGroupByName: %v", err)
	}
	od, err := models.CreateAccountGroup(ctx, &models.NewAccountGroup{Name: "Bank OD", Nature: "assets", ParentId: &bank.ID})
	if err != nil {
		t.Fatalf("CreateAccountGroup: %v", err)
	}
	if od.Nature != models.AccountNatureAssets {
		t.Fatalf("expected nature to be normalized, got %s", od.Nature)
	}

	_, err = models.UpdateAccountGroup(ctx, bank.ID, &models.NewAccountGroup{Name: bank.Name, Nature: string(bank.Nature), ParentId: &od.ID})
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "parent_id" {
		t.Fatalf("expected cycle to be rejected, got %v", err)
	}

	_, err = models.CreateAccountGroup(ctx, &models.NewAccountGroup{Name: "Bank OD", Nature: "ASSETS"})
	if !errors.As(err, &validationErr) || validationErr.Field != "name" {
		t.Fatalf("expected duplicate name to be rejected, got %v", err)
	}

	_, err = models.CreateAccountGroup(ctx, &models.NewAccountGroup{Name: "Equity", Nature: "CAPITAL"})
	if !errors.As(err, &validationErr) || validationErr.Field != "nature" {
		t.Fatalf("expected unknown nature to be rejected, got %v", err)
	}
}

func TestGetAccountGroupByName_Missing(t *testing.T) {
	testutil.NewEmptyDB(t)
	_, err := models.GetAccountGroupByName(context.Background(), config.GetDB(), models.GroupSundryDebtors)
	var configErr *models.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
