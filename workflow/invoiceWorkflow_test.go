package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/testutil"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func stockOf(t *testing.T, productId int) int {
	t.Helper()
	p, err := models.GetProduct(context.Background(), productId)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	return p.StockQuantity
}

// entryFor returns the single entry posted against ledgerId.
func entryFor(t *testing.T, v *models.Voucher, ledgerId int) models.VoucherEntry {
	t.Helper()
	var found []models.VoucherEntry
	for _, e := range v.Entries {
		if e.LedgerId == ledgerId {
			found = append(found, e)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected one entry for ledger %d, got %d", ledgerId, len(found))
	}
	return found[0]
}

func TestComputeInvoiceTotals(t *testing.T) {
	cases := []struct {
		name       string
		items      []models.NewInvoiceItem
		includeTax bool
		net        string
		tax        string
		total      string
	}{
		{"no tax", []models.NewInvoiceItem{{Quantity: 4, UnitPrice: dec("25")}}, false, "100", "0", "100"},
		{"with tax", []models.NewInvoiceItem{{Quantity: 2, UnitPrice: dec("50")}}, true, "100", "13", "113"},
		{"rounds half away from zero", []models.NewInvoiceItem{{Quantity: 1, UnitPrice: dec("0.50")}}, true, "0.5", "0.07", "0.57"},
		{"sums lines", []models.NewInvoiceItem{
			{Quantity: 3, UnitPrice: dec("9.99")},
			{Quantity: 1, UnitPrice: dec("0.03")},
		}, true, "30", "3.9", "33.9"},
		{"client subtotal ignored", []models.NewInvoiceItem{{Quantity: 2, UnitPrice: dec("10"), Subtotal: dec("999")}}, false, "20", "0", "20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeInvoiceTotals(tc.items, tc.includeTax)
			if !got.Net.Equal(dec(tc.net)) || !got.Tax.Equal(dec(tc.tax)) || !got.Total.Equal(dec(tc.total)) {
				t.Fatalf("got net=%s tax=%s total=%s, want %s/%s/%s", got.Net, got.Tax, got.Total, tc.net, tc.tax, tc.total)
			}
		})
	}
}

func TestProcessInvoice_SaleWithTax(t *testing.T) {
	testutil.NewDB(t)
	ctx := context.Background()
	product := testutil.CreateProduct(t, "Widget", "50", 5)
	customer := testutil.CreateCustomer(t, "Ram")

	invoice, err := ProcessInvoice(ctx, config.GetDB(), testutil.Logger(), &models.NewInvoice{
		InvoiceType: models.InvoiceTypeSale,
		CustomerId:  &customer.ID,
		IncludeTax:  true,
		Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 2, UnitPrice: dec("50.00")}},
	})
	if err != nil {
		t.Fatalf("ProcessInvoice: %v", err)
	}
	if !invoice.NetAmount.Equal(dec("100")) || !invoice.TaxAmount.Equal(dec("13")) || !invoice.TotalAmount.Equal(dec("113")) {
		t.Fatalf("totals: net=%s tax=%s total=%s", invoice.NetAmount, invoice.TaxAmount, invoice.TotalAmount)
	}
	if got := stockOf(t, product.ID); got != 3 {
		t.Fatalf("expected stock 3, got %d", got)
	}
	if invoice.VoucherId == nil {
		t.Fatalf("expected invoice to be linked to a voucher")
	}

	voucher, err := models.GetVoucher(ctx, *invoice.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if voucher.Type != models.VoucherTypeSales || voucher.ReferenceType != models.VoucherReferenceInvoice || voucher.ReferenceId != invoice.ID {
		t.Fatalf("unexpected voucher header: %+v", voucher)
	}
	if len(voucher.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(voucher.Entries))
	}

	customerLedger := testutil.LedgerByName(t, "Customer: Ram")
	sales := testutil.LedgerByName(t, models.LedgerLocalSales)
	vat := testutil.LedgerByName(t, models.LedgerVATOutput)

	if e := entryFor(t, voucher, customerLedger.ID); !e.Debit.Equal(dec("113")) || !e.Credit.IsZero() {
		t.Fatalf("customer entry: %+v", e)
	}
	if e := entryFor(t, voucher, sales.ID); !e.Credit.Equal(dec("100")) || !e.Debit.IsZero() {
		t.Fatalf("sales entry: %+v", e)
	}
	if e := entryFor(t, voucher, vat.ID); !e.Credit.Equal(dec("13")) || !e.Debit.IsZero() {
		t.Fatalf("vat entry: %+v", e)
	}

	movements, err := models.GetStockMovements(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	last := movements[len(movements)-1]
	if last.Qty != -2 || last.ClosingQty != 3 || last.ReferenceType != models.StockReferenceSale || last.ReferenceId != invoice.ID {
		t.Fatalf("unexpected movement: %+v", last)
	}
}

func TestProcessInvoice_InsufficientStockRollsBack(t *testing.T) {
	testutil.NewDB(t)
	product := testutil.CreateProduct(t, "Widget", "50", 5)
	customer := testutil.CreateCustomer(t, "Ram")

	_, err := ProcessInvoice(context.Background(), config.GetDB(), testutil.Logger(), &models.NewInvoice{
		InvoiceType: models.InvoiceTypeSale,
		CustomerId:  &customer.ID,
		IncludeTax:  true,
		Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 10, UnitPrice: dec("50")}},
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Requested != 10 || stockErr.Available != 5 || stockErr.ProductId != product.ID {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}
	if got := stockOf(t, product.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}
	if n := countRows(t, &models.Invoice{}); n != 0 {
		t.Fatalf("expected no invoices, got %d", n)
	}
	if n := countRows(t, &models.Voucher{}); n != 0 {
		t.Fatalf("expected no vouchers, got %d", n)
	}
}

func TestProcessInvoice_PurchaseWithoutTax(t *testing.T) {
	testutil.NewDB(t)
	ctx := context.Background()
	product := testutil.CreateProduct(t, "Bolt", "25", 1)
	supplier := testutil.CreateSupplier(t, "Hari Traders")

	invoice, err := ProcessInvoice(ctx, config.GetDB(), testutil.Logger(), &models.NewInvoice{
		InvoiceType: models.InvoiceTypePurchase,
		SupplierId:  &supplier.ID,
		Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 4, UnitPrice: dec("25.00")}},
	})
	if err != nil {
		t.Fatalf("ProcessInvoice: %v", err)
	}
	if got := stockOf(t, product.ID); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}

	voucher, err := models.GetVoucher(ctx, *invoice.VoucherId)
	if err != nil {
		t.Fatalf("GetVoucher: %v", err)
	}
	if voucher.Type != models.VoucherTypePurchase {
		t.Fatalf("expected PURCHASE voucher, got %s", voucher.Type)
	}
	if len(voucher.Entries) != 2 {
		t.Fatalf("expected 2 entries without tax, got %d", len(voucher.Entries))
	}
	purchases := testutil.LedgerByName(t, models.LedgerLocalPurchases)
	supplierLedger := testutil.LedgerByName(t, "Supplier: Hari Traders")
	if e := entryFor(t, voucher, purchases.ID); !e.Debit.Equal(dec("100")) {
		t.Fatalf("purchases entry: %+v", e)
	}
	if e := entryFor(t, voucher, supplierLedger.ID); !e.Credit.Equal(dec("100")) {
		t.Fatalf("supplier entry: %+v", e)
	}

	// no tax was posted, so the input VAT ledger was never needed
	if _, err := models.GetLedgerByName(ctx, config.GetDB(), models.LedgerVATInput); err == nil {
		t.Fatalf("expected %q not to be created", models.LedgerVATInput)
	}
}

func TestProcessInvoice_SecondItemFailureLeavesNothing(t *testing.T) {
	testutil.NewDB(t)
	first := testutil.CreateProduct(t, "A", "10", 10)
	second := testutil.CreateProduct(t, "B", "10", 1)
	customer := testutil.CreateCustomer(t, "Sita")

	_, err := ProcessInvoice(context.Background(), config.GetDB(), testutil.Logger(), &models.NewInvoice{
		InvoiceType: models.InvoiceTypeSale,
		CustomerId:  &customer.ID,
		Items: []models.NewInvoiceItem{
			{ProductId: first.ID, Quantity: 3, UnitPrice: dec("10")},
			{ProductId: second.ID, Quantity: 2, UnitPrice: dec("10")},
		},
	})
	var stockErr *models.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.ProductId != second.ID {
		t.Fatalf("expected InsufficientStockError for second product, got %v", err)
	}
	if got := stockOf(t, first.ID); got != 10 {
		t.Fatalf("first product stock changed to %d", got)
	}
	if n := countRows(t, &models.InvoiceItem{}); n != 0 {
		t.Fatalf("expected no invoice items, got %d", n)
	}
	// only the two opening movements remain
	if n := countRows(t, &models.StockMovement{}); n != 2 {
		t.Fatalf("expected 2 stock movements, got %d", n)
	}
	if n := countRows(t, &models.VoucherEntry{}); n != 0 {
		t.Fatalf("expected no voucher entries, got %d", n)
	}
}

func TestProcessInvoice_Validation(t *testing.T) {
	testutil.NewDB(t)
	product := testutil.CreateProduct(t, "Widget", "50", 5)
	customer := testutil.CreateCustomer(t, "Ram")
	missing := 9999

	cases := []struct {
		name  string
		input models.NewInvoice
		field string
	}{
		{"bad type", models.NewInvoice{InvoiceType: "RENTAL", CustomerId: &customer.ID,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("1")}}}, "invoice_type"},
		{"no items", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &customer.ID}, "items"},
		{"zero quantity", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &customer.ID,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 0, UnitPrice: dec("1")}}}, "items[0].quantity"},
		{"zero price", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &customer.ID,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: decimal.Zero}}}, "items[0].unit_price"},
		{"price finer than stored scale", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &customer.ID,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 3, UnitPrice: dec("0.12345")}}}, "items[0].unit_price"},
		{"sale without customer", models.NewInvoice{InvoiceType: models.InvoiceTypeSale,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("1")}}}, "customer_id"},
		{"purchase without supplier", models.NewInvoice{InvoiceType: models.InvoiceTypePurchase,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("1")}}}, "supplier_id"},
		{"unknown customer", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &missing,
			Items: []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("1")}}}, "customer_id"},
		{"unknown product", models.NewInvoice{InvoiceType: models.InvoiceTypeSale, CustomerId: &customer.ID,
			Items: []models.NewInvoiceItem{{ProductId: missing, Quantity: 1, UnitPrice: dec("1")}}}, "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := tc.input
			_, err := ProcessInvoice(context.Background(), config.GetDB(), testutil.Logger(), &input)
			var validationErr *models.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if validationErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, validationErr.Field)
			}
		})
	}
	if n := countRows(t, &models.Invoice{}); n != 0 {
		t.Fatalf("expected no invoices, got %d", n)
	}
}

func TestProcessInvoice_MissingGroupIsConfigurationError(t *testing.T) {
	testutil.NewEmptyDB(t)
	product := testutil.CreateProduct(t, "Widget", "50", 5)
	// without the chart of accounts the partner ledger cannot be provisioned
	customer := models.Customer{Name: "Ram"}
	if err := config.GetDB().Create(&customer).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}

	_, err := ProcessInvoice(context.Background(), config.GetDB(), testutil.Logger(), &models.NewInvoice{
		InvoiceType: models.InvoiceTypeSale,
		CustomerId:  &customer.ID,
		Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("50")}},
	})
	var configErr *models.ConfigurationError
	if !errors.As(err, &configErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if configErr.Name != models.GroupSundryDebtors {
		t.Fatalf("expected missing %q, got %q", models.GroupSundryDebtors, configErr.Name)
	}
	if got := stockOf(t, product.ID); got != 5 {
		t.Fatalf("expected stock to be restored, got %d", got)
	}
}

func TestProcessInvoice_ConcurrentSalesNeverOversell(t *testing.T) {
	testutil.NewDB(t)
	product := testutil.CreateProduct(t, "Last Units", "10", 3)
	customer := testutil.CreateCustomer(t, "Ram")
	logger := testutil.Logger()

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ProcessInvoice(context.Background(), config.GetDB(), logger, &models.NewInvoice{
				InvoiceType: models.InvoiceTypeSale,
				CustomerId:  &customer.ID,
				Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("10")}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		var stockErr *models.InsufficientStockError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &stockErr):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 {
		t.Fatalf("expected 3 successful sales, got %d", succeeded)
	}
	if got := stockOf(t, product.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestProcessInvoice_ConcurrentFirstSalesShareSystemLedger(t *testing.T) {
	testutil.NewDB(t)
	product := testutil.CreateProduct(t, "Widget", "10", 100)
	logger := testutil.Logger()

	const workers = 5
	customers := make([]*models.Customer, workers)
	for i := range customers {
		customers[i] = testutil.CreateCustomer(t, "Customer "+string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ProcessInvoice(context.Background(), config.GetDB(), logger, &models.NewInvoice{
				InvoiceType: models.InvoiceTypeSale,
				CustomerId:  &customers[i].ID,
				IncludeTax:  true,
				Items:       []models.NewInvoiceItem{{ProductId: product.ID, Quantity: 1, UnitPrice: dec("10")}},
			})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("invoice %d: %v", i, err)
		}
	}

	for _, name := range []string{models.LedgerLocalSales, models.LedgerVATOutput} {
		var n int64
		if err := config.GetDB().Model(&models.Ledger{}).Where("name = ?", name).Count(&n).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected exactly one %q ledger, got %d", name, n)
		}
	}
}
