package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// VATRate is the fixed tax rate applied when an invoice includes tax.
var VATRate = decimal.RequireFromString("0.13")

type Totals struct {
	Net   decimal.Decimal `json:"net_amount"`
	Tax   decimal.Decimal `json:"tax_amount"`
	Total decimal.Decimal `json:"total_amount"`
}

// ComputeInvoiceTotals: net = Σ unit_price × quantity, tax = round(net × 13%, 2), total = net + tax.
func ComputeInvoiceTotals(items []models.NewInvoiceItem, includeTax bool) Totals {
	net := decimal.Zero
	for _, item := range items {
		net = net.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	tax := decimal.Zero
	if includeTax {
		tax = net.Mul(VATRate).Round(2)
	}
	return Totals{Net: net, Tax: tax, Total: net.Add(tax)}
}

func validateInvoiceInput(input *models.NewInvoice) error {
	if !input.InvoiceType.IsValid() {
		return models.NewValidationError("invoice_type", "must be PURCHASE or SALE")
	}
	if len(input.Items) == 0 {
		return models.NewValidationError("items", "at least one item is required")
	}
	for i, item := range input.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ProductId <= 0 {
			return models.NewValidationError(field+".product_id", "is required")
		}
		if item.Quantity <= 0 {
			return models.NewValidationError(field+".quantity", "must be greater than zero")
		}
		if !item.UnitPrice.IsPositive() {
			return models.NewValidationError(field+".unit_price", "must be greater than zero")
		}
		if models.ExceedsAmountScale(item.UnitPrice) {
			return models.NewValidationError(field+".unit_price", fmt.Sprintf("allows at most %d decimal places", models.AmountScale))
		}
	}
	switch input.InvoiceType {
	case models.InvoiceTypeSale:
		if input.CustomerId == nil || *input.CustomerId <= 0 {
			return models.NewValidationError("customer_id", "a sale needs a customer")
		}
	case models.InvoiceTypePurchase:
		if input.SupplierId == nil || *input.SupplierId <= 0 {
			return models.NewValidationError("supplier_id", "a purchase needs a supplier")
		}
	}
	return nil
}

// ProcessInvoice records an invoice, moves stock, provisions the partner ledger
// and posts the balanced voucher, all in one transaction. Any failure rolls
// everything back and is returned unchanged so callers can errors.As it.
func ProcessInvoice(ctx context.Context, db *gorm.DB, logger *logrus.Logger, input *models.NewInvoice) (*models.Invoice, error) {
	ctx, span := tracer.Start(ctx, "ProcessInvoice", trace.WithAttributes(
		attribute.String("invoice.type", string(input.InvoiceType)),
		attribute.Int("invoice.items", len(input.Items)),
	))
	defer span.End()

	if err := validateInvoiceInput(input); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var invoice *models.Invoice
	var ledgers []*models.Ledger
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		invoice, ledgers, err = processInvoiceTx(ctx, tx, logger, input)
		return err
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// committed: ids are safe to share now
	models.CacheLedgerIds(ledgers...)
	span.SetAttributes(attribute.Int("invoice.id", invoice.ID))
	return invoice, nil
}

func processInvoiceTx(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, input *models.NewInvoice) (*models.Invoice, []*models.Ledger, error) {
	holder, err := loadCounterparty(ctx, tx, input)
	if err != nil {
		config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "loadCounterparty", input, err)
		return nil, nil, err
	}

	productIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		productIds = append(productIds, item.ProductId)
	}
	if err := utils.ValidateResourcesId[models.Product](ctx, tx, productIds); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil, models.NewValidationError("items", "product does not exist")
		}
		return nil, nil, err
	}

	totals := ComputeInvoiceTotals(input.Items, input.IncludeTax)
	userName, _ := utils.GetUsernameFromContext(ctx)
	transactionDate := now()
	if input.TransactionDate != nil {
		transactionDate = *input.TransactionDate
	}

	invoice := models.Invoice{
		InvoiceType:     input.InvoiceType,
		NetAmount:       totals.Net,
		TaxAmount:       totals.Tax,
		TotalAmount:     totals.Total,
		IncludeTax:      input.IncludeTax,
		TransactionDate: utils.DateOnly(transactionDate),
		DueDate:         input.DueDate,
		Note:            input.Note,
		UserName:        userName,
		Items:           make([]models.InvoiceItem, 0, len(input.Items)),
	}
	if input.InvoiceType == models.InvoiceTypeSale {
		invoice.CustomerId = input.CustomerId
	} else {
		invoice.SupplierId = input.SupplierId
	}
	for _, item := range input.Items {
		invoice.Items = append(invoice.Items, models.InvoiceItem{
			ProductId: item.ProductId,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "create invoice", nil, err)
		return nil, nil, err
	}

	// lowest product id first so concurrent invoices lock rows in the same order
	order := make([]int, len(invoice.Items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return invoice.Items[order[a]].ProductId < invoice.Items[order[b]].ProductId
	})
	for _, i := range order {
		item := invoice.Items[i]
		err := ApplyStockDelta(ctx, tx, input.InvoiceType, item.ProductId, item.Quantity, StockReference{
			Id:          invoice.ID,
			DetailId:    item.ID,
			Date:        invoice.TransactionDate,
			Description: fmt.Sprintf("Invoice #%d", invoice.ID),
		})
		if err != nil {
			config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "ApplyStockDelta", item, err)
			return nil, nil, err
		}
	}

	partnerLedger, err := models.ProvisionPartnerLedger(ctx, tx, holder)
	if err != nil {
		config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "ProvisionPartnerLedger", holder.GetId(), err)
		return nil, nil, err
	}

	tradingName, tradingGroup, taxName, taxGroup := systemLedgerNames(input.InvoiceType)
	trading, err := resolveSystemLedger(ctx, tx, tradingName, tradingGroup)
	if err != nil {
		config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "resolve "+tradingName, nil, err)
		return nil, nil, err
	}
	ledgers := []*models.Ledger{partnerLedger, trading}
	systemLedgers := InvoiceLedgers{TradingId: trading.ID}
	if totals.Tax.IsPositive() {
		taxLedger, err := resolveSystemLedger(ctx, tx, taxName, taxGroup)
		if err != nil {
			config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "resolve "+taxName, nil, err)
			return nil, nil, err
		}
		ledgers = append(ledgers, taxLedger)
		systemLedgers.TaxId = taxLedger.ID
	}

	narration := fmt.Sprintf("Auto-generated from Invoice #%d.", invoice.ID)
	if input.Note != "" {
		narration += " " + input.Note
	}
	voucher, err := PostVoucher(ctx, tx, logger, VoucherDraft{
		Type:          input.InvoiceType.VoucherType(),
		Date:          invoice.TransactionDate,
		Narration:     narration,
		ReferenceType: models.VoucherReferenceInvoice,
		ReferenceId:   invoice.ID,
		CreatedBy:     userName,
		Number:        InvoiceVoucherNumber(input.InvoiceType, invoice.ID, now()),
		Legs:          BuildInvoiceLegs(input.InvoiceType, partnerLedger.ID, systemLedgers, totals),
	})
	if err != nil {
		return nil, nil, err
	}

	if err := tx.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("voucher_id", voucher.ID).Error; err != nil {
		config.LogError(logger, "InvoiceWorkflow", "processInvoiceTx", "link voucher", invoice.ID, err)
		return nil, nil, err
	}
	invoice.VoucherId = &voucher.ID

	return &invoice, ledgers, nil
}

func loadCounterparty(ctx context.Context, tx *gorm.DB, input *models.NewInvoice) (models.LedgerHolder, error) {
	if input.InvoiceType == models.InvoiceTypeSale {
		customer, err := models.GetCustomerTx(ctx, tx, *input.CustomerId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, models.NewValidationError("customer_id", "customer does not exist")
		}
		if err != nil {
			return nil, err
		}
		return customer, nil
	}
	supplier, err := models.GetSupplierTx(ctx, tx, *input.SupplierId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, models.NewValidationError("supplier_id", "supplier does not exist")
	}
	if err != nil {
		return nil, err
	}
	return supplier, nil
}

func systemLedgerNames(invoiceType models.InvoiceType) (tradingName, tradingGroup, taxName, taxGroup string) {
	if invoiceType == models.InvoiceTypeSale {
		return models.LedgerLocalSales, models.GroupSalesAccounts, models.LedgerVATOutput, models.GroupDutiesAndTaxes
	}
	return models.LedgerLocalPurchases, models.GroupPurchaseAccounts, models.LedgerVATInput, models.GroupDutiesAndTaxes
}

// resolveSystemLedger uses the committed-id cache before falling back to find-or-create.
// System ledgers are never deleted, so a cached id stays valid.
func resolveSystemLedger(ctx context.Context, tx *gorm.DB, name string, groupName string) (*models.Ledger, error) {
	if id, ok := models.GetCachedLedgerId(name); ok {
		return &models.Ledger{ID: id, Name: name}, nil
	}
	return models.ResolveOrCreateLedger(ctx, tx, name, groupName)
}
