package models

import (
	"errors"
	"strings"
)

type AccountNature string

const (
	AccountNatureAssets      AccountNature = "ASSETS"
	AccountNatureLiabilities AccountNature = "LIABILITIES"
	AccountNatureIncome      AccountNature = "INCOME"
	AccountNatureExpenses    AccountNature = "EXPENSES"
)

func (n AccountNature) IsValid() bool {
	switch n {
	case AccountNatureAssets, AccountNatureLiabilities, AccountNatureIncome, AccountNatureExpenses:
		return true
	}
	return false
}

// ParseAccountNature accepts the nature case-insensitively ("Assets", "ASSETS").
func ParseAccountNature(s string) (AccountNature, error) {
	n := AccountNature(strings.ToUpper(strings.TrimSpace(s)))
	if !n.IsValid() {
		return "", errors.New("invalid account nature")
	}
	return n, nil
}

type InvoiceType string

const (
	InvoiceTypePurchase InvoiceType = "PURCHASE"
	InvoiceTypeSale     InvoiceType = "SALE"
)

func (t InvoiceType) IsValid() bool {
	return t == InvoiceTypePurchase || t == InvoiceTypeSale
}

// VoucherType returns the voucher an invoice of this type is posted as.
func (t InvoiceType) VoucherType() VoucherType {
	if t == InvoiceTypeSale {
		return VoucherTypeSales
	}
	return VoucherTypePurchase
}

type VoucherType string

const (
	VoucherTypeSales    VoucherType = "SALES"
	VoucherTypePurchase VoucherType = "PURCHASE"
	VoucherTypePayment  VoucherType = "PAYMENT"
	VoucherTypeReceipt  VoucherType = "RECEIPT"
	VoucherTypeContra   VoucherType = "CONTRA"
	VoucherTypeJournal  VoucherType = "JOURNAL"
)

func (t VoucherType) IsValid() bool {
	switch t {
	case VoucherTypeSales, VoucherTypePurchase, VoucherTypePayment, VoucherTypeReceipt, VoucherTypeContra, VoucherTypeJournal:
		return true
	}
	return false
}

// IsManual reports whether vouchers of this type may be entered directly rather than from an invoice.
func (t VoucherType) IsManual() bool {
	switch t {
	case VoucherTypePayment, VoucherTypeReceipt, VoucherTypeContra, VoucherTypeJournal:
		return true
	}
	return false
}

// Prefix is the first letter used in voucher numbers.
func (t VoucherType) Prefix() string {
	return string(t)[:1]
}

type VoucherReferenceType string

const (
	VoucherReferenceInvoice VoucherReferenceType = "INVOICE"
	VoucherReferenceManual  VoucherReferenceType = "MANUAL"
)

type PartnerKind string

const (
	PartnerKindCustomer PartnerKind = "Customer"
	PartnerKindSupplier PartnerKind = "Supplier"
)

// Default chart of accounts names the posting rules depend on.
const (
	GroupAssets             = "Assets"
	GroupLiabilities        = "Liabilities"
	GroupIncome             = "Income"
	GroupExpenses           = "Expenses"
	GroupCurrentAssets      = "Current Assets"
	GroupCurrentLiabilities = "Current Liabilities"
	GroupFixedAssets        = "Fixed Assets"
	GroupDirectIncome       = "Direct Income"
	GroupIndirectIncome     = "Indirect Income"
	GroupDirectExpenses     = "Direct Expenses"
	GroupIndirectExpenses   = "Indirect Expenses"
	GroupSundryDebtors      = "Sundry Debtors"
	GroupSundryCreditors    = "Sundry Creditors"
	GroupBankAccounts       = "Bank Accounts"
	GroupCashInHand         = "Cash-in-Hand"
	GroupSalesAccounts      = "Sales Accounts"
	GroupPurchaseAccounts   = "Purchase Accounts"
	GroupDutiesAndTaxes     = "Duties & Taxes"

	LedgerLocalSales     = "Local Sales"
	LedgerLocalPurchases = "Local Purchases"
	LedgerVATOutput      = "VAT (Output)"
	LedgerVATInput       = "VAT (Input)"
)
