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

// NetAmount is the pre-tax value; TotalAmount = NetAmount + TaxAmount.
type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InvoiceType     InvoiceType     `gorm:"size:20;not null;index" json:"invoice_type"`
	CustomerId      *int            `gorm:"index" json:"customer_id"`
	SupplierId      *int            `gorm:"index" json:"supplier_id"`
	NetAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"net_amount"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	IncludeTax      bool            `gorm:"not null;default:false" json:"include_tax"`
	TransactionDate time.Time       `gorm:"not null;index" json:"transaction_date"`
	DueDate         *time.Time      `json:"due_date"`
	Note            string          `gorm:"type:text" json:"note"`
	UserName        string          `gorm:"size:100" json:"user_name"`
	VoucherId       *int            `gorm:"index" json:"voucher_id"`
	Items           []InvoiceItem   `gorm:"foreignKey:InvoiceId;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceItem locks in quantity and price; Subtotal is always computed server side.
type InvoiceItem struct {
	ID        int             `gorm:"primary_key" json:"id"`
	InvoiceId int             `gorm:"index;not null" json:"invoice_id"`
	ProductId int             `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
}

type NewInvoice struct {
	InvoiceType     InvoiceType      `json:"invoice_type"`
	CustomerId      *int             `json:"customer_id"`
	SupplierId      *int             `json:"supplier_id"`
	Items           []NewInvoiceItem `json:"items"`
	IncludeTax      bool             `json:"include_tax"`
	TransactionDate *time.Time       `json:"transaction_date"`
	DueDate         *time.Time       `json:"due_date"`
	Note            string           `json:"note"`
}

// Subtotal is accepted for compatibility and ignored.
type NewInvoiceItem struct {
	ProductId int             `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	return GetInvoiceTx(ctx, config.GetDB(), id)
}

// GetInvoiceTx loads the invoice with its items in insertion order.
func GetInvoiceTx(ctx context.Context, tx *gorm.DB, id int) (*Invoice, error) {
	var result Invoice
	err := tx.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}
