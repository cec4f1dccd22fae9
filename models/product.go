package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product.StockQuantity is written only by invoice processing once the product exists.
type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Name          string          `gorm:"size:100;not null" json:"name"`
	Sku           string          `gorm:"size:50;not null;uniqueIndex" json:"sku"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name         string          `json:"name" validate:"required,max=100"`
	Sku          string          `json:"sku" validate:"required,max=50"`
	Price        decimal.Decimal `json:"price"`
	OpeningStock int             `json:"opening_stock" validate:"gte=0"`
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	db := config.GetDB()

	input.Name = strings.TrimSpace(input.Name)
	input.Sku = strings.TrimSpace(input.Sku)
	if err := utils.ValidateStruct(input); err != nil {
		for field, tag := range utils.ProcessValidationErrors(err) {
			return nil, NewValidationError(field, "failed on "+tag)
		}
		return nil, NewValidationError("", err.Error())
	}
	if input.Price.IsNegative() {
		return nil, NewValidationError("price", "must not be negative")
	}

	product := Product{
		Name:          input.Name,
		Sku:           input.Sku,
		Price:         input.Price,
		StockQuantity: input.OpeningStock,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			if IsDuplicateKeyErr(err) {
				return NewValidationError("sku", "sku already exists")
			}
			return err
		}
		if input.OpeningStock == 0 {
			return nil
		}
		return tx.Create(&StockMovement{
			ProductId:     product.ID,
			MovementDate:  utils.DateOnly(time.Now()),
			Qty:           input.OpeningStock,
			ClosingQty:    input.OpeningStock,
			ReferenceType: StockReferenceOpening,
			ReferenceId:   product.ID,
			Description:   "Opening stock",
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetProductTx(ctx, config.GetDB(), id)
}

func GetProductTx(ctx context.Context, tx *gorm.DB, id int) (*Product, error) {
	var result Product
	err := tx.WithContext(ctx).First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetProducts(ctx context.Context) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
