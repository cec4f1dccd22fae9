package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"gorm.io/gorm"
)

type StockReferenceType string

const (
	StockReferenceOpening  StockReferenceType = "OPENING"
	StockReferenceSale     StockReferenceType = "SALE"
	StockReferencePurchase StockReferenceType = "PURCHASE"
)

var ErrStockMovementImmutable = errors.New("stock movements are append-only")

// StockMovement is the inventory history: one row per stock delta, never updated.
type StockMovement struct {
	ID                int                `gorm:"primary_key" json:"id"`
	ProductId         int                `gorm:"index;not null" json:"product_id"`
	MovementDate      time.Time          `gorm:"index;not null" json:"movement_date"`
	Qty               int                `gorm:"not null" json:"qty"`
	ClosingQty        int                `gorm:"not null" json:"closing_qty"`
	ReferenceType     StockReferenceType `gorm:"size:20;not null" json:"reference_type"`
	ReferenceId       int                `gorm:"index" json:"reference_id"`
	ReferenceDetailId int                `json:"reference_detail_id"`
	Description       string             `gorm:"size:100" json:"description"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate enforces that a movement changes stock and never leaves it negative.
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.Qty == 0 {
		return errors.New("stock movement quantity must not be zero")
	}
	if sm.ClosingQty < 0 {
		return errors.New("stock movement closing quantity must not be negative")
	}
	return nil
}

func (sm *StockMovement) BeforeUpdate(tx *gorm.DB) error {
	return ErrStockMovementImmutable
}

func (sm *StockMovement) BeforeDelete(tx *gorm.DB) error {
	return ErrStockMovementImmutable
}

func GetStockMovements(ctx context.Context, productId int) ([]*StockMovement, error) {
	db := config.GetDB()
	var results []*StockMovement
	if err := db.WithContext(ctx).Where("product_id = ?", productId).Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
