package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

// StockReference ties a stock movement to the document that caused it.
type StockReference struct {
	Type        models.StockReferenceType
	Id          int
	DetailId    int
	Date        time.Time
	Description string
}

// ApplyStockDelta changes a product's stock for one invoice line and records the movement.
//
// A purchase adds quantity. A sale subtracts it with a conditional update that
// only matches while enough stock remains, so two concurrent sales can never both
// take the last units; the loser gets an InsufficientStockError.
func ApplyStockDelta(ctx context.Context, tx *gorm.DB, invoiceType models.InvoiceType, productId int, quantity int, ref StockReference) error {
	if quantity <= 0 {
		return models.NewValidationError("quantity", "must be greater than zero")
	}
	db := tx.WithContext(ctx)

	var result *gorm.DB
	signed := quantity
	switch invoiceType {
	case models.InvoiceTypePurchase:
		result = db.Model(&models.Product{}).
			Where("id = ?", productId).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity))
	case models.InvoiceTypeSale:
		signed = -quantity
		result = db.Model(&models.Product{}).
			Where("id = ? AND stock_quantity >= ?", productId, quantity).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", quantity))
	default:
		return models.NewValidationError("invoice_type", "invalid invoice type")
	}
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		product, err := models.GetProductTx(ctx, tx, productId)
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return models.NewValidationError("product_id", fmt.Sprintf("product %d does not exist", productId))
		}
		if err != nil {
			return err
		}
		return &models.InsufficientStockError{
			ProductId:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.StockQuantity,
		}
	}

	var closing int
	if err := db.Model(&models.Product{}).Select("stock_quantity").Where("id = ?", productId).Scan(&closing).Error; err != nil {
		return err
	}

	movementType := models.StockReferencePurchase
	if invoiceType == models.InvoiceTypeSale {
		movementType = models.StockReferenceSale
	}
	if ref.Type != "" {
		movementType = ref.Type
	}
	return db.Create(&models.StockMovement{
		ProductId:         productId,
		MovementDate:      utils.DateOnly(ref.Date),
		Qty:               signed,
		ClosingQty:        closing,
		ReferenceType:     movementType,
		ReferenceId:       ref.Id,
		ReferenceDetailId: ref.DetailId,
		Description:       ref.Description,
	}).Error
}
