package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/testutil"
	"github.com/shopspring/decimal"
)

func TestCreateProduct_OpeningStockMovement(t *testing.T) {
	testutil.NewDB(t)
	ctx := context.Background()

	product := testutil.CreateProduct(t, "Widget", "12.50", 7)
	movements, err := models.GetStockMovements(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 opening movement, got %d", len(movements))
	}
	if m := movements[0]; m.Qty != 7 || m.ClosingQty != 7 || m.ReferenceType != models.StockReferenceOpening {
		t.Fatalf("unexpected opening movement %+v", m)
	}

	empty := testutil.CreateProduct(t, "Gadget", "1", 0)
	movements, err = models.GetStockMovements(ctx, empty.ID)
	if err != nil {
		t.Fatalf("GetStockMovements: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected no movement for zero opening stock, got %d", len(movements))
	}

	_, err = models.CreateProduct(ctx, &models.NewProduct{Name: "Widget 2", Sku: "Widget", Price: decimal.NewFromInt(1)})
	var validationErr *models.ValidationError
	if !errors.As(err, &validationErr) || validationErr.Field != "sku" {
		t.Fatalf("expected duplicate sku to be rejected, got %v", err)
	}
	_, err = models.CreateProduct(ctx, &models.NewProduct{Name: "Neg", Sku: "NEG", OpeningStock: -1})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected negative opening stock to be rejected, got %v", err)
	}
}

func TestStockMovement_AppendOnly(t *testing.T) {
	testutil.NewDB(t)
	db := config.GetDB()
	product := testutil.CreateProduct(t, "Widget", "1", 3)

	movements, err := models.GetStockMovements(context.Background(), product.ID)
	if err != nil || len(movements) != 1 {
		t.Fatalf("GetStockMovements: %v (%d rows)", err, len(movements))
	}
	m := movements[0]

	m.Qty = 100
	if err := db.Save(m).Error; !errors.Is(err, models.ErrStockMovementImmutable) {
		t.Fatalf("expected update to be rejected, got %v", err)
	}
	if err := db.Delete(m).Error; !errors.Is(err, models.ErrStockMovementImmutable) {
		t.Fatalf("expected delete to be rejected, got %v", err)
	}

	if err := db.Create(&models.StockMovement{ProductId: product.ID, Qty: 0, ReferenceType: models.StockReferenceSale}).Error; err == nil {
		t.Fatalf("expected zero quantity movement to be rejected")
	}
	if err := db.Create(&models.StockMovement{ProductId: product.ID, Qty: -5, ClosingQty: -2, ReferenceType: models.StockReferenceSale}).Error; err == nil {
		t.Fatalf("expected negative closing quantity to be rejected")
	}
}
