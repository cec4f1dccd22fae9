package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/models/reports"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/mmdatafocus/ledger_backend/workflow"
	"github.com/sirupsen/logrus"
)

type handler struct {
	logger *logrus.Logger
}

// respondError maps the error taxonomy to HTTP. Server-side failures are
// attached to the gin context so customErrorLogger records them.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *models.ValidationError
		stockErr      *models.InsufficientStockError
		duplicateErr  *models.DuplicateVoucherNumberError
		configErr     *models.ConfigurationError
		unbalancedErr *models.UnbalancedVoucherError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "code": "validation_error", "field": validationErr.Field})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "not_found"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"code":       "insufficient_stock",
			"product_id": stockErr.ProductId,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, gin.H{"error": duplicateErr.Error(), "code": "duplicate_voucher_number"})
	case errors.Is(err, utils.ErrLockNotObtained):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "busy"})
	case errors.As(err, &configErr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": configErr.Error(), "code": "configuration_error"})
	case errors.As(err, &unbalancedErr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "voucher could not be balanced", "code": "unbalanced_voucher"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": "internal_error"})
	}
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "code": "validation_error", "field": "id"})
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error(), "code": "validation_error"})
		return false
	}
	return true
}

// optionalDate parses a YYYY-MM-DD query or body value; empty means nil.
func optionalDate(field string, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(value)
	if err != nil {
		return nil, models.NewValidationError(field, err.Error())
	}
	return &t, nil
}

// publishPosting announces a committed voucher. Failures are logged and never
// change the response: the posting is already durable.
func (h *handler) publishPosting(ctx context.Context, voucherId *int) {
	if voucherId == nil || config.PostingTopic() == "" {
		return
	}
	voucher, err := models.GetVoucher(ctx, *voucherId)
	if err != nil {
		config.LogError(h.logger, "Handler", "publishPosting", "load voucher", *voucherId, err)
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	if _, err := config.PublishPostingEvent(ctx, config.PostingEvent{
		VoucherId:     voucher.ID,
		VoucherNumber: voucher.Number,
		VoucherType:   string(voucher.Type),
		VoucherDate:   voucher.Date,
		ReferenceType: string(voucher.ReferenceType),
		ReferenceId:   voucher.ReferenceId,
		CorrelationId: cid,
	}); err != nil {
		config.LogError(h.logger, "Handler", "publishPosting", "publish posting event", voucher.Number, err)
	}
}

type invoiceRequest struct {
	models.NewInvoice
	TransactionDate string `json:"transaction_date"`
	DueDate         string `json:"due_date"`
}

func (h *handler) createInvoice(c *gin.Context) {
	var req invoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	input := req.NewInvoice
	var err error
	if input.TransactionDate, err = optionalDate("transaction_date", req.TransactionDate); err != nil {
		respondError(c, err)
		return
	}
	if input.DueDate, err = optionalDate("due_date", req.DueDate); err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()

	// Serialize postings per counterparty where redis is available; correctness
	// does not depend on it.
	lockType, counterpartyId := "customer", utils.DereferencePtr(input.CustomerId)
	if input.InvoiceType == models.InvoiceTypePurchase {
		lockType, counterpartyId = "supplier", utils.DereferencePtr(input.SupplierId)
	}
	if counterpartyId > 0 {
		release, err := utils.PostingLock(ctx, lockType, counterpartyId, "Handler", "createInvoice")
		if err != nil {
			respondError(c, err)
			return
		}
		defer release()
	}

	invoice, replayed, err := workflow.ProcessInvoiceIdempotent(ctx, config.GetDB(), h.logger, c.GetHeader("Idempotency-Key"), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	if replayed {
		c.JSON(http.StatusOK, invoice)
		return
	}
	h.publishPosting(ctx, invoice.VoucherId)
	c.JSON(http.StatusCreated, invoice)
}

func (h *handler) getInvoice(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	invoice, err := models.GetInvoice(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *handler) createCustomer(c *gin.Context) {
	var input models.NewCustomer
	if !bindJSON(c, &input) {
		return
	}
	customer, err := models.CreateCustomer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *handler) getCustomers(c *gin.Context) {
	customers, err := models.GetCustomers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

func (h *handler) getCustomer(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	customer, err := models.GetCustomer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handler) createSupplier(c *gin.Context) {
	var input models.NewSupplier
	if !bindJSON(c, &input) {
		return
	}
	supplier, err := models.CreateSupplier(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func (h *handler) getSuppliers(c *gin.Context) {
	suppliers, err := models.GetSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func (h *handler) getSupplier(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	supplier, err := models.GetSupplier(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func (h *handler) createProduct(c *gin.Context) {
	var input models.NewProduct
	if !bindJSON(c, &input) {
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *handler) getProducts(c *gin.Context) {
	products, err := models.GetProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *handler) getProduct(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *handler) getStockMovements(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	movements, err := models.GetStockMovements(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func (h *handler) getAccountGroups(c *gin.Context) {
	groups, err := models.GetAccountGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *handler) createAccountGroup(c *gin.Context) {
	var input models.NewAccountGroup
	if !bindJSON(c, &input) {
		return
	}
	group, err := models.CreateAccountGroup(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *handler) updateAccountGroup(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	var input models.NewAccountGroup
	if !bindJSON(c, &input) {
		return
	}
	group, err := models.UpdateAccountGroup(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *handler) getLedgers(c *gin.Context) {
	var name *string
	if v, ok := c.GetQuery("name"); ok {
		name = &v
	}
	ledgers, err := models.GetLedgers(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledgers)
}

func (h *handler) createLedger(c *gin.Context) {
	var input models.NewLedger
	if !bindJSON(c, &input) {
		return
	}
	ledger, err := models.CreateLedger(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ledger)
}

func (h *handler) getLedger(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	ledger, err := models.GetLedger(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func (h *handler) getLedgerBalance(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	asOf, err := optionalDate("as_of", c.Query("as_of"))
	if err != nil {
		respondError(c, err)
		return
	}
	balance, err := reports.GetLedgerBalance(c.Request.Context(), id, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger_id": id, "as_of": asOf, "balance": balance})
}

type voucherRequest struct {
	workflow.NewVoucher
	Date string `json:"date"`
}

func (h *handler) createVoucher(c *gin.Context) {
	var req voucherRequest
	if !bindJSON(c, &req) {
		return
	}
	input := req.NewVoucher
	var err error
	if input.Date, err = optionalDate("date", req.Date); err != nil {
		respondError(c, err)
		return
	}
	voucher, err := workflow.PostManualVoucher(c.Request.Context(), config.GetDB(), h.logger, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	h.publishPosting(c.Request.Context(), &voucher.ID)
	c.JSON(http.StatusCreated, voucher)
}

func (h *handler) getVoucher(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	voucher, err := models.GetVoucher(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voucher)
}

// getDayBook defaults both bounds to today.
func (h *handler) getDayBook(c *gin.Context) {
	today := utils.DateOnly(time.Now())
	from, err := optionalDate("from", c.Query("from"))
	if err != nil {
		respondError(c, err)
		return
	}
	to, err := optionalDate("to", c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	vouchers, err := models.GetDayBook(c.Request.Context(), utils.DereferencePtr(from, today), utils.DereferencePtr(to, today))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vouchers)
}

func (h *handler) getDailySummary(c *gin.Context) {
	date, err := optionalDate("date", c.Query("date"))
	if err != nil {
		respondError(c, err)
		return
	}
	summary, err := reports.GetDailySummary(c.Request.Context(), utils.DereferencePtr(date, utils.DateOnly(time.Now())))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *handler) getTrialBalance(c *gin.Context) {
	asOf, err := optionalDate("as_of", c.Query("as_of"))
	if err != nil {
		respondError(c, err)
		return
	}
	tb, err := reports.GetTrialBalance(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tb)
}

func (h *handler) exportTrialBalance(c *gin.Context) {
	asOf, err := optionalDate("as_of", c.Query("as_of"))
	if err != nil {
		respondError(c, err)
		return
	}
	tb, err := reports.GetTrialBalance(c.Request.Context(), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=trial-balance.xlsx")
	c.Status(http.StatusOK)
	if err := reports.ExportTrialBalanceExcel(tb, c.Writer); err != nil {
		_ = c.Error(err)
	}
}
