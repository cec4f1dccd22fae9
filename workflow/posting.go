package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/models"
	"github.com/mmdatafocus/ledger_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("ledger-posting")

// now is replaced in tests to pin voucher numbers.
var now = time.Now

// a voucher number is tried once and regenerated once
const voucherNumberAttempts = 2

type Leg struct {
	LedgerId int
	Debit    decimal.Decimal
	Credit   decimal.Decimal
}

func DebitLeg(ledgerId int, amount decimal.Decimal) Leg {
	return Leg{LedgerId: ledgerId, Debit: amount, Credit: decimal.Zero}
}

func CreditLeg(ledgerId int, amount decimal.Decimal) Leg {
	return Leg{LedgerId: ledgerId, Debit: decimal.Zero, Credit: amount}
}

type VoucherDraft struct {
	Type          models.VoucherType
	Date          time.Time
	Narration     string
	ReferenceType models.VoucherReferenceType
	ReferenceId   int
	CreatedBy     string
	// Number returns the voucher number for the given attempt, starting at 0.
	Number func(attempt int) string
	Legs   []Leg
}

// SumLegs totals both sides.
func SumLegs(legs []Leg) (debit decimal.Decimal, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range legs {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

func validateLegs(legs []Leg) error {
	if len(legs) < 2 {
		return models.NewValidationError("entries", "a voucher needs at least two entries")
	}
	for i, l := range legs {
		field := fmt.Sprintf("entries[%d]", i)
		if l.LedgerId <= 0 {
			return models.NewValidationError(field, "ledger is required")
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return models.NewValidationError(field, "debit and credit must not be negative")
		}
		if l.Debit.IsZero() == l.Credit.IsZero() {
			return models.NewValidationError(field, "exactly one of debit and credit must be nonzero")
		}
		if models.ExceedsAmountScale(l.Debit) || models.ExceedsAmountScale(l.Credit) {
			return models.NewValidationError(field, fmt.Sprintf("amounts allow at most %d decimal places", models.AmountScale))
		}
	}
	return nil
}

// PostVoucher writes a balanced voucher and its entries through tx.
//
// Unbalanced legs fail with UnbalancedVoucherError before anything is written.
// The insert runs in a savepoint: a voucher number collision rolls back to it and
// the insert is retried with draft.Number(1); a second collision is a
// DuplicateVoucherNumberError.
func PostVoucher(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, draft VoucherDraft) (*models.Voucher, error) {
	ctx, span := tracer.Start(ctx, "PostVoucher", trace.WithAttributes(
		attribute.String("voucher.type", string(draft.Type)),
		attribute.Int("voucher.legs", len(draft.Legs)),
	))
	defer span.End()

	if !draft.Type.IsValid() {
		return nil, models.NewValidationError("voucher_type", "invalid voucher type")
	}
	if err := validateLegs(draft.Legs); err != nil {
		return nil, err
	}
	debit, credit := SumLegs(draft.Legs)
	if !debit.Equal(credit) {
		err := &models.UnbalancedVoucherError{Debit: debit, Credit: credit}
		config.LogError(logger, "Posting", "PostVoucher", "balance check", draft, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	numberFn := draft.Number
	if numberFn == nil {
		numberFn = VoucherNumber(draft.Type, "", now())
	}

	var lastNumber string
	for attempt := 0; attempt < voucherNumberAttempts; attempt++ {
		lastNumber = numberFn(attempt)
		voucher := models.Voucher{
			Type:          draft.Type,
			Number:        lastNumber,
			Date:          utils.DateOnly(draft.Date),
			Narration:     draft.Narration,
			ReferenceType: draft.ReferenceType,
			ReferenceId:   draft.ReferenceId,
			CreatedBy:     draft.CreatedBy,
			Entries:       make([]models.VoucherEntry, 0, len(draft.Legs)),
		}
		for _, l := range draft.Legs {
			voucher.Entries = append(voucher.Entries, models.VoucherEntry{
				LedgerId: l.LedgerId,
				Debit:    l.Debit,
				Credit:   l.Credit,
			})
		}

		err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return sp.Create(&voucher).Error
		})
		if err == nil {
			span.SetAttributes(attribute.String("voucher.number", voucher.Number))
			return &voucher, nil
		}
		if !models.IsDuplicateKeyErr(err) {
			config.LogError(logger, "Posting", "PostVoucher", "create voucher", lastNumber, err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"module":   "Posting",
			"funcName": "PostVoucher",
			"number":   lastNumber,
			"attempt":  attempt,
		}).Warn("voucher number collision")
	}

	err := &models.DuplicateVoucherNumberError{Number: lastNumber}
	config.LogError(logger, "Posting", "PostVoucher", "voucher number retries exhausted", lastNumber, err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// VoucherNumber builds "{prefix}-{reference}-{yyyyMMddHHmmss}" for attempt 0 and
// appends 8 characters of a random uuid on later attempts.
func VoucherNumber(voucherType models.VoucherType, reference string, at time.Time) func(attempt int) string {
	parts := []string{voucherType.Prefix()}
	if reference != "" {
		parts = append(parts, reference)
	}
	parts = append(parts, at.Format("20060102150405"))
	base := strings.Join(parts, "-")
	return func(attempt int) string {
		if attempt == 0 {
			return base
		}
		return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
}

// InvoiceVoucherNumber is "S-{invoiceId}-{timestamp}" for sales and "P-..." for purchases.
func InvoiceVoucherNumber(invoiceType models.InvoiceType, invoiceId int, at time.Time) func(attempt int) string {
	return VoucherNumber(invoiceType.VoucherType(), fmt.Sprint(invoiceId), at)
}

// InvoiceLedgers are the system ledgers an invoice posts against besides the partner.
type InvoiceLedgers struct {
	// Local Sales or Local Purchases
	TradingId int
	// VAT (Output) or VAT (Input); zero when the invoice carries no tax
	TaxId int
}

// BuildInvoiceLegs applies the fixed posting rules.
//
//	Sale:     Dr customer total, Cr Local Sales net, Cr VAT (Output) tax
//	Purchase: Dr Local Purchases net, Dr VAT (Input) tax, Cr supplier total
//
// Tax legs are only added when tax is positive.
func BuildInvoiceLegs(invoiceType models.InvoiceType, partnerLedgerId int, ledgers InvoiceLedgers, totals Totals) []Leg {
	hasTax := totals.Tax.IsPositive()
	if invoiceType == models.InvoiceTypeSale {
		legs := []Leg{
			DebitLeg(partnerLedgerId, totals.Total),
			CreditLeg(ledgers.TradingId, totals.Net),
		}
		if hasTax {
			legs = append(legs, CreditLeg(ledgers.TaxId, totals.Tax))
		}
		return legs
	}

	legs := []Leg{DebitLeg(ledgers.TradingId, totals.Net)}
	if hasTax {
		legs = append(legs, DebitLeg(ledgers.TaxId, totals.Tax))
	}
	return append(legs, CreditLeg(partnerLedgerId, totals.Total))
}

type NewVoucherEntry struct {
	LedgerId int             `json:"ledger_id"`
	Debit    decimal.Decimal `json:"debit"`
	Credit   decimal.Decimal `json:"credit"`
}

type NewVoucher struct {
	VoucherType models.VoucherType `json:"voucher_type"`
	Date        *time.Time         `json:"date"`
	Narration   string             `json:"narration"`
	Entries     []NewVoucherEntry  `json:"entries"`
}

// PostManualVoucher records a payment, receipt, contra or journal voucher entered by a user.
// Unlike PostVoucher, an unbalanced input is the user's mistake and is reported as a ValidationError.
func PostManualVoucher(ctx context.Context, db *gorm.DB, logger *logrus.Logger, input *NewVoucher) (*models.Voucher, error) {
	if !input.VoucherType.IsManual() {
		return nil, models.NewValidationError("voucher_type", "only PAYMENT, RECEIPT, CONTRA and JOURNAL vouchers can be entered manually")
	}
	legs := make([]Leg, 0, len(input.Entries))
	ledgerIds := make([]int, 0, len(input.Entries))
	for _, e := range input.Entries {
		legs = append(legs, Leg{LedgerId: e.LedgerId, Debit: e.Debit, Credit: e.Credit})
		ledgerIds = append(ledgerIds, e.LedgerId)
	}
	if err := validateLegs(legs); err != nil {
		return nil, err
	}
	debit, credit := SumLegs(legs)
	if !debit.Equal(credit) {
		return nil, models.NewValidationError("entries", fmt.Sprintf("debit %s does not equal credit %s", debit.StringFixed(2), credit.StringFixed(2)))
	}

	date := now()
	if input.Date != nil {
		date = *input.Date
	}
	username, _ := utils.GetUsernameFromContext(ctx)

	var voucher *models.Voucher
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourcesId[models.Ledger](ctx, tx, ledgerIds); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return models.NewValidationError("entries", "ledger does not exist")
			}
			return err
		}
		var err error
		voucher, err = PostVoucher(ctx, tx, logger, VoucherDraft{
			Type:          input.VoucherType,
			Date:          date,
			Narration:     input.Narration,
			ReferenceType: models.VoucherReferenceManual,
			CreatedBy:     username,
			Number:        VoucherNumber(input.VoucherType, "", now()),
			Legs:          legs,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return voucher, nil
}
