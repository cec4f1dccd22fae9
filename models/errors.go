package models

import (
	"errors"
	"fmt"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type InsufficientStockError struct {
	ProductId   int
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q (id %d): requested %d, available %d",
		e.ProductName, e.ProductId, e.Requested, e.Available)
}

// UnbalancedVoucherError means posting code built legs whose debits and credits differ.
// It is a programming error, never a user error.
type UnbalancedVoucherError struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

func (e *UnbalancedVoucherError) Error() string {
	return fmt.Sprintf("unbalanced voucher: debit %s != credit %s", e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// ConfigurationError reports a chart of accounts entry that must exist but does not.
type ConfigurationError struct {
	Kind string
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %q is missing, seed the chart of accounts", e.Kind, e.Name)
}

type DuplicateVoucherNumberError struct {
	Number string
}

func (e *DuplicateVoucherNumberError) Error() string {
	return fmt.Sprintf("voucher number %q already exists", e.Number)
}

// IsDuplicateKeyErr reports a unique index violation. gorm translates it when
// TranslateError is on; the raw MySQL 1062 and SQLite messages are matched for
// statements that bypass the translator.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
