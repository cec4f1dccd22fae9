package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/ledger_backend/config"
	"github.com/mmdatafocus/ledger_backend/utils"
	"gorm.io/gorm"
)

type Customer struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	LedgerId  *int      `gorm:"uniqueIndex" json:"ledger_id"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCustomer struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"omitempty,email,max=100"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
	Address string `json:"address"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) GetId() int                 { return c.ID }
func (c *Customer) GetLedgerId() *int          { return c.LedgerId }
func (c *Customer) SetLedgerId(id int)         { c.LedgerId = &id }
func (c *Customer) PartnerName() string        { return c.Name }
func (c *Customer) PartnerKind() PartnerKind   { return PartnerKindCustomer }
func (c *Customer) DefaultLedgerGroup() string { return GroupSundryDebtors }

func (input *NewCustomer) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if err := validatePartnerInput(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, config.DefaultPhoneRegion()); err != nil {
			return NewValidationError("phone", err.Error())
		}
		input.Phone = utils.FormatPhoneNumber(input.Phone, config.DefaultPhoneRegion())
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	customer := Customer{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}
	if err := createPartnerWithLedger(ctx, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

func GetCustomer(ctx context.Context, id int) (*Customer, error) {
	return GetCustomerTx(ctx, config.GetDB(), id)
}

// GetCustomerTx reads through tx so callers inside a transaction see their own writes.
func GetCustomerTx(ctx context.Context, tx *gorm.DB, id int) (*Customer, error) {
	var result Customer
	err := tx.WithContext(ctx).First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetCustomers(ctx context.Context) ([]*Customer, error) {
	db := config.GetDB()
	var results []*Customer
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
