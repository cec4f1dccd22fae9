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

type Supplier struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Email       string    `gorm:"size:100" json:"email"`
	Phone       string    `gorm:"size:20" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	ContactName string    `gorm:"size:100" json:"contact_name"`
	LedgerId    *int      `gorm:"uniqueIndex" json:"ledger_id"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	Name        string `json:"name" validate:"required,max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=100"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
	Address     string `json:"address"`
	ContactName string `json:"contact_name" validate:"max=100"`
}

func (Supplier) TableName() string { return "suppliers" }

func (s *Supplier) GetId() int                 { return s.ID }
func (s *Supplier) GetLedgerId() *int          { return s.LedgerId }
func (s *Supplier) SetLedgerId(id int)         { s.LedgerId = &id }
func (s *Supplier) PartnerName() string        { return s.Name }
func (s *Supplier) PartnerKind() PartnerKind   { return PartnerKindSupplier }
func (s *Supplier) DefaultLedgerGroup() string { return GroupSundryCreditors }

func (input *NewSupplier) validate() error {
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

func CreateSupplier(ctx context.Context, input *NewSupplier) (*Supplier, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	supplier := Supplier{
		Name:        input.Name,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		ContactName: input.ContactName,
		IsActive:    utils.NewTrue(),
	}
	if err := createPartnerWithLedger(ctx, &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return GetSupplierTx(ctx, config.GetDB(), id)
}

func GetSupplierTx(ctx context.Context, tx *gorm.DB, id int) (*Supplier, error) {
	var result Supplier
	err := tx.WithContext(ctx).First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func GetSuppliers(ctx context.Context) ([]*Supplier, error) {
	db := config.GetDB()
	var results []*Supplier
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
