// Package domain contains the apartment and unit registry models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// PaymentMode is how tenants of an apartment are asked to pay.
type PaymentMode string

const (
	PaymentModePaybill PaymentMode = "paybill"
	PaymentModeBank    PaymentMode = "bank"
)

type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "available"
	UnitStatusOccupied  UnitStatus = "occupied"
)

type Apartment struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	PaymentMode    PaymentMode  `gorm:"type:text;not null;default:'paybill'" json:"payment_mode"`
	MpesaPaybill   string       `gorm:"type:text" json:"mpesa_paybill,omitempty"`
	MpesaAccountNo string       `gorm:"type:text" json:"mpesa_account_no,omitempty"`
	BankName       string       `gorm:"type:text" json:"bank_name,omitempty"`
	BankAccountNo  string       `gorm:"type:text" json:"bank_account_no,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (Apartment) TableName() string { return "apartments" }

type Unit struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ApartmentID snowflake.ID `gorm:"not null;index;uniqueIndex:idx_units_apartment_unit,priority:1" json:"apartment_id"`
	UnitNumber  string       `gorm:"type:varchar(64);not null;uniqueIndex:idx_units_apartment_unit,priority:2" json:"unit_number"`
	RentAmount  money.Money  `gorm:"not null" json:"rent_amount"`
	Status      UnitStatus   `gorm:"type:text;not null;default:'available'" json:"status"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Unit) TableName() string { return "units" }
