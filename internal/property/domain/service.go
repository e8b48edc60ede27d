package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	CreateApartment(ctx context.Context, req CreateApartmentRequest) (*Apartment, error)
	GetApartment(ctx context.Context, id snowflake.ID) (*Apartment, error)
	CreateUnit(ctx context.Context, req CreateUnitRequest) (*Unit, error)
	GetUnit(ctx context.Context, id snowflake.ID) (*Unit, error)
	ListUnits(ctx context.Context, apartmentID snowflake.ID) ([]Unit, error)

	// LockUnitTx reads the unit under a row lock held until tx ends.
	LockUnitTx(ctx context.Context, tx *gorm.DB, unitID snowflake.ID) (*Unit, error)
	// SetUnitStatusTx changes occupancy inside the caller's transaction.
	SetUnitStatusTx(ctx context.Context, tx *gorm.DB, unitID snowflake.ID, status UnitStatus) error
}

type CreateApartmentRequest struct {
	Name           string      `json:"name"`
	PaymentMode    PaymentMode `json:"payment_mode"`
	MpesaPaybill   string      `json:"mpesa_paybill"`
	MpesaAccountNo string      `json:"mpesa_account_no"`
	BankName       string      `json:"bank_name"`
	BankAccountNo  string      `json:"bank_account_no"`
}

type CreateUnitRequest struct {
	ApartmentID snowflake.ID `json:"apartment_id"`
	UnitNumber  string       `json:"unit_number"`
	RentAmount  money.Money  `json:"rent_amount"`
}

var (
	ErrApartmentNotFound   = errors.New("apartment_not_found")
	ErrUnitNotFound        = errors.New("unit_not_found")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPaymentMode  = errors.New("invalid_payment_mode")
	ErrInvalidPaymentInfo  = errors.New("invalid_payment_info")
	ErrInvalidUnitNumber   = errors.New("invalid_unit_number")
	ErrInvalidRentAmount   = errors.New("invalid_rent_amount")
	ErrDuplicateUnitNumber = errors.New("duplicate_unit_number")
)
