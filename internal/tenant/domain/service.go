package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context, req ListTenantRequest) ([]Tenant, error)
	EndLease(ctx context.Context, id snowflake.ID, endDate time.Time) (*Tenant, error)

	// LockTx reads the tenant row under FOR UPDATE. It is the per-tenant
	// critical section for payment allocation and invoice generation.
	LockTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Tenant, error)
}

type CreateTenantRequest struct {
	UnitID         snowflake.ID `json:"unit_id"`
	FullName       string       `json:"full_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	IDNumber       string       `json:"id_number"`
	Deposit        money.Money  `json:"deposit"`
	LeaseStartDate *time.Time   `json:"lease_start_date"`
}

type ListTenantRequest struct {
	ApartmentID snowflake.ID
	// ActiveOn keeps only tenants whose lease has not ended by that day.
	ActiveOn *time.Time
}

type ListTenantFilter struct {
	ApartmentID snowflake.ID
	ActiveOn    *time.Time
}

var (
	ErrNotFound          = errors.New("tenant_not_found")
	ErrInvalidName       = errors.New("invalid_full_name")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidDeposit    = errors.New("invalid_deposit")
	ErrUnitOccupied      = errors.New("unit_occupied")
	ErrInvalidLeaseDates = errors.New("invalid_lease_dates")
	ErrLeaseEnded        = errors.New("lease_already_ended")
)
