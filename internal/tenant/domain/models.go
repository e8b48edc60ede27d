// Package domain contains the tenant registry model. A tenant occupies one
// unit and carries the standing credit balance consumed by future invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

type Tenant struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	UnitID         snowflake.ID `gorm:"not null;index" json:"unit_id"`
	FullName       string       `gorm:"type:text;not null" json:"full_name"`
	Email          string       `gorm:"type:text" json:"email,omitempty"`
	Phone          string       `gorm:"type:text" json:"phone,omitempty"`
	IDNumber       string       `gorm:"type:text" json:"id_number,omitempty"`
	Deposit        money.Money  `gorm:"not null;default:0" json:"deposit"`
	LeaseStartDate time.Time    `gorm:"not null" json:"lease_start_date"`
	LeaseEndDate   *time.Time   `json:"lease_end_date,omitempty"`
	CreditBalance  money.Money  `gorm:"not null;default:0" json:"credit_balance"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

// IsActive reports whether the lease is still running on day.
func (t Tenant) IsActive(day time.Time) bool {
	return t.LeaseEndDate == nil || t.LeaseEndDate.After(day)
}
