// Package domain contains persistence models and status rules for rent
// invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusUnpaid        InvoiceStatus = "unpaid"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusPaid          InvoiceStatus = "paid"
)

// OutstandingStatuses are the states that still carry debt.
var OutstandingStatuses = []InvoiceStatus{
	InvoiceStatusUnpaid,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusOverdue,
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue, InvoiceStatusPaid:
		return true
	}
	return false
}

func (s InvoiceStatus) Outstanding() bool {
	return s.Valid() && s != InvoiceStatusPaid
}

// BillingPeriodLayout formats the month an invoice bills for.
const BillingPeriodLayout = "2006-01"

// Invoice represents one billing period of rent owed by a tenant.
type Invoice struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	TenantID         snowflake.ID  `gorm:"not null;uniqueIndex:ux_invoices_tenant_period,priority:1;index:ix_invoices_tenant_status_date,priority:1" json:"tenant_id"`
	BillingPeriod    string        `gorm:"type:varchar(7);not null;uniqueIndex:ux_invoices_tenant_period,priority:2" json:"billing_period"`
	InvoiceDate      time.Time     `gorm:"not null;index:ix_invoices_tenant_status_date,priority:3" json:"invoice_date"`
	DueDate          time.Time     `gorm:"not null" json:"due_date"`
	AmountDue        money.Money   `gorm:"not null" json:"amount_due"`
	LateFee          money.Money   `gorm:"not null;default:0" json:"late_fee"`
	RemainingBalance money.Money   `gorm:"not null" json:"remaining_balance"`
	CreditApplied    money.Money   `gorm:"not null;default:0" json:"credit_applied"`
	Status           InvoiceStatus `gorm:"type:varchar(20);not null;index:ix_invoices_tenant_status_date,priority:2" json:"status"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Total is the most the invoice can ever owe: rent plus any late fee.
func (i Invoice) Total() money.Money {
	return i.AmountDue.Add(i.LateFee)
}

// Applied is how much has been paid against the invoice so far.
func (i Invoice) Applied() money.Money {
	return i.Total().Sub(i.RemainingBalance)
}

// DeriveStatus is the only place an invoice status is computed.
func DeriveStatus(remaining, amountDue, lateFee money.Money, dueDate, today time.Time) InvoiceStatus {
	switch {
	case !remaining.IsPositive():
		return InvoiceStatusPaid
	case dateOf(dueDate).Before(dateOf(today)):
		return InvoiceStatusOverdue
	case remaining.Cmp(amountDue.Add(lateFee)) < 0:
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusUnpaid
	}
}

// StatusOn recomputes the invoice status for the given day.
func (i Invoice) StatusOn(today time.Time) InvoiceStatus {
	return DeriveStatus(i.RemainingBalance, i.AmountDue, i.LateFee, i.DueDate, today)
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
