package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	// CreateInvoiceTx inserts inside the caller's transaction; the caller
	// has already locked the tenant.
	CreateInvoiceTx(ctx context.Context, tx *gorm.DB, req CreateInvoiceRequest) (*Invoice, error)
	GetInvoice(ctx context.Context, id snowflake.ID) (*Invoice, error)
	// InvoiceForPeriod reads through tx when it is not nil.
	InvoiceForPeriod(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, period string) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)

	// OutstandingInvoices locks the rows when tx is a transaction.
	OutstandingInvoices(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) ([]Invoice, error)
	ApplyBalanceChange(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, newRemaining money.Money) (*Invoice, error)

	// RefreshOverdue re-derives the status of outstanding invoices past
	// their due date and returns how many changed.
	RefreshOverdue(ctx context.Context) (int, []error, error)
	ListOverdueWithoutFee(ctx context.Context) ([]Invoice, error)
	// ApplyLateFee adds fee once. applied is false when the invoice already
	// carries a fee or is no longer overdue.
	ApplyLateFee(ctx context.Context, invoiceID snowflake.ID, fee money.Money) (invoice *Invoice, applied bool, err error)
}

type CreateInvoiceRequest struct {
	TenantID      snowflake.ID
	BillingPeriod string
	InvoiceDate   time.Time
	DueDate       time.Time
	AmountDue     money.Money
	CreditApplied money.Money
}

type ListInvoiceRequest struct {
	TenantID  snowflake.ID
	Statuses  []InvoiceStatus
	From      *time.Time
	To        *time.Time
	PageSize  int
	PageToken string
}

type ListInvoiceFilter struct {
	TenantID snowflake.ID
	Statuses []InvoiceStatus
	From     *time.Time
	To       *time.Time
}

type ListInvoiceResponse struct {
	Invoices []Invoice           `json:"invoices"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrNotFound          = errors.New("invoice_not_found")
	ErrInvalidTenant     = errors.New("invalid_tenant")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidPeriod     = errors.New("invalid_billing_period")
	ErrInvalidDates      = errors.New("invalid_invoice_dates")
	ErrInvalidBalance    = errors.New("invalid_remaining_balance")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrDuplicatePeriod   = errors.New("invoice_already_exists_for_period")
	ErrInvalidDateFilter = errors.New("invalid_date_filter")
)
