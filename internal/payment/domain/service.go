package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"github.com/smallbiznis/rentledger/pkg/money"
)

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*RecordPaymentResult, error)
	GetPayment(ctx context.Context, id snowflake.ID) (*PaymentDetail, error)
	ListPayments(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
}

type RecordPaymentRequest struct {
	TenantID    snowflake.ID
	Amount      money.Money
	PaymentDate time.Time
	Method      string
	Reference   string
	Metadata    map[string]any
}

type RecordPaymentResult struct {
	Payment     Payment                 `json:"payment"`
	Allocations []PaymentAllocation     `json:"allocations"`
	Invoices    []invoicedomain.Invoice `json:"invoices"`
	Credited    money.Money             `json:"credited"`
	// CreditBalance is the tenant balance after the payment committed.
	CreditBalance money.Money `json:"credit_balance"`
}

type PaymentDetail struct {
	Payment     Payment             `json:"payment"`
	Allocations []PaymentAllocation `json:"allocations"`
}

type ListPaymentRequest struct {
	TenantID  snowflake.ID
	PageSize  int
	PageToken string
}

type ListPaymentResponse struct {
	Payments []Payment           `json:"payments"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrNotFound         = errors.New("payment_not_found")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidMethod    = errors.New("invalid_payment_method")
	ErrInvalidTenant    = errors.New("invalid_tenant")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
