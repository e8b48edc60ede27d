package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/datatypes"
)

type Method string

const (
	MethodMpesa Method = "mpesa"
	MethodBank  Method = "bank"
	MethodCash  Method = "cash"
)

// ParseMethod normalizes user input to a known method.
func ParseMethod(raw string) (Method, error) {
	method := Method(strings.ToLower(strings.TrimSpace(raw)))
	switch method {
	case MethodMpesa, MethodBank, MethodCash:
		return method, nil
	}
	return "", ErrInvalidMethod
}

type Status string

const StatusCompleted Status = "completed"

// Payment is a single inbound transaction. Rows are never updated.
type Payment struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID      `gorm:"not null;index" json:"tenant_id"`
	AmountPaid     money.Money       `gorm:"not null" json:"amount_paid"`
	PaymentDate    time.Time         `gorm:"not null" json:"payment_date"`
	Method         Method            `gorm:"type:varchar(16);not null" json:"method"`
	ReceiptNumber  string            `gorm:"type:varchar(32);not null;uniqueIndex:ux_payments_receipt_number" json:"receipt_number"`
	Status         Status            `gorm:"type:varchar(16);not null" json:"status"`
	Reference      string            `gorm:"type:varchar(64)" json:"reference,omitempty"`
	CreditedAmount money.Money       `gorm:"not null;default:0" json:"credited_amount"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "payments" }

// PaymentAllocation records how much of a payment settled one invoice.
type PaymentAllocation struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	PaymentID     snowflake.ID `gorm:"not null;index" json:"payment_id"`
	InvoiceID     snowflake.ID `gorm:"not null;index" json:"invoice_id"`
	Amount        money.Money  `gorm:"not null" json:"amount"`
	BalanceBefore money.Money  `gorm:"not null" json:"balance_before"`
	BalanceAfter  money.Money  `gorm:"not null" json:"balance_after"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
}

func (PaymentAllocation) TableName() string { return "payment_allocations" }

const ReceiptSequenceName = "receipt"

type ReceiptSequence struct {
	Name      string `gorm:"primaryKey;type:varchar(32)"`
	LastValue int64  `gorm:"not null;default:0"`
}

func (ReceiptSequence) TableName() string { return "receipt_sequences" }

// FormatReceiptNumber renders N001, N002 and so on. Values past 999 keep
// growing in width.
func FormatReceiptNumber(value int64) string {
	return fmt.Sprintf("N%03d", value)
}
