package pdf

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header() Header {
	return Header{
		PropertyName:   "Sunrise Court",
		PaymentDetails: "M-Pesa paybill 400200, account A1",
		TenantName:     "Jane Wanjiku",
		TenantEmail:    "jane@example.com",
		UnitNumber:     "A1",
	}
}

func TestGenerateInvoice(t *testing.T) {
	reader, err := New().GenerateInvoice(context.Background(), InvoiceData{
		Header:           header(),
		BillingPeriod:    "2024-01",
		InvoiceDate:      "2024-01-01",
		DueDate:          "2024-01-08",
		Status:           "unpaid",
		Items:            []LineItem{{Description: "Rent 2024-01", Amount: "12000.00"}},
		Total:            "12000.00",
		RemainingBalance: "12000.00",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestGenerateReceipt(t *testing.T) {
	reader, err := New().GenerateReceipt(context.Background(), ReceiptData{
		Header:        header(),
		ReceiptNumber: "N001",
		DatePaid:      "2024-01-05",
		Method:        "mpesa",
		Items:         []LineItem{{Description: "Invoice 2024-01", Amount: "12000.00"}},
		AmountPaid:    "15000.00",
		Credited:      "3000.00",
		CreditBalance: "3000.00",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}
