package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplates(t *testing.T) {
	body, err := Render("payment_receipt", map[string]any{
		"TenantName":    "Jane Wanjiku",
		"AmountPaid":    "15000.00",
		"DatePaid":      "2024-01-05",
		"ReceiptNumber": "N001",
		"Credited":      "3000.00",
		"CreditBalance": "3000.00",
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), "N001")
	assert.Contains(t, string(body), "carried forward as credit")

	body, err = Render("late_fee_applied", map[string]any{
		"TenantName":       "Jane Wanjiku",
		"BillingPeriod":    "2024-01",
		"LateFee":          "1500.00",
		"RemainingBalance": "13500.00",
	})
	require.NoError(t, err)
	assert.Contains(t, string(body), "1500.00")

	_, err = Render("missing", nil)
	assert.Error(t, err)
}

func TestSendRequiresRecipients(t *testing.T) {
	err := NewSMTP(Config{Host: "localhost", Port: 25}).Send(context.Background(), Message{Template: "invoice_new"})
	assert.ErrorIs(t, err, ErrNoRecipients)
}
