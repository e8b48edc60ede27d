package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outstanding(id int64, date time.Time, remaining money.Money) invoicedomain.Invoice {
	return invoicedomain.Invoice{
		ID:               snowflake.ID(id),
		InvoiceDate:      date,
		AmountDue:        remaining,
		RemainingBalance: remaining,
	}
}

var (
	jan = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
)

func TestAllocateExactSettlement(t *testing.T) {
	result := Allocate(money.New(12000), []invoicedomain.Invoice{outstanding(1, jan, money.New(12000))})

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, money.New(12000), result.Allocations[0].Amount)
	assert.True(t, result.Allocations[0].BalanceAfter.IsZero())
	assert.True(t, result.Leftover.IsZero())
}

func TestAllocateOverpaymentLeavesLeftover(t *testing.T) {
	result := Allocate(money.New(15000), []invoicedomain.Invoice{outstanding(1, jan, money.New(12000))})

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, money.New(3000), result.Leftover)
}

func TestAllocatePartial(t *testing.T) {
	result := Allocate(money.New(5000), []invoicedomain.Invoice{outstanding(1, jan, money.New(12000))})

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, money.New(5000), result.Allocations[0].Amount)
	assert.Equal(t, money.New(7000), result.Allocations[0].BalanceAfter)
	assert.True(t, result.Leftover.IsZero())
}

func TestAllocateOldestFirstRegardlessOfInputOrder(t *testing.T) {
	invoices := []invoicedomain.Invoice{
		outstanding(10, feb, money.New(10000)),
		outstanding(20, jan, money.New(10000)),
	}

	result := Allocate(money.New(12000), invoices)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, snowflake.ID(20), result.Allocations[0].InvoiceID)
	assert.Equal(t, money.New(10000), result.Allocations[0].Amount)
	assert.Equal(t, snowflake.ID(10), result.Allocations[1].InvoiceID)
	assert.Equal(t, money.New(2000), result.Allocations[1].Amount)
	assert.Equal(t, snowflake.ID(10), invoices[0].ID, "input must not be reordered")
}

func TestAllocateSameDateBreaksTieByID(t *testing.T) {
	invoices := []invoicedomain.Invoice{
		outstanding(9, jan, money.New(5000)),
		outstanding(3, jan, money.New(5000)),
	}

	result := Allocate(money.New(5000), invoices)

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, snowflake.ID(3), result.Allocations[0].InvoiceID)
}

func TestAllocateNoInvoicesAllLeftover(t *testing.T) {
	result := Allocate(money.New(8000), nil)

	assert.Empty(t, result.Allocations)
	assert.Equal(t, money.New(8000), result.Leftover)
}

func TestAllocateSkipsSettledInvoices(t *testing.T) {
	result := Allocate(money.New(100), []invoicedomain.Invoice{
		outstanding(1, jan, money.Zero),
		outstanding(2, feb, money.New(50)),
	})

	require.Len(t, result.Allocations, 1)
	assert.Equal(t, snowflake.ID(2), result.Allocations[0].InvoiceID)
	assert.Equal(t, money.New(50), result.Leftover)
}

func TestAllocateConservesAmount(t *testing.T) {
	invoices := []invoicedomain.Invoice{
		outstanding(1, jan, money.MustParse("1000.35")),
		outstanding(2, feb, money.MustParse("2500.10")),
		outstanding(3, mar, money.MustParse("999.99")),
	}

	for _, raw := range []string{"0.01", "1000.35", "1500", "4500.44", "9999.99"} {
		amount := money.MustParse(raw)
		result := Allocate(amount, invoices)
		assert.Equal(t, amount, result.Applied().Add(result.Leftover), raw)
		for _, a := range result.Allocations {
			assert.Equal(t, a.BalanceBefore, a.BalanceAfter.Add(a.Amount))
			assert.False(t, a.BalanceAfter.IsNegative())
		}
	}
}

func TestFormatReceiptNumber(t *testing.T) {
	assert.Equal(t, "N001", FormatReceiptNumber(1))
	assert.Equal(t, "N042", FormatReceiptNumber(42))
	assert.Equal(t, "N1000", FormatReceiptNumber(1000))
}

func TestParseMethod(t *testing.T) {
	method, err := ParseMethod(" MPESA ")
	require.NoError(t, err)
	assert.Equal(t, MethodMpesa, method)

	_, err = ParseMethod("cheque")
	assert.ErrorIs(t, err, ErrInvalidMethod)
}
