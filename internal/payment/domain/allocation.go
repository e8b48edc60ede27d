package domain

import (
	"slices"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

// Allocation is one step of the waterfall against a single invoice.
type Allocation struct {
	InvoiceID     snowflake.ID
	Amount        money.Money
	BalanceBefore money.Money
	BalanceAfter  money.Money
}

type AllocationResult struct {
	Allocations []Allocation
	// Leftover is what remains after every outstanding invoice is settled.
	Leftover money.Money
}

// Applied is the part of the payment that went to invoices.
func (r AllocationResult) Applied() money.Money {
	total := money.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Allocate spreads amount over invoices oldest first. Invoices sharing an
// invoice date are settled in id order. The input slice is not modified.
func Allocate(amount money.Money, invoices []invoicedomain.Invoice) AllocationResult {
	ordered := slices.Clone(invoices)
	slices.SortStableFunc(ordered, func(a, b invoicedomain.Invoice) int {
		if c := a.InvoiceDate.Compare(b.InvoiceDate); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	remaining := amount
	result := AllocationResult{}
	for _, invoice := range ordered {
		if !remaining.IsPositive() {
			break
		}
		balance := invoice.RemainingBalance
		if !balance.IsPositive() {
			continue
		}

		applied := money.Min(remaining, balance)
		result.Allocations = append(result.Allocations, Allocation{
			InvoiceID:     invoice.ID,
			Amount:        applied,
			BalanceBefore: balance,
			BalanceAfter:  balance.Sub(applied),
		})
		remaining = remaining.Sub(applied)
	}

	if remaining.IsPositive() {
		result.Leftover = remaining
	}
	return result
}
