package latefee_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/latefee"
	"github.com/smallbiznis/rentledger/internal/ledgertest"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	*ledgertest.Fixture
	settings *settings.Service
	job      *latefee.Service
}

func newHarness(t *testing.T, billing config.BillingConfig) *harness {
	t.Helper()

	f := ledgertest.New(t, ledgertest.Date(2024, time.January, 9))
	settingsSvc := settings.New(settings.Params{DB: f.DB, Log: zap.NewNop(), Clock: f.Clock})
	return &harness{
		Fixture:  f,
		settings: settingsSvc,
		job: latefee.New(latefee.Params{
			Log:        zap.NewNop(),
			InvoiceSvc: f.Services().Invoice,
			Settings:   settingsSvc,
			Billing:    config.NewStaticBillingConfigHolder(billing),
		}),
	}
}

// staleJanuary seeds an invoice due Jan 8 whose stored status was never
// refreshed past its due date.
func (h *harness) staleJanuary(remaining money.Money) invoicedomain.Invoice {
	tenant := h.SeedRentedTenant(money.New(12000))
	status := invoicedomain.InvoiceStatusUnpaid
	if remaining.Cmp(money.New(12000)) < 0 {
		status = invoicedomain.InvoiceStatusPartiallyPaid
	}
	return h.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2024, time.January, 1),
		DueDate:     ledgertest.Date(2024, time.January, 8),
		AmountDue:   money.New(12000),
		Remaining:   ledgertest.Ptr(remaining),
		Status:      status,
	})
}

func TestRunAppliesFeeOnce(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	invoice := h.staleJanuary(money.New(12000))

	result, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Promoted)
	assert.Equal(t, 1, result.FeesApplied)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, invoice.ID, result.Applied[0].ID)

	got := h.ReloadInvoice(invoice.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)
	assert.Equal(t, money.New(1500), got.LateFee)
	assert.Equal(t, money.New(13500), got.RemainingBalance)

	h.Clock.Advance(24 * time.Hour)
	again, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Promoted)
	assert.Zero(t, again.FeesApplied)
	after := h.ReloadInvoice(invoice.ID)
	assert.Equal(t, got.LateFee, after.LateFee)
	assert.Equal(t, got.RemainingBalance, after.RemainingBalance)
	assert.Equal(t, got.Status, after.Status)
}

func TestRunContinuesPastFailedInvoice(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	failing := h.staleJanuary(money.New(12000))
	healthy := h.staleJanuary(money.New(12000))

	feeUpdate := ledgertest.UpdateOf("invoices", failing.ID)
	stop := ledgertest.FailExec(t, h.DB, func(sql string, vars []any) bool {
		if !feeUpdate(sql, vars) {
			return false
		}
		fee, ok := vars[0].(money.Money)
		return ok && fee.IsPositive()
	}, errors.New("lock wait timeout"))

	result, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Promoted)
	assert.Equal(t, 1, result.FeesApplied)
	assert.Equal(t, 1, result.Failed)

	skipped := h.ReloadInvoice(failing.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, skipped.Status)
	assert.True(t, skipped.LateFee.IsZero())
	assert.Equal(t, money.New(12000), skipped.RemainingBalance)
	assert.Equal(t, money.New(1500), h.ReloadInvoice(healthy.ID).LateFee)

	stop()
	retry, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, retry.Promoted)
	assert.Equal(t, 1, retry.FeesApplied)
	assert.Zero(t, retry.Failed)
	require.Len(t, retry.Applied, 1)
	assert.Equal(t, failing.ID, retry.Applied[0].ID)

	charged := h.ReloadInvoice(failing.ID)
	assert.Equal(t, money.New(1500), charged.LateFee)
	assert.Equal(t, money.New(13500), charged.RemainingBalance)
	untouched := h.ReloadInvoice(healthy.ID)
	assert.Equal(t, money.New(1500), untouched.LateFee)
	assert.Equal(t, money.New(13500), untouched.RemainingBalance)
}

func TestRunChargesPartiallyPaidPastDue(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	invoice := h.staleJanuary(money.New(5000))

	result, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FeesApplied)

	got := h.ReloadInvoice(invoice.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusOverdue, got.Status)
	assert.Equal(t, money.New(6500), got.RemainingBalance)
}

func TestRunLeavesOtherInvoicesAlone(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	tenant := h.SeedRentedTenant(money.New(12000))

	notDue := h.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2024, time.January, 5),
		DueDate:     ledgertest.Date(2024, time.January, 12),
		AmountDue:   money.New(12000),
	})
	paid := h.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2023, time.December, 1),
		AmountDue:   money.New(12000),
		Remaining:   ledgertest.Ptr(money.Zero),
	})
	charged := h.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2023, time.November, 1),
		AmountDue:   money.New(12000),
		LateFee:     money.New(1000),
	})

	result, err := h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.FeesApplied)

	gotNotDue := h.ReloadInvoice(notDue.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, gotNotDue.Status)
	assert.True(t, gotNotDue.LateFee.IsZero())
	gotPaid := h.ReloadInvoice(paid.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, gotPaid.Status)
	assert.True(t, gotPaid.LateFee.IsZero())
	assert.Equal(t, money.New(1000), h.ReloadInvoice(charged.ID).LateFee)
}

func TestRunUsesSettingsOverride(t *testing.T) {
	h := newHarness(t, config.DefaultBillingConfig())
	invoice := h.staleJanuary(money.New(12000))

	_, err := h.settings.Set(context.Background(), settings.KeyLateFeeFixed, "2000")
	require.NoError(t, err)

	_, err = h.job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, money.New(2000), h.ReloadInvoice(invoice.ID).LateFee)
}

func TestRunFallsBackToBillingConfig(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.LateFeeFixed = "750"
	h := newHarness(t, cfg)

	fee, err := h.job.Fee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, money.New(750), fee)
}

func TestRunRejectsNonPositiveFee(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.LateFeeFixed = "0"
	h := newHarness(t, cfg)
	invoice := h.staleJanuary(money.New(12000))

	_, err := h.job.Run(context.Background())
	assert.ErrorIs(t, err, latefee.ErrInvalidAmount)

	got := h.ReloadInvoice(invoice.ID)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, got.Status)
	assert.True(t, got.LateFee.IsZero())
}
