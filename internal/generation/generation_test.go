package generation_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/generation"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/ledgertest"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, billing config.BillingConfig) (*ledgertest.Fixture, *generation.Service) {
	t.Helper()

	f := ledgertest.New(t, ledgertest.Date(2024, time.March, 1))
	svcs := f.Services()
	return f, generation.New(generation.Params{
		DB:         f.DB,
		Log:        zap.NewNop(),
		Clock:      f.Clock,
		TenantSvc:  svcs.Tenant,
		InvoiceSvc: svcs.Invoice,
		CreditSvc:  svcs.Credit,
		Billing:    config.NewStaticBillingConfigHolder(billing),
	})
}

func TestGenerateMonthlyConsumesCredit(t *testing.T) {
	f, svc := newService(t, config.DefaultBillingConfig())
	tenant := f.SeedRentedTenant(money.New(12000), ledgertest.WithCredit(money.New(3000)))

	result, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-03", result.Period)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Invoices, 1)

	invoice := f.ReloadInvoice(result.Invoices[0].ID)
	assert.Equal(t, tenant.ID, invoice.TenantID)
	assert.Equal(t, money.New(9000), invoice.AmountDue)
	assert.Equal(t, money.New(9000), invoice.RemainingBalance)
	assert.Equal(t, money.New(3000), invoice.CreditApplied)
	assert.Equal(t, invoicedomain.InvoiceStatusUnpaid, invoice.Status)
	assert.Equal(t, ledgertest.Date(2024, time.March, 8), invoice.DueDate.UTC())
	assert.True(t, f.ReloadTenant(tenant.ID).CreditBalance.IsZero())
}

func TestGenerateMonthlyCreditCoversRent(t *testing.T) {
	f, svc := newService(t, config.DefaultBillingConfig())
	tenant := f.SeedRentedTenant(money.New(12000), ledgertest.WithCredit(money.New(15000)))

	result, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)

	invoice := f.ReloadInvoice(result.Invoices[0].ID)
	assert.True(t, invoice.AmountDue.IsZero())
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, invoice.Status)
	assert.Equal(t, money.New(3000), f.ReloadTenant(tenant.ID).CreditBalance)
}

func TestGenerateMonthlyIsIdempotent(t *testing.T) {
	f, svc := newService(t, config.DefaultBillingConfig())
	tenant := f.SeedRentedTenant(money.New(12000), ledgertest.WithCredit(money.New(3000)))
	f.SeedRentedTenant(money.New(8000))

	first, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)

	f.Clock.Advance(6 * time.Hour)
	second, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 2, second.Skipped)

	var count int64
	require.NoError(t, f.DB.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	assert.True(t, f.ReloadTenant(tenant.ID).CreditBalance.IsZero())
}

func TestGenerateMonthlySkipsEndedLeases(t *testing.T) {
	f, svc := newService(t, config.DefaultBillingConfig())
	f.SeedRentedTenant(money.New(12000), ledgertest.WithLeaseEnd(ledgertest.Date(2024, time.February, 29)))
	f.SeedRentedTenant(money.New(12000), ledgertest.WithLeaseEnd(ledgertest.Date(2024, time.March, 1)))
	active := f.SeedRentedTenant(money.New(12000), ledgertest.WithLeaseEnd(ledgertest.Date(2024, time.March, 31)))

	result, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, active.ID, result.Invoices[0].TenantID)
}

func TestGenerateMonthlyUsesConfiguredDueDays(t *testing.T) {
	cfg := config.DefaultBillingConfig()
	cfg.DueDays = 14
	f, svc := newService(t, cfg)
	f.SeedRentedTenant(money.New(12000))

	result, err := svc.GenerateMonthly(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)
	assert.Equal(t, ledgertest.Date(2024, time.March, 15), result.Invoices[0].DueDate)
}
