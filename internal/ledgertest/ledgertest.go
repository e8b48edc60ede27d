// Package ledgertest builds in-memory ledger databases and seed data for
// package tests.
package ledgertest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rentledger/internal/clock"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/migration"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// OpenDB returns a migrated in-memory database private to the test.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory database alive and
	// serializes transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.StripRowLocks(conn))
	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

// Date is a UTC calendar day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Fixture bundles the collaborators most service tests need.
type Fixture struct {
	T     testing.TB
	DB    *gorm.DB
	Node  *snowflake.Node
	Clock *clock.FakeClock

	units int
}

// New opens a database and pins the clock to today.
func New(t testing.TB, today time.Time) *Fixture {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return &Fixture{
		T:     t,
		DB:    OpenDB(t),
		Node:  node,
		Clock: clock.NewFakeClock(today),
	}
}

func (f *Fixture) SeedApartment(name string) propertydomain.Apartment {
	f.T.Helper()

	now := f.Clock.Now()
	apartment := propertydomain.Apartment{
		ID:           f.Node.Generate(),
		Name:         name,
		PaymentMode:  propertydomain.PaymentModePaybill,
		MpesaPaybill: "400200",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(f.T, f.DB.Create(&apartment).Error)
	return apartment
}

func (f *Fixture) SeedUnit(apartmentID snowflake.ID, number string, rent money.Money) propertydomain.Unit {
	f.T.Helper()

	now := f.Clock.Now()
	unit := propertydomain.Unit{
		ID:          f.Node.Generate(),
		ApartmentID: apartmentID,
		UnitNumber:  number,
		RentAmount:  rent,
		Status:      propertydomain.UnitStatusOccupied,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(f.T, f.DB.Create(&unit).Error)
	return unit
}

type TenantOption func(*tenantdomain.Tenant)

func WithCredit(amount money.Money) TenantOption {
	return func(t *tenantdomain.Tenant) { t.CreditBalance = amount }
}

func WithLeaseEnd(day time.Time) TenantOption {
	return func(t *tenantdomain.Tenant) { t.LeaseEndDate = &day }
}

func WithEmail(email string) TenantOption {
	return func(t *tenantdomain.Tenant) { t.Email = email }
}

func (f *Fixture) SeedTenant(unitID snowflake.ID, name string, opts ...TenantOption) tenantdomain.Tenant {
	f.T.Helper()

	now := f.Clock.Now()
	tenant := tenantdomain.Tenant{
		ID:             f.Node.Generate(),
		UnitID:         unitID,
		FullName:       name,
		Phone:          "+254700000000",
		LeaseStartDate: Date(2023, time.January, 1),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, opt := range opts {
		opt(&tenant)
	}
	require.NoError(f.T, f.DB.Create(&tenant).Error)
	return tenant
}

// SeedRentedTenant creates an apartment, a unit at rent and its tenant.
func (f *Fixture) SeedRentedTenant(rent money.Money, opts ...TenantOption) tenantdomain.Tenant {
	f.T.Helper()

	f.units++
	apartment := f.SeedApartment("Sunrise Court")
	unit := f.SeedUnit(apartment.ID, fmt.Sprintf("A%d", f.units), rent)
	return f.SeedTenant(unit.ID, "Jane Wanjiku", opts...)
}

type InvoiceSeed struct {
	InvoiceDate time.Time
	DueDate     time.Time
	AmountDue   money.Money
	LateFee     money.Money
	Remaining   *money.Money
	// Status overrides the derived status, for stale-row scenarios.
	Status invoicedomain.InvoiceStatus
}

// SeedInvoice inserts an invoice directly, bypassing the invoice service.
func (f *Fixture) SeedInvoice(tenantID snowflake.ID, seed InvoiceSeed) invoicedomain.Invoice {
	f.T.Helper()

	if seed.DueDate.IsZero() {
		seed.DueDate = seed.InvoiceDate.AddDate(0, 0, 7)
	}
	remaining := seed.AmountDue.Add(seed.LateFee)
	if seed.Remaining != nil {
		remaining = *seed.Remaining
	}

	now := f.Clock.Now()
	invoice := invoicedomain.Invoice{
		ID:               f.Node.Generate(),
		TenantID:         tenantID,
		BillingPeriod:    seed.InvoiceDate.Format(invoicedomain.BillingPeriodLayout),
		InvoiceDate:      seed.InvoiceDate,
		DueDate:          seed.DueDate,
		AmountDue:        seed.AmountDue,
		LateFee:          seed.LateFee,
		RemainingBalance: remaining,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	invoice.Status = seed.Status
	if invoice.Status == "" {
		invoice.Status = invoice.StatusOn(clock.Today(f.Clock))
	}
	require.NoError(f.T, f.DB.Create(&invoice).Error)
	return invoice
}

func (f *Fixture) ReloadInvoice(id snowflake.ID) invoicedomain.Invoice {
	f.T.Helper()

	var invoice invoicedomain.Invoice
	require.NoError(f.T, f.DB.Where("id = ?", id).First(&invoice).Error)
	return invoice
}

func (f *Fixture) ReloadTenant(id snowflake.ID) tenantdomain.Tenant {
	f.T.Helper()

	var tenant tenantdomain.Tenant
	require.NoError(f.T, f.DB.Where("id = ?", id).First(&tenant).Error)
	return tenant
}

func Ptr[T any](v T) *T { return &v }
