package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/rentledger/internal/ledgertest"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*ledgertest.Fixture, ledgertest.Services) {
	t.Helper()

	f := ledgertest.New(t, ledgertest.Date(2024, time.January, 10))
	return f, f.Services()
}

func availableUnit(t *testing.T, f *ledgertest.Fixture, svcs ledgertest.Services, number string) *propertydomain.Unit {
	t.Helper()

	apartment := f.SeedApartment("Sunrise Court")
	unit, err := svcs.Property.CreateUnit(context.Background(), propertydomain.CreateUnitRequest{
		ApartmentID: apartment.ID,
		UnitNumber:  number,
		RentAmount:  money.New(12000),
	})
	require.NoError(t, err)
	return unit
}

func TestCreateTenantOccupiesUnit(t *testing.T) {
	f, svcs := setup(t)
	unit := availableUnit(t, f, svcs, "A1")

	tenant, err := svcs.Tenant.Create(context.Background(), domain.CreateTenantRequest{
		UnitID:   unit.ID,
		FullName: "Jane Wanjiku",
		Email:    "jane@example.com",
		Deposit:  money.New(12000),
	})
	require.NoError(t, err)
	assert.Equal(t, ledgertest.Date(2024, time.January, 10), tenant.LeaseStartDate)
	assert.True(t, tenant.CreditBalance.IsZero())

	got, err := svcs.Property.GetUnit(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, propertydomain.UnitStatusOccupied, got.Status)

	_, err = svcs.Tenant.Create(context.Background(), domain.CreateTenantRequest{
		UnitID:   unit.ID,
		FullName: "John Otieno",
	})
	assert.ErrorIs(t, err, domain.ErrUnitOccupied)
}

func TestConcurrentCreatesOccupyUnitOnce(t *testing.T) {
	f, svcs := setup(t)
	unit := availableUnit(t, f, svcs, "B4")

	const attempts = 5
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svcs.Tenant.Create(context.Background(), domain.CreateTenantRequest{
				UnitID:   unit.ID,
				FullName: fmt.Sprintf("Applicant %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrUnitOccupied)
	}
	assert.Equal(t, 1, created)

	var count int64
	require.NoError(t, f.DB.Model(&domain.Tenant{}).Where("unit_id = ?", unit.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateTenantValidation(t *testing.T) {
	f, svcs := setup(t)
	unit := availableUnit(t, f, svcs, "A1")

	cases := []struct {
		name string
		req  domain.CreateTenantRequest
		err  error
	}{
		{"missing name", domain.CreateTenantRequest{UnitID: unit.ID}, domain.ErrInvalidName},
		{"bad email", domain.CreateTenantRequest{UnitID: unit.ID, FullName: "Jane", Email: "jane"}, domain.ErrInvalidEmail},
		{"negative deposit", domain.CreateTenantRequest{UnitID: unit.ID, FullName: "Jane", Deposit: money.New(-1)}, domain.ErrInvalidDeposit},
		{"unknown unit", domain.CreateTenantRequest{UnitID: f.Node.Generate(), FullName: "Jane"}, propertydomain.ErrUnitNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svcs.Tenant.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestEndLeaseFreesUnit(t *testing.T) {
	f, svcs := setup(t)
	unit := availableUnit(t, f, svcs, "A1")
	tenant, err := svcs.Tenant.Create(context.Background(), domain.CreateTenantRequest{UnitID: unit.ID, FullName: "Jane"})
	require.NoError(t, err)

	ended, err := svcs.Tenant.EndLease(context.Background(), tenant.ID, ledgertest.Date(2024, time.March, 31))
	require.NoError(t, err)
	require.NotNil(t, ended.LeaseEndDate)
	assert.Equal(t, ledgertest.Date(2024, time.March, 31), *ended.LeaseEndDate)

	got, err := svcs.Property.GetUnit(context.Background(), unit.ID)
	require.NoError(t, err)
	assert.Equal(t, propertydomain.UnitStatusAvailable, got.Status)

	_, err = svcs.Tenant.EndLease(context.Background(), tenant.ID, ledgertest.Date(2024, time.April, 30))
	assert.ErrorIs(t, err, domain.ErrLeaseEnded)
}

func TestEndLeaseBeforeStart(t *testing.T) {
	f, svcs := setup(t)
	tenant := f.SeedRentedTenant(money.New(12000))

	_, err := svcs.Tenant.EndLease(context.Background(), tenant.ID, ledgertest.Date(2022, time.December, 31))
	assert.ErrorIs(t, err, domain.ErrInvalidLeaseDates)

	_, err = svcs.Tenant.EndLease(context.Background(), f.Node.Generate(), ledgertest.Date(2024, time.December, 31))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListTenantsActiveAndByApartment(t *testing.T) {
	f, svcs := setup(t)
	active := f.SeedRentedTenant(money.New(12000))
	f.SeedRentedTenant(money.New(12000), ledgertest.WithLeaseEnd(ledgertest.Date(2024, time.January, 10)))
	f.SeedRentedTenant(money.New(12000), ledgertest.WithLeaseEnd(ledgertest.Date(2024, time.June, 30)))

	today := ledgertest.Date(2024, time.January, 10)
	tenants, err := svcs.Tenant.List(context.Background(), domain.ListTenantRequest{ActiveOn: &today})
	require.NoError(t, err)
	assert.Len(t, tenants, 2)

	all, err := svcs.Tenant.List(context.Background(), domain.ListTenantRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	var unit propertydomain.Unit
	require.NoError(t, f.DB.Where("id = ?", active.UnitID).First(&unit).Error)
	byApartment, err := svcs.Tenant.List(context.Background(), domain.ListTenantRequest{ApartmentID: unit.ApartmentID})
	require.NoError(t, err)
	require.Len(t, byApartment, 1)
	assert.Equal(t, active.ID, byApartment[0].ID)
}

func TestGetTenantNotFound(t *testing.T) {
	f, svcs := setup(t)

	_, err := svcs.Tenant.GetByID(context.Background(), f.Node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
