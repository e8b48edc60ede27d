package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PropertySvc propertydomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	propertySvc propertydomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("tenant.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		propertySvc: p.PropertySvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (*domain.Tenant, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := strings.TrimSpace(req.Email)
	if email != "" && !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	if req.Deposit.IsNegative() {
		return nil, domain.ErrInvalidDeposit
	}

	leaseStart := clock.Today(s.clock)
	if req.LeaseStartDate != nil {
		leaseStart = clock.StartOfDay(*req.LeaseStartDate)
	}

	now := s.clock.Now()
	tenant := domain.Tenant{
		ID:             s.genID.Generate(),
		UnitID:         req.UnitID,
		FullName:       name,
		Email:          email,
		Phone:          strings.TrimSpace(req.Phone),
		IDNumber:       strings.TrimSpace(req.IDNumber),
		Deposit:        req.Deposit,
		LeaseStartDate: leaseStart,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// occupancy is read under the unit lock the insert commits with
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.propertySvc.LockUnitTx(ctx, tx, req.UnitID)
		if err != nil {
			return err
		}
		if unit.Status == propertydomain.UnitStatusOccupied {
			return domain.ErrUnitOccupied
		}
		if err := s.repo.Insert(ctx, tx, &tenant); err != nil {
			return db.Wrap(err)
		}
		return s.propertySvc.SetUnitStatusTx(ctx, tx, unit.ID, propertydomain.UnitStatusOccupied)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("unit_id", tenant.UnitID.String()),
	)
	return &tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Tenant, error) {
	tenant, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTenantRequest) ([]domain.Tenant, error) {
	filter := domain.ListTenantFilter{ApartmentID: req.ApartmentID}
	if req.ActiveOn != nil {
		day := clock.StartOfDay(*req.ActiveOn)
		filter.ActiveOn = &day
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, db.Wrap(err)
	}

	tenants := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenants = append(tenants, *item)
	}
	return tenants, nil
}

// EndLease closes the lease and frees the unit. Outstanding invoices and
// credit stay with the tenant.
func (s *Service) EndLease(ctx context.Context, id snowflake.ID, endDate time.Time) (*domain.Tenant, error) {
	endDay := clock.StartOfDay(endDate)

	var result domain.Tenant
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.LockTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if tenant.LeaseEndDate != nil {
			return domain.ErrLeaseEnded
		}
		if endDay.Before(tenant.LeaseStartDate) {
			return domain.ErrInvalidLeaseDates
		}

		tenant.LeaseEndDate = &endDay
		tenant.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateLeaseEnd(ctx, tx, tenant); err != nil {
			return db.Wrap(err)
		}
		if err := s.propertySvc.SetUnitStatusTx(ctx, tx, tenant.UnitID, propertydomain.UnitStatusAvailable); err != nil {
			return err
		}
		result = *tenant
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Service) LockTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Tenant, error) {
	tenant, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if tenant == nil {
		return nil, domain.ErrNotFound
	}
	return tenant, nil
}
