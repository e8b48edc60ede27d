package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	apartments repository.Repository[domain.Apartment]
	units      repository.Repository[domain.Unit]
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("property.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		apartments: repository.New[domain.Apartment](p.DB),
		units:      repository.New[domain.Unit](p.DB),
	}
}

func (s *Service) CreateApartment(ctx context.Context, req domain.CreateApartmentRequest) (*domain.Apartment, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	mode := req.PaymentMode
	if mode == "" {
		mode = domain.PaymentModePaybill
	}
	switch mode {
	case domain.PaymentModePaybill:
		if strings.TrimSpace(req.MpesaPaybill) == "" {
			return nil, domain.ErrInvalidPaymentInfo
		}
	case domain.PaymentModeBank:
		if strings.TrimSpace(req.BankName) == "" || strings.TrimSpace(req.BankAccountNo) == "" {
			return nil, domain.ErrInvalidPaymentInfo
		}
	default:
		return nil, domain.ErrInvalidPaymentMode
	}

	now := s.clock.Now()
	apartment := domain.Apartment{
		ID:             s.genID.Generate(),
		Name:           name,
		PaymentMode:    mode,
		MpesaPaybill:   strings.TrimSpace(req.MpesaPaybill),
		MpesaAccountNo: strings.TrimSpace(req.MpesaAccountNo),
		BankName:       strings.TrimSpace(req.BankName),
		BankAccountNo:  strings.TrimSpace(req.BankAccountNo),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.apartments.Insert(ctx, &apartment); err != nil {
		return nil, err
	}

	s.log.Info("apartment created", zap.String("apartment_id", apartment.ID.String()), zap.String("name", name))
	return &apartment, nil
}

func (s *Service) GetApartment(ctx context.Context, id snowflake.ID) (*domain.Apartment, error) {
	if id == 0 {
		return nil, domain.ErrApartmentNotFound
	}
	apartment, err := s.apartments.Get(ctx, &domain.Apartment{ID: id})
	if err != nil {
		return nil, err
	}
	if apartment == nil {
		return nil, domain.ErrApartmentNotFound
	}
	return apartment, nil
}

func (s *Service) CreateUnit(ctx context.Context, req domain.CreateUnitRequest) (*domain.Unit, error) {
	number := strings.TrimSpace(req.UnitNumber)
	if number == "" {
		return nil, domain.ErrInvalidUnitNumber
	}
	if !req.RentAmount.IsPositive() {
		return nil, domain.ErrInvalidRentAmount
	}
	if _, err := s.GetApartment(ctx, req.ApartmentID); err != nil {
		return nil, err
	}

	taken, err := s.units.Exists(ctx, &domain.Unit{ApartmentID: req.ApartmentID, UnitNumber: number})
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrDuplicateUnitNumber
	}

	now := s.clock.Now()
	unit := domain.Unit{
		ID:          s.genID.Generate(),
		ApartmentID: req.ApartmentID,
		UnitNumber:  number,
		RentAmount:  req.RentAmount,
		Status:      domain.UnitStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.units.Insert(ctx, &unit); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrDuplicateUnitNumber
		}
		return nil, err
	}
	return &unit, nil
}

func (s *Service) GetUnit(ctx context.Context, id snowflake.ID) (*domain.Unit, error) {
	if id == 0 {
		return nil, domain.ErrUnitNotFound
	}
	unit, err := s.units.Get(ctx, &domain.Unit{ID: id})
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, domain.ErrUnitNotFound
	}
	return unit, nil
}

func (s *Service) ListUnits(ctx context.Context, apartmentID snowflake.ID) ([]domain.Unit, error) {
	return s.units.List(ctx,
		&domain.Unit{ApartmentID: apartmentID},
		option.WithOrder("unit_number", "asc"),
	)
}

func (s *Service) LockUnitTx(ctx context.Context, tx *gorm.DB, unitID snowflake.ID) (*domain.Unit, error) {
	if unitID == 0 {
		return nil, domain.ErrUnitNotFound
	}
	var unit domain.Unit
	err := tx.WithContext(ctx).Raw(
		`SELECT id, apartment_id, unit_number, rent_amount, status, created_at, updated_at
		 FROM units WHERE id = ? FOR UPDATE`,
		unitID,
	).Scan(&unit).Error
	if err != nil {
		return nil, db.Wrap(err)
	}
	if unit.ID == 0 {
		return nil, domain.ErrUnitNotFound
	}
	return &unit, nil
}

func (s *Service) SetUnitStatusTx(ctx context.Context, tx *gorm.DB, unitID snowflake.ID, status domain.UnitStatus) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE units SET status = ?, updated_at = ? WHERE id = ?`,
		status,
		s.clock.Now(),
		unitID,
	)
	if res.Error != nil {
		return db.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrUnitNotFound
	}
	return nil
}
