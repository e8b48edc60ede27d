package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/credit/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("credit.service"),
		clock: p.Clock,
	}
}

type balanceRow struct {
	ID            snowflake.ID
	CreditBalance money.Money
}

func (s *Service) GetBalance(ctx context.Context, tenantID snowflake.ID) (money.Money, error) {
	row, err := s.loadBalance(ctx, s.db, tenantID, false)
	if err != nil {
		return money.Zero, err
	}
	return row.CreditBalance, nil
}

func (s *Service) GetBalanceTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (money.Money, error) {
	row, err := s.loadBalance(ctx, tx, tenantID, true)
	if err != nil {
		return money.Zero, err
	}
	return row.CreditBalance, nil
}

func (s *Service) Credit(ctx context.Context, tenantID snowflake.ID, amount money.Money) (money.Money, error) {
	var balance money.Money
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.CreditTx(ctx, tx, tenantID, amount)
		return err
	})
	return balance, err
}

func (s *Service) Debit(ctx context.Context, tenantID snowflake.ID, amount money.Money) (money.Money, error) {
	var balance money.Money
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = s.DebitTx(ctx, tx, tenantID, amount)
		return err
	})
	return balance, err
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, amount money.Money) (money.Money, error) {
	if !amount.IsPositive() {
		return money.Zero, domain.ErrInvalidAmount
	}

	row, err := s.loadBalance(ctx, tx, tenantID, true)
	if err != nil {
		return money.Zero, err
	}
	balance, err := row.CreditBalance.AddChecked(amount)
	if err != nil || !balance.InRange() {
		return row.CreditBalance, domain.ErrInvalidAmount
	}

	err = tx.WithContext(ctx).Exec(
		`UPDATE tenants SET credit_balance = credit_balance + ?, updated_at = ? WHERE id = ?`,
		amount,
		s.clock.Now(),
		tenantID,
	).Error
	if err != nil {
		return money.Zero, db.Wrap(err)
	}

	s.log.Info("credit.credited",
		zap.String("tenant_id", tenantID.String()),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance),
	)
	return balance, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, amount money.Money) (money.Money, error) {
	if !amount.IsPositive() {
		return money.Zero, domain.ErrInvalidAmount
	}

	row, err := s.loadBalance(ctx, tx, tenantID, true)
	if err != nil {
		return money.Zero, err
	}
	if amount.Cmp(row.CreditBalance) > 0 {
		return row.CreditBalance, domain.ErrInsufficientCredit
	}

	// the guard keeps the balance non-negative even without row locks
	res := tx.WithContext(ctx).Exec(
		`UPDATE tenants SET credit_balance = credit_balance - ?, updated_at = ?
		 WHERE id = ? AND credit_balance >= ?`,
		amount,
		s.clock.Now(),
		tenantID,
		amount,
	)
	if res.Error != nil {
		return money.Zero, db.Wrap(res.Error)
	}
	if res.RowsAffected == 0 {
		return row.CreditBalance, domain.ErrInsufficientCredit
	}

	balance := row.CreditBalance.Sub(amount)
	s.log.Info("credit.debited",
		zap.String("tenant_id", tenantID.String()),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance),
	)
	return balance, nil
}

func (s *Service) loadBalance(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, forUpdate bool) (*balanceRow, error) {
	query := `SELECT id, credit_balance FROM tenants WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row balanceRow
	if err := conn.WithContext(ctx).Raw(query, tenantID).Scan(&row).Error; err != nil {
		return nil, db.Wrap(err)
	}
	if row.ID == 0 {
		return nil, domain.ErrTenantNotFound
	}
	return &row, nil
}
