// Package domain defines the tenant credit ledger: the non-negative balance
// of unapplied overpayment carried on each tenant row.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
	"gorm.io/gorm"
)

type Service interface {
	GetBalance(ctx context.Context, tenantID snowflake.ID) (money.Money, error)
	Credit(ctx context.Context, tenantID snowflake.ID, amount money.Money) (money.Money, error)
	Debit(ctx context.Context, tenantID snowflake.ID, amount money.Money) (money.Money, error)

	GetBalanceTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) (money.Money, error)
	CreditTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, amount money.Money) (money.Money, error)
	DebitTx(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, amount money.Money) (money.Money, error)
}

var (
	ErrTenantNotFound     = errors.New("tenant_not_found")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInsufficientCredit = errors.New("insufficient_credit")
)
