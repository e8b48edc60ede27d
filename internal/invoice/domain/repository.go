package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByTenantPeriod(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*Invoice, error)
	// ListOutstanding orders by invoice_date then id, oldest debt first.
	ListOutstanding(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, forUpdate bool) ([]*Invoice, error)
	ListPastDue(ctx context.Context, db *gorm.DB, today time.Time) ([]*Invoice, error)
	ListOverdueWithoutFee(ctx context.Context, db *gorm.DB) ([]*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, invoice *Invoice) error
}
