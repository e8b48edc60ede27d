package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	InsertAllocations(ctx context.Context, db *gorm.DB, allocations []PaymentAllocation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByTenant(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*Payment, error)
	ListAllocations(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) ([]PaymentAllocation, error)
	// NextSequenceValue increments the named counter under row lock and
	// returns the new value.
	NextSequenceValue(ctx context.Context, db *gorm.DB, name string) (int64, error)
}
