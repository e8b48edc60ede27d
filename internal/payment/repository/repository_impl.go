package repository

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const paymentColumns = `id, tenant_id, amount_paid, payment_date, method, receipt_number,
	status, reference, credited_amount, metadata, created_at`

func (r *repo) InsertPayment(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO payments (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.TenantID,
		payment.AmountPaid,
		payment.PaymentDate,
		payment.Method,
		payment.ReceiptNumber,
		payment.Status,
		payment.Reference,
		payment.CreditedAmount,
		payment.Metadata,
		payment.CreatedAt,
	).Error
}

func (r *repo) InsertAllocations(ctx context.Context, conn *gorm.DB, allocations []domain.PaymentAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&allocations).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var payment domain.Payment
	err := conn.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`,
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (r *repo) ListByTenant(ctx context.Context, conn *gorm.DB, tenantID snowflake.ID, page pagination.Pagination) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	stmt := conn.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("tenant_id = ?", tenantID)
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		cursorID, err := strconv.ParseInt(cursor.ID, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("id < ?", cursorID)
	}
	if page.PageSize > 0 {
		stmt = stmt.Limit(page.PageSize + 1)
	}

	err := stmt.Order("id desc").Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) ListAllocations(ctx context.Context, conn *gorm.DB, paymentID snowflake.ID) ([]domain.PaymentAllocation, error) {
	var allocations []domain.PaymentAllocation
	err := conn.WithContext(ctx).Raw(
		`SELECT id, payment_id, invoice_id, amount, balance_before, balance_after, created_at
		 FROM payment_allocations
		 WHERE payment_id = ?
		 ORDER BY id ASC`,
		paymentID,
	).Scan(&allocations).Error
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// NextSequenceValue bumps the counter with a single UPDATE. The row lock it
// takes is held until the surrounding transaction ends, so concurrent
// payments get distinct values and a rolled back payment gives its value back.
func (r *repo) NextSequenceValue(ctx context.Context, conn *gorm.DB, name string) (int64, error) {
	err := conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ReceiptSequence{Name: name}).Error
	if err != nil {
		return 0, err
	}

	res := conn.WithContext(ctx).Exec(
		`UPDATE receipt_sequences SET last_value = last_value + 1 WHERE name = ?`,
		name,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	var seq domain.ReceiptSequence
	err = conn.WithContext(ctx).Raw(
		`SELECT name, last_value FROM receipt_sequences WHERE name = ?`,
		name,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}
