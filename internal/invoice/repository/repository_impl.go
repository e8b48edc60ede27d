package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const invoiceColumns = `id, tenant_id, billing_period, invoice_date, due_date, amount_due,
	late_fee, remaining_balance, credit_applied, status, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (`+invoiceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.TenantID,
		invoice.BillingPeriod,
		invoice.InvoiceDate,
		invoice.DueDate,
		invoice.AmountDue,
		invoice.LateFee,
		invoice.RemainingBalance,
		invoice.CreditApplied,
		invoice.Status,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	return r.findOne(ctx, db, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ? FOR UPDATE`, id)
}

func (r *repo) FindByTenantPeriod(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, period string) (*domain.Invoice, error) {
	return r.findOne(ctx, db,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = ? AND billing_period = ?`,
		tenantID, period,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).Raw(query, args...).Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListOutstanding(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, forUpdate bool) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		 FROM invoices
		 WHERE tenant_id = ? AND status IN ?
		 ORDER BY invoice_date ASC, id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var invoices []*domain.Invoice
	err := db.WithContext(ctx).Raw(query, tenantID, domain.OutstandingStatuses).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListPastDue(ctx context.Context, db *gorm.DB, today time.Time) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE status IN ? AND status <> ? AND due_date < ?
		 ORDER BY due_date ASC, id ASC`,
		domain.OutstandingStatuses,
		domain.InvoiceStatusOverdue,
		today,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListOverdueWithoutFee(ctx context.Context, db *gorm.DB) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	err := db.WithContext(ctx).Raw(
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE status = ? AND late_fee = 0
		 ORDER BY due_date ASC, id ASC`,
		domain.InvoiceStatusOverdue,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.TenantID != 0 {
		stmt = stmt.Where("tenant_id = ?", filter.TenantID)
	}
	if len(filter.Statuses) > 0 {
		stmt = stmt.Where("status IN ?", filter.Statuses)
	}
	if filter.From != nil {
		stmt = stmt.Where("invoice_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("invoice_date <= ?", *filter.To)
	}
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

	err := stmt.Order("id desc").Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// UpdateBalance writes the mutable ledger fields of an invoice.
func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices
		 SET late_fee = ?, remaining_balance = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		invoice.LateFee,
		invoice.RemainingBalance,
		invoice.Status,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}
