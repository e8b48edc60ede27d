package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/invoice/domain"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	TenantSvc tenantdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	tenantSvc tenantdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invoice.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		tenantSvc: p.TenantSvc,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if _, err := s.tenantSvc.GetByID(ctx, req.TenantID); err != nil {
		return nil, err
	}
	return s.CreateInvoiceTx(ctx, s.db, req)
}

func (s *Service) CreateInvoiceTx(ctx context.Context, tx *gorm.DB, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}
	if req.AmountDue.IsNegative() || req.CreditApplied.IsNegative() {
		return nil, domain.ErrInvalidAmount
	}
	if _, err := time.Parse(domain.BillingPeriodLayout, req.BillingPeriod); err != nil {
		return nil, domain.ErrInvalidPeriod
	}
	invoiceDate := clock.StartOfDay(req.InvoiceDate)
	dueDate := clock.StartOfDay(req.DueDate)
	if req.InvoiceDate.IsZero() || dueDate.Before(invoiceDate) {
		return nil, domain.ErrInvalidDates
	}

	now := s.clock.Now()
	invoice := domain.Invoice{
		ID:               s.genID.Generate(),
		TenantID:         req.TenantID,
		BillingPeriod:    req.BillingPeriod,
		InvoiceDate:      invoiceDate,
		DueDate:          dueDate,
		AmountDue:        req.AmountDue,
		LateFee:          money.Zero,
		RemainingBalance: req.AmountDue,
		CreditApplied:    req.CreditApplied,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	invoice.Status = invoice.StatusOn(clock.StartOfDay(now))

	if err := s.repo.Insert(ctx, tx, &invoice); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicatePeriod
		}
		return nil, db.Wrap(err)
	}
	return &invoice, nil
}

func (s *Service) GetInvoice(ctx context.Context, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) InvoiceForPeriod(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID, period string) (*domain.Invoice, error) {
	conn := tx
	if conn == nil {
		conn = s.db
	}
	invoice, err := s.repo.FindByTenantPeriod(ctx, conn, tenantID, period)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	for _, status := range req.Statuses {
		if !status.Valid() {
			return domain.ListInvoiceResponse{}, domain.ErrInvalidStatus
		}
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return domain.ListInvoiceResponse{}, domain.ErrInvalidDateFilter
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, domain.ListInvoiceFilter{
		TenantID: req.TenantID,
		Statuses: req.Statuses,
		From:     req.From,
		To:       req.To,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPageToken) {
			return domain.ListInvoiceResponse{}, err
		}
		return domain.ListInvoiceResponse{}, db.Wrap(err)
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(invoice *domain.Invoice) string {
		return invoice.ID.String()
	})

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{Invoices: invoices, PageInfo: pageInfo}, nil
}

func (s *Service) OutstandingInvoices(ctx context.Context, tx *gorm.DB, tenantID snowflake.ID) ([]domain.Invoice, error) {
	conn, forUpdate := tx, true
	if conn == nil {
		conn, forUpdate = s.db, false
	}

	items, err := s.repo.ListOutstanding(ctx, conn, tenantID, forUpdate)
	if err != nil {
		return nil, db.Wrap(err)
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

// ApplyBalanceChange re-reads the invoice under row lock so a concurrent
// late fee and payment never write from stale balances.
func (s *Service) ApplyBalanceChange(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID, newRemaining money.Money) (*domain.Invoice, error) {
	if tx == nil {
		var result *domain.Invoice
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = s.ApplyBalanceChange(ctx, tx, invoiceID, newRemaining)
			return err
		})
		return result, err
	}

	invoice, err := s.lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return nil, err
	}

	if newRemaining.IsNegative() {
		newRemaining = money.Zero
	}
	if newRemaining.Cmp(invoice.Total()) > 0 {
		return nil, domain.ErrInvalidBalance
	}

	invoice.RemainingBalance = newRemaining
	invoice.Status = invoice.StatusOn(clock.Today(s.clock))
	invoice.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateBalance(ctx, tx, invoice); err != nil {
		return nil, db.Wrap(err)
	}
	return invoice, nil
}

func (s *Service) RefreshOverdue(ctx context.Context) (int, []error, error) {
	today := clock.Today(s.clock)
	candidates, err := s.repo.ListPastDue(ctx, s.db, today)
	if err != nil {
		return 0, nil, db.Wrap(err)
	}

	promoted := 0
	var itemErrs []error
	for _, candidate := range candidates {
		changed := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invoice, err := s.lockInvoice(ctx, tx, candidate.ID)
			if err != nil {
				return err
			}
			status := invoice.StatusOn(today)
			if status == invoice.Status {
				return nil
			}
			invoice.Status = status
			invoice.UpdatedAt = s.clock.Now()
			changed = true
			return db.Wrap(s.repo.UpdateBalance(ctx, tx, invoice))
		})
		if err != nil {
			s.log.Error("invoice.status.refresh_failed",
				zap.String("invoice_id", candidate.ID.String()),
				zap.Error(err),
			)
			itemErrs = append(itemErrs, err)
			continue
		}
		if changed {
			promoted++
		}
	}
	return promoted, itemErrs, nil
}

func (s *Service) ListOverdueWithoutFee(ctx context.Context) ([]domain.Invoice, error) {
	items, err := s.repo.ListOverdueWithoutFee(ctx, s.db)
	if err != nil {
		return nil, db.Wrap(err)
	}
	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoices, nil
}

func (s *Service) ApplyLateFee(ctx context.Context, invoiceID snowflake.ID, fee money.Money) (*domain.Invoice, bool, error) {
	if !fee.IsPositive() {
		return nil, false, domain.ErrInvalidAmount
	}

	var (
		result  *domain.Invoice
		applied bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.lockInvoice(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		result = invoice
		// a concurrent run or payment may have changed the row since it was listed
		if !invoice.LateFee.IsZero() || invoice.Status != domain.InvoiceStatusOverdue {
			return nil
		}

		invoice.LateFee = fee
		invoice.RemainingBalance = invoice.RemainingBalance.Add(fee)
		invoice.Status = invoice.StatusOn(clock.Today(s.clock))
		invoice.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateBalance(ctx, tx, invoice); err != nil {
			return db.Wrap(err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

func (s *Service) lockInvoice(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	invoice, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}
