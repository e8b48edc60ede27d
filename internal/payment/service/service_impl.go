package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	creditdomain "github.com/smallbiznis/rentledger/internal/credit/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/payment/domain"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	TenantSvc  tenantdomain.Service
	InvoiceSvc invoicedomain.Service
	CreditSvc  creditdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	tenantSvc  tenantdomain.Service
	invoiceSvc invoicedomain.Service
	creditSvc  creditdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		tenantSvc:  p.TenantSvc,
		invoiceSvc: p.InvoiceSvc,
		creditSvc:  p.CreditSvc,
		metrics:    p.Metrics,
	}
}

// RecordPayment stores the payment, settles outstanding invoices oldest
// first and credits any leftover, all in one transaction.
func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (*domain.RecordPaymentResult, error) {
	if !req.Amount.IsPositive() || !req.Amount.InRange() {
		return nil, domain.ErrInvalidAmount
	}
	method, err := domain.ParseMethod(req.Method)
	if err != nil {
		return nil, err
	}
	if req.TenantID == 0 {
		return nil, domain.ErrInvalidTenant
	}

	paymentDate := clock.Today(s.clock)
	if !req.PaymentDate.IsZero() {
		paymentDate = clock.StartOfDay(req.PaymentDate)
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	var result domain.RecordPaymentResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenant, err := s.tenantSvc.LockTx(ctx, tx, req.TenantID)
		if err != nil {
			return err
		}

		seq, err := s.repo.NextSequenceValue(ctx, tx, domain.ReceiptSequenceName)
		if err != nil {
			return db.Wrap(err)
		}

		outstanding, err := s.invoiceSvc.OutstandingInvoices(ctx, tx, tenant.ID)
		if err != nil {
			return err
		}
		plan := domain.Allocate(req.Amount, outstanding)

		now := s.clock.Now()
		payment := domain.Payment{
			ID:             s.genID.Generate(),
			TenantID:       tenant.ID,
			AmountPaid:     req.Amount,
			PaymentDate:    paymentDate,
			Method:         method,
			ReceiptNumber:  domain.FormatReceiptNumber(seq),
			Status:         domain.StatusCompleted,
			Reference:      req.Reference,
			CreditedAmount: plan.Leftover,
			Metadata:       metadata,
			CreatedAt:      now,
		}
		if err := s.repo.InsertPayment(ctx, tx, &payment); err != nil {
			return db.Wrap(err)
		}

		allocations := make([]domain.PaymentAllocation, 0, len(plan.Allocations))
		invoices := make([]invoicedomain.Invoice, 0, len(plan.Allocations))
		for _, step := range plan.Allocations {
			updated, err := s.invoiceSvc.ApplyBalanceChange(ctx, tx, step.InvoiceID, step.BalanceAfter)
			if err != nil {
				return err
			}
			invoices = append(invoices, *updated)
			allocations = append(allocations, domain.PaymentAllocation{
				ID:            s.genID.Generate(),
				PaymentID:     payment.ID,
				InvoiceID:     step.InvoiceID,
				Amount:        step.Amount,
				BalanceBefore: step.BalanceBefore,
				BalanceAfter:  step.BalanceAfter,
				CreatedAt:     now,
			})
		}
		if err := s.repo.InsertAllocations(ctx, tx, allocations); err != nil {
			return db.Wrap(err)
		}

		balance := tenant.CreditBalance
		if plan.Leftover.IsPositive() {
			balance, err = s.creditSvc.CreditTx(ctx, tx, tenant.ID, plan.Leftover)
			if err != nil {
				return err
			}
		}

		result = domain.RecordPaymentResult{
			Payment:       payment,
			Allocations:   allocations,
			Invoices:      invoices,
			Credited:      plan.Leftover,
			CreditBalance: balance,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, creditdomain.ErrTenantNotFound) {
			err = tenantdomain.ErrNotFound
		}
		return nil, err
	}

	s.log.Info("payment.recorded",
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("tenant_id", result.Payment.TenantID.String()),
		zap.String("receipt_number", result.Payment.ReceiptNumber),
		zap.Stringer("amount", result.Payment.AmountPaid),
		zap.Int("invoices_settled", len(result.Allocations)),
		zap.Stringer("credited", result.Credited),
	)
	s.metrics.RecordPayment(ctx, string(method), result.Payment.AmountPaid.Minor(), result.Credited.Minor())

	return &result, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*domain.PaymentDetail, error) {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}

	allocations, err := s.repo.ListAllocations(ctx, s.db, payment.ID)
	if err != nil {
		return nil, db.Wrap(err)
	}
	return &domain.PaymentDetail{Payment: *payment, Allocations: allocations}, nil
}

func (s *Service) ListPayments(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	if _, err := s.tenantSvc.GetByID(ctx, req.TenantID); err != nil {
		return domain.ListPaymentResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.ListByTenant(ctx, s.db, req.TenantID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPageToken) {
			return domain.ListPaymentResponse{}, err
		}
		return domain.ListPaymentResponse{}, db.Wrap(err)
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(payment *domain.Payment) string {
		return payment.ID.String()
	})

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		payments = append(payments, *item)
	}
	return domain.ListPaymentResponse{Payments: payments, PageInfo: pageInfo}, nil
}
