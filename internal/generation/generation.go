// Package generation creates the monthly rent invoice for every active
// tenant, consuming tenant credit before billing.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/config"
	creditdomain "github.com/smallbiznis/rentledger/internal/credit/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Result struct {
	Period   string                  `json:"period"`
	Created  int                     `json:"created"`
	Skipped  int                     `json:"skipped"`
	Failed   int                     `json:"failed"`
	Invoices []invoicedomain.Invoice `json:"invoices"`
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	TenantSvc  tenantdomain.Service
	InvoiceSvc invoicedomain.Service
	CreditSvc  creditdomain.Service
	Billing    *config.BillingConfigHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	tenantSvc  tenantdomain.Service
	invoiceSvc invoicedomain.Service
	creditSvc  creditdomain.Service
	billing    *config.BillingConfigHolder
	metrics    *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("generation.service"),
		clock:      p.Clock,
		tenantSvc:  p.TenantSvc,
		invoiceSvc: p.InvoiceSvc,
		creditSvc:  p.CreditSvc,
		billing:    p.Billing,
		metrics:    p.Metrics,
	}
}

var Module = fx.Module("generation.service",
	fx.Provide(New),
)

type billableTenant struct {
	ID         snowflake.ID
	RentAmount money.Money
}

var errAlreadyInvoiced = errors.New("already_invoiced")

// GenerateMonthly bills the current month of the clock. Tenants that already
// have an invoice for the period are skipped, so reruns are harmless.
func (s *Service) GenerateMonthly(ctx context.Context) (Result, error) {
	today := clock.Today(s.clock)
	period := today.Format(invoicedomain.BillingPeriodLayout)
	dueDate := today.AddDate(0, 0, s.dueDays())

	tenants, err := s.listBillable(ctx, today)
	if err != nil {
		return Result{}, err
	}

	result := Result{Period: period}
	for _, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		invoice, err := s.generateForTenant(ctx, tenant, period, today, dueDate)
		switch {
		case err == nil:
			result.Created++
			result.Invoices = append(result.Invoices, *invoice)
			s.metrics.RecordInvoiceGenerated(ctx, "created")
		case errors.Is(err, errAlreadyInvoiced), errors.Is(err, invoicedomain.ErrDuplicatePeriod):
			result.Skipped++
			s.metrics.RecordInvoiceGenerated(ctx, "skipped")
		default:
			s.log.Error("generation.tenant.failed",
				zap.String("tenant_id", tenant.ID.String()),
				zap.String("period", period),
				zap.Error(err),
			)
			result.Failed++
			s.metrics.RecordInvoiceGenerated(ctx, "failed")
		}
	}

	s.log.Info("generation.run.completed",
		zap.String("period", period),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) generateForTenant(ctx context.Context, tenant billableTenant, period string, today, dueDate time.Time) (*invoicedomain.Invoice, error) {
	var created *invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.tenantSvc.LockTx(ctx, tx, tenant.ID); err != nil {
			return err
		}

		_, err := s.invoiceSvc.InvoiceForPeriod(ctx, tx, tenant.ID, period)
		if err == nil {
			return errAlreadyInvoiced
		}
		if !errors.Is(err, invoicedomain.ErrNotFound) {
			return err
		}

		consumed, err := s.consumeCredit(ctx, tx, tenant)
		if err != nil {
			return err
		}

		created, err = s.invoiceSvc.CreateInvoiceTx(ctx, tx, invoicedomain.CreateInvoiceRequest{
			TenantID:      tenant.ID,
			BillingPeriod: period,
			InvoiceDate:   today,
			DueDate:       dueDate,
			AmountDue:     tenant.RentAmount.Sub(consumed),
			CreditApplied: consumed,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("generation.invoice.created",
		zap.String("invoice_id", created.ID.String()),
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("period", period),
		zap.Stringer("amount_due", created.AmountDue),
		zap.Stringer("credit_applied", created.CreditApplied),
	)
	return created, nil
}

// consumeCredit debits min(rent, credit). A balance that shrank between the
// read and the debit is re-read and the debit capped to what is left.
func (s *Service) consumeCredit(ctx context.Context, tx *gorm.DB, tenant billableTenant) (money.Money, error) {
	for attempt := 0; attempt < 2; attempt++ {
		balance, err := s.creditSvc.GetBalanceTx(ctx, tx, tenant.ID)
		if err != nil {
			return money.Zero, err
		}
		consumed := money.Min(tenant.RentAmount, balance)
		if !consumed.IsPositive() {
			return money.Zero, nil
		}

		_, err = s.creditSvc.DebitTx(ctx, tx, tenant.ID, consumed)
		if errors.Is(err, creditdomain.ErrInsufficientCredit) {
			continue
		}
		if err != nil {
			return money.Zero, err
		}
		return consumed, nil
	}
	return money.Zero, nil
}

func (s *Service) listBillable(ctx context.Context, today time.Time) ([]billableTenant, error) {
	var rows []billableTenant
	err := s.db.WithContext(ctx).Raw(
		`SELECT t.id, u.rent_amount
		 FROM tenants t
		 JOIN units u ON u.id = t.unit_id
		 WHERE t.lease_end_date IS NULL OR t.lease_end_date > ?
		 ORDER BY t.id ASC`,
		today,
	).Scan(&rows).Error
	if err != nil {
		return nil, db.Wrap(err)
	}
	return rows, nil
}

func (s *Service) dueDays() int {
	if s.billing == nil {
		return config.DefaultDueDays
	}
	if days := s.billing.Get().DueDays; days > 0 {
		return days
	}
	return config.DefaultDueDays
}
