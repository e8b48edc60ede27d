// Package latefee applies the fixed late fee to overdue invoices once.
package latefee

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentledger/internal/config"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidAmount = errors.New("invalid_late_fee")

type Result struct {
	Promoted    int                     `json:"promoted"`
	FeesApplied int                     `json:"fees_applied"`
	Failed      int                     `json:"failed"`
	Applied     []invoicedomain.Invoice `json:"applied"`
}

type Params struct {
	fx.In

	Log        *zap.Logger
	InvoiceSvc invoicedomain.Service
	Settings   *settings.Service
	Billing    *config.BillingConfigHolder
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	invoiceSvc invoicedomain.Service
	settings   *settings.Service
	billing    *config.BillingConfigHolder
	metrics    *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:        p.Log.Named("latefee.service"),
		invoiceSvc: p.InvoiceSvc,
		settings:   p.Settings,
		billing:    p.Billing,
		metrics:    p.Metrics,
	}
}

var Module = fx.Module("latefee.service",
	fx.Provide(New),
)

// Fee resolves the late fee: the settings override first, then billing config.
func (s *Service) Fee(ctx context.Context) (money.Money, error) {
	if s.settings != nil {
		fee, ok, err := s.settings.LateFee(ctx)
		if err != nil {
			return money.Zero, err
		}
		if ok {
			return fee, nil
		}
	}
	if s.billing != nil {
		return s.billing.Get().LateFee(), nil
	}
	return money.MustParse(config.DefaultLateFeeFixed), nil
}

// Run promotes past-due invoices to overdue, then charges the fee on every
// overdue invoice that does not carry one yet.
func (s *Service) Run(ctx context.Context) (Result, error) {
	fee, err := s.Fee(ctx)
	if err != nil {
		return Result{}, err
	}
	if !fee.IsPositive() {
		return Result{}, ErrInvalidAmount
	}

	var result Result
	promoted, refreshErrs, err := s.invoiceSvc.RefreshOverdue(ctx)
	if err != nil {
		return result, err
	}
	result.Promoted = promoted
	result.Failed += len(refreshErrs)

	candidates, err := s.invoiceSvc.ListOverdueWithoutFee(ctx)
	if err != nil {
		return result, err
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		invoice, applied, err := s.invoiceSvc.ApplyLateFee(ctx, candidate.ID, fee)
		if err != nil {
			s.log.Error("latefee.apply.failed",
				zap.String("invoice_id", candidate.ID.String()),
				zap.String("tenant_id", candidate.TenantID.String()),
				zap.Error(err),
			)
			s.metrics.RecordLateFee(ctx, "failed")
			result.Failed++
			continue
		}
		if !applied {
			s.metrics.RecordLateFee(ctx, "skipped")
			continue
		}

		s.log.Info("latefee.applied",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("tenant_id", invoice.TenantID.String()),
			zap.Stringer("fee", fee),
		)
		s.metrics.RecordLateFee(ctx, "applied")
		result.FeesApplied++
		result.Applied = append(result.Applied, *invoice)
	}

	s.log.Info("latefee.run.completed",
		zap.Int("promoted", result.Promoted),
		zap.Int("fees_applied", result.FeesApplied),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
