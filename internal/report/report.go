// Package report summarizes billing, collections and expenses per month.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MonthSummary struct {
	Period        string      `json:"period"`
	TotalInvoices int         `json:"total_invoices"`
	Unpaid        int         `json:"unpaid"`
	PartiallyPaid int         `json:"partially_paid"`
	Overdue       int         `json:"overdue"`
	Paid          int         `json:"paid"`
	Billed        money.Money `json:"billed"`
	Outstanding   money.Money `json:"outstanding"`
	Collected     money.Money `json:"collected"`
	Expenses      money.Money `json:"total_expenses"`
	// NetIncome is Collected less Expenses and may be negative.
	NetIncome money.Money `json:"net_income"`
}

type MonthlyRequest struct {
	// ApartmentID restricts the report to one property when set.
	ApartmentID snowflake.ID
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	PropertySvc propertydomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	propertySvc propertydomain.Service
}

func New(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("report.service"),
		propertySvc: p.PropertySvc,
	}
}

var Module = fx.Module("report.service",
	fx.Provide(New),
)

type invoiceRow struct {
	BillingPeriod    string
	Status           invoicedomain.InvoiceStatus
	AmountDue        money.Money
	LateFee          money.Money
	RemainingBalance money.Money
}

type paymentRow struct {
	PaymentDate time.Time
	AmountPaid  money.Money
}

type expenseRow struct {
	ExpenseDate time.Time
	Amount      money.Money
}

// Monthly returns one summary per month that has invoices, payments or
// expenses, oldest month first.
func (s *Service) Monthly(ctx context.Context, req MonthlyRequest) ([]MonthSummary, error) {
	if req.ApartmentID != 0 {
		if _, err := s.propertySvc.GetApartment(ctx, req.ApartmentID); err != nil {
			return nil, err
		}
	}

	invoices, err := s.loadInvoices(ctx, req.ApartmentID)
	if err != nil {
		return nil, err
	}
	payments, err := s.loadPayments(ctx, req.ApartmentID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.loadExpenses(ctx, req.ApartmentID)
	if err != nil {
		return nil, err
	}

	byPeriod := lo.GroupBy(invoices, func(row invoiceRow) string { return row.BillingPeriod })
	collected := lo.GroupBy(payments, func(row paymentRow) string {
		return row.PaymentDate.UTC().Format(invoicedomain.BillingPeriodLayout)
	})
	spent := lo.GroupBy(expenses, func(row expenseRow) string {
		return row.ExpenseDate.UTC().Format(invoicedomain.BillingPeriodLayout)
	})

	periods := lo.Uniq(lo.Flatten([][]string{lo.Keys(byPeriod), lo.Keys(collected), lo.Keys(spent)}))
	sort.Strings(periods)

	summaries := make([]MonthSummary, 0, len(periods))
	for _, period := range periods {
		rows := byPeriod[period]
		countOf := func(status invoicedomain.InvoiceStatus) int {
			return lo.CountBy(rows, func(row invoiceRow) bool { return row.Status == status })
		}

		income := lo.SumBy(collected[period], func(row paymentRow) money.Money { return row.AmountPaid })
		outgoing := lo.SumBy(spent[period], func(row expenseRow) money.Money { return row.Amount })

		summaries = append(summaries, MonthSummary{
			Period:        period,
			TotalInvoices: len(rows),
			Unpaid:        countOf(invoicedomain.InvoiceStatusUnpaid),
			PartiallyPaid: countOf(invoicedomain.InvoiceStatusPartiallyPaid),
			Overdue:       countOf(invoicedomain.InvoiceStatusOverdue),
			Paid:          countOf(invoicedomain.InvoiceStatusPaid),
			Billed: lo.SumBy(rows, func(row invoiceRow) money.Money {
				return row.AmountDue.Add(row.LateFee)
			}),
			Outstanding: lo.SumBy(rows, func(row invoiceRow) money.Money {
				if !row.Status.Outstanding() {
					return money.Zero
				}
				return row.RemainingBalance
			}),
			Collected: income,
			Expenses:  outgoing,
			NetIncome: income.Sub(outgoing),
		})
	}
	return summaries, nil
}

func (s *Service) loadInvoices(ctx context.Context, apartmentID snowflake.ID) ([]invoiceRow, error) {
	var rows []invoiceRow
	stmt := s.db.WithContext(ctx).
		Table("invoices AS i").
		Select("i.billing_period, i.status, i.amount_due, i.late_fee, i.remaining_balance").
		Joins("JOIN tenants t ON t.id = i.tenant_id").
		Joins("JOIN units u ON u.id = t.unit_id")
	if apartmentID != 0 {
		stmt = stmt.Where("u.apartment_id = ?", apartmentID)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, db.Wrap(err)
	}
	return rows, nil
}

func (s *Service) loadPayments(ctx context.Context, apartmentID snowflake.ID) ([]paymentRow, error) {
	var rows []paymentRow
	stmt := s.db.WithContext(ctx).
		Table("payments AS p").
		Select("p.payment_date, p.amount_paid").
		Joins("JOIN tenants t ON t.id = p.tenant_id").
		Joins("JOIN units u ON u.id = t.unit_id")
	if apartmentID != 0 {
		stmt = stmt.Where("u.apartment_id = ?", apartmentID)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, db.Wrap(err)
	}
	return rows, nil
}

func (s *Service) loadExpenses(ctx context.Context, apartmentID snowflake.ID) ([]expenseRow, error) {
	var rows []expenseRow
	stmt := s.db.WithContext(ctx).
		Table("expenses AS e").
		Select("e.expense_date, e.amount")
	if apartmentID != 0 {
		stmt = stmt.Where("e.apartment_id = ?", apartmentID)
	}
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, db.Wrap(err)
	}
	return rows, nil
}
