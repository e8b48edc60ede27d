package ledgertest

import (
	creditdomain "github.com/smallbiznis/rentledger/internal/credit/domain"
	creditservice "github.com/smallbiznis/rentledger/internal/credit/service"
	expensedomain "github.com/smallbiznis/rentledger/internal/expense/domain"
	expenseservice "github.com/smallbiznis/rentledger/internal/expense/service"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/rentledger/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/rentledger/internal/invoice/service"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/rentledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/rentledger/internal/payment/service"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	propertyservice "github.com/smallbiznis/rentledger/internal/property/service"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	tenantrepo "github.com/smallbiznis/rentledger/internal/tenant/repository"
	tenantservice "github.com/smallbiznis/rentledger/internal/tenant/service"
	"go.uber.org/zap"
)

// Services is the ledger service graph wired against the fixture database.
type Services struct {
	Property propertydomain.Service
	Tenant   tenantdomain.Service
	Invoice  invoicedomain.Service
	Credit   creditdomain.Service
	Payment  paymentdomain.Service
	Expense  expensedomain.Service
}

func (f *Fixture) Services() Services {
	log := zap.NewNop()

	propertySvc := propertyservice.New(propertyservice.Params{DB: f.DB, Log: log, GenID: f.Node, Clock: f.Clock})
	tenantSvc := tenantservice.New(tenantservice.Params{
		DB:          f.DB,
		Log:         log,
		GenID:       f.Node,
		Clock:       f.Clock,
		Repo:        tenantrepo.Provide(),
		PropertySvc: propertySvc,
	})
	invoiceSvc := invoiceservice.NewService(invoiceservice.Params{
		DB:        f.DB,
		Log:       log,
		GenID:     f.Node,
		Clock:     f.Clock,
		Repo:      invoicerepo.Provide(),
		TenantSvc: tenantSvc,
	})
	creditSvc := creditservice.New(creditservice.Params{DB: f.DB, Log: log, Clock: f.Clock})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:         f.DB,
		Log:        log,
		GenID:      f.Node,
		Clock:      f.Clock,
		Repo:       paymentrepo.Provide(),
		TenantSvc:  tenantSvc,
		InvoiceSvc: invoiceSvc,
		CreditSvc:  creditSvc,
	})

	expenseSvc := expenseservice.New(expenseservice.Params{
		DB:          f.DB,
		Log:         log,
		GenID:       f.Node,
		Clock:       f.Clock,
		PropertySvc: propertySvc,
	})

	return Services{
		Property: propertySvc,
		Tenant:   tenantSvc,
		Invoice:  invoiceSvc,
		Credit:   creditSvc,
		Payment:  paymentSvc,
		Expense:  expenseSvc,
	}
}
