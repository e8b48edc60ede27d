package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentledger/internal/authorization"
	"github.com/smallbiznis/rentledger/internal/config"
	creditdomain "github.com/smallbiznis/rentledger/internal/credit/domain"
	expensedomain "github.com/smallbiznis/rentledger/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/notification"
	"github.com/smallbiznis/rentledger/internal/observability"
	obslogger "github.com/smallbiznis/rentledger/internal/observability/logger"
	obstracing "github.com/smallbiznis/rentledger/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/internal/report"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/settings"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// paymentNotifier sends the receipt once a payment has committed.
type paymentNotifier interface {
	PaymentRecorded(ctx context.Context, result *paymentdomain.RecordPaymentResult)
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	authzSvc    authorization.Service
	propertySvc propertydomain.Service
	tenantSvc   tenantdomain.Service
	invoiceSvc  invoicedomain.Service
	creditSvc   creditdomain.Service
	paymentSvc  paymentdomain.Service
	expenseSvc  expensedomain.Service
	settingsSvc *settings.Service
	reportSvc   *report.Service
	scheduler   *scheduler.Scheduler
	notifier    paymentNotifier
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	AuthzSvc    authorization.Service
	PropertySvc propertydomain.Service
	TenantSvc   tenantdomain.Service
	InvoiceSvc  invoicedomain.Service
	CreditSvc   creditdomain.Service
	PaymentSvc  paymentdomain.Service
	ExpenseSvc  expensedomain.Service
	SettingsSvc *settings.Service
	ReportSvc   *report.Service
	Scheduler   *scheduler.Scheduler
	Notifier    *notification.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		authzSvc:    p.AuthzSvc,
		propertySvc: p.PropertySvc,
		tenantSvc:   p.TenantSvc,
		invoiceSvc:  p.InvoiceSvc,
		creditSvc:   p.CreditSvc,
		paymentSvc:  p.PaymentSvc,
		expenseSvc:  p.ExpenseSvc,
		settingsSvc: p.SettingsSvc,
		reportSvc:   p.ReportSvc,
		scheduler:   p.Scheduler,
	}
	if p.Notifier != nil {
		svc.notifier = p.Notifier
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.APIKeyRequired())

	// -------- Property --------
	api.POST("/apartments", s.authorize(authorization.ObjectApartment, authorization.ActionCreate), s.CreateApartment)
	api.GET("/apartments/:id", s.authorize(authorization.ObjectApartment, authorization.ActionView), s.GetApartment)
	api.GET("/apartments/:id/units", s.authorize(authorization.ObjectUnit, authorization.ActionView), s.ListUnits)
	api.POST("/units", s.authorize(authorization.ObjectUnit, authorization.ActionCreate), s.CreateUnit)
	api.GET("/units/:id", s.authorize(authorization.ObjectUnit, authorization.ActionView), s.GetUnit)

	// -------- Tenants --------
	api.GET("/tenants", s.authorize(authorization.ObjectTenant, authorization.ActionView), s.ListTenants)
	api.POST("/tenants", s.authorize(authorization.ObjectTenant, authorization.ActionCreate), s.CreateTenant)
	api.GET("/tenants/:id", s.authorize(authorization.ObjectTenant, authorization.ActionView), s.GetTenant)
	api.POST("/tenants/:id/end-lease", s.authorize(authorization.ObjectTenant, authorization.ActionUpdate), s.EndLease)
	api.GET("/tenants/:id/credit", s.authorize(authorization.ObjectCredit, authorization.ActionView), s.GetCreditBalance)
	api.GET("/tenants/:id/invoices", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.ListTenantInvoices)
	api.GET("/tenants/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.ListTenantPayments)
	api.POST("/tenants/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionCreate), s.RecordPayment)

	// -------- Invoices & payments --------
	api.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionView), s.GetInvoice)
	api.GET("/payments/:id", s.authorize(authorization.ObjectPayment, authorization.ActionView), s.GetPayment)

	// -------- Expenses --------
	api.GET("/expense-categories", s.authorize(authorization.ObjectExpense, authorization.ActionView), s.ListExpenseCategories)
	api.POST("/expense-categories", s.authorize(authorization.ObjectExpense, authorization.ActionCreate), s.CreateExpenseCategory)
	api.GET("/expense-categories/:id/subcategories", s.authorize(authorization.ObjectExpense, authorization.ActionView), s.ListExpenseSubcategories)
	api.POST("/expense-categories/:id/subcategories", s.authorize(authorization.ObjectExpense, authorization.ActionCreate), s.CreateExpenseSubcategory)
	api.GET("/expenses", s.authorize(authorization.ObjectExpense, authorization.ActionView), s.ListExpenses)
	api.POST("/expenses", s.authorize(authorization.ObjectExpense, authorization.ActionCreate), s.RecordExpense)
	api.GET("/expenses/:id", s.authorize(authorization.ObjectExpense, authorization.ActionView), s.GetExpense)
	api.DELETE("/expenses/:id", s.authorize(authorization.ObjectExpense, authorization.ActionDelete), s.DeleteExpense)

	// -------- Jobs --------
	api.POST("/jobs/late-fees", s.authorize(authorization.ObjectJob, authorization.ActionJobLateFees), s.RunLateFees)
	api.POST("/jobs/generate-invoices", s.authorize(authorization.ObjectJob, authorization.ActionJobGenerateInvoices), s.RunGenerateInvoices)

	// -------- Reports & settings --------
	api.GET("/reports/monthly", s.authorize(authorization.ObjectReport, authorization.ActionView), s.MonthlyReport)
	api.GET("/settings/:key", s.authorize(authorization.ObjectSetting, authorization.ActionView), s.GetSetting)
	api.PUT("/settings/:key", s.authorize(authorization.ObjectSetting, authorization.ActionUpdate), s.UpdateSetting)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
