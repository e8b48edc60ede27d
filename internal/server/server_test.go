package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/authorization"
	"github.com/smallbiznis/rentledger/internal/config"
	"github.com/smallbiznis/rentledger/internal/generation"
	"github.com/smallbiznis/rentledger/internal/latefee"
	"github.com/smallbiznis/rentledger/internal/ledgertest"
	"github.com/smallbiznis/rentledger/internal/observability"
	"github.com/smallbiznis/rentledger/internal/report"
	"github.com/smallbiznis/rentledger/internal/scheduler"
	"github.com/smallbiznis/rentledger/internal/server"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	adminKey    = "admin-key"
	operatorKey = "operator-key"
	viewerKey   = "viewer-key"
)

type harness struct {
	*ledgertest.Fixture
	engine *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := ledgertest.New(t, ledgertest.Date(2024, time.March, 1))
	log := zap.NewNop()
	svcs := f.Services()
	billing := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	enforcer, err := authorization.NewEnforcer(f.DB)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})

	settingsSvc := settings.New(settings.Params{DB: f.DB, Log: log, Clock: f.Clock})
	lateFees := latefee.New(latefee.Params{
		Log:        log,
		InvoiceSvc: svcs.Invoice,
		Settings:   settingsSvc,
		Billing:    billing,
	})
	gen := generation.New(generation.Params{
		DB:         f.DB,
		Log:        log,
		Clock:      f.Clock,
		TenantSvc:  svcs.Tenant,
		InvoiceSvc: svcs.Invoice,
		CreditSvc:  svcs.Credit,
		Billing:    billing,
	})
	sched, err := scheduler.New(scheduler.Params{
		Log:        log,
		GenID:      f.Node,
		Clock:      f.Clock,
		LateFees:   lateFees,
		Generation: gen,
	})
	require.NoError(t, err)

	engine := server.NewEngine(observability.Config{})
	server.NewServer(server.ServerParams{
		Gin: engine,
		Cfg: config.Config{APIKeys: map[string]string{
			adminKey:    authorization.RoleAdmin,
			operatorKey: authorization.RoleOperator,
			viewerKey:   authorization.RoleViewer,
		}},
		Log:         log,
		AuthzSvc:    authzSvc,
		PropertySvc: svcs.Property,
		TenantSvc:   svcs.Tenant,
		InvoiceSvc:  svcs.Invoice,
		CreditSvc:   svcs.Credit,
		PaymentSvc:  svcs.Payment,
		ExpenseSvc:  svcs.Expense,
		SettingsSvc: settingsSvc,
		ReportSvc:   report.New(report.Params{DB: f.DB, Log: log, PropertySvc: svcs.Property}),
		Scheduler:   sched,
	})

	return &harness{Fixture: f, engine: engine}
}

type response struct {
	Code int
	Body map[string]any
}

func (h *harness) do(t *testing.T, method, path, key string, body any) response {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(server.HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	resp := response{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp.Body), rec.Body.String())
	}
	return resp
}

func (r response) data(t *testing.T) map[string]any {
	t.Helper()
	data, ok := r.Body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", r.Body)
	return data
}

func (r response) list(t *testing.T) []any {
	t.Helper()
	items, ok := r.Body["data"].([]any)
	require.True(t, ok, "data is not a list: %v", r.Body)
	return items
}

func (r response) errorType() string {
	payload, _ := r.Body["error"].(map[string]any)
	value, _ := payload["type"].(string)
	return value
}

func (r response) errorCode() string {
	payload, _ := r.Body["error"].(map[string]any)
	errs, _ := payload["errors"].([]any)
	if len(errs) == 0 {
		return ""
	}
	first, _ := errs[0].(map[string]any)
	value, _ := first["code"].(string)
	return value
}

func TestHealthIsPublic(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body["status"])
}

func TestAPIKeyRequired(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/api/tenants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "unauthorized", resp.errorType())

	resp = h.do(t, http.MethodGet, "/api/tenants", "not-a-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestViewerCannotWrite(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/api/apartments", viewerKey, map[string]any{
		"name":          "Sunrise Court",
		"mpesa_paybill": "400200",
	})
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "forbidden", resp.errorType())

	resp = h.do(t, http.MethodPost, "/api/jobs/late-fees", operatorKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestBillingFlow(t *testing.T) {
	h := newHarness(t)

	apartment := h.do(t, http.MethodPost, "/api/apartments", operatorKey, map[string]any{
		"name":          "Sunrise Court",
		"payment_mode":  "paybill",
		"mpesa_paybill": "400200",
	})
	require.Equal(t, http.StatusCreated, apartment.Code, apartment.Body)
	apartmentID := apartment.data(t)["id"].(string)

	unit := h.do(t, http.MethodPost, "/api/units", operatorKey, map[string]any{
		"apartment_id": apartmentID,
		"unit_number":  "A1",
		"rent_amount":  "12000.00",
	})
	require.Equal(t, http.StatusCreated, unit.Code, unit.Body)
	unitID := unit.data(t)["id"].(string)

	tenant := h.do(t, http.MethodPost, "/api/tenants", operatorKey, map[string]any{
		"unit_id":          unitID,
		"full_name":        "Jane Wanjiku",
		"phone":            "+254700000000",
		"lease_start_date": "2024-02-01",
	})
	require.Equal(t, http.StatusCreated, tenant.Code, tenant.Body)
	tenantID := tenant.data(t)["id"].(string)

	generated := h.do(t, http.MethodPost, "/api/jobs/generate-invoices", adminKey, nil)
	require.Equal(t, http.StatusOK, generated.Code, generated.Body)
	assert.Equal(t, "2024-03", generated.data(t)["period"])
	assert.EqualValues(t, 1, generated.data(t)["created"])

	invoices := h.do(t, http.MethodGet, "/api/tenants/"+tenantID+"/invoices?status=unpaid", viewerKey, nil)
	require.Equal(t, http.StatusOK, invoices.Code, invoices.Body)
	items := invoices.list(t)
	require.Len(t, items, 1)
	invoice := items[0].(map[string]any)
	assert.Equal(t, "12000.00", invoice["remaining_balance"])

	paid := h.do(t, http.MethodPost, "/api/tenants/"+tenantID+"/payments", operatorKey, map[string]any{
		"amount":    "15000.00",
		"method":    "mpesa",
		"reference": "QK12ABC",
	})
	require.Equal(t, http.StatusCreated, paid.Code, paid.Body)
	result := paid.data(t)
	assert.Equal(t, "3000.00", result["credited"])
	assert.Equal(t, "3000.00", result["credit_balance"])
	assert.Equal(t, "N001", result["payment"].(map[string]any)["receipt_number"])

	settled := h.do(t, http.MethodGet, "/api/invoices/"+invoice["id"].(string), viewerKey, nil)
	require.Equal(t, http.StatusOK, settled.Code)
	assert.Equal(t, "paid", settled.data(t)["status"])
	assert.Equal(t, "0.00", settled.data(t)["remaining_balance"])

	credit := h.do(t, http.MethodGet, "/api/tenants/"+tenantID+"/credit", viewerKey, nil)
	require.Equal(t, http.StatusOK, credit.Code)
	assert.Equal(t, "3000.00", credit.data(t)["credit_balance"])

	payments := h.do(t, http.MethodGet, "/api/tenants/"+tenantID+"/payments", viewerKey, nil)
	require.Equal(t, http.StatusOK, payments.Code)
	assert.Len(t, payments.list(t), 1)

	months := h.do(t, http.MethodGet, "/api/reports/monthly?apartment_id="+apartmentID, viewerKey, nil)
	require.Equal(t, http.StatusOK, months.Code, months.Body)
	summaries := months.list(t)
	require.NotEmpty(t, summaries)
	assert.Equal(t, "2024-03", summaries[0].(map[string]any)["period"])
}

func TestRecordPaymentErrors(t *testing.T) {
	h := newHarness(t)
	tenant := h.SeedRentedTenant(money.New(12000))

	resp := h.do(t, http.MethodPost, "/api/tenants/"+tenant.ID.String()+"/payments", operatorKey, map[string]any{
		"amount": "0",
		"method": "cash",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_amount", resp.errorCode())

	resp = h.do(t, http.MethodPost, "/api/tenants/"+tenant.ID.String()+"/payments", operatorKey, map[string]any{
		"amount": "100.00",
		"method": "cheque",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_payment_method", resp.errorCode())

	resp = h.do(t, http.MethodPost, "/api/tenants/"+h.Node.Generate().String()+"/payments", operatorKey, map[string]any{
		"amount": "100.00",
		"method": "cash",
	})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", resp.errorType())

	resp = h.do(t, http.MethodGet, "/api/tenants/abc/payments", viewerKey, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_id", resp.errorCode())
}

func TestLateFeeJobUsesSettingOverride(t *testing.T) {
	h := newHarness(t)
	tenant := h.SeedRentedTenant(money.New(12000))
	invoice := h.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2024, time.February, 1),
		DueDate:     ledgertest.Date(2024, time.February, 8),
		AmountDue:   money.New(12000),
	})

	resp := h.do(t, http.MethodPut, "/api/settings/late_fee_fixed", adminKey, map[string]any{"value": "-5"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_setting_value", resp.errorCode())

	resp = h.do(t, http.MethodPut, "/api/settings/late_fee_fixed", adminKey, map[string]any{"value": "2000.00"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body)

	resp = h.do(t, http.MethodGet, "/api/settings/late_fee_fixed", viewerKey, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body)
	assert.Equal(t, "2000.00", resp.data(t)["value"])

	resp = h.do(t, http.MethodPost, "/api/jobs/late-fees", adminKey, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body)
	assert.EqualValues(t, 1, resp.data(t)["fees_applied"])

	reloaded := h.ReloadInvoice(invoice.ID)
	assert.Equal(t, money.New(2000), reloaded.LateFee)
	assert.Equal(t, money.New(14000), reloaded.RemainingBalance)

	resp = h.do(t, http.MethodPost, "/api/jobs/late-fees", adminKey, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 0, resp.data(t)["fees_applied"])
}

func TestDuplicateUnitIsConflict(t *testing.T) {
	h := newHarness(t)
	apartment := h.SeedApartment("Sunrise Court")
	h.SeedUnit(apartment.ID, "A1", money.New(12000))

	resp := h.do(t, http.MethodPost, "/api/units", operatorKey, map[string]any{
		"apartment_id": apartment.ID.String(),
		"unit_number":  "A1",
		"rent_amount":  "9000.00",
	})
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "conflict", resp.errorType())
}

func TestExpenseBook(t *testing.T) {
	h := newHarness(t)
	apartment := h.SeedApartment("Sunrise Court")

	resp := h.do(t, http.MethodPost, "/api/expense-categories", viewerKey, map[string]any{"name": "Repairs"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	category := h.do(t, http.MethodPost, "/api/expense-categories", operatorKey, map[string]any{"name": "Repairs"})
	require.Equal(t, http.StatusCreated, category.Code, category.Body)
	categoryID := category.data(t)["id"].(string)

	resp = h.do(t, http.MethodPost, "/api/expense-categories", operatorKey, map[string]any{"name": "Repairs"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	subcategory := h.do(t, http.MethodPost, "/api/expense-categories/"+categoryID+"/subcategories", operatorKey, map[string]any{"name": "Plumbing"})
	require.Equal(t, http.StatusCreated, subcategory.Code, subcategory.Body)

	subcategories := h.do(t, http.MethodGet, "/api/expense-categories/"+categoryID+"/subcategories", viewerKey, nil)
	require.Equal(t, http.StatusOK, subcategories.Code)
	assert.Len(t, subcategories.list(t), 1)

	resp = h.do(t, http.MethodPost, "/api/expenses", operatorKey, map[string]any{
		"apartment_id": apartment.ID.String(),
		"category_id":  categoryID,
		"amount":       "2500.00",
		"description":  "",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_description", resp.errorCode())

	expense := h.do(t, http.MethodPost, "/api/expenses", operatorKey, map[string]any{
		"apartment_id":   apartment.ID.String(),
		"category_id":    categoryID,
		"subcategory_id": subcategory.data(t)["id"],
		"amount":         "2500.00",
		"expense_date":   "2024-03-01",
		"description":    "Burst pipe",
	})
	require.Equal(t, http.StatusCreated, expense.Code, expense.Body)
	expenseID := expense.data(t)["id"].(string)

	listed := h.do(t, http.MethodGet, "/api/expenses?apartment_id="+apartment.ID.String()+"&from=2024-03-01&to=2024-03-31", viewerKey, nil)
	require.Equal(t, http.StatusOK, listed.Code, listed.Body)
	assert.Len(t, listed.list(t), 1)

	months := h.do(t, http.MethodGet, "/api/reports/monthly?apartment_id="+apartment.ID.String(), viewerKey, nil)
	require.Equal(t, http.StatusOK, months.Code, months.Body)
	summaries := months.list(t)
	require.Len(t, summaries, 1)
	march := summaries[0].(map[string]any)
	assert.Equal(t, "2500.00", march["total_expenses"])
	assert.Equal(t, "-2500.00", march["net_income"])

	resp = h.do(t, http.MethodDelete, "/api/expenses/"+expenseID, operatorKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	resp = h.do(t, http.MethodDelete, "/api/expenses/"+expenseID, adminKey, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)
	resp = h.do(t, http.MethodGet, "/api/expenses/"+expenseID, viewerKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", resp.errorType())
}
