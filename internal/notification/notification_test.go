package notification_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/ledgertest"
	"github.com/smallbiznis/rentledger/internal/notification"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/internal/providers/email"
	"github.com/smallbiznis/rentledger/internal/providers/pdf"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockPDF struct {
	mock.Mock
}

func (m *mockPDF) GenerateInvoice(ctx context.Context, data pdf.InvoiceData) (io.Reader, error) {
	args := m.Called(ctx, data)
	if r, ok := args.Get(0).(io.Reader); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPDF) GenerateReceipt(ctx context.Context, data pdf.ReceiptData) (io.Reader, error) {
	args := m.Called(ctx, data)
	if r, ok := args.Get(0).(io.Reader); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockSMS struct {
	mock.Mock
}

func (m *mockSMS) Send(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

type harness struct {
	f     *ledgertest.Fixture
	svc   *notification.Service
	pdf   *mockPDF
	email *mockEmail
	sms   *mockSMS
}

func newHarness(t *testing.T) *harness {
	f := ledgertest.New(t, ledgertest.Date(2024, time.January, 5))
	services := f.Services()
	h := &harness{f: f, pdf: &mockPDF{}, email: &mockEmail{}, sms: &mockSMS{}}
	h.svc = notification.New(notification.Params{
		Log:         zap.NewNop(),
		TenantSvc:   services.Tenant,
		PropertySvc: services.Property,
		PDF:         h.pdf,
		Email:       h.email,
		SMS:         h.sms,
	})
	return h
}

func TestPaymentRecordedSendsReceipt(t *testing.T) {
	h := newHarness(t)
	tenant := h.f.SeedRentedTenant(money.New(12000), ledgertest.WithEmail("jane@example.com"))
	invoice := h.f.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2024, time.January, 1),
		AmountDue:   money.New(12000),
	})

	result := &paymentdomain.RecordPaymentResult{
		Payment: paymentdomain.Payment{
			TenantID:      tenant.ID,
			AmountPaid:    money.New(15000),
			PaymentDate:   ledgertest.Date(2024, time.January, 5),
			Method:        paymentdomain.MethodMpesa,
			ReceiptNumber: "N001",
		},
		Allocations:   []paymentdomain.PaymentAllocation{{InvoiceID: invoice.ID, Amount: money.New(12000)}},
		Invoices:      []invoicedomain.Invoice{invoice},
		Credited:      money.New(3000),
		CreditBalance: money.New(3000),
	}

	h.pdf.On("GenerateReceipt", mock.Anything, mock.MatchedBy(func(data pdf.ReceiptData) bool {
		return data.ReceiptNumber == "N001" &&
			data.Credited == "3000.00" &&
			len(data.Items) == 1 &&
			data.Items[0].Description == "Rent 2024-01" &&
			data.PropertyName == "Sunrise Court"
	})).Return(strings.NewReader("%PDF-1.3"), nil)
	h.email.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return msg.Template == "payment_receipt" &&
			len(msg.To) == 1 && msg.To[0] == "jane@example.com" &&
			len(msg.Attachments) == 1 &&
			msg.Attachments[0].Filename == "receipt-n001-jane-wanjiku.pdf"
	})).Return(nil)
	h.sms.On("Send", mock.Anything, "+254700000000", mock.MatchedBy(func(message string) bool {
		return strings.Contains(message, "N001")
	})).Return(nil)

	h.svc.PaymentRecorded(context.Background(), result)

	h.pdf.AssertExpectations(t)
	h.email.AssertExpectations(t)
	h.sms.AssertExpectations(t)
}

func TestInvoiceCreatedSkipsEmailWithoutAddress(t *testing.T) {
	h := newHarness(t)
	tenant := h.f.SeedRentedTenant(money.New(12000))
	invoice := h.f.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2024, time.January, 1),
		AmountDue:   money.New(12000),
	})

	h.pdf.On("GenerateInvoice", mock.Anything, mock.Anything).Return(strings.NewReader("%PDF-1.3"), nil)
	h.sms.On("Send", mock.Anything, "+254700000000", mock.MatchedBy(func(message string) bool {
		return strings.Contains(message, "2024-01") && strings.Contains(message, "12000.00")
	})).Return(nil)

	h.svc.InvoiceCreated(context.Background(), invoice)

	h.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	h.sms.AssertExpectations(t)
}

func TestDeliveryFailuresAreSwallowed(t *testing.T) {
	h := newHarness(t)
	tenant := h.f.SeedRentedTenant(money.New(12000), ledgertest.WithEmail("jane@example.com"))
	invoice := h.f.SeedInvoice(tenant.ID, ledgertest.InvoiceSeed{
		InvoiceDate: ledgertest.Date(2023, time.December, 1),
		AmountDue:   money.New(12000),
		LateFee:     money.New(1500),
	})

	h.email.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
		return msg.Template == "late_fee_applied" && len(msg.Attachments) == 0
	})).Return(errors.New("smtp down"))
	h.sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway down"))

	assert.NotPanics(t, func() {
		h.svc.LateFeeApplied(context.Background(), invoice)
	})
	h.email.AssertExpectations(t)
	h.sms.AssertExpectations(t)
}

func TestUnknownTenantSendsNothing(t *testing.T) {
	h := newHarness(t)

	h.svc.LateFeeApplied(context.Background(), invoicedomain.Invoice{TenantID: h.f.Node.Generate()})

	h.email.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	h.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}
