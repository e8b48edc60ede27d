// Package notification sends tenant-facing documents after ledger events.
// Delivery is best effort: every failure is logged and counted, and the
// ledger state that triggered it is already committed.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
	"github.com/smallbiznis/rentledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/internal/providers/email"
	"github.com/smallbiznis/rentledger/internal/providers/pdf"
	"github.com/smallbiznis/rentledger/internal/providers/sms"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	dateLayout = "2006-01-02"

	channelEmail = "email"
	channelSMS   = "sms"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	TenantSvc   tenantdomain.Service
	PropertySvc propertydomain.Service
	PDF         pdf.Provider
	Email       email.Provider
	SMS         sms.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	tenantSvc   tenantdomain.Service
	propertySvc propertydomain.Service
	pdf         pdf.Provider
	email       email.Provider
	sms         sms.Provider
	metrics     *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		log:         p.Log.Named("notification.service"),
		tenantSvc:   p.TenantSvc,
		propertySvc: p.PropertySvc,
		pdf:         p.PDF,
		email:       p.Email,
		sms:         p.SMS,
		metrics:     p.Metrics,
	}
}

var Module = fx.Module("notification.service",
	fx.Provide(New),
)

// recipient is everything a document header needs about one tenant.
type recipient struct {
	tenant    *tenantdomain.Tenant
	unit      *propertydomain.Unit
	apartment *propertydomain.Apartment
}

func (r recipient) header() pdf.Header {
	return pdf.Header{
		PropertyName:   r.apartment.Name,
		PaymentDetails: paymentDetails(r.apartment),
		TenantName:     r.tenant.FullName,
		TenantEmail:    r.tenant.Email,
		UnitNumber:     r.unit.UnitNumber,
	}
}

func paymentDetails(apartment *propertydomain.Apartment) string {
	switch apartment.PaymentMode {
	case propertydomain.PaymentModeBank:
		return fmt.Sprintf("Pay via %s, account %s.", apartment.BankName, apartment.BankAccountNo)
	default:
		account := apartment.MpesaAccountNo
		if account == "" {
			account = "your unit number"
		}
		return fmt.Sprintf("Pay via M-Pesa Paybill %s, account %s.", apartment.MpesaPaybill, account)
	}
}

// PaymentRecorded sends the receipt for a committed payment.
func (s *Service) PaymentRecorded(ctx context.Context, result *paymentdomain.RecordPaymentResult) {
	if result == nil {
		return
	}
	payment := result.Payment
	to, err := s.resolve(ctx, payment.TenantID)
	if err != nil {
		s.log.Warn("notification.recipient.failed",
			zap.String("tenant_id", payment.TenantID.String()),
			zap.String("receipt_number", payment.ReceiptNumber),
			zap.Error(err),
		)
		return
	}

	periods := make(map[snowflake.ID]string, len(result.Invoices))
	for _, invoice := range result.Invoices {
		periods[invoice.ID] = invoice.BillingPeriod
	}
	items := make([]pdf.LineItem, 0, len(result.Allocations))
	for _, allocation := range result.Allocations {
		items = append(items, pdf.LineItem{
			Description: fmt.Sprintf("Rent %s", periods[allocation.InvoiceID]),
			Amount:      allocation.Amount.String(),
		})
	}

	data := pdf.ReceiptData{
		Header:        to.header(),
		ReceiptNumber: payment.ReceiptNumber,
		DatePaid:      payment.PaymentDate.Format(dateLayout),
		Method:        string(payment.Method),
		Reference:     payment.Reference,
		Items:         items,
		AmountPaid:    payment.AmountPaid.String(),
		Credited:      positiveLabel(result.Credited),
		CreditBalance: result.CreditBalance.String(),
	}

	var attachment *email.Attachment
	doc, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		s.log.Warn("notification.pdf.failed", zap.String("receipt_number", payment.ReceiptNumber), zap.Error(err))
	} else if doc != nil {
		attachment = &email.Attachment{
			Filename:    fileName("receipt", payment.ReceiptNumber, to.tenant.FullName),
			ContentType: "application/pdf",
			Content:     doc,
		}
	}

	s.sendEmail(ctx, to, email.Message{
		Subject:  fmt.Sprintf("Payment receipt %s", payment.ReceiptNumber),
		Template: "payment_receipt",
		Data:     data,
	}, attachment)
	s.sendSMS(ctx, to, fmt.Sprintf("Receipt %s: %s received, thank you. Credit balance %s.",
		payment.ReceiptNumber, payment.AmountPaid, result.CreditBalance))
}

// InvoiceCreated sends a newly generated invoice.
func (s *Service) InvoiceCreated(ctx context.Context, invoice invoicedomain.Invoice) {
	to, err := s.resolve(ctx, invoice.TenantID)
	if err != nil {
		s.log.Warn("notification.recipient.failed",
			zap.String("tenant_id", invoice.TenantID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	data := invoiceData(to, invoice)
	var attachment *email.Attachment
	doc, err := s.pdf.GenerateInvoice(ctx, data)
	if err != nil {
		s.log.Warn("notification.pdf.failed", zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
	} else if doc != nil {
		attachment = &email.Attachment{
			Filename:    fileName("invoice", invoice.BillingPeriod, to.tenant.FullName),
			ContentType: "application/pdf",
			Content:     doc,
		}
	}

	s.sendEmail(ctx, to, email.Message{
		Subject:  fmt.Sprintf("Rent invoice for %s", invoice.BillingPeriod),
		Template: "invoice_new",
		Data: map[string]any{
			"TenantName":       data.TenantName,
			"PropertyName":     data.PropertyName,
			"UnitNumber":       data.UnitNumber,
			"BillingPeriod":    data.BillingPeriod,
			"AmountDue":        invoice.AmountDue.String(),
			"CreditApplied":    positiveLabel(invoice.CreditApplied),
			"RemainingBalance": data.RemainingBalance,
			"DueDate":          data.DueDate,
			"PaymentDetails":   data.PaymentDetails,
		},
	}, attachment)
	if invoice.RemainingBalance.IsPositive() {
		s.sendSMS(ctx, to, fmt.Sprintf("Rent for %s: %s due by %s. %s",
			invoice.BillingPeriod, invoice.RemainingBalance, data.DueDate, data.PaymentDetails))
	}
}

// LateFeeApplied tells the tenant a late fee was added to an invoice.
func (s *Service) LateFeeApplied(ctx context.Context, invoice invoicedomain.Invoice) {
	to, err := s.resolve(ctx, invoice.TenantID)
	if err != nil {
		s.log.Warn("notification.recipient.failed",
			zap.String("tenant_id", invoice.TenantID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	details := paymentDetails(to.apartment)
	s.sendEmail(ctx, to, email.Message{
		Subject:  fmt.Sprintf("Late fee added to your %s rent", invoice.BillingPeriod),
		Template: "late_fee_applied",
		Data: map[string]any{
			"TenantName":       to.tenant.FullName,
			"BillingPeriod":    invoice.BillingPeriod,
			"DueDate":          invoice.DueDate.Format(dateLayout),
			"LateFee":          invoice.LateFee.String(),
			"RemainingBalance": invoice.RemainingBalance.String(),
			"PaymentDetails":   details,
		},
	}, nil)
	s.sendSMS(ctx, to, fmt.Sprintf("Rent for %s is overdue. A late fee of %s was added, balance %s. %s",
		invoice.BillingPeriod, invoice.LateFee, invoice.RemainingBalance, details))
}

func invoiceData(to recipient, invoice invoicedomain.Invoice) pdf.InvoiceData {
	items := []pdf.LineItem{{Description: fmt.Sprintf("Rent %s", invoice.BillingPeriod), Amount: invoice.AmountDue.String()}}
	if invoice.LateFee.IsPositive() {
		items = append(items, pdf.LineItem{Description: "Late fee", Amount: invoice.LateFee.String()})
	}
	return pdf.InvoiceData{
		Header:           to.header(),
		BillingPeriod:    invoice.BillingPeriod,
		InvoiceDate:      invoice.InvoiceDate.Format(dateLayout),
		DueDate:          invoice.DueDate.Format(dateLayout),
		Status:           string(invoice.Status),
		Items:            items,
		CreditApplied:    positiveLabel(invoice.CreditApplied),
		Total:            invoice.Total().String(),
		RemainingBalance: invoice.RemainingBalance.String(),
	}
}

func (s *Service) resolve(ctx context.Context, tenantID snowflake.ID) (recipient, error) {
	tenant, err := s.tenantSvc.GetByID(ctx, tenantID)
	if err != nil {
		return recipient{}, err
	}
	unit, err := s.propertySvc.GetUnit(ctx, tenant.UnitID)
	if err != nil {
		return recipient{}, err
	}
	apartment, err := s.propertySvc.GetApartment(ctx, unit.ApartmentID)
	if err != nil {
		return recipient{}, err
	}
	return recipient{tenant: tenant, unit: unit, apartment: apartment}, nil
}

func (s *Service) sendEmail(ctx context.Context, to recipient, msg email.Message, attachment *email.Attachment) {
	address := strings.TrimSpace(to.tenant.Email)
	if address == "" {
		return
	}
	msg.To = []string{address}
	if attachment != nil {
		msg.Attachments = []email.Attachment{*attachment}
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.log.Error("notification.email.failed",
			zap.String("tenant_id", to.tenant.ID.String()),
			zap.String("template", msg.Template),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ctx, channelEmail, "failed")
		return
	}
	s.metrics.RecordNotification(ctx, channelEmail, "sent")
}

func (s *Service) sendSMS(ctx context.Context, to recipient, message string) {
	phone := strings.TrimSpace(to.tenant.Phone)
	if phone == "" {
		return
	}
	if err := s.sms.Send(ctx, phone, message); err != nil {
		s.log.Error("notification.sms.failed",
			zap.String("tenant_id", to.tenant.ID.String()),
			zap.Error(err),
		)
		s.metrics.RecordNotification(ctx, channelSMS, "failed")
		return
	}
	s.metrics.RecordNotification(ctx, channelSMS, "sent")
}

func positiveLabel(amount money.Money) string {
	if !amount.IsPositive() {
		return ""
	}
	return amount.String()
}

// fileName builds e.g. "receipt-n001-jane-wanjiku.pdf".
func fileName(kind, ref, tenantName string) string {
	return slug.Make(strings.Join([]string{kind, ref, tenantName}, " ")) + ".pdf"
}
