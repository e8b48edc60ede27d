package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/rentledger/internal/payment/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/zap"
)

type recordPaymentRequest struct {
	Amount      money.Money    `json:"amount"`
	PaymentDate string         `json:"payment_date"`
	Method      string         `json:"method"`
	Reference   string         `json:"reference"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	tenantID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	paymentDate, err := parseOptionalTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "invalid date"))
		return
	}

	record := paymentdomain.RecordPaymentRequest{
		TenantID:  tenantID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: strings.TrimSpace(req.Reference),
		Metadata:  req.Metadata,
	}
	if paymentDate != nil {
		record.PaymentDate = *paymentDate
	}

	result, err := s.paymentSvc.RecordPayment(c.Request.Context(), record)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("payment_id", result.Payment.ID.String()),
		zap.String("receipt_number", result.Payment.ReceiptNumber),
	)
	if s.notifier != nil {
		// receipts go out after commit; delivery problems never fail the request
		s.notifier.PaymentRecorded(c.Request.Context(), result)
	}

	c.JSON(http.StatusCreated, gin.H{"data": result})
}

func (s *Server) ListTenantPayments(c *gin.Context) {
	tenantID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.tenantSvc.GetByID(c.Request.Context(), tenantID); err != nil {
		AbortWithError(c, err)
		return
	}

	pageSize, err := parseOptionalInt(c.Query("page_size"))
	if err != nil || pageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.paymentSvc.ListPayments(c.Request.Context(), paymentdomain.ListPaymentRequest{
		TenantID:  tenantID,
		PageSize:  pageSize,
		PageToken: strings.TrimSpace(c.Query("page_token")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Payments,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}
