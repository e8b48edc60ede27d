package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/rentledger/internal/invoice/domain"
)

func (s *Server) ListTenantInvoices(c *gin.Context) {
	tenantID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.tenantSvc.GetByID(c.Request.Context(), tenantID); err != nil {
		AbortWithError(c, err)
		return
	}

	req := invoicedomain.ListInvoiceRequest{
		TenantID:  tenantID,
		PageToken: strings.TrimSpace(c.Query("page_token")),
	}
	for _, raw := range c.QueryArray("status") {
		for _, status := range strings.Split(raw, ",") {
			status = strings.TrimSpace(status)
			if status == "" {
				continue
			}
			req.Statuses = append(req.Statuses, invoicedomain.InvoiceStatus(status))
		}
	}
	if req.From, err = parseOptionalTime(c.Query("from")); err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	if req.To, err = parseOptionalTime(c.Query("to")); err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	if req.PageSize, err = parseOptionalInt(c.Query("page_size")); err != nil || req.PageSize < 0 {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}

	resp, err := s.invoiceSvc.ListInvoices(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Invoices,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetInvoice(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invoice, err := s.invoiceSvc.GetInvoice(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
