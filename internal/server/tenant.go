package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/rentledger/internal/tenant/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

type createTenantRequest struct {
	UnitID         snowflake.ID `json:"unit_id"`
	FullName       string       `json:"full_name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	IDNumber       string       `json:"id_number"`
	Deposit        money.Money  `json:"deposit"`
	LeaseStartDate string       `json:"lease_start_date"`
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	leaseStart, err := parseOptionalTime(req.LeaseStartDate)
	if err != nil {
		AbortWithError(c, newValidationError("lease_start_date", "invalid_lease_start_date", "invalid date"))
		return
	}

	tenant, err := s.tenantSvc.Create(c.Request.Context(), tenantdomain.CreateTenantRequest{
		UnitID:         req.UnitID,
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		IDNumber:       req.IDNumber,
		Deposit:        req.Deposit,
		LeaseStartDate: leaseStart,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": tenant})
}

func (s *Server) GetTenant(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	tenant, err := s.tenantSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) ListTenants(c *gin.Context) {
	apartmentID, err := parseOptionalSnowflakeID(c.Query("apartment_id"))
	if err != nil {
		AbortWithError(c, newValidationError("apartment_id", "invalid_apartment_id", "invalid apartment_id"))
		return
	}
	activeOn, err := parseOptionalTime(c.Query("active_on"))
	if err != nil {
		AbortWithError(c, newValidationError("active_on", "invalid_active_on", "invalid active_on"))
		return
	}

	req := tenantdomain.ListTenantRequest{ActiveOn: activeOn}
	if apartmentID != nil {
		req.ApartmentID = *apartmentID
	}
	tenants, err := s.tenantSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tenants})
}

type endLeaseRequest struct {
	EndDate string `json:"end_date"`
}

func (s *Server) EndLease(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req endLeaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	endDate, err := parseOptionalTime(req.EndDate)
	if err != nil || endDate == nil {
		AbortWithError(c, newValidationError("end_date", "invalid_end_date", "invalid date"))
		return
	}

	tenant, err := s.tenantSvc.EndLease(c.Request.Context(), id, *endDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tenant})
}

func (s *Server) GetCreditBalance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.creditSvc.GetBalance(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"tenant_id":      id,
		"credit_balance": balance,
	}})
}
