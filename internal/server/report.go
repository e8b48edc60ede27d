package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentledger/internal/report"
)

func (s *Server) MonthlyReport(c *gin.Context) {
	apartmentID, err := parseOptionalSnowflakeID(c.Query("apartment_id"))
	if err != nil {
		AbortWithError(c, newValidationError("apartment_id", "invalid_apartment_id", "invalid apartment_id"))
		return
	}

	var req report.MonthlyRequest
	if apartmentID != nil {
		req.ApartmentID = *apartmentID
	}
	months, err := s.reportSvc.Monthly(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": months})
}
