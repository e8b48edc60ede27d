package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RunLateFees(c *gin.Context) {
	result, err := s.scheduler.RunLateFees(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) RunGenerateInvoices(c *gin.Context) {
	result, err := s.scheduler.RunGenerateInvoices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
