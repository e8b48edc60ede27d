package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	expensedomain "github.com/smallbiznis/rentledger/internal/expense/domain"
	"github.com/smallbiznis/rentledger/pkg/money"
)

func (s *Server) CreateExpenseCategory(c *gin.Context) {
	var req expensedomain.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	category, err := s.expenseSvc.CreateCategory(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": category})
}

func (s *Server) ListExpenseCategories(c *gin.Context) {
	categories, err := s.expenseSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": categories})
}

type createSubcategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateExpenseSubcategory(c *gin.Context) {
	categoryID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req createSubcategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	subcategory, err := s.expenseSvc.CreateSubcategory(c.Request.Context(), expensedomain.CreateSubcategoryRequest{
		CategoryID: categoryID,
		Name:       req.Name,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": subcategory})
}

func (s *Server) ListExpenseSubcategories(c *gin.Context) {
	categoryID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	subcategories, err := s.expenseSvc.ListSubcategories(c.Request.Context(), categoryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subcategories})
}

type recordExpenseRequest struct {
	ApartmentID   snowflake.ID  `json:"apartment_id"`
	CategoryID    snowflake.ID  `json:"category_id"`
	SubcategoryID *snowflake.ID `json:"subcategory_id"`
	Amount        money.Money   `json:"amount"`
	ExpenseDate   string        `json:"expense_date"`
	Description   string        `json:"description"`
}

func (s *Server) RecordExpense(c *gin.Context) {
	var req recordExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	expenseDate, err := parseOptionalTime(req.ExpenseDate)
	if err != nil {
		AbortWithError(c, newValidationError("expense_date", "invalid_expense_date", "invalid date"))
		return
	}

	expense, err := s.expenseSvc.RecordExpense(c.Request.Context(), expensedomain.RecordExpenseRequest{
		ApartmentID:   req.ApartmentID,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Amount:        req.Amount,
		ExpenseDate:   expenseDate,
		Description:   req.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": expense})
}

func (s *Server) GetExpense(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	expense, err := s.expenseSvc.GetExpense(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": expense})
}

func (s *Server) ListExpenses(c *gin.Context) {
	apartmentID, err := parseOptionalSnowflakeID(c.Query("apartment_id"))
	if err != nil {
		AbortWithError(c, newValidationError("apartment_id", "invalid_apartment_id", "invalid apartment_id"))
		return
	}
	categoryID, err := parseOptionalSnowflakeID(c.Query("category_id"))
	if err != nil {
		AbortWithError(c, newValidationError("category_id", "invalid_category_id", "invalid category_id"))
		return
	}
	from, err := parseOptionalTime(c.Query("from"))
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"))
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}

	req := expensedomain.ListExpenseRequest{From: from, To: to}
	if apartmentID != nil {
		req.ApartmentID = *apartmentID
	}
	if categoryID != nil {
		req.CategoryID = *categoryID
	}
	expenses, err := s.expenseSvc.ListExpenses(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": expenses})
}

func (s *Server) DeleteExpense(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.expenseSvc.DeleteExpense(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
