package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

type Service interface {
	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateSubcategory(ctx context.Context, req CreateSubcategoryRequest) (*Subcategory, error)
	ListSubcategories(ctx context.Context, categoryID snowflake.ID) ([]Subcategory, error)

	RecordExpense(ctx context.Context, req RecordExpenseRequest) (*Expense, error)
	GetExpense(ctx context.Context, id snowflake.ID) (*Expense, error)
	ListExpenses(ctx context.Context, req ListExpenseRequest) ([]Expense, error)
	DeleteExpense(ctx context.Context, id snowflake.ID) error
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type CreateSubcategoryRequest struct {
	CategoryID snowflake.ID `json:"category_id"`
	Name       string       `json:"name"`
}

type RecordExpenseRequest struct {
	ApartmentID   snowflake.ID  `json:"apartment_id"`
	CategoryID    snowflake.ID  `json:"category_id"`
	SubcategoryID *snowflake.ID `json:"subcategory_id"`
	Amount        money.Money   `json:"amount"`
	// ExpenseDate defaults to today.
	ExpenseDate *time.Time `json:"expense_date"`
	Description string     `json:"description"`
}

// ListExpenseRequest filters are optional; From and To are inclusive days.
type ListExpenseRequest struct {
	ApartmentID snowflake.ID
	CategoryID  snowflake.ID
	From        *time.Time
	To          *time.Time
}

var (
	ErrNotFound             = errors.New("expense_not_found")
	ErrCategoryNotFound     = errors.New("expense_category_not_found")
	ErrSubcategoryNotFound  = errors.New("expense_subcategory_not_found")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidDescription   = errors.New("invalid_description")
	ErrInvalidSubcategory   = errors.New("invalid_subcategory")
	ErrInvalidDateFilter    = errors.New("invalid_date_filter")
	ErrDuplicateCategory    = errors.New("duplicate_expense_category")
	ErrDuplicateSubcategory = errors.New("duplicate_expense_subcategory")
)
