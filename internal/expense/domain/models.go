// Package domain contains the property expense book: categories,
// subcategories and the expenses charged against an apartment.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/pkg/money"
)

type Category struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(128);not null;uniqueIndex:ux_expense_categories_name" json:"name"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Category) TableName() string { return "expense_categories" }

type Subcategory struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CategoryID snowflake.ID `gorm:"not null;uniqueIndex:ux_expense_subcategories_category_name,priority:1" json:"category_id"`
	Name       string       `gorm:"type:varchar(128);not null;uniqueIndex:ux_expense_subcategories_category_name,priority:2" json:"name"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Subcategory) TableName() string { return "expense_subcategories" }

// Expense is money spent on an apartment. It never touches tenant
// balances; reports net it against collections.
type Expense struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	ApartmentID   snowflake.ID  `gorm:"not null;index:ix_expenses_apartment_date,priority:1" json:"apartment_id"`
	CategoryID    snowflake.ID  `gorm:"not null;index" json:"category_id"`
	SubcategoryID *snowflake.ID `json:"subcategory_id,omitempty"`
	Amount        money.Money   `gorm:"not null" json:"amount"`
	ExpenseDate   time.Time     `gorm:"not null;index:ix_expenses_apartment_date,priority:2" json:"expense_date"`
	Description   string        `gorm:"type:text;not null" json:"description"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

func (Expense) TableName() string { return "expenses" }
