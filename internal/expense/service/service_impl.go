package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/internal/expense/domain"
	propertydomain "github.com/smallbiznis/rentledger/internal/property/domain"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"github.com/smallbiznis/rentledger/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	PropertySvc propertydomain.Service
}

type Service struct {
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	propertySvc   propertydomain.Service
	categories    repository.Repository[domain.Category]
	subcategories repository.Repository[domain.Subcategory]
	expenses      repository.Repository[domain.Expense]
}

func New(p Params) domain.Service {
	return &Service{
		log:           p.Log.Named("expense.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		propertySvc:   p.PropertySvc,
		categories:    repository.New[domain.Category](p.DB),
		subcategories: repository.New[domain.Subcategory](p.DB),
		expenses:      repository.New[domain.Expense](p.DB),
	}
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	category := domain.Category{
		ID:        s.genID.Generate(),
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	if err := s.categories.Insert(ctx, &category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrDuplicateCategory
		}
		return nil, err
	}
	return &category, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return s.categories.List(ctx, &domain.Category{}, option.WithOrder("name", "asc"))
}

func (s *Service) CreateSubcategory(ctx context.Context, req domain.CreateSubcategoryRequest) (*domain.Subcategory, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.getCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	subcategory := domain.Subcategory{
		ID:         s.genID.Generate(),
		CategoryID: req.CategoryID,
		Name:       name,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.subcategories.Insert(ctx, &subcategory); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.ErrDuplicateSubcategory
		}
		return nil, err
	}
	return &subcategory, nil
}

func (s *Service) ListSubcategories(ctx context.Context, categoryID snowflake.ID) ([]domain.Subcategory, error) {
	if _, err := s.getCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.subcategories.List(ctx,
		&domain.Subcategory{CategoryID: categoryID},
		option.WithOrder("name", "asc"),
	)
}

// RecordExpense books an expense against an apartment. A subcategory,
// when given, must belong to the expense's category.
func (s *Service) RecordExpense(ctx context.Context, req domain.RecordExpenseRequest) (*domain.Expense, error) {
	if !req.Amount.IsPositive() || !req.Amount.InRange() {
		return nil, domain.ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, domain.ErrInvalidDescription
	}
	if _, err := s.propertySvc.GetApartment(ctx, req.ApartmentID); err != nil {
		return nil, err
	}
	if _, err := s.getCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}
	if req.SubcategoryID != nil {
		if *req.SubcategoryID == 0 {
			return nil, domain.ErrSubcategoryNotFound
		}
		subcategory, err := s.subcategories.Get(ctx, &domain.Subcategory{ID: *req.SubcategoryID})
		if err != nil {
			return nil, err
		}
		if subcategory == nil {
			return nil, domain.ErrSubcategoryNotFound
		}
		if subcategory.CategoryID != req.CategoryID {
			return nil, domain.ErrInvalidSubcategory
		}
	}

	expenseDate := clock.Today(s.clock)
	if req.ExpenseDate != nil {
		expenseDate = clock.StartOfDay(*req.ExpenseDate)
	}

	expense := domain.Expense{
		ID:            s.genID.Generate(),
		ApartmentID:   req.ApartmentID,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Amount:        req.Amount,
		ExpenseDate:   expenseDate,
		Description:   description,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.expenses.Insert(ctx, &expense); err != nil {
		return nil, err
	}

	s.log.Info("expense.recorded",
		zap.String("expense_id", expense.ID.String()),
		zap.String("apartment_id", expense.ApartmentID.String()),
		zap.String("category_id", expense.CategoryID.String()),
		zap.Stringer("amount", expense.Amount),
	)
	return &expense, nil
}

func (s *Service) GetExpense(ctx context.Context, id snowflake.ID) (*domain.Expense, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	expense, err := s.expenses.Get(ctx, &domain.Expense{ID: id})
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, domain.ErrNotFound
	}
	return expense, nil
}

// ListExpenses returns matching expenses, newest first.
func (s *Service) ListExpenses(ctx context.Context, req domain.ListExpenseRequest) ([]domain.Expense, error) {
	opts := []option.QueryOption{}
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return nil, domain.ErrInvalidDateFilter
	}
	if req.From != nil {
		opts = append(opts, option.WithWhere("expense_date >= ?", clock.StartOfDay(*req.From)))
	}
	if req.To != nil {
		opts = append(opts, option.WithWhere("expense_date < ?", clock.StartOfDay(*req.To).AddDate(0, 0, 1)))
	}
	opts = append(opts,
		option.WithOrder("expense_date", "desc"),
		option.WithOrder("id", "desc"),
	)

	return s.expenses.List(ctx, &domain.Expense{
		ApartmentID: req.ApartmentID,
		CategoryID:  req.CategoryID,
	}, opts...)
}

func (s *Service) DeleteExpense(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrNotFound
	}
	removed, err := s.expenses.Delete(ctx, &domain.Expense{ID: id})
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrNotFound
	}
	s.log.Info("expense.deleted", zap.String("expense_id", id.String()))
	return nil
}

func (s *Service) getCategory(ctx context.Context, id snowflake.ID) (*domain.Category, error) {
	if id == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	category, err := s.categories.Get(ctx, &domain.Category{ID: id})
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrCategoryNotFound
	}
	return category, nil
}
