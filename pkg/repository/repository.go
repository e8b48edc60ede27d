// Package repository provides a generic gorm-backed store for simple
// registry tables (apartments, units, expenses).
package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/db/option"
	"gorm.io/gorm"
)

// ErrDuplicate is returned by Insert when a unique index rejects the row.
var ErrDuplicate = errors.New("duplicate_row")

// Repository reads and writes rows of T matched by struct filters. Every
// store failure comes back tagged with db.ErrPersistence.
type Repository[T any] interface {
	// Get returns nil, nil when nothing matches.
	Get(ctx context.Context, filter *T) (*T, error)
	List(ctx context.Context, filter *T, opts ...option.QueryOption) ([]T, error)
	Exists(ctx context.Context, filter *T) (bool, error)
	Insert(ctx context.Context, row *T) error
	// Delete reports whether any row matched filter.
	Delete(ctx context.Context, filter *T) (bool, error)
}

type store[T any] struct {
	conn *gorm.DB
}

func New[T any](conn *gorm.DB) Repository[T] {
	return &store[T]{conn: conn}
}

func (s *store[T]) Get(ctx context.Context, filter *T) (*T, error) {
	var row T
	err := s.conn.WithContext(ctx).Where(filter).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, db.Wrap(err)
	}
	return &row, nil
}

func (s *store[T]) List(ctx context.Context, filter *T, opts ...option.QueryOption) ([]T, error) {
	stmt := s.conn.WithContext(ctx).Where(filter)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	rows := []T{}
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, db.Wrap(err)
	}
	return rows, nil
}

func (s *store[T]) Exists(ctx context.Context, filter *T) (bool, error) {
	var count int64
	if err := s.conn.WithContext(ctx).Model(new(T)).Where(filter).Limit(1).Count(&count).Error; err != nil {
		return false, db.Wrap(err)
	}
	return count > 0, nil
}

func (s *store[T]) Insert(ctx context.Context, row *T) error {
	err := s.conn.WithContext(ctx).Create(row).Error
	if db.IsDuplicateKeyErr(err) {
		return ErrDuplicate
	}
	return db.Wrap(err)
}

func (s *store[T]) Delete(ctx context.Context, filter *T) (bool, error) {
	res := s.conn.WithContext(ctx).Where(filter).Delete(new(T))
	if res.Error != nil {
		return false, db.Wrap(res.Error)
	}
	return res.RowsAffected > 0, nil
}
