// Package settings is a small key/value store for operator-editable
// tunables. The late fee override lives here under KeyLateFeeFixed.
package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/rentledger/internal/clock"
	"github.com/smallbiznis/rentledger/pkg/db"
	"github.com/smallbiznis/rentledger/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const KeyLateFeeFixed = "late_fee_fixed"

var (
	ErrInvalidKey   = errors.New("invalid_setting_key")
	ErrInvalidValue = errors.New("invalid_setting_value")
)

type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }

var validators = map[string]func(string) error{
	KeyLateFeeFixed: func(value string) error {
		fee, err := money.Parse(value)
		if err != nil || !fee.IsPositive() {
			return ErrInvalidValue
		}
		return nil
	},
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

func New(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		clock: p.Clock,
	}
}

var Module = fx.Module("settings.service",
	fx.Provide(New),
)

// Get returns the stored value and whether the key exists.
func (s *Service) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}

	var setting Setting
	// struct condition so the dialect quotes the reserved "key" column
	err := s.db.WithContext(ctx).
		Where(&Setting{Key: key}).
		Limit(1).
		Find(&setting).Error
	if err != nil {
		return "", false, db.Wrap(err)
	}
	if setting.Key == "" {
		return "", false, nil
	}
	return setting.Value, true, nil
}

func (s *Service) Set(ctx context.Context, key, value string) (*Setting, error) {
	key = strings.TrimSpace(key)
	validate, ok := validators[key]
	if !ok {
		return nil, ErrInvalidKey
	}
	value = strings.TrimSpace(value)
	if err := validate(value); err != nil {
		return nil, err
	}

	setting := Setting{Key: key, Value: value, UpdatedAt: s.clock.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return nil, db.Wrap(err)
	}

	s.log.Info("setting updated", zap.String("key", key), zap.String("value", value))
	return &setting, nil
}

// LateFee returns the late fee override when one is stored.
func (s *Service) LateFee(ctx context.Context) (money.Money, bool, error) {
	raw, ok, err := s.Get(ctx, KeyLateFeeFixed)
	if err != nil || !ok {
		return money.Zero, false, err
	}
	fee, err := money.Parse(raw)
	if err != nil {
		return money.Zero, false, err
	}
	return fee, true, nil
}
