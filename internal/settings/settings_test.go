package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/rentledger/internal/ledgertest"
	"github.com/smallbiznis/rentledger/internal/settings"
	"github.com/smallbiznis/rentledger/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*ledgertest.Fixture, *settings.Service) {
	t.Helper()

	f := ledgertest.New(t, ledgertest.Date(2024, time.January, 1))
	return f, settings.New(settings.Params{DB: f.DB, Log: zap.NewNop(), Clock: f.Clock})
}

func TestLateFeeOverride(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	_, ok, err := svc.LateFee(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.Set(ctx, settings.KeyLateFeeFixed, "2000")
	require.NoError(t, err)
	fee, ok, err := svc.LateFee(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, money.New(2000), fee)

	// second write replaces the first
	_, err = svc.Set(ctx, settings.KeyLateFeeFixed, " 2500.50 ")
	require.NoError(t, err)
	fee, _, err = svc.LateFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("2500.50"), fee)
}

func TestSetRejectsInvalidInput(t *testing.T) {
	_, svc := newService(t)
	ctx := context.Background()

	_, err := svc.Set(ctx, "currency", "KES")
	assert.ErrorIs(t, err, settings.ErrInvalidKey)

	for _, value := range []string{"", "abc", "0", "-100"} {
		_, err := svc.Set(ctx, settings.KeyLateFeeFixed, value)
		assert.ErrorIs(t, err, settings.ErrInvalidValue, "value %q", value)
	}

	_, ok, err := svc.Get(ctx, settings.KeyLateFeeFixed)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = svc.Get(ctx, "")
	assert.ErrorIs(t, err, settings.ErrInvalidKey)
}
