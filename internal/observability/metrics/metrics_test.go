package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("method", "mpesa"),
		attribute.String("tenant_id", "456"),
		attribute.String("outcome", "applied"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("method"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestRecordPaymentCountsAmounts(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "rentledger"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPayment(ctx, "mpesa", 1500000, 300000)
	m.RecordPayment(ctx, "mpesa", 500000, 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, item := range scope.Metrics {
			data, ok := item.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range data.DataPoints {
				sums[item.Name] += point.Value
			}
		}
	}

	assert.Equal(t, int64(2), sums["rentledger_payments_recorded_total"])
	assert.Equal(t, int64(2000000), sums["rentledger_payment_amount_minor_total"])
	assert.Equal(t, int64(300000), sums["rentledger_credit_issued_minor_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordPayment(context.Background(), "cash", 1, 1)
		m.RecordLateFee(context.Background(), "applied")
		m.RecordInvoiceGenerated(context.Background(), "created")
		m.RecordNotification(context.Background(), "email", "sent")
	})
}
