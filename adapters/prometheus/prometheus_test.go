package prometheus_test

import (
	"errors"
	"testing"
	"time"

	relayprom "github.com/abhissng/relay/adapters/prometheus"
	"github.com/abhissng/relay/engine"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/saga"
	"github.com/abhissng/relay/utils/constant"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ handler.Metrics = (*relayprom.MetricsCollector)(nil)
	_ engine.Metrics  = (*relayprom.MetricsCollector)(nil)
	_ saga.Metrics    = (*relayprom.MetricsCollector)(nil)
)

func TestCollectorRecordsObservations(t *testing.T) {
	mc := relayprom.NewMetricsCollector(relayprom.WithServiceName("relay"))

	mc.ObserveHandler("restaurant.cook-food", time.Millisecond, nil)
	mc.ObserveHandler("restaurant.cook-food", time.Millisecond, errors.New("burnt"))
	mc.IncRetry("restaurant.cook-food")
	mc.IncDuplicate("restaurant.order-placed")
	mc.ObserveDelivery("restaurant.foodprep", constant.Acked, time.Millisecond)
	mc.ObserveDelivery("restaurant.foodprep", constant.Rejected, time.Millisecond)
	mc.IncTimeoutScheduled("order-fulfillment")
	mc.SetSagaInstances("order-fulfillment", 3)
	mc.ObserveHTTP("POST", "/orders", 202, 64, time.Millisecond)
	done := mc.InFlight()
	done()

	families, err := mc.Registry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, n := range []string{
		"relay_handler_duration_seconds",
		"relay_handler_retries_total",
		"relay_handler_duplicates_total",
		"relay_deliveries_total",
		"relay_saga_timeouts_scheduled_total",
		"relay_saga_instances",
		"relay_http_requests_total",
	} {
		assert.True(t, names[n], n)
	}

	count, err := testutil.GatherAndCount(mc.Registry(), "relay_deliveries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var mc *relayprom.MetricsCollector
	assert.NotPanics(t, func() {
		mc.ObserveHandler("t", time.Second, nil)
		mc.IncRetry("t")
		mc.IncDuplicate("t")
		mc.ObserveDelivery("q", constant.Acked, time.Second)
		mc.IncTimeoutScheduled("s")
		mc.SetSagaInstances("s", 1)
		mc.ObserveHTTP("GET", "/", 200, 0, time.Second)
		mc.InFlight()()
	})
}

func TestCollectorsDoNotShareRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		relayprom.NewMetricsCollector()
		relayprom.NewMetricsCollector()
	})
}
