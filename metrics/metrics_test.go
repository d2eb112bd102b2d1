package metrics_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/metrics"
)

func TestNew_RegistersAllCollectorsWithoutPanicking(t *testing.T) {
	m := metrics.New()
	require.NotNil(t, m.Registry())

	m.DialAttempts.WithLabelValues("success").Inc()
	m.SyncRoundTrips.WithLabelValues("HashComparison").Observe(3)
	m.BridgeDropped.Inc()

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNew_DoesNotCollideOnDefaultRegisterer(t *testing.T) {
	require.NotPanics(t, func() {
		metrics.New()
		metrics.New()
	})
}
