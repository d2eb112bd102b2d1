package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcenetwork/syncore/logging"
	"github.com/sourcenetwork/syncore/metrics"
)

func TestEmit_LogsMarkerWithNopLogger(t *testing.T) {
	log := logging.Nop()
	metrics.Emit(context.Background(), log, metrics.MarkerPeerFindPhases,
		metrics.F("strategy", "mesh_first"),
		metrics.F("total_ms", 12))
}

func TestStopwatch_FieldsIncludesTotal(t *testing.T) {
	sw := metrics.NewStopwatch()
	sw.Lap("mesh")
	sw.Lap("recent")

	fields := sw.Fields()
	require.Len(t, fields, 3)
	require.Equal(t, "mesh_ms", fields[0].Key)
	require.Equal(t, "recent_ms", fields[1].Key)
	require.Equal(t, "total_ms", fields[2].Key)
}
