package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sourcenetwork/syncore/logging"
)

// Marker names a structured trace line (spec §6: "for log-based metric
// extraction"). Each is emitted as a single key=value line so an
// external log pipeline can regex-extract it without parsing JSON.
type Marker string

const (
	MarkerPeerFindPhases     Marker = "PEER_FIND_PHASES"
	MarkerPeerDialBreakdown  Marker = "PEER_DIAL_BREAKDOWN"
	MarkerSyncPhaseBreakdown Marker = "SYNC_PHASE_BREAKDOWN"
	MarkerDeltaApplyTiming   Marker = "DELTA_APPLY_TIMING"
	MarkerStrategySyncMetrics Marker = "STRATEGY_SYNC_METRICS"
)

// Fields is an ordered set of key=value pairs for a trace line. Using
// a slice instead of a map keeps emission order deterministic: fields
// render in the order given.
type Fields []Field

// Field is a single key=value pair.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Emit renders marker followed by its fields as space-separated
// key=value pairs and logs it at info level, e.g.:
//   PEER_FIND_PHASES strategy=mesh_first mesh_ms=3 recent_ms=1 total=12
func Emit(ctx context.Context, log *logging.Logger, marker Marker, fields ...Field) {
	log.Info(ctx, render(marker, fields))
}

func render(marker Marker, fields []Field) string {
	var b strings.Builder
	b.WriteString(string(marker))
	for _, f := range fields {
		b.WriteByte(' ')
		b.WriteString(f.Key)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", f.Value)
	}
	return b.String()
}

// Stopwatch accumulates named phase durations for later emission as a
// single trace line, matching how PEER_FIND_PHASES and
// SYNC_PHASE_BREAKDOWN each report several sub-timings at once.
type Stopwatch struct {
	start  time.Time
	phases map[string]time.Duration
	order  []string
}

// NewStopwatch starts a stopwatch at the current instant.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{start: time.Now(), phases: make(map[string]time.Duration)}
}

// Lap records the elapsed time since the last Lap (or start) under name.
func (s *Stopwatch) Lap(name string) {
	now := time.Now()
	s.phases[name] = now.Sub(s.start)
	s.order = append(s.order, name)
	s.start = now
}

// Fields renders the recorded laps as trace Fields, each value in
// milliseconds, plus a trailing total_ms summing all laps.
func (s *Stopwatch) Fields() Fields {
	fields := make(Fields, 0, len(s.order)+1)
	var total time.Duration
	for _, name := range s.order {
		d := s.phases[name]
		total += d
		fields = append(fields, F(name+"_ms", d.Milliseconds()))
	}
	fields = append(fields, F("total_ms", total.Milliseconds()))
	return fields
}

// sortedKeys returns m's keys in ascending order. Nothing in the module
// calls it.
func sortedKeys(m map[string]time.Duration) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
