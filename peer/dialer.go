package peer

import (
	"context"
	"sync"
	"time"

	libp2pPeer "github.com/libp2p/go-libp2p/core/peer"

	"github.com/sourcenetwork/syncore/errors"
)

// DefaultMaxConcurrentDials is the spec's default fan-out per sync
// attempt (spec §4.6).
const DefaultMaxConcurrentDials = 3

// DialFunc performs one dial attempt against a candidate, returning the
// live connection handle (opaque to this package) or an error. Supplied
// by transport/ wiring — this package never opens a socket itself.
type DialFunc func(ctx context.Context, rec Record) (conn any, err error)

// Attempt records one dial's outcome (spec §4.6: "{total_dial_ms,
// was_connected_initially, result}").
type Attempt struct {
	Peer                libp2pPeer.ID
	TotalDialMS         int64
	WasConnectedInitially bool
	Succeeded           bool
	Err                 error
}

// Tracker races concurrent dials across refilled candidate batches
// until one succeeds, the candidate set is exhausted, or ctx expires
// (spec §4.6).
type Tracker struct {
	mu          sync.Mutex
	maxConcurrent int
	dial        DialFunc
	onAttempt   func(Attempt, *Record)
}

// NewTracker builds a Tracker. maxConcurrent <= 0 uses
// DefaultMaxConcurrentDials.
func NewTracker(dial DialFunc, maxConcurrent int, onAttempt func(Attempt, *Record)) *Tracker {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentDials
	}
	return &Tracker{dial: dial, maxConcurrent: maxConcurrent, onAttempt: onAttempt}
}

// dialResult pairs a dial outcome with the candidate it came from, so
// the winning goroutine can update that record specifically.
type dialResult struct {
	rec  Record
	conn any
	err  error
	ms   int64
}

// DialUntilConnected races batches of up to maxConcurrent dials (first
// success wins, the rest are cancelled) against successive slices of
// candidates until one connects or candidates run out (spec §4.6).
func (t *Tracker) DialUntilConnected(ctx context.Context, candidates []Record) (any, *Record, error) {
	for len(candidates) > 0 {
		batchSize := t.maxConcurrent
		if batchSize > len(candidates) {
			batchSize = len(candidates)
		}
		batch := candidates[:batchSize]
		candidates = candidates[batchSize:]

		conn, winner, err := t.raceBatch(ctx, batch)
		if err == nil {
			return conn, winner, nil
		}
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
	}
	return nil, nil, errors.New("dial candidates exhausted without a successful connection")
}

// raceBatch dials every record in batch truly concurrently, returning
// the first success and cancelling the rest (spec §4.6: "first-success
// wins, losing futures are cancelled").
func (t *Tracker) raceBatch(ctx context.Context, batch []Record) (any, *Record, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan dialResult, len(batch))
	var wg sync.WaitGroup
	for _, rec := range batch {
		wg.Add(1)
		go func(rec Record) {
			defer wg.Done()
			start := time.Now()
			conn, err := t.dial(batchCtx, rec)
			elapsed := time.Since(start).Milliseconds()
			select {
			case results <- dialResult{rec: rec, conn: conn, err: err, ms: elapsed}:
			case <-batchCtx.Done():
			}
		}(rec)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for res := range results {
		rec := res.rec
		attempt := Attempt{
			Peer:                  rec.ID,
			TotalDialMS:           res.ms,
			WasConnectedInitially: rec.IsConnected,
			Succeeded:             res.err == nil,
			Err:                   res.err,
		}
		t.recordOutcome(attempt, &rec)
		if t.onAttempt != nil {
			t.onAttempt(attempt, &rec)
		}
		if res.err == nil {
			cancel()
			return res.conn, &rec, nil
		}
		lastErr = res.err
	}
	if lastErr == nil {
		lastErr = errors.New("dial batch produced no results")
	}
	return nil, nil, lastErr
}

// recordOutcome updates rec's RTT EMA on success or increments its
// failure streak (spec §4.6).
func (t *Tracker) recordOutcome(attempt Attempt, rec *Record) {
	sample := time.Duration(attempt.TotalDialMS) * time.Millisecond
	if attempt.Succeeded {
		if rec.RTTEstimate == 0 {
			rec.RTTEstimate = sample
		} else {
			rec.RTTEstimate = time.Duration((1-rttEMAAlpha)*float64(rec.RTTEstimate) + rttEMAAlpha*float64(sample))
		}
		rec.IsConnected = true
		rec.ConsecutiveFailures = 0
	} else {
		rec.ConsecutiveFailures++
	}
	rec.LastSeen = time.Now()
}
