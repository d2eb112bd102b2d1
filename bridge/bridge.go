// Package bridge implements the network event bridge (spec §4.7): a
// bounded single-producer-single-consumer queue separating the
// transport thread from the node manager, with explicit drop counting
// instead of silent backpressure loss.
package bridge

import (
	"context"
	"sync/atomic"

	"github.com/sourcenetwork/syncore/logging"
)

// DefaultCapacity is the bridge's default queue size (spec §4.7).
const DefaultCapacity = 1000

// highWatermarkRatio is the capacity fraction at which Dispatch logs a
// warning even on successful enqueue (spec §4.7: "emitting a warning at
// >= 80% capacity").
const highWatermarkRatio = 0.8

// Bridge is a bounded SPSC queue of opaque network events. Event is
// left as `any` deliberately: this package has no opinion on message
// shape, only on backpressure (the wire package defines the concrete
// event types that flow through it).
type Bridge struct {
	events   chan any
	capacity int
	dropped  atomic.Int64
	log      *logging.Logger
}

// New builds a Bridge with the given capacity (<= 0 uses
// DefaultCapacity).
func New(capacity int, log *logging.Logger) *Bridge {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Bridge{events: make(chan any, capacity), capacity: capacity, log: log}
}

// Dispatch enqueues event without blocking. Returns false and
// increments the drop counter if the queue is full (spec §4.7:
// "dispatch(event) -> bool").
func (b *Bridge) Dispatch(ctx context.Context, event any) bool {
	select {
	case b.events <- event:
		if occupied := len(b.events); float64(occupied) >= highWatermarkRatio*float64(b.capacity) {
			b.log.Warn(ctx, "event bridge at or above high watermark",
				logging.NewKV("Occupied", occupied), logging.NewKV("Capacity", b.capacity))
		}
		return true
	default:
		b.dropped.Add(1)
		b.log.Warn(ctx, "event bridge full, dropping event", logging.NewKV("Dropped", b.dropped.Load()))
		return false
	}
}

// Dropped returns the number of events dropped for overflow so far.
func (b *Bridge) Dropped() int64 {
	return b.dropped.Load()
}

// Consumer drains the bridge and forwards each event to handle, until
// ctx is cancelled or the bridge is closed (spec §4.7: "a dedicated
// consumer task drains the queue").
func (b *Bridge) Consumer(ctx context.Context, handle func(context.Context, any)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-b.events:
			if !ok {
				return
			}
			handle(ctx, event)
		}
	}
}

// Close stops accepting new events. Dispatch on a closed Bridge panics,
// matching the teacher's closeJob-signalled channel-close idiom — callers
// must stop dispatching before calling Close.
func (b *Bridge) Close() {
	close(b.events)
}
