// Package buffer provides the in-memory accumulator shared between
// ingestion callers and the flush actor. Append never waits on I/O and
// Drain is a constant-time swap, so a slow upload can never backpressure
// the application's logging call sites.
package buffer

import (
	"sync"
	"sync/atomic"
	"time"
)

// Batch is the contents handed out by a Drain: the serialized lines, how
// many records they hold, and when the first record arrived.
type Batch struct {
	Data      []byte
	Records   int
	CreatedAt time.Time
}

// Buffer accumulates serialized log lines. Any number of goroutines may
// Append concurrently; exactly one flush actor calls Drain.
//
// The byte limit is advisory: an append that crosses it signals the
// threshold channel rather than blocking or rejecting, so the buffer may
// transiently overshoot until the next drain.
type Buffer struct {
	mu        sync.Mutex
	data      []byte
	records   int
	createdAt time.Time

	size      atomic.Int64
	threshold int64
	notify    chan struct{}
}

// New creates a buffer. threshold <= 0 disables the size trigger.
func New(threshold int64) *Buffer {
	return &Buffer{
		threshold: threshold,
		notify:    make(chan struct{}, 1),
	}
}

// Append adds one serialized record. It completes in bounded time
// independent of flush activity and never fails.
func (b *Buffer) Append(line []byte) {
	b.mu.Lock()
	if len(b.data) == 0 {
		b.createdAt = time.Now()
	}
	b.data = append(b.data, line...)
	b.records++
	size := int64(len(b.data))
	// The swap stays under the mutex so it cannot interleave with Drain's
	// reset and leave a stale advisory size behind.
	prev := b.size.Swap(size)
	b.mu.Unlock()

	if b.threshold > 0 && prev < b.threshold && size >= b.threshold {
		select {
		case b.notify <- struct{}{}:
		default:
		}
	}
}

// Drain atomically swaps the internal storage for an empty buffer and
// returns the previous contents. Safe to call concurrently with Append;
// the single flush actor is the only caller by construction.
func (b *Buffer) Drain() Batch {
	b.mu.Lock()
	batch := Batch{Data: b.data, Records: b.records, CreatedAt: b.createdAt}
	b.data = nil
	b.records = 0
	b.createdAt = time.Time{}
	b.size.Store(0)
	b.mu.Unlock()

	return batch
}

// Size returns the advisory byte size. It may be stale by the time a
// decision is acted on; the flush path tolerates that.
func (b *Buffer) Size() int64 {
	return b.size.Load()
}

// Threshold delivers at most one pending notification when the advisory
// size crosses the configured threshold.
func (b *Buffer) Threshold() <-chan struct{} {
	return b.notify
}
