// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streamio

import (
	"context"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"golang.org/x/time/rate"
)

// defaultQueueCapacity bounds the outbound queue. Overflow drops the
// oldest pending frame rather than blocking a caller indefinitely — a
// command that has waited behind this many others is stale anyway.
const defaultQueueCapacity = 64

// defaultWriteRate paces drains of the queue onto the wire. This
// generalizes the inter-chunk delay the BLE transport example inserts
// between writes to avoid overrunning a device's small RX buffer into a
// steady token-bucket shared by every outbound caller (SendAndReceive,
// the periodic poller, Ignite, Goodbye/AIGS).
const defaultWriteRate = 50 // frames/sec

// OutboundQueue is the engine's SPMC/MPSC outbound frame queue: many
// goroutines enqueue (command callers, the periodic poller, fire-and-
// forget operations); exactly one sender worker drains it onto the
// ByteStream.
type OutboundQueue struct {
	buf     mpmc.RichOverlappedRingBuffer[[]byte]
	limiter *rate.Limiter
}

// NewOutboundQueue creates an outbound queue with the default capacity
// and write pacing.
func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{
		buf:     mpmc.NewOverlappedRingBuffer[[]byte](defaultQueueCapacity),
		limiter: rate.NewLimiter(rate.Limit(defaultWriteRate), 1),
	}
}

// Enqueue adds frame to the queue. If the queue is full, the oldest
// pending frame is silently dropped in favor of this one (drop-oldest
// semantics, per the overlapped ring buffer's design).
func (q *OutboundQueue) Enqueue(frame []byte) {
	_, _ = q.buf.EnqueueM(frame)
}

// Dequeue removes the next queued frame, then blocks (via the rate
// limiter) until it is safe to send it, and returns it. ok is false if
// the queue was empty.
func (q *OutboundQueue) Dequeue() (frame []byte, ok bool) {
	if q.buf.IsEmpty() {
		return nil, false
	}
	frame, err := q.buf.Dequeue()
	if err != nil {
		return nil, false
	}
	_ = q.limiter.Wait(context.Background())
	return frame, true
}

// IsEmpty reports whether the queue currently has nothing pending.
func (q *OutboundQueue) IsEmpty() bool {
	return q.buf.IsEmpty()
}

// PollInterval is how long the sender worker sleeps between empty-queue
// checks; kept short enough that Shutdown's 500ms pulse still sees a
// drained, exited sender promptly.
const PollInterval = 20 * time.Millisecond
