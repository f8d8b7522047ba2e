// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cornelk/hashmap"

	"github.com/fidlink/fidlink/internal/events"
)

// entry tracks one outstanding command-id's correlation state. Device-A
// has no message sequence numbers, so correlation is last-message-wins:
// any response carrying this cmd_id overwrites the slot, even if it
// isn't the reply to the most recent send.
type entry struct {
	mu       sync.Mutex
	sentAt   time.Time
	response *Frame
}

func (e *entry) arm(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sentAt = at
	e.response = nil
}

func (e *entry) deliver(f *Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.response = f
}

func (e *entry) poll(after time.Time) *Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.response == nil {
		return nil
	}
	if e.response.Timestamp.Before(after) {
		return nil
	}
	return e.response
}

// Correlator matches outbound commands to inbound responses by cmd_id.
// It is safe for concurrent use by one sender and one receiver
// goroutine per Engine.
type Correlator struct {
	pending *hashmap.Map[byte, *entry]
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: hashmap.New[byte, *entry]()}
}

func (c *Correlator) entryFor(cmdID byte) *entry {
	e, _ := c.pending.GetOrInsert(cmdID, &entry{})
	return e
}

// OnFrame feeds an inbound response frame to the correlator. Called from
// the receiver goroutine for every decoded frame.
func (c *Correlator) OnFrame(f *Frame) {
	c.entryFor(f.CmdID).deliver(f)
}

// SendAndReceive arms the correlation slot for cmdID, writes frame via
// send, then polls every correlatorPollInterval for a response
// timestamped at or after the send, up to timeout.
func (c *Correlator) SendAndReceive(ctx context.Context, cmdID byte, frame []byte, send func([]byte) error, timeout time.Duration) (*Frame, error) {
	e := c.entryFor(cmdID)
	sentAt := time.Now()
	e.arm(sentAt)

	if err := send(frame); err != nil {
		return nil, events.NewEngineError(events.KindTransportFault, "write failed", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(correlatorPollInterval)
	defer ticker.Stop()

	for {
		if resp := e.poll(sentAt); resp != nil {
			return resp, nil
		}
		if time.Now().After(deadline) {
			return nil, events.NewEngineError(events.KindTimeout, fmt.Sprintf("no response to cmd 0x%02X within %s", cmdID, timeout), nil)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
