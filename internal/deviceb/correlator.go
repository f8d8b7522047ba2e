// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deviceb

import (
	"context"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/fidlink/fidlink/internal/events"
)

// slot is one entry in the bounded inbound buffer.
type slot struct {
	seq     int
	msg     Message
	handled bool
}

// InboundBuffer holds the most recent inboundBufferSlots messages seen
// on the wire, in arrival order, so SendAndReceive can scan for an
// unhandled reply of the right type without growing without bound. A
// separate table tracks the newest device-reported error per request
// type so a caller waiting on a reply can fail fast instead of timing
// out.
type InboundBuffer struct {
	mu      sync.Mutex
	seq     int
	entries *orderedmap.OrderedMap[int, *slot]

	errorsByType *hashmap.Map[string, Message]
}

// NewInboundBuffer creates an empty bounded inbound buffer.
func NewInboundBuffer() *InboundBuffer {
	return &InboundBuffer{
		entries:      orderedmap.New[int, *slot](),
		errorsByType: hashmap.New[string, Message](),
	}
}

// Push records an inbound message. If the message is an EROR/SERR with
// a TYPE param, it is also indexed into errorsByType, in addition to
// the bounded buffer, since errors are looked up by the request type
// they report on, not scanned for by arrival order.
func (b *InboundBuffer) Push(msg Message) {
	if msg.Type == TypeError || msg.Type == TypeSevereError {
		if reportedType, ok := msg.Params["TYPE"]; ok {
			b.errorsByType.Set(reportedType, msg)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.entries.Set(b.seq, &slot{seq: b.seq, msg: msg})
	for b.entries.Len() > inboundBufferSlots {
		oldest := b.entries.Oldest()
		if oldest == nil {
			break
		}
		b.entries.Delete(oldest.Key)
	}
}

// takeUnhandled scans for the oldest unhandled message of msgType
// timestamped at or after since, marks it handled, and returns it.
func (b *InboundBuffer) takeUnhandled(msgType string, since time.Time) *Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pair := b.entries.Oldest(); pair != nil; pair = pair.Next() {
		s := pair.Value
		if s.handled || s.msg.Type != msgType {
			continue
		}
		if s.msg.Timestamp.Before(since) {
			continue
		}
		s.handled = true
		msg := s.msg
		return &msg
	}
	return nil
}

// deviceError reports the newest device-reported error for requestType,
// if any arrived at or after since.
func (b *InboundBuffer) deviceError(requestType string, since time.Time) (Message, bool) {
	msg, ok := b.errorsByType.Get(requestType)
	if !ok || msg.Timestamp.Before(since) {
		return Message{}, false
	}
	return msg, true
}

// Correlator drives request/response correlation over an InboundBuffer.
type Correlator struct {
	buffer *InboundBuffer
}

// NewCorrelator creates a correlator with a fresh inbound buffer.
func NewCorrelator() *Correlator {
	return &Correlator{buffer: NewInboundBuffer()}
}

// OnMessage feeds an inbound message to the correlator. Called from the
// receiver goroutine for every decoded line.
func (c *Correlator) OnMessage(msg Message) {
	c.buffer.Push(msg)
}

// SendAndReceive writes line via send, then polls every
// correlatorPollInterval for a reply of replyType timestamped at or
// after the send, up to timeout. A device-reported EROR/SERR naming
// requestType fails the call immediately instead of waiting out the
// timeout.
func (c *Correlator) SendAndReceive(ctx context.Context, requestType, replyType string, line []byte, send func([]byte) error, timeout time.Duration) (*Message, error) {
	sentAt := time.Now()
	if err := send(line); err != nil {
		return nil, events.NewEngineError(events.KindTransportFault, "write failed", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(correlatorPollInterval)
	defer ticker.Stop()

	for {
		if msg := c.buffer.takeUnhandled(replyType, sentAt); msg != nil {
			return msg, nil
		}
		if errMsg, ok := c.buffer.deviceError(requestType, sentAt); ok {
			code := errMsg.Params["CODE"]
			return nil, events.NewEngineError(events.KindDeviceReported, DescribeError(code, errMsg.Params["WUTM"]), nil)
		}
		if time.Now().After(deadline) {
			return nil, events.NewEngineError(events.KindTimeout, "no reply type "+replyType+" within "+timeout.String(), nil)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
