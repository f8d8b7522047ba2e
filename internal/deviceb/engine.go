// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deviceb

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/internal/streamio"
)

// Engine drives one Device-B byte-stream connection: a sender worker, a
// receiver worker, and a heartbeat worker, coordinated by a shared
// shutdown flag.
type Engine struct {
	stream      streamio.ByteStream
	correlator  *Correlator
	readings    *Readings
	queue       *streamio.OutboundQueue
	senderBrk   *streamio.FaultBreaker
	receiverBrk *streamio.FaultBreaker
	sink        events.Sink
	log         *logrus.Entry

	timeout time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	shutdown bool

	wg sync.WaitGroup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithTimeout overrides the default per-request correlation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger attaches a logrus entry used for all engine diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates a Device-B engine over stream, emitting events to
// sink. Start must be called to bring the connection up.
func NewEngine(stream streamio.ByteStream, sink events.Sink, opts ...Option) *Engine {
	e := &Engine{
		stream:      stream,
		correlator:  NewCorrelator(),
		readings:    &Readings{},
		queue:       streamio.NewOutboundQueue(),
		senderBrk:   streamio.NewFaultBreaker("deviceb:sender"),
		receiverBrk: streamio.NewFaultBreaker("deviceb:receiver"),
		sink:        sink,
		log:         logrus.WithField("engine", "deviceb"),
		timeout:     DefaultTimeout,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the sender and receiver workers, runs the
// initialization sequence over them, then launches the heartbeat
// worker.
func (e *Engine) Start(ctx context.Context) error {
	e.wg.Add(1)
	go e.runReceiver()

	e.wg.Add(1)
	go e.runSender()

	if err := e.initialize(ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.runHeartbeat(ctx)

	return nil
}

// initialize sets the device clock and disables all four periodic
// reading streams so the engine alone controls the pace of incoming
// readings, then lets the heartbeat worker keep the link alive. Setting
// the clock is fire-and-forget: the device does not reliably ack a
// clock set, so Start does not block construction waiting on a TIME
// reply.
func (e *Engine) initialize(ctx context.Context) error {
	if err := e.SetTime(ctx, time.Now()); err != nil {
		return err
	}
	for _, typ := range []string{TypeFidReading, TypeReading, TypeDriveLevels, TypeBattery} {
		if err := e.disablePeriodicStream(ctx, typ); err != nil {
			return err
		}
	}
	return nil
}

// disablePeriodicStream turns off periodic reporting for one reading
// type via PRPT TYPE=<readingType>,ON=0; the device acks with an
// echoed PRPT line.
func (e *Engine) disablePeriodicStream(ctx context.Context, readingType string) error {
	line := Encode(TypePeriodicRpt, "TYPE", readingType, "ON", "0")
	_, err := e.correlator.SendAndReceive(ctx, TypePeriodicRpt, TypePeriodicRpt, line, e.submit, e.timeout)
	return err
}

// RequestSingleReport issues a one-shot SRPT request for readingType.
// Per the wire protocol, a command issued as SRPT TYPE=X gets an
// effective response type of X, not SRPT: a successful reply and any
// device-reported error both carry that type, so both the request and
// reply correlation key on readingType.
func (e *Engine) RequestSingleReport(ctx context.Context, readingType string) (*Message, error) {
	line := Encode(TypeStatusRpt, "TYPE", readingType)
	return e.correlator.SendAndReceive(ctx, readingType, readingType, line, e.submit, e.timeout)
}

func (e *Engine) submit(line []byte) error {
	e.queue.Enqueue(line)
	return nil
}

// runReceiver owns the read side of the stream: one byte in, decoded
// lines out to the correlator and the readings pipeline.
func (e *Engine) runReceiver() {
	defer e.wg.Done()
	dec := NewDecoder()
	for {
		if e.isShuttingDown() {
			return
		}
		b, err := e.stream.ReadByte()
		if err != nil {
			if guardErr := e.receiverBrk.Guard(func() error { return err }); guardErr != nil {
				e.sink.EmitError(events.KindTransportFault, "read failed", err)
				if e.receiverBrk.ReconnectNeeded() {
					e.sink.EmitError(events.KindReconnectNeeded, "too many consecutive read faults", nil)
					e.triggerShutdown()
					return
				}
			}
			continue
		}
		_ = e.receiverBrk.Guard(func() error { return nil })

		result := dec.DecodeByte(b)
		switch {
		case result.GaveUp:
			e.sink.EmitError(events.KindMalformedFrame, "gave up resyncing after consecutive unrecognized lines", nil)
		case result.Message != nil:
			e.onMessage(*result.Message)
		}
	}
}

func (e *Engine) onMessage(msg Message) {
	e.correlator.OnMessage(msg)

	switch msg.Type {
	case TypeFidReading, TypeReading, TypeDriveLevels, TypeBattery:
		e.readings.Apply(msg)
		if msg.Type != e.readings.CurrentWinner() {
			// A lower-priority stream arrived, but a higher-priority one
			// already has a value this tick; that one already reported.
			return
		}
		ppm, _, ok := e.readings.PPM()
		if ok {
			e.sink.EmitDataPolled(e.readings.Project(), ppm)
		}
	case TypeShutdown:
		e.sink.EmitCommandError(events.CmdShutdown, "device announced shutdown")
	case TypeError, TypeSevereError:
		text := DescribeError(msg.Params["CODE"], msg.Params["WUTM"])
		e.sink.EmitCommandError(events.CmdMessage, text)
		if msg.Params["TYPE"] == TypeIgnition {
			e.sink.EmitCommandError(events.CmdAutoIgnitionSequence, text)
		}
	}
}

// runSender owns the write side of the stream, draining the outbound
// queue paced by its rate limiter.
func (e *Engine) runSender() {
	defer e.wg.Done()
	for {
		if e.isShuttingDown() && e.queue.IsEmpty() {
			return
		}
		line, ok := e.queue.Dequeue()
		if !ok {
			time.Sleep(streamio.PollInterval)
			continue
		}
		if err := e.senderBrk.Guard(func() error { return e.stream.Write(line) }); err != nil {
			e.sink.EmitError(events.KindTransportFault, "write failed", err)
			if e.senderBrk.ReconnectNeeded() {
				e.sink.EmitError(events.KindReconnectNeeded, "too many consecutive write faults", nil)
				e.triggerShutdown()
				return
			}
		}
	}
}

// runHeartbeat sends a CHEK probe every heartbeatInterval to keep the
// device from treating the link as idle.
func (e *Engine) runHeartbeat(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		if e.isShuttingDown() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := e.correlator.SendAndReceive(ctx, TypeCheck, TypeCheck, Encode(TypeCheck), e.submit, e.timeout)
			if err != nil {
				e.sink.EmitError(events.KindTimeout, "heartbeat check failed", err)
			}
		}
	}
}

// Ignite issues AIGS GO=1. Fire-and-forget: the line is queued and
// Ignite returns without awaiting a correlated reply; failures surface
// later as a spontaneous EROR/SERR TYPE=AIGS, handled in onMessage.
func (e *Engine) Ignite(ctx context.Context) error {
	return e.submit(Encode(TypeIgnition, "GO", "1"))
}

// AbortIgnite issues AIGS GO=0. Fire-and-forget, like Ignite.
func (e *Engine) AbortIgnite(ctx context.Context) error {
	return e.submit(Encode(TypeIgnition, "GO", "0"))
}

// GetFirmwareVersion issues VERS and returns the device's reported
// version string.
func (e *Engine) GetFirmwareVersion(ctx context.Context) (string, error) {
	msg, err := e.correlator.SendAndReceive(ctx, TypeVersion, TypeVersion, Encode(TypeVersion), e.submit, e.timeout)
	if err != nil {
		return "", err
	}
	return msg.Params["V"], nil
}

// SetTime sets the device clock to t in UTC, formatted
// yyyy/MM/dd_HH:mm:ss, the same zone GetTime parses it back in. This is
// fire-and-forget: the line is queued and SetTime returns without
// waiting for a TIME reply, since the device does not reliably ack a
// clock set.
func (e *Engine) SetTime(ctx context.Context, t time.Time) error {
	ts := t.UTC().Format("2006/01/02_15:04:05")
	return e.submit(Encode(TypeTime, "TS", ts))
}

// GetTime fetches the device clock.
func (e *Engine) GetTime(ctx context.Context) (time.Time, error) {
	msg, err := e.correlator.SendAndReceive(ctx, TypeTime, TypeTime, Encode(TypeTime), e.submit, e.timeout)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("2006/01/02_15:04:05", msg.Params["TS"])
}

// SetPeriodicReportingInterval sets the TRPT stream's period.
func (e *Engine) SetPeriodicReportingInterval(ctx context.Context, d time.Duration) error {
	ms := strconv.FormatInt(d.Milliseconds(), 10)
	_, err := e.correlator.SendAndReceive(ctx, TypeTimedRpt, TypeTimedRpt, Encode(TypeTimedRpt, "MS", ms), e.submit, e.timeout)
	return err
}

func (e *Engine) isShuttingDown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

// triggerShutdown sets the shutdown flag and wakes anything waiting on
// the shutdown condition, the same way Shutdown itself does, so that a
// worker which detects a dead link brings the whole engine down rather
// than leaving its sibling worker running unaware.
func (e *Engine) triggerShutdown() {
	e.mu.Lock()
	e.shutdown = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// Shutdown signals all workers to stop and blocks until the sender,
// receiver and heartbeat goroutines have all exited, pulsing the
// shutdown condition every shutdownPulseInterval.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.shutdown = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	ticker := time.NewTicker(shutdownPulseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.cond.Broadcast()
			e.mu.Unlock()
		}
	}
}
