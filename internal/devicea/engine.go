// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/internal/streamio"
)

// Engine drives one Device-A byte-stream connection: a sender worker, a
// receiver worker, and a periodic poller, coordinated by a shared
// shutdown flag. There is no heartbeat worker on this side of
// the split; only Device-B's newer protocol needs one.
type Engine struct {
	stream      streamio.ByteStream
	correlator  *Correlator
	controller  *Controller
	queue       *streamio.OutboundQueue
	senderBrk   *streamio.FaultBreaker
	receiverBrk *streamio.FaultBreaker
	sink        events.Sink
	log         *logrus.Entry

	pollInterval time.Duration
	timeout      time.Duration

	mu          sync.Mutex
	cond        *sync.Cond
	shutdown    bool
	goodbyeSent bool

	wg sync.WaitGroup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPollInterval overrides the default periodic READ_DATA_EXTENDED
// polling cadence.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithTimeout overrides the default per-command correlation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLogger attaches a logrus entry used for all engine diagnostics.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine creates a Device-A engine over stream, emitting events to
// sink. Start must be called to bring the connection up.
func NewEngine(stream streamio.ByteStream, sink events.Sink, opts ...Option) *Engine {
	e := &Engine{
		stream:       stream,
		correlator:   NewCorrelator(),
		controller:   NewController(),
		queue:        streamio.NewOutboundQueue(),
		senderBrk:    streamio.NewFaultBreaker("devicea:sender"),
		receiverBrk:  streamio.NewFaultBreaker("devicea:receiver"),
		sink:         sink,
		log:          logrus.WithField("engine", "devicea"),
		pollInterval: DefaultPollingInterval,
		timeout:      DefaultTimeout,
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the sender and receiver workers, runs the
// initialization sequence over them, then launches the polling worker.
// It returns once initialization either succeeds or exhausts its
// retries.
func (e *Engine) Start(ctx context.Context) error {
	e.wg.Add(1)
	go e.runReceiver()

	e.wg.Add(1)
	go e.runSender()

	if err := e.initialize(ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.runPoller(ctx)

	return nil
}

// initialize runs the fixed 4-step setup sequence: select LO range,
// configure hardware integration at the low averaging window, set the
// deadhead protection parameters, then set the H2 pressure calibration
// compensation. Each step is retried up to initRetryAttempts times,
// initRetryDelay apart.
func (e *Engine) initialize(ctx context.Context) error {
	steps := []func() error{
		func() error {
			_, err := e.sendAndReceive(ctx, CmdSetSamplingParameters, EncodeSetSamplingParameters(RangeLO))
			return err
		},
		func() error {
			_, err := e.sendAndReceive(ctx, CmdIntegrationControl, EncodeIntegrationControl(IntegrationControlParams{
				ChargeMultiplier:  initChargeMultiplier,
				Range:             initIntegrationRange,
				IntegrationTimeUs: initIntegrationTimeUs,
				SamplesToAvg:      hwAvgLow,
			}))
			return err
		},
		func() error {
			_, err := e.sendAndReceive(ctx, CmdSetDeadheadParams, EncodeSetDeadheadParams(
				initDeadheadEnable, initDeadheadPressureLimitPSI, initDeadheadTimeoutMs))
			return err
		},
		func() error {
			_, err := e.sendAndReceive(ctx, CmdSetCalH2PresCompensation, EncodeSetCalH2PresCompensation(
				initCalH2PresPosPerThousand, initCalH2PresNegPerThousand))
			return err
		},
	}
	for _, step := range steps {
		if err := streamio.Retry(initRetryAttempts, initRetryDelay, step); err != nil {
			return err
		}
	}
	return nil
}

// sendAndReceive hands frame to the sender worker and waits for its correlated
// response.
func (e *Engine) sendAndReceive(ctx context.Context, cmdID byte, frame []byte) (*Frame, error) {
	return e.correlator.SendAndReceive(ctx, cmdID, frame, func(f []byte) error {
		e.queue.Enqueue(f)
		return nil
	}, e.timeout)
}

// enqueue pushes frame directly onto the outbound queue without arming
// the correlator, for commands issued fire-and-forget.
func (e *Engine) enqueue(frame []byte) error {
	e.queue.Enqueue(frame)
	return nil
}

// runReceiver owns the read side of the stream for the engine's
// lifetime: one byte in, decoded frames out to the correlator.
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
				if e.isGoodbyeSent() {
					continue
				}
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
		if frame := dec.DecodeByte(b); frame != nil {
			e.correlator.OnFrame(frame)
		}
	}
}

// runSender owns the write side of the stream: it drains the outbound
// queue, paced by the queue's own rate limiter, so every writer
// (SendAndReceive callers, the poller, Ignite, Goodbye) shares one
// serialized path onto the wire.
func (e *Engine) runSender() {
	defer e.wg.Done()
	for {
		if e.isShuttingDown() && e.queue.IsEmpty() {
			return
		}
		frame, ok := e.queue.Dequeue()
		if !ok {
			time.Sleep(streamio.PollInterval)
			continue
		}
		if err := e.senderBrk.Guard(func() error { return e.stream.Write(frame) }); err != nil {
			if e.isGoodbyeSent() {
				continue
			}
			e.sink.EmitError(events.KindTransportFault, "write failed", err)
			if e.senderBrk.ReconnectNeeded() {
				e.sink.EmitError(events.KindReconnectNeeded, "too many consecutive write faults", nil)
				e.triggerShutdown()
				return
			}
		}
	}
}

// runPoller issues READ_DATA_EXTENDED on pollInterval, feeds every
// response through the Controller, and emits DataPolled plus any
// resulting control commands.
func (e *Engine) runPoller(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		if e.isShuttingDown() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.poll(ctx)
		}
	}
}

func (e *Engine) poll(ctx context.Context) {
	resp, err := e.sendAndReceive(ctx, CmdReadDataExtended, EncodeReadDataExtended())
	if err != nil {
		e.sink.EmitError(events.KindTimeout, "poll timed out", err)
		return
	}
	raw, err := DecodeRawStatus(resp.Payload)
	if err != nil {
		e.sink.EmitError(events.KindSuspectData, "malformed status payload", err)
		return
	}
	status, pending := e.controller.Update(raw)
	if status.JunkDataCount > 0 {
		// Rejected by the junk filter: not reported; the next tick polls again.
		e.log.WithField("junkDataCount", status.JunkDataCount).Debug("discarding implausible status sample")
		return
	}
	for _, cmd := range pending {
		e.log.WithField("reason", cmd.Reason).Debug("issuing control command")
		e.queue.Enqueue(cmd.Frame)
	}
	if status.PumpSafetyTripped {
		e.sink.EmitError(events.KindSuspectData, "pump safety cutoff: ignited with pump power at or above threshold", nil)
	}
	e.sink.EmitDataPolled(Project(status), status.ReportedPPM)
}

// Ignite issues AUTO_IGNITION_SEQUENCE with start=1 using the fixed
// ignition recipe. Fire-and-forget: the frame is queued and Ignite
// returns without awaiting a correlated reply.
func (e *Engine) Ignite(ctx context.Context) error {
	return e.enqueue(EncodeAutoIgnitionSequence(DefaultIgnitionRecipe, true, false))
}

// AbortIgnite issues AUTO_IGNITION_SEQUENCE with start=0 to cancel an
// in-progress ignition attempt. Fire-and-forget, like Ignite.
func (e *Engine) AbortIgnite(ctx context.Context) error {
	return e.enqueue(EncodeAutoIgnitionSequence(DefaultIgnitionRecipe, false, false))
}

// GetFirmwareVersion issues CONFIGURATION_READ and returns the raw reply
// payload for the caller to interpret.
func (e *Engine) GetFirmwareVersion(ctx context.Context) ([]byte, error) {
	resp, err := e.sendAndReceive(ctx, CmdConfigurationRead, EncodeConfigurationRead())
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// SendGoodbye issues GOODBYE, telling the device this engine is about to
// disconnect, and enqueues it without awaiting a reply: once sent, the
// link is expected to go away, so the sender/receiver workers stop
// surfacing transport faults as errors.
func (e *Engine) SendGoodbye(ctx context.Context) error {
	e.mu.Lock()
	e.goodbyeSent = true
	e.mu.Unlock()
	return e.enqueue(EncodeGoodbye())
}

func (e *Engine) isShuttingDown() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown
}

func (e *Engine) isGoodbyeSent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goodbyeSent
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

// Shutdown signals all workers to stop, waking anything waiting on the
// shutdown condition every shutdownPulseInterval, and blocks until the
// sender, receiver and poller goroutines have all exited.
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
