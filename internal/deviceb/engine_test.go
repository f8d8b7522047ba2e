// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deviceb

import (
	"bufio"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/internal/streamio"
)

// fakeDevice answers every recognized request line with a canned
// response of the same type, simulating just enough of a real Device-B
// analyzer to exercise Engine's init sequence, heartbeat and readings
// pipeline.
type fakeDevice struct {
	commandsR  *bufio.Reader
	responsesW io.Writer
	ppm        string
}

func (d *fakeDevice) run() {
	for {
		line, err := d.commandsR.ReadString('\n')
		if err != nil {
			return
		}
		msg, ok := ParseLine(trimCRLF(line))
		if !ok {
			continue
		}
		var resp []byte
		switch msg.Type {
		case TypeFidReading:
			resp = Encode(TypeFidReading, "CALPPM", d.ppm)
		default:
			resp = Encode(msg.Type)
		}
		_, _ = d.responsesW.Write(resp)
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func newLoopbackEngine(t *testing.T, sink events.Sink) (*Engine, func()) {
	t.Helper()
	commandsR, commandsW := io.Pipe()
	responsesR, responsesW := io.Pipe()

	device := &fakeDevice{commandsR: bufio.NewReader(commandsR), responsesW: responsesW, ppm: "5.00"}
	go device.run()

	stream := streamio.NewByteStream(responsesR, commandsW)
	engine := NewEngine(stream, sink, WithTimeout(200*time.Millisecond))

	cleanup := func() {
		_ = commandsR.Close()
		_ = commandsW.Close()
		_ = responsesR.Close()
		_ = responsesW.Close()
	}
	return engine, cleanup
}

func TestEngine_StartRunsInitSequence(t *testing.T) {
	engine, cleanup := newLoopbackEngine(t, events.Sink{})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, engine.Start(ctx))
	engine.Shutdown()
}

func TestEngine_IgniteSendsAigs(t *testing.T) {
	engine, cleanup := newLoopbackEngine(t, events.Sink{})
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, engine.Start(ctx))
	defer engine.Shutdown()

	require.NoError(t, engine.Ignite(ctx))
}

func TestEngine_HeartbeatKeepsCorrelatorAlive(t *testing.T) {
	errs := make(chan *events.EngineError, 8)
	sink := events.Sink{OnError: func(e *events.EngineError) { errs <- e }}

	engine, cleanup := newLoopbackEngine(t, sink)
	defer cleanup()
	engine.timeout = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, engine.Start(ctx))
	defer engine.Shutdown()

	select {
	case e := <-errs:
		t.Fatalf("unexpected error from heartbeat: %v", e)
	case <-time.After(1200 * time.Millisecond):
		// No heartbeat timeout fired within more than one heartbeat
		// interval: the fake device is answering CHEK.
	}
}
