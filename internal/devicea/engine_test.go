// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

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

// fakeDevice reads Device-A command frames off commandsR and answers each
// one with a canned response on responsesW, simulating just enough of a
// real analyzer to exercise Engine's init sequence and polling loop.
type fakeDevice struct {
	commandsR  *bufio.Reader
	responsesW io.Writer
}

func (d *fakeDevice) run(t *testing.T, ppm float64) {
	for {
		cmdID, payloadLen, ok := d.readCommandHeader()
		if !ok {
			return
		}
		payload := make([]byte, payloadLen)
		for i := range payload {
			b, err := d.commandsR.ReadByte()
			if err != nil {
				return
			}
			payload[i] = b
		}
		if _, err := d.commandsR.ReadByte(); err != nil { // crc byte, unchecked
			return
		}

		switch cmdID {
		case CmdReadDataExtended:
			status := buildRawStatusPayloadWithTemp(t, FlagSolenoidA|FlagPumpA, RangeLO, 13.0, 100, 0, ppm, 200.0)
			_, _ = d.responsesW.Write(encodeResponse(CmdReadDataExtended, status))
		default:
			_, _ = d.responsesW.Write(encodeResponse(cmdID, nil))
		}
	}
}

// readCommandHeader scans for a command-sync byte, then returns the
// cmd_id and declared payload length for that frame.
func (d *fakeDevice) readCommandHeader() (cmdID byte, payloadLen int, ok bool) {
	for {
		b, err := d.commandsR.ReadByte()
		if err != nil {
			return 0, 0, false
		}
		if b == SyncCommand {
			break
		}
	}
	length, err := d.commandsR.ReadByte()
	if err != nil {
		return 0, 0, false
	}
	id, err := d.commandsR.ReadByte()
	if err != nil {
		return 0, 0, false
	}
	n := int(length) - 3 - 1
	if n < 0 {
		n = 0
	}
	return id, n, true
}

func newLoopbackEngine(t *testing.T, sink events.Sink) (*Engine, func()) {
	t.Helper()
	commandsR, commandsW := io.Pipe()
	responsesR, responsesW := io.Pipe()

	device := &fakeDevice{commandsR: bufio.NewReader(commandsR), responsesW: responsesW}
	go device.run(t, 10.0)

	stream := streamio.NewByteStream(responsesR, commandsW)
	engine := NewEngine(stream, sink, WithPollInterval(10*time.Millisecond), WithTimeout(200*time.Millisecond))

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

	err := engine.Start(ctx)
	require.NoError(t, err)
	engine.Shutdown()
}

func TestEngine_PollEmitsDataPolled(t *testing.T) {
	polled := make(chan events.DataPolled, 8)
	sink := events.Sink{OnDataPolled: func(d events.DataPolled) { polled <- d }}

	engine, cleanup := newLoopbackEngine(t, sink)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, engine.Start(ctx))
	defer engine.Shutdown()

	select {
	case d := <-polled:
		require.InDelta(t, 10.0, d.PPM, 0.5)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DataPolled")
	}
}
