// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoder_RoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	wire := encodeResponse(CmdReadDataExtended, payload)

	dec := NewDecoder()
	var got *Frame
	for _, b := range wire {
		if f := dec.DecodeByte(b); f != nil {
			got = f
		}
	}
	require.NotNil(t, got)
	require.Equal(t, SyncResponse, got.Sync)
	require.Equal(t, CmdReadDataExtended, got.CmdID)
	require.Equal(t, payload, got.Payload)
	require.Equal(t, wire[len(wire)-1], got.CRC)
}

func TestDecoder_EmptyPayload(t *testing.T) {
	wire := encodeResponse(CmdGoodbye, nil)
	dec := NewDecoder()
	var got *Frame
	for _, b := range wire {
		if f := dec.DecodeByte(b); f != nil {
			got = f
		}
	}
	require.NotNil(t, got)
	require.Empty(t, got.Payload)
}

func TestDecoder_ResyncsOnJunkBeforeSync(t *testing.T) {
	wire := encodeResponse(CmdReadDataExtended, []byte{0x09})
	noise := append([]byte{0x00, 0xFF, 0x10}, wire...)

	dec := NewDecoder()
	var got *Frame
	for _, b := range noise {
		if f := dec.DecodeByte(b); f != nil {
			got = f
		}
	}
	require.NotNil(t, got)
	require.Equal(t, []byte{0x09}, got.Payload)
}

func TestDecoder_MalformedLengthResets(t *testing.T) {
	dec := NewDecoder()
	require.Nil(t, dec.DecodeByte(SyncResponse))
	require.Nil(t, dec.DecodeByte(0x01)) // declared length < 3: malformed

	wire := encodeResponse(CmdGoodbye, nil)
	var got *Frame
	for _, b := range wire {
		if f := dec.DecodeByte(b); f != nil {
			got = f
		}
	}
	require.NotNil(t, got, "decoder should resync and decode a well-formed frame after a malformed length")
}

func TestDecoder_MultipleFramesBackToBack(t *testing.T) {
	first := encodeResponse(CmdSetSamplingParameters, []byte{byte(RangeLO)})
	second := encodeResponse(CmdIntegrationControl, []byte{0x01, 0x02})
	wire := append(append([]byte{}, first...), second...)

	dec := NewDecoder()
	var frames []*Frame
	for _, b := range wire {
		if f := dec.DecodeByte(b); f != nil {
			frames = append(frames, f)
		}
	}
	require.Len(t, frames, 2)
	require.Equal(t, CmdSetSamplingParameters, frames[0].CmdID)
	require.Equal(t, CmdIntegrationControl, frames[1].CmdID)
}
