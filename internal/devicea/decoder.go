// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import "time"

type decoderState int

const (
	waitSync decoderState = iota
	waitLen
	waitID
	waitData
)

// Decoder implements the Device-A response deframer: a 4-state machine
// consuming one byte at a time. It makes no CRC check on
// responses — the wire is assumed framed-correct once the declared
// length is satisfied; junk payloads are filtered semantically further
// up the stack (status.go), not at the framing layer.
type Decoder struct {
	state   decoderState
	frame   *Frame
	lenSeen byte
}

// NewDecoder creates a Device-A response decoder, starting in WAIT_SYNC.
func NewDecoder() *Decoder {
	return &Decoder{state: waitSync}
}

// DecodeByte feeds one byte into the decoder. It returns a completed
// frame once the declared length has been satisfied, or nil while a
// frame is still in progress. A malformed declared length resets the
// decoder back to WAIT_SYNC rather than erroring, matching the source's
// permissive resync behavior on a half-reliable link.
func (d *Decoder) DecodeByte(b byte) *Frame {
	switch d.state {
	case waitSync:
		if b == SyncResponse {
			d.frame = &Frame{Sync: b}
			d.lenSeen = 1
			d.state = waitLen
		}
		return nil

	case waitLen:
		if b < 3 {
			d.state = waitSync
			return nil
		}
		d.frame.Length = b
		d.state = waitID
		return nil

	case waitID:
		d.frame.CmdID = b
		// Remaining bytes after sync+length+cmd_id, minus the trailing
		// crc byte.
		payloadLen := int(d.frame.Length) - 3 - 1
		if payloadLen < 0 {
			payloadLen = 0
		}
		d.frame.Payload = make([]byte, 0, payloadLen)
		d.state = waitData
		return nil

	case waitData:
		total := 3 + len(d.frame.Payload) + 1 // sync+len+cmdid + payload-so-far + crc
		if total >= int(d.frame.Length) {
			// This byte is the crc.
			d.frame.CRC = b
			d.frame.Timestamp = time.Now()
			frame := d.frame
			d.state = waitSync
			d.frame = nil
			return frame
		}
		d.frame.Payload = append(d.frame.Payload, b)
		return nil

	default:
		d.state = waitSync
		return nil
	}
}
