// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streamio

import (
	"bytes"
	"testing"
)

func TestByteStream_RoundTrip(t *testing.T) {
	var out bytes.Buffer
	in := bytes.NewReader([]byte{0x01, 0x02, 0x03})

	bs := NewByteStream(in, &out)

	for i, want := range []byte{0x01, 0x02, 0x03} {
		b, err := bs.ReadByte()
		if err != nil {
			t.Fatalf("byte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("byte %d: got 0x%02X want 0x%02X", i, b, want)
		}
	}
	if bs.BytesRead() != 3 {
		t.Errorf("BytesRead() = %d, want 3", bs.BytesRead())
	}

	if err := bs.Write([]byte{0xAA, 0xBB}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if bs.BytesWritten() != 2 {
		t.Errorf("BytesWritten() = %d, want 2", bs.BytesWritten())
	}
	if !bytes.Equal(out.Bytes(), []byte{0xAA, 0xBB}) {
		t.Errorf("wrote %v, want [0xAA 0xBB]", out.Bytes())
	}
}

func TestByteStream_Since(t *testing.T) {
	bs := NewByteStream(bytes.NewReader(nil), &bytes.Buffer{})
	if bs.Since() < 0 {
		t.Error("Since() should be non-negative immediately after construction")
	}
}
