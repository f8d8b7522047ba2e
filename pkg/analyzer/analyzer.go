// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package analyzer is the small public facade over the two protocol
// engines (internal/devicea, internal/deviceb). Consumers construct an
// Engine for whichever generation of device they're talking to and
// drive it over an abstract byte stream; this package owns no
// transport, logging or persistence of its own.
package analyzer

import (
	"context"
	"io"
	"time"

	"github.com/fidlink/fidlink/internal/devicea"
	"github.com/fidlink/fidlink/internal/deviceb"
	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/internal/streamio"
)

// Re-exported event types, so callers never need to import the internal
// packages directly.
type (
	DataPolled       = events.DataPolled
	EngineError      = events.EngineError
	ErrorKind        = events.ErrorKind
	CommandError     = events.CommandError
	CommandErrorKind = events.CommandErrorKind
	Sink             = events.Sink
	Properties       = events.Properties
)

// Engine is the common surface both generations of device expose.
type Engine interface {
	Start(ctx context.Context) error
	Shutdown()
	Ignite(ctx context.Context) error
	AbortIgnite(ctx context.Context) error
}

// NewByteStream wraps a pair of raw io.Reader/io.Writer handles (a
// serial port, a WebSocket bridge, anything byte-oriented) as the
// abstract transport both engines consume.
func NewByteStream(r io.Reader, w io.Writer) streamio.ByteStream {
	return streamio.NewByteStream(r, w)
}

// NewDeviceA creates an engine for the older-generation binary-protocol
// analyzer.
func NewDeviceA(stream streamio.ByteStream, sink Sink, pollInterval, timeout time.Duration) *devicea.Engine {
	return devicea.NewEngine(stream, sink,
		devicea.WithPollInterval(pollInterval),
		devicea.WithTimeout(timeout),
	)
}

// NewDeviceB creates an engine for the newer-generation ASCII-protocol
// analyzer.
func NewDeviceB(stream streamio.ByteStream, sink Sink, timeout time.Duration) *deviceb.Engine {
	return deviceb.NewEngine(stream, sink, deviceb.WithTimeout(timeout))
}
