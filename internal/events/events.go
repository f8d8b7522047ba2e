// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package events defines the event payloads both protocol engines emit
// (DataPolled, Error, CommandError) and the typed EngineError that
// SendAndReceive-style operations return to their direct caller.
package events

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Properties is the ordered string-keyed status bag handed to observers.
// It preserves the order in which an engine's projection inserted the
// keys rather than Go's unspecified map iteration order, so two
// DataPolled events for the same status shape always print identically.
type Properties = *orderedmap.OrderedMap[string, string]

// NewProperties creates an empty ordered property bag.
func NewProperties() Properties {
	return orderedmap.New[string, string]()
}

// DataPolled carries a decoded status snapshot and its derived PPM.
type DataPolled struct {
	Properties Properties
	PPM        float64
}

// ErrorKind classifies an EngineError
type ErrorKind int

const (
	// KindTimeout: no correlated reply arrived within the deadline.
	KindTimeout ErrorKind = iota
	// KindMalformedFrame: (Device-B) unrecognized type or unparseable
	// payload after exhausting resync attempts.
	KindMalformedFrame
	// KindDeviceReported: (Device-B) an EROR/SERR arrived for the
	// in-flight request type after the send time.
	KindDeviceReported
	// KindTransportFault: a read or write on the byte stream failed.
	KindTransportFault
	// KindReconnectNeeded: a worker saw too many consecutive transport
	// faults and gave up on the link.
	KindReconnectNeeded
	// KindSuspectData: (Device-A) a polled status cannot be trusted as
	// is: its payload was too short to decode, or it tripped the pump
	// safety cutoff.
	KindSuspectData
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindMalformedFrame:
		return "MalformedFrame"
	case KindDeviceReported:
		return "DeviceReported"
	case KindTransportFault:
		return "TransportFault"
	case KindReconnectNeeded:
		return "ReconnectNeeded"
	case KindSuspectData:
		return "SuspectData"
	default:
		return "Unknown"
	}
}

// EngineError is the single error type both engines return. It wraps an
// optional underlying cause and classifies the failure per ErrorKind.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *EngineError) Unwrap() error { return e.Cause }

// NewEngineError builds an EngineError.
func NewEngineError(kind ErrorKind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// CommandErrorKind classifies a spontaneous CommandError event.
type CommandErrorKind int

const (
	// CmdShutdown: the device announced it is shutting down.
	CmdShutdown CommandErrorKind = iota
	// CmdAutoIgnitionSequence: an ignition attempt failed.
	CmdAutoIgnitionSequence
	// CmdMessage: a generic spontaneous error/status message.
	CmdMessage
)

// CommandError is raised for spontaneous device-reported conditions that
// are not a direct reply to a caller's SendAndReceive.
type CommandError struct {
	Kind    CommandErrorKind
	Message string
}

func (e *CommandError) Error() string { return e.Message }

// Sink is the set of callbacks an engine invokes to surface events to an
// observer. All fields are optional; a nil callback is simply not
// called. Handlers are invoked from worker goroutines and must not block.
type Sink struct {
	OnDataPolled   func(DataPolled)
	OnError        func(*EngineError)
	OnCommandError func(*CommandError)
}

func (s Sink) dataPolled(d DataPolled) {
	if s.OnDataPolled != nil {
		s.OnDataPolled(d)
	}
}

func (s Sink) engineError(e *EngineError) {
	if s.OnError != nil {
		s.OnError(e)
	}
}

func (s Sink) commandError(e *CommandError) {
	if s.OnCommandError != nil {
		s.OnCommandError(e)
	}
}

// EmitDataPolled fires OnDataPolled if set.
func (s Sink) EmitDataPolled(props Properties, ppm float64) {
	s.dataPolled(DataPolled{Properties: props, PPM: ppm})
}

// EmitError fires OnError if set.
func (s Sink) EmitError(kind ErrorKind, message string, cause error) {
	s.engineError(NewEngineError(kind, message, cause))
}

// EmitCommandError fires OnCommandError if set.
func (s Sink) EmitCommandError(kind CommandErrorKind, message string) {
	s.commandError(&CommandError{Kind: kind, Message: message})
}
