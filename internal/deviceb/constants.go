// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package deviceb implements the ASCII, line-oriented protocol engine
// for the newer-generation flame-ionization analyzer ("Device-B").
// Every message on the wire is one CRLF-terminated line shaped
// "ZUzu <TYPE> k=v,k=v,...". See message.go for framing, errors.go for
// the device error-code dictionary, correlator.go for the bounded
// request/response buffer, status.go for the readings pipeline, and
// engine.go for the concurrent engine.
package deviceb

import "time"

// Preamble is the fixed token every Device-B line begins with.
const Preamble = "ZUzu"

// maxPreambleLen bounds how long a line's leading token may be and still
// be accepted as a preamble, tolerating a future variant tag alongside
// Preamble itself rather than matching it exactly.
const maxPreambleLen = 5

// Message types recognized on the wire.
const (
	TypeCheck       = "CHEK" // heartbeat probe/ack
	TypePeriodicRpt = "PRPT" // per-reading-stream periodic report on/off toggle
	TypeTimedRpt    = "TRPT" // global periodic reporting interval, in ms
	TypeStatusRpt   = "SRPT" // one-shot single-report request for a reading type
	TypeReading     = "RDNG" // FID reading
	TypeDriveLevels = "DRVL" // drive-level telemetry
	TypeTime        = "TIME" // device clock get/set
	TypeFidReading  = "FIDR" // FID-specific reading (selectivity-preferred)
	TypeError       = "EROR" // recoverable device-reported error
	TypeSevereError = "SERR" // severe device-reported error
	TypeVersion     = "VERS" // firmware version
	TypeShutdown    = "SHUT" // device announcing shutdown
	TypeIgnition    = "AIGS" // auto-ignition sequence control
	TypeBattery     = "BATS" // battery status
	TypeWarmupTime  = "WUTM" // warmup time remaining
)

// recognizedTypes lists every type ParseLine will accept without
// treating the line as noise.
var recognizedTypes = map[string]bool{
	TypeCheck:       true,
	TypePeriodicRpt: true,
	TypeTimedRpt:    true,
	TypeStatusRpt:   true,
	TypeReading:     true,
	TypeDriveLevels: true,
	TypeTime:        true,
	TypeFidReading:  true,
	TypeError:       true,
	TypeSevereError: true,
	TypeVersion:     true,
	TypeShutdown:    true,
	TypeIgnition:    true,
	TypeBattery:     true,
	TypeWarmupTime:  true,
}

// CalppmNotIgnited is the sentinel CALPPM value a not-yet-ignited device
// reports: it is never a real PPM reading.
const CalppmNotIgnited = -100.00

// Timing constants.
const (
	DefaultTimeout         = 2 * time.Second
	correlatorPollInterval = 20 * time.Millisecond
	heartbeatInterval      = 900 * time.Millisecond
	shutdownPulseInterval  = 500 * time.Millisecond

	// maxResyncAttempts caps how many consecutive unrecognized lines the
	// decoder will discard looking for the next well-formed message
	// before giving up and reporting MalformedFrame.
	maxResyncAttempts = 5

	// inboundBufferSlots is the bounded correlation buffer size: once
	// this many inbound messages are held, older ones are evicted
	// oldest-first rather than growing without bound.
	inboundBufferSlots = 20
)
