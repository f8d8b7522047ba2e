// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package devicea implements the binary, request/response protocol
// engine for the older-generation flame-ionization analyzer ("Device-A").
// See constants.go for wire framing, commands.go for the command
// catalog, decoder.go/frame.go for framing, status.go for decode and
// control logic, and engine.go for the concurrent engine.
package devicea

import "time"

// Frame sync bytes.
const (
	SyncCommand  byte = 0x5A
	SyncResponse byte = 0xA5
)

// Command IDs.
const (
	CmdSetSamplingParameters    byte = 0x04
	CmdConfigurationRead        byte = 0x0A
	CmdIntegrationControl       byte = 0x0C
	CmdPumpAux1Control          byte = 0x1B
	CmdSetPumpAClosedLoop       byte = 0x1D
	CmdSetDeadheadParams        byte = 0x1E
	CmdAutoIgnitionSequence     byte = 0x20
	CmdSetCalH2PresCompensation byte = 0x24
	CmdReadDataExtended         byte = 0x25
	CmdGoodbye                  byte = 0x26
)

// Status flag bits.
const (
	FlagPumpA     byte = 0x01
	FlagSolenoidA byte = 0x04
	FlagSolenoidB byte = 0x08
)

// RangeMode is the FID amplifier sensitivity band.
type RangeMode uint8

// Range modes. Only LO and MAX are live switch targets; MID and HI
// exist on the wire but are never selected by the control logic in
// this engine.
const (
	RangeLO  RangeMode = 0
	RangeMID RangeMode = 1
	RangeHI  RangeMode = 2
	RangeMAX RangeMode = 3
)

// Timing constants.
const (
	DefaultPollingInterval = 250 * time.Millisecond
	DefaultTimeout         = 2 * time.Second
	LongTimeout            = 5 * time.Second
	correlatorPollInterval = 20 * time.Millisecond
	initRetryAttempts      = 3
	initRetryDelay         = 100 * time.Millisecond
	rangeSettleDelay       = 250 * time.Millisecond
	shutdownPulseInterval  = 500 * time.Millisecond
)

// Averaging and control tunables.
const (
	PastPpmsCapacity   = 50
	LongAverageCount   = 25
	ShortAverageCount  = 5
	UseAvgPercent      = 10.0
	ZeroDitherAfter    = 5
	ZeroDitherValue    = 0.1
	ignitionHysteresis = 3
	junkAcceptAfter    = 10

	// ignitionThermoCoupleF is the minimum thermocouple reading, in
	// degrees Fahrenheit, required alongside the solenoid-A and pump-A
	// flags for a sample to count as "ignited".
	ignitionThermoCoupleF = 75.0

	// pumpSafetyCutoffPercent is the pump power level, at or above which
	// an ignited device trips the pump safety cutoff.
	pumpSafetyCutoffPercent = 85

	// rangeUpThresholdPicoamps / rangeDownThresholdPicoamps are the
	// FID current thresholds that drive LO<->MAX range switching.
	rangeUpThresholdPicoamps   = 6500
	rangeDownThresholdPicoamps = 6000

	// changeCountThreshold is kept at 1, matching how the original
	// control loop increments its range-change counter then compares
	// against >= 1, so a switch commits on the very first qualifying
	// sample. The counter is retained for future tunability rather than
	// collapsed into a plain boolean.
	changeCountThreshold = 1

	hwAvgLow  = 10
	hwAvgHigh = 50

	// adaptiveHwAvgPicoampsThreshold gates switching the device's
	// hardware sample-averaging window between hwAvgLow and hwAvgHigh.
	adaptiveHwAvgPicoampsThreshold = 100
)

// Init-time deadhead and H2 pressure compensation recipe, issued once
// at startup as the third and fourth steps of the fixed init sequence.
const (
	initDeadheadEnable           = true
	initDeadheadPressureLimitPSI = 150
	initDeadheadTimeoutMs        = 100
	initCalH2PresPosPerThousand  = -3000
	initCalH2PresNegPerThousand  = 3000
)

// Init-time INTEGRATION_CONTROL recipe, issued as the second step of the
// fixed init sequence.
const (
	initChargeMultiplier  = 1
	initIntegrationRange  = 7
	initIntegrationTimeUs = 50000
)

// notIgnitedPPM is the sentinel reported in place of a real PPM value
// while not ignited: negative PPM encodes "not ignited / unavailable".
const notIgnitedPPM = -1.0
