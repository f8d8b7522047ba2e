// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import "github.com/fidlink/fidlink/internal/streamio"

// This file builds the command-specific packed payloads and wraps them
// with EncodeCommand. Field order and width are packed little-endian,
// no padding.

// EncodeSetSamplingParameters builds SET_SAMPLING_PARAMETERS (0x04).
func EncodeSetSamplingParameters(rangeMode RangeMode) []byte {
	return EncodeCommand(CmdSetSamplingParameters, []byte{byte(rangeMode)})
}

// IntegrationControlParams is the payload for INTEGRATION_CONTROL.
type IntegrationControlParams struct {
	Mode              byte
	ChargeMultiplier  byte
	Range             byte
	IntegrationTimeUs uint32
	SamplesToAvg      byte
	ReportMode        byte
}

// EncodeIntegrationControl builds INTEGRATION_CONTROL (0x0C).
func EncodeIntegrationControl(p IntegrationControlParams) []byte {
	payload := make([]byte, 8)
	payload[0] = p.Mode
	payload[1] = p.ChargeMultiplier
	payload[2] = p.Range
	streamio.PutU32LE(payload, 3, p.IntegrationTimeUs)
	payload[7] = p.SamplesToAvg
	// ReportMode is appended as a trailing byte beyond the packed
	// fixed-width fields above.
	return EncodeCommand(CmdIntegrationControl, append(payload, p.ReportMode))
}

// EncodeSetDeadheadParams builds SET_DEADHEAD_PARAMS (0x1E).
func EncodeSetDeadheadParams(enable bool, pressureLimit, timeoutMs uint16) []byte {
	payload := make([]byte, 5)
	if enable {
		payload[0] = 1
	}
	streamio.PutU16LE(payload, 1, pressureLimit)
	streamio.PutU16LE(payload, 3, timeoutMs)
	return EncodeCommand(CmdSetDeadheadParams, payload)
}

// EncodeSetCalH2PresCompensation builds SET_CAL_H2PRES_COMPENSATION
// (0x24). posPerThousand/negPerThousand are written as-is as
// little-endian int32s; the init recipe's -3000 and 3000 stand for a
// compensation fraction of -0.3 and +0.3 (the fraction scaled by 10^4).
func EncodeSetCalH2PresCompensation(posPerThousand, negPerThousand int32) []byte {
	payload := make([]byte, 8)
	streamio.PutI32LE(payload, 0, posPerThousand)
	streamio.PutI32LE(payload, 4, negPerThousand)
	return EncodeCommand(CmdSetCalH2PresCompensation, payload)
}

// IgnitionRecipe is the fixed set of AUTO_IGNITION_SEQUENCE parameters
// sent on every Ignite call.
type IgnitionRecipe struct {
	TargetHPSI        uint16
	ToleranceHPSI     uint16
	MinTempRiseTK     uint16
	MaxPressureWaitMs uint32
	MaxIgniteWaitMs   uint32
	SolBDelayMs       uint32
	PrePurgePumpMs    uint32
	PrePurgeSolAMs    uint32
}

// DefaultIgnitionRecipe is the fixed recipe used for every ignition attempt.
var DefaultIgnitionRecipe = IgnitionRecipe{
	TargetHPSI:        175,
	ToleranceHPSI:     5,
	MinTempRiseTK:     10,
	MaxPressureWaitMs: 10000,
	MaxIgniteWaitMs:   5000,
	SolBDelayMs:       1000,
	PrePurgePumpMs:    5000,
	PrePurgeSolAMs:    5000,
}

// EncodeAutoIgnitionSequence builds AUTO_IGNITION_SEQUENCE (0x20) using
// the fixed recipe plus the caller's start/stop and glow-plug selection.
func EncodeAutoIgnitionSequence(r IgnitionRecipe, startStop bool, useGlowPlugB bool) []byte {
	payload := make([]byte, 28)
	streamio.PutU16LE(payload, 0, r.TargetHPSI)
	streamio.PutU16LE(payload, 2, r.ToleranceHPSI)
	streamio.PutU16LE(payload, 4, r.MinTempRiseTK)
	streamio.PutU32LE(payload, 6, r.MaxPressureWaitMs)
	streamio.PutU32LE(payload, 10, r.MaxIgniteWaitMs)
	streamio.PutU32LE(payload, 14, r.SolBDelayMs)
	streamio.PutU32LE(payload, 18, r.PrePurgePumpMs)
	streamio.PutU32LE(payload, 22, r.PrePurgeSolAMs)
	if startStop {
		payload[26] = 1
	}
	if useGlowPlugB {
		payload[27] = 1
	}
	return EncodeCommand(CmdAutoIgnitionSequence, payload)
}

// EncodeSetPumpAClosedLoop builds SET_PUMPA_CLOSED_LOOP (0x1D).
func EncodeSetPumpAClosedLoop(enable bool, target uint16) []byte {
	payload := make([]byte, 3)
	if enable {
		payload[0] = 1
	}
	streamio.PutU16LE(payload, 1, target)
	return EncodeCommand(CmdSetPumpAClosedLoop, payload)
}

// EncodePumpAux1Control builds PUMP_AUX_1_CONTROL (0x1B).
func EncodePumpAux1Control(id, power, kick byte) []byte {
	return EncodeCommand(CmdPumpAux1Control, []byte{id, power, kick})
}

// EncodeReadDataExtended builds READ_DATA_EXTENDED (0x25), which takes
// no payload.
func EncodeReadDataExtended() []byte {
	return EncodeCommand(CmdReadDataExtended, nil)
}

// EncodeGoodbye builds GOODBYE (0x26), which takes no payload.
func EncodeGoodbye() []byte {
	return EncodeCommand(CmdGoodbye, nil)
}

// EncodeConfigurationRead builds CONFIGURATION_READ (0x0A), used by
// GetFirmwareVersion.
func EncodeConfigurationRead() []byte {
	return EncodeCommand(CmdConfigurationRead, nil)
}
