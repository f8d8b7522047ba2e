// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import (
	"testing"

	"github.com/fidlink/fidlink/internal/streamio"
	"github.com/stretchr/testify/require"
)

func buildRawStatusPayload(t *testing.T, flags byte, rng RangeMode, batteryV, picoAmps float64, pumpPower byte, ppm float64) []byte {
	t.Helper()
	return buildRawStatusPayloadWithTemp(t, flags, rng, batteryV, picoAmps, pumpPower, ppm, 70.0)
}

// buildRawStatusPayloadWithTemp is buildRawStatusPayload with an explicit
// thermocouple reading, for tests exercising the ignition predicate's
// 75F threshold.
func buildRawStatusPayloadWithTemp(t *testing.T, flags byte, rng RangeMode, batteryV, picoAmps float64, pumpPower byte, ppm, thermoCoupleF float64) []byte {
	t.Helper()
	payload := make([]byte, rawStatusPayloadLen)
	payload[0] = flags
	payload[1] = byte(rng)
	streamio.PutU16LE(payload, 2, uint16(batteryV*10))
	streamio.PutU16LE(payload, 4, 0)
	streamio.PutI32LE(payload, 6, int32(picoAmps*10))
	streamio.PutI16LE(payload, 10, int16(thermoCoupleF*10))
	streamio.PutI16LE(payload, 12, int16(thermoCoupleF*10))
	streamio.PutU16LE(payload, 14, 0)
	streamio.PutU16LE(payload, 16, 0)
	payload[18] = pumpPower
	streamio.PutU32LE(payload, 19, uint32(ppm*10))
	return payload
}

func TestDecodeRawStatus_NFidTenthsPpmExample(t *testing.T) {
	payload := buildRawStatusPayload(t, 0, RangeLO, 13.0, 0, 0, 10.0)
	raw, err := DecodeRawStatus(payload)
	require.NoError(t, err)
	require.InDelta(t, 10.0, raw.PPM, 0.001)
}

func TestController_JunkStreakThenGoodSampleResetsCount(t *testing.T) {
	c := NewController()

	junk := buildRawStatusPayload(t, 0, RangeLO, 16.0, 0, 0, 0) // BatteryV=16.0 > 15 max
	junkRaw, err := DecodeRawStatus(junk)
	require.NoError(t, err)
	status, _ := c.Update(junkRaw)
	require.Equal(t, 1, status.JunkDataCount)

	good := buildRawStatusPayload(t, 0, RangeLO, 13.0, 0, 0, 0)
	goodRaw, err := DecodeRawStatus(good)
	require.NoError(t, err)
	status, _ = c.Update(goodRaw)
	require.Equal(t, 0, status.JunkDataCount)
}

func TestController_TenConsecutiveJunkSamplesEscapeHatch(t *testing.T) {
	c := NewController()
	junk := buildRawStatusPayload(t, 0, RangeLO, 16.0, 0, 0, 0)
	raw, err := DecodeRawStatus(junk)
	require.NoError(t, err)

	var status Phx21Status
	for i := 0; i < junkAcceptAfter; i++ {
		status, _ = c.Update(raw)
	}
	require.Equal(t, 0, status.JunkDataCount, "the 10th consecutive junk sample is accepted and resets the streak")
}

func TestController_FlatPpmWindow_AveragesMatchAndUseAverageTrue(t *testing.T) {
	c := NewController()
	raw, err := DecodeRawStatus(buildRawStatusPayloadWithTemp(t, FlagSolenoidA|FlagPumpA, RangeLO, 13.0, 0, 0, 50, 200.0))
	require.NoError(t, err)

	var status Phx21Status
	for i := 0; i < 5; i++ {
		status, _ = c.Update(raw)
	}
	require.InDelta(t, 50, status.ShortAvgPPM, 0.001)
	require.InDelta(t, 50, status.LongAvgPPM, 0.001)
	require.True(t, status.UseAverage)
	require.InDelta(t, 50, status.ReportedPPM, 0.001)
}

func TestController_ZeroDithering_SixthZeroReportsPointOne(t *testing.T) {
	c := NewController()
	raw, err := DecodeRawStatus(buildRawStatusPayloadWithTemp(t, FlagSolenoidA|FlagPumpA, RangeLO, 13.0, 0, 0, 0, 200.0))
	require.NoError(t, err)

	var status Phx21Status
	for i := 0; i < 6; i++ {
		status, _ = c.Update(raw)
	}
	require.InDelta(t, ZeroDitherValue, status.ReportedPPM, 0.0001)
}

func TestController_IgnitionHysteresis_FirstSampleBypassesCounter(t *testing.T) {
	c := NewController()
	raw, err := DecodeRawStatus(buildRawStatusPayloadWithTemp(t, FlagSolenoidA|FlagPumpA, RangeLO, 13.0, 100, 0, 0, 200.0))
	require.NoError(t, err)

	status, _ := c.Update(raw)
	require.True(t, status.IsIgnited, "the first sample should set IsIgnited directly, without the 3-sample debounce")
}

func TestController_IgnitionHysteresis_RequiresThreeConsecutiveFlips(t *testing.T) {
	c := NewController()
	ignited, err := DecodeRawStatus(buildRawStatusPayloadWithTemp(t, FlagSolenoidA|FlagPumpA, RangeLO, 13.0, 100, 0, 0, 200.0))
	require.NoError(t, err)
	notIgnited, err := DecodeRawStatus(buildRawStatusPayloadWithTemp(t, 0, RangeLO, 13.0, -50, 0, 0, 70.0))
	require.NoError(t, err)

	status, _ := c.Update(ignited)
	require.True(t, status.IsIgnited)

	status, _ = c.Update(notIgnited)
	require.True(t, status.IsIgnited, "one flip sample should not yet flip IsIgnited")
	status, _ = c.Update(notIgnited)
	require.True(t, status.IsIgnited)
	status, _ = c.Update(notIgnited)
	require.False(t, status.IsIgnited, "the third consecutive flip sample should commit the change")
}

func TestController_RangeSwitchLoToMax(t *testing.T) {
	c := NewController()
	raw, err := DecodeRawStatus(buildRawStatusPayload(t, 0, RangeLO, 13.0, 7000, 0, 0))
	require.NoError(t, err)

	_, pending := c.Update(raw)
	require.NotEmpty(t, pending)
	require.Equal(t, RangeMAX, c.currentRange)
}

func TestController_AdaptiveHardwareAveragingSwitchesUp(t *testing.T) {
	c := NewController()
	raw, err := DecodeRawStatus(buildRawStatusPayload(t, 0, RangeLO, 13.0, 150, 0, 0))
	require.NoError(t, err)

	_, pending := c.Update(raw)
	found := false
	for _, p := range pending {
		if p.Reason == "adaptive hardware averaging window change" {
			found = true
		}
	}
	require.True(t, found)
	require.EqualValues(t, hwAvgHigh, c.samplesToAvg)
}
