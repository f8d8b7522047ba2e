// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package devicea

import (
	"fmt"

	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/internal/streamio"
)

// rawStatusPayloadLen is the fixed payload width of a READ_DATA_EXTENDED
// response: flags, range, battery, system current, picoamps,
// thermocouple, chamber temp, air pressure, tank pressure, pump power,
// ppm.
const rawStatusPayloadLen = 23

// RawStatus is the unfiltered decode of a READ_DATA_EXTENDED payload,
// before any junk rejection, hysteresis or averaging is applied.
type RawStatus struct {
	Flags             byte
	Range             RangeMode
	BatteryV          float64
	SystemCurrentA    float64
	PicoAmps          float64
	ThermoCoupleF     float64
	ChamberOuterTempF float64
	AirPressurePSI    float64
	TankPressurePSI   float64
	PumpPowerPercent  byte
	PPM               float64
}

// DecodeRawStatus decodes a READ_DATA_EXTENDED payload into a RawStatus.
func DecodeRawStatus(payload []byte) (RawStatus, error) {
	if len(payload) < rawStatusPayloadLen {
		return RawStatus{}, fmt.Errorf("devicea: status payload too short: %d bytes", len(payload))
	}
	return RawStatus{
		Flags:             payload[0],
		Range:             RangeMode(payload[1]),
		BatteryV:          float64(streamio.U16LE(payload, 2)) / 10,
		SystemCurrentA:    float64(streamio.U16LE(payload, 4)) / 10,
		PicoAmps:          float64(streamio.I32LE(payload, 6)) / 10,
		ThermoCoupleF:     float64(streamio.I16LE(payload, 10)) / 10,
		ChamberOuterTempF: float64(streamio.I16LE(payload, 12)) / 10,
		AirPressurePSI:    float64(streamio.U16LE(payload, 14)) / 10,
		TankPressurePSI:   float64(streamio.U16LE(payload, 16)) / 10,
		PumpPowerPercent:  payload[18],
		PPM:               float64(streamio.U32LE(payload, 19)) / 10,
	}, nil
}

// junk data thresholds: readings outside these bounds are
// implausible and rejected rather than reported.
const (
	maxPlausibleBatteryV      = 15.0
	minPlausiblePicoAmps      = -10000.0
	minPlausibleThermoCoupleF = -400.0
	maxPlausiblePumpPower     = 100
)

func (r RawStatus) isJunk() bool {
	return r.BatteryV > maxPlausibleBatteryV ||
		r.PicoAmps < minPlausiblePicoAmps ||
		r.ThermoCoupleF < minPlausibleThermoCoupleF ||
		r.PumpPowerPercent > maxPlausiblePumpPower
}

// Controller owns all of the control-plane state derived across
// successive RawStatus samples: junk filtering, ignition hysteresis,
// PPM averaging/dithering, range switching and adaptive hardware
// averaging. It holds no transport state; Engine feeds it
// one RawStatus per poll and acts on the PendingCommand it returns.
type Controller struct {
	firstSample bool

	junkStreak int

	ignitionConfirm int
	isIgnited       bool

	pastPpms   []float64
	zeroStreak int

	currentRange     RangeMode
	rangeChangeCount int

	samplesToAvg byte
}

// NewController creates a Controller in its initial state: no samples
// seen, range LO, hardware averaging at the low window.
func NewController() *Controller {
	return &Controller{
		firstSample:  true,
		currentRange: RangeLO,
		samplesToAvg: hwAvgLow,
	}
}

// PendingCommand is a command the Controller wants sent as a result of
// the last Update call, e.g. a range switch or an averaging-window
// change. Engine is responsible for actually writing it to the wire.
type PendingCommand struct {
	Frame  []byte
	Reason string
}

// Phx21Status is the filtered, averaged status the engine reports via
// events.DataPolled.
type Phx21Status struct {
	Raw               RawStatus
	JunkDataCount     int
	IsIgnited         bool
	ReportedPPM       float64 // notIgnitedPPM while !IsIgnited
	ShortAvgPPM       float64
	LongAvgPPM        float64
	UseAverage        bool
	PumpSafetyTripped bool
}

// Update folds one RawStatus sample into the controller's state. It
// returns the filtered/averaged status to report plus any outbound
// commands the control logic wants issued (range switch, averaging
// window change).
func (c *Controller) Update(raw RawStatus) (Phx21Status, []PendingCommand) {
	var pending []PendingCommand

	if raw.isJunk() {
		c.junkStreak++
		if c.junkStreak < junkAcceptAfter {
			// Reject: report the current junk streak, but do not fold
			// this sample into ignition/averaging state.
			return Phx21Status{Raw: raw, JunkDataCount: c.junkStreak, IsIgnited: c.isIgnited}, nil
		}
		// 10 consecutive junk samples: accept this one anyway rather than
		// stall forever.
	}
	// A sample that reaches this point is accepted, either because it
	// passed the plausibility check or because it tripped the escape
	// hatch above: the streak resets and this sample reports a clean
	// JunkDataCount of 0.
	c.junkStreak = 0

	c.updateIgnition(raw)
	ppm := c.updatePPM(raw.PPM)
	shortAvg, longAvg, useAverage := c.ppmAverages()

	reported := ppm
	if useAverage {
		if c.currentRange == RangeMAX {
			reported = longAvg
		} else {
			reported = shortAvg
		}
	}
	if !c.isIgnited {
		reported = notIgnitedPPM
	}

	if cmd := c.maybeSwitchRange(raw); cmd != nil {
		pending = append(pending, *cmd)
	}
	if cmd := c.maybeAdjustHardwareAveraging(raw); cmd != nil {
		pending = append(pending, *cmd)
	}

	tripped := c.isIgnited && raw.PumpPowerPercent >= pumpSafetyCutoffPercent
	if tripped {
		pending = append(pending,
			PendingCommand{
				Frame:  EncodeSetPumpAClosedLoop(false, 0),
				Reason: "pump safety cutoff: ignited with pump power at or above threshold",
			},
			PendingCommand{
				Frame:  EncodePumpAux1Control(0, 0, 0),
				Reason: "pump safety cutoff: ignited with pump power at or above threshold",
			},
		)
	}

	c.firstSample = false

	return Phx21Status{
		Raw:               raw,
		JunkDataCount:     0,
		IsIgnited:         c.isIgnited,
		ReportedPPM:       reported,
		ShortAvgPPM:       shortAvg,
		LongAvgPPM:        longAvg,
		UseAverage:        useAverage,
		PumpSafetyTripped: tripped,
	}, pending
}

// updateIgnition applies the 3-consecutive-confirmation hysteresis: the
// very first sample sets IsIgnited directly, bypassing the counter,
// since there is no prior state to debounce against.
func (c *Controller) updateIgnition(raw RawStatus) {
	observedIgnited := raw.ThermoCoupleF > ignitionThermoCoupleF &&
		raw.Flags&FlagSolenoidA != 0 &&
		raw.Flags&FlagPumpA != 0

	if c.firstSample {
		c.isIgnited = observedIgnited
		c.ignitionConfirm = 0
		return
	}

	if observedIgnited == c.isIgnited {
		c.ignitionConfirm = 0
		return
	}

	c.ignitionConfirm++
	if c.ignitionConfirm >= ignitionHysteresis {
		c.isIgnited = observedIgnited
		c.ignitionConfirm = 0
	}
}

// updatePPM appends ppm to the sliding window, applying zero dithering
// once five consecutive zero readings have accumulated, and
// returns the value actually reported for this sample.
func (c *Controller) updatePPM(ppm float64) float64 {
	reported := ppm
	if ppm == 0 {
		c.zeroStreak++
		if c.zeroStreak > ZeroDitherAfter {
			reported = ZeroDitherValue
		}
	} else {
		c.zeroStreak = 0
	}

	c.pastPpms = append(c.pastPpms, reported)
	if len(c.pastPpms) > PastPpmsCapacity {
		c.pastPpms = c.pastPpms[len(c.pastPpms)-PastPpmsCapacity:]
	}
	return reported
}

// ppmAverages computes the short-tail and long-tail averages over the
// sliding window. The short average rounds to a whole number; the long
// average rounds to one decimal. useAverage is true only when every
// individual raw sample in the short tail lies within ±UseAvgPercent of
// longAvg, not merely when the two averages are themselves close.
func (c *Controller) ppmAverages() (short, long float64, useAverage bool) {
	n := len(c.pastPpms)
	if n == 0 {
		return 0, 0, false
	}
	short = tailAverage(c.pastPpms, ShortAverageCount, roundToInt)
	long = tailAverage(c.pastPpms, LongAverageCount, round1)
	useAverage = long != 0 && allWithinPercent(tailWindow(c.pastPpms, ShortAverageCount), long, UseAvgPercent)
	return short, long, useAverage
}

func tailWindow(samples []float64, window int) []float64 {
	n := window
	if n > len(samples) {
		n = len(samples)
	}
	return samples[len(samples)-n:]
}

func tailAverage(samples []float64, window int, round func(float64) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	tail := tailWindow(samples, window)
	sum := 0.0
	for _, v := range tail {
		sum += v
	}
	return round(sum / float64(len(tail)))
}

// allWithinPercent reports whether every sample deviates from pivot by
// no more than percent, as a fraction of pivot.
func allWithinPercent(samples []float64, pivot, percent float64) bool {
	for _, v := range samples {
		deviation := (v - pivot) / pivot * 100
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation > percent {
			return false
		}
	}
	return true
}

func roundToInt(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

func round1(v float64) float64 {
	if v >= 0 {
		return float64(int64(v*10+0.5)) / 10
	}
	return float64(int64(v*10-0.5)) / 10
}

// maybeSwitchRange implements the LO<->MAX hysteresis switch.
// changeCountThreshold is intentionally 1, so a single qualifying
// sample commits the switch; the counter exists for tunability, not to
// require multiple confirmations.
func (c *Controller) maybeSwitchRange(raw RawStatus) *PendingCommand {
	switch c.currentRange {
	case RangeLO:
		if raw.PicoAmps >= rangeUpThresholdPicoamps {
			c.rangeChangeCount++
			if c.rangeChangeCount >= changeCountThreshold {
				c.currentRange = RangeMAX
				c.rangeChangeCount = 0
				return &PendingCommand{
					Frame:  EncodeSetSamplingParameters(RangeMAX),
					Reason: "picoamps above up-threshold, switching LO->MAX",
				}
			}
		} else {
			c.rangeChangeCount = 0
		}
	case RangeMAX:
		if raw.PicoAmps <= rangeDownThresholdPicoamps {
			c.rangeChangeCount++
			if c.rangeChangeCount >= changeCountThreshold {
				c.currentRange = RangeLO
				c.rangeChangeCount = 0
				return &PendingCommand{
					Frame:  EncodeSetSamplingParameters(RangeLO),
					Reason: "picoamps below down-threshold, switching MAX->LO",
				}
			}
		} else {
			c.rangeChangeCount = 0
		}
	}
	return nil
}

// maybeAdjustHardwareAveraging switches the device's own hardware
// sample-averaging window between hwAvgLow and hwAvgHigh depending on
// signal magnitude, issuing INTEGRATION_CONTROL only on
// change.
func (c *Controller) maybeAdjustHardwareAveraging(raw RawStatus) *PendingCommand {
	want := byte(hwAvgLow)
	if raw.PicoAmps >= adaptiveHwAvgPicoampsThreshold {
		want = hwAvgHigh
	}
	if want == c.samplesToAvg {
		return nil
	}
	c.samplesToAvg = want
	return &PendingCommand{
		Frame: EncodeIntegrationControl(IntegrationControlParams{
			Range:        byte(c.currentRange),
			SamplesToAvg: want,
		}),
		Reason: "adaptive hardware averaging window change",
	}
}

// Project builds the ordered event.Properties snapshot reported
// alongside a DataPolled event.
func Project(s Phx21Status) events.Properties {
	b := events.NewBuilder()
	ppmText := formatFloat(s.ReportedPPM)
	if !s.IsIgnited {
		ppmText = "N/A"
	}
	b.Set("PPM", ppmText)
	b.Set("PicoAmps", formatFloat(s.Raw.PicoAmps))
	b.Set("BatteryStatus", formatFloat(s.Raw.BatteryV))
	b.Set("Current", formatFloat(s.Raw.SystemCurrentA))
	b.Set("NeedleValve", "")
	b.Set("Solenoid", formatFlags(s.Raw.Flags))
	b.Set("IsIgnited", formatBool(s.IsIgnited))
	b.Set("InternalTemp", formatFloat(s.Raw.ThermoCoupleF))
	b.Set("CaseTemp", formatFloat(s.Raw.ChamberOuterTempF))
	b.Set("SamplePressure", formatFloat(s.Raw.AirPressurePSI))
	b.Set("CombustionPressure", formatFloat(s.Raw.TankPressurePSI))
	b.Set("Heater", formatFlags(s.Raw.Flags&FlagPumpA))
	return b.Build()
}

func formatFloat(v float64) string { return fmt.Sprintf("%.2f", v) }

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func formatFlags(flags byte) string { return fmt.Sprintf("0x%02X", flags) }
