// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package deviceb

import (
	"strconv"

	"github.com/fidlink/fidlink/internal/events"
)

// Readings accumulates the latest value seen for each reading message
// type (RDNG, DRVL, FIDR, BATS). Device-B streams these independently
// and asynchronously; DataPolled projects whatever has been seen so
// far, it does not wait for all four.
type Readings struct {
	FID     *Message
	Reading *Message
	Drive   *Message
	Battery *Message
}

// Apply folds one inbound reading message into the latest-known state.
// Non-reading message types are ignored.
func (r *Readings) Apply(msg Message) {
	switch msg.Type {
	case TypeFidReading:
		m := msg
		r.FID = &m
	case TypeReading:
		m := msg
		r.Reading = &m
	case TypeDriveLevels:
		m := msg
		r.Drive = &m
	case TypeBattery:
		m := msg
		r.Battery = &m
	}
}

// CurrentWinner returns the most selective reading type currently
// present (FIDR > RDNG > DRVL > BATS), or "" if none have arrived yet.
// onMessage uses this to emit DataPolled only once per tick, when the
// arriving message is the winner, rather than once per enabled stream.
func (r *Readings) CurrentWinner() string {
	switch {
	case r.FID != nil:
		return TypeFidReading
	case r.Reading != nil:
		return TypeReading
	case r.Drive != nil:
		return TypeDriveLevels
	case r.Battery != nil:
		return TypeBattery
	default:
		return ""
	}
}

// PPM resolves the current PPM reading and ignition state, preferring
// FIDR over RDNG over DRVL over BATS, and treating CalppmNotIgnited as
// "not ignited" rather than a real reading.
func (r *Readings) PPM() (ppm float64, ignited bool, ok bool) {
	for _, m := range []*Message{r.FID, r.Reading, r.Drive, r.Battery} {
		if m == nil {
			continue
		}
		raw, present := m.Params["CALPPM"]
		if !present {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if v == CalppmNotIgnited {
			return 0, false, true
		}
		return v, true, true
	}
	return 0, false, false
}

// Project builds the ordered event.Properties snapshot for the current
// readings state, using the shared well-known property table.
func (r *Readings) Project() events.Properties {
	b := events.NewBuilder()
	ppm, ignited, ok := r.PPM()
	if ok {
		b.Set("PPM", strconv.FormatFloat(ppm, 'f', 2, 64))
	}
	b.Set("IsIgnited", boolStr(ignited))

	if r.FID != nil {
		b.Set("PicoAmps", r.FID.Params["PICOAMPS"])
		b.Set("SamplePressure", r.FID.Params["SAMPLEPRESSURE"])
		b.Set("CombustionPressure", r.FID.Params["COMBUSTIONPRESSURE"])
	}
	if r.Reading != nil {
		b.Set("InternalTemp", r.Reading.Params["INTERNALTEMP"])
		b.Set("ExternalTemp", r.Reading.Params["EXTERNALTEMP"])
		b.Set("Vacuum", r.Reading.Params["VACUUM"])
	}
	if r.Drive != nil {
		b.Set("NeedleValve", r.Drive.Params["NEEDLEVALVE"])
		b.Set("Heater", r.Drive.Params["HEATER"])
		b.Set("GlowPlug", r.Drive.Params["GLOWPLUG"])
		b.Set("Solenoid", r.Drive.Params["SOLENOID"])
	}
	if r.Battery != nil {
		b.Set("BatteryStatus", r.Battery.Params["STATUS"])
		b.Set("BatteryCharge", r.Battery.Params["CHARGE"])
		b.Set("Volts", r.Battery.Params["VOLTS"])
		b.Set("Current", r.Battery.Params["CURRENT"])
	}
	return b.Build()
}

func boolStr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
