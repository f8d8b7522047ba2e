// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streamio

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// consecutiveFaultLimit is the escalation threshold: a worker that sees
// this many transport faults back to back gives up on the link rather
// than retrying forever.
const consecutiveFaultLimit = 10

// FaultBreaker counts consecutive transport faults on one worker's side of
// a ByteStream (receiver owns input, sender owns output) and reports when
// a reconnect is needed. It is a thin wrapper over a circuit breaker:
// tripping the breaker *is* the "reconnect needed" condition, so there is
// no separate counter to keep in sync with gobreaker's own bookkeeping.
type FaultBreaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewFaultBreaker creates a breaker scoped to one worker; name is used
// only for logging/diagnostics (e.g. "devicea:sender").
func NewFaultBreaker(name string) *FaultBreaker {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		// Interval 0: consecutive-failure counts are cleared only on
		// success or on trip, never on a wall-clock cycle. Faults are
		// counted strictly back to back, not per window.
		Interval: 0,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFaultLimit
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})
	return &FaultBreaker{cb: cb}
}

// Guard runs op through the breaker. It returns op's error unchanged
// (including gobreaker.ErrOpenState once the breaker has tripped).
func (f *FaultBreaker) Guard(op func() error) error {
	_, err := f.cb.Execute(func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// ReconnectNeeded reports whether the breaker has tripped open, i.e.
// whether consecutiveFaultLimit transport faults happened back to back.
func (f *FaultBreaker) ReconnectNeeded() bool {
	return f.cb.State() == gobreaker.StateOpen
}
