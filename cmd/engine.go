// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/fidlink/fidlink/internal/events"
	"github.com/fidlink/fidlink/pkg/analyzer"
)

// buildEngine constructs the engine for whichever device generation
// --device selects, wired to the given Connection and event sink.
func buildEngine(conn Connection, sink events.Sink) (analyzer.Engine, error) {
	stream := analyzer.NewByteStream(conn, conn)

	switch deviceKind {
	case "a", "A":
		return analyzer.NewDeviceA(stream, sink, pollInterval(), timeout()), nil
	case "b", "B":
		return analyzer.NewDeviceB(stream, sink, timeout()), nil
	default:
		return nil, fmt.Errorf("unknown --device %q: want a or b", deviceKind)
	}
}
