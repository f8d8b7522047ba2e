// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEngineError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("read failed")
	e := NewEngineError(KindTransportFault, "read byte", cause)

	require.ErrorIs(t, e, cause)
	require.Contains(t, e.Error(), "TransportFault")
	require.Contains(t, e.Error(), "read byte")
}

func TestSink_EmitDataPolled(t *testing.T) {
	var got DataPolled
	called := false
	sink := Sink{OnDataPolled: func(d DataPolled) {
		called = true
		got = d
	}}

	props := NewProperties()
	props.Set("PPM", "12.3")
	sink.EmitDataPolled(props, 12.3)

	require.True(t, called)
	require.Equal(t, 12.3, got.PPM)
	v, ok := got.Properties.Get("PPM")
	require.True(t, ok)
	require.Equal(t, "12.3", v)
}

func TestSink_NilHandlersDoNotPanic(t *testing.T) {
	var sink Sink
	sink.EmitDataPolled(NewProperties(), 0)
	sink.EmitError(KindTimeout, "no reply", nil)
	sink.EmitCommandError(CmdShutdown, "bye")
}

func TestBuilder_OmitsEmptyValues(t *testing.T) {
	props := NewBuilder().
		Set("PPM", "10.0").
		Set("Altimeter", "").
		Build()

	_, ok := props.Get("Altimeter")
	require.False(t, ok)
	v, ok := props.Get("PPM")
	require.True(t, ok)
	require.Equal(t, "10.0", v)
}
