// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package streamio

import (
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsEventually(t *testing.T) {
	attempts := 0
	err := Retry(3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_ExhaustsAndReturnsLastError(t *testing.T) {
	attempts := 0
	wantErr := errors.New("still broken")
	err := Retry(3, time.Millisecond, func() error {
		attempts++
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_FirstTrySucceeds(t *testing.T) {
	attempts := 0
	err := Retry(3, time.Hour, func() error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d (slept unnecessarily?)", attempts)
	}
}
