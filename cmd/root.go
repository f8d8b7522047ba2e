// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Device/engine flags
	deviceKind string
	pollMs     int
	timeoutMs  int
	logLevel   string

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "fidctl",
	Short: "Flame-ionization analyzer access library CLI",
	Long: `fidctl talks to a portable flame-ionization gas analyzer over a
serial port or a WebSocket byte-stream bridge, driving whichever
protocol engine matches the connected generation of device.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the
FIDCTL_PASSWORD environment variable, or prompted interactively if not
set. There is intentionally no --password flag, to avoid leaking
credentials in shell history.

Device generation:
  --device a   older binary-framed protocol engine
  --device b   newer ASCII line protocol engine`,
	Version: "1.0.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&deviceKind, "device", "d", "a", "Device generation: a or b")
	rootCmd.PersistentFlags().IntVar(&pollMs, "poll-ms", 250, "Device-A status polling interval, in milliseconds")
	rootCmd.PersistentFlags().IntVar(&timeoutMs, "timeout-ms", 2000, "Per-command correlation timeout, in milliseconds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")

	cobra.OnInitialize(func() {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		log.SetLevel(level)
	})
}

func pollInterval() time.Duration { return time.Duration(pollMs) * time.Millisecond }
func timeout() time.Duration      { return time.Duration(timeoutMs) * time.Millisecond }

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
