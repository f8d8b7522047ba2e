// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fidlink/fidlink/internal/events"
)

var abortIgnite bool

var igniteCmd = &cobra.Command{
	Use:   "ignite",
	Short: "Trigger (or abort) the auto-ignition sequence on a connected analyzer",
	RunE:  runIgnite,
}

func init() {
	igniteCmd.Flags().BoolVar(&abortIgnite, "abort", false, "Abort an in-progress ignition attempt instead of starting one")
	rootCmd.AddCommand(igniteCmd)
}

func runIgnite(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	entry := log.WithField("connection", connInfo)

	sink := events.Sink{
		OnCommandError: func(e *events.CommandError) { entry.Warn(e.Message) },
	}

	engine, err := buildEngine(conn, sink)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout()*5)
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Shutdown()

	if abortIgnite {
		entry.Info("aborting ignition")
		return engine.AbortIgnite(ctx)
	}

	entry.Info("starting auto-ignition sequence")
	return engine.Ignite(ctx)
}
