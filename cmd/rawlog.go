// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/fidlink/fidlink/internal/events"
)

var rawlogCmd = &cobra.Command{
	Use:   "rawlog",
	Short: "Log every decoded event from a connected analyzer to stderr",
	RunE:  runRawlog,
}

func init() {
	rootCmd.AddCommand(rawlogCmd)
}

func runRawlog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	entry := log.WithField("connection", connInfo)

	sink := events.Sink{
		OnDataPolled: func(d events.DataPolled) {
			fields := logrusFieldsFromProperties(d.Properties)
			fields["ppm"] = d.PPM
			entry.WithFields(fields).Info("polled")
		},
		OnError: func(e *events.EngineError) {
			entry.WithError(e).WithField("kind", e.Kind.String()).Warn("engine error")
		},
		OnCommandError: func(e *events.CommandError) {
			entry.WithField("kind", e.Kind).Warn(e.Message)
		},
	}

	engine, err := buildEngine(conn, sink)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Shutdown()

	entry.Info("connected, logging events until interrupted")
	<-sig
	return nil
}

func logrusFieldsFromProperties(props events.Properties) map[string]interface{} {
	fields := make(map[string]interface{})
	if props == nil {
		return fields
	}
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		fields[pair.Key] = pair.Value
	}
	return fields
}
