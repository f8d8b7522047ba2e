// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/fidlink/fidlink/internal/events"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live status display for a connected analyzer",
	RunE:  runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

type statusMsg events.DataPolled
type errorMsg *events.EngineError
type commandErrorMsg *events.CommandError

// monitorModel is the Bubble Tea model backing `fidctl monitor`.
type monitorModel struct {
	connInfo string
	ppm      float64
	props    events.Properties
	errors   []string
	quitting bool
	width    int
}

func (m monitorModel) Init() tea.Cmd { return nil }

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}
	case statusMsg:
		m.ppm = msg.PPM
		m.props = msg.Properties
	case errorMsg:
		m.errors = appendCapped(m.errors, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), (*events.EngineError)(msg).Error()))
	case commandErrorMsg:
		m.errors = appendCapped(m.errors, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), (*events.CommandError)(msg).Error()))
	}
	return m, nil
}

func appendCapped(lines []string, line string) []string {
	lines = append(lines, line)
	const max = 10
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	ppmStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("fidctl monitor") + "  " + m.connInfo + "\n\n")
	sb.WriteString(fmt.Sprintf("PPM: %s\n\n", ppmStyle.Render(fmt.Sprintf("%.2f", m.ppm))))

	if m.props != nil {
		for pair := m.props.Oldest(); pair != nil; pair = pair.Next() {
			sb.WriteString(fmt.Sprintf("  %-20s %s\n", pair.Key, pair.Value))
		}
	}

	if len(m.errors) > 0 {
		sb.WriteString("\n" + headerStyle.Render("recent events") + "\n")
		for _, e := range m.errors {
			sb.WriteString(errorStyle.Render(e) + "\n")
		}
	}

	sb.WriteString("\nq to quit\n")
	return sb.String()
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	program := tea.NewProgram(monitorModel{connInfo: connInfo}, tea.WithAltScreen())

	sink := events.Sink{
		OnDataPolled:   func(d events.DataPolled) { program.Send(statusMsg(d)) },
		OnError:        func(e *events.EngineError) { program.Send(errorMsg(e)) },
		OnCommandError: func(e *events.CommandError) { program.Send(commandErrorMsg(e)) },
	}

	engine, err := buildEngine(conn, sink)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Start(ctx); err != nil {
		return err
	}
	defer engine.Shutdown()

	_, err = program.Run()
	return err
}
