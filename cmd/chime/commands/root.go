// Package commands provides the CLI command definitions for chime.
package commands

import (
	"context"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/chimelab/chime/internal/cli/client"
	"github.com/urfave/cli/v3"
)

// Styles for CLI output
var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Strikethrough(true)
)

// New creates the root CLI command with all subcommands
func New(version, commit, date string) *cli.Command {
	return &cli.Command{
		Name:    "chime",
		Usage:   "Alarm clock service with exact scheduling and wake signals",
		Version: version,
		Description: `chime runs the alarm lifecycle service and provides client
   commands for inspecting and mutating alarms over its HTTP API.

   Use 'chime serve' to run the server, 'chime list' to see alarms.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
				Sources: cli.EnvVars("CHIME_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "server",
				Usage:   "chime server URL",
				Value:   "http://localhost:8125",
				Sources: cli.EnvVars("CHIME_SERVER_URL"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				log.SetLevel(log.DebugLevel)
			}
			if cmd.Bool("no-color") {
				log.SetStyles(log.DefaultStyles())
				lipgloss.SetHasDarkBackground(false)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			listCommand(),
			createCommand(),
			toggleCommand(),
			deleteCommand(),
			ringingCommand(),
			signalCommand(),
		},
	}
}

// apiClient builds an API client from the root flags.
func apiClient(cmd *cli.Command) (*client.Client, error) {
	return client.New(cmd.String("server"), 30*time.Second)
}
