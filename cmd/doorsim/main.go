// Doorsim is a Power Pet Door controller simulator.
//
// It listens on a plain TCP socket and speaks the controller's JSON
// protocol, simulating door motion, sensor toggles and power state. Use it
// to develop and test petdoor clients without hardware.
//
// Usage:
//
//	doorsim serve [flags]
//
// See 'doorsim serve --help' for available options.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickrout/ha-powerpetdoor/internal/sim"
	"github.com/nickrout/ha-powerpetdoor/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "doorsim",
	Short: "Power Pet Door controller simulator",
	Long: `A standalone simulator for the Power Pet Door TCP protocol.

The simulator answers settings queries, executes open/close commands by
walking a simulated door through its motion phases, and broadcasts
DOOR_STATUS events to every connected client.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var (
	host     string
	port     int
	logLevel string
	step     time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulator",
	Example: `  # Listen on the controller's stock port
  doorsim serve

  # Faster door motion for tests
  doorsim serve --port 3001 --step 500ms --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 3000, "Listen port")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().DurationVar(&step, "step", sim.DefaultMotionStep, "Time per door motion phase")
}

func runServe(cmd *cobra.Command, args []string) error {
	server, err := sim.New(&sim.Config{
		Host:       host,
		Port:       port,
		MotionStep: step,
		LogLevel:   logLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to create simulator: %w", err)
	}
	return server.Start()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("doorsim %s (commit: %s)\n", version.Version, version.Commit)
	},
}
