// Petdoor is a client for Power Pet Door networked door controllers.
//
// It speaks the controller's TCP JSON protocol to drive the door, flip
// sensor and power settings, and watch state changes, with an optional MQTT
// bridge that republishes door state for home automation consumers.
//
// Usage:
//
//	petdoor [command] [flags]
//
// See 'petdoor --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickrout/ha-powerpetdoor/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "petdoor",
	Short: "Power Pet Door client",
	Long: `A client for Power Pet Door networked door controllers.

Drives the door over its TCP JSON protocol: open, close, sensor and power
toggles, live state watching with an optional MQTT bridge, and mDNS
discovery of controllers on the local network.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("petdoor %s (commit: %s)\n", version.Version, version.Commit)
	},
}
