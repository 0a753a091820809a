package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickrout/ha-powerpetdoor/internal/bridge"
	"github.com/nickrout/ha-powerpetdoor/internal/config"
	"github.com/nickrout/ha-powerpetdoor/internal/discovery"
	"github.com/nickrout/ha-powerpetdoor/internal/door"
	"github.com/nickrout/ha-powerpetdoor/internal/logging"
)

// Command flags
var (
	configPath  string
	hostFlag    string
	portFlag    int
	holdFlag    bool
	scanTimeout int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&hostFlag, "host", "", "Door controller address (overrides config)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Door controller TCP port (overrides config)")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(discoverCmd)
}

// loadConfig assembles the effective configuration from the config file and
// command-line overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if hostFlag != "" {
		cfg.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.LogLevel != "" {
		if err := logging.Initialize(cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
	} else if err := logging.InitializeFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	return cfg, nil
}

// startClient builds a door client and waits for the connection to come up.
func startClient(cfg *config.Config) (*door.Client, error) {
	c := door.New(cfg)
	c.Start()

	deadline := time.Now().Add(cfg.GetConnectTimeout() + time.Second)
	for !c.IsAvailable() {
		if time.Now().After(deadline) {
			c.Stop()
			return nil, fmt.Errorf("no connection to %s within %s", cfg.Addr(), cfg.GetConnectTimeout())
		}
		time.Sleep(50 * time.Millisecond)
	}
	return c, nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the door's current status and settings",
	Long: `Connect to the door controller, wait for the first full state
snapshot (settings sync plus door status) and print it.`,
	Example: `  petdoor status --host 192.168.1.50
  petdoor status --config petdoor.yaml`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	c, err := startClient(cfg)
	if err != nil {
		return err
	}
	defer c.Stop()

	// Connecting triggers a settings sync which in turn chases a status
	// request, so a complete snapshot arrives without prompting.
	u, err := waitForSnapshot(c, 10*time.Second)
	if err != nil {
		return err
	}

	fmt.Printf("Door:   %s\n", cfg.Addr())
	fmt.Printf("Status: %s\n", u.Status)
	if !u.LastChange.IsZero() {
		fmt.Printf("Last change: %s\n", u.LastChange.Local().Format(time.RFC1123))
	}
	if len(u.Settings) > 0 {
		fmt.Println("Settings:")
		keys := make([]string, 0, len(u.Settings))
		for k := range u.Settings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-16s %s\n", k, u.Settings[k])
		}
	}
	return nil
}

// waitForSnapshot consumes updates until one carries both a door status and
// settings, or the timeout passes.
func waitForSnapshot(c *door.Client, timeout time.Duration) (door.Update, error) {
	deadline := time.After(timeout)
	for {
		select {
		case u := <-c.Updates():
			if u.Status != "" && len(u.Settings) > 0 {
				return u, nil
			}
		case <-deadline:
			return door.Update{}, fmt.Errorf("no complete state snapshot within %s", timeout)
		}
	}
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the door",
	Long: `Send an open command to the door controller.

Without --hold the door cycles: it rises, pauses, and closes on its own.
With --hold the door stays up until an explicit close.`,
	Example: `  petdoor open --host 192.168.1.50
  petdoor open --hold --host 192.168.1.50`,
	RunE: runOpen,
}

func init() {
	openCmd.Flags().BoolVar(&holdFlag, "hold", false, "Hold the door open until closed explicitly")
}

func runOpen(cmd *cobra.Command, args []string) error {
	return runCommand(func(c *door.Client) {
		if holdFlag {
			c.OpenAndHold()
		} else {
			c.Open()
		}
	})
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the door",
	Example: `  petdoor close --host 192.168.1.50`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(func(c *door.Client) {
			c.CloseDoor()
		})
	},
}

// runCommand connects, issues one command and reports the next door status
// the controller announces.
func runCommand(send func(*door.Client)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	c, err := startClient(cfg)
	if err != nil {
		return err
	}
	defer c.Stop()

	send(c)

	// The controller acknowledges motion with a DOOR_STATUS event.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case u := <-c.Updates():
			if u.Status != "" {
				fmt.Printf("Door status: %s\n", u.Status)
				return nil
			}
		case <-deadline:
			fmt.Println("Command sent (no status report within 10s)")
			return nil
		}
	}
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch door state until interrupted",
	Long: `Connect and keep running, printing every door state change.

When the configured MQTT broker is set, each state change is also published
to <topic_prefix>/<door>/state so automation systems can follow along.`,
	Example: `  petdoor watch --host 192.168.1.50
  petdoor watch --config petdoor.yaml`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := door.New(cfg)
	c.Start()
	defer c.Stop()

	updates := c.Updates()

	// With a broker configured the bridge taps the update stream; the
	// console printing below happens either way.
	if cfg.MQTT.Broker != "" {
		pub, err := bridge.NewMQTTPublisher(cfg)
		if err != nil {
			return fmt.Errorf("mqtt bridge: %w", err)
		}
		tapped := make(chan door.Update, 16)
		b := bridge.NewBridge(pub)
		go b.Run(ctx, tapped)
		updates = tee(ctx, c.Updates(), tapped)

		fmt.Printf("Publishing state to %s (topic %s)\n",
			cfg.MQTT.Broker, bridge.StateTopic(cfg.MQTT.TopicPrefix, cfg.Name))
	}

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", cfg.Addr())

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nStopping")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			line := fmt.Sprintf("%s  status=%s", time.Now().Format("15:04:05"), u.Status)
			if !u.LastChange.IsZero() {
				line += fmt.Sprintf("  changed=%s", u.LastChange.Local().Format("15:04:05"))
			}
			fmt.Println(line)
		}
	}
}

// tee forwards updates to the bridge channel while passing them through for
// console output. Bridge sends never block the console path.
func tee(ctx context.Context, in <-chan door.Update, bridgeCh chan<- door.Update) <-chan door.Update {
	out := make(chan door.Update, 16)
	go func() {
		defer close(out)
		defer close(bridgeCh)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				select {
				case bridgeCh <- u:
				default:
				}
				select {
				case out <- u:
				default:
				}
			}
		}
	}()
	return out
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the local network for door controllers",
	Long: `Scan for Power Pet Door controllers using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts from door controllers and displays
all discovered devices with their addresses and metadata.`,
	Example: `  # Scan for 10 seconds (default)
  petdoor discover

  # Quick 3-second scan
  petdoor discover --timeout 3`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for door controllers (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.ScanForDevices(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No door controllers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the controller is powered on and joined to WiFi")
		fmt.Println("  - Verify this machine is on the same network segment")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host to specify the address manually")
		return nil
	}

	fmt.Printf("Found %d controller(s):\n\n", len(devices))

	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Hostname)
		fmt.Printf("   Serial:  %s\n", device.Serial)
		fmt.Printf("   Address: %s\n", device.Addr())
		if len(device.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", device.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'petdoor status --host <ip>' to inspect a controller")

	return nil
}
