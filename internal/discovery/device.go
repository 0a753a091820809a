package discovery

import (
	"fmt"
	"time"
)

// Device represents a discovered Power Pet Door controller on the network.
type Device struct {
	// Serial is the controller serial suffix from the hostname
	// (e.g., "A1B2C3" for "petdoor-A1B2C3.local")
	Serial string

	// Hostname is the mDNS hostname (e.g., "petdoor-A1B2C3.local")
	Hostname string

	// IP is the IPv4 address (e.g., "192.168.1.50")
	IP string

	// Port is the door protocol TCP port (typically 3000)
	Port int

	// Metadata contains additional mDNS TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	return fmt.Sprintf("Power Pet Door %s (%s) at %s:%d", d.Serial, d.Hostname, d.IP, d.Port)
}

// Addr returns the host:port address the door protocol client should dial
func (d *Device) Addr() string {
	return fmt.Sprintf("%s:%d", d.IP, d.Port)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
