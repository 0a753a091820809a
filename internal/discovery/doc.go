// Package discovery provides mDNS-based discovery of Power Pet Door
// controllers.
//
// The controller's WiFi module advertises an "_http._tcp" service for its
// setup page; the door protocol itself listens on a fixed TCP port. This
// package browses for those advertisements, filters them by the controller's
// hostname pattern and reports each match with the address the protocol
// client should dial.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(10 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, device := range devices {
//	    fmt.Printf("Found: %s, dial %s\n", device.Hostname, device.Addr())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Controllers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
//
// # Thread Safety
//
// This package is safe for concurrent use. Multiple discovery sessions can
// run simultaneously without interference.
package discovery
