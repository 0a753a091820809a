// Package logging provides structured logging for the petdoor client.
//
// This package wraps zap with convenience functions for the logging patterns
// used throughout the client: general leveled logging plus wire-traffic dump
// helpers for protocol debugging.
//
// # Log Levels
//
//   - Debug: wire traffic dumps (TX/RX), frame extraction, timer activity
//   - Info: normal operations (connections, settings sync, state changes)
//   - Warn: non-fatal issues (writes without a connection, discarded blocks)
//   - Error: connection failures, framing desync, decode errors
//
// # Configuration
//
// Logging is silent by default. Set PETDOOR_LOG_LEVEL (or pass an explicit
// level to Initialize) to enable output:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Wire Traffic Logging
//
//	logging.LogTX(remoteAddr, rawBytes)
//	logging.LogRX(remoteAddr, rawBytes)
//
// Dumps are truncated to 256 bytes and rendered as printable ASCII.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
