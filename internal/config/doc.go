// Package config loads and validates the petdoor client configuration.
//
// Configuration is a single YAML file. All fields except host have defaults
// matching the door controller's stock behavior:
//
//	name: "Back Door"
//	host: 192.168.1.50
//	port: 3000
//	connect_timeout: 5    # seconds
//	reconnect: 30         # seconds, fixed delay between reconnect attempts
//	keep_alive: 30        # seconds of idle before a PING
//	refresh: 300          # seconds between full settings syncs
//	hold: true            # OPEN_AND_HOLD by default
//	log_level: info
//	mqtt:
//	  broker: tcp://192.168.1.2:1883
//	  topic_prefix: powerpetdoor
//	  qos: 1
//
// Intervals are stored as float seconds in YAML and exposed as
// time.Duration via the Get* accessors.
package config
