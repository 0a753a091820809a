package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the door controller's stock behavior. Intervals are in
// seconds.
const (
	DefaultName           = "Power Pet Door"
	DefaultPort           = 3000
	DefaultConnectTimeout = 5.0
	DefaultReconnect      = 30.0
	DefaultKeepAlive      = 30.0
	DefaultRefresh        = 300.0
	DefaultHold           = true

	DefaultMQTTClientID    = "petdoor"
	DefaultMQTTTopicPrefix = "powerpetdoor"
)

// Config is the root configuration for the petdoor client, loaded from YAML.
type Config struct {
	// Name is a human-readable label for this door, used in topics and logs.
	Name string `yaml:"name"`

	// Host is the door controller's address. Required.
	Host string `yaml:"host"`

	// Port is the door controller's TCP port.
	Port int `yaml:"port"`

	// ConnectTimeout is the TCP connect timeout in seconds.
	ConnectTimeout float64 `yaml:"connect_timeout"`

	// Reconnect is the fixed delay in seconds before a reconnect attempt.
	// Reconnection retries indefinitely at this interval; there is no
	// backoff ceiling to tune.
	Reconnect float64 `yaml:"reconnect"`

	// KeepAlive is the idle interval in seconds after which a PING is sent.
	KeepAlive float64 `yaml:"keep_alive"`

	// Refresh is the interval in seconds between full settings syncs,
	// measured from the last confirmed GET_SETTINGS reply.
	Refresh float64 `yaml:"refresh"`

	// Hold selects OPEN_AND_HOLD over OPEN when turning the door on without
	// an explicit hold choice.
	Hold *bool `yaml:"hold"`

	// LogLevel overrides the PETDOOR_LOG_LEVEL environment variable.
	LogLevel string `yaml:"log_level"`

	// MQTT configures the optional state bridge. Leave Broker empty to
	// disable it.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// MQTTConfig contains broker settings for the state bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // e.g. "tcp://192.168.1.2:1883"
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// Default returns a Config populated with defaults. Host must still be set
// before use.
func Default() *Config {
	hold := DefaultHold
	return &Config{
		Name:           DefaultName,
		Port:           DefaultPort,
		ConnectTimeout: DefaultConnectTimeout,
		Reconnect:      DefaultReconnect,
		KeepAlive:      DefaultKeepAlive,
		Refresh:        DefaultRefresh,
		Hold:           &hold,
		MQTT: MQTTConfig{
			ClientID:    DefaultMQTTClientID,
			TopicPrefix: DefaultMQTTTopicPrefix,
		},
	}
}

// Load reads and parses the YAML config file at path, applies defaults for
// omitted fields and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ApplyDefaults fills in zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Reconnect == 0 {
		c.Reconnect = DefaultReconnect
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	if c.Refresh == 0 {
		c.Refresh = DefaultRefresh
	}
	if c.Hold == nil {
		hold := DefaultHold
		c.Hold = &hold
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultMQTTClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultMQTTTopicPrefix
	}
}

// Validate checks the configuration for values the client cannot work with.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("config: host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1-65535", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("config: connect_timeout must be positive, got %v", c.ConnectTimeout)
	}
	if c.Reconnect <= 0 {
		return fmt.Errorf("config: reconnect must be positive, got %v", c.Reconnect)
	}
	if c.KeepAlive <= 0 {
		return fmt.Errorf("config: keep_alive must be positive, got %v", c.KeepAlive)
	}
	if c.Refresh <= 0 {
		return fmt.Errorf("config: refresh must be positive, got %v", c.Refresh)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt qos %d out of range 0-2", c.MQTT.QoS)
	}
	return nil
}

// Addr returns the door controller's host:port address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetConnectTimeout returns the TCP connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return secondsToDuration(c.ConnectTimeout)
}

// GetReconnect returns the reconnect delay as a Duration.
func (c *Config) GetReconnect() time.Duration {
	return secondsToDuration(c.Reconnect)
}

// GetKeepAlive returns the keepalive idle interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return secondsToDuration(c.KeepAlive)
}

// GetRefresh returns the settings refresh interval as a Duration.
func (c *Config) GetRefresh() time.Duration {
	return secondsToDuration(c.Refresh)
}

// HoldByDefault reports whether OPEN_AND_HOLD is the default open command.
func (c *Config) HoldByDefault() bool {
	return c.Hold == nil || *c.Hold
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
