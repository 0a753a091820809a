package bridge

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nickrout/ha-powerpetdoor/internal/config"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	retryInterval     = 5 * time.Second
	disconnectQuiesce = 1000 // milliseconds
)

// MQTTPublisher publishes door state to a real MQTT broker. State messages
// are retained so late subscribers see the current door status immediately.
type MQTTPublisher struct {
	client            paho.Client
	stateTopic        string
	availabilityTopic string
	qos               byte
}

// NewMQTTPublisher connects to the broker configured in cfg.MQTT. The broker
// holds an offline Last Will so availability flips even on an unclean exit.
func NewMQTTPublisher(cfg *config.Config) (*MQTTPublisher, error) {
	availability := AvailabilityTopic(cfg.MQTT.TopicPrefix, cfg.Name)
	qos := byte(cfg.MQTT.QoS)

	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTT.Broker).
		SetClientID(cfg.MQTT.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetConnectTimeout(connectTimeout).
		SetWill(availability, "offline", qos, true)

	if cfg.MQTT.Username != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.MQTT.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.MQTT.Broker, err)
	}

	return &MQTTPublisher{
		client:            client,
		stateTopic:        StateTopic(cfg.MQTT.TopicPrefix, cfg.Name),
		availabilityTopic: availability,
		qos:               qos,
	}, nil
}

// PublishState publishes a retained state payload.
func (p *MQTTPublisher) PublishState(payload []byte) error {
	return p.publish(p.stateTopic, payload)
}

// PublishAvailability publishes a retained online/offline marker.
func (p *MQTTPublisher) PublishAvailability(online bool) error {
	marker := "offline"
	if online {
		marker = "online"
	}
	return p.publish(p.availabilityTopic, []byte(marker))
}

func (p *MQTTPublisher) publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, p.qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing pending publishes to flush.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
