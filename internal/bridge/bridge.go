package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nickrout/ha-powerpetdoor/internal/door"
	"github.com/nickrout/ha-powerpetdoor/internal/logging"
)

// Publisher delivers door state to a broker. The real implementation talks
// MQTT; tests use FakePublisher.
type Publisher interface {
	// PublishState sends a door state payload. A failure must not crash
	// the caller; the bridge logs it and carries on.
	PublishState(payload []byte) error

	// PublishAvailability announces whether the door client is running.
	PublishAvailability(online bool) error

	// Close disconnects from the broker.
	Close() error
}

// StatePayload is the JSON document published for every door state update.
type StatePayload struct {
	Status     string            `json:"status"`
	LastChange string            `json:"last_change,omitempty"`
	Settings   map[string]string `json:"settings"`
}

// FormatState renders an update as the published JSON payload. A zero
// LastChange is omitted rather than serialized as the epoch.
func FormatState(u door.Update) ([]byte, error) {
	p := StatePayload{
		Status:   u.Status,
		Settings: u.Settings,
	}
	if !u.LastChange.IsZero() {
		p.LastChange = u.LastChange.UTC().Format(time.RFC3339)
	}
	return json.Marshal(p)
}

// StateTopic returns the topic door state is published to.
func StateTopic(prefix, name string) string {
	return prefix + "/" + slugify(name) + "/state"
}

// AvailabilityTopic returns the topic online/offline announcements are
// published to. It also serves as the Last Will topic.
func AvailabilityTopic(prefix, name string) string {
	return prefix + "/" + slugify(name) + "/availability"
}

// slugify turns a door name into a topic segment: lower case, spaces and
// topic separators replaced with underscores.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '+', '#':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "door"
	}
	return s
}

// Bridge forwards door state updates to a Publisher until the context ends
// or the update stream closes.
type Bridge struct {
	pub Publisher
	log *zap.Logger
}

// NewBridge wraps a Publisher.
func NewBridge(pub Publisher) *Bridge {
	return &Bridge{pub: pub, log: logging.GetLogger()}
}

// Run announces availability, then forwards every update from the stream.
// Publish failures are logged and skipped so a flaky broker never stalls the
// door connection. On return the bridge announces offline and closes the
// publisher.
func (b *Bridge) Run(ctx context.Context, updates <-chan door.Update) {
	if err := b.pub.PublishAvailability(true); err != nil {
		b.log.Warn("Failed to announce online availability", zap.Error(err))
	}
	defer func() {
		if err := b.pub.PublishAvailability(false); err != nil {
			b.log.Warn("Failed to announce offline availability", zap.Error(err))
		}
		if err := b.pub.Close(); err != nil {
			b.log.Warn("Failed to close publisher", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			payload, err := FormatState(u)
			if err != nil {
				b.log.Error("Failed to format state payload", zap.Error(err))
				continue
			}
			if err := b.pub.PublishState(payload); err != nil {
				b.log.Warn("Failed to publish state update", zap.Error(err))
				continue
			}
			b.log.Debug("Published state update", zap.String("status", u.Status))
		}
	}
}
