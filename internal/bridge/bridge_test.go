package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nickrout/ha-powerpetdoor/internal/door"
	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

func TestFormatState(t *testing.T) {
	tests := []struct {
		name   string
		update door.Update
		verify func(t *testing.T, m map[string]any)
	}{
		{
			name: "status only",
			update: door.Update{
				Status:   protocol.DoorClosed,
				Settings: map[string]string{},
			},
			verify: func(t *testing.T, m map[string]any) {
				if m["status"] != protocol.DoorClosed {
					t.Errorf("status = %v, want %v", m["status"], protocol.DoorClosed)
				}
				if _, present := m["last_change"]; present {
					t.Error("last_change present for zero timestamp")
				}
			},
		},
		{
			name: "with last change and settings",
			update: door.Update{
				Status:     protocol.DoorOpen,
				LastChange: time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC),
				Settings:   map[string]string{"inside": "true"},
			},
			verify: func(t *testing.T, m map[string]any) {
				if m["last_change"] != "2026-08-26T10:30:00Z" {
					t.Errorf("last_change = %v", m["last_change"])
				}
				settings, ok := m["settings"].(map[string]any)
				if !ok || settings["inside"] != "true" {
					t.Errorf("settings = %v", m["settings"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatState(tt.update)
			if err != nil {
				t.Fatalf("FormatState() error: %v", err)
			}
			var m map[string]any
			if err := json.Unmarshal(payload, &m); err != nil {
				t.Fatalf("payload is not valid JSON: %v", err)
			}
			tt.verify(t, m)
		})
	}
}

func TestTopics(t *testing.T) {
	tests := []struct {
		prefix, name string
		state, avail string
	}{
		{"powerpetdoor", "Power Pet Door", "powerpetdoor/power_pet_door/state", "powerpetdoor/power_pet_door/availability"},
		{"home", "back/door", "home/back_door/state", "home/back_door/availability"},
		{"home", "  ", "home/door/state", "home/door/availability"},
	}
	for _, tt := range tests {
		if got := StateTopic(tt.prefix, tt.name); got != tt.state {
			t.Errorf("StateTopic(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.state)
		}
		if got := AvailabilityTopic(tt.prefix, tt.name); got != tt.avail {
			t.Errorf("AvailabilityTopic(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.avail)
		}
	}
}

func TestBridge_ForwardsUpdates(t *testing.T) {
	pub := NewFakePublisher()
	b := NewBridge(pub)

	updates := make(chan door.Update, 4)
	updates <- door.Update{Status: protocol.DoorOpening, Settings: map[string]string{}}
	updates <- door.Update{Status: protocol.DoorOpen, Settings: map[string]string{}}
	close(updates)

	b.Run(context.Background(), updates)

	if got := pub.StateCount(); got != 2 {
		t.Fatalf("published %d states, want 2", got)
	}
	var m map[string]any
	if err := json.Unmarshal(pub.LastState(), &m); err != nil {
		t.Fatalf("last payload invalid: %v", err)
	}
	if m["status"] != protocol.DoorOpen {
		t.Errorf("last status = %v, want %v", m["status"], protocol.DoorOpen)
	}

	// Availability brackets the run, and the publisher is released.
	if len(pub.Availability) != 2 || !pub.Availability[0] || pub.Availability[1] {
		t.Errorf("availability = %v, want [true false]", pub.Availability)
	}
	if !pub.Closed {
		t.Error("publisher not closed after Run returned")
	}
}

func TestBridge_PublishErrorsDoNotStopTheStream(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker unavailable")
	b := NewBridge(pub)

	updates := make(chan door.Update, 2)
	updates <- door.Update{Status: protocol.DoorClosed}
	updates <- door.Update{Status: protocol.DoorOpen}
	close(updates)

	// Must drain both updates and return despite every publish failing.
	done := make(chan struct{})
	go func() {
		b.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the stream closed")
	}
	if !pub.Closed {
		t.Error("publisher not closed")
	}
}

func TestBridge_StopsOnContextCancel(t *testing.T) {
	pub := NewFakePublisher()
	b := NewBridge(pub)

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan door.Update) // never closed, never written

	done := make(chan struct{})
	go func() {
		b.Run(ctx, updates)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
