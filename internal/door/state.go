package door

import (
	"time"

	"go.uber.org/zap"

	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

// Update is a snapshot of device state published after an inbound event
// changed it.
type Update struct {
	// Status is the last reported door status, empty until the first
	// DOOR_STATUS event arrives.
	Status string

	// LastChange is when the door status was last observed changing. Zero
	// until a transition between two known statuses has been seen.
	LastChange time.Time

	// Settings is a copy of the cumulative settings mapping.
	Settings map[string]string
}

// processEventLocked applies one decoded inbound event to device state and
// publishes a snapshot when state changed. Caller holds c.mu.
func (c *Client) processEventLocked(ev *protocol.Event) {
	if ev.MsgID != nil {
		c.replyMsgID = *ev.MsgID
		c.gotReply = true
	}

	if !ev.Ok() {
		c.log.Warn("Door controller reported an error", zap.String("cmd", ev.CMD))
		return
	}

	switch ev.CMD {
	case protocol.CmdGetDoorStatus, protocol.CmdDoorStatus:
		// last_change is stamped only on an observed transition between
		// two known statuses.
		if c.status != "" && ev.DoorStatus != "" && c.status != ev.DoorStatus {
			c.lastChange = time.Now().UTC()
		}
		if ev.DoorStatus != "" {
			c.status = ev.DoorStatus
		}
		c.publishLocked()

	case protocol.CmdGetSettings:
		if c.refresh != nil {
			c.refresh.Stop()
			c.refresh = nil
		}

		c.settings = protocol.NormalizeSettings(ev.Settings)
		c.log.Info("Door settings synced", zap.Int("keys", len(c.settings)))
		c.publishLocked()

		// When the door status is still unknown, chase the settings sync
		// with a status request so the first snapshot is complete.
		if c.status == "" {
			c.sendMessageLocked(protocol.ClassConfig, protocol.CmdGetDoorStatus)
		}

		// The refresh interval measures time since the last confirmed
		// settings sync, so it restarts here rather than on a wall clock.
		c.restartRefreshLocked(c.epoch)

	case protocol.CmdGetSensors,
		protocol.CmdEnableInside, protocol.CmdDisableInside,
		protocol.CmdEnableOutside, protocol.CmdDisableOutside:
		if ev.Inside != nil {
			c.settings[protocol.SettingInside] = protocol.NormalizeSetting(*ev.Inside)
		}
		if ev.Outside != nil {
			c.settings[protocol.SettingOutside] = protocol.NormalizeSetting(*ev.Outside)
		}
		c.publishLocked()

	case protocol.CmdGetPower, protocol.CmdPowerOn, protocol.CmdPowerOff:
		if ev.PowerState != nil {
			c.settings[protocol.SettingPowerState] = protocol.NormalizeSetting(ev.PowerState)
		}
		c.publishLocked()

	case protocol.CmdGetTimersEnabled, protocol.CmdEnableTimers, protocol.CmdDisableTimers:
		if ev.TimersEnabled != nil {
			c.settings[protocol.SettingTimersEnabled] = protocol.NormalizeSetting(ev.TimersEnabled)
		}
		c.publishLocked()

	default:
		c.log.Debug("Ignoring event with unhandled command", zap.String("cmd", ev.CMD))
	}
}

// publishLocked sends a state snapshot to the updates channel without
// blocking. Slow consumers miss intermediate snapshots, never current state:
// the view methods always reflect the latest.
func (c *Client) publishLocked() {
	u := Update{
		Status:     c.status,
		LastChange: c.lastChange,
		Settings:   copySettings(c.settings),
	}
	select {
	case c.updates <- u:
	default:
		c.log.Debug("Dropping state update, consumer is lagging")
	}
}

// Status returns the last reported door status, or "" when unknown.
func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastChange returns when the door status last changed and whether a
// transition has been observed at all.
func (c *Client) LastChange() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastChange, !c.lastChange.IsZero()
}

// Settings returns a copy of the cumulative settings mapping.
func (c *Client) Settings() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySettings(c.settings)
}

// ReplyMsgID returns the msgID echoed on the most recent inbound event and
// whether any reply has carried one yet.
func (c *Client) ReplyMsgID() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replyMsgID, c.gotReply
}

// IsOn reports whether the door is anything other than idle or closed. An
// unknown status counts as on, matching the device's own reporting.
func (c *Client) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status != protocol.DoorIdle && c.status != protocol.DoorClosed
}

// IsAvailable reports whether an active connection to the door controller
// exists and shutdown has not been requested.
func (c *Client) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.shutdown
}

func copySettings(settings map[string]string) map[string]string {
	out := make(map[string]string, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}
