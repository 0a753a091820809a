package door

import (
	"go.uber.org/zap"

	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

// Command methods. Each sends exactly one message and returns its allocated
// msgId; the device's reply arrives later as an inbound event. None of them
// block on the device.

// Open raises the door and lets it close again on its own.
func (c *Client) Open() int64 {
	return c.sendMessage(protocol.ClassCommand, protocol.CmdOpen)
}

// OpenAndHold raises the door and holds it up until CloseDoor.
func (c *Client) OpenAndHold() int64 {
	return c.sendMessage(protocol.ClassCommand, protocol.CmdOpenAndHold)
}

// CloseDoor lowers the door.
func (c *Client) CloseDoor() int64 {
	return c.sendMessage(protocol.ClassCommand, protocol.CmdClose)
}

// TurnOn opens the door, holding it when the configured hold default says so.
func (c *Client) TurnOn() int64 {
	if c.cfg.HoldByDefault() {
		return c.OpenAndHold()
	}
	return c.Open()
}

// TurnOff is an alias for CloseDoor.
func (c *Client) TurnOff() int64 {
	return c.CloseDoor()
}

// RequestStatus asks the device for the current door status.
func (c *Client) RequestStatus() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdGetDoorStatus)
}

// RequestSettings asks the device for a full settings sync.
func (c *Client) RequestSettings() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdGetSettings)
}

// EnableInside enables the inside motion sensor.
func (c *Client) EnableInside() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdEnableInside)
}

// DisableInside disables the inside motion sensor.
func (c *Client) DisableInside() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdDisableInside)
}

// ToggleInside flips the inside sensor based on the cached setting. No
// message is sent while the setting is unknown; the returned id is 0.
func (c *Client) ToggleInside() int64 {
	return c.toggleSetting(protocol.SettingInside, protocol.CmdEnableInside, protocol.CmdDisableInside)
}

// EnableOutside enables the outside motion sensor.
func (c *Client) EnableOutside() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdEnableOutside)
}

// DisableOutside disables the outside motion sensor.
func (c *Client) DisableOutside() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdDisableOutside)
}

// ToggleOutside flips the outside sensor based on the cached setting.
func (c *Client) ToggleOutside() int64 {
	return c.toggleSetting(protocol.SettingOutside, protocol.CmdEnableOutside, protocol.CmdDisableOutside)
}

// EnableAuto enables the door's schedule timers.
func (c *Client) EnableAuto() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdEnableTimers)
}

// DisableAuto disables the door's schedule timers.
func (c *Client) DisableAuto() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdDisableTimers)
}

// ToggleAuto flips the schedule timers based on the cached setting.
func (c *Client) ToggleAuto() int64 {
	return c.toggleSetting(protocol.SettingTimersEnabled, protocol.CmdEnableTimers, protocol.CmdDisableTimers)
}

// PowerOn powers the door controller on.
func (c *Client) PowerOn() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdPowerOn)
}

// PowerOff powers the door controller off.
func (c *Client) PowerOff() int64 {
	return c.sendMessage(protocol.ClassConfig, protocol.CmdPowerOff)
}

// TogglePower flips power based on the cached setting.
func (c *Client) TogglePower() int64 {
	return c.toggleSetting(protocol.SettingPowerState, protocol.CmdPowerOn, protocol.CmdPowerOff)
}

// toggleSetting issues the opposite of the cached setting value. A setting
// that has never been reported yields no message at all.
func (c *Client) toggleSetting(key, enableCmd, disableCmd string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.settings[key] {
	case "true":
		return c.sendMessageLocked(protocol.ClassConfig, disableCmd)
	case "false":
		return c.sendMessageLocked(protocol.ClassConfig, enableCmd)
	default:
		c.log.Debug("Toggle skipped, setting unknown", zap.String("setting", key))
		return 0
	}
}
