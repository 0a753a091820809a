package protocol

import (
	"fmt"
	"strconv"
)

// Message classes. Every outbound message carries its payload under one of
// these keys.
const (
	ClassCommand = "cmd"
	ClassConfig  = "config"
	ClassPing    = "PING"
)

// Direction is the fixed direction marker on outbound messages
// (panel-to-door).
const Direction = "p2d"

// Command names (verified from live captures of the mobile app and the
// device's WiFi module).
const (
	CmdOpen        = "OPEN"
	CmdOpenAndHold = "OPEN_AND_HOLD"
	CmdClose       = "CLOSE"

	CmdGetSettings   = "GET_SETTINGS"
	CmdGetDoorStatus = "GET_DOOR_STATUS"
	CmdDoorStatus    = "DOOR_STATUS"

	CmdGetSensors     = "GET_SENSORS"
	CmdEnableInside   = "ENABLE_INSIDE"
	CmdDisableInside  = "DISABLE_INSIDE"
	CmdEnableOutside  = "ENABLE_OUTSIDE"
	CmdDisableOutside = "DISABLE_OUTSIDE"

	CmdGetPower = "GET_POWER"
	CmdPowerOn  = "POWER_ON"
	CmdPowerOff = "POWER_OFF"

	CmdGetTimersEnabled = "GET_TIMERS_ENABLED"
	CmdEnableTimers     = "ENABLE_TIMERS"
	CmdDisableTimers    = "DISABLE_TIMERS"
)

// Door status values reported in the door_status field.
const (
	DoorIdle    = "DOOR_IDLE"
	DoorClosed  = "DOOR_CLOSED"
	DoorClosing = "DOOR_CLOSING"
	DoorOpening = "DOOR_RISING"
	DoorOpen    = "DOOR_HOLDING"
	DoorSlowing = "DOOR_SLOWING"
)

// Setting keys used in the cumulative settings mapping.
const (
	SettingInside        = "inside"
	SettingOutside       = "outside"
	SettingPowerState    = "power_state"
	SettingTimersEnabled = "timersEnabled"
)

// Event is a decoded inbound JSON block. Only CMD and Success are always
// present; the remaining fields depend on the command.
type Event struct {
	CMD           string         `json:"CMD"`
	Success       string         `json:"success"`
	DoorStatus    string         `json:"door_status"`
	Settings      map[string]any `json:"settings"`
	Inside        *bool          `json:"inside"`
	Outside       *bool          `json:"outside"`
	PowerState    any            `json:"power_state"`
	TimersEnabled any            `json:"timersEnabled"`
	MsgID         *int64         `json:"msgID"`
}

// Ok reports whether the device flagged the reply as successful. The device
// sends success as the string "true" or "false", not a JSON boolean.
func (e *Event) Ok() bool {
	return e.Success == "true"
}

// NormalizeSetting converts a raw JSON settings value to its string form for
// the settings mapping. Booleans become "true"/"false", integral numbers lose
// the decimal point.
func NormalizeSetting(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// NormalizeSettings converts a decoded settings object to the string/string
// mapping held by the device state.
func NormalizeSettings(raw map[string]any) map[string]string {
	settings := make(map[string]string, len(raw))
	for k, v := range raw {
		settings[k] = NormalizeSetting(v)
	}
	return settings
}
