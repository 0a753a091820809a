package sim

import (
	"time"

	"github.com/nickrout/ha-powerpetdoor/internal/protocol"
)

// doorModel is the simulated door: its current status, its sensor and power
// settings, and the timer driving motion through its phases. Guarded by
// Server.mu.
type doorModel struct {
	status string

	inside  bool
	outside bool
	power   bool
	timers  bool

	// motionSeq invalidates scheduled motion steps when a new command
	// preempts the current motion.
	motionSeq uint64
	motion    *time.Timer
}

func newDoorModel() *doorModel {
	return &doorModel{
		status:  protocol.DoorIdle,
		inside:  true,
		outside: true,
		power:   true,
		timers:  false,
	}
}

// settingsCopy renders the door's settings the way the controller reports
// them in a GET_SETTINGS reply.
func (d *doorModel) settingsCopy() map[string]any {
	return map[string]any{
		protocol.SettingInside:        boolString(d.inside),
		protocol.SettingOutside:       boolString(d.outside),
		protocol.SettingPowerState:    boolString(d.power),
		protocol.SettingTimersEnabled: boolString(d.timers),
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (d *doorModel) stopMotionLocked() {
	d.motionSeq++
	if d.motion != nil {
		d.motion.Stop()
		d.motion = nil
	}
}

// setStatusLocked updates the door status and broadcasts it. Caller holds
// s.mu.
func (s *Server) setStatusLocked(status string) {
	s.door.status = status
	s.broadcastStatusLocked()
}

// scheduleStepLocked arms the next motion phase. The step is dropped if a
// later command restarted the motion sequence in the meantime.
func (s *Server) scheduleStepLocked(fn func()) {
	seq := s.door.motionSeq
	s.door.motion = time.AfterFunc(s.config.MotionStep, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq != s.door.motionSeq {
			return
		}
		fn()
	})
}

// startMotionLocked raises the door. Without hold the door cycles back down
// on its own after the holding phase.
func (s *Server) startMotionLocked(hold bool) {
	s.door.stopMotionLocked()
	s.setStatusLocked(protocol.DoorOpening)
	s.scheduleStepLocked(func() {
		s.setStatusLocked(protocol.DoorOpen)
		if !hold {
			s.scheduleStepLocked(func() {
				s.runCloseSequenceLocked()
			})
		}
	})
}

// startCloseLocked lowers the door unless it is already down.
func (s *Server) startCloseLocked() {
	if s.door.status == protocol.DoorClosed || s.door.status == protocol.DoorIdle {
		return
	}
	s.door.stopMotionLocked()
	s.runCloseSequenceLocked()
}

// runCloseSequenceLocked walks the door through its closing phases.
func (s *Server) runCloseSequenceLocked() {
	s.setStatusLocked(protocol.DoorSlowing)
	s.scheduleStepLocked(func() {
		s.setStatusLocked(protocol.DoorClosing)
		s.scheduleStepLocked(func() {
			s.setStatusLocked(protocol.DoorClosed)
			s.scheduleStepLocked(func() {
				s.setStatusLocked(protocol.DoorIdle)
			})
		})
	})
}
