// Package sim implements a Power Pet Door controller simulator.
//
// The simulator listens on a plain TCP socket and speaks the controller's
// JSON protocol: brace-delimited blocks, request classes cmd/config/PING,
// replies echoing the request's msgId, and unsolicited DOOR_STATUS
// broadcasts as the simulated door moves through its motion phases
// (rising, holding, slowing, closing, closed, idle).
//
// All connected clients share one door. It exists for developing and testing
// clients without hardware:
//
//	doorsim serve --port 3000 --step 500ms
//	petdoor watch --host 127.0.0.1
package sim
