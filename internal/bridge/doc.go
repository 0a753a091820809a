// Package bridge forwards door state updates to an MQTT broker.
//
// The bridge is a one-way tap on the door client's update stream: each
// snapshot is rendered to a small JSON document and published retained to
// <prefix>/<door>/state, alongside an online/offline marker on
// <prefix>/<door>/availability backed by a Last Will. The bridge never sends
// commands; the door is driven over its own TCP protocol.
package bridge
