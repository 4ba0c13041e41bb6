// Package gateway wires the serial pipeline, the bus router and the broker
// client into one process and serves the admin HTTP surface.
package gateway
