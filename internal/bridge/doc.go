// Package bridge routes traffic between the bus pipeline and the broker.
//
// Inbound records are decoded and mapped onto broker publishes; broker
// commands are encoded onto the egress channel; a ticker broadcasts the wall
// clock to every device. The router closes the egress channel once every
// producer has stopped.
package bridge
