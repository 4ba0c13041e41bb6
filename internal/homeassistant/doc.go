// Package homeassistant is the broker side of the gateway: it connects to
// MQTT, announces devices through Home Assistant device discovery, publishes
// output state and turns command topics into Commands.
//
// Topic layout (control prefix "smartenough", discovery prefix "homeassistant"):
//
//	<control>/<addr>/switch/<idx>/set   command, payload ON or OFF
//	<control>/<addr>/switch/<idx>/get   state, payload ON or OFF
//	<control>/status                    startup notice
//	<discovery>/device/gate-<addr>/config
package homeassistant
