package homeassistant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultControlPrefix   = "smartenough"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultTestTopic       = "iogate/test"

	PayloadOn  = "ON"
	PayloadOff = "OFF"

	StartupNotice = "daemon started"
)

var ErrBadTopic = errors.New("homeassistant: malformed command topic")

// Topics builds and parses topic names under the configured prefixes.
type Topics struct {
	Control   string
	Discovery string
	Test      string
}

func DefaultTopics() Topics {
	return Topics{
		Control:   DefaultControlPrefix,
		Discovery: DefaultDiscoveryPrefix,
		Test:      DefaultTestTopic,
	}
}

func (t Topics) withDefaults() Topics {
	d := DefaultTopics()
	if strings.TrimSpace(t.Control) == "" {
		t.Control = d.Control
	}
	if strings.TrimSpace(t.Discovery) == "" {
		t.Discovery = d.Discovery
	}
	return t
}

func (t Topics) Status() string {
	return t.Control + "/status"
}

func (t Topics) Command(addr, output uint8) string {
	return fmt.Sprintf("%s/%d/switch/%d/set", t.Control, addr, output)
}

func (t Topics) State(addr, output uint8) string {
	return fmt.Sprintf("%s/%d/switch/%d/get", t.Control, addr, output)
}

// CommandPattern matches every output command of one device.
func (t Topics) CommandPattern(addr uint8) string {
	return fmt.Sprintf("%s/%d/switch/+/set", t.Control, addr)
}

func (t Topics) DiscoveryConfig(addr uint8) string {
	return fmt.Sprintf("%s/device/%s/config", t.Discovery, DeviceIdentifier(addr))
}

// DeviceIdentifier is the stable Home Assistant identifier for addr.
func DeviceIdentifier(addr uint8) string {
	return fmt.Sprintf("gate-%d", addr)
}

// ParseCommand maps a received message onto a Command. ok is false for
// topics outside the command layout; err is set when the layout matches but
// an index is not a 0-255 number.
func (t Topics) ParseCommand(topic string, payload []byte) (cmd Command, ok bool, err error) {
	if t.Test != "" && topic == t.Test {
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return Command{Kind: CommandRaw, Raw: raw}, true, nil
	}
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != t.Control || parts[2] != "switch" || parts[4] != "set" {
		return Command{}, false, nil
	}
	device, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Command{}, false, fmt.Errorf("%w: device %q", ErrBadTopic, parts[1])
	}
	output, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return Command{}, false, fmt.Errorf("%w: output %q", ErrBadTopic, parts[3])
	}
	return Command{
		Kind:   CommandSetOutput,
		Device: uint8(device),
		Output: uint8(output),
		On:     string(payload) == PayloadOn,
	}, true, nil
}

func statePayload(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}
