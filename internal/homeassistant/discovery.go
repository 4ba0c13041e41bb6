package homeassistant

import (
	"encoding/json"
	"fmt"
)

const (
	OriginName   = "io-gate"
	Manufacturer = "smartenough"
	SupportURL   = "https://github.com/danmuck/iogate"
)

// Version is reported in discovery origin; set at build time with -ldflags.
var Version = "dev"

type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
}

type Origin struct {
	Name       string `json:"name"`
	SWVersion  string `json:"sw_version"`
	SupportURL string `json:"support_url"`
}

type Component struct {
	Name         string `json:"name"`
	Platform     string `json:"platform"`
	DeviceClass  string `json:"device_class"`
	UniqueID     string `json:"unique_id"`
	CommandTopic string `json:"command_topic"`
	StateTopic   string `json:"state_topic"`
}

// Discovery is a device-based discovery document. Components are keyed by
// output label.
type Discovery struct {
	Device     DeviceInfo           `json:"device"`
	Origin     Origin               `json:"origin"`
	Components map[string]Component `json:"components"`
}

// NewDiscovery builds one switch component per device output.
func NewDiscovery(dev Device, topics Topics) Discovery {
	topics = topics.withDefaults()
	doc := Discovery{
		Device: DeviceInfo{
			Name:         dev.Name,
			Identifiers:  []string{DeviceIdentifier(dev.Addr)},
			Manufacturer: Manufacturer,
		},
		Origin: Origin{
			Name:       OriginName,
			SWVersion:  Version,
			SupportURL: SupportURL,
		},
		Components: make(map[string]Component, len(dev.Outputs)),
	}
	for i, label := range dev.Outputs {
		idx := uint8(i)
		doc.Components[label] = Component{
			Name:         label,
			Platform:     "switch",
			DeviceClass:  "switch",
			UniqueID:     fmt.Sprintf("io-gate-%d-%d", dev.Addr, idx),
			CommandTopic: topics.Command(dev.Addr, idx),
			StateTopic:   topics.State(dev.Addr, idx),
		}
	}
	return doc
}

func (d Discovery) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
