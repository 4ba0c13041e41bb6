package config

import (
	"sort"

	"github.com/danmuck/iogate/internal/homeassistant"
)

// Devices converts a validated device map into broker descriptors ordered by
// address.
func Devices(entries map[string]DeviceConfig) []homeassistant.Device {
	devices := make([]homeassistant.Device, 0, len(entries))
	for name, entry := range entries {
		devices = append(devices, homeassistant.NewDevice(
			name,
			uint8(entry.Addr),
			entry.Outputs.Count,
			entry.Outputs.Labels,
			entry.Inputs.Count,
			entry.Inputs.Labels,
		))
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Addr < devices[j].Addr })
	return devices
}
