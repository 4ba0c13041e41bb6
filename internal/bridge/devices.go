package bridge

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/iogate/internal/homeassistant"
	"github.com/danmuck/iogate/internal/protocol"
)

// DeviceStatus is what the gateway last heard from one bus address.
type DeviceStatus struct {
	Name       string    `json:"name,omitempty"`
	Addr       uint8     `json:"addr"`
	Configured bool      `json:"configured"`
	LastSeen   time.Time `json:"last_seen"`
	LastType   string    `json:"last_type,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Uptime     uint32    `json:"uptime,omitempty"`
	Errors     uint16    `json:"errors,omitempty"`
	Warnings   uint16    `json:"warnings,omitempty"`
	LastError  uint32    `json:"last_error,omitempty"`
	Outputs    []string  `json:"outputs,omitempty"`
}

// DeviceTable tracks configured devices and anything else seen on the bus.
type DeviceTable struct {
	mu      sync.RWMutex
	devices map[uint8]*DeviceStatus
}

func NewDeviceTable(devs []homeassistant.Device) *DeviceTable {
	t := &DeviceTable{devices: make(map[uint8]*DeviceStatus, len(devs))}
	for _, d := range devs {
		t.devices[d.Addr] = &DeviceStatus{
			Name:       d.Name,
			Addr:       d.Addr,
			Configured: true,
			Outputs:    append([]string(nil), d.Outputs...),
		}
	}
	return t
}

// Observe records msg as the latest traffic from addr.
func (t *DeviceTable) Observe(addr uint8, msg protocol.Message, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.devices[addr]
	if !ok {
		st = &DeviceStatus{Addr: addr}
		t.devices[addr] = st
	}
	st.LastSeen = at
	st.LastType = protocol.Name(msg)
	switch m := msg.(type) {
	case protocol.Info:
		if m.Code == protocol.InfoStarted {
			st.StartedAt = at
		}
	case protocol.Status:
		st.Uptime = m.Uptime
		st.Errors = m.Errors
		st.Warnings = m.Warnings
	case protocol.Error:
		st.LastError = m.Code
	}
}

// Configured returns the status of addr if it is in the device config.
func (t *DeviceTable) Configured(addr uint8) (DeviceStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.devices[addr]
	if !ok || !st.Configured {
		return DeviceStatus{}, false
	}
	return cloneStatus(st), true
}

// Snapshot lists every known device ordered by address.
func (t *DeviceTable) Snapshot() []DeviceStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]DeviceStatus, 0, len(t.devices))
	for _, st := range t.devices {
		out = append(out, cloneStatus(st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func cloneStatus(st *DeviceStatus) DeviceStatus {
	c := *st
	c.Outputs = append([]string(nil), st.Outputs...)
	return c
}
