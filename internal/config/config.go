package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/danmuck/iogate/internal/homeassistant"
	"github.com/pelletier/go-toml/v2"
)

// MaxDeviceAddr is the highest unicast bus address. 63 is broadcast.
const MaxDeviceAddr = 62

// IOConfig declares how many outputs or inputs a device has and their labels.
type IOConfig struct {
	Count  int      `toml:"count"`
	Labels []string `toml:"labels"`
}

type DeviceConfig struct {
	Addr    int      `toml:"addr"`
	Outputs IOConfig `toml:"outputs"`
	Inputs  IOConfig `toml:"inputs"`
}

// DeviceFile is the device map: one [devices.<name>] table per bus device.
type DeviceFile struct {
	Devices map[string]DeviceConfig `toml:"devices"`
}

// GatewayFile is the on-disk shape of the gateway config. Durations are
// strings accepted by time.ParseDuration.
type GatewayFile struct {
	DevicesFile       string                  `toml:"devices_file"`
	TimeInterval      string                  `toml:"time_interval"`
	HeartbeatInterval string                  `toml:"heartbeat_interval"`
	AdminListenAddr   string                  `toml:"admin_listen_addr"`
	CorsOrigins       []string                `toml:"cors_origins"`
	Serial            SerialSection           `toml:"serial"`
	MQTT              MQTTSection             `toml:"mqtt"`
	Devices           map[string]DeviceConfig `toml:"devices"`
}

type SerialSection struct {
	Port          string `toml:"port"`
	BaudRate      int    `toml:"baud_rate"`
	SyncMode      string `toml:"sync_mode"`
	QueueCapacity int    `toml:"queue_capacity"`
	ChunkSize     int    `toml:"chunk_size"`
}

type MQTTSection struct {
	Host               string `toml:"host"`
	Port               int    `toml:"port"`
	ClientID           string `toml:"client_id"`
	KeepAlive          string `toml:"keep_alive"`
	ConnectTimeout     string `toml:"connect_timeout"`
	MaxConnectAttempts int    `toml:"max_connect_attempts"`
	DiscoveryPrefix    string `toml:"discovery_prefix"`
	ControlPrefix      string `toml:"control_prefix"`
	TestTopic          string `toml:"test_topic"`
}

// ValidationError reports one invalid config field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func LoadDeviceFile(path string) (DeviceFile, error) {
	var cfg DeviceFile
	if err := loadToml(path, &cfg); err != nil {
		return DeviceFile{}, err
	}
	if err := ValidateDevices(cfg.Devices); err != nil {
		return DeviceFile{}, err
	}
	return cfg, nil
}

func LoadGatewayFile(path string) (GatewayFile, error) {
	var cfg GatewayFile
	if err := loadToml(path, &cfg); err != nil {
		return GatewayFile{}, err
	}
	if err := ValidateGatewayFile(cfg); err != nil {
		return GatewayFile{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ValidateDevices checks names, address range and uniqueness, and label
// counts.
func ValidateDevices(devices map[string]DeviceConfig) error {
	seen := make(map[int]string, len(devices))
	for _, name := range sortedNames(devices) {
		dev := devices[name]
		field := "devices." + name
		if strings.TrimSpace(name) == "" {
			return ValidationError{Field: "devices", Reason: "empty device name"}
		}
		if dev.Addr < 0 || dev.Addr > MaxDeviceAddr {
			return ValidationError{Field: field + ".addr", Reason: fmt.Sprintf("%d outside 0..%d", dev.Addr, MaxDeviceAddr)}
		}
		if other, ok := seen[dev.Addr]; ok {
			return ValidationError{Field: field + ".addr", Reason: fmt.Sprintf("%d already used by %q", dev.Addr, other)}
		}
		seen[dev.Addr] = name
		if err := validateIO(field+".outputs", name, dev.Outputs); err != nil {
			return err
		}
		if err := validateIO(field+".inputs", name, dev.Inputs); err != nil {
			return err
		}
	}
	return nil
}

// validateIO checks the channel count and that every resolved label is
// unique, including the generated "<device>-<index>" defaults.
func validateIO(field, device string, io IOConfig) error {
	if io.Count < 0 || io.Count > 255 {
		return ValidationError{Field: field + ".count", Reason: fmt.Sprintf("%d outside 0..255", io.Count)}
	}
	if len(io.Labels) > io.Count {
		return ValidationError{Field: field + ".labels", Reason: fmt.Sprintf("%d labels for %d channels", len(io.Labels), io.Count)}
	}
	seen := make(map[string]int, io.Count)
	for i, label := range homeassistant.ResolveLabels(device, io.Count, io.Labels) {
		if j, ok := seen[label]; ok {
			return ValidationError{Field: field + ".labels", Reason: fmt.Sprintf("%q used by channels %d and %d", label, j, i)}
		}
		seen[label] = i
	}
	return nil
}

func ValidateGatewayFile(cfg GatewayFile) error {
	if strings.TrimSpace(cfg.Serial.Port) == "" {
		return ValidationError{Field: "serial.port", Reason: "required"}
	}
	if cfg.Serial.BaudRate < 0 {
		return ValidationError{Field: "serial.baud_rate", Reason: "negative"}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Serial.SyncMode)) {
	case "", "single", "sliding":
	default:
		return ValidationError{Field: "serial.sync_mode", Reason: fmt.Sprintf("unknown mode %q", cfg.Serial.SyncMode)}
	}
	if strings.TrimSpace(cfg.MQTT.Host) == "" {
		return ValidationError{Field: "mqtt.host", Reason: "required"}
	}
	if cfg.MQTT.Port < 0 || cfg.MQTT.Port > 65535 {
		return ValidationError{Field: "mqtt.port", Reason: fmt.Sprintf("%d outside 0..65535", cfg.MQTT.Port)}
	}
	if len(cfg.Devices) > 0 && strings.TrimSpace(cfg.DevicesFile) != "" {
		return ValidationError{Field: "devices_file", Reason: "set together with inline devices"}
	}
	return ValidateDevices(cfg.Devices)
}

func sortedNames(devices map[string]DeviceConfig) []string {
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
