package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindGateway = "gateway"
	KindDevices = "devices"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindGateway:
		return gatewayTemplate, nil
	case KindDevices:
		return devicesTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads path as kind and reports the first problem found.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindGateway:
		_, err := LoadGatewayFile(path)
		return err
	case KindDevices:
		_, err := LoadDeviceFile(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const gatewayTemplate = `time_interval = "60s"
heartbeat_interval = "30s"
admin_listen_addr = "127.0.0.1:7080"
cors_origins = ["http://localhost:3000"]
# devices_file = "cmd/iogatectl/devices.toml"

[serial]
port = "/dev/ttyACM0"
baud_rate = 115200
sync_mode = "single"
queue_capacity = 15
chunk_size = 512

[mqtt]
host = "localhost"
port = 1883
# client_id = "iogate-1234abcd"
keep_alive = "30s"
connect_timeout = "10s"
max_connect_attempts = 5
discovery_prefix = "homeassistant"
control_prefix = "smartenough"
test_topic = "iogate/test"

[devices.hall]
addr = 1
outputs = { count = 4, labels = ["hall-ceiling", "hall-wall"] }
inputs = { count = 2 }

[devices.kitchen]
addr = 2
outputs = { count = 8 }
`

const devicesTemplate = `[devices.hall]
addr = 1
outputs = { count = 4, labels = ["hall-ceiling", "hall-wall"] }
inputs = { count = 2 }

[devices.kitchen]
addr = 2
outputs = { count = 8 }

[devices.garage]
addr = 3
outputs = { count = 2, labels = ["garage-door", "garage-light"] }
inputs = { count = 1, labels = ["garage-sensor"] }
`
