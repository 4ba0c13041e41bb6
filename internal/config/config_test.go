package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/iogate/internal/testutil/testlog"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesValidate(t *testing.T) {
	testlog.Start(t)
	for _, kind := range []string{KindGateway, KindDevices} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("write %s template: %v", kind, err)
		}
		if err := Validate(path, kind); err != nil {
			t.Fatalf("validate %s template: %v", kind, err)
		}
		if err := WriteTemplate(path, kind, false); err == nil {
			t.Fatalf("expected %s template overwrite to be refused", kind)
		}
		if err := WriteTemplate(path, kind, true); err != nil {
			t.Fatalf("forced overwrite: %v", err)
		}
	}
	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestLoadDeviceFileConvertsToDevices(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
[devices.kitchen]
addr = 5
outputs = { count = 2, labels = ["kitchen-main"] }

[devices.hall]
addr = 1
inputs = { count = 1 }
`)
	cfg, err := LoadDeviceFile(path)
	if err != nil {
		t.Fatalf("load devices: %v", err)
	}
	devs := Devices(cfg.Devices)
	if len(devs) != 2 {
		t.Fatalf("unexpected device count: %d", len(devs))
	}
	if devs[0].Name != "hall" || devs[0].Addr != 1 || len(devs[0].Outputs) != 0 || len(devs[0].Inputs) != 1 {
		t.Fatalf("unexpected first device: %+v", devs[0])
	}
	if devs[1].Name != "kitchen" || devs[1].Outputs[0] != "kitchen-main" || devs[1].Outputs[1] != "kitchen-1" {
		t.Fatalf("unexpected second device: %+v", devs[1])
	}
}

func TestValidateDevicesRejections(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name    string
		devices map[string]DeviceConfig
		field   string
	}{
		{
			name:    "broadcast addr",
			devices: map[string]DeviceConfig{"a": {Addr: 63}},
			field:   "devices.a.addr",
		},
		{
			name:    "duplicate addr",
			devices: map[string]DeviceConfig{"a": {Addr: 4}, "b": {Addr: 4}},
			field:   "devices.b.addr",
		},
		{
			name:    "too many labels",
			devices: map[string]DeviceConfig{"a": {Addr: 1, Outputs: IOConfig{Count: 1, Labels: []string{"x", "y"}}}},
			field:   "devices.a.outputs.labels",
		},
		{
			name:    "duplicate output labels",
			devices: map[string]DeviceConfig{"a": {Addr: 1, Outputs: IOConfig{Count: 3, Labels: []string{"lamp", "fan", "lamp"}}}},
			field:   "devices.a.outputs.labels",
		},
		{
			name:    "label collides with generated default",
			devices: map[string]DeviceConfig{"hall": {Addr: 1, Outputs: IOConfig{Count: 2, Labels: []string{"hall-1"}}}},
			field:   "devices.hall.outputs.labels",
		},
		{
			name:    "duplicate input labels",
			devices: map[string]DeviceConfig{"a": {Addr: 1, Inputs: IOConfig{Count: 2, Labels: []string{"door", "door"}}}},
			field:   "devices.a.inputs.labels",
		},
		{
			name:    "negative inputs",
			devices: map[string]DeviceConfig{"a": {Addr: 1, Inputs: IOConfig{Count: -1}}},
			field:   "devices.a.inputs.count",
		},
	}
	for _, tc := range cases {
		err := ValidateDevices(tc.devices)
		var verr ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: unexpected field %q", tc.name, verr.Field)
		}
	}
}

func TestValidateDevicesAcceptsDistinctLabels(t *testing.T) {
	testlog.Start(t)
	devices := map[string]DeviceConfig{
		"hall": {Addr: 1, Outputs: IOConfig{Count: 3, Labels: []string{"lamp", "", "fan"}}},
		"yard": {Addr: 2, Outputs: IOConfig{Count: 2, Labels: []string{"lamp"}}},
	}
	if err := ValidateDevices(devices); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadGatewayFileRequiresSerialAndBroker(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
[mqtt]
host = "broker"
`)
	_, err := LoadGatewayFile(path)
	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "serial.port" {
		t.Fatalf("expected serial.port error, got %v", err)
	}

	path = writeFile(t, `
[serial]
port = "/dev/ttyUSB0"
sync_mode = "greedy"

[mqtt]
host = "broker"
`)
	if _, err := LoadGatewayFile(path); !errors.As(err, &verr) || verr.Field != "serial.sync_mode" {
		t.Fatalf("expected sync_mode error, got %v", err)
	}
}

func TestLoadGatewayFileRejectsBothDeviceSources(t *testing.T) {
	testlog.Start(t)
	path := writeFile(t, `
devices_file = "devices.toml"

[serial]
port = "/dev/ttyUSB0"

[mqtt]
host = "broker"

[devices.hall]
addr = 1
`)
	var verr ValidationError
	if _, err := LoadGatewayFile(path); !errors.As(err, &verr) || verr.Field != "devices_file" {
		t.Fatalf("expected devices_file error, got %v", err)
	}
}

func TestLoadReportsParseErrors(t *testing.T) {
	testlog.Start(t)
	if _, err := LoadDeviceFile(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	path := writeFile(t, "[devices.hall\naddr = 1\n")
	if _, err := LoadDeviceFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
