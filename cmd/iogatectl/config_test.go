package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/iogate/internal/config"
	"github.com/danmuck/iogate/internal/testutil/testlog"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)
	t.Setenv("IOGATE_MQTT_USERNAME", "gate")
	t.Setenv("IOGATE_MQTT_PASSWORD", "secret")

	cfg, err := loadServiceConfig("ex.config.toml")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TimeInterval != 45*time.Second {
		t.Fatalf("unexpected time interval: %v", cfg.TimeInterval)
	}
	if cfg.HeartbeatInterval != 10*time.Second {
		t.Fatalf("unexpected heartbeat: %v", cfg.HeartbeatInterval)
	}
	if cfg.AdminListenAddr != "127.0.0.1:7080" {
		t.Fatalf("unexpected admin listen: %q", cfg.AdminListenAddr)
	}
	if cfg.Serial.Path != "/dev/ttyACM0" || cfg.Serial.BaudRate != 57600 {
		t.Fatalf("unexpected serial config: %+v", cfg.Serial)
	}
	if cfg.SyncMode != "sliding" {
		t.Fatalf("unexpected sync mode: %q", cfg.SyncMode)
	}
	if cfg.QueueCapacity != 15 || cfg.ChunkSize != 512 {
		t.Fatalf("expected queue defaults, got capacity=%d chunk=%d", cfg.QueueCapacity, cfg.ChunkSize)
	}
	if cfg.MQTT.Host != "broker.local" || cfg.MQTT.Port != 8883 || cfg.MQTT.ClientID != "iogate-hall" {
		t.Fatalf("unexpected mqtt config: %+v", cfg.MQTT)
	}
	if cfg.MQTT.KeepAlive != 15*time.Second {
		t.Fatalf("unexpected keep alive: %v", cfg.MQTT.KeepAlive)
	}
	if cfg.MQTT.ConnectTimeout != 10*time.Second {
		t.Fatalf("expected default connect timeout, got %v", cfg.MQTT.ConnectTimeout)
	}
	if cfg.MQTT.MaxConnectAttempts != 0 {
		t.Fatalf("unexpected max connect attempts: %d", cfg.MQTT.MaxConnectAttempts)
	}
	if cfg.MQTT.Topics.Control != "house" || cfg.MQTT.Topics.Discovery != "homeassistant" {
		t.Fatalf("unexpected topics: %+v", cfg.MQTT.Topics)
	}
	if cfg.MQTT.Credentials.Username != "gate" || cfg.MQTT.Credentials.Password != "secret" {
		t.Fatalf("unexpected credentials: %+v", cfg.MQTT.Credentials)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("unexpected device count: %d", len(cfg.Devices))
	}
	if cfg.Devices[0].Name != "hall" || len(cfg.Devices[0].Outputs) != 4 || cfg.Devices[0].Outputs[1] != "hall-wall" {
		t.Fatalf("unexpected first device: %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].Name != "kitchen" || cfg.Devices[1].Addr != 2 {
		t.Fatalf("unexpected second device: %+v", cfg.Devices[1])
	}
}

func TestLoadServiceConfigInlineDevices(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), "config.toml", `
[serial]
port = "/dev/ttyUSB0"

[devices.garage]
addr = 9
outputs = { count = 1 }
`)
	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Addr != 9 || cfg.Devices[0].Outputs[0] != "garage-0" {
		t.Fatalf("unexpected devices: %+v", cfg.Devices)
	}
	if cfg.MQTT.Host != "localhost" {
		t.Fatalf("expected default broker host, got %q", cfg.MQTT.Host)
	}
}

func TestLoadServiceConfigRejectsInvalidDevices(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), "config.toml", `
[devices.a]
addr = 3

[devices.b]
addr = 3
`)
	_, err := loadServiceConfig(path)
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), "config.toml", `
[mqtt]
keep_alive = "soon"
`)
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceConfigMissingDevicesFile(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, t.TempDir(), "config.toml", `devices_file = "nope.toml"`)
	if _, err := loadServiceConfig(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
