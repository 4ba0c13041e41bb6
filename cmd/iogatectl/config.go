package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/iogate/internal/config"
	"github.com/danmuck/iogate/internal/gateway"
	"github.com/danmuck/iogate/internal/homeassistant"
)

// iogatectl loader for TOML config with default overlay.
func loadServiceConfig(path string) (gateway.ServiceConfig, error) {
	cfg := gateway.DefaultServiceConfig()

	var raw config.GatewayFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return gateway.ServiceConfig{}, fmt.Errorf("load iogate config: %w", err)
	}

	if meta.IsDefined("time_interval") {
		if cfg.TimeInterval, err = parseDuration("time_interval", raw.TimeInterval); err != nil {
			return gateway.ServiceConfig{}, err
		}
	}
	if meta.IsDefined("heartbeat_interval") {
		if cfg.HeartbeatInterval, err = parseDuration("heartbeat_interval", raw.HeartbeatInterval); err != nil {
			return gateway.ServiceConfig{}, err
		}
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	if meta.IsDefined("serial", "port") {
		cfg.Serial.Path = strings.TrimSpace(raw.Serial.Port)
	}
	if meta.IsDefined("serial", "baud_rate") {
		cfg.Serial.BaudRate = raw.Serial.BaudRate
	}
	if meta.IsDefined("serial", "sync_mode") {
		cfg.SyncMode = strings.TrimSpace(raw.Serial.SyncMode)
	}
	if meta.IsDefined("serial", "queue_capacity") {
		cfg.QueueCapacity = raw.Serial.QueueCapacity
	}
	if meta.IsDefined("serial", "chunk_size") {
		cfg.ChunkSize = raw.Serial.ChunkSize
	}

	if err := overlayMQTT(&cfg.MQTT, meta, raw.MQTT); err != nil {
		return gateway.ServiceConfig{}, err
	}
	creds, err := homeassistant.CredentialsFromEnv()
	if err != nil {
		return gateway.ServiceConfig{}, err
	}
	cfg.MQTT.Credentials = creds

	devices := raw.Devices
	if meta.IsDefined("devices_file") && strings.TrimSpace(raw.DevicesFile) != "" {
		if len(raw.Devices) > 0 {
			return gateway.ServiceConfig{}, fmt.Errorf("devices_file and inline devices are mutually exclusive")
		}
		devPath := strings.TrimSpace(raw.DevicesFile)
		if !filepath.IsAbs(devPath) {
			devPath = filepath.Join(filepath.Dir(path), devPath)
		}
		file, err := config.LoadDeviceFile(devPath)
		if err != nil {
			return gateway.ServiceConfig{}, err
		}
		devices = file.Devices
	} else if err := config.ValidateDevices(devices); err != nil {
		return gateway.ServiceConfig{}, err
	}
	cfg.Devices = config.Devices(devices)

	return cfg, nil
}

func overlayMQTT(cfg *homeassistant.Config, meta toml.MetaData, raw config.MQTTSection) error {
	var err error
	if meta.IsDefined("mqtt", "host") {
		cfg.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("mqtt", "port") {
		cfg.Port = raw.Port
	}
	if meta.IsDefined("mqtt", "client_id") {
		cfg.ClientID = strings.TrimSpace(raw.ClientID)
	}
	if meta.IsDefined("mqtt", "keep_alive") {
		if cfg.KeepAlive, err = parseDuration("mqtt.keep_alive", raw.KeepAlive); err != nil {
			return err
		}
	}
	if meta.IsDefined("mqtt", "connect_timeout") {
		if cfg.ConnectTimeout, err = parseDuration("mqtt.connect_timeout", raw.ConnectTimeout); err != nil {
			return err
		}
	}
	if meta.IsDefined("mqtt", "max_connect_attempts") {
		cfg.MaxConnectAttempts = raw.MaxConnectAttempts
	}
	if meta.IsDefined("mqtt", "discovery_prefix") {
		cfg.Topics.Discovery = strings.TrimSpace(raw.DiscoveryPrefix)
	}
	if meta.IsDefined("mqtt", "control_prefix") {
		cfg.Topics.Control = strings.TrimSpace(raw.ControlPrefix)
	}
	if meta.IsDefined("mqtt", "test_topic") {
		cfg.Topics.Test = strings.TrimSpace(raw.TestTopic)
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
