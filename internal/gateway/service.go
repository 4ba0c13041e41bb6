package gateway

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/iogate/internal/bridge"
	"github.com/danmuck/iogate/internal/homeassistant"
	"github.com/danmuck/iogate/internal/pipeline"
	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/serialport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("gateway: invalid heartbeat interval")
	ErrAlreadyRunning           = errors.New("gateway: already running")
)

// Broker is the broker session the gateway drives: the router's send half
// plus connection lifecycle and the command stream.
type Broker interface {
	bridge.Publisher
	Connect(ctx context.Context) error
	Commands() <-chan homeassistant.Command
	Topics() homeassistant.Topics
	Run(ctx context.Context) error
	Close()
}

// ServiceConfig configures one gateway process.
type ServiceConfig struct {
	Serial            serialport.Config
	SyncMode          string
	QueueCapacity     int
	ChunkSize         int
	MQTT              homeassistant.Config
	Devices           []homeassistant.Device
	TimeInterval      time.Duration
	HeartbeatInterval time.Duration
	AdminListenAddr   string
	CorsOrigins       []string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Serial:            serialport.DefaultConfig(),
		SyncMode:          frame.ModeSingleShot,
		QueueCapacity:     pipeline.DefaultQueueCapacity,
		ChunkSize:         frame.MinChunkSize,
		MQTT:              homeassistant.DefaultConfig(),
		TimeInterval:      bridge.DefaultTimeInterval,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Snapshot is the gateway state reported by the admin surface and heartbeat.
type Snapshot struct {
	StartedAt time.Time      `json:"started_at"`
	Uptime    string         `json:"uptime"`
	Ready     bool           `json:"ready"`
	Pipeline  pipeline.Stats `json:"pipeline"`
	Router    bridge.Stats   `json:"router"`
}

// Service runs the gateway lifecycle: open the serial port, connect the
// broker, announce devices, then move traffic until something stops.
type Service struct {
	cfg       ServiceConfig
	openPort  func(serialport.Config) (pipeline.Port, error)
	newBroker func(homeassistant.Config) (Broker, error)

	running   atomic.Bool
	ready     atomic.Bool
	mu        sync.RWMutex
	startedAt time.Time
	pipe      *pipeline.Pipeline
	router    *bridge.Router
}

func NewService(cfg ServiceConfig) *Service {
	return &Service{
		cfg: cfg,
		openPort: func(c serialport.Config) (pipeline.Port, error) {
			port, err := serialport.Open(c)
			if err != nil {
				return nil, err
			}
			return port, nil
		},
		newBroker: func(c homeassistant.Config) (Broker, error) {
			client, err := homeassistant.New(c)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

// Run blocks until SIGINT/SIGTERM or until any gateway task ends.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext is Run with a caller-owned context. The first task error is
// returned; a cancelled ctx is a clean exit.
func (s *Service) RunContext(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	broker, err := s.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer broker.Close()
	return s.serve(ctx, broker)
}

// bootstrap opens the port, connects the broker and announces devices. The
// pipeline owns the port from here on and closes it when it stops.
func (s *Service) bootstrap(ctx context.Context) (Broker, error) {
	if s.cfg.HeartbeatInterval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	syncer, err := frame.NewSynchronizer(s.cfg.SyncMode)
	if err != nil {
		return nil, err
	}
	if len(s.cfg.Devices) == 0 {
		log.Warn().Msg("gateway.Service.bootstrap no devices configured")
	}

	port, err := s.openPort(s.cfg.Serial)
	if err != nil {
		return nil, err
	}

	broker, err := s.newBroker(s.cfg.MQTT)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	if err := broker.Connect(ctx); err != nil {
		_ = port.Close()
		broker.Close()
		return nil, err
	}

	pipe := pipeline.New(port, pipeline.Config{
		ChunkSize:     s.cfg.ChunkSize,
		QueueCapacity: s.cfg.QueueCapacity,
		Sync:          syncer,
	})
	router := bridge.New(bridge.Config{
		Devices:      s.cfg.Devices,
		Topics:       broker.Topics(),
		TimeInterval: s.cfg.TimeInterval,
	}, broker, broker.Commands(), pipe.Ingress(), pipe.Egress())

	if err := router.Start(ctx); err != nil {
		_ = port.Close()
		broker.Close()
		return nil, err
	}

	s.mu.Lock()
	s.pipe = pipe
	s.router = router
	s.startedAt = time.Now()
	s.mu.Unlock()

	log.Info().Msgf(
		"gateway.Service.bootstrap ready serial=%q sync=%s broker=%q devices=%d",
		s.cfg.Serial.Path,
		strings.ToLower(strings.TrimSpace(s.cfg.SyncMode)),
		s.cfg.MQTT.Broker(),
		len(s.cfg.Devices),
	)
	return broker, nil
}

// serve joins every steady-state task; whichever ends first stops the rest.
func (s *Service) serve(ctx context.Context, broker Broker) error {
	g, gctx := errgroup.WithContext(ctx)
	taskCtx, stop := context.WithCancel(gctx)
	defer stop()

	s.mu.RLock()
	pipe, router := s.pipe, s.router
	s.mu.RUnlock()

	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			defer stop()
			err := fn(taskCtx)
			if err != nil {
				log.Error().Msgf("gateway.Service.serve task=%s err=%v", name, err)
			} else {
				log.Debug().Msgf("gateway.Service.serve task=%s stopped", name)
			}
			return err
		})
	}

	run("pipeline", pipe.Run)
	run("router", router.Run)
	run("broker", broker.Run)
	if addr := strings.TrimSpace(s.cfg.AdminListenAddr); addr != "" {
		admin := NewAdminServer(s, s.cfg.CorsOrigins)
		run("admin", func(ctx context.Context) error { return admin.Serve(ctx, addr) })
	}
	run("heartbeat", s.heartbeat)

	s.ready.Store(true)
	err := g.Wait()
	s.ready.Store(false)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	log.Info().Msg("gateway.Service.serve shutdown")
	return nil
}

func (s *Service) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.Snapshot()
			log.Info().Msgf(
				"gateway.Service.heartbeat uptime=%s frames_in=%d frames_out=%d sync_drops=%d decode_errors=%d states=%d commands=%d",
				snap.Uptime,
				snap.Pipeline.FramesIn,
				snap.Pipeline.FramesOut,
				snap.Pipeline.SyncDrops,
				snap.Router.DecodeErrors,
				snap.Router.StatesPublished,
				snap.Router.Commands,
			)
		}
	}
}

// Ready reports whether every gateway task is running.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

func (s *Service) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{StartedAt: s.startedAt, Ready: s.ready.Load()}
	if !s.startedAt.IsZero() {
		snap.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	if s.pipe != nil {
		snap.Pipeline = s.pipe.Stats()
	}
	if s.router != nil {
		snap.Router = s.router.Stats()
	}
	return snap
}

func (s *Service) Devices() []bridge.DeviceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.router == nil {
		return []bridge.DeviceStatus{}
	}
	return s.router.Devices().Snapshot()
}
