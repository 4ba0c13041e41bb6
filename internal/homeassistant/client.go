package homeassistant

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	qosAtMostOnce  byte = 0
	qosAtLeastOnce byte = 1

	DefaultPort          = 1883
	DefaultQueueCapacity = 10
)

// Credentials are read from the environment, never from the config file.
type Credentials struct {
	Username string `env:"IOGATE_MQTT_USERNAME"`
	Password string `env:"IOGATE_MQTT_PASSWORD"`
}

func CredentialsFromEnv() (Credentials, error) {
	var c Credentials
	if err := env.Parse(&c); err != nil {
		return Credentials{}, fmt.Errorf("homeassistant: parse credentials: %w", err)
	}
	return c, nil
}

type Config struct {
	Host               string
	Port               int
	ClientID           string
	Credentials        Credentials
	KeepAlive          time.Duration
	ConnectTimeout     time.Duration
	PublishTimeout     time.Duration
	MaxConnectAttempts int
	Retry              RetrySchedule
	Topics             Topics
	QueueCapacity      int
}

func DefaultConfig() Config {
	return Config{
		Host:               "localhost",
		Port:               DefaultPort,
		KeepAlive:          5 * time.Second,
		ConnectTimeout:     10 * time.Second,
		PublishTimeout:     5 * time.Second,
		MaxConnectAttempts: 3,
		Retry:              DefaultRetrySchedule(),
		Topics:             DefaultTopics(),
		QueueCapacity:      DefaultQueueCapacity,
	}
}

// GenerateClientID returns "iogate-" plus 8 random hex characters.
func GenerateClientID() string {
	return "iogate-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if strings.TrimSpace(c.ClientID) == "" {
		c.ClientID = GenerateClientID()
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	if c.Retry == (RetrySchedule{}) {
		c.Retry = d.Retry
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	c.Topics = c.Topics.withDefaults()
	return c
}

// Broker returns the broker URL.
func (c Config) Broker() string {
	return "tcp://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client owns the broker session. The send half is the Register/Subscribe/
// Publish methods; the receive half is Commands. Reconnect is disabled: a
// lost connection ends Run with ErrConnectionLost.
type Client struct {
	cfg  Config
	mqtt mqtt.Client
	rng  *rand.Rand

	commands chan Command
	lost     chan error
	closing  chan struct{}

	mu        sync.RWMutex
	closeOnce sync.Once
	lostOnce  sync.Once
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrBrokerRequired
	}
	cfg = cfg.withDefaults()
	c := newClient(cfg)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker()).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { c.connectionLost(err) }).
		SetDefaultPublishHandler(c.handleMessage)
	if cfg.Credentials.Username != "" {
		opts.SetUsername(cfg.Credentials.Username)
		opts.SetPassword(cfg.Credentials.Password)
	}
	c.mqtt = mqtt.NewClient(opts)
	return c, nil
}

// newWithMQTT wraps an existing paho client; cfg must already have defaults.
func newWithMQTT(cfg Config, m mqtt.Client) *Client {
	c := newClient(cfg)
	c.mqtt = m
	return c
}

func newClient(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		commands: make(chan Command, cfg.QueueCapacity),
		lost:     make(chan error, 1),
		closing:  make(chan struct{}),
	}
}

func (c *Client) Topics() Topics {
	return c.cfg.Topics
}

// Connect performs the broker handshake, retrying with backoff up to
// MaxConnectAttempts. Failure is a *HandshakeError.
func (c *Client) Connect(ctx context.Context) error {
	var attempt int
	for {
		attempt++
		err := c.waitToken(ctx, c.mqtt.Connect(), c.cfg.ConnectTimeout)
		if err == nil {
			break
		}
		if ctx.Err() != nil || !c.shouldRetry(attempt) {
			log.Warn().Msgf(
				"homeassistant.Client.Connect attempt=%d broker=%s client_id=%s err=%v",
				attempt,
				c.cfg.Broker(),
				c.cfg.ClientID,
				err,
			)
			return &HandshakeError{Broker: c.cfg.Broker(), Attempts: attempt, Err: err}
		}
		pause := c.cfg.Retry.Delay(attempt, c.rng)
		log.Warn().Msgf(
			"homeassistant.Client.Connect attempt=%d broker=%s client_id=%s retry_in=%s err=%v",
			attempt,
			c.cfg.Broker(),
			c.cfg.ClientID,
			pause,
			err,
		)
		if err := waitRetry(ctx, pause); err != nil {
			return &HandshakeError{Broker: c.cfg.Broker(), Attempts: attempt, Err: err}
		}
	}
	log.Info().Msgf("homeassistant.Client.Connect connected broker=%s client_id=%s", c.cfg.Broker(), c.cfg.ClientID)

	if test := c.cfg.Topics.Test; test != "" {
		if err := c.subscribe(ctx, test); err != nil {
			return &HandshakeError{Broker: c.cfg.Broker(), Attempts: attempt, Err: err}
		}
	}
	return nil
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

// Commands is the receive half. It is closed when the client shuts down or
// the connection is lost.
func (c *Client) Commands() <-chan Command {
	return c.commands
}

// Run blocks until ctx is done or the broker connection drops.
func (c *Client) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-c.lost:
		return err
	case <-c.closing:
		select {
		case err := <-c.lost:
			return err
		default:
			return nil
		}
	}
}

// RegisterDevice publishes the discovery document for dev.
func (c *Client) RegisterDevice(ctx context.Context, dev Device) error {
	doc := NewDiscovery(dev, c.cfg.Topics)
	payload, err := doc.Marshal()
	if err != nil {
		return fmt.Errorf("homeassistant: encode discovery addr=%d: %w", dev.Addr, err)
	}
	topic := c.cfg.Topics.DiscoveryConfig(dev.Addr)
	log.Debug().Msgf("homeassistant.Client.RegisterDevice topic=%s payload=%s", topic, payload)
	return c.publish(ctx, "discovery", topic, payload)
}

// SubscribeCommands subscribes to a command topic pattern. Matching messages
// arrive on Commands.
func (c *Client) SubscribeCommands(ctx context.Context, pattern string) error {
	return c.subscribe(ctx, pattern)
}

func (c *Client) PublishState(ctx context.Context, addr, output uint8, on bool) error {
	return c.publish(ctx, "state", c.cfg.Topics.State(addr, output), []byte(statePayload(on)))
}

func (c *Client) PublishStartup(ctx context.Context) error {
	return c.publish(ctx, "startup", c.cfg.Topics.Status(), []byte(StartupNotice))
}

func (c *Client) publish(ctx context.Context, kind, topic string, payload []byte) error {
	if !c.mqtt.IsConnectionOpen() {
		return ErrNotConnected
	}
	if err := c.waitToken(ctx, c.mqtt.Publish(topic, qosAtLeastOnce, false, payload), c.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("%w: kind=%s topic=%s: %v", ErrPublish, kind, topic, err)
	}
	log.Trace().Msgf("homeassistant.Client.publish kind=%s topic=%s bytes=%d", kind, topic, len(payload))
	return nil
}

func (c *Client) subscribe(ctx context.Context, topic string) error {
	if err := c.waitToken(ctx, c.mqtt.Subscribe(topic, qosAtMostOnce, c.handleMessage), c.cfg.PublishTimeout); err != nil {
		return fmt.Errorf("%w: topic=%s: %v", ErrSubscribe, topic, err)
	}
	log.Info().Msgf("homeassistant.Client.subscribe topic=%s", topic)
	return nil
}

func (c *Client) waitToken(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return tok.Error()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd, ok, err := c.cfg.Topics.ParseCommand(msg.Topic(), msg.Payload())
	if err != nil {
		log.Warn().Msgf("homeassistant.Client.handleMessage topic=%s err=%v", msg.Topic(), err)
		return
	}
	if !ok {
		log.Info().Msgf("homeassistant.Client.handleMessage unknown topic=%s ignoring", msg.Topic())
		return
	}
	log.Debug().Msgf("homeassistant.Client.handleMessage topic=%s command=%s", msg.Topic(), cmd)

	c.mu.RLock()
	defer c.mu.RUnlock()
	select {
	case <-c.closing:
		return
	default:
	}
	select {
	case <-c.closing:
	case c.commands <- cmd:
	}
}

func (c *Client) connectionLost(err error) {
	c.lostOnce.Do(func() {
		log.Error().Msgf("homeassistant.Client connection lost broker=%s err=%v", c.cfg.Broker(), err)
		c.lost <- fmt.Errorf("%w: %v", ErrConnectionLost, err)
		c.shutdown()
	})
}

// Close disconnects and closes the Commands channel. Safe to call more than
// once.
func (c *Client) Close() {
	c.shutdown()
	if c.mqtt.IsConnected() {
		c.mqtt.Disconnect(250)
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.mu.Lock()
		close(c.commands)
		c.mu.Unlock()
	})
}
