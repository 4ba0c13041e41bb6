package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/iogate/internal/homeassistant"
	"github.com/danmuck/iogate/internal/observability"
	"github.com/danmuck/iogate/internal/protocol"
	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/protocol/schema"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultTimeInterval = 60 * time.Second

var (
	ErrIngressClosed  = errors.New("bridge: ingress closed")
	ErrCommandsClosed = errors.New("bridge: command stream closed")
	ErrStartup        = errors.New("bridge: startup failed")
)

// Publisher is the send half of the broker collaborator.
type Publisher interface {
	RegisterDevice(ctx context.Context, dev homeassistant.Device) error
	SubscribeCommands(ctx context.Context, pattern string) error
	PublishState(ctx context.Context, addr, output uint8, on bool) error
	PublishStartup(ctx context.Context) error
}

type Config struct {
	Devices      []homeassistant.Device
	Topics       homeassistant.Topics
	TimeInterval time.Duration
	// Now is the wall clock for time announcements.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Topics:       homeassistant.DefaultTopics(),
		TimeInterval: DefaultTimeInterval,
		Now:          time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Topics.Control == "" {
		c.Topics = d.Topics
	}
	if c.TimeInterval <= 0 {
		c.TimeInterval = d.TimeInterval
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// Stats is a point-in-time copy of router counters.
type Stats struct {
	Decoded           uint64 `json:"decoded"`
	DecodeErrors      uint64 `json:"decode_errors"`
	StatesPublished   uint64 `json:"states_published"`
	PublishErrors     uint64 `json:"publish_errors"`
	Unsupported       uint64 `json:"unsupported"`
	Commands          uint64 `json:"commands"`
	RecordsOut        uint64 `json:"records_out"`
	TimeAnnouncements uint64 `json:"time_announcements"`
	RegisterErrors    uint64 `json:"register_errors"`
}

// Router owns the ingress receive side, the egress send side and the broker
// command stream.
type Router struct {
	cfg      Config
	pub      Publisher
	commands <-chan homeassistant.Command
	ingress  <-chan frame.Record
	egress   chan<- frame.Record
	devices  *DeviceTable

	closeEgress sync.Once

	decoded           atomic.Uint64
	decodeErrors      atomic.Uint64
	statesPublished   atomic.Uint64
	publishErrors     atomic.Uint64
	unsupported       atomic.Uint64
	commandsIn        atomic.Uint64
	recordsOut        atomic.Uint64
	timeAnnouncements atomic.Uint64
	registerErrors    atomic.Uint64
}

func New(
	cfg Config,
	pub Publisher,
	commands <-chan homeassistant.Command,
	ingress <-chan frame.Record,
	egress chan<- frame.Record,
) *Router {
	cfg = cfg.withDefaults()
	return &Router{
		cfg:      cfg,
		pub:      pub,
		commands: commands,
		ingress:  ingress,
		egress:   egress,
		devices:  NewDeviceTable(cfg.Devices),
	}
}

func (r *Router) Devices() *DeviceTable {
	return r.devices
}

func (r *Router) Stats() Stats {
	return Stats{
		Decoded:           r.decoded.Load(),
		DecodeErrors:      r.decodeErrors.Load(),
		StatesPublished:   r.statesPublished.Load(),
		PublishErrors:     r.publishErrors.Load(),
		Unsupported:       r.unsupported.Load(),
		Commands:          r.commandsIn.Load(),
		RecordsOut:        r.recordsOut.Load(),
		TimeAnnouncements: r.timeAnnouncements.Load(),
		RegisterErrors:    r.registerErrors.Load(),
	}
}

// Start registers every configured device, subscribes to its command topics
// and publishes the startup notice. A failed discovery announcement is logged
// and counted; the device is still subscribed.
func (r *Router) Start(ctx context.Context) error {
	for _, dev := range r.cfg.Devices {
		if err := r.pub.RegisterDevice(ctx, dev); err != nil {
			r.registerErrors.Add(1)
			log.Error().Msgf("bridge.Router.Start register device=%q addr=%d err=%v", dev.Name, dev.Addr, err)
		}
		pattern := r.cfg.Topics.CommandPattern(dev.Addr)
		if err := r.pub.SubscribeCommands(ctx, pattern); err != nil {
			return fmt.Errorf("%w: subscribe %s: %v", ErrStartup, pattern, err)
		}
		log.Info().Msgf("bridge.Router.Start registered device=%q addr=%d outputs=%d", dev.Name, dev.Addr, len(dev.Outputs))
	}
	if err := r.pub.PublishStartup(ctx); err != nil {
		return fmt.Errorf("%w: startup notice: %v", ErrStartup, err)
	}
	return nil
}

// Run drives the inbound, outbound and time loops until one of them ends.
// It closes the egress channel before returning.
func (r *Router) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return r.inboundLoop(loopCtx)
	})
	g.Go(func() error {
		defer stop()
		return r.outboundLoop(loopCtx)
	})
	g.Go(func() error {
		defer stop()
		return r.timeLoop(loopCtx)
	})

	err := g.Wait()
	// every producer has returned; nothing can send on egress anymore
	r.CloseEgress()
	if err != nil {
		log.Error().Msgf("bridge.Router.Run stopped err=%v", err)
	} else {
		log.Info().Msg("bridge.Router.Run stopped")
	}
	return err
}

// CloseEgress closes the egress channel once. Only call it when no loop can
// still send.
func (r *Router) CloseEgress() {
	r.closeEgress.Do(func() { close(r.egress) })
}

func (r *Router) inboundLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-r.ingress:
			if !ok {
				return ErrIngressClosed
			}
			r.HandleRecord(ctx, rec)
		}
	}
}

// HandleRecord decodes one ingress record and applies its mapping. Errors
// are logged and counted, never returned.
func (r *Router) HandleRecord(ctx context.Context, rec frame.Record) {
	msg, err := protocol.Decode(rec)
	if err != nil {
		r.decodeErrors.Add(1)
		kind := "other"
		var de *protocol.DecodeError
		if errors.As(err, &de) {
			kind = de.Kind()
		}
		observability.RecordDecodeError(kind)
		log.Warn().Msgf("bridge.Router.inbound decode addr=%d err=%v", rec.Addr, err)
		return
	}
	r.decoded.Add(1)
	observability.RecordMessage(observability.DirectionIngress, protocol.Name(msg))
	r.devices.Observe(rec.Addr, msg, r.cfg.Now())

	switch m := msg.(type) {
	case protocol.OutputChanged:
		on, ok := m.State.Bool()
		if !ok {
			r.unsupported.Add(1)
			log.Warn().Msgf(
				"bridge.Router.inbound unsupported output state addr=%d output=%d state=%s",
				rec.Addr,
				m.Output,
				m.State,
			)
			return
		}
		if err := r.pub.PublishState(ctx, rec.Addr, m.Output, on); err != nil {
			r.publishErrors.Add(1)
			observability.RecordPublish("state", false)
			log.Error().Msgf("bridge.Router.inbound publish state addr=%d output=%d err=%v", rec.Addr, m.Output, err)
			return
		}
		r.statesPublished.Add(1)
		observability.RecordPublish("state", true)
		log.Debug().Msgf("bridge.Router.inbound state addr=%d output=%d on=%t", rec.Addr, m.Output, on)
	case protocol.Info:
		if m.Code == protocol.InfoStarted {
			log.Info().Msgf("bridge.Router.inbound device started addr=%d arg=%d", rec.Addr, m.Arg)
			return
		}
		log.Debug().Msgf("bridge.Router.inbound info addr=%d code=%s arg=%d", rec.Addr, m.Code, m.Arg)
	case protocol.Error:
		log.Warn().Msgf("bridge.Router.inbound device error addr=%d code=%d", rec.Addr, m.Code)
	default:
		log.Debug().Msgf("bridge.Router.inbound ignored addr=%d type=%s msg=%+v", rec.Addr, protocol.Name(msg), msg)
	}
}

func (r *Router) outboundLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-r.commands:
			if !ok {
				return ErrCommandsClosed
			}
			r.commandsIn.Add(1)
			observability.RecordCommand(cmd.Kind.String())
			if err := r.handleCommand(ctx, cmd); err != nil {
				return nil
			}
		}
	}
}

// handleCommand only returns an error when ctx ended while blocked on egress.
func (r *Router) handleCommand(ctx context.Context, cmd homeassistant.Command) error {
	switch cmd.Kind {
	case homeassistant.CommandSetOutput:
		if cmd.Device > frame.MaxAddr {
			log.Warn().Msgf("bridge.Router.outbound device addr out of range command=%s", cmd)
			return nil
		}
		if _, ok := r.devices.Configured(cmd.Device); !ok {
			log.Debug().Msgf("bridge.Router.outbound unconfigured device addr=%d", cmd.Device)
		}
		msg := protocol.SetOutput{Output: cmd.Output, State: protocol.OutputRequestFromBool(cmd.On)}
		return r.send(ctx, protocol.Encode(msg, cmd.Device))
	default:
		log.Debug().Msgf("bridge.Router.outbound ignored command=%s", cmd)
		return nil
	}
}

// send pushes rec onto egress, blocking while the queue is full.
func (r *Router) send(ctx context.Context, rec frame.Record) error {
	select {
	case r.egress <- rec:
		r.recordsOut.Add(1)
		observability.RecordMessage(observability.DirectionEgress, schema.Name(rec.Type))
		log.Debug().Msgf("bridge.Router.send %s", rec)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) timeLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.announceTime(ctx); err != nil {
				return nil
			}
		}
	}
}

// announceTime broadcasts the current wall clock to every device.
func (r *Router) announceTime(ctx context.Context) error {
	msg := protocol.TimeAnnouncementAt(r.cfg.Now())
	if err := r.send(ctx, protocol.Encode(msg, frame.BroadcastAddr)); err != nil {
		return err
	}
	r.timeAnnouncements.Add(1)
	return nil
}
