// Package pipeline owns the serial link and runs the ingress and egress flows
// that move frame records between the link and two bounded channels.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/danmuck/iogate/internal/observability"
	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/serialport"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultQueueCapacity = 15

var (
	ErrPeerDisconnected = errors.New("pipeline: peer disconnected")
	ErrWrite            = errors.New("pipeline: write failed")
	ErrAlreadyRunning   = errors.New("pipeline: already running")
)

// Port is the duplex link. The ingress flow only reads and the egress flow
// only writes; Close must unblock a pending Read.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
}

type Config struct {
	ChunkSize     int
	QueueCapacity int
	Sync          frame.Synchronizer
}

func DefaultConfig() Config {
	return Config{
		ChunkSize:     frame.MinChunkSize,
		QueueCapacity: DefaultQueueCapacity,
		Sync:          frame.SingleShot{},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ChunkSize < frame.MinChunkSize {
		c.ChunkSize = d.ChunkSize
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	if c.Sync == nil {
		c.Sync = d.Sync
	}
	return c
}

// Stats is a point-in-time copy of pipeline counters.
type Stats struct {
	FramesIn   uint64 `json:"frames_in"`
	FramesOut  uint64 `json:"frames_out"`
	SyncDrops  uint64 `json:"sync_drops"`
	ReadErrors uint64 `json:"read_errors"`
}

// Pipeline moves records between a Port and the ingress/egress channels.
// The ingress channel is closed when the ingress flow exits; the egress
// channel is owned by its producer, which closes it to stop the egress flow.
type Pipeline struct {
	port    Port
	cfg     Config
	ingress chan frame.Record
	egress  chan frame.Record
	running atomic.Bool

	framesIn   atomic.Uint64
	framesOut  atomic.Uint64
	syncDrops  atomic.Uint64
	readErrors atomic.Uint64
}

func New(port Port, cfg Config) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		port:    port,
		cfg:     cfg,
		ingress: make(chan frame.Record, cfg.QueueCapacity),
		egress:  make(chan frame.Record, cfg.QueueCapacity),
	}
}

func (p *Pipeline) Ingress() <-chan frame.Record {
	return p.ingress
}

func (p *Pipeline) Egress() chan<- frame.Record {
	return p.egress
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		FramesIn:   p.framesIn.Load(),
		FramesOut:  p.framesOut.Load(),
		SyncDrops:  p.syncDrops.Load(),
		ReadErrors: p.readErrors.Load(),
	}
}

// Run drives both flows until either one ends, then closes the port so the
// other unwinds. It returns the first error; a closed egress channel or a
// cancelled ctx is a clean exit.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	log.Info().Msgf(
		"pipeline.Pipeline.Run start chunk=%d queue=%d sync=%T",
		p.cfg.ChunkSize,
		p.cfg.QueueCapacity,
		p.cfg.Sync,
	)

	g, gctx := errgroup.WithContext(ctx)
	flowCtx, stop := context.WithCancel(gctx)
	defer stop()

	var closeOnce sync.Once
	closePort := func() {
		closeOnce.Do(func() {
			if err := p.port.Close(); err != nil {
				log.Debug().Msgf("pipeline.Pipeline.Run close port err=%v", err)
			}
		})
	}
	defer closePort()

	g.Go(func() error {
		<-flowCtx.Done()
		closePort()
		return nil
	})
	g.Go(func() error {
		defer stop()
		return p.ingressLoop(flowCtx)
	})
	g.Go(func() error {
		defer stop()
		return p.egressLoop(flowCtx)
	})

	err := g.Wait()
	if err != nil {
		log.Error().Msgf("pipeline.Pipeline.Run stopped err=%v", err)
	} else {
		log.Info().Msg("pipeline.Pipeline.Run stopped")
	}
	return err
}

func (p *Pipeline) ingressLoop(ctx context.Context) error {
	defer close(p.ingress)
	buf := make([]byte, p.cfg.ChunkSize)
	for {
		n, err := p.port.Read(buf)
		if ctx.Err() != nil {
			return nil
		}
		// bytes returned alongside an error are still delivered
		if n > 0 && !p.forward(ctx, buf[:n]) {
			return nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || isClosed(err) {
				return fmt.Errorf("%w: %v", ErrPeerDisconnected, err)
			}
			p.readErrors.Add(1)
			observability.RecordReadError()
			log.Warn().Msgf("pipeline.Pipeline.ingress read bytes=%d err=%v", n, err)
			continue
		}
		if n == 0 {
			return ErrPeerDisconnected
		}
	}
}

// forward syncs one chunk and queues its records. It reports false when ctx
// ended while blocked on a full ingress queue.
func (p *Pipeline) forward(ctx context.Context, chunk []byte) bool {
	recs, syncErr := p.cfg.Sync.Sync(chunk)
	if syncErr != nil {
		p.syncDrops.Add(1)
		observability.RecordSyncDrop(syncReason(syncErr))
		log.Debug().Msgf("pipeline.Pipeline.ingress sync drop bytes=%d err=%v", len(chunk), syncErr)
	}
	for _, rec := range recs {
		select {
		case p.ingress <- rec:
			p.framesIn.Add(1)
			observability.RecordFrame(observability.DirectionIngress)
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (p *Pipeline) egressLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case rec, ok := <-p.egress:
			if !ok {
				log.Debug().Msg("pipeline.Pipeline.egress channel closed")
				return nil
			}
			if err := frame.WriteFrame(p.port, rec); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: %v", ErrWrite, err)
			}
			p.framesOut.Add(1)
			observability.RecordFrame(observability.DirectionEgress)
			log.Trace().Msgf("pipeline.Pipeline.egress wrote %s", rec)
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		serialport.IsClosed(err)
}

func syncReason(err error) string {
	switch {
	case errors.Is(err, frame.ErrBadPreamble):
		return "bad_preamble"
	case errors.Is(err, frame.ErrUnknownFamily):
		return "unknown_family"
	case errors.Is(err, frame.ErrShortChunk):
		return "short_chunk"
	case errors.Is(err, frame.ErrInvalidRecord):
		return "invalid_record"
	default:
		return "other"
	}
}
