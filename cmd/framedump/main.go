package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/iogate/internal/logging"
	"github.com/danmuck/iogate/internal/pipeline"
	"github.com/danmuck/iogate/internal/protocol"
	"github.com/danmuck/iogate/internal/protocol/frame"
	"github.com/danmuck/iogate/internal/serialport"
	"golang.org/x/sync/errgroup"
)

type options struct {
	mode  string
	port  string
	baud  int
	sync  string
	probe time.Duration
	addr  uint
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime()
	switch opts.mode {
	case "list":
		if err := runList(); err != nil {
			fatalf("%v", err)
		}
	case "dump":
		if err := runDump(opts); err != nil {
			fatalf("%v", err)
		}
	default:
		fatalf("unknown mode %q (supported: dump, list)", opts.mode)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.mode, "mode", "dump", "mode: dump | list")
	flag.StringVar(&opts.port, "port", "/dev/ttyACM0", "serial device path")
	flag.IntVar(&opts.baud, "baud", serialport.DefaultBaudRate, "serial baud rate")
	flag.StringVar(&opts.sync, "sync", frame.ModeSingleShot, "frame sync mode: single | sliding")
	flag.DurationVar(&opts.probe, "probe", 0, "send ping and request_status at this interval (0 disables)")
	flag.UintVar(&opts.addr, "addr", uint(frame.BroadcastAddr), "probe target address")
	flag.Parse()
	return opts
}

func runList() error {
	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func runDump(opts options) error {
	if opts.addr > frame.MaxAddr {
		return fmt.Errorf("addr %d outside 0..%d", opts.addr, frame.MaxAddr)
	}
	syncer, err := frame.NewSynchronizer(opts.sync)
	if err != nil {
		return err
	}
	port, err := serialport.Open(serialport.Config{Path: opts.port, BaudRate: opts.baud})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipe := pipeline.New(port, pipeline.Config{Sync: syncer})
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		defer close(pipe.Egress())
		return probe(gctx, pipe.Egress(), uint8(opts.addr), opts.probe)
	})
	g.Go(func() error {
		for rec := range pipe.Ingress() {
			fmt.Println(describe(time.Now(), rec))
		}
		return nil
	})

	err = g.Wait()
	stats := pipe.Stats()
	fmt.Fprintf(os.Stderr, "frames_in=%d frames_out=%d sync_drops=%d read_errors=%d\n",
		stats.FramesIn, stats.FramesOut, stats.SyncDrops, stats.ReadErrors)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// probe alternates ping and request_status to addr until ctx is done.
func probe(ctx context.Context, egress chan<- frame.Record, addr uint8, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var seq uint16
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			seq++
			for _, msg := range []protocol.Message{protocol.Ping{Body: seq}, protocol.RequestStatus{}} {
				select {
				case egress <- protocol.Encode(msg, addr):
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// describe renders one record as a single dump line.
func describe(at time.Time, rec frame.Record) string {
	prefix := fmt.Sprintf("%s can=0x%03x addr=%-2d", at.Format("15:04:05.000"), rec.CANAddr(), rec.Addr)
	msg, err := protocol.Decode(rec)
	if err != nil {
		return fmt.Sprintf("%s raw type=0x%02x data=% x err=%v", prefix, rec.Type, rec.Payload(), err)
	}
	return fmt.Sprintf("%s %s %+v", prefix, protocol.Name(msg), msg)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "framedump: "+format+"\n", args...)
	os.Exit(1)
}
