package frame

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrSync marks a chunk the synchronizer dropped. It is never fatal.
var ErrSync = errors.New("frame: sync")

var (
	ErrBadPreamble   = fmt.Errorf("%w: preamble mismatch", ErrSync)
	ErrUnknownFamily = fmt.Errorf("%w: unknown frame family", ErrSync)
	ErrShortChunk    = fmt.Errorf("%w: chunk shorter than frame", ErrSync)
	ErrInvalidRecord = fmt.Errorf("%w: invalid record", ErrSync)
)

const (
	ModeSingleShot = "single"
	ModeSliding    = "sliding"
)

// Synchronizer recovers records from raw read chunks. A non-nil error means
// (part of) the chunk was discarded; records returned alongside it are valid.
type Synchronizer interface {
	Sync(chunk []byte) ([]Record, error)
}

// NewSynchronizer returns the strategy for mode. Empty mode selects SingleShot.
func NewSynchronizer(mode string) (Synchronizer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeSingleShot:
		return SingleShot{}, nil
	case ModeSliding:
		return NewSliding(), nil
	default:
		return nil, fmt.Errorf("frame: unknown sync mode %q", mode)
	}
}

// SingleShot checks only the start of each chunk and extracts at most one
// frame from it. It keeps no state between chunks, so a frame split across two
// reads is lost and a stream that starts mid-frame stays desynchronized until a
// read happens to begin on a preamble.
type SingleShot struct{}

func (SingleShot) Sync(chunk []byte) ([]Record, error) {
	if len(chunk) == 0 || chunk[0] != Sync1 {
		return nil, ErrBadPreamble
	}
	if len(chunk) < PreambleLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortChunk, len(chunk))
	}
	if chunk[1] != Sync2CAN {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFamily, chunk[1])
	}
	if len(chunk) < FrameLen {
		return nil, fmt.Errorf("%w: %d bytes want %d", ErrShortChunk, len(chunk), FrameLen)
	}
	rec, err := decodeBody(chunk[PreambleLen:FrameLen])
	if err != nil {
		return nil, err
	}
	return []Record{rec}, nil
}

// Sliding scans for the preamble anywhere in the stream and carries a partial
// frame over to the next chunk. At most one partial frame is ever buffered.
// Not safe for concurrent use; the ingress flow is its only caller.
type Sliding struct {
	buf []byte
}

func NewSliding() *Sliding {
	return &Sliding{}
}

func (s *Sliding) Sync(chunk []byte) ([]Record, error) {
	s.buf = append(s.buf, chunk...)
	var (
		out     []Record
		dropped int
		lastErr error
	)
	preamble := []byte{Sync1, Sync2CAN}
	for {
		idx := bytes.Index(s.buf, preamble)
		if idx < 0 {
			// keep a trailing Sync1 that may start the next frame
			keep := 0
			if n := len(s.buf); n > 0 && s.buf[n-1] == Sync1 {
				keep = 1
			}
			dropped += len(s.buf) - keep
			s.buf = append(s.buf[:0], s.buf[len(s.buf)-keep:]...)
			break
		}
		dropped += idx
		s.buf = s.buf[idx:]
		if len(s.buf) < FrameLen {
			break
		}
		rec, err := decodeBody(s.buf[PreambleLen:FrameLen])
		if err != nil {
			// skip this preamble and look for the next one
			lastErr = err
			s.buf = s.buf[1:]
			dropped++
			continue
		}
		out = append(out, rec)
		s.buf = s.buf[FrameLen:]
	}
	// compact so the backing array does not grow without bound
	s.buf = append([]byte(nil), s.buf...)

	if lastErr != nil {
		return out, lastErr
	}
	if dropped > 0 {
		return out, fmt.Errorf("%w: discarded %d bytes", ErrBadPreamble, dropped)
	}
	return out, nil
}

// Pending reports buffered bytes waiting for the rest of a frame.
func (s *Sliding) Pending() int {
	return len(s.buf)
}
