package frame

import (
	"errors"
	"fmt"
	"io"
)

const (
	Sync1       byte = 0x21 // '!'
	Sync2CAN    byte = 0x7C // '|'
	PreambleLen      = 2
	// BodyLen is addr + type + length + the full payload slot.
	BodyLen  = 3 + MaxPayload
	FrameLen = PreambleLen + BodyLen

	MaxPayload = 8
	MaxAddr    = 0x3F
	MaxType    = 0x1F

	// BroadcastAddr addresses every device on the bus.
	BroadcastAddr uint8 = MaxAddr

	// MinChunkSize is the smallest read buffer the ingress flow may use.
	MinChunkSize = 512
)

var (
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrAddrRange       = errors.New("frame: addr out of range")
	ErrTypeRange       = errors.New("frame: type out of range")
)

// Record is one addressed payload as carried on the bus. It is a value type;
// copies are independent.
type Record struct {
	Addr   uint8
	Type   uint8
	Length uint8
	Data   [MaxPayload]byte
}

// NewRecord builds a record from a payload of at most MaxPayload bytes.
func NewRecord(addr, msgType uint8, payload []byte) (Record, error) {
	if len(payload) > MaxPayload {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	if addr > MaxAddr {
		return Record{}, fmt.Errorf("%w: %d", ErrAddrRange, addr)
	}
	if msgType > MaxType {
		return Record{}, fmt.Errorf("%w: %d", ErrTypeRange, msgType)
	}
	rec := Record{Addr: addr, Type: msgType, Length: uint8(len(payload))}
	copy(rec.Data[:], payload)
	return rec, nil
}

// FromCAN rebuilds a record from an 11-bit bus identifier and its payload.
func FromCAN(canAddr uint16, payload []byte) (Record, error) {
	addr, msgType := SplitCANAddr(canAddr)
	return NewRecord(addr, msgType, payload)
}

// CANAddr packs type into the high 5 bits and addr into the low 6 bits.
// Lower values win bus arbitration.
func CANAddr(addr, msgType uint8) uint16 {
	return uint16(msgType&MaxType)<<6 | uint16(addr&MaxAddr)
}

// SplitCANAddr is the inverse of CANAddr.
func SplitCANAddr(canAddr uint16) (addr, msgType uint8) {
	return uint8(canAddr & MaxAddr), uint8((canAddr >> 6) & MaxType)
}

func (r Record) CANAddr() uint16 {
	return CANAddr(r.Addr, r.Type)
}

// Payload returns the meaningful prefix of Data.
func (r Record) Payload() []byte {
	n := int(r.Length)
	if n > MaxPayload {
		n = MaxPayload
	}
	return r.Data[:n]
}

func (r Record) Validate() error {
	if r.Length > MaxPayload {
		return fmt.Errorf("%w: length=%d", ErrPayloadTooLarge, r.Length)
	}
	if r.Addr > MaxAddr {
		return fmt.Errorf("%w: %d", ErrAddrRange, r.Addr)
	}
	if r.Type > MaxType {
		return fmt.Errorf("%w: %d", ErrTypeRange, r.Type)
	}
	return nil
}

func (r Record) String() string {
	return fmt.Sprintf("addr=%d type=0x%02x len=%d data=% x", r.Addr, r.Type, r.Length, r.Payload())
}

// EncodeFrame serializes rec into the fixed 13-byte CAN family frame. Unused
// payload bytes are written as zero.
func EncodeFrame(rec Record) [FrameLen]byte {
	var buf [FrameLen]byte
	buf[0] = Sync1
	buf[1] = Sync2CAN
	buf[2] = rec.Addr
	buf[3] = rec.Type
	buf[4] = rec.Length
	copy(buf[5:], rec.Payload())
	return buf
}

// AppendFrame appends the encoded frame for rec to dst.
func AppendFrame(dst []byte, rec Record) []byte {
	f := EncodeFrame(rec)
	return append(dst, f[:]...)
}

// WriteFrame writes the encoded frame for rec to w in a single Write call.
func WriteFrame(w io.Writer, rec Record) error {
	f := EncodeFrame(rec)
	n, err := w.Write(f[:])
	if err != nil {
		return err
	}
	if n != FrameLen {
		return io.ErrShortWrite
	}
	return nil
}

// decodeBody parses the 11-byte body that follows the preamble. Only the low
// 6 bits of addr and the low 5 bits of type are significant on the wire.
func decodeBody(body []byte) (Record, error) {
	if len(body) < BodyLen {
		return Record{}, fmt.Errorf("%w: body=%d want=%d", ErrShortChunk, len(body), BodyLen)
	}
	length := body[2]
	if length > MaxPayload {
		return Record{}, fmt.Errorf("%w: declared length %d", ErrInvalidRecord, length)
	}
	rec, err := NewRecord(body[0]&MaxAddr, body[1]&MaxType, body[3:3+int(length)])
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return rec, nil
}
